package commands

import (
	"fmt"

	"imagevault/pkg/types"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statExt string

var statCmd = &cobra.Command{
	Use:   "stat [digest]",
	Short: "Show existence and location for a digest",
	Long: `Print whether an image exists and where it lives (or would live).
The location is stable whether or not the image has been stored yet.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		digest := types.Digest(args[0])
		if !digest.IsValid() {
			return fmt.Errorf("invalid digest: %q (want 64 hex chars)", args[0])
		}

		exists, err := IV.Store.Has(cmd.Context(), digest, statExt)
		if err != nil {
			return fmt.Errorf("stat failed: %w", err)
		}

		// Locate 是纯推导：对象还没存也能拿到稳定落点
		fmt.Printf("digest:   %s\n", digest)
		fmt.Printf("location: %s\n", IV.Store.Locate(digest, statExt))
		if exists {
			color.Green("exists:   true")
		} else {
			color.Yellow("exists:   false")
		}
		return nil
	},
}

func init() {
	statCmd.Flags().StringVar(&statExt, "ext", "", "file extension (default from config)")
	rootCmd.AddCommand(statCmd)
}
