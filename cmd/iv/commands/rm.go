package commands

import (
	"fmt"

	"imagevault/pkg/types"

	"github.com/spf13/cobra"
)

var rmExt string

var rmCmd = &cobra.Command{
	Use:   "rm [digest]",
	Short: "Delete an image by digest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		digest := types.Digest(args[0])
		if !digest.IsValid() {
			return fmt.Errorf("invalid digest: %q (want 64 hex chars)", args[0])
		}

		deleted, err := IV.Store.Delete(cmd.Context(), digest, rmExt)
		if err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}

		if deleted {
			fmt.Printf("Deleted %s\n", digest)
		} else {
			// 不存在不算错误，但要让用户知道
			fmt.Printf("Not stored: %s (nothing to delete)\n", digest)
		}
		return nil
	},
}

func init() {
	rmCmd.Flags().StringVar(&rmExt, "ext", "", "file extension (default from config)")
	rootCmd.AddCommand(rmCmd)
}
