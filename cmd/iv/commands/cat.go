package commands

import (
	"errors"
	"fmt"
	"os"

	"imagevault/pkg/storage"
	"imagevault/pkg/types"

	"github.com/spf13/cobra"
)

var catExt string

var catCmd = &cobra.Command{
	Use:   "cat [digest]",
	Short: "Write image bytes to stdout by digest",
	Long:  `Retrieve the exact bytes previously stored for a digest and write them to stdout (redirect to a file for binary data).`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		digest := types.Digest(args[0])
		if !digest.IsValid() {
			return fmt.Errorf("invalid digest: %q (want 64 hex chars)", args[0])
		}

		data, err := IV.Store.Get(cmd.Context(), digest, catExt)
		if errors.Is(err, storage.ErrNotFound) {
			// not-found 是预期结果，但对 cat 来说没有输出就是失败
			return fmt.Errorf("image not found: %s", digest)
		}
		if err != nil {
			return fmt.Errorf("cat failed: %w", err)
		}

		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	catCmd.Flags().StringVar(&catExt, "ext", "", "file extension (default from config)")
	rootCmd.AddCommand(catCmd)
}
