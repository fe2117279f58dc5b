// cmd/iv/commands/add.go

package commands

import (
	"fmt"
	"os"
	"time"

	"imagevault/pkg/importer"
	"imagevault/pkg/storage"

	"github.com/spf13/cobra"
)

var (
	addExt     string
	addWorkers int
)

var addCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Store an image (or a directory of images) by content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if IV == nil {
			return fmt.Errorf("app not initialized")
		}
		targetPath := args[0] // 可能是单个文件，也可能是目录

		ctx := cmd.Context()
		imp := importer.NewImporter(IV.Store)
		imp.SetWorkers(addWorkers)

		info, err := os.Stat(targetPath)
		if err != nil {
			return err
		}

		// 单文件：直接入库并打印完整回执
		if !info.IsDir() {
			res, err := imp.ImportFile(ctx, targetPath, addExt)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		}

		// 目录：批量导入，\r 简单进度条
		imp.Progress = func(path string, res *storage.Result) {
			fmt.Printf("\rAdding: %s (%d)", path, res.Size)
		}

		start := time.Now()
		summary, err := imp.ImportDir(ctx, targetPath, addExt)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		fmt.Println() // 换行

		if summary.Files > 0 {
			fmt.Printf("✅ Stored %d images (%d bytes, %d duplicates, %d skipped) in %s\n",
				summary.Files, summary.Bytes, summary.Duplicates, summary.Skipped, time.Since(start))
		} else {
			fmt.Printf("⚠️  No images stored (%d skipped).\n", summary.Skipped)
		}
		return nil
	},
}

func printResult(res *storage.Result) {
	dedup := ""
	if res.IsDuplicate {
		dedup = " (duplicate, no write)"
	}
	fmt.Printf("%s  %d bytes%s\n  -> %s\n", res.Digest, res.Size, dedup, res.Location)
}

func init() {
	addCmd.Flags().StringVar(&addExt, "ext", "", "override the stored file extension (default: each file's own)")
	addCmd.Flags().IntVar(&addWorkers, "workers", importer.DefaultWorkers, "parallel store operations for directories")
	rootCmd.AddCommand(addCmd)
}
