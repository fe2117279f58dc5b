package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize an ImageVault storage tree",
	Long:  `Create an empty ImageVault storage tree or reinitialize an existing one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}

		// 仓库路径 (.iv)，图像分片树在 .iv/images 下
		repoPath := filepath.Join(wd, ".iv")
		imagesPath := filepath.Join(repoPath, "images")

		if _, err := os.Stat(repoPath); err == nil {
			fmt.Printf("⚠️  ImageVault storage already exists in %s\n", repoPath)
			return nil
		}

		if err := os.MkdirAll(imagesPath, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}

		fmt.Printf("✅ Initialized empty ImageVault storage in %s\n", repoPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
