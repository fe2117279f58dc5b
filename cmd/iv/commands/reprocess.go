package commands

import (
	"fmt"
	"time"

	"imagevault/pkg/inference"
	"imagevault/pkg/meta"
	"imagevault/pkg/reprocess"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	reprocessDryRun  bool
	reprocessLimit   int
	reprocessDelay   time.Duration
	reprocessWorkers int
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Re-run YOLO inference on executions with zero-width bounding boxes",
	Long: `Find dashboard executions whose detection records have zero-width bounding
boxes, re-run inference on their stored images and update execution_analysis.
The executions table itself is never touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// 这个命令才需要数据库和推理服务，其它命令不连
		db, err := meta.NewDB(ctx, meta.Config{
			Host:     viper.GetString("database.host"),
			Port:     viper.GetInt("database.port"),
			User:     viper.GetString("database.user"),
			Password: viper.GetString("database.password"),
			DBName:   viper.GetString("database.name"),
			SSLMode:  viper.GetString("database.sslmode"),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to dashboard database: %w", err)
		}
		repo := meta.NewRepository(db)

		client, err := inference.NewClient(inference.Config{
			URL:                 viper.GetString("inference.url"),
			ConfidenceThreshold: viper.GetFloat64("inference.confidence_threshold"),
			IOUThreshold:        viper.GetFloat64("inference.iou_threshold"),
			Timeout:             viper.GetDuration("inference.timeout"),
		})
		if err != nil {
			return err
		}

		runner := reprocess.NewRunner(repo, IV.Store, client, reprocess.Options{
			DryRun:  reprocessDryRun,
			Limit:   reprocessLimit,
			Delay:   reprocessDelay,
			Workers: reprocessWorkers,
		})

		stats, err := runner.Run(ctx)
		if err != nil {
			return err
		}

		// 汇总上色：有失败就醒目一点
		if stats.Failed > 0 {
			color.Red("⚠️  %d of %d executions failed", stats.Failed, stats.Total)
		} else if stats.OK > 0 {
			color.Green("✅ %d executions updated (%d skipped)", stats.OK, stats.Skipped)
		}
		return nil
	},
}

func init() {
	reprocessCmd.Flags().BoolVar(&reprocessDryRun, "dry-run", false, "query and infer but do not write to the database")
	reprocessCmd.Flags().IntVar(&reprocessLimit, "limit", 0, "max executions to process (0 = no limit)")
	reprocessCmd.Flags().DurationVar(&reprocessDelay, "delay", 100*time.Millisecond, "pause between requests in serial mode")
	reprocessCmd.Flags().IntVar(&reprocessWorkers, "workers", 1, "parallel inference requests")
	rootCmd.AddCommand(reprocessCmd)
}
