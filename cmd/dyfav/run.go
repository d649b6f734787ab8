package main

import (
	"fmt"
	"os"
	"time"

	"dyfav/pkg/logger"
	"dyfav/pkg/materializer"
	"dyfav/pkg/pipeline"
	"dyfav/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	outputDir       string
	snapshotFile    string
	concurrency     int
	maxAttempts     int
	downloadTimeout time.Duration
	storeBackend    string
	lockBackend     string
	noDownload      bool
	notify          bool
)

var runCmd = &cobra.Command{
	Use:   "run [capture]",
	Short: "Extract, snapshot, download and store every favorited item",
	Long: `Run the whole pipeline over a HAR capture (or a fav.json snapshot).

Items already on disk are skipped without any network traffic, so an
interrupted run can simply be started again.`,
	Example: `  # Use the first existing capture from the config
  dyfav run

  # Explicit capture, four parallel downloads, metadata into SQLite
  dyfav run www.douyin.com.har --concurrency 4 --store sqlite

  # Metadata only
  dyfav run --no-download`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, args, false)
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [capture]",
	Short: "Download media only, without snapshot or metadata storage",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, args, true)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(downloadCmd)

	for _, c := range []*cobra.Command{runCmd, downloadCmd} {
		c.Flags().StringVarP(&outputDir, "output", "o", "", "media output directory")
		c.Flags().IntVar(&concurrency, "concurrency", 1, "number of items downloaded in parallel")
		c.Flags().IntVar(&maxAttempts, "max-attempts", 1, "attempts per media request")
		c.Flags().DurationVar(&downloadTimeout, "download-timeout", 30*time.Second, "timeout per media request")
		c.Flags().StringVar(&lockBackend, "lock", "", "item lock backend (memory, redis)")
		c.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when done")
	}
	runCmd.Flags().StringVar(&snapshotFile, "snapshot", "", "snapshot output file")
	runCmd.Flags().StringVar(&storeBackend, "store", "", "metadata backend (none, csv, json, sqlite, postgres, mongo)")
	runCmd.Flags().BoolVar(&noDownload, "no-download", false, "skip media downloads")
}

func runFlags(cmd *cobra.Command, args []string) map[string]interface{} {
	flags := sourceFlags(args)
	if cmd.Flags().Changed("output") {
		flags["output"] = outputDir
	}
	if cmd.Flags().Changed("snapshot") {
		flags["snapshot"] = snapshotFile
	}
	if cmd.Flags().Changed("concurrency") {
		flags["concurrency"] = concurrency
	}
	if cmd.Flags().Changed("max-attempts") {
		flags["max-attempts"] = maxAttempts
	}
	if cmd.Flags().Changed("download-timeout") {
		flags["download-timeout"] = downloadTimeout
	}
	if cmd.Flags().Changed("store") {
		flags["store"] = storeBackend
	}
	if cmd.Flags().Changed("lock") {
		flags["lock"] = lockBackend
	}
	if noDownload {
		flags["no-download"] = true
	}
	return flags
}

func runPipeline(cmd *cobra.Command, args []string, downloadOnly bool) error {
	cfg, err := loadConfig(runFlags(cmd, args))
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	ui.PrintBanner()
	ui.PrintInfo("Output", cfg.Output.BaseDirectory)

	var progress *ui.ProgressDisplay
	opts := pipeline.Options{}
	if !ui.IsQuietMode() {
		opts.OnStart = func(items int) {
			progress = ui.NewProgressDisplay(os.Stderr, items, verbose || !ui.IsTerminal(os.Stderr))
		}
		opts.OnResult = func(res materializer.Result) {
			progress.Observe(res)
		}
	}

	p := pipeline.New(cfg, opts, log)
	var summary *pipeline.Summary
	if downloadOnly {
		summary, err = p.Download(cmd.Context(), "")
	} else {
		summary, err = p.Run(cmd.Context(), "")
	}
	if progress != nil {
		progress.Complete()
	}

	notifier := ui.NewNotifier(notify)
	if summary != nil && !ui.IsQuietMode() {
		ui.RenderSummary(os.Stdout, summary)
	}
	if err != nil {
		log.WithError(err).Error("Run failed")
		if notify {
			notifier.SendError("dyfav failed", err.Error())
		}
		return err
	}
	if notify {
		notifier.SendSuccess("dyfav finished", finishedMessage(summary))
	}
	return nil
}

func finishedMessage(s *pipeline.Summary) string {
	return fmt.Sprintf("%d downloaded, %d skipped, %d failed in %s",
		s.Downloaded, s.Skipped, s.Failed, ui.FormatDuration(s.Duration))
}
