package main

import (
	"fmt"
	"os"

	"dyfav/pkg/logger"
	"dyfav/pkg/pipeline"
	"dyfav/pkg/snapshot"
	"dyfav/pkg/ui"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats [capture]",
	Short: "Show what a capture contains without downloading anything",
	Long: `Decode the capture, extract the favorites items and print counters for
every stage: matched responses, decode failures, pages, duplicates and the
pagination cursors of each page.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(sourceFlags(args))
		if err != nil {
			return err
		}
		p := pipeline.New(cfg, pipeline.Options{}, logger.GetLogger())
		source, err := p.ResolveSource("")
		if err != nil {
			return err
		}
		_, stats, err := p.Load(source)
		if err != nil {
			return err
		}
		ui.RenderStats(os.Stdout, source, stats)
		return nil
	},
}

var parseOutput string

var parseCmd = &cobra.Command{
	Use:   "parse [capture]",
	Short: "Write the fav.json snapshot only",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := sourceFlags(args)
		if cmd.Flags().Changed("snapshot") {
			flags["snapshot"] = parseOutput
		}
		cfg, err := loadConfig(flags)
		if err != nil {
			return err
		}
		p := pipeline.New(cfg, pipeline.Options{}, logger.GetLogger())
		source, err := p.ResolveSource("")
		if err != nil {
			return err
		}
		coll, _, err := p.Load(source)
		if err != nil {
			return err
		}
		if err := snapshot.Write(cfg.Capture.SnapshotFile, coll.Items); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Wrote %d items to %s", coll.Len(), cfg.Capture.SnapshotFile))
		return nil
	},
}

var importCommentsCmd = &cobra.Command{
	Use:   "import-comments <file>",
	Short: "Store comments from a JSON file through the metadata backend",
	Long: `Read a JSON array of comments, or a comment list response with a
"comments" array, and upsert every comment into the configured backend.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := make(map[string]interface{})
		if cmd.Flags().Changed("store") {
			flags["store"] = storeBackend
		}
		cfg, err := loadConfig(flags)
		if err != nil {
			return err
		}
		p := pipeline.New(cfg, pipeline.Options{}, logger.GetLogger())
		stored, dropped, err := p.ImportComments(cmd.Context(), args[0])
		ui.PrintInfo("Comments stored", fmt.Sprint(stored))
		if dropped > 0 {
			ui.PrintWarning("Comments dropped", dropped)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(importCommentsCmd)

	parseCmd.Flags().StringVar(&parseOutput, "snapshot", "", "snapshot output file")
	importCommentsCmd.Flags().StringVar(&storeBackend, "store", "", "metadata backend (csv, json, sqlite, postgres, mongo)")
}
