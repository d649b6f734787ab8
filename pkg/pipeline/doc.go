// Package pipeline runs a whole favorites harvest.
//
// A run resolves the capture file, extracts the deduplicated collection,
// writes the fav.json snapshot and then hands the read-only collection to
// two independent consumers running concurrently:
//
//   - media: the materializer, through the download worker pool, guarded by
//     the output-root lock and recorded in the run checkpoint
//   - metadata: the configured store backend
//
// Per-item failures in either consumer never stop the other items; they are
// collected in the returned Summary.
//
// Basic usage:
//
//	p := pipeline.New(cfg, pipeline.Options{}, logger.GetLogger())
//	summary, err := p.Run(ctx, "")
//	if err != nil {
//		return err
//	}
//	fmt.Println(summary.Downloaded, summary.Skipped, summary.Failed)
package pipeline
