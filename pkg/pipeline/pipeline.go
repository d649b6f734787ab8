package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"dyfav/internal/downloader"
	"dyfav/pkg/aweme"
	"dyfav/pkg/checkpoint"
	"dyfav/pkg/config"
	"dyfav/pkg/douyin"
	errs "dyfav/pkg/errors"
	"dyfav/pkg/extractor"
	"dyfav/pkg/lock"
	"dyfav/pkg/logger"
	"dyfav/pkg/materializer"
	"dyfav/pkg/ratelimit"
	"dyfav/pkg/retry"
	"dyfav/pkg/snapshot"
	"dyfav/pkg/storage"
	"dyfav/pkg/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Options overrides the collaborators a Pipeline would otherwise build from
// its config. Nil fields fall back to the configured implementation.
type Options struct {
	Fetcher materializer.Fetcher
	Locker  lock.Locker
	Store   store.Store

	// SkipDownload and SkipStore disable one of the two consumers
	SkipDownload bool
	SkipStore    bool
	// SkipSnapshot disables writing fav.json
	SkipSnapshot bool

	// OnStart is called with the unique item count before any item is
	// processed
	OnStart func(items int)
	// OnResult is called once per materialized item, in completion order
	OnResult func(materializer.Result)
}

// Failure names one item that did not complete
type Failure struct {
	ItemID string
	Stage  string
	Err    error
}

// Summary is the outcome of one run
type Summary struct {
	RunID    string
	Source   string
	Snapshot string
	Extract  extractor.Stats

	Items        int
	Downloaded   int
	Skipped      int
	Failed       int
	Unsupported  int
	ImagesFailed int
	FilesWritten int
	BytesWritten int64

	Stored       int
	StoreFailed  int
	// textless content the backend declined to create
	StoreSkipped int

	Failures []Failure
	Duration time.Duration
}

// Pipeline wires capture decoding, extraction, materialization and
// metadata storage for one configuration
type Pipeline struct {
	cfg    *config.Config
	opts   Options
	logger logger.Logger
}

// New creates a Pipeline
func New(cfg *config.Config, opts Options, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pipeline{cfg: cfg, opts: opts, logger: log}
}

// Load reads source as a HAR capture, or as a fav.json snapshot when it is
// not one.
func (p *Pipeline) Load(source string) (extractor.Collection, extractor.Stats, error) {
	coll, stats, err := extractor.FromFile(source, p.cfg.Capture.Endpoint, p.logger)
	if err == nil {
		return coll, stats, nil
	}
	if !errs.Is(err, errs.ErrorTypeFormat) {
		return coll, stats, err
	}

	snapColl, snapStats, snapErr := snapshot.Read(source, p.logger)
	if snapErr != nil {
		// Report the capture error; the file is neither format.
		return extractor.Collection{}, extractor.Stats{}, err
	}
	p.logger.InfoWithFields("Source is a snapshot", map[string]interface{}{
		"path": source,
	})
	return snapColl, snapStats, nil
}

// ResolveSource returns source when set, else the first existing configured
// capture file.
func (p *Pipeline) ResolveSource(source string) (string, error) {
	if source != "" {
		if _, err := os.Stat(source); err != nil {
			return "", errs.Wrap(errs.ErrorTypeFilesystem, err, "capture file")
		}
		return source, nil
	}
	path, err := p.cfg.ResolveHARFile()
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeFilesystem, err, "capture file")
	}
	return path, nil
}

// Run executes the whole pipeline over source. Per-item failures are
// reported in the Summary; an error is returned only when the run could not
// proceed at all.
func (p *Pipeline) Run(ctx context.Context, source string) (*Summary, error) {
	start := time.Now()
	source, err := p.ResolveSource(source)
	if err != nil {
		return nil, err
	}

	summary := &Summary{RunID: uuid.NewString(), Source: source}
	log := p.logger.WithField("run_id", summary.RunID)

	coll, stats, err := p.Load(source)
	if err != nil {
		return nil, err
	}
	summary.Extract = stats
	summary.Items = coll.Len()
	logger.LogStage(log, "extract", map[string]interface{}{
		"source":     source,
		"unique":     stats.Unique,
		"duplicates": stats.Duplicates,
		"malformed":  stats.Malformed + stats.MissingID,
	})

	if !p.opts.SkipSnapshot && p.cfg.Capture.SnapshotFile != "" {
		if err := snapshot.Write(p.cfg.Capture.SnapshotFile, coll.Items); err != nil {
			return nil, err
		}
		summary.Snapshot = p.cfg.Capture.SnapshotFile
		log.InfoWithFields("Snapshot written", map[string]interface{}{
			"path":  summary.Snapshot,
			"items": coll.Len(),
		})
	}

	if p.opts.OnStart != nil {
		p.opts.OnStart(coll.Len())
	}

	// The two consumers share the read-only collection and report into
	// disjoint Summary fields.
	var (
		g             errgroup.Group
		downloadFails []Failure
		storeFails    []Failure
	)
	if !p.opts.SkipDownload && p.cfg.Download.Enabled {
		g.Go(func() error {
			fails, err := p.materialize(ctx, coll.Items, summary, log)
			downloadFails = fails
			return err
		})
	}
	if !p.opts.SkipStore {
		g.Go(func() error {
			fails, err := p.persist(ctx, coll.Items, summary, log)
			storeFails = fails
			return err
		})
	}
	err = g.Wait()

	summary.Failures = append(downloadFails, storeFails...)
	summary.Duration = time.Since(start)
	if err != nil {
		return summary, err
	}
	return summary, context.Cause(ctx)
}

// Download materializes the items of source without storing metadata or
// writing a snapshot
func (p *Pipeline) Download(ctx context.Context, source string) (*Summary, error) {
	opts := p.opts
	opts.SkipStore = true
	opts.SkipSnapshot = true
	return (&Pipeline{cfg: p.cfg, opts: opts, logger: p.logger}).Run(ctx, source)
}

func (p *Pipeline) materialize(ctx context.Context, items []aweme.Item, summary *Summary, log logger.Logger) ([]Failure, error) {
	root := p.cfg.Output.BaseDirectory
	media, err := storage.NewManager(root)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFilesystem, err, "prepare output directory")
	}

	cpMgr, err := checkpoint.NewManager(root, log)
	if err != nil {
		return nil, err
	}
	if err := cpMgr.Lock(); err != nil {
		return nil, err
	}
	defer cpMgr.Unlock()

	cp, err := cpMgr.Resume(summary.RunID)
	if err != nil {
		return nil, err
	}

	locker := p.opts.Locker
	if locker == nil {
		locker, err = lock.New(p.cfg, log)
		if err != nil {
			return nil, err
		}
		defer locker.Close()
	}

	fetcher := p.opts.Fetcher
	if fetcher == nil {
		fetcher = douyin.NewClient(p.cfg.Download, retry.FromConfig(p.cfg.Retry, log), log)
	}

	mat := materializer.New(fetcher, media, materializer.Options{
		Locker:     locker,
		ItemPacer:  ratelimit.NewPacer(p.cfg.Download.ItemDelay),
		ImagePacer: ratelimit.NewPacer(p.cfg.Download.ImageDelay),
	}, log)

	log.InfoWithFields("Materializing items", map[string]interface{}{
		"root":        media.Root(),
		"items":       len(items),
		"concurrency": p.cfg.Download.Concurrency,
	})

	results := downloader.Run(ctx, items, p.cfg.Download.Concurrency, mat, log, func(r downloader.DownloadResult) {
		cp.Apply(r.Result)
		if p.opts.OnResult != nil {
			p.opts.OnResult(r.Result)
		}
	})
	if err := cpMgr.Save(cp); err != nil {
		log.WithError(err).Warn("Failed to save checkpoint")
	}

	var fails []Failure
	for _, r := range results {
		switch r.Status {
		case materializer.StatusDownloaded:
			summary.Downloaded++
		case materializer.StatusSkipped:
			summary.Skipped++
		case materializer.StatusUnsupported:
			summary.Unsupported++
		default:
			summary.Failed++
			fails = append(fails, Failure{ItemID: r.ItemID, Stage: "download", Err: r.Err})
		}
		summary.ImagesFailed += r.ImagesFailed
	}
	summary.FilesWritten, summary.BytesWritten = media.Written()

	logger.LogStage(log, "materialize", map[string]interface{}{
		"downloaded":  summary.Downloaded,
		"skipped":     summary.Skipped,
		"failed":      summary.Failed,
		"unsupported": summary.Unsupported,
	})
	return fails, nil
}

func (p *Pipeline) persist(ctx context.Context, items []aweme.Item, summary *Summary, log logger.Logger) ([]Failure, error) {
	st := p.opts.Store
	if st == nil {
		var err error
		st, err = store.Open(ctx, p.cfg.Storage, log)
		if err != nil {
			return nil, err
		}
		defer st.Close()
	}

	crawler := p.cfg.Storage.CrawlerType
	var fails []Failure
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		content, creator := store.RecordsFromItem(item, crawler)
		err := st.StoreContent(ctx, content)
		skipped := errors.Is(err, store.ErrNotInserted)
		if skipped {
			err = nil
		}
		if err == nil && creator != nil {
			err = st.StoreCreator(ctx, *creator)
		}
		if err != nil {
			summary.StoreFailed++
			fails = append(fails, Failure{ItemID: item.ID, Stage: "store", Err: err})
			log.WithError(err).WarnWithFields("Store failed", map[string]interface{}{
				"aweme_id": item.ID,
			})
			continue
		}
		if skipped {
			summary.StoreSkipped++
			log.DebugWithFields("Content without text not inserted", map[string]interface{}{
				"aweme_id": item.ID,
			})
			continue
		}
		summary.Stored++
	}

	logger.LogStage(log, "store", map[string]interface{}{
		"backend": p.cfg.Storage.Backend,
		"stored":  summary.Stored,
		"skipped": summary.StoreSkipped,
		"failed":  summary.StoreFailed,
	})
	return fails, nil
}

// ImportComments stores the comments of a JSON file (a bare array or a
// {"comments": [...]} page) through the configured backend. It returns the
// number stored and the number of entries that could not be decoded.
func (p *Pipeline) ImportComments(ctx context.Context, path string) (stored, dropped int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, errs.Wrap(errs.ErrorTypeFilesystem, err, "read comments")
	}
	comments, dropped, err := aweme.DecodeComments(data)
	if err != nil {
		return 0, 0, err
	}

	st := p.opts.Store
	if st == nil {
		st, err = store.Open(ctx, p.cfg.Storage, p.logger)
		if err != nil {
			return 0, dropped, err
		}
		defer st.Close()
	}

	var storeErrs []error
	for _, c := range comments {
		if err := st.StoreComment(ctx, store.RecordFromComment(c)); err != nil {
			storeErrs = append(storeErrs, fmt.Errorf("comment %s: %w", c.ID, err))
			continue
		}
		stored++
	}
	p.logger.InfoWithFields("Comments imported", map[string]interface{}{
		"path":    path,
		"stored":  stored,
		"dropped": dropped,
	})
	return stored, dropped, errors.Join(storeErrs...)
}
