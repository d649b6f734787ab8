package materializer

import (
	"context"
	"fmt"
	"strings"

	"dyfav/pkg/aweme"
	errs "dyfav/pkg/errors"
	"dyfav/pkg/lock"
	"dyfav/pkg/logger"
	"dyfav/pkg/ratelimit"
	"dyfav/pkg/sanitize"
	"dyfav/pkg/storage"
)

// Status is the outcome of materializing one item
type Status string

const (
	StatusDownloaded  Status = "downloaded"
	StatusSkipped     Status = "skipped"
	StatusFailed      Status = "failed"
	StatusUnsupported Status = "unsupported"
)

// logTitleRunes bounds the title shown in the per-item log line
const logTitleRunes = 50

var imageExtensions = []string{".jpg", ".webp", ".png"}

// Fetcher downloads a URL body
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Options tunes a Materializer. Zero values mean no locking and no pacing.
type Options struct {
	Locker     lock.Locker
	ItemPacer  ratelimit.Limiter
	ImagePacer ratelimit.Limiter
}

// Result reports what happened to one item
type Result struct {
	ItemID string
	Folder string
	Status Status
	// Files lists the names written during this call
	Files        []string
	ImagesFailed int
	Err          error
}

// Materializer turns items into media files and sidecars under a storage root
type Materializer struct {
	fetcher    Fetcher
	store      *storage.Manager
	locker     lock.Locker
	itemPacer  ratelimit.Limiter
	imagePacer ratelimit.Limiter
	logger     logger.Logger
}

// New creates a Materializer
func New(fetcher Fetcher, store *storage.Manager, opts Options, log logger.Logger) *Materializer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	m := &Materializer{
		fetcher:    fetcher,
		store:      store,
		locker:     opts.Locker,
		itemPacer:  opts.ItemPacer,
		imagePacer: opts.ImagePacer,
		logger:     log,
	}
	if m.locker == nil {
		m.locker = lock.NewMemory()
	}
	if m.itemPacer == nil {
		m.itemPacer = ratelimit.Unlimited{}
	}
	if m.imagePacer == nil {
		m.imagePacer = ratelimit.Unlimited{}
	}
	return m
}

// Materialize persists one item. Failures are reported in the Result and
// logged; they never abort the caller's run.
func (m *Materializer) Materialize(ctx context.Context, item aweme.Item) Result {
	res := Result{
		ItemID: item.ID,
		Folder: sanitize.Folder(item.DisplayTitle(), item.ID),
	}
	log := m.logger.WithFields(map[string]interface{}{
		"aweme_id": item.ID,
		"folder":   res.Folder,
	})

	log.InfoWithFields("Processing item", map[string]interface{}{
		"author": item.Author.Nickname,
		"title":  shorten(item.DisplayTitle(), logTitleRunes),
		"kind":   item.Kind.String(),
	})

	if item.Kind == aweme.KindOther {
		log.WarnWithFields("Unsupported item type", map[string]interface{}{
			"aweme_type": item.RawType,
		})
		res.Status = StatusUnsupported
		return res
	}

	unlock, err := m.locker.Lock(ctx, item.ID)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		log.WithError(err).Error("Could not lock item")
		return res
	}
	defer unlock()

	switch item.Kind {
	case aweme.KindVideo:
		m.video(ctx, item, &res, log)
	case aweme.KindImageSet:
		m.imageSet(ctx, item, &res, log)
	}

	if res.Err != nil {
		log.WithError(res.Err).Error("Item failed")
	}
	return res
}

func (m *Materializer) video(ctx context.Context, item aweme.Item, res *Result, log logger.Logger) {
	mediaName := item.ID + ".mp4"
	sidecarName := item.ID + ".json"

	if m.store.Exists(res.Folder, mediaName) && m.store.Exists(res.Folder, sidecarName) {
		log.Debug("Video already present, skipping")
		res.Status = StatusSkipped
		return
	}

	if item.Video == nil || len(item.Video.URLs) == 0 {
		res.Status = StatusFailed
		res.Err = errs.New(errs.ErrorTypeMissingField, "video "+item.ID+" has no play url")
		return
	}

	sidecar, err := item.Sidecar()
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		return
	}

	if err := m.itemPacer.Wait(ctx); err != nil {
		res.Status = StatusFailed
		res.Err = err
		return
	}

	data, err := m.fetcher.Fetch(ctx, item.Video.URLs[0])
	m.itemPacer.Done()
	if err != nil {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("download video %s: %w", item.ID, err)
		return
	}

	if err := m.store.WriteFile(res.Folder, mediaName, data); err != nil {
		res.Status = StatusFailed
		res.Err = err
		return
	}
	res.Files = append(res.Files, mediaName)

	if err := m.store.WriteFile(res.Folder, sidecarName, sidecar); err != nil {
		res.Status = StatusFailed
		res.Err = err
		return
	}
	res.Files = append(res.Files, sidecarName)

	log.InfoWithFields("Video saved", map[string]interface{}{
		"size": formatSize(len(data), mb),
	})
	res.Status = StatusDownloaded
}

func (m *Materializer) imageSet(ctx context.Context, item aweme.Item, res *Result, log logger.Logger) {
	sidecarName := item.ID + ".json"

	if m.store.Exists(res.Folder, sidecarName) {
		if _, ok := m.store.FirstExisting(res.Folder, imageNames(item.ID, 1)...); ok {
			log.Debug("Image set already present, skipping")
			res.Status = StatusSkipped
			return
		}
	}

	if len(item.Images) == 0 {
		res.Status = StatusFailed
		res.Err = errs.New(errs.ErrorTypeMissingField, "image set "+item.ID+" has no images")
		return
	}

	sidecar, err := item.Sidecar()
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		return
	}

	saved, present := 0, 0
	paced := false
	for i, img := range item.Images {
		index := i + 1
		if _, ok := m.store.FirstExisting(res.Folder, imageNames(item.ID, index)...); ok {
			present++
			continue
		}
		if len(img.URLs) == 0 {
			log.WarnWithFields("Image has no url, skipping", map[string]interface{}{
				"index": index,
			})
			res.ImagesFailed++
			continue
		}

		pacer := m.imagePacer
		if !paced {
			pacer = m.itemPacer
			paced = true
		}
		if err := pacer.Wait(ctx); err != nil {
			res.Status = StatusFailed
			res.Err = err
			return
		}

		url := img.URLs[0]
		data, err := m.fetcher.Fetch(ctx, url)
		m.itemPacer.Done()
		m.imagePacer.Done()
		if err != nil {
			if ctx.Err() != nil {
				res.Status = StatusFailed
				res.Err = ctx.Err()
				return
			}
			log.WithError(err).WarnWithFields("Image download failed", map[string]interface{}{
				"index": index,
			})
			res.ImagesFailed++
			continue
		}

		name := fmt.Sprintf("%s_%d%s", item.ID, index, extensionFor(url))
		if err := m.store.WriteFile(res.Folder, name, data); err != nil {
			res.Status = StatusFailed
			res.Err = err
			return
		}
		res.Files = append(res.Files, name)
		saved++

		log.DebugWithFields("Image saved", map[string]interface{}{
			"index": index,
			"size":  formatSize(len(data), kb),
		})
	}

	if saved+present == 0 {
		res.Status = StatusFailed
		res.Err = errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("no image of %s could be downloaded", item.ID))
		return
	}

	wrote, err := m.store.WriteIfAbsent(res.Folder, sidecarName, sidecar)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		return
	}
	if wrote {
		res.Files = append(res.Files, sidecarName)
	}

	log.InfoWithFields("Image set saved", map[string]interface{}{
		"images": saved,
		"failed": res.ImagesFailed,
	})
	res.Status = StatusDownloaded
}

// extensionFor picks the image extension by looking for a format name
// anywhere in the url, since CDN urls often carry it in the path or query.
func extensionFor(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "webp"):
		return ".webp"
	case strings.Contains(lower, "png"):
		return ".png"
	default:
		return ".jpg"
	}
}

func imageNames(id string, index int) []string {
	names := make([]string, len(imageExtensions))
	for i, ext := range imageExtensions {
		names[i] = fmt.Sprintf("%s_%d%s", id, index, ext)
	}
	return names
}

const (
	kb = 1 << 10
	mb = 1 << 20
)

func formatSize(n int, unit int) string {
	if unit == mb {
		return fmt.Sprintf("%.2f MB", float64(n)/mb)
	}
	return fmt.Sprintf("%.1f KB", float64(n)/kb)
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
