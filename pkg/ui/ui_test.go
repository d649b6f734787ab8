package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"dyfav/pkg/extractor"
	"dyfav/pkg/materializer"
	"dyfav/pkg/pipeline"

	"github.com/stretchr/testify/assert"
)

func TestColorsFollowSetting(t *testing.T) {
	SetColor(false)
	assert.Equal(t, "plain", Red("plain"))

	SetColor(true)
	defer SetColor(false)
	assert.Equal(t, "\033[31mplain\033[0m", Red("plain"))
}

func TestIsTerminalRejectsBuffers(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestProgressLine(t *testing.T) {
	SetColor(false)
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, 4, false)

	p.Observe(materializer.Result{ItemID: "A", Status: materializer.StatusDownloaded})
	p.Observe(materializer.Result{ItemID: "B", Status: materializer.StatusSkipped})
	p.Observe(materializer.Result{ItemID: "C", Status: materializer.StatusFailed, Err: errors.New("boom")})

	out := buf.String()
	last := out[strings.LastIndex(out, "\r"):]
	assert.Contains(t, last, "3/4")
	assert.Contains(t, last, "1 new")
	assert.Contains(t, last, "1 skipped")
	assert.Contains(t, last, "1 failed")
	assert.Contains(t, last, "━━━━━━━━━━━━━━━─────")
}

func TestProgressVerbose(t *testing.T) {
	SetColor(false)
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, 2, true)

	p.Observe(materializer.Result{ItemID: "A", Folder: "Hi_There", Status: materializer.StatusDownloaded})
	p.Observe(materializer.Result{ItemID: "B", Status: materializer.StatusFailed, Err: errors.New("404")})
	p.Complete()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"✓ [1/2] A Hi_There", "✗ [2/2] B  404"}, lines)
}

func TestETA(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewProgressDisplay(&bytes.Buffer{}, 10, false)
	p.startTime = start
	p.now = func() time.Time { return start.Add(20 * time.Second) }

	assert.Equal(t, "calculating...", p.eta())
	p.done = 2
	assert.Equal(t, "1m20s", p.eta())
	p.done = 10
	assert.Equal(t, "done", p.eta())
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))

	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
}

func TestRenderSummary(t *testing.T) {
	SetColor(false)
	var buf bytes.Buffer
	RenderSummary(&buf, &pipeline.Summary{
		RunID:      "run-1",
		Source:     "fav.har",
		Items:      3,
		Downloaded: 1,
		Skipped:    1,
		Failed:     1,
		Stored:     3,
		Failures:   []pipeline.Failure{{ItemID: "X", Stage: "download", Err: errors.New("not found")}},
		Duration:   3 * time.Second,
	})

	out := buf.String()
	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "fav.har")
	assert.Contains(t, out, "downloaded")
	assert.Contains(t, out, "records stored")
	assert.Contains(t, out, "records skipped")
	assert.Contains(t, out, "not found")
	assert.Contains(t, out, "3s")
}

func TestRenderStats(t *testing.T) {
	var buf bytes.Buffer
	RenderStats(&buf, "x.har", extractor.Stats{
		Scanned: 10, Matched: 3, Unique: 7, Duplicates: 2,
		Pages: []extractor.PageInfo{{Index: 4, Items: 9, HasMore: true, MaxCursor: 1700}},
	})

	out := buf.String()
	assert.Contains(t, out, "Capture x.har")
	assert.Contains(t, out, "unique items")
	assert.Contains(t, out, "1700")
}

type fakeSender struct {
	titles []string
}

func (f *fakeSender) Send(title, _ string) error {
	f.titles = append(f.titles, title)
	return errors.New("no desktop")
}

func TestNotifierSends(t *testing.T) {
	SetQuietMode(true)
	defer SetQuietMode(false)

	s := &fakeSender{}
	n := NewNotifierWithSender(s)
	n.SendSuccess("dyfav", "done")
	n.SendError("dyfav failed", "boom")
	assert.Equal(t, []string{"dyfav", "dyfav failed"}, s.titles)

	// Disabled notifiers never deliver.
	NewNotifier(false).SendSuccess("x", "y")
}
