package ui

import (
	"fmt"
	"io"
	"strconv"

	"dyfav/pkg/extractor"
	"dyfav/pkg/pipeline"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// maxFailureRows bounds the failure table
const maxFailureRows = 20

func newTable(out io.Writer, title string) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleRounded)
	if colorEnabled.Load() {
		tw.Style().Title.Colors = text.Colors{text.FgCyan, text.Bold}
	}
	tw.SetTitle(title)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
	})
	return tw
}

// RenderStats writes the capture statistics of source
func RenderStats(out io.Writer, source string, stats extractor.Stats) {
	tw := newTable(out, "Capture "+source)
	tw.AppendRows([]table.Row{
		{"entries scanned", stats.Scanned},
		{"favorites responses", stats.Matched},
		{"non-200 responses", stats.NonOK},
		{"empty bodies", stats.Empty},
		{"undecodable bodies", stats.DecodeFailed},
	})
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"pages parsed", stats.Parsed},
		{"pages without items", stats.WithoutData},
		{"unparseable pages", stats.ParseFailed},
	})
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"items seen", stats.RawItems},
		{"items without id", stats.MissingID},
		{"malformed items", stats.Malformed},
		{"duplicates", stats.Duplicates},
		{"unique items", stats.Unique},
	})
	tw.Render()

	if len(stats.Pages) == 0 {
		return
	}
	pages := table.NewWriter()
	pages.SetOutputMirror(out)
	pages.SetStyle(table.StyleRounded)
	pages.AppendHeader(table.Row{"entry", "items", "has more", "max cursor", "min cursor"})
	for _, pg := range stats.Pages {
		pages.AppendRow(table.Row{pg.Index, pg.Items, pg.HasMore, pg.MaxCursor, pg.MinCursor})
	}
	pages.Render()
}

// RenderSummary writes the outcome of a run
func RenderSummary(out io.Writer, s *pipeline.Summary) {
	tw := newTable(out, "Run "+s.RunID)
	tw.AppendRows([]table.Row{
		{"source", s.Source},
		{"unique items", s.Items},
	})
	if s.Snapshot != "" {
		tw.AppendRow(table.Row{"snapshot", s.Snapshot})
	}
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"downloaded", s.Downloaded},
		{"skipped", s.Skipped},
		{"unsupported", s.Unsupported},
		{"failed", colorCount(s.Failed)},
		{"images failed", colorCount(s.ImagesFailed)},
		{"files written", s.FilesWritten},
		{"bytes written", FormatBytes(s.BytesWritten)},
	})
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"records stored", s.Stored},
		{"records skipped", s.StoreSkipped},
		{"store failures", colorCount(s.StoreFailed)},
	})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"duration", FormatDuration(s.Duration)})
	tw.Render()

	if len(s.Failures) == 0 {
		return
	}
	fails := table.NewWriter()
	fails.SetOutputMirror(out)
	fails.SetStyle(table.StyleRounded)
	fails.AppendHeader(table.Row{"item", "stage", "error"})
	fails.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 80}})
	for i, f := range s.Failures {
		if i == maxFailureRows {
			fails.AppendFooter(table.Row{"", "", fmt.Sprintf("%d more", len(s.Failures)-maxFailureRows)})
			break
		}
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		fails.AppendRow(table.Row{f.ItemID, f.Stage, msg})
	}
	fails.Render()
}

func colorCount(n int) string {
	s := strconv.Itoa(n)
	if n > 0 {
		return Red(s)
	}
	return s
}
