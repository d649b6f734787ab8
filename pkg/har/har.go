// Package har decodes HTTP Archive captures and yields the response bodies of
// the exchanges that hit a given endpoint.
package har

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"unicode/utf8"

	errs "dyfav/pkg/errors"
)

// Document is the root of a capture
type Document struct {
	Log *Log `json:"log"`
}

// Log holds the recorded exchanges in capture order
type Log struct {
	Entries []Entry `json:"entries"`
}

// Entry is one recorded request/response pair
type Entry struct {
	Request  Request  `json:"request"`
	Response Response `json:"response"`
}

type Request struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

type Response struct {
	Status  int     `json:"status"`
	Content Content `json:"content"`
}

// Content describes a response body. Text is base64 when Encoding says so.
type Content struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
	Encoding string `json:"encoding"`
}

// Exchange is a matched, successful, decoded entry
type Exchange struct {
	// Index is the entry position in the capture
	Index    int
	URL      string
	Status   int
	MimeType string
	Size     int64
	Encoding string
	Body     []byte
}

// DecodeStats counts what happened to each entry while a sequence returned
// by Exchanges was consumed.
type DecodeStats struct {
	Total        int
	Matched      int
	NonOK        int
	Empty        int
	DecodeFailed int
	Decoded      int
	// Errors holds one decode error per DecodeFailed entry
	Errors []error
}

// Parse reads a capture document. A document without log.entries is a
// format error.
func Parse(r io.Reader) (*Document, error) {
	var raw struct {
		Log *struct {
			Entries *[]Entry `json:"entries"`
		} `json:"log"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFormat, err, "capture is not a JSON document")
	}
	if raw.Log == nil {
		return nil, errs.New(errs.ErrorTypeFormat, "capture has no log object")
	}
	if raw.Log.Entries == nil {
		return nil, errs.New(errs.ErrorTypeFormat, "capture log has no entries array")
	}
	return &Document{Log: &Log{Entries: *raw.Log.Entries}}, nil
}

// Load opens and parses the capture at path
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFilesystem, err, "open capture")
	}
	defer f.Close()

	doc, err := Parse(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Len returns the number of entries in the capture
func (d *Document) Len() int {
	if d == nil || d.Log == nil {
		return 0
	}
	return len(d.Log.Entries)
}

// Exchanges returns a lazy sequence of the entries whose request URL contains
// endpoint, answered with status 200, and whose body decodes to UTF-8 text.
// The returned stats are reset and refilled on every iteration.
func (d *Document) Exchanges(endpoint string) (iter.Seq[Exchange], *DecodeStats) {
	stats := &DecodeStats{}
	seq := func(yield func(Exchange) bool) {
		*stats = DecodeStats{}
		if d.Len() == 0 {
			return
		}
		for i, e := range d.Log.Entries {
			stats.Total++
			if !strings.Contains(e.Request.URL, endpoint) {
				continue
			}
			stats.Matched++

			if e.Response.Status != 200 {
				stats.NonOK++
				continue
			}
			if e.Response.Content.Text == "" {
				stats.Empty++
				continue
			}

			body, err := decodeBody(e.Response.Content)
			if err != nil {
				stats.DecodeFailed++
				stats.Errors = append(stats.Errors, fmt.Errorf("entry %d: %w", i, err))
				continue
			}
			stats.Decoded++

			ex := Exchange{
				Index:    i,
				URL:      e.Request.URL,
				Status:   e.Response.Status,
				MimeType: e.Response.Content.MimeType,
				Size:     e.Response.Content.Size,
				Encoding: e.Response.Content.Encoding,
				Body:     body,
			}
			if !yield(ex) {
				return
			}
		}
	}
	return seq, stats
}

func decodeBody(c Content) ([]byte, error) {
	var body []byte
	switch strings.ToLower(c.Encoding) {
	case "", "identity", "utf-8", "utf8":
		body = []byte(c.Text)
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(c.Text)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeDecode, err, "invalid base64 body")
		}
		body = decoded
	default:
		return nil, errs.New(errs.ErrorTypeDecode, fmt.Sprintf("unsupported body encoding %q", c.Encoding))
	}

	if !utf8.Valid(body) {
		return nil, errs.New(errs.ErrorTypeDecode, "body is not valid UTF-8")
	}
	return body, nil
}
