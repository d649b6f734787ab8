// Package snapshot writes and replays fav.json, the flattened copy of every
// unique favorite in a capture.
//
// A snapshot has the shape of a single favorites page, so it can be replayed
// through the same extraction path as a live capture.
package snapshot

import (
	"bytes"
	"encoding/json"
	"iter"
	"os"

	"dyfav/pkg/aweme"
	errs "dyfav/pkg/errors"
	"dyfav/pkg/extractor"
	"dyfav/pkg/har"
	"dyfav/pkg/logger"
	"dyfav/pkg/storage"
)

// Document is the on-disk snapshot shape
type Document struct {
	StatusCode int               `json:"status_code"`
	AwemeList  []json.RawMessage `json:"aweme_list"`
	MaxCursor  int64             `json:"max_cursor"`
	MinCursor  int64             `json:"min_cursor"`
	HasMore    bool              `json:"has_more"`
	Total      int               `json:"total"`
}

// Encode renders items as a snapshot: two-space indentation, unescaped
// UTF-8 text, item keys in captured order.
func Encode(items []aweme.Item) ([]byte, error) {
	doc := Document{
		AwemeList: make([]json.RawMessage, len(items)),
		Total:     len(items),
	}
	for i, it := range items {
		raw, err := it.Document()
		if err != nil {
			return nil, err
		}
		doc.AwemeList[i] = raw
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParse, err, "encode snapshot")
	}
	return buf.Bytes(), nil
}

// Write atomically replaces path with a snapshot of items
func Write(path string, items []aweme.Item) error {
	data, err := Encode(items)
	if err != nil {
		return err
	}
	return storage.WriteAtomic(path, data)
}

// Read replays the snapshot at path through the extractor
func Read(path string, log logger.Logger) (extractor.Collection, extractor.Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extractor.Collection{}, extractor.Stats{}, errs.Wrap(errs.ErrorTypeFilesystem, err, "read snapshot")
	}
	if !json.Valid(data) {
		return extractor.Collection{}, extractor.Stats{}, errs.New(errs.ErrorTypeFormat, path+" is not valid JSON")
	}

	coll, stats := extractor.Extract(single(path, data), log)
	stats.Scanned, stats.Matched = 1, 1
	return coll, stats, nil
}

func single(path string, body []byte) iter.Seq[har.Exchange] {
	return func(yield func(har.Exchange) bool) {
		yield(har.Exchange{URL: path, Status: 200, Size: int64(len(body)), Body: body})
	}
}
