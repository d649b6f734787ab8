package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	errs "dyfav/pkg/errors"
	"dyfav/pkg/logger"
	"dyfav/pkg/storage"
)

// JSON keeps one JSON array per record kind named {crawler}_{kind}_{date}.json.
// With word frequency enabled, every write of contents or comments also
// refreshes words/{crawler}_{kind}_{date}_word_freq.json.
type JSON struct {
	dir      string
	wordsDir string
	crawler  string
	words    bool
	logger   logger.Logger

	mu     sync.Mutex
	tables map[string]*jsonTable
}

type jsonTable struct {
	path  string
	rows  []json.RawMessage
	index map[string]int
}

// NewJSON creates a JSON store under dir/json
func NewJSON(dir, crawler string, wordFrequency bool, log logger.Logger) (*JSON, error) {
	s := &JSON{
		dir:      filepath.Join(dir, "json"),
		wordsDir: filepath.Join(dir, "words"),
		crawler:  crawler,
		words:    wordFrequency,
		logger:   log,
		tables:   make(map[string]*jsonTable),
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "create json directory")
	}
	return s, nil
}

func (s *JSON) StoreContent(ctx context.Context, rec ContentRecord) error {
	return s.upsert(&rec)
}

func (s *JSON) StoreComment(ctx context.Context, rec CommentRecord) error {
	return s.upsert(&rec)
}

func (s *JSON) StoreCreator(ctx context.Context, rec CreatorRecord) error {
	return s.upsert(&rec)
}

// Close is a no-op; every upsert is already on disk
func (s *JSON) Close() error {
	return nil
}

// Path returns the file used for kind
func (s *JSON) Path(kind string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_%s.json", s.crawler, kind, dateStamp()))
}

// WordsPath returns the word frequency file for kind
func (s *JSON) WordsPath(kind string) string {
	return filepath.Join(s.wordsDir, fmt.Sprintf("%s_%s_%s_word_freq.json", s.crawler, kind, dateStamp()))
}

func (s *JSON) upsert(r record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(r)
	if err != nil {
		return err
	}

	i, exists := t.index[r.key()]
	if exists {
		var prev Timestamps
		if err := json.Unmarshal(t.rows[i], &prev); err == nil && prev.AddTS != 0 {
			r.timestamps().AddTS = prev.AddTS
		}
	}
	r.timestamps().stamp(nowMillis())

	row, err := marshalNoEscape(r)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "encode "+r.kind())
	}
	if exists {
		t.rows[i] = row
	} else {
		t.index[r.key()] = len(t.rows)
		t.rows = append(t.rows, row)
	}

	data, err := marshalNoEscape(t.rows)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "encode "+t.path)
	}
	if err := storage.WriteAtomic(t.path, data); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "write "+t.path)
	}

	if s.words && (r.kind() == KindContents || r.kind() == KindComments) {
		// Analytics are best effort and never fail the record.
		if err := s.writeWordFrequency(r.kind(), t.rows); err != nil {
			s.logger.WithError(err).WarnWithFields("Word frequency update failed", map[string]interface{}{
				"kind": r.kind(),
			})
		}
	}
	return nil
}

func (s *JSON) table(r record) (*jsonTable, error) {
	if t, ok := s.tables[r.kind()]; ok {
		return t, nil
	}
	t := &jsonTable{path: s.Path(r.kind()), index: make(map[string]int)}

	data, err := os.ReadFile(t.path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "read "+t.path)
	case len(bytes.TrimSpace(data)) > 0:
		if err := json.Unmarshal(data, &t.rows); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeStorage, err, "parse "+t.path)
		}
		for i, row := range t.rows {
			var obj map[string]json.RawMessage
			if json.Unmarshal(row, &obj) != nil {
				continue
			}
			var key string
			if json.Unmarshal(obj[r.keyColumn()], &key) == nil {
				t.index[key] = i
			}
		}
	}

	s.tables[r.kind()] = t
	return t, nil
}

func (s *JSON) writeWordFrequency(kind string, rows []json.RawMessage) error {
	textField := "title"
	if kind == KindComments {
		textField = "content"
	}

	texts := make([]string, 0, len(rows))
	for _, row := range rows {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(row, &obj); err != nil {
			continue
		}
		var text string
		if json.Unmarshal(obj[textField], &text) == nil && text != "" {
			texts = append(texts, text)
		}
	}

	data, err := marshalNoEscape(TopWords(texts, maxWords))
	if err != nil {
		return err
	}
	return storage.WriteAtomic(s.WordsPath(kind), data)
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
