package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	errs "dyfav/pkg/errors"
	"dyfav/pkg/logger"
	"dyfav/pkg/storage"
)

// utf8BOM lets spreadsheet tools detect the encoding
const utf8BOM = "\ufeff"

// CSV keeps one file per record kind named {seq}_{crawler}_{kind}_{date}.csv.
// The sequence number is chosen once per store so every run writes fresh
// files.
type CSV struct {
	dir     string
	crawler string
	seq     int
	logger  logger.Logger

	mu     sync.Mutex
	tables map[string]*csvTable
}

type csvTable struct {
	path   string
	header []string
	rows   [][]string
	index  map[string]int
}

// NewCSV creates a CSV store under dir/csv
func NewCSV(dir, crawler string, log logger.Logger) (*CSV, error) {
	csvDir := filepath.Join(dir, "csv")
	if err := os.MkdirAll(csvDir, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "create csv directory")
	}
	seq, err := nextSequence(csvDir)
	if err != nil {
		return nil, err
	}
	return &CSV{
		dir:     csvDir,
		crawler: crawler,
		seq:     seq,
		logger:  log,
		tables:  make(map[string]*csvTable),
	}, nil
}

// nextSequence returns one more than the largest numeric file name prefix
// in dir, or 1.
func nextSequence(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeStorage, err, "list "+dir)
	}
	highest := 0
	for _, e := range entries {
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(prefix); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

func (s *CSV) StoreContent(ctx context.Context, rec ContentRecord) error {
	return s.upsert(&rec)
}

func (s *CSV) StoreComment(ctx context.Context, rec CommentRecord) error {
	return s.upsert(&rec)
}

func (s *CSV) StoreCreator(ctx context.Context, rec CreatorRecord) error {
	return s.upsert(&rec)
}

// Close is a no-op; every upsert is already on disk
func (s *CSV) Close() error {
	return nil
}

// Path returns the file used for kind
func (s *CSV) Path(kind string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d_%s_%s_%s.csv", s.seq, s.crawler, kind, dateStamp()))
}

func (s *CSV) upsert(r record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(r)
	if err != nil {
		return err
	}

	i, exists := t.index[r.key()]
	if exists {
		if col := indexOf(t.header, "add_ts"); col >= 0 && col < len(t.rows[i]) {
			if v, err := strconv.ParseInt(t.rows[i][col], 10, 64); err == nil {
				r.timestamps().AddTS = v
			}
		}
	}
	r.timestamps().stamp(nowMillis())

	row := formatRow(r.fields())
	if exists {
		t.rows[i] = row
	} else {
		t.index[r.key()] = len(t.rows)
		t.rows = append(t.rows, row)
	}
	return t.flush()
}

func (s *CSV) table(r record) (*csvTable, error) {
	if t, ok := s.tables[r.kind()]; ok {
		return t, nil
	}
	t := &csvTable{
		path:   s.Path(r.kind()),
		header: columns(r),
		index:  make(map[string]int),
	}
	if err := t.load(r.keyColumn()); err != nil {
		return nil, err
	}
	s.tables[r.kind()] = t
	return t, nil
}

func (t *csvTable) load(keyColumn string) error {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "read "+t.path)
	}
	data = bytes.TrimPrefix(data, []byte(utf8BOM))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "parse "+t.path)
	}
	t.header = rows[0]
	keyCol := indexOf(t.header, keyColumn)
	if keyCol < 0 {
		return errs.New(errs.ErrorTypeStorage, fmt.Sprintf("%s has no %s column", t.path, keyColumn))
	}
	for _, row := range rows[1:] {
		if keyCol < len(row) {
			t.index[row[keyCol]] = len(t.rows)
		}
		t.rows = append(t.rows, row)
	}
	return nil
}

func (t *csvTable) flush() error {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(t.header); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "encode csv header")
	}
	if err := w.WriteAll(t.rows); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "encode csv rows")
	}
	if err := storage.WriteAtomic(t.path, buf.Bytes()); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "write "+t.path)
	}
	return nil
}

func formatRow(fs []field) []string {
	row := make([]string, len(fs))
	for i, f := range fs {
		row[i] = fmt.Sprint(f.value)
	}
	return row
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
