// Package hartest builds capture documents for tests.
package hartest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"dyfav/pkg/har"
)

// FavoriteURL is a request URL that matches the favorites endpoint
const FavoriteURL = "https://www.douyin.com/aweme/v1/web/aweme/favorite/?device_platform=webapp&aid=6383&max_cursor=0&count=18"

// Builder accumulates entries in capture order
type Builder struct {
	entries []har.Entry
}

// New returns an empty builder
func New() *Builder {
	return &Builder{}
}

// Text adds an entry with a plain text body
func (b *Builder) Text(url string, status int, body string) *Builder {
	return b.Entry(url, status, har.Content{
		Size:     int64(len(body)),
		MimeType: "application/json; charset=utf-8",
		Text:     body,
	})
}

// Base64 adds an entry whose body is base64 encoded
func (b *Builder) Base64(url string, status int, body string) *Builder {
	return b.Entry(url, status, har.Content{
		Size:     int64(len(body)),
		MimeType: "application/json",
		Text:     base64.StdEncoding.EncodeToString([]byte(body)),
		Encoding: "base64",
	})
}

// Entry adds an entry with an arbitrary content descriptor
func (b *Builder) Entry(url string, status int, content har.Content) *Builder {
	b.entries = append(b.entries, har.Entry{
		Request:  har.Request{Method: "GET", URL: url},
		Response: har.Response{Status: status, Content: content},
	})
	return b
}

// Document returns the built capture
func (b *Builder) Document() *har.Document {
	entries := make([]har.Entry, len(b.entries))
	copy(entries, b.entries)
	return &har.Document{Log: &har.Log{Entries: entries}}
}

// Bytes returns the capture serialized as HAR JSON
func (b *Builder) Bytes() []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(b.Document()); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// WriteFile writes the capture into dir and returns its path
func (b *Builder) WriteFile(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "www.douyin.com.har")
	if err := os.WriteFile(path, b.Bytes(), 0644); err != nil {
		t.Fatalf("write capture: %v", err)
	}
	return path
}
