package main

import (
	"testing"
	"time"

	"dyfav/pkg/pipeline"

	"github.com/stretchr/testify/assert"
)

func TestMaskURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"postgres://dyfav:secret@db:5432/dyfav?sslmode=disable", "postgres://dyfav:xxxxx@db:5432/dyfav?sslmode=disable"},
		{"mongodb://localhost:27017", "mongodb://localhost:27017"},
		{"mongodb://user@localhost:27017", "mongodb://user@localhost:27017"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, maskURL(tt.in))
	}
	assert.Equal(t, "********", maskSecret("pw"))
	assert.Empty(t, maskSecret(""))
}

func TestSourceFlags(t *testing.T) {
	assert.Empty(t, sourceFlags(nil))
	assert.Equal(t, map[string]interface{}{"har": "x.har"}, sourceFlags([]string{"x.har"}))
}

func TestFinishedMessage(t *testing.T) {
	msg := finishedMessage(&pipeline.Summary{Downloaded: 3, Skipped: 2, Failed: 1, Duration: 75 * time.Second})
	assert.Equal(t, "3 downloaded, 2 skipped, 1 failed in 1m15s", msg)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "download", "stats", "parse", "import-comments", "config", "checkpoint"} {
		assert.True(t, names[want], want)
	}
}
