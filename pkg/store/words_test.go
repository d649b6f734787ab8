package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"latin", "Hello, World!", []string{"hello", "world"}},
		{"full width folds", "ＨＥＬＬＯ hello", []string{"hello", "hello"}},
		{"han pairs", "晚霞很美", []string{"晚霞", "霞很", "很美"}},
		{"mixed run", "vlog日常", []string{"vlog", "日常"}},
		{"hashtag", "#旅行 #travel", []string{"旅行", "travel"}},
		{"short and stop words", "a I the 我们 x1", []string{"x1"}},
		{"single han", "好", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestTopWords(t *testing.T) {
	words := TopWords([]string{"go go rust", "rust go zig"}, 2)
	assert.Equal(t, []WordCount{{Word: "go", Count: 3}, {Word: "rust", Count: 2}}, words)

	assert.Empty(t, TopWords(nil, 10))
}
