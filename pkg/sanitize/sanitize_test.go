package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Sunset at the beach", "Sunset at the beach"},
		{"slash", "Hi/There", "Hi_There"},
		{"all reserved", `a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"reserved run collapses", "a???b", "a_b"},
		{"newlines and tabs", "line1\nline2\r\n\tline3", "line1 line2 line3"},
		{"control characters removed", "a\x00b\x1fc\x7fd\u009fe", "abcde"},
		{"whitespace run", "a    b", "a b"},
		{"underscore run", "a___b", "a_b"},
		{"trim", "  _hello_  ", "hello"},
		{"only reserved", "///", ""},
		{"empty", "", ""},
		{"chinese", "今天的晚霞 #旅行", "今天的晚霞 #旅行"},
		{"ideographic space", "你好　　世界", "你好 世界"},
		{"control between spaces", "a \x01 b", "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.input))
		})
	}
}

func TestNameTruncatesByRune(t *testing.T) {
	long := strings.Repeat("好", 200)
	got := Name(long)
	assert.Equal(t, MaxLength, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}

func TestNameTrimsAfterTruncation(t *testing.T) {
	input := strings.Repeat("a", 79) + " tail"
	assert.Equal(t, strings.Repeat("a", 79), Name(input))
}

func TestFolder(t *testing.T) {
	assert.Equal(t, "Hi_There", Folder("Hi/There", "A"))
	assert.Equal(t, "7300000000000000001", Folder(" /// ", "7300000000000000001"))
	assert.Equal(t, "B", Folder("", "B"))
}

var samples = []string{
	"",
	"Hi/There",
	"  __ leading and trailing __  ",
	"a  b",
	"tab\there\nnew\rline",
	"\u0085next line\x1c",
	strings.Repeat("_ ", 100),
	strings.Repeat("x", 79) + "??" + strings.Repeat("y", 10),
	"emoji 🎉🎉 title | part 2",
}

func TestNameProperties(t *testing.T) {
	for _, s := range samples {
		assertSafe(t, s)
	}
}

func FuzzName(f *testing.F) {
	for _, s := range samples {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		assertSafe(t, s)
	})
}

func assertSafe(t *testing.T, s string) {
	t.Helper()
	got := Name(s)

	assert.Equal(t, got, Name(got), "not idempotent for %q", s)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), MaxLength)
	assert.False(t, strings.ContainsAny(got, reserved), "reserved char in %q", got)
	for _, r := range got {
		assert.False(t, isControl(r), "control char %U in %q", r, got)
	}
	if got != "" {
		assert.NotContains(t, " _", got[:1])
		assert.NotContains(t, " _", got[len(got)-1:])
	}
	assert.NotContains(t, got, "  ")
	assert.NotContains(t, got, "__")
}
