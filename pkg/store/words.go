package store

import (
	"sort"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const maxWords = 100

// WordCount is one entry of a word frequency table
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "you": {}, "are": {}, "this": {}, "that": {}, "with": {},
	"我们": {}, "你们": {}, "他们": {}, "自己": {}, "一个": {}, "这个": {}, "那个": {},
	"就是": {}, "没有": {}, "什么": {}, "不是": {}, "可以": {}, "真的": {},
}

// Tokenize splits text into words. Latin and digit runs of two or more runes
// are words; runs of Han characters are split into overlapping pairs, which
// approximates word boundaries without a dictionary. Text is NFKC normalized
// and case folded first, so full-width and upper-case variants count as one.
func Tokenize(text string) []string {
	text = cases.Fold().String(norm.NFKC.String(text))

	var (
		tokens []string
		run    []rune
		han    bool
	)
	flush := func() {
		switch {
		case han && len(run) >= 2:
			for i := 0; i+1 < len(run); i++ {
				tokens = appendWord(tokens, string(run[i:i+2]))
			}
		case !han && len(run) >= 2:
			tokens = appendWord(tokens, string(run))
		}
		run = run[:0]
	}

	for _, r := range text {
		isHan := unicode.Is(unicode.Han, r)
		switch {
		case isHan:
			if !han {
				flush()
			}
			han = true
			run = append(run, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if han {
				flush()
			}
			han = false
			run = append(run, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func appendWord(tokens []string, w string) []string {
	if _, stop := stopWords[w]; stop {
		return tokens
	}
	return append(tokens, w)
}

// TopWords counts the words of texts and returns at most n of them, most
// frequent first with ties in lexical order.
func TopWords(texts []string, n int) []WordCount {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, w := range Tokenize(text) {
			counts[w]++
		}
	}

	out := make([]WordCount, 0, len(counts))
	for w, c := range counts {
		out = append(out, WordCount{Word: w, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
