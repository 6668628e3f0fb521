// Package lexical scores BOQ descriptions against catalog items with fuzzy
// text similarity plus unit, category, keyword and construction-feature bonuses.
package lexical

import (
	"sort"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kljensen/snowball"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldAccents strips combining marks ("béton" -> "beton"). Transformers are
// stateful so a chain is built per call.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeText lower-cases, folds accents and replaces punctuation with
// single spaces.
func NormalizeText(s string) string {
	s = foldAccents(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens splits normalized text into words.
func Tokens(s string) []string {
	return strings.Fields(NormalizeText(s))
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultStemCacheSize bounds the per-index stem cache.
const DefaultStemCacheSize = 8192

// Stemmer wraps snowball with a bounded LRU. A nil Stemmer stems without
// caching.
type Stemmer struct {
	cache *lru.Cache[string, string]
}

// NewStemmer returns a stemmer caching up to size words.
func NewStemmer(size int) *Stemmer {
	if size <= 0 {
		size = DefaultStemCacheSize
	}
	c, _ := lru.New[string, string](size)
	return &Stemmer{cache: c}
}

// Stem returns the English stem of word.
func (s *Stemmer) Stem(word string) string {
	if s != nil {
		if v, ok := s.cache.Get(word); ok {
			return v
		}
	}
	stemmed, err := snowball.Stem(word, "english", true)
	if err != nil || stemmed == "" {
		stemmed = word
	}
	if s != nil {
		s.cache.Add(word, stemmed)
	}
	return stemmed
}

// Len is the number of cached stems.
func (s *Stemmer) Len() int {
	if s == nil {
		return 0
	}
	return s.cache.Len()
}

func (s *Stemmer) stemTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = s.Stem(t)
	}
	return out
}
