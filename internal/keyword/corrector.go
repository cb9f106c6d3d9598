package keyword

import (
	"strings"
	"sync"
)

// Corrector rewrites misspelled query terms to the closest indexed term.
// The vocabulary is cached and reloaded when the dictionary generation moves.
type Corrector struct {
	dictionary  TermDictionary
	maxDistance int

	mu         sync.RWMutex
	terms      map[string]uint64
	generation uint64
	loaded     bool
}

// CorrectorOption is a functional option for configuring Corrector.
type CorrectorOption func(*Corrector)

// WithMaxDistance sets the maximum edit distance for a replacement.
func WithMaxDistance(d int) CorrectorOption {
	return func(c *Corrector) {
		if d > 0 {
			c.maxDistance = d
		}
	}
}

// NewCorrector creates a Corrector over dict.
func NewCorrector(dict TermDictionary, opts ...CorrectorOption) *Corrector {
	c := &Corrector{dictionary: dict, maxDistance: 2}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Corrector) vocabulary() (map[string]uint64, error) {
	gen := c.dictionary.Generation()
	c.mu.RLock()
	if c.loaded && c.generation == gen {
		terms := c.terms
		c.mu.RUnlock()
		return terms, nil
	}
	c.mu.RUnlock()

	terms, err := c.dictionary.Terms()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.terms = terms
	c.generation = gen
	c.loaded = true
	c.mu.Unlock()
	return terms, nil
}

// Correct returns query with each unknown term replaced by its best suggestion.
// Best means smallest edit distance, then highest document frequency, then lexical order.
// Terms with no candidate within the max distance are kept as typed.
func (c *Corrector) Correct(query string) (string, error) {
	terms, err := c.vocabulary()
	if err != nil {
		return query, err
	}
	words := tokenizeQuery(query)
	for i, w := range words {
		if _, ok := terms[w]; ok {
			continue
		}
		if s, ok := c.suggest(terms, w); ok {
			words[i] = s
		}
	}
	return strings.Join(words, " "), nil
}

func (c *Corrector) suggest(terms map[string]uint64, word string) (string, bool) {
	best := ""
	bestDist := c.maxDistance + 1
	var bestFreq uint64
	wordLen := len([]rune(word))
	for term, freq := range terms {
		diff := len([]rune(term)) - wordLen
		if diff < 0 {
			diff = -diff
		}
		if diff > c.maxDistance {
			continue
		}
		d := LevenshteinDistance(word, term)
		if d > c.maxDistance {
			continue
		}
		if d < bestDist || (d == bestDist && (freq > bestFreq || (freq == bestFreq && term < best))) {
			best, bestDist, bestFreq = term, d, freq
		}
	}
	return best, best != ""
}

// LevenshteinDistance returns the number of single-rune insertions, deletions,
// or substitutions needed to turn a into b.
func LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
