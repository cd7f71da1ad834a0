package catalog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Index provides lookups over a fixed set of facts. It is built once and
// never modified.
type Index struct {
	facts []Fact

	byCategory  map[FactCategory][]int // category -> indices into facts
	byPredicate map[string][]int       // predicate -> indices into facts
	byID        map[string]int
}

// NewIndex indexes facts. The slice is retained, not copied.
func NewIndex(facts []Fact) *Index {
	idx := &Index{
		facts:       facts,
		byCategory:  make(map[FactCategory][]int),
		byPredicate: make(map[string][]int),
		byID:        make(map[string]int, len(facts)),
	}
	for i, f := range facts {
		idx.byCategory[f.Category] = append(idx.byCategory[f.Category], i)
		idx.byPredicate[f.Predicate] = append(idx.byPredicate[f.Predicate], i)
		idx.byID[f.ID] = i
	}
	return idx
}

// ByCategory returns all facts of the given category.
func (x *Index) ByCategory(c FactCategory) []Fact {
	return x.collect(x.byCategory[c])
}

// ByPredicate returns all facts with the given predicate.
func (x *Index) ByPredicate(p string) []Fact {
	return x.collect(x.byPredicate[p])
}

// ByID returns the fact with the given id.
func (x *Index) ByID(id string) (Fact, bool) {
	i, ok := x.byID[id]
	if !ok {
		return Fact{}, false
	}
	return x.facts[i], true
}

// FactQuery filters facts. Non-empty filters are AND-combined.
type FactQuery struct {
	Category  FactCategory // exact category
	Predicate string       // exact predicate
	Text      string       // case-insensitive substring of predicate, description or any arg
	Offset    int          // number of results to skip
	Limit     int          // max results (0 = default 100, max 500)
}

// Query returns the facts matching q along with the total number of matches
// before offset and limit are applied.
func (x *Index) Query(q FactQuery) ([]Fact, int) {
	candidates := x.candidates(q)
	text := strings.ToLower(strings.TrimSpace(q.Text))

	var matched []Fact
	for _, i := range candidates {
		f := x.facts[i]
		if q.Category != "" && f.Category != q.Category {
			continue
		}
		if q.Predicate != "" && f.Predicate != q.Predicate {
			continue
		}
		if text != "" && !factContains(f, text) {
			continue
		}
		matched = append(matched, f)
	}

	total := len(matched)

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return nil, total
		}
		matched = matched[q.Offset:]
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, total
}

// candidates narrows the scan with the most selective index available.
func (x *Index) candidates(q FactQuery) []int {
	switch {
	case q.Predicate != "":
		return x.byPredicate[q.Predicate]
	case q.Category != "":
		return x.byCategory[q.Category]
	}
	all := make([]int, len(x.facts))
	for i := range all {
		all[i] = i
	}
	return all
}

func factContains(f Fact, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(f.Predicate), lowerQuery) ||
		strings.Contains(strings.ToLower(f.Description), lowerQuery) {
		return true
	}
	for _, a := range f.Args {
		if strings.Contains(strings.ToLower(a), lowerQuery) {
			return true
		}
	}
	return false
}

func (x *Index) collect(indices []int) []Fact {
	result := make([]Fact, 0, len(indices))
	for _, i := range indices {
		result = append(result, x.facts[i])
	}
	return result
}

// WriteJSONL writes every indexed fact as one JSON object per line.
func (x *Index) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, f := range x.facts {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("encoding fact %q: %w", f.ID, err)
		}
	}
	return nil
}

// ReadFactsJSONL decodes facts written by WriteJSONL. Blank lines are skipped.
func ReadFactsJSONL(r io.Reader) ([]Fact, error) {
	var facts []Fact
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(strings.TrimSpace(string(data))) == 0 {
			continue
		}
		var f Fact
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decoding fact on line %d: %w", line, err)
		}
		facts = append(facts, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading facts: %w", err)
	}
	return facts, nil
}

// WriteFactsJSONL writes the catalog's facts as JSONL.
func (c *Catalog) WriteFactsJSONL(w io.Writer) error {
	return c.index.WriteJSONL(w)
}
