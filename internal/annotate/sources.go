package annotate

import (
	"regexp"
	"sort"
	"strings"
)

const (
	locationOpen  = "<location>"
	locationClose = "</location>"
)

var locationTagRe = regexp.MustCompile(`</?location>`)

// SourceSet is the set of source ids listed in a response's location metadata.
// Keys are the raw ids; no normalization is applied.
type SourceSet map[string]struct{}

func (s SourceSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s SourceSet) Len() int { return len(s) }

// Sorted returns the ids in lexical order.
func (s SourceSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ExtractSources collects the distinct ids wrapped in <location> tags.
// Lines that do not start with the tag are skipped; a nil slice yields an
// empty set.
func ExtractSources(lines []string) SourceSet {
	set := SourceSet{}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, locationOpen) {
			continue
		}
		id := locationTagRe.ReplaceAllString(trimmed, "")
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}
