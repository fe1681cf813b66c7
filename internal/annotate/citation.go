package annotate

import (
	"regexp"
	"strings"

	"github.com/suPer8Hu/kb-chat/internal/media"
)

const (
	// Delimiter wraps rewritten citation tokens inside message content.
	Delimiter = "|||"
	// TokenPrefix starts every rewritten citation token.
	TokenPrefix = "TIMESTAMP:"
)

// citationRe matches "[<seconds> <source-id>]".
var citationRe = regexp.MustCompile(`\[(\d+)\s+([^\]]+)\]`)

// RewriteStats counts what happened to each citation marker in one pass.
type RewriteStats struct {
	Rewritten   int
	Dropped     int
	Passthrough int
}

// RewriteCitations turns citation markers into delimited timestamp tokens.
func RewriteCitations(answer string, sources SourceSet) string {
	out, _ := RewriteCitationsStats(answer, sources)
	return out
}

// RewriteCitationsStats is RewriteCitations plus per-outcome counts.
//
// Markers naming a source outside the set are kept verbatim. Listed sources
// whose kind cannot play inline are removed. Everything else becomes
// |||TIMESTAMP:<seconds>:<display>:<id>|||.
func RewriteCitationsStats(answer string, sources SourceSet) (string, RewriteStats) {
	var st RewriteStats
	matches := citationRe.FindAllStringSubmatchIndex(answer, -1)
	if len(matches) == 0 {
		return answer, st
	}

	var b strings.Builder
	b.Grow(len(answer))
	last := 0
	for _, m := range matches {
		b.WriteString(answer[last:m[0]])
		last = m[1]

		marker := answer[m[0]:m[1]]
		seconds := answer[m[2]:m[3]]
		id := answer[m[4]:m[5]]

		// ids carrying the delimiter would corrupt the later split
		if !sources.Has(id) || strings.Contains(id, Delimiter) {
			st.Passthrough++
			b.WriteString(marker)
			continue
		}
		if !media.KindOf(id).Inline() {
			st.Dropped++
			continue
		}

		st.Rewritten++
		b.WriteString(Token(seconds, id))
	}
	b.WriteString(answer[last:])
	return b.String(), st
}

// Token builds the delimited token for one citation.
func Token(seconds, id string) string {
	return Delimiter + TokenPrefix + seconds + ":" + FormatTime(seconds) + ":" + id + Delimiter
}
