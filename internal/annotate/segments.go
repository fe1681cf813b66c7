package annotate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/suPer8Hu/kb-chat/internal/media"
)

type SegmentKind string

const (
	SegmentText     SegmentKind = "text"
	SegmentCitation SegmentKind = "citation"
	// SegmentTime is a citation shown as its display time only.
	SegmentTime SegmentKind = "time"
)

type Segment struct {
	Kind        SegmentKind `json:"kind"`
	Text        string      `json:"text,omitempty"`
	Seconds     int         `json:"seconds,omitempty"`
	DisplayTime string      `json:"display_time,omitempty"`
	SourceID    string      `json:"source_id,omitempty"`
}

// tokenRe matches one complete delimited citation token. Delimiters that
// do not wrap a token are plain text.
var tokenRe = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(Delimiter) + `(` + regexp.QuoteMeta(TokenPrefix) + `.*?)` + regexp.QuoteMeta(Delimiter))

// Split breaks rewritten content into renderable segments, in order.
// hasSources reports whether the message carried a source set; without one
// citations degrade to their display time. Text segments keep every
// character of the content outside the tokens, including a literal "|||".
func Split(content string, hasSources bool) []Segment {
	matches := tokenRe.FindAllStringSubmatchIndex(content, -1)
	out := make([]Segment, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		if m[0] > last {
			out = append(out, Segment{Kind: SegmentText, Text: content[last:m[0]]})
		}
		last = m[1]

		seconds, display, id := ParseToken(content[m[2]:m[3]])
		seg := Segment{Kind: SegmentTime, DisplayTime: display, SourceID: id}
		seg.Seconds, _ = strconv.Atoi(seconds)
		if id != "" && hasSources && media.KindOf(id).Inline() {
			seg.Kind = SegmentCitation
		}
		out = append(out, seg)
	}
	if last < len(content) {
		out = append(out, Segment{Kind: SegmentText, Text: content[last:]})
	}
	return out
}

// ParseToken splits "TIMESTAMP:<seconds>:<display>:<id>". Seconds end at the
// first colon and the id starts after the last one, since the display time
// itself contains colons.
func ParseToken(part string) (seconds, display, id string) {
	rest := strings.TrimPrefix(part, TokenPrefix)
	i := strings.Index(rest, ":")
	if i < 0 {
		return "", "", ""
	}
	seconds, rest = rest[:i], rest[i+1:]
	j := strings.LastIndex(rest, ":")
	if j < 0 {
		return seconds, "", ""
	}
	return seconds, rest[:j], rest[j+1:]
}
