package annotate

import (
	"regexp"
	"strings"
)

const (
	answerOpen  = "<answer>"
	answerClose = "</answer>"
)

var locationBlockRe = regexp.MustCompile(`(?s)<location>(.*?)</location>`)

// Parsed is the outcome of ParseAnswer: either *Tagged or *Untagged.
type Parsed interface {
	// Content is the text stored on the assistant message.
	Content() string
	// Sources is nil for untagged responses.
	Sources() SourceSet
}

// Tagged is a response that carried <answer> markers and location metadata.
type Tagged struct {
	Body  string
	Set   SourceSet
	Stats RewriteStats
}

func (t *Tagged) Content() string    { return t.Body }
func (t *Tagged) Sources() SourceSet { return t.Set }

// Untagged is a plain response; only location blocks are stripped.
type Untagged struct {
	Body string
}

func (u *Untagged) Content() string    { return u.Body }
func (u *Untagged) Sources() SourceSet { return nil }

// ParseAnswer converts a raw model response into message content.
func ParseAnswer(raw string) Parsed {
	if !strings.Contains(raw, answerClose) {
		return &Untagged{Body: stripFirstLocation(raw)}
	}

	body, tail := splitAnswer(raw)

	var inner string
	if m := locationBlockRe.FindStringSubmatchIndex(body); m != nil {
		inner = body[m[2]:m[3]]
		body = strings.TrimSpace(body[:m[0]] + body[m[1]:])
		tail = locationOpen + inner + locationClose + "\n" + tail
	}

	set := ExtractSources(strings.Split(tail, "\n"))
	rewritten, st := RewriteCitationsStats(body, set)
	return &Tagged{Body: rewritten, Set: set, Stats: st}
}

// splitAnswer returns the text inside the first answer block and everything
// after its closing marker. A missing opening marker means the body starts
// at the beginning of the response.
func splitAnswer(raw string) (body, tail string) {
	end := strings.Index(raw, answerClose)
	head := raw[:end]
	if i := strings.Index(head, answerOpen); i >= 0 {
		head = head[i+len(answerOpen):]
	}
	return head, raw[end+len(answerClose):]
}

func stripFirstLocation(s string) string {
	loc := locationBlockRe.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return strings.TrimSpace(s[:loc[0]] + s[loc[1]:])
}
