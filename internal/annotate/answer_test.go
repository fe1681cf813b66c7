package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnswer_EndToEnd(t *testing.T) {
	p := ParseAnswer("blah <answer>Check [5 clip_mp4.txt].</answer>\n<location>clip_mp4.txt</location>")
	tagged, ok := p.(*Tagged)
	require.True(t, ok, "expected tagged outcome, got %T", p)
	assert.Equal(t, []string{"clip_mp4.txt"}, tagged.Sources().Sorted())

	segs := Split(p.Content(), p.Sources() != nil)
	require.Len(t, segs, 3)
	assert.Equal(t, Segment{Kind: SegmentText, Text: "Check "}, segs[0])
	assert.Equal(t, Segment{Kind: SegmentCitation, Seconds: 5, DisplayTime: "00:05", SourceID: "clip_mp4.txt"}, segs[1])
	assert.Equal(t, Segment{Kind: SegmentText, Text: "."}, segs[2])
}

func TestParseAnswer_LocationInsideBodyIsMerged(t *testing.T) {
	raw := "<answer>Intro [10 talk_mp3.txt] and [20 deck_mp4.txt]\n<location>talk_mp3.txt</location>\n</answer>\n<location>deck_mp4.txt</location>\n"
	p := ParseAnswer(raw)
	assert.Equal(t, []string{"deck_mp4.txt", "talk_mp3.txt"}, p.Sources().Sorted())
	assert.Equal(t,
		"Intro |||TIMESTAMP:10:00:10:talk_mp3.txt||| and |||TIMESTAMP:20:00:20:deck_mp4.txt|||",
		p.Content())
}

func TestParseAnswer_TaggedWithoutMetadata(t *testing.T) {
	p := ParseAnswer("<answer>See [3 x_mp4.txt]</answer>")
	tagged, ok := p.(*Tagged)
	require.True(t, ok)
	assert.NotNil(t, tagged.Sources())
	assert.Equal(t, 0, tagged.Sources().Len())
	assert.Equal(t, "See [3 x_mp4.txt]", p.Content())
}

func TestParseAnswer_MissingOpenMarker(t *testing.T) {
	p := ParseAnswer("body [1 a_wav.txt]</answer><location>a_wav.txt</location>")
	assert.Equal(t, "body |||TIMESTAMP:1:00:01:a_wav.txt|||", p.Content())
}

func TestParseAnswer_Untagged(t *testing.T) {
	p := ParseAnswer("Just text [5 clip_mp4.txt]")
	_, ok := p.(*Untagged)
	require.True(t, ok)
	assert.Nil(t, p.Sources())
	assert.Equal(t, "Just text [5 clip_mp4.txt]", p.Content())

	p = ParseAnswer("Answer here.\n<location>\nclip_mp4.txt\n</location>\n")
	assert.Equal(t, "Answer here.", p.Content())
	assert.Nil(t, p.Sources())
}

func TestParseAnswer_Empty(t *testing.T) {
	p := ParseAnswer("")
	assert.Equal(t, "", p.Content())
	assert.Nil(t, p.Sources())
}
