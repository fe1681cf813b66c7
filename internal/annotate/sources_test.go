package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSources(t *testing.T) {
	assert.Equal(t, 0, ExtractSources(nil).Len())
	assert.Equal(t, 0, ExtractSources([]string{}).Len())

	set := ExtractSources([]string{"<location>foo_mp4.txt</location>", "ignored"})
	assert.Equal(t, []string{"foo_mp4.txt"}, set.Sorted())
}

func TestExtractSources_TrimsAndCollapsesDuplicates(t *testing.T) {
	set := ExtractSources([]string{
		"",
		"   <location>b_mp3.txt</location>  ",
		"<location>a_pdf.txt</location>",
		"<location>b_mp3.txt</location>",
		"<location></location>",
		"text <location>not_a_prefix.txt</location>",
	})
	assert.Equal(t, []string{"a_pdf.txt", "b_mp3.txt"}, set.Sorted())
	assert.True(t, set.Has("b_mp3.txt"))
	assert.False(t, set.Has("not_a_prefix.txt"))
}
