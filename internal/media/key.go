package media

import "strings"

// transcriptMarker is appended to every indexed source id.
const transcriptMarker = ".txt"

// StorageKey maps a source id to the object key of the original file.
//
// The trailing ".txt" marker is dropped, then an "_<ext>" suffix naming a
// known kind becomes ".<ext>":
//
//	clip_mp4.txt      -> clip.mp4
//	q3_report_pdf.txt -> q3_report.pdf
//	notes.txt         -> notes
func StorageKey(sourceID string) string {
	base := strings.TrimSuffix(sourceID, transcriptMarker)
	i := strings.LastIndex(base, "_")
	if i <= 0 {
		return base
	}
	ext := base[i+1:]
	if KindOfExt(ext) == KindUnknown {
		return base
	}
	return base[:i] + "." + ext
}
