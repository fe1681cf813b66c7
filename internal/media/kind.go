package media

import "strings"

type Kind string

const (
	KindUnknown  Kind = ""
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
	KindImage    Kind = "image"
)

var extKinds = map[string]Kind{
	"mp3":  KindAudio,
	"wav":  KindAudio,
	"flac": KindAudio,
	"ogg":  KindAudio,
	"amr":  KindAudio,
	"mp4":  KindVideo,
	"webm": KindVideo,
	"mov":  KindVideo,

	"pdf":  KindDocument,
	"doc":  KindDocument,
	"docx": KindDocument,
	"xls":  KindDocument,
	"xlsx": KindDocument,
	"ppt":  KindDocument,
	"pptx": KindDocument,
	"txt":  KindDocument,
	"csv":  KindDocument,

	"jpg":  KindImage,
	"jpeg": KindImage,
	"png":  KindImage,
	"gif":  KindImage,
	"bmp":  KindImage,
	"webp": KindImage,
}

// Inline reports whether citations of this kind get a player.
func (k Kind) Inline() bool {
	return k == KindAudio || k == KindVideo
}

// Suffix returns the extension encoded in a source id: the text after the
// last underscore, up to the first dot. "clip_mp4.txt" yields "mp4".
func Suffix(sourceID string) string {
	last := sourceID
	if i := strings.LastIndex(sourceID, "_"); i >= 0 {
		last = sourceID[i+1:]
	}
	if i := strings.Index(last, "."); i >= 0 {
		last = last[:i]
	}
	return last
}

// KindOf classifies a source id by its encoded extension.
func KindOf(sourceID string) Kind {
	return extKinds[Suffix(sourceID)]
}

// KindOfExt classifies a plain file extension (without the dot).
func KindOfExt(ext string) Kind {
	return extKinds[strings.ToLower(ext)]
}
