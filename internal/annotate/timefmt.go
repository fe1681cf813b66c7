package annotate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	timestampTagRe = regexp.MustCompile(`</?timestamp>`)
	digitRe        = regexp.MustCompile(`\d`)
)

// FormatTime renders a seconds offset as MM:SS, or HH:MM:SS past the hour.
// Anything that is not a whole, non-negative number of seconds is returned
// as-is (minus any <timestamp> wrapping) so it still reads as a label.
func FormatTime(raw string) string {
	clean := timestampTagRe.ReplaceAllString(raw, "")
	if !digitRe.MatchString(clean) {
		return clean
	}

	total, err := strconv.Atoi(strings.TrimSpace(clean))
	if err != nil || total < 0 {
		return clean
	}

	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
