package utils

import (
	"fmt"
	"os"
	"time"
)

// FILEEXISTS REPORTS WHETHER A PATH IS STATABLE.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TRUNCATESTRING SHORTENS S TO MAXLENGTH RUNES, APPENDING "…" WHEN CUT — THE
// DOWNLOAD LOG'S PROMPT FIELD FORMAT (§6.3) REQUIRES THIS EXACT TRAILING
// CHARACTER, NOT AN ASCII ELLIPSIS.
func TruncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	return string(r[:maxLength]) + "…"
}

// FORMATDURATION RENDERS A DURATION AS A COMPACT HUMAN STRING, USED BY THE
// CLI AND BY RUN-HISTORY SUMMARIES.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
