package model

import (
	"fmt"
	"strings"
	"time"
)

// Task represents a single download task. ID and URL are immutable;
// FormatSelector and DestinationPath are immutable once the task starts.
// While a task is non-terminal it is owned by the download manager and
// mutated only by its worker; everyone else receives snapshot copies.
type Task struct {
	ID              string
	URL             string
	FormatSelector  string
	DestinationPath string
	Status          Status
	Progress        float64 // 0.0 to 1.0, non-decreasing while Running
	Speed           string  // human readable speed (e.g., "1.2 MB/s")
	ETASec          int     // ETA in seconds, -1 if unknown
	Err             string  // error message, set only when Status is Failed
	Title           string  // video title, filled in by the fetcher
	FileSize        int64   // total size in bytes, 0 if unknown
	CreatedAt       time.Time
	StartedAt       time.Time // when download started
	FinishedAt      time.Time // when the task reached a terminal state
}

// ETAString returns ETA formatted as hh:mm:ss or mm:ss, or "—" if unknown
func (t *Task) ETAString() string {
	if t.ETASec <= 0 {
		return "—"
	}

	hours := t.ETASec / 3600
	minutes := (t.ETASec % 3600) / 60
	seconds := t.ETASec % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// DisplayTitle returns title, destination filename, or URL in order of preference
func (t *Task) DisplayTitle() string {
	if t.Title != "" && !strings.HasPrefix(t.Title, "http") {
		return t.Title
	}

	if t.DestinationPath != "" {
		parts := strings.FieldsFunc(t.DestinationPath, func(r rune) bool {
			return r == '/' || r == '\\'
		})
		if len(parts) > 0 {
			filename := parts[len(parts)-1]
			if idx := strings.LastIndex(filename, "."); idx > 0 {
				filename = filename[:idx]
			}
			return filename
		}
	}

	return t.URL
}

// Speed formatting thresholds
const (
	bytesPerKB = 1024.0
	bytesPerMB = 1024.0 * 1024.0
)

// FormatSpeed renders a transfer rate in the tier appropriate for its magnitude
func FormatSpeed(bytesPerSec float64) string {
	switch {
	case bytesPerSec >= bytesPerMB:
		return fmt.Sprintf("%.1f MB/s", bytesPerSec/bytesPerMB)
	case bytesPerSec >= bytesPerKB:
		return fmt.Sprintf("%.1f KB/s", bytesPerSec/bytesPerKB)
	case bytesPerSec > 0:
		return fmt.Sprintf("%.0f B/s", bytesPerSec)
	default:
		return ""
	}
}

// FormatBytes renders a byte count with a binary-unit suffix
func FormatBytes(n int64) string {
	switch {
	case n >= 1024*1024*1024:
		return fmt.Sprintf("%.2f GB", float64(n)/(1024*1024*1024))
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
