package platform

import (
	"errors"
	"testing"

	"github.com/gitchzh/Yeguo-IDM/internal/download"
	"github.com/gitchzh/Yeguo-IDM/internal/logging"
)

func argsContain(args []string, want string) bool {
	for _, arg := range args {
		if arg == want {
			return true
		}
	}
	return false
}

func argsContainPair(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestBuildFetchArgs(t *testing.T) {
	y := NewYTDLP(logging.Nop{})
	req := download.Request{
		URL:             "https://example.com/watch?v=abc",
		FormatSelector:  "bestvideo+bestaudio",
		DestinationPath: "/downloads/video.mp4",
	}

	args := y.buildFetchArgs(req)

	for _, flag := range []string{"--newline", "--continue", "--no-playlist"} {
		if !argsContain(args, flag) {
			t.Errorf("Expected %s in args, got %v", flag, args)
		}
	}
	if !argsContainPair(args, "-f", "bestvideo+bestaudio") {
		t.Errorf("Expected format selector pair in args, got %v", args)
	}
	if !argsContainPair(args, "-o", "/downloads/video.mp4") {
		t.Errorf("Expected output pair in args, got %v", args)
	}
	if !argsContainPair(args, "--progress-template", progressTemplate) {
		t.Errorf("Expected progress template pair in args, got %v", args)
	}
	if args[len(args)-1] != req.URL {
		t.Errorf("Expected URL as the last argument, got %v", args[len(args)-1])
	}
}

func TestBuildFetchArgsOptionalFlags(t *testing.T) {
	y := NewYTDLP(logging.Nop{})
	req := download.Request{
		URL:             "https://example.com/watch?v=abc",
		DestinationPath: "/downloads/video.mp4",
	}

	args := y.buildFetchArgs(req)
	if argsContain(args, "-f") {
		t.Errorf("Expected no format flag without a selector, got %v", args)
	}
	if argsContain(args, "--limit-rate") {
		t.Errorf("Expected no rate limit flag by default, got %v", args)
	}

	y.SetRateLimit(500)
	y.SetFFmpegLocation("/opt/ffmpeg")
	args = y.buildFetchArgs(req)
	if !argsContainPair(args, "--limit-rate", "500K") {
		t.Errorf("Expected rate limit pair in args, got %v", args)
	}
	if !argsContainPair(args, "--ffmpeg-location", "/opt/ffmpeg") {
		t.Errorf("Expected ffmpeg location pair in args, got %v", args)
	}
}

type progressCall struct {
	fraction float64
	speed    float64
	eta      int
}

func TestProgressTrackerFeed(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected *progressCall // nil means no call
	}{
		{
			name:     "complete progress line",
			line:     "yg-progress:512/1024/NA/256.0/10",
			expected: &progressCall{fraction: 0.5, speed: 256.0, eta: 10},
		},
		{
			name:     "total unknown falls back to estimate",
			line:     "yg-progress:512/NA/2048.0/NA/NA",
			expected: &progressCall{fraction: 0.25, speed: 0, eta: -1},
		},
		{
			name:     "everything unknown still reports speed and eta defaults",
			line:     "yg-progress:0/NA/NA/NA/NA",
			expected: &progressCall{fraction: 0, speed: 0, eta: -1},
		},
		{
			name:     "float eta is truncated",
			line:     "yg-progress:100/1000/NA/50.5/3.7",
			expected: &progressCall{fraction: 0.1, speed: 50.5, eta: 3},
		},
		{
			name:     "ordinary yt-dlp output is ignored",
			line:     "[download] Destination: /downloads/video.mp4",
			expected: nil,
		},
		{
			name:     "wrong field count is ignored",
			line:     "yg-progress:1/2/3",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []progressCall
			tracker := progressTracker{onProgress: func(fraction, bytesPerSec float64, etaSec int) {
				calls = append(calls, progressCall{fraction: fraction, speed: bytesPerSec, eta: etaSec})
			}}

			tracker.feed(tt.line)

			if tt.expected == nil {
				if len(calls) != 0 {
					t.Fatalf("Expected no progress call, got %v", calls)
				}
				return
			}
			if len(calls) != 1 {
				t.Fatalf("Expected one progress call, got %d", len(calls))
			}
			if calls[0] != *tt.expected {
				t.Errorf("Expected %+v, got %+v", *tt.expected, calls[0])
			}
		})
	}
}

func TestProgressTrackerFinalBytes(t *testing.T) {
	tracker := progressTracker{}
	tracker.feed("yg-progress:512/NA/NA/NA/NA")
	if got := tracker.finalBytes(); got != 512 {
		t.Errorf("Expected downloaded bytes 512, got %d", got)
	}

	tracker.feed("yg-progress:600/1024/NA/NA/NA")
	if got := tracker.finalBytes(); got != 1024 {
		t.Errorf("Expected total bytes 1024, got %d", got)
	}
}

func TestClassifyExecError(t *testing.T) {
	exitErr := errors.New("exit status 1")

	tests := []struct {
		name     string
		stderr   string
		expected download.ErrorKind
	}{
		{
			name:     "connection failure is a network error",
			stderr:   "ERROR: unable to download webpage: <urlopen error timed out>",
			expected: download.KindNetwork,
		},
		{
			name:     "server error is a network error",
			stderr:   "ERROR: unable to download video data: HTTP Error 503: Service Unavailable",
			expected: download.KindNetwork,
		},
		{
			name:     "unavailable video is an extraction error",
			stderr:   "ERROR: [youtube] dQw4w9WgXcQ: Video unavailable",
			expected: download.KindExtraction,
		},
		{
			name:     "unsupported site is an extraction error",
			stderr:   "ERROR: Unsupported URL: https://example.com/nope",
			expected: download.KindExtraction,
		},
		{
			name:     "forbidden access is an extraction error",
			stderr:   "ERROR: unable to download video data: HTTP Error 403: Forbidden",
			expected: download.KindExtraction,
		},
		{
			name:     "write failure is a filesystem error",
			stderr:   "ERROR: unable to open for writing: [Errno 13] Permission denied",
			expected: download.KindFilesystem,
		},
		{
			name:     "full disk is a filesystem error",
			stderr:   "ERROR: unable to write data: [Errno 28] No space left on device",
			expected: download.KindFilesystem,
		},
		{
			name:     "unrecognized output stays unknown",
			stderr:   "ERROR: something nobody has seen before",
			expected: download.KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyExecError("fetch", exitErr, tt.stderr)

			if got := download.Classify(err); got != tt.expected {
				t.Errorf("Expected kind %v, got %v (err: %v)", tt.expected, got, err)
			}
			if !errors.Is(err, exitErr) {
				t.Errorf("Expected classified error to wrap the exit error")
			}
		})
	}
}

func TestFirstErrorLine(t *testing.T) {
	tests := []struct {
		name     string
		stderr   string
		expected string
	}{
		{
			name:     "picks the ERROR line",
			stderr:   "WARNING: unable to fetch thumbnail\nERROR: Video unavailable\n",
			expected: "Video unavailable",
		},
		{
			name:     "falls back to the last line",
			stderr:   "first line\nsecond line\n\n",
			expected: "second line",
		},
		{
			name:     "empty stderr",
			stderr:   "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstErrorLine(tt.stderr); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestProbeInfoToMediaInfo(t *testing.T) {
	info := probeInfo{
		Title:    "Test Video",
		Duration: 125.7,
		Formats: []probeFormat{
			{FormatID: "137", Ext: "mp4", Resolution: "1920x1080", FormatNote: "1080p", Filesize: 1048576},
			{FormatID: "140", Ext: "m4a", Resolution: "audio only", FormatNote: "medium", FilesizeApprox: 524288},
		},
	}

	media := info.toMediaInfo()

	if media.Title != "Test Video" {
		t.Errorf("Expected title %q, got %q", "Test Video", media.Title)
	}
	if media.Duration != 125 {
		t.Errorf("Expected duration 125, got %d", media.Duration)
	}
	if len(media.Formats) != 2 {
		t.Fatalf("Expected 2 formats, got %d", len(media.Formats))
	}
	if media.Formats[0].Filesize != 1048576 {
		t.Errorf("Expected exact filesize, got %d", media.Formats[0].Filesize)
	}
	if media.Formats[1].Filesize != 524288 {
		t.Errorf("Expected approximate filesize fallback, got %d", media.Formats[1].Filesize)
	}
	if media.Formats[1].Note != "medium" {
		t.Errorf("Expected format note %q, got %q", "medium", media.Formats[1].Note)
	}
}
