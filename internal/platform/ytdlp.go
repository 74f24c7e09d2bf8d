package platform

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/gitchzh/Yeguo-IDM/internal/download"
	"github.com/gitchzh/Yeguo-IDM/internal/logging"
	"github.com/gitchzh/Yeguo-IDM/internal/model"
)

// yt-dlp executable defaults
const (
	DefaultYTDLPCommand  = "yt-dlp"
	DefaultProbeTimeout  = 60 * time.Second
	SocketTimeoutSeconds = 60
)

// Progress reporting constants. The template makes yt-dlp emit one
// machine-readable line per progress tick on stdout.
const (
	ProgressPrefix     = "yg-progress:"
	progressFieldCount = 5

	progressTemplate = "download:" + ProgressPrefix +
		"%(progress.downloaded_bytes)s/%(progress.total_bytes)s/%(progress.total_bytes_estimate)s/%(progress.speed)s/%(progress.eta)s"
)

// Scanner buffer sizes
const (
	scannerInitialBuffer = 64 * 1024
	scannerMaxBuffer     = 1024 * 1024
)

// YTDLP adapts the yt-dlp command line tool to the download.Fetcher port.
// One instance is safe for concurrent use; every call spawns its own
// process.
type YTDLP struct {
	bin            string
	ffmpegPath     string
	probeTimeout   time.Duration
	attemptTimeout time.Duration
	rateLimitKBps  int
	log            logging.Logger
}

var _ download.Fetcher = (*YTDLP)(nil)

// NewYTDLP creates an adapter that runs the yt-dlp binary from PATH
func NewYTDLP(log logging.Logger) *YTDLP {
	if log == nil {
		log = logging.Nop{}
	}
	return &YTDLP{
		bin:          DefaultYTDLPCommand,
		probeTimeout: DefaultProbeTimeout,
		log:          log,
	}
}

// SetBinary overrides the yt-dlp executable path
func (y *YTDLP) SetBinary(path string) {
	y.bin = path
}

// SetFFmpegLocation points yt-dlp at a specific ffmpeg install
func (y *YTDLP) SetFFmpegLocation(path string) {
	y.ffmpegPath = path
}

// SetProbeTimeout bounds a single Probe call
func (y *YTDLP) SetProbeTimeout(d time.Duration) {
	y.probeTimeout = d
}

// SetAttemptTimeout bounds a single Fetch attempt, 0 means unbounded
func (y *YTDLP) SetAttemptTimeout(d time.Duration) {
	y.attemptTimeout = d
}

// SetRateLimit caps the transfer rate in KiB/s, 0 means unlimited
func (y *YTDLP) SetRateLimit(kbps int) {
	y.rateLimitKBps = kbps
}

// probeInfo mirrors the subset of `yt-dlp -J` output the app reads
type probeInfo struct {
	Title    string        `json:"title"`
	Duration float64       `json:"duration"`
	Formats  []probeFormat `json:"formats"`
}

type probeFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Resolution     string  `json:"resolution"`
	FormatNote     string  `json:"format_note"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
}

func (p *probeInfo) toMediaInfo() model.MediaInfo {
	info := model.MediaInfo{
		Title:    p.Title,
		Duration: int(p.Duration),
		Formats:  make([]model.FormatInfo, 0, len(p.Formats)),
	}
	for _, f := range p.Formats {
		size := int64(f.Filesize)
		if size == 0 {
			size = int64(f.FilesizeApprox)
		}
		info.Formats = append(info.Formats, model.FormatInfo{
			ID:         f.FormatID,
			Ext:        f.Ext,
			Resolution: f.Resolution,
			Note:       f.FormatNote,
			Filesize:   size,
		})
	}
	return info
}

// Probe asks yt-dlp for the metadata of a single video without downloading
func (y *YTDLP) Probe(ctx context.Context, url string) (model.MediaInfo, error) {
	if y.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.probeTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, y.bin, "-J", "--no-playlist", url)
	configureProcessGroup(cmd)

	out, err := cmd.Output()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return model.MediaInfo{}, download.NewTaskError(download.KindNetwork, "probe", ctxErr)
		}
		return model.MediaInfo{}, download.NewTaskError(download.KindCanceled, "probe", ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return model.MediaInfo{}, classifyExecError("probe", err, string(exitErr.Stderr))
		}
		return model.MediaInfo{}, classifyStartError("probe", err)
	}

	var info probeInfo
	if err := sonic.Unmarshal(out, &info); err != nil {
		return model.MediaInfo{}, download.NewTaskError(download.KindExtraction, "probe",
			fmt.Errorf("parse yt-dlp output: %w", err))
	}
	return info.toMediaInfo(), nil
}

// Fetch downloads one video to the requested destination, streaming progress
// back through onProgress. A canceled context kills the yt-dlp process group
// and leaves any .part file in place for a later resume.
func (y *YTDLP) Fetch(ctx context.Context, req download.Request, onProgress download.ProgressFunc) (download.FetchResult, error) {
	if y.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.attemptTimeout)
		defer cancel()
	}

	if dir := filepath.Dir(req.DestinationPath); dir != "." && dir != "" {
		if err := EnsureDir(dir); err != nil {
			return download.FetchResult{}, download.NewTaskError(download.KindFilesystem, "fetch",
				fmt.Errorf("create destination directory: %w", err))
		}
	}

	args := y.buildFetchArgs(req)
	cmd := exec.CommandContext(ctx, y.bin, args...)
	configureProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return download.FetchResult{}, download.NewTaskError(download.KindUnknown, "fetch", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return download.FetchResult{}, classifyStartError("fetch", err)
	}
	y.log.Debugf("yt-dlp started: %s %s", y.bin, strings.Join(args, " "))

	tracker := progressTracker{onProgress: onProgress}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxBuffer)
	for scanner.Scan() {
		tracker.feed(scanner.Text())
	}

	err = cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			// The attempt timed out; the task itself was not canceled,
			// so let the retry machinery take another shot.
			return download.FetchResult{}, download.NewTaskError(download.KindNetwork, "fetch",
				fmt.Errorf("attempt timed out: %w", ctxErr))
		}
		return download.FetchResult{}, download.NewTaskError(download.KindCanceled, "fetch", ctxErr)
	}
	if err != nil {
		return download.FetchResult{}, classifyExecError("fetch", err, stderr.String())
	}

	res := download.FetchResult{FileSize: tracker.finalBytes()}
	if info, statErr := os.Stat(req.DestinationPath); statErr == nil {
		res.FileSize = info.Size()
	}
	return res, nil
}

// buildFetchArgs assembles the yt-dlp command line for one download
func (y *YTDLP) buildFetchArgs(req download.Request) []string {
	args := []string{
		"--newline",
		"--continue",
		"--no-playlist",
		"--no-colors",
		"--socket-timeout", strconv.Itoa(SocketTimeoutSeconds),
		"--progress-template", progressTemplate,
		"-o", req.DestinationPath,
	}
	if req.FormatSelector != "" {
		args = append(args, "-f", req.FormatSelector)
	}
	if y.ffmpegPath != "" {
		args = append(args, "--ffmpeg-location", y.ffmpegPath)
	}
	if y.rateLimitKBps > 0 {
		args = append(args, "--limit-rate", fmt.Sprintf("%dK", y.rateLimitKBps))
	}
	return append(args, req.URL)
}

// progressTracker turns progress template lines into onProgress calls
type progressTracker struct {
	onProgress download.ProgressFunc
	downloaded int64
	total      int64
}

// feed parses one stdout line. Lines without the progress prefix and lines
// with unparseable fields are ignored.
func (p *progressTracker) feed(line string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ProgressPrefix) {
		return
	}

	fields := strings.Split(strings.TrimPrefix(line, ProgressPrefix), "/")
	if len(fields) != progressFieldCount {
		return
	}

	downloaded := parseBytesField(fields[0])
	total := parseBytesField(fields[1])
	if total <= 0 {
		total = parseBytesField(fields[2])
	}
	speed := parseFloatField(fields[3])
	eta := parseETAField(fields[4])

	if downloaded >= 0 {
		p.downloaded = downloaded
	}
	var fraction float64
	if total > 0 {
		p.total = total
		if downloaded >= 0 {
			fraction = float64(downloaded) / float64(total)
		}
	}

	if p.onProgress != nil {
		p.onProgress(fraction, speed, eta)
	}
}

// finalBytes is the best size estimate once the process has exited
func (p *progressTracker) finalBytes() int64 {
	if p.total > 0 {
		return p.total
	}
	return p.downloaded
}

// parseBytesField reads a byte count that yt-dlp may render as an integer,
// a float, or a placeholder for unknown. Returns -1 when unknown.
func parseBytesField(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" || s == "None" {
		return -1
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return -1
}

func parseFloatField(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" || s == "None" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseETAField(s string) int {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" || s == "None" {
		return -1
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return -1
	}
	return int(f)
}

// stderr markers for error classification, checked in order: filesystem
// problems are the most specific, then HTTP client errors (the server
// answered, a retry changes nothing), then network problems, which beat
// the remaining extraction ones because yt-dlp wraps transport failures
// in extractor messages.
var (
	filesystemMarkers = []string{
		"permission denied",
		"no space left on device",
		"read-only file system",
		"unable to open for writing",
		"unable to rename file",
		"unable to create directory",
		"file name too long",
	}
	permanentHTTPMarkers = []string{
		"http error 403",
		"http error 404",
		"http error 410",
	}
	networkMarkers = []string{
		"unable to download webpage",
		"unable to download video data",
		"connection reset",
		"connection refused",
		"connection aborted",
		"timed out",
		"timeout",
		"temporary failure in name resolution",
		"getaddrinfo failed",
		"network is unreachable",
		"http error 5",
		"incomplete read",
		"ssl:",
	}
	extractionMarkers = []string{
		"unsupported url",
		"is not a valid url",
		"unable to extract",
		"video unavailable",
		"private video",
		"this video is not available",
		"sign in to confirm",
		"age-restricted",
		"requested format is not available",
		"no video formats found",
	}
)

// classifyExecError maps a failed yt-dlp run onto a task error kind by
// sniffing its stderr output
func classifyExecError(op string, waitErr error, stderrText string) error {
	cause := waitErr
	if detail := firstErrorLine(stderrText); detail != "" {
		cause = fmt.Errorf("%s: %w", detail, waitErr)
	}

	msg := strings.ToLower(stderrText)
	switch {
	case containsAny(msg, filesystemMarkers):
		return download.NewTaskError(download.KindFilesystem, op, cause)
	case containsAny(msg, permanentHTTPMarkers):
		return download.NewTaskError(download.KindExtraction, op, cause)
	case containsAny(msg, networkMarkers):
		return download.NewTaskError(download.KindNetwork, op, cause)
	case containsAny(msg, extractionMarkers):
		return download.NewTaskError(download.KindExtraction, op, cause)
	}
	return download.NewTaskError(download.KindUnknown, op, cause)
}

// classifyStartError maps process launch failures. A missing binary is an
// environment problem, not something a retry can fix.
func classifyStartError(op string, err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return download.NewTaskError(download.KindFilesystem, op, fmt.Errorf("yt-dlp not found: %w", err))
	}
	return download.NewTaskError(download.KindUnknown, op, err)
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// firstErrorLine extracts the first "ERROR:" line from yt-dlp stderr, or
// the last non-empty line when there is none
func firstErrorLine(stderrText string) string {
	var lastLine string
	for _, line := range strings.Split(stderrText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "ERROR:"); ok {
			return strings.TrimSpace(rest)
		}
		lastLine = line
	}
	return lastLine
}
