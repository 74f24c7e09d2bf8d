package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gitchzh/Yeguo-IDM/internal/config"
	"github.com/gitchzh/Yeguo-IDM/internal/download"
	"github.com/gitchzh/Yeguo-IDM/internal/history"
	"github.com/gitchzh/Yeguo-IDM/internal/logging"
	"github.com/gitchzh/Yeguo-IDM/internal/model"
	"github.com/gitchzh/Yeguo-IDM/internal/platform"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const (
	AppName = "Yeguo IDM"

	ShutdownTimeout  = 10 * time.Second
	DefaultExtension = "mp4"
)

// batchEntry is one download job in a -b file
type batchEntry struct {
	URL    string `yaml:"url"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// job is a resolved download request
type job struct {
	url    string
	format string
	dest   string // empty means derive from a probe
	title  string // known in advance for playlist entries
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		concurrency = flag.Int("c", config.DefaultConcurrency, "maximum parallel downloads")
		format      = flag.String("f", "", "yt-dlp format selector (empty lets yt-dlp choose)")
		outputDir   = flag.String("o", "", "download directory (default ~/Downloads)")
		timeoutSec  = flag.Int("t", config.DefaultTimeoutSeconds, "per-attempt timeout in seconds, 0 for none")
		retries     = flag.Int("r", config.DefaultRetryCount, "retries for transient network failures")
		batchFile   = flag.String("b", "", "YAML file with download jobs ({url, format, output} entries)")
		listFormats = flag.Bool("list-formats", false, "probe the URLs and list available formats instead of downloading")
		playlist    = flag.Bool("playlist", false, "expand playlist URLs into their videos")
		showHistory = flag.Bool("history", false, "print the session history after the run")
		statusOnly  = flag.String("status", "", "only list history records with this status (with -history)")
		exportPath  = flag.String("export", "", "export history to a .json or .csv file")
		rateLimit   = flag.Int("limit", 0, "download rate limit in KiB/s, 0 for unlimited")
		ffmpegPath  = flag.String("ffmpeg", "", "path to the ffmpeg install used for merges")
		verbose     = flag.Bool("v", false, "verbose logging")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", AppName, version)
		return 0
	}

	log := logging.NewFmtLogger()
	log.Verbose = *verbose

	cfg := config.Default()
	cfg.Concurrency = *concurrency
	cfg.TimeoutSeconds = *timeoutSec
	cfg.RetryCount = *retries
	if *outputDir != "" {
		cfg.DownloadRoot = *outputDir
	}
	if err := cfg.Validate(); err != nil {
		log.Errorf("invalid configuration: %v", err)
		return 2
	}

	var historyFilter history.Filter
	if *statusOnly != "" {
		status, err := model.ParseStatus(*statusOnly)
		if err != nil {
			log.Errorf("invalid -status value: %v", err)
			return 2
		}
		historyFilter.Status = status
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := platform.NewYTDLP(log)
	fetcher.SetAttemptTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)
	if *ffmpegPath != "" {
		fetcher.SetFFmpegLocation(*ffmpegPath)
	}
	if *rateLimit > 0 {
		fetcher.SetRateLimit(*rateLimit)
	}

	jobs, err := buildJobs(ctx, flag.Args(), *batchFile, *format, *playlist, log)
	if err != nil {
		log.Errorf("%v", err)
		return 2
	}
	if len(jobs) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] URL...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		return 2
	}

	if *listFormats {
		return listAllFormats(ctx, fetcher, jobs)
	}

	if err := platform.EnsureDir(cfg.DownloadRoot); err != nil {
		log.Errorf("cannot create download directory: %v", err)
		return 2
	}

	store, err := history.New()
	if err != nil {
		log.Errorf("cannot open history store: %v", err)
		return 2
	}
	defer store.Close()

	mgr := download.New(cfg, fetcher, download.WithLogger(log), download.WithHistory(store))

	// One terminal event arrives per task; the main loop counts them to
	// know when the run is over. The callback itself only prints.
	terminalCh := make(chan struct{}, len(jobs))
	unsubscribe := mgr.Subscribe(func(ev model.Event) {
		printEvent(log, ev)
		if ev.Task.Status.IsTerminal() {
			terminalCh <- struct{}{}
		}
	})
	defer unsubscribe()

	submitted := 0
	submitFailed := false
	for i, j := range jobs {
		dest := j.dest
		if dest != "" && !filepath.IsAbs(dest) {
			dest = filepath.Join(cfg.DownloadRoot, dest)
		}
		if dest == "" {
			dest = resolveDestination(ctx, fetcher, j, cfg.DownloadRoot, i+1, log)
		}

		if _, err := mgr.Submit(j.url, j.format, dest); err != nil {
			log.Errorf("submit %s: %v", j.url, err)
			submitFailed = true
			continue
		}
		submitted++
	}

	finished := 0
	for finished < submitted {
		select {
		case <-terminalCh:
			finished++
		case <-ctx.Done():
			log.Infof("interrupted, canceling active downloads")
			finished = submitted
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		log.Warnf("shutdown: %v", err)
	}

	tasks := mgr.Tasks()
	printSummary(tasks)

	if *showHistory {
		if err := printHistory(store, historyFilter); err != nil {
			log.Errorf("print history: %v", err)
		}
	}
	if *exportPath != "" {
		if err := exportHistory(store, *exportPath); err != nil {
			log.Errorf("export history: %v", err)
			return 1
		}
		fmt.Printf("history exported to %s\n", *exportPath)
	}

	if submitFailed {
		return 1
	}
	for _, task := range tasks {
		if task.Status == model.StatusFailed {
			return 1
		}
	}
	return 0
}

// buildJobs merges positional URLs with batch file entries and optionally
// expands playlist URLs into one job per video
func buildJobs(ctx context.Context, args []string, batchFile, defaultFormat string, expandPlaylists bool, log logging.Logger) ([]job, error) {
	var jobs []job

	for _, url := range args {
		jobs = append(jobs, job{url: url, format: defaultFormat})
	}

	if batchFile != "" {
		entries, err := readBatchFile(batchFile)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.URL == "" {
				return nil, fmt.Errorf("batch file %s: entry without url", batchFile)
			}
			j := job{url: e.URL, format: e.Format, dest: e.Output}
			if j.format == "" {
				j.format = defaultFormat
			}
			jobs = append(jobs, j)
		}
	}

	if !expandPlaylists {
		return jobs, nil
	}

	parser := platform.NewPlaylistParser()
	var expanded []job
	for _, j := range jobs {
		if !platform.IsPlaylistURL(j.url) {
			expanded = append(expanded, j)
			continue
		}

		pl, err := parser.Parse(ctx, j.url)
		if err != nil {
			return nil, fmt.Errorf("expand playlist %s: %w", j.url, err)
		}
		log.Infof("playlist %q: %d videos", pl.Title, len(pl.Entries))
		for _, entry := range pl.Entries {
			expanded = append(expanded, job{url: entry.URL, format: j.format, title: entry.Title})
		}
	}
	return expanded, nil
}

func readBatchFile(path string) ([]batchEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}

	var entries []batchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse batch file %s: %w", path, err)
	}
	return entries, nil
}

// resolveDestination picks a concrete output path for a job. Known titles
// (playlist entries) are used directly; otherwise a quick probe supplies
// title and extension. When the probe fails the download still proceeds
// under a generic name and the real error surfaces through the fetch
// pipeline, where it is classified and retried.
func resolveDestination(ctx context.Context, fetcher *platform.YTDLP, j job, root string, seq int, log logging.Logger) string {
	title := j.title
	ext := DefaultExtension

	if title == "" {
		info, err := fetcher.Probe(ctx, j.url)
		if err != nil {
			log.Warnf("probe %s: %v", j.url, err)
		} else {
			title = info.Title
			for _, f := range info.Formats {
				if f.ID == j.format && f.Ext != "" {
					ext = f.Ext
					break
				}
			}
		}
	}
	if title == "" {
		title = fmt.Sprintf("download-%d", seq)
	}

	name := platform.SanitizeFilename(title) + "." + ext
	return platform.UniqueDestination(filepath.Join(root, name))
}

// printEvent renders one manager event. Progress ticks go through the
// debug level so normal runs print one line per state change only.
func printEvent(log *logging.FmtLogger, ev model.Event) {
	title := ev.Task.DisplayTitle()

	switch ev.Type {
	case model.EventQueued:
		fmt.Printf("queued     %s\n", ev.Task.URL)
	case model.EventStarted:
		fmt.Printf("started    %s\n", title)
	case model.EventResumed:
		fmt.Printf("resumed    %s\n", title)
	case model.EventProgress:
		log.Debugf("%s: %.1f%%  %s  ETA %s", title, ev.Task.Progress*100, ev.Task.Speed, ev.Task.ETAString())
	case model.EventPaused:
		fmt.Printf("paused     %s\n", title)
	case model.EventCanceled:
		fmt.Printf("canceled   %s\n", title)
	case model.EventFailed:
		fmt.Printf("failed     %s: %s\n", title, ev.Task.Err)
	case model.EventCompleted:
		fmt.Printf("completed  %s (%s)\n", title, model.FormatBytes(ev.Task.FileSize))
	}
}

// listAllFormats probes every job URL and renders the formats as a table
func listAllFormats(ctx context.Context, fetcher *platform.YTDLP, jobs []job) int {
	code := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	for _, j := range jobs {
		info, err := fetcher.Probe(ctx, j.url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "probe %s: %v\n", j.url, err)
			code = 1
			continue
		}

		fmt.Printf("%s (%s)\n", info.Title, j.url)
		fmt.Fprintln(w, "ID\tEXT\tRESOLUTION\tNOTE\tSIZE")
		for _, f := range info.Formats {
			size := ""
			if f.Filesize > 0 {
				size = model.FormatBytes(f.Filesize)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.ID, f.Ext, f.Resolution, f.Note, size)
		}
		w.Flush()
		fmt.Println()
	}
	return code
}

func printSummary(tasks []model.Task) {
	if len(tasks) == 0 {
		return
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tPROGRESS\tSIZE\tFILE")
	for _, task := range tasks {
		size := ""
		if task.FileSize > 0 {
			size = model.FormatBytes(task.FileSize)
		}
		fmt.Fprintf(w, "%s\t%.0f%%\t%s\t%s\n", task.Status, task.Progress*100, size, task.DestinationPath)
	}
	w.Flush()
}

func printHistory(store *history.Store, filter history.Filter) error {
	records, err := store.Query(filter)
	if err != nil {
		return err
	}

	fmt.Printf("\nSession history (%d records):\n", len(records))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tURL\tERROR")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%s\t%s\n", shortID(rec.ID), rec.Status, rec.Progress*100, rec.URL, rec.Err)
	}
	return w.Flush()
}

// shortID keeps the prefix and the first uuid group, enough to tell tasks
// apart in a table
func shortID(id string) string {
	if len(id) > 13 {
		return id[:13]
	}
	return id
}

func exportHistory(store *history.Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	switch {
	case strings.HasSuffix(path, ".json"):
		err = store.ExportJSON(f, history.Filter{})
	case strings.HasSuffix(path, ".csv"):
		err = store.ExportCSV(f, history.Filter{})
	default:
		err = errors.New("unsupported export format, use a .json or .csv path")
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
