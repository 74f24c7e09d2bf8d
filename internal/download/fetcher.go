package download

import (
	"context"

	"github.com/gitchzh/Yeguo-IDM/internal/model"
)

// ProgressFunc receives transfer telemetry from a fetcher. fraction is in
// [0,1]; etaSec is -1 when unknown. Called from the fetch goroutine, so
// implementations must be safe for concurrent use across tasks.
type ProgressFunc func(fraction float64, bytesPerSec float64, etaSec int)

// Request identifies one transfer for a fetcher
type Request struct {
	URL             string
	FormatSelector  string
	DestinationPath string // empty means the fetcher picks a name under its root
}

// FetchResult carries metadata the fetcher learned during the transfer
type FetchResult struct {
	Title    string
	FileSize int64
}

// Fetcher is the narrow contract to the external extraction/download
// collaborator. Probe resolves a URL into available formats without
// downloading; Fetch performs the transfer, reporting progress until the
// context is canceled or the transfer ends. Errors should be *TaskError
// so the manager can classify them.
type Fetcher interface {
	Probe(ctx context.Context, url string) (model.MediaInfo, error)
	Fetch(ctx context.Context, req Request, onProgress ProgressFunc) (FetchResult, error)
}

// Recorder receives task snapshots on every status change. Implemented by
// the history store.
type Recorder interface {
	Record(task model.Task) error
}
