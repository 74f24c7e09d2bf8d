package download

import (
	"context"
	"time"

	"github.com/gitchzh/Yeguo-IDM/internal/model"
)

// runTask drives one task to Paused or a terminal state. It is the only
// goroutine that mutates the task while it runs; API calls communicate
// through the context and the stop reason.
func (m *Manager) runTask(ctx context.Context, cancel context.CancelFunc, id string) {
	defer m.wg.Done()
	defer cancel()

	m.mu.Lock()
	ts := m.tasks[id]
	req := Request{
		URL:             ts.task.URL,
		FormatSelector:  ts.task.FormatSelector,
		DestinationPath: ts.task.DestinationPath,
	}
	evType := model.EventStarted
	if ts.resumedStart {
		evType = model.EventResumed
		ts.resumedStart = false
	}
	m.recordLocked(ts.task)
	m.publishLocked(evType, ts.task)
	m.mu.Unlock()

	res, err := m.fetchWithRetry(ctx, id, req)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.activeCount--
	reason := ts.stop
	ts.stop = stopNone
	ts.cancel = nil
	ts.task.Speed = ""
	ts.task.ETASec = -1

	switch {
	case err == nil:
		ts.task.Status = model.StatusCompleted
		ts.task.Progress = 1.0
		if ts.task.Title == "" && res.Title != "" {
			ts.task.Title = res.Title
		}
		if res.FileSize > 0 {
			ts.task.FileSize = res.FileSize
		}
		ts.task.FinishedAt = m.now()
		m.recordLocked(ts.task)
		m.publishLocked(model.EventCompleted, ts.task)

	case Classify(err) == KindCanceled:
		if reason == stopPause {
			// Partial file stays on disk; Resume picks it up from there.
			ts.task.Status = model.StatusPaused
			m.recordLocked(ts.task)
			m.publishLocked(model.EventPaused, ts.task)
		} else {
			ts.task.Status = model.StatusCanceled
			ts.task.FinishedAt = m.now()
			m.recordLocked(ts.task)
			m.publishLocked(model.EventCanceled, ts.task)
		}

	default:
		ts.task.Status = model.StatusFailed
		ts.task.Err = err.Error()
		ts.task.FinishedAt = m.now()
		m.log.Errorf("task %s failed: %v", id, err)
		m.recordLocked(ts.task)
		m.publishLocked(model.EventFailed, ts.task)
	}

	m.dispatchLocked()
}

// fetchWithRetry retries transient network failures with exponential
// backoff (2s, 4s, 8s, ...). Extraction and filesystem failures, and
// cancellation, end the loop immediately.
func (m *Manager) fetchWithRetry(ctx context.Context, id string, req Request) (FetchResult, error) {
	var lastErr error

	for attempt := 0; attempt <= m.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := m.retryBackoff << (attempt - 1)
			m.log.Infof("task %s: retrying in %s (attempt %d of %d)", id, backoff, attempt, m.cfg.RetryCount)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return FetchResult{}, NewTaskError(KindCanceled, "fetch", ctx.Err())
			}
		}

		res, err := m.runFetch(ctx, id, req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		kind := Classify(err)
		if kind != KindNetwork {
			return FetchResult{}, err
		}
		m.log.Warnf("task %s: attempt %d failed: %v", id, attempt+1, err)
	}

	return FetchResult{}, lastErr
}

// runFetch executes one fetch attempt on its own goroutine so that a
// collaborator stuck inside an uninterruptible call cannot block
// cancellation. On ctx cancel the attempt is abandoned; the buffered
// channel lets the stray goroutine finish and be collected whenever the
// collaborator eventually returns.
func (m *Manager) runFetch(ctx context.Context, id string, req Request) (FetchResult, error) {
	type outcome struct {
		res FetchResult
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		res, err := m.fetcher.Fetch(ctx, req, m.progressFunc(ctx, id))
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() != nil {
			// The attempt was interrupted; report the interruption, not
			// whatever secondary error the teardown produced.
			return FetchResult{}, NewTaskError(KindCanceled, "fetch", ctx.Err())
		}
		return out.res, out.err
	case <-ctx.Done():
		return FetchResult{}, NewTaskError(KindCanceled, "fetch", ctx.Err())
	}
}

// progressFunc binds a fetch attempt to its task. Updates are dropped once
// the attempt's context is canceled or the task is no longer Running, so an
// abandoned attempt cannot corrupt a later one. Progress never decreases.
func (m *Manager) progressFunc(ctx context.Context, id string) ProgressFunc {
	return func(fraction float64, bytesPerSec float64, etaSec int) {
		if ctx.Err() != nil {
			return
		}

		m.mu.Lock()
		ts, ok := m.tasks[id]
		if !ok || ts.task.Status != model.StatusRunning {
			m.mu.Unlock()
			return
		}

		if fraction > 1.0 {
			fraction = 1.0
		}
		if fraction > ts.task.Progress {
			ts.task.Progress = fraction
		}
		ts.task.Speed = model.FormatSpeed(bytesPerSec)
		ts.task.ETASec = etaSec

		m.publishLocked(model.EventProgress, ts.task)
		m.mu.Unlock()
	}
}
