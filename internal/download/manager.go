package download

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gitchzh/Yeguo-IDM/internal/config"
	"github.com/gitchzh/Yeguo-IDM/internal/logging"
	"github.com/gitchzh/Yeguo-IDM/internal/model"
)

// Manager limits and defaults
const (
	// DefaultCapacity bounds the total number of tracked tasks. Distinct
	// from the concurrency limit: capacity rejects submissions, the
	// concurrency limit only delays them.
	DefaultCapacity = 1000

	// TaskIDPrefix prefixes generated task IDs
	TaskIDPrefix = "task-"

	// retryBackoffBase is the first retry delay; each further attempt doubles it
	retryBackoffBase = 2 * time.Second
)

// stopReason distinguishes why a running worker was interrupted
type stopReason int

const (
	stopNone stopReason = iota
	stopPause
	stopCancel
)

// taskState pairs a task with its worker control handles. The cancel func
// is non-nil exactly while a worker owns the task.
type taskState struct {
	task          *model.Task
	cancel        context.CancelFunc
	stop          stopReason
	resumePending bool
	resumedStart  bool
}

// Manager owns task admission, the worker pool, and event fan-out. All
// methods are safe for concurrent use. Construct with New; there are no
// package-level instances.
type Manager struct {
	mu          sync.RWMutex
	tasks       map[string]*taskState
	order       []string // admission order of all task IDs
	queue       []string // FIFO of Queued IDs awaiting their first start
	resumeQueue []string // Paused IDs awaiting a restart, oldest first
	maxParallel int
	activeCount int
	capacity    int
	closed      bool

	cfg          config.Config
	fetcher      Fetcher
	log          logging.Logger
	history      Recorder
	now          func() time.Time
	retryBackoff time.Duration

	subscribers map[int]func(model.Event)
	nextSubID   int

	evMu      sync.Mutex
	evCond    *sync.Cond
	evQueue   []model.Event
	evClosed  bool
	relayDone chan struct{}

	wg sync.WaitGroup
}

// Option customizes a Manager at construction time
type Option func(*Manager)

// WithLogger replaces the default FmtLogger
func WithLogger(log logging.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithHistory attaches a store that receives a snapshot on every status change
func WithHistory(rec Recorder) Option {
	return func(m *Manager) { m.history = rec }
}

// WithCapacity overrides the hard cap on tracked tasks
func WithCapacity(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager that runs at most cfg.Concurrency tasks at once.
// The fetcher performs the actual transfers; the Manager never touches the
// network or the filesystem itself.
func New(cfg config.Config, fetcher Fetcher, opts ...Option) *Manager {
	m := &Manager{
		tasks:        make(map[string]*taskState),
		maxParallel:  cfg.Concurrency,
		capacity:     DefaultCapacity,
		cfg:          cfg,
		fetcher:      fetcher,
		log:          logging.NewFmtLogger(),
		now:          time.Now,
		retryBackoff: retryBackoffBase,
		subscribers:  make(map[int]func(model.Event)),
		relayDone:    make(chan struct{}),
	}
	if m.maxParallel < 1 {
		m.maxParallel = 1
	}
	for _, opt := range opts {
		opt(m)
	}
	m.evCond = sync.NewCond(&m.evMu)

	go m.relayEvents()

	return m
}

// Submit admits a new task in Queued state and returns its ID immediately.
// It fails only on an empty URL, a full manager, or a closed manager; the
// concurrency limit never rejects, it only delays.
func (m *Manager) Submit(url, formatSelector, destinationPath string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrManagerClosed
	}
	if url == "" {
		return "", ErrInvalidURL
	}
	if len(m.tasks) >= m.capacity {
		return "", ErrCapacity
	}

	task := &model.Task{
		ID:              generateTaskID(),
		URL:             url,
		FormatSelector:  formatSelector,
		DestinationPath: destinationPath,
		Status:          model.StatusQueued,
		ETASec:          -1,
		CreatedAt:       m.now(),
	}

	ts := &taskState{task: task}
	m.tasks[task.ID] = ts
	m.order = append(m.order, task.ID)
	m.queue = append(m.queue, task.ID)

	m.recordLocked(task)
	m.publishLocked(model.EventQueued, task)
	m.dispatchLocked()

	return task.ID, nil
}

// Cancel transitions the task toward Canceled. Queued and Paused tasks are
// canceled synchronously; for a Running task the owning worker is signaled
// and performs the transition, stopping I/O promptly. Canceling a task that
// already reached a terminal state is a no-op. The partial file, if any,
// stays on disk.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts, ok := m.tasks[id]
	if !ok {
		return ErrUnknownTask
	}

	switch ts.task.Status {
	case model.StatusCanceled, model.StatusFailed, model.StatusCompleted:
		return nil
	case model.StatusRunning:
		ts.stop = stopCancel
		ts.cancel()
	default: // Queued or Paused, no worker owns the task
		ts.task.Status = model.StatusCanceled
		ts.task.Speed = ""
		ts.task.ETASec = -1
		ts.task.FinishedAt = m.now()
		ts.resumePending = false
		m.recordLocked(ts.task)
		m.publishLocked(model.EventCanceled, ts.task)
	}
	return nil
}

// Pause signals the worker of a Running task to stop I/O while keeping the
// partial file for a later Resume. The status changes to Paused once the
// worker acknowledges, typically well under a second. A pause that races
// with a cancel resolves to Canceled.
func (m *Manager) Pause(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts, ok := m.tasks[id]
	if !ok {
		return ErrUnknownTask
	}
	if ts.task.Status != model.StatusRunning {
		return ErrNotRunning
	}

	if ts.stop == stopNone {
		ts.stop = stopPause
		ts.cancel()
	}
	return nil
}

// Resume marks a Paused task runnable again. It starts as soon as a worker
// slot frees, ahead of tasks that are still waiting for their first start.
func (m *Manager) Resume(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts, ok := m.tasks[id]
	if !ok {
		return ErrUnknownTask
	}
	if ts.task.Status != model.StatusPaused {
		return ErrNotPaused
	}
	if ts.resumePending {
		return nil
	}

	ts.resumePending = true
	m.resumeQueue = append(m.resumeQueue, id)
	m.dispatchLocked()
	return nil
}

// SetConcurrencyLimit adjusts how many tasks may run simultaneously.
// Raising it dispatches waiting tasks immediately; lowering it never
// preempts tasks that are already running.
func (m *Manager) SetConcurrencyLimit(n int) error {
	if n < 1 {
		return ErrInvalidConcurrency
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.maxParallel = n
	m.dispatchLocked()
	return nil
}

// ConcurrencyLimit returns the current limit
func (m *Manager) ConcurrencyLimit() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxParallel
}

// Subscribe registers fn to be invoked on every status or progress change
// of any task. Events for one task arrive in transition order with
// non-decreasing progress. Callbacks run sequentially on a dedicated relay
// goroutine, so they may call back into the Manager, but slow callbacks
// delay delivery for everyone. The returned function removes the
// subscription and is safe to call more than once.
func (m *Manager) Subscribe(fn func(model.Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// Task returns a snapshot of one task
func (m *Manager) Task(id string) (model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ts, ok := m.tasks[id]
	if !ok {
		return model.Task{}, ErrUnknownTask
	}
	return *ts.task, nil
}

// Tasks returns snapshots of all tracked tasks in admission order
func (m *Manager) Tasks() []model.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tasks := make([]model.Task, 0, len(m.order))
	for _, id := range m.order {
		tasks = append(tasks, *m.tasks[id].task)
	}
	return tasks
}

// Shutdown cancels every non-terminal task, waits for workers to finish and
// for pending events to be delivered, bounded by ctx. Idempotent.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	for _, id := range m.order {
		ts := m.tasks[id]
		switch ts.task.Status {
		case model.StatusQueued, model.StatusPaused:
			ts.task.Status = model.StatusCanceled
			ts.task.Speed = ""
			ts.task.ETASec = -1
			ts.task.FinishedAt = m.now()
			ts.resumePending = false
			m.recordLocked(ts.task)
			m.publishLocked(model.EventCanceled, ts.task)
		case model.StatusRunning:
			ts.stop = stopCancel
			ts.cancel()
		}
	}
	m.queue = nil
	m.resumeQueue = nil
	m.mu.Unlock()

	workersDone := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.evMu.Lock()
	m.evClosed = true
	m.evMu.Unlock()
	m.evCond.Broadcast()

	select {
	case <-m.relayDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// dispatchLocked starts waiting tasks while free slots remain. Resumed
// tasks go first; everything else follows submission order.
func (m *Manager) dispatchLocked() {
	if m.closed {
		return
	}
	for m.activeCount < m.maxParallel {
		ts, resumed := m.nextRunnableLocked()
		if ts == nil {
			return
		}

		m.activeCount++
		ts.task.Status = model.StatusRunning
		if ts.task.StartedAt.IsZero() {
			ts.task.StartedAt = m.now()
		}
		ts.stop = stopNone
		ts.resumedStart = resumed

		ctx, cancel := context.WithCancel(context.Background())
		ts.cancel = cancel

		m.wg.Add(1)
		go m.runTask(ctx, cancel, ts.task.ID)
	}
}

// nextRunnableLocked pops the next eligible task, skipping entries whose
// status changed while they waited (e.g. canceled in the queue).
func (m *Manager) nextRunnableLocked() (*taskState, bool) {
	for len(m.resumeQueue) > 0 {
		id := m.resumeQueue[0]
		m.resumeQueue = m.resumeQueue[1:]
		ts := m.tasks[id]
		if ts.task.Status == model.StatusPaused && ts.resumePending {
			ts.resumePending = false
			return ts, true
		}
	}
	for len(m.queue) > 0 {
		id := m.queue[0]
		m.queue = m.queue[1:]
		ts := m.tasks[id]
		if ts.task.Status == model.StatusQueued {
			return ts, false
		}
	}
	return nil, false
}

// publishLocked snapshots the task and appends the event to the delivery
// queue. Callers must hold mu so events are enqueued in transition order.
func (m *Manager) publishLocked(evType model.EventType, task *model.Task) {
	ev := model.Event{Type: evType, Task: *task}

	m.evMu.Lock()
	if m.evClosed {
		m.evMu.Unlock()
		return
	}
	m.evQueue = append(m.evQueue, ev)
	m.evMu.Unlock()
	m.evCond.Signal()
}

// recordLocked forwards a snapshot to the history store, if attached
func (m *Manager) recordLocked(task *model.Task) {
	if m.history == nil {
		return
	}
	if err := m.history.Record(*task); err != nil {
		m.log.Warnf("history record for task %s failed: %v", task.ID, err)
	}
}

// relayEvents delivers queued events to subscribers, one at a time, in
// enqueue order. Runs until Shutdown drains the queue.
func (m *Manager) relayEvents() {
	defer close(m.relayDone)
	for {
		m.evMu.Lock()
		for len(m.evQueue) == 0 && !m.evClosed {
			m.evCond.Wait()
		}
		if len(m.evQueue) == 0 {
			m.evMu.Unlock()
			return
		}
		ev := m.evQueue[0]
		m.evQueue = m.evQueue[1:]
		m.evMu.Unlock()

		m.mu.RLock()
		subs := make([]func(model.Event), 0, len(m.subscribers))
		for _, fn := range m.subscribers {
			subs = append(subs, fn)
		}
		m.mu.RUnlock()

		for _, fn := range subs {
			fn(ev)
		}
	}
}

// generateTaskID generates a unique task ID using UUID v7 for better uniqueness and time ordering
func generateTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to timestamp if UUID generation fails
		return fmt.Sprintf(TaskIDPrefix+"%d", time.Now().UnixNano())
	}
	return TaskIDPrefix + id.String()
}
