package download

// Package download implements the core task pipeline: admission with a hard
// capacity cap, FIFO dispatch under a dynamic concurrency limit, per-task
// workers with retry and cooperative cancellation, and event fan-out to
// subscribers. The actual transfer is delegated to a Fetcher implementation.
