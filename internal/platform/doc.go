package platform

// Package platform contains external tooling glue: the yt-dlp process
// adapter behind download.Fetcher, playlist expansion, and filesystem
// helpers for destination and partial-download paths.
