package model

// FormatInfo describes one downloadable format reported by the extractor
type FormatInfo struct {
	ID         string
	Ext        string
	Resolution string
	Note       string // extractor's format note (e.g., "1080p", "audio only")
	Filesize   int64  // bytes, 0 if the extractor did not report one
}

// MediaInfo is the result of probing a URL without downloading it
type MediaInfo struct {
	Title    string
	Duration int // seconds, 0 if unknown
	Formats  []FormatInfo
}
