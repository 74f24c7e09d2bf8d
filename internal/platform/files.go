package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Partial download constants. yt-dlp writes into a .part sibling and
// renames it on completion; pause and cancel leave it behind so a later
// run resumes instead of starting over.
const (
	PartSuffix = ".part"
)

// File name constraints
const (
	MaxFilenameLength   = 150
	FallbackFilename    = "download"
	InvalidNameReplacer = "_"
)

// Characters that are invalid in file names on at least one supported
// platform
var invalidFilenameChars = []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}

// EnsureDir creates the directory if it does not exist yet
func EnsureDir(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// PartPath returns the in-progress sibling of a destination path
func PartPath(destinationPath string) string {
	return destinationPath + PartSuffix
}

// HasPartFile reports whether a resumable partial download exists for the
// destination
func HasPartFile(destinationPath string) bool {
	info, err := os.Stat(PartPath(destinationPath))
	return err == nil && !info.IsDir()
}

// UniqueDestination returns destinationPath when nothing occupies it,
// otherwise the first "name (n).ext" variant that is free. A .part file
// counts as occupied: clobbering it would break an interrupted download.
func UniqueDestination(destinationPath string) string {
	if available(destinationPath) {
		return destinationPath
	}

	ext := filepath.Ext(destinationPath)
	base := strings.TrimSuffix(destinationPath, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if available(candidate) {
			return candidate
		}
	}
}

func available(path string) bool {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return false
	}
	if _, err := os.Stat(PartPath(path)); !os.IsNotExist(err) {
		return false
	}
	return true
}

// SanitizeFilename turns a video title into a usable file name: invalid
// characters are replaced, surrounding whitespace and dots are trimmed,
// and overlong names are cut down.
func SanitizeFilename(name string) string {
	for _, ch := range invalidFilenameChars {
		name = strings.ReplaceAll(name, ch, InvalidNameReplacer)
	}
	name = strings.Trim(name, " .")

	if runes := []rune(name); len(runes) > MaxFilenameLength {
		name = strings.Trim(string(runes[:MaxFilenameLength]), " .")
	}
	if name == "" {
		return FallbackFilename
	}
	return name
}
