package domain

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Format is an output container / codec target
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatOGG  Format = "ogg"
	FormatOpus Format = "opus"
	FormatM4A  Format = "m4a"
	FormatFLAC Format = "flac"
	FormatMP4  Format = "mp4"
	FormatWebP Format = "webp"
)

var audioFormats = map[Format]bool{
	FormatMP3: true, FormatWAV: true, FormatOGG: true,
	FormatOpus: true, FormatM4A: true, FormatFLAC: true,
}

// ParseAudioFormat validates a user-supplied conversion target
func ParseAudioFormat(s string) (Format, bool) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	return f, audioFormats[f]
}

// IsAudio reports whether f is an audio-only format
func (f Format) IsAudio() bool { return audioFormats[f] }

// FormatFromPath derives the format from the file extension
func FormatFromPath(path string) Format {
	return Format(strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")))
}

// Asset is a local media file owned by exactly one job
type Asset struct {
	Path      string
	MimeType  string
	SizeBytes int64
	Title     string
}

// Format returns the container derived from the file name
func (a *Asset) Format() Format { return FormatFromPath(a.Path) }

// FileName returns the base name of the file
func (a *Asset) FileName() string { return filepath.Base(a.Path) }

const maxTitleLen = 80

var (
	unsafeTitleChars = regexp.MustCompile(`[^a-zA-Z0-9 ]`)
	spaceRuns        = regexp.MustCompile(` +`)
)

// SanitizeTitle turns a provider title into a safe file stem: anything but
// ASCII letters, digits and spaces is dropped.
func SanitizeTitle(title string) string {
	s := unsafeTitleChars.ReplaceAllString(title, "")
	s = strings.TrimSpace(spaceRuns.ReplaceAllString(s, " "))
	if len(s) > maxTitleLen {
		s = strings.TrimSpace(s[:maxTitleLen])
	}
	if s == "" {
		return "media"
	}
	return s
}
