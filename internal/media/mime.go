package media

import (
	"path/filepath"
	"strings"
)

const defaultMIMEType = "application/octet-stream"

var mimeTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"m4a":  "audio/mp4",
	"aac":  "audio/aac",
	"wav":  "audio/wav",
	"webm": "audio/webm",
	"opus": "audio/ogg",
	"ogg":  "audio/ogg",
	"flac": "audio/flac",
	"mp4":  "video/mp4",
	"mkv":  "video/x-matroska",
}

// MIMEType maps a format name to the content type used for playback and downloads.
func MIMEType(format string) string {
	if t, ok := mimeTypes[strings.ToLower(strings.TrimPrefix(format, "."))]; ok {
		return t
	}

	return defaultMIMEType
}

// MIMETypeForPath resolves the content type from the file extension, falling back to format.
func MIMETypeForPath(path, format string) string {
	if t := MIMEType(filepath.Ext(path)); t != defaultMIMEType {
		return t
	}

	return MIMEType(format)
}
