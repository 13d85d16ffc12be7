package ytdlp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/italolelis/youcast/internal/engine"
)

type producedLine struct {
	Filepath string `json:"filepath"`
	Title    string `json:"title"`
}

// dispatchLine routes one stdout line to the listener. It reports whether the
// line was one of ours.
func dispatchLine(line string, l engine.Listener) (bool, error) {
	switch {
	case strings.HasPrefix(line, progressMarker+" "):
		ev, err := parseProgress(strings.TrimPrefix(line, progressMarker+" "))
		if err != nil {
			return true, err
		}

		switch ev.Status {
		case engine.StatusFinished:
			l.OnFinished()
		case engine.StatusDownloading:
			l.OnProgress(ev)
		}

		return true, nil
	case strings.HasPrefix(line, producedMarker+" "):
		var p producedLine
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, producedMarker+" ")), &p); err != nil {
			return true, fmt.Errorf("failed to decode produced file: %w", err)
		}

		if p.Filepath == "" {
			return true, nil
		}

		l.OnProduced(engine.ProducedEvent{
			Status: engine.StatusFinished,
			Path:   p.Filepath,
			Title:  p.Title,
		})

		return true, nil
	}

	return false, nil
}

// parseProgress reads "<status> <downloaded> <total> <estimate>"; yt-dlp prints NA for unknown values.
func parseProgress(s string) (engine.ProgressEvent, error) {
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return engine.ProgressEvent{}, fmt.Errorf("malformed progress line %q", s)
	}

	return engine.ProgressEvent{
		Status:             fields[0],
		DownloadedBytes:    parseBytes(fields[1]),
		TotalBytes:         parseBytes(fields[2]),
		TotalBytesEstimate: parseBytes(fields[3]),
	}, nil
}

func parseBytes(s string) uint64 {
	if s == "" || s == "NA" || s == "None" {
		return 0
	}

	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}

	return uint64(f)
}

// errorReason extracts the user-facing part of a yt-dlp error line:
// "ERROR: [youtube] abc123: Video unavailable" becomes "Video unavailable".
func errorReason(line string) string {
	reason := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "ERROR:"))

	if strings.HasPrefix(reason, "[") {
		if end := strings.Index(reason, "]"); end > 0 {
			rest := strings.TrimSpace(reason[end+1:])
			if _, msg, ok := strings.Cut(rest, ": "); ok && msg != "" {
				return strings.TrimSpace(msg)
			}

			if rest != "" {
				return rest
			}
		}
	}

	return reason
}
