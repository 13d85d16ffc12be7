package ytdlp

import (
	"strconv"
	"strings"

	"github.com/italolelis/youcast/internal/engine"
	"github.com/italolelis/youcast/internal/media"
)

const (
	progressMarker = "youcast-progress"
	producedMarker = "youcast-produced"

	progressTemplate = "download:" + progressMarker +
		" %(progress.status)s %(progress.downloaded_bytes)s %(progress.total_bytes)s %(progress.total_bytes_estimate)s"
	producedTemplate = "after_move:" + producedMarker + " %(.{filepath,title})j"

	defaultVideoContainer = "mp4"
)

// BuildArgs translates an invocation into the yt-dlp argument vector.
// The URL always comes last, after "--".
func BuildArgs(inv engine.Invocation, extra ...string) []string {
	args := []string{
		"--newline",
		"--progress",
		"--no-colors",
		"--progress-template", progressTemplate,
		"--print", producedTemplate,
		"-o", inv.OutputTemplate,
	}

	if inv.IncludePlaylist {
		args = append(args, "--yes-playlist")
	} else {
		args = append(args, "--no-playlist")
	}

	if inv.Selector != "" {
		args = append(args, "-f", inv.Selector)
	}

	switch inv.MediaType {
	case media.Audio:
		args = append(args, "-x", "--audio-format", inv.Container)

		if q := audioQuality(inv.Quality); q != "" {
			args = append(args, "--audio-quality", q)
		}
	case media.Video:
		container := inv.Container
		if container == "" {
			container = defaultVideoContainer
		}

		args = append(args, "--merge-output-format", container)
	}

	args = append(args, extra...)

	return append(args, "--", inv.URL)
}

// audioQuality maps "192" to "192K". Values 0-10 are yt-dlp's VBR scale and pass through,
// as do values that already carry a unit.
func audioQuality(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}

	n, err := strconv.Atoi(q)
	if err != nil || n <= 10 {
		return q
	}

	return q + "K"
}
