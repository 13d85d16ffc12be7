// Package strategy plans the ordered extraction strategies for a request and runs
// them as a fallback cascade against the media engine.
package strategy

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/italolelis/youcast/internal/media"
)

// Attempt is one extraction strategy: an engine format selector and the output container.
type Attempt struct {
	Selector  string `json:"selector"`
	Container string `json:"container"`
}

func (a Attempt) String() string {
	return a.Selector + " -> " + a.Container
}

const (
	audioPrimary = "bestaudio/best"
	anyBest      = "best"

	videoContainer   = "mp4"
	videoNativeMP4   = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]"
	videoBestMerge   = "bestvideo+bestaudio/best"
	videoCappedMerge = "bestvideo[height<=%[1]d]+bestaudio/best[height<=%[1]d]"
)

var heightPattern = regexp.MustCompile(`^\s*(\d{3,4})\s*[pP]?\s*$`)

// Plan returns the attempts for a request, most preferred first.
func Plan(req media.Request) []Attempt {
	if req.MediaType == media.Video {
		primary := videoNativeMP4
		if h, ok := HeightCeiling(req.Quality); ok {
			primary = fmt.Sprintf(videoCappedMerge, h)
		}

		return []Attempt{
			{Selector: primary, Container: videoContainer},
			{Selector: videoBestMerge, Container: videoContainer},
			{Selector: anyBest, Container: videoContainer},
		}
	}

	return []Attempt{
		{Selector: audioPrimary, Container: req.Format},
		{Selector: anyBest, Container: req.Format},
	}
}

// HeightCeiling parses a video quality such as "720" or "1080p".
func HeightCeiling(quality string) (int, bool) {
	m := heightPattern.FindStringSubmatch(quality)
	if m == nil {
		return 0, false
	}

	h, err := strconv.Atoi(m[1])
	if err != nil || h <= 0 {
		return 0, false
	}

	return h, true
}
