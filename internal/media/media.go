package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// MediaType selects between audio extraction and full video downloads.
type MediaType string

const (
	Audio MediaType = "audio"
	Video MediaType = "video"
)

// ParseMediaType accepts the case-insensitive names of the media types.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(strings.ToLower(strings.TrimSpace(s))) {
	case Audio:
		return Audio, nil
	case Video:
		return Video, nil
	}

	return "", fmt.Errorf("unknown media type %q", s)
}

// PlaylistMode controls whether playlist URLs expand to every entry.
type PlaylistMode string

const (
	Single   PlaylistMode = "single"
	Playlist PlaylistMode = "playlist"
)

// ParsePlaylistMode accepts "single" or "playlist" (case-insensitive).
func ParsePlaylistMode(s string) (PlaylistMode, error) {
	switch PlaylistMode(strings.ToLower(strings.TrimSpace(s))) {
	case Single:
		return Single, nil
	case Playlist:
		return Playlist, nil
	}

	return "", fmt.Errorf("unknown playlist mode %q", s)
}

// Request describes one batch submission.
type Request struct {
	URLs         []string     `json:"urls"`
	MediaType    MediaType    `json:"media_type"`
	Format       string       `json:"format"`
	Quality      string       `json:"quality"`
	PlaylistMode PlaylistMode `json:"playlist_mode"`
	OutputFolder string       `json:"output_folder"`
}

var (
	ErrNoURLs         = errors.New("no URLs to download")
	ErrNoOutputFolder = errors.New("output folder is not set")
)

// Validate checks the fields a batch cannot start without.
func (r Request) Validate() error {
	_, err := r.Normalize()

	return err
}

// Normalize validates r and returns it with the media type and playlist mode in their
// canonical form and the format lowercased. Code past this point compares them exactly.
func (r Request) Normalize() (Request, error) {
	if len(r.URLs) == 0 {
		return r, ErrNoURLs
	}

	if strings.TrimSpace(r.OutputFolder) == "" {
		return r, ErrNoOutputFolder
	}

	mediaType, err := ParseMediaType(string(r.MediaType))
	if err != nil {
		return r, err
	}

	playlistMode, err := ParsePlaylistMode(string(r.PlaylistMode))
	if err != nil {
		return r, err
	}

	r.MediaType = mediaType
	r.PlaylistMode = playlistMode
	r.Format = strings.ToLower(strings.TrimSpace(r.Format))
	r.Quality = strings.TrimSpace(r.Quality)

	if r.MediaType == Audio && r.Format == "" {
		return r, errors.New("audio format is not set")
	}

	return r, nil
}

// Container returns the file container produced by the request.
// Video downloads are always merged into mp4.
func (r Request) Container() string {
	if r.MediaType == Video {
		return "mp4"
	}

	return r.Format
}

// OutputTemplate is the engine naming template: <folder>/<title>.<ext>.
func (r Request) OutputTemplate() string {
	return filepath.Join(r.OutputFolder, "%(title)s.%(ext)s")
}

// ProducedFile is a final artifact reported by the engine.
type ProducedFile struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// NewProducedFile builds a ProducedFile, defaulting the title to the base name of path.
func NewProducedFile(path, title string) ProducedFile {
	if strings.TrimSpace(title) == "" {
		title = filepath.Base(path)
	}

	return ProducedFile{Path: path, Title: title}
}

// Status of a single URL in a batch.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Outcome is the terminal result for one URL.
type Outcome struct {
	URL      string         `json:"url"`
	Status   Status         `json:"status"`
	Error    string         `json:"error,omitempty"`
	NewFiles int            `json:"new_files"`
	Files    []ProducedFile `json:"files,omitempty"`
}

// Succeeded reports whether the URL produced a successful outcome.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// BatchResult aggregates the outcomes of a batch in submission order.
type BatchResult struct {
	ID         string    `json:"id"`
	Outcomes   []Outcome `json:"outcomes"`
	Processed  int       `json:"processed"`
	Total      int       `json:"total"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Counts returns the number of successful and failed outcomes.
func (b *BatchResult) Counts() (succeeded, failed int) {
	for _, o := range b.Outcomes {
		if o.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}

	return succeeded, failed
}
