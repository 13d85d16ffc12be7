package media

import "strings"

// Defaults fills the fields a request leaves empty.
type Defaults struct {
	MediaType    MediaType
	AudioFormat  string
	AudioQuality string
	VideoQuality string
	PlaylistMode PlaylistMode
	OutputFolder string
}

// Apply returns req with every empty field set from d. The format of a video
// request is always the mp4 container.
func (d Defaults) Apply(req Request) Request {
	if strings.TrimSpace(string(req.MediaType)) == "" {
		req.MediaType = d.MediaType
	}

	if mediaType, err := ParseMediaType(string(req.MediaType)); err == nil {
		req.MediaType = mediaType
	}

	if strings.TrimSpace(string(req.PlaylistMode)) == "" {
		req.PlaylistMode = d.PlaylistMode
	}

	if playlistMode, err := ParsePlaylistMode(string(req.PlaylistMode)); err == nil {
		req.PlaylistMode = playlistMode
	}

	if strings.TrimSpace(req.OutputFolder) == "" {
		req.OutputFolder = d.OutputFolder
	}

	switch req.MediaType {
	case Video:
		req.Format = "mp4"

		if strings.TrimSpace(req.Quality) == "" {
			req.Quality = d.VideoQuality
		}
	default:
		if strings.TrimSpace(req.Format) == "" {
			req.Format = d.AudioFormat
		}

		if strings.TrimSpace(req.Quality) == "" {
			req.Quality = d.AudioQuality
		}
	}

	return req
}
