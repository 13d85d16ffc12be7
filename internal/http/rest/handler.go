package rest

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/youcast/internal/downloader"
	"github.com/italolelis/youcast/internal/history"
	"github.com/italolelis/youcast/internal/logctx"
	"github.com/italolelis/youcast/internal/media"
	"github.com/italolelis/youcast/internal/storage"
)

const maxRequestSize = 1 << 20

// BatchProcessor runs download batches.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, req media.Request) (*media.BatchResult, error)
}

// HistoryService exposes the download history.
type HistoryService interface {
	Entries(ctx context.Context) ([]history.Entry, error)
	Clear(ctx context.Context) error
	Open(ctx context.Context, path string) (*os.File, history.Entry, error)
}

// BatchRequest is the body of POST /api/batches. URLs and URLsText are combined;
// URLsText holds one URL per line. Empty fields take the server defaults.
type BatchRequest struct {
	URLs         []string `json:"urls"`
	URLsText     string   `json:"urls_text"`
	MediaType    string   `json:"media_type"`
	Format       string   `json:"format"`
	Quality      string   `json:"quality"`
	PlaylistMode string   `json:"playlist_mode"`
	OutputFolder string   `json:"output_folder"`
}

func (b BatchRequest) toMedia(defaults media.Defaults) media.Request {
	urls := media.ParseURLs(strings.Join(b.URLs, "\n"))
	urls = append(urls, media.ParseURLs(b.URLsText)...)

	return defaults.Apply(media.Request{
		URLs:         urls,
		MediaType:    media.MediaType(strings.ToLower(strings.TrimSpace(b.MediaType))),
		Format:       strings.TrimSpace(b.Format),
		Quality:      strings.TrimSpace(b.Quality),
		PlaylistMode: media.PlaylistMode(strings.ToLower(strings.TrimSpace(b.PlaylistMode))),
		OutputFolder: strings.TrimSpace(b.OutputFolder),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

type DownloadHandler struct {
	downloader BatchProcessor
	history    HistoryService
	status     *StatusBoard
	defaults   media.Defaults
}

// NewDownloadHandler creates the handler of the batch and history API. status must be
// registered as an observer of the downloader.
func NewDownloadHandler(d BatchProcessor, h HistoryService, status *StatusBoard, defaults media.Defaults) *DownloadHandler {
	return &DownloadHandler{
		downloader: d,
		history:    h,
		status:     status,
		defaults:   defaults,
	}
}

func (h *DownloadHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/batches", h.HandleCreateBatch)
		r.Get("/status", h.HandleStatus)
		r.Get("/history", h.HandleListHistory)
		r.Delete("/history", h.HandleClearHistory)
		r.Get("/history/file", h.HandleDownloadFile)
	})

	return r
}

func (h *DownloadHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleCreateBatch runs a batch and replies with its result once every URL is processed.
func (h *DownloadHandler) HandleCreateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logctx.LoggerFromContext(ctx)

	var body BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize)).Decode(&body); err != nil {
		logger.Error("failed to decode request", "err", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})

		return
	}

	result, err := h.downloader.ProcessBatch(ctx, body.toMedia(h.defaults))
	if h.status != nil && !errors.Is(err, downloader.ErrBatchInProgress) {
		h.status.Idle()
	}

	if err != nil {
		var cfgErr *downloader.ConfigurationError

		switch {
		case errors.As(err, &cfgErr):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		case errors.Is(err, downloader.ErrBatchInProgress):
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		default:
			logger.Error("batch did not complete", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		}

		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *DownloadHandler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	if h.status == nil {
		writeJSON(w, http.StatusOK, BatchStatus{Outcomes: []media.Outcome{}})

		return
	}

	writeJSON(w, http.StatusOK, h.status.Snapshot())
}

func (h *DownloadHandler) HandleListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.Entries(r.Context())
	if err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to list history", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list history"})

		return
	}

	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *DownloadHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.history.Clear(r.Context()); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to clear history", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to clear history"})

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDownloadFile serves the artifact of a history entry. Only paths recorded in
// the history are served.
func (h *DownloadHandler) HandleDownloadFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logctx.LoggerFromContext(ctx)

	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "path is required"})

		return
	}

	f, entry, err := h.history.Open(ctx, path)
	if err != nil {
		var missing *history.MissingArtifactError

		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not in history"})
		case errors.As(err, &missing):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: missing.Error()})
		default:
			logger.Error("failed to open file", "file_path", path, "err", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to open file"})
		}

		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		logger.Error("failed to stat file", "file_path", path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to open file"})

		return
	}

	name := filepath.Base(entry.Path)

	w.Header().Set("Content-Type", entry.MIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))

	http.ServeContent(w, r, name, info.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}
