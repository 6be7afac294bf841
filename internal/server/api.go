package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotdown/internal/delivery"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/services"
	"github.com/desertthunder/spotdown/internal/shared"
	"github.com/desertthunder/spotdown/internal/tasks"
)

const maxRequestBody = 1 << 16

const (
	FormatBinary  = "binary"
	FormatEncoded = "encoded"
)

type downloadRequest struct {
	TrackID string `json:"trackId"`
}

type encodedFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type downloadResponse struct {
	Success bool         `json:"success"`
	File    *encodedFile `json:"file,omitempty"`
}

type catalogResponse struct {
	Success    bool               `json:"success"`
	Collection *models.Collection `json:"collection"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

// API serves the download, catalog and health endpoints.
type API struct {
	downloader tasks.Downloader
	catalog    services.CatalogReader
	logger     *log.Logger
}

// NewAPI creates the core API. catalog may be nil, which disables GET /api/catalog.
func NewAPI(downloader tasks.Downloader, catalog services.CatalogReader, logger *log.Logger) *API {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &API{downloader: downloader, catalog: catalog, logger: logger}
}

// Register adds the API routes to r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodPost, "/api/download", http.HandlerFunc(a.Download))
	r.Handle(http.MethodGet, "/api/catalog", http.HandlerFunc(a.Catalog))
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(a.Health))
}

// Download runs the pipeline for the track in the request body.
//
// ?format=binary (default) streams the MP3 as an attachment. ?format=encoded wraps it in JSON as a data URI.
func (a *API) Download(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = FormatBinary
	}
	if format != FormatBinary && format != FormatEncoded {
		writeError(w, http.StatusBadRequest, "", "format must be binary or encoded")
		return
	}

	var req downloadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(tasks.KindInvalidReference), "invalid request body")
		return
	}
	req.TrackID = strings.TrimSpace(req.TrackID)
	if req.TrackID == "" {
		writeError(w, http.StatusBadRequest, string(tasks.KindInvalidReference), "trackId is required")
		return
	}

	file, err := a.downloader.Download(r.Context(), req.TrackID)
	if err != nil {
		a.logger.Warn("download failed", "track", req.TrackID, "error", err)
		writeError(w, StatusFor(err), string(tasks.KindOf(err)), publicMessage(err))
		return
	}

	if format == FormatEncoded {
		writeJSON(w, http.StatusOK, downloadResponse{
			Success: true,
			File:    &encodedFile{Name: file.FileName, Content: delivery.EncodePayload(file.Data)},
		})
		return
	}

	w.Header().Set("Content-Type", delivery.ContentTypeMP3)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(file.Data)
}

// Catalog returns the collection behind ?url= for display.
func (a *API) Catalog(w http.ResponseWriter, r *http.Request) {
	if a.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "", "catalog lookups are disabled")
		return
	}

	ref, err := models.ParseReference(r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(tasks.KindInvalidReference), err.Error())
		return
	}

	collection, err := a.catalog.Collection(r.Context(), ref)
	if err != nil {
		a.logger.Warn("catalog lookup failed", "ref", ref.String(), "error", err)
		switch {
		case errors.Is(err, shared.ErrTrackNotFound), errors.Is(err, shared.ErrNotFound):
			writeError(w, http.StatusNotFound, string(tasks.KindInvalidReference), "not found in catalog")
		case errors.Is(err, shared.ErrInvalidReference):
			writeError(w, http.StatusBadRequest, string(tasks.KindInvalidReference), "invalid catalog reference")
		default:
			writeError(w, http.StatusBadGateway, string(tasks.KindMetadataUnavailable), "catalog unavailable, try again later")
		}
		return
	}

	writeJSON(w, http.StatusOK, catalogResponse{Success: true, Collection: collection})
}

// Health reports that the server is up.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusFor maps a pipeline failure to its HTTP status.
func StatusFor(err error) int {
	switch tasks.KindOf(err) {
	case tasks.KindInvalidReference:
		if errors.Is(err, shared.ErrTrackNotFound) {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case tasks.KindNoMatchingSource:
		return http.StatusNotFound
	case tasks.KindMetadataUnavailable, tasks.KindUpstream, tasks.KindFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides the internals of errors that are not pipeline failures.
func publicMessage(err error) string {
	var pe *tasks.PipelineError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message, Kind: kind})
}
