package httpapi

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"salon-chat/contract"
	"salon-chat/domain"
	"salon-chat/domain/event"
	"salon-chat/domain/mimetypes"
	"salon-chat/errors"
	"salon-chat/observability"
	"salon-chat/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	FieldFile           = "file"
	FieldConversationID = "conversationId"

	// multipart envelope on top of the largest accepted file
	formOverhead = 1 * domain.MB
)

// UploadHandler exposes the attachment upload endpoint used by chat clients.
type UploadHandler struct {
	log     *slog.Logger
	uploads services.IUploadService
	backend contract.StorageBackend
	monitor *observability.Monitor
}

func NewUploadHandler(log *slog.Logger, uploads services.IUploadService, backend contract.StorageBackend, monitor *observability.Monitor) *UploadHandler {
	if monitor == nil {
		monitor = observability.NewMonitor()
	}
	return &UploadHandler{log: log, uploads: uploads, backend: backend, monitor: monitor}
}

// NewRouter mounts the attachment routes under /api.
func NewRouter(log *slog.Logger, handler *UploadHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		handler.RegisterRoutes(api)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(log, w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func (h *UploadHandler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(chat chi.Router) {
		chat.Post("/upload", h.handleUpload)
		chat.Delete("/upload/{conversationId}", h.handleDeleteConversation)
		chat.Get("/files/*", h.handleFile)
	})
	r.Get("/stats", h.handleStats)
}

func (h *UploadHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxFileSize+formOverhead)
	if err := r.ParseMultipartForm(services.MaxFileSize + formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(h.log, w, http.StatusRequestEntityTooLarge, string(event.FileTooLargeType), "file exceeds 10MB")
			return
		}
		respondError(h.log, w, http.StatusBadRequest, string(event.InvalidAttachmentType), "malformed multipart form")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	roomID, err := parseRoomID(r.FormValue(FieldConversationID))
	if err != nil {
		respondError(h.log, w, http.StatusBadRequest, string(event.InvalidAttachmentType), "conversationId is required")
		return
	}
	file, header, err := r.FormFile(FieldFile)
	if err != nil {
		respondError(h.log, w, http.StatusBadRequest, string(event.InvalidAttachmentType), "file is required")
		return
	}
	defer file.Close()

	ref, err := h.uploads.UploadOne(r.Context(), domain.File{Name: header.Filename, Size: header.Size, Body: file}, roomID)
	switch {
	case err == nil:
		h.monitor.RecordUpload(ref.SizeBytes)
		respondJSON(h.log, w, http.StatusOK, ref)
	case errors.Is(err, errors.ErrFileTooLarge):
		respondError(h.log, w, http.StatusRequestEntityTooLarge, string(event.FileTooLargeType), err.Error())
	case errors.Is(err, errors.ErrNotImage), errors.Is(err, errors.ErrInvalidAttachment):
		respondError(h.log, w, http.StatusBadRequest, string(event.InvalidAttachmentType), err.Error())
	default:
		h.log.Error("Upload failed", "room_id", roomID, "error", err)
		respondError(h.log, w, http.StatusInternalServerError, string(event.ServerErrorType), "upload failed")
	}
}

func (h *UploadHandler) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	roomID, err := parseRoomID(chi.URLParam(r, FieldConversationID))
	if err != nil {
		respondError(h.log, w, http.StatusBadRequest, string(event.InvalidMessageType), "invalid conversationId")
		return
	}
	if err := h.uploads.DeleteConversation(r.Context(), roomID); err != nil {
		respondError(h.log, w, http.StatusInternalServerError, string(event.ServerErrorType), "cleanup failed")
		return
	}
	h.monitor.RecordCleanup()
	w.WriteHeader(http.StatusNoContent)
}

func (h *UploadHandler) handleStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(h.log, w, http.StatusOK, h.monitor.Snapshot())
}

// handleFile serves stored objects for backends without their own public endpoint.
func (h *UploadHandler) handleFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	var buf bytes.Buffer
	if err := h.backend.Download(r.Context(), key, &buf); err != nil {
		if errors.Is(err, errors.ErrObjectNotFound) {
			http.NotFound(w, r)
			return
		}
		h.log.Error("Download failed", "key", key, "error", err)
		respondError(h.log, w, http.StatusInternalServerError, string(event.ServerErrorType), "download failed")
		return
	}
	w.Header().Set("Content-Type", mimetypes.ContentType(buf.Bytes()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func parseRoomID(raw string) (domain.RoomID, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return domain.RoomID(id), nil
}
