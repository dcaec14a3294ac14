package studio

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"furnishAi/internal/adjust"
	"furnishAi/internal/llm"
	"furnishAi/internal/media"
	"furnishAi/internal/overlay"
	"furnishAi/internal/storage"
)

// Handler exposes the session flow over HTTP.
type Handler struct {
	Service *Service
	Logger  *slog.Logger
}

// Routes mounts the session endpoints on r.
func (h Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/reset", h.Reset)

		r.Post("/image", h.UploadImage)
		r.Get("/image", h.RoomImage)

		r.Get("/edit", h.EditParams)
		r.Put("/edit", h.Adjust)
		r.Delete("/edit", h.CancelEdit)
		r.Post("/edit/reset", h.ResetAdjust)
		r.Get("/edit/preview", h.Preview)
		r.Post("/edit/confirm", h.ConfirmEdit)

		r.Put("/style", h.SetStyle)
		r.Post("/suggestions", h.Suggest)

		r.Post("/blend", h.Visualize)
		r.Get("/blend", h.BlendImage)
		r.Delete("/blend", h.CloseBlend)

		r.Post("/overlay", h.OpenOverlay)
		r.Get("/overlay", h.OverlayState)
		r.Delete("/overlay", h.CloseOverlay)
		r.Post("/overlay/pointer", h.Pointer)
		r.Put("/overlay/rotation", h.Rotate)
	})
}

// List handles GET /api/sessions.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Service.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Create handles POST /api/sessions with an optional {"style"} body.
func (h Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Style string `json:"style"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	session, err := h.Service.Create(r.Context(), req.Style)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handler) Reset(w http.ResponseWriter, r *http.Request) {
	session, err := h.Service.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// UploadImage accepts a multipart "image" field, or a raw image body from a camera capture.
func (h Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadBytes+(1<<20))

	var (
		declared string
		body     io.Reader
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(media.MaxUploadBytes); err != nil {
			http.Error(w, "could not parse form", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			http.Error(w, "image file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()
		declared = header.Header.Get("Content-Type")
		body = file
	} else {
		declared = r.Header.Get("Content-Type")
		body = r.Body
	}

	data, err := io.ReadAll(io.LimitReader(body, media.MaxUploadBytes+1))
	if err != nil {
		http.Error(w, "could not read image", http.StatusBadRequest)
		return
	}

	params, err := h.Service.SelectImage(r.Context(), chi.URLParam(r, "id"), declared, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, editResponse(params))
}

func (h Handler) RoomImage(w http.ResponseWriter, r *http.Request) {
	obj, err := h.Service.RoomImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeImage(w, obj.ContentType, obj.Data)
}

func (h Handler) EditParams(w http.ResponseWriter, r *http.Request) {
	params, err := h.Service.EditParams(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, editResponse(params))
}

// Adjust handles PUT /edit. Omitted fields keep their current value.
func (h Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Brightness *int `json:"brightness"`
		Contrast   *int `json:"contrast"`
		Saturation *int `json:"saturation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	params, err := h.Service.AdjustWith(id, func(p *adjust.Params) {
		if req.Brightness != nil {
			p.Brightness = *req.Brightness
		}
		if req.Contrast != nil {
			p.Contrast = *req.Contrast
		}
		if req.Saturation != nil {
			p.Saturation = *req.Saturation
		}
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, editResponse(params))
}

func (h Handler) ResetAdjust(w http.ResponseWriter, r *http.Request) {
	params, err := h.Service.ResetAdjust(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, editResponse(params))
}

func (h Handler) Preview(w http.ResponseWriter, r *http.Request) {
	data, err := h.Service.Preview(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeImage(w, media.MIMEJPEG, data)
}

func (h Handler) ConfirmEdit(w http.ResponseWriter, r *http.Request) {
	session, err := h.Service.ConfirmEdit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h Handler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.CancelEdit(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handler) SetStyle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Style string `json:"style"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	session, err := h.Service.SetStyle(r.Context(), chi.URLParam(r, "id"), req.Style)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Suggest handles POST /suggestions. An optional ?model= picks one of the allowed models.
func (h Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	ctx, err := h.Service.WithModel(r.Context(), r.URL.Query().Get("model"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	session, err := h.Service.Suggest(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type itemRequest struct {
	Category *int `json:"category"`
	Index    *int `json:"index"`
}

func (req itemRequest) validate() (int, int, bool) {
	if req.Category == nil || req.Index == nil {
		return 0, 0, false
	}
	return *req.Category, *req.Index, true
}

func (h Handler) Visualize(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	category, index, ok := req.validate()
	if !ok {
		http.Error(w, "category and index are required", http.StatusBadRequest)
		return
	}
	ctx, err := h.Service.WithModel(r.Context(), r.URL.Query().Get("model"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.Service.Visualize(ctx, chi.URLParam(r, "id"), category, index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h Handler) BlendImage(w http.ResponseWriter, r *http.Request) {
	obj, err := h.Service.BlendImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeImage(w, obj.ContentType, obj.Data)
}

func (h Handler) CloseBlend(w http.ResponseWriter, r *http.Request) {
	session, err := h.Service.CloseBlend(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// OpenOverlay handles POST /overlay. "camera" reports whether the client acquired a feed.
func (h Handler) OpenOverlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		itemRequest
		Camera bool `json:"camera"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	category, index, ok := req.validate()
	if !ok {
		http.Error(w, "category and index are required", http.StatusBadRequest)
		return
	}
	state, err := h.Service.OpenOverlay(r.Context(), chi.URLParam(r, "id"), category, index, overlay.DeclaredCamera{Available: req.Camera})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (h Handler) OverlayState(w http.ResponseWriter, r *http.Request) {
	state, err := h.Service.OverlayState(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h Handler) CloseOverlay(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.CloseOverlay(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handler) Pointer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phase  overlay.Phase   `json:"phase"`
		Points []overlay.Point `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	state, err := h.Service.Pointer(chi.URLParam(r, "id"), req.Phase, req.Points)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h Handler) Rotate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Axis    string   `json:"axis"`
		Degrees *float64 `json:"degrees"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Degrees == nil {
		http.Error(w, "axis and degrees are required", http.StatusBadRequest)
		return
	}
	state, err := h.Service.Rotate(chi.URLParam(r, "id"), req.Axis, *req.Degrees)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type editState struct {
	adjust.Params
	Filter string `json:"filter"`
}

func editResponse(p adjust.Params) editState {
	return editState{Params: p, Filter: p.CSS()}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, ErrNotOpen),
		errors.Is(err, adjust.ErrClosed),
		errors.Is(err, overlay.ErrClosed),
		errors.Is(err, media.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBusy), errors.Is(err, ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, overlay.ErrCameraUnavailable):
		return http.StatusPreconditionFailed
	case errors.Is(err, llm.ErrNotConfigured), errors.Is(err, media.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the text shown to the user for err.
func userMessage(err error, status int) string {
	switch status {
	case http.StatusInternalServerError:
		return "An unexpected error occurred."
	case http.StatusPreconditionFailed:
		return "Could not access the camera. Please check permissions and try again."
	case http.StatusServiceUnavailable:
		return "The AI service is not configured."
	}
	msg := err.Error()
	for _, prefix := range []string{ErrInvalidInput.Error() + ": ", ErrUpstream.Error() + ": "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}

func (h Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger := h.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": userMessage(err, status)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeImage(w http.ResponseWriter, contentType string, data []byte) {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}
