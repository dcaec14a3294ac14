package studio

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furnishAi/internal/adjust"
	"furnishAi/internal/overlay"
	"furnishAi/internal/storage"
)

func newRouter(f *fixture) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/sessions", Handler{Service: f.svc}.Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHandler_CreateAndGet(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	rec := do(t, router, http.MethodPost, "/api/sessions", map[string]string{"style": "Boho"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created storage.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Boho", created.Style)

	rec = do(t, router, http.MethodGet, "/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "session not found", errorBody(t, rec))
}

func TestHandler_UploadRejectsTextFile(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	session := f.withSuggestions(t)

	body, contentType := multipartUpload(t, "notes.txt", "text/plain", []byte("not a photo"))
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+session.ID+"/image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please upload a valid image file (JPEG or PNG).", errorBody(t, rec))

	rec = do(t, router, http.MethodGet, "/api/sessions/"+session.ID, nil)
	var after storage.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.Equal(t, session.Suggestions, after.Suggestions)
}

func TestHandler_EditEndpoints(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	session, err := f.svc.Create(t.Context(), "")
	require.NoError(t, err)
	base := "/api/sessions/" + session.ID

	body, contentType := multipartUpload(t, "room.png", "image/png", roomPNG(t))
	req := httptest.NewRequest(http.MethodPost, base+"/image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"filter":"brightness(100%) contrast(100%) saturate(100%)"`)

	rec = do(t, router, http.MethodPut, base+"/edit", map[string]int{"contrast": 150})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"brightness":100`)
	assert.Contains(t, rec.Body.String(), `"contrast":150`)

	rec = do(t, router, http.MethodPut, base+"/edit", map[string]int{"saturation": 300})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var wg sync.WaitGroup
	for _, body := range []map[string]int{{"brightness": 80}, {"saturation": 40}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := do(t, router, http.MethodPut, base+"/edit", body)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()
	params, err := f.svc.EditParams(session.ID)
	require.NoError(t, err)
	assert.Equal(t, adjust.Params{Brightness: 80, Contrast: 150, Saturation: 40}, params)

	rec = do(t, router, http.MethodGet, base+"/edit/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	rec = do(t, router, http.MethodPost, base+"/edit/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, base+"/image", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	rec = do(t, router, http.MethodGet, base+"/edit", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_SuggestWithoutImage(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	session, err := f.svc.Create(t.Context(), "")
	require.NoError(t, err)

	rec := do(t, router, http.MethodPost, "/api/sessions/"+session.ID+"/suggestions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please upload an image and specify a style.", errorBody(t, rec))
}

func TestHandler_RejectsUnknownModel(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	session := f.withSuggestions(t)
	base := "/api/sessions/" + session.ID

	rec := do(t, router, http.MethodPost, base+"/suggestions?model=gemini-ultra", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `model "gemini-ultra" is not available`, errorBody(t, rec))

	rec = do(t, router, http.MethodPost, base+"/blend?model=gemini-ultra", map[string]int{"category": 0, "index": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_BlendBusyAndMissingFields(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	session := f.withSuggestions(t)
	path := "/api/sessions/" + session.ID + "/blend"

	rec := do(t, router, http.MethodPost, path, map[string]int{"category": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.blender.started = make(chan struct{}, 1)
	f.blender.release = make(chan struct{})
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- do(t, router, http.MethodPost, path, map[string]int{"category": 0, "index": 0})
	}()
	<-f.blender.started

	rec = do(t, router, http.MethodPost, path, map[string]int{"category": 0, "index": 0})
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(f.blender.release)
	first := <-done
	require.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), `"blended_image":"data:image/png;base64,`)

	rec = do(t, router, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_OverlayCameraDenied(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	session := f.withSuggestions(t)
	base := "/api/sessions/" + session.ID + "/overlay"

	rec := do(t, router, http.MethodPost, base, map[string]any{"category": 0, "index": 0, "camera": false})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.True(t, strings.HasPrefix(errorBody(t, rec), "Could not access the camera"))

	rec = do(t, router, http.MethodPost, base, map[string]any{"category": 0, "index": 0, "camera": true})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, base+"/pointer", map[string]any{
		"phase":  "start",
		"points": []overlay.Point{{X: 10, Y: 10}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodPost, base+"/pointer", map[string]any{
		"phase":  "move",
		"points": []overlay.Point{{X: 40, Y: -10}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var state overlay.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, 30.0, state.Transform.X)
	assert.Equal(t, -20.0, state.Transform.Y)
	assert.Equal(t, "dragging", state.Mode)

	rec = do(t, router, http.MethodPut, base+"/rotation", map[string]any{"axis": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, router, http.MethodPut, base+"/rotation", map[string]any{"axis": "x", "degrees": 15})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rotateX(15deg)")

	rec = do(t, router, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, router, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := map[error]int{
		ErrInvalidInput:              http.StatusBadRequest,
		storage.ErrNotFound:          http.StatusNotFound,
		ErrBusy:                      http.StatusConflict,
		ErrSuperseded:                http.StatusConflict,
		overlay.ErrCameraUnavailable: http.StatusPreconditionFailed,
		ErrUpstream:                  http.StatusBadGateway,
	}
	for err, want := range tests {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}
