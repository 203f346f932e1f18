package student

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-registry/internal/http/middleware"
	"github.com/aanand-mishra/students-registry/internal/storage"
	"github.com/aanand-mishra/students-registry/internal/storage/flatfile"
	"github.com/aanand-mishra/students-registry/internal/types"
	"github.com/aanand-mishra/students-registry/internal/utils/response"
)

const anaJSON = `{"id":1,"name":"Ana","lastName":"Gomez","bornPlace":"Medellin","degree":"CS","place":"ROBLEDO","scoreAdmision":450}`

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newRouter(t *testing.T, store storage.Storage) *http.ServeMux {
	t.Helper()
	router := http.NewServeMux()
	Register(router, store)
	return router
}

func newFlatFile(t *testing.T) storage.Storage {
	t.Helper()
	s, err := flatfile.Open(filepath.Join(t.TempDir(), "Students"), flatfile.WithLogger(quiet))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, r))
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, response.StatusError, resp.Status)
	return resp
}

func TestCreateAndGet(t *testing.T) {
	h := newRouter(t, newFlatFile(t))

	rr := do(t, h, http.MethodPost, "/api/students", anaJSON)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, anaJSON, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/api/students/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, anaJSON, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestLegacyEndpoints(t *testing.T) {
	h := newRouter(t, newFlatFile(t))

	rr := do(t, h, http.MethodGet, "/search?id=1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code, "the form expects 400 for a missing student")

	rr = do(t, h, http.MethodPost, "/save", anaJSON)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, anaJSON, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/search?id=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, anaJSON, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/search", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodDelete, "/delete?id=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"deleted"}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/search?id=1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code, "deleted student no longer found")

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/delete?id=1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodDelete, "/delete", "").Code)
}

func TestLegacyEndpointsAllowCrossOrigin(t *testing.T) {
	h := middleware.CORS([]string{"*"}, newRouter(t, newFlatFile(t)))
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/save", anaJSON).Code)

	req := httptest.NewRequest(http.MethodGet, "/search?id=1", nil)
	req.Header.Set("Origin", "http://localhost:5500")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, anaJSON, rr.Body.String())
	assert.Equal(t, "http://localhost:5500", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/save", nil)
	req.Header.Set("Origin", "http://localhost:5500")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestCreateBadRequests(t *testing.T) {
	h := newRouter(t, newFlatFile(t))

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"empty body", "", "request body is empty"},
		{"malformed json", "{", ""},
		{"unknown campus", `{"id":1,"name":"Ana","lastName":"Gomez","bornPlace":"Medellin","degree":"CS","place":"POBLADO"}`, "unknown campus"},
		{"missing fields", `{"id":1,"place":"ROBLEDO"}`, "field name is required"},
		{"tab in field", `{"id":1,"name":"A\tB","lastName":"Gomez","bornPlace":"Medellin","degree":"CS","place":"ROBLEDO"}`, "field name must not contain tabs or line breaks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/students", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			resp := decodeError(t, rr)
			assert.Contains(t, resp.Error, tt.message)
		})
	}
}

func TestGetBadID(t *testing.T) {
	h := newRouter(t, newFlatFile(t))

	rr := do(t, h, http.MethodGet, "/api/students/abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid id: must be an integer", decodeError(t, rr).Error)
}

func TestListAndDelete(t *testing.T) {
	h := newRouter(t, newFlatFile(t))

	rr := do(t, h, http.MethodGet, "/api/students", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/students", anaJSON).Code)

	rr = do(t, h, http.MethodGet, "/api/students", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "["+anaJSON+"]", rr.Body.String())

	rr = do(t, h, http.MethodDelete, "/api/students/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"deleted"}`, rr.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/students/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/api/students/1", "").Code)
}

// faultyStore fails every operation with a storage fault.
type faultyStore struct{}

var errDisk = errors.New("disk on fire")

func (faultyStore) Save(_ context.Context, s types.Student) (types.Student, error) {
	return s, storage.Fault("Save", errDisk)
}

func (faultyStore) FindByID(context.Context, int64) (types.Student, error) {
	return types.Student{}, storage.Fault("FindByID", errDisk)
}

func (faultyStore) Delete(context.Context, int64) error {
	return storage.Fault("Delete", errDisk)
}

func (faultyStore) List(context.Context) ([]types.Student, error) {
	return nil, storage.Fault("List", errDisk)
}

func (faultyStore) Close() error { return nil }

func TestStorageFaults(t *testing.T) {
	h := newRouter(t, faultyStore{})

	for _, req := range []struct{ method, target, body string }{
		{http.MethodPost, "/api/students", anaJSON},
		{http.MethodGet, "/api/students/1", ""},
		{http.MethodGet, "/api/students", ""},
		{http.MethodDelete, "/api/students/1", ""},
		{http.MethodDelete, "/delete?id=1", ""},
	} {
		rr := do(t, h, req.method, req.target, req.body)
		assert.Equal(t, http.StatusInternalServerError, rr.Code, "%s %s", req.method, req.target)
		resp := decodeError(t, rr)
		assert.NotContains(t, resp.Error, errDisk.Error(), "cause is not leaked")
	}
}
