package response

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/bookshelfapp/bookshelf-server/internal/errors"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var result Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result
}

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	Success(w, map[string]string{"status": "ok"}, logger)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	result := decode(t, w)
	assert.True(t, result.Success)
	assert.Equal(t, map[string]any{"status": "ok"}, result.Data)
	assert.Empty(t, result.Error)
}

func TestJSON_ErrorStatusIsNotSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusNotFound, map[string]string{"message": "test"}, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decode(t, w).Success, "Success should be false for status >= 400")
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "bad input", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	result := decode(t, w)
	assert.False(t, result.Success)
	assert.Equal(t, "bad input", result.Error)
	assert.Nil(t, result.Data)
}

func TestServiceUnavailable(t *testing.T) {
	w := httptest.NewRecorder()

	ServiceUnavailable(w, map[string]string{"database": "down"}, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	result := decode(t, w)
	assert.False(t, result.Success)
	assert.Equal(t, map[string]any{"database": "down"}, result.Data)
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantError  string
	}{
		{
			name:       "not found",
			err:        domainerrors.NotFound("book not found"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
			wantError:  "book not found",
		},
		{
			name:       "wrapped conflict",
			err:        errors.Join(errors.New("tx"), domainerrors.Conflict("list changed")),
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
			wantError:  "list changed",
		},
		{
			name:       "unknown error hides details",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL",
			wantError:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleError(w, tt.err, slog.New(slog.DiscardHandler))

			assert.Equal(t, tt.wantStatus, w.Code)
			result := decode(t, w)
			assert.Equal(t, tt.wantCode, result.Code)
			assert.Equal(t, tt.wantError, result.Error)
		})
	}
}
