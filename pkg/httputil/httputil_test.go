package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, map[string]string{"id": "o-1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":"o-1"}}`, rec.Body.String())
}

func TestWriteError_AppError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/orders/1/deliver", nil)
	req = req.WithContext(logger.WithCorrelationID(req.Context(), "req-7"))
	rec := httptest.NewRecorder()

	WriteError(rec, req, fmt.Errorf("deliver: %w", apperrors.InvalidState("order not yet paid")), slog.Default())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_STATE", resp.Error.Code)
	assert.Equal(t, "order not yet paid", resp.Error.Message)
	assert.Equal(t, "req-7", resp.Error.RequestID)
}

func TestWriteError_SentinelAndUnknown(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rec := httptest.NewRecorder()
	WriteError(rec, req, fmt.Errorf("get: %w", apperrors.ErrNotFound), slog.Default())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, rec).Error.Code)

	rec = httptest.NewRecorder()
	WriteError(rec, req, errors.New("pool closed"), slog.Default())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "pool closed")
}

type reviewBody struct {
	Rating int `json:"rating" validate:"min=1,max=5"`
}

func TestDecode(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":4}`))
	var body reviewBody
	require.NoError(t, Decode(httptest.NewRecorder(), req, &body))
	assert.Equal(t, 4, body.Rating)
}

func TestDecode_Invalid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":`))
	err := Decode(httptest.NewRecorder(), req, &reviewBody{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":6}`))
	err = Decode(httptest.NewRecorder(), req, &reviewBody{})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	WriteError(rec, req, err, slog.Default())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	assert.Equal(t, "must be at most 5", resp.Error.Fields["rating"])
}

func TestParseUUID(t *testing.T) {
	rec := httptest.NewRecorder()
	_, ok := ParseUUID(rec, "not-a-uuid")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id, ok := ParseUUID(httptest.NewRecorder(), "6f1c2d9e-0b7a-4f43-9d8e-2a1b3c4d5e6f")
	assert.True(t, ok)
	assert.Equal(t, "6f1c2d9e-0b7a-4f43-9d8e-2a1b3c4d5e6f", id.String())
}
