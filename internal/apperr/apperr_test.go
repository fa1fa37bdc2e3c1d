package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	base := NotFound("task not found", nil)
	wrapped := fmt.Errorf("mark done: %w", base)

	assert.Same(t, base, FromError(wrapped, CodeInternal))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))

	plain := errors.New("boom")
	got := FromError(plain, CodeAIServiceUnavailable)
	assert.Equal(t, CodeAIServiceUnavailable, got.Code)
	assert.Equal(t, http.StatusServiceUnavailable, got.Status)
	assert.ErrorIs(t, got, plain)
	assert.Equal(t, CodeInternal, CodeOf(plain))
}

func TestWrite(t *testing.T) {
	w := httptest.NewRecorder()

	Write(w, InvalidInput("mileage must not decrease", errors.New("47000 < 47713")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_INPUT", body["error"]["code"])
	assert.Equal(t, "mileage must not decrease", body["error"]["message"])
}

func TestWrite_UnknownErrorIsInternal(t *testing.T) {
	w := httptest.NewRecorder()

	Write(w, errors.New("mongo exploded"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "mongo exploded")
}

func TestWithMessage(t *testing.T) {
	sentinel := Conflict("mileage cannot decrease", nil)
	refined := sentinel.WithMessage("47000 km is below the recorded 47713 km")

	assert.ErrorIs(t, refined, sentinel)
	assert.Equal(t, CodeConflict, CodeOf(refined))
	assert.Equal(t, "47000 km is below the recorded 47713 km", refined.Error())

	w := httptest.NewRecorder()
	Write(w, fmt.Errorf("update mileage: %w", refined))

	assert.Equal(t, http.StatusConflict, w.Code)
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "47000 km is below the recorded 47713 km", body["error"]["message"])
}
