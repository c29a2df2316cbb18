package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProblemUsesProblemMediaType(t *testing.T) {
	rec := httptest.NewRecorder()
	Problem(rec, http.StatusNotFound, "Not Found", "document missing")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Not Found", body["title"])
	require.Equal(t, "document missing", body["detail"])
}

func TestProblemWithExtensions(t *testing.T) {
	rec := httptest.NewRecorder()
	ProblemWith(rec, http.StatusConflict, "Conflict", "stale version", map[string]any{"expected_version": 3})

	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, http.StatusConflict, body.Status)
	require.EqualValues(t, 3, body.Extensions["expected_version"])
}
