// Package testutil provides common test utilities for handler, service, and integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewJSONRequest builds a request whose body is body marshaled to JSON.
// A nil body sends no payload.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "marshal request body")
		payload = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewRequestWithBody sends body verbatim, for malformed-JSON cases.
func NewRequestWithBody(t *testing.T, method, path string, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// UnmarshalResponse decodes the recorded body into a fresh T.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "decode response: %s", rr.Body.String())
	return &out
}

// UnmarshalErrorResponse decodes the {"error", "error_description"} envelope.
func UnmarshalErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	return *UnmarshalResponse[map[string]string](t, rr)
}

func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code, body: %s", rr.Body.String())
}

// AssertStatusAndError checks the status and the "error" field of the envelope.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	t.Helper()
	AssertStatus(t, rr, expectedStatus)
	assert.Equal(t, expectedCode, UnmarshalErrorResponse(t, rr)["error"], "unexpected error code")
}

// AssertJSONContains checks one top-level field of a JSON object body.
// Numbers decode as float64.
func AssertJSONContains(t *testing.T, rr *httptest.ResponseRecorder, key string, expectedValue any) {
	t.Helper()
	body := *UnmarshalResponse[map[string]any](t, rr)
	assert.Equal(t, expectedValue, body[key], "unexpected value for key %q", key)
}

func AssertContentType(t *testing.T, rr *httptest.ResponseRecorder, expected string) {
	t.Helper()
	assert.Equal(t, expected, rr.Header().Get("Content-Type"), "unexpected content type")
}
