package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

const TestSharedToken = "test-shared-token"

// NewTestRequest creates an HTTP request with JSON content type.
func NewTestRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewAuthenticatedRequest creates an HTTP request carrying the shared bearer
// token in the Authorization header, as the fan-out and invoke endpoints
// expect.
func NewAuthenticatedRequest(method, path, body string) *http.Request {
	req := NewTestRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+TestSharedToken)
	return req
}

// NewRequestWithVars creates an authenticated request with mux route variables.
func NewRequestWithVars(method, path, body string, vars map[string]string) *http.Request {
	req := NewAuthenticatedRequest(method, path, body)
	if len(vars) > 0 {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

// AssertJSONResponse validates status code, content type, and optionally
// decodes the response body into target.
func AssertJSONResponse(t testing.TB, recorder *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	if recorder.Code != expectedStatus {
		t.Errorf("expected status %d, got %d; body: %s", expectedStatus, recorder.Code, recorder.Body.String())
	}

	contentType := recorder.Header().Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "application/json") {
		t.Errorf("expected JSON content-type, got %s", contentType)
	}

	if target != nil && recorder.Body.Len() > 0 {
		if err := json.NewDecoder(recorder.Body).Decode(target); err != nil {
			t.Fatalf("failed to decode response body: %v", err)
		}
	}
}
