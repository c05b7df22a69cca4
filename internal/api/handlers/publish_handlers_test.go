package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/publish"
	"github.com/malwarescan/oracle/internal/testutil"
)

func TestFactsHandler_WritesNDJSON(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	store.On("GetFactsByDomain", mock.Anything, "acme.com", "", "").
		Return([]domain.Fact{{FactID: "f1", Subject: "acme.com"}}, nil)

	h := NewFactsHandler(publish.New(store, nil))

	req := testutil.NewRequestWithVars("GET", "/v1/facts/acme.com.ndjson", "", map[string]string{"domain": "acme.com"})
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "f1")
}

func TestGraphHandler_WritesJSONLD(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	store.On("GetFactsByDomain", mock.Anything, "acme.com", "", "").
		Return([]domain.Fact{{Subject: "acme.com", Predicate: "name", Object: "Acme"}}, nil)

	h := NewGraphHandler(publish.New(store, nil))

	req := testutil.NewRequestWithVars("GET", "/v1/graph/acme.com.jsonld", "", map[string]string{"domain": "acme.com"})
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/ld+json", w.Header().Get("Content-Type"))
}

func TestExtractHandler_RequiresURL(t *testing.T) {
	h := NewExtractHandler(publish.New(new(testutil.MockPostgresStore), nil))

	req := testutil.NewRequestWithVars("GET", "/v1/extract/acme.com", "", map[string]string{"domain": "acme.com"})
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractHandler_NotFoundSnapshot(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	store.On("GetLatestSnapshot", mock.Anything, "acme.com", "https://acme.com/about").
		Return((*domain.HtmlSnapshot)(nil), assertNotFoundErr("https://acme.com/about"))

	h := NewExtractHandler(publish.New(store, nil))

	req := testutil.NewRequestWithVars("GET", "/v1/extract/acme.com?url=https://acme.com/about", "", map[string]string{"domain": "acme.com"})
	req.URL.RawQuery = "url=https://acme.com/about"
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusHandler_ReturnsStatus(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	store.On("GetVerifiedDomain", mock.Anything, "acme.com").
		Return((*domain.VerifiedDomain)(nil), assertNotFoundErr("acme.com"))
	store.On("CountFacts", mock.Anything, "acme.com").Return(map[string]int{"text_extraction": 2}, nil)
	store.On("GetFactsByDomain", mock.Anything, "acme.com", "text_extraction", "").Return([]domain.Fact{}, nil)
	store.On("ListDiscoveredPages", mock.Anything, "acme.com").Return([]domain.DiscoveredPage{}, nil)
	store.On("GetFactsByDomain", mock.Anything, "acme.com", "", "").Return([]domain.Fact{}, nil)

	h := NewStatusHandler(publish.New(store, nil))

	req := testutil.NewRequestWithVars("GET", "/v1/status/acme.com", "", map[string]string{"domain": "acme.com"})
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var status publish.Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, domain.TierBestEffort, status.Tier)
}

func TestMirrorHandler_ReturnsMarkdown(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	store.On("GetActiveMarkdown", mock.Anything, "acme.com", "about").
		Return(&domain.MarkdownVersion{Domain: "acme.com", Path: "about", Content: "# About", ContentHash: "abc123"}, nil)

	h := NewMirrorHandler(publish.New(store, nil))

	req := testutil.NewRequestWithVars("GET", "/v1/mirror/acme.com/about", "", map[string]string{"domain": "acme.com", "path": "about"})
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `"abc123"`, w.Header().Get("ETag"))
	assert.Contains(t, w.Body.String(), "# About")
}

func TestMirrorHandler_NotFound(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	store.On("GetActiveMarkdown", mock.Anything, "acme.com", "missing").
		Return((*domain.MarkdownVersion)(nil), assertNotFoundErr("missing"))

	h := NewMirrorHandler(publish.New(store, nil))

	req := testutil.NewRequestWithVars("GET", "/v1/mirror/acme.com/missing", "", map[string]string{"domain": "acme.com", "path": "missing"})
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
