package search

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonlab/usergate/internal/domain/entity"
	"github.com/halcyonlab/usergate/internal/hooks"
)

type capturedRequest struct {
	method string
	path   string
	body   []byte
}

// fakeTransport answers every request with 200 so the client's product check
// passes, recording what was sent.
type fakeTransport struct {
	requests []capturedRequest
	status   int
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	f.requests = append(f.requests, capturedRequest{method: req.Method, path: req.URL.Path, body: body})

	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	header := http.Header{}
	header.Set("X-Elastic-Product", "Elasticsearch")
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(`{}`)),
	}, nil
}

func newFakeIndexer(t *testing.T, ft *fakeTransport) *Indexer {
	t.Helper()
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://elasticsearch.test"},
		Transport: ft,
	})
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewIndexer(client, "users", logger)
}

func knownRoutes() []string {
	return []string{"list", "search", "getUser", "signup", "login", "logout", "updateUser", "deleteUser"}
}

func execute(t *testing.T, reg *hooks.Registry, route string, body map[string]any) {
	t.Helper()
	done := false
	reg.Execute(hooks.Response, route, &hooks.RequestInfo{Route: route}, &hooks.ResponseInfo{Status: http.StatusOK, Body: body}, func() {
		done = true
	}, func(err error) {
		t.Fatalf("hook failed: %v", err)
	})
	require.True(t, done, "mirror must always advance the chain")
}

func TestIndexerMirrorsSignup(t *testing.T) {
	ft := &fakeTransport{}
	ix := newFakeIndexer(t, ft)

	reg := hooks.NewRegistry()
	require.NoError(t, ix.Bind(hooks.NewBinder(reg, knownRoutes)))

	u := entity.PublicUser{
		ID:         "u1",
		Firstname:  "Jamie",
		Lastname:   "Lanister",
		Fullname:   "Jamie Lanister",
		Username:   "jamie",
		Email:      "jamie@casterlyrock.example",
		SignupDate: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	execute(t, reg, "signup", map[string]any{"data": map[string]any{"user": u}})

	require.Len(t, ft.requests, 1)
	assert.Equal(t, http.MethodPut, ft.requests[0].method)
	assert.Equal(t, "/users/_doc/u1", ft.requests[0].path)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(ft.requests[0].body, &doc))
	assert.Equal(t, "Jamie Lanister", doc["fullname"])
	assert.NotContains(t, doc, "password")
}

func TestIndexerRemovesDeletedUsers(t *testing.T) {
	ft := &fakeTransport{}
	ix := newFakeIndexer(t, ft)

	reg := hooks.NewRegistry()
	require.NoError(t, ix.Bind(hooks.NewBinder(reg, knownRoutes)))

	execute(t, reg, "deleteUser", map[string]any{"data": map[string]any{"deleted": true, "id": "u1"}})

	require.Len(t, ft.requests, 1)
	assert.Equal(t, http.MethodDelete, ft.requests[0].method)
	assert.Equal(t, "/users/_doc/u1", ft.requests[0].path)
}

func TestIndexerIgnoresBodiesWithoutUsers(t *testing.T) {
	ft := &fakeTransport{}
	ix := newFakeIndexer(t, ft)

	reg := hooks.NewRegistry()
	require.NoError(t, ix.Bind(hooks.NewBinder(reg, knownRoutes)))

	execute(t, reg, "signup", map[string]any{"data": "unexpected shape"})
	assert.Empty(t, ft.requests)
}

func TestIndexerFailureDoesNotBlockResponse(t *testing.T) {
	ft := &fakeTransport{status: http.StatusInternalServerError}
	ix := newFakeIndexer(t, ft)

	reg := hooks.NewRegistry()
	require.NoError(t, ix.Bind(hooks.NewBinder(reg, knownRoutes)))

	u := entity.PublicUser{ID: "u1", Username: "jamie"}
	execute(t, reg, "updateUser", map[string]any{"data": map[string]any{"user": u}})
	require.Len(t, ft.requests, 1)
}
