package contentgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dgallion1/docsplit/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageRecord(identity string) records.Record {
	return records.Record{
		Identity: identity,
		Bucket:   "docs",
		Key:      "production/docs/index.html",
		Title:    "Intro",
		Body:     `<section id="a"><h1>Intro</h1></section>`,
		Internal: records.Internal{Type: records.TypeObject, ContentDigest: "abc"},
	}
}

// graphServer is an in-memory content graph keyed by node id.
type graphServer struct {
	mu       sync.Mutex
	nodes    map[string]NodeRequest
	failures int32 // remaining 503s before PUT succeeds
	puts     int32
}

func newGraphServer(t *testing.T) (*graphServer, *httptest.Server) {
	t.Helper()
	g := &graphServer{nodes: make(map[string]NodeRequest)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/nodes/")
		switch r.Method {
		case http.MethodPut:
			atomic.AddInt32(&g.puts, 1)
			if atomic.AddInt32(&g.failures, -1) >= 0 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			var req NodeRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			g.mu.Lock()
			g.nodes[id] = req
			g.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			g.mu.Lock()
			req, ok := g.nodes[id]
			g.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(NodeResponse{
				ID:            id,
				Identity:      req.Identity,
				Type:          req.Type,
				ContentDigest: req.ContentDigest,
				Record:        req.Record,
			})
		case http.MethodDelete:
			g.mu.Lock()
			delete(g.nodes, id)
			g.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)
	return g, srv
}

func TestNodeID_Stable(t *testing.T) {
	a := NodeID("s3-object-production/docs/index.html-a")
	assert.Equal(t, a, NodeID("s3-object-production/docs/index.html-a"))
	assert.NotEqual(t, a, NodeID("s3-object-production/docs/index.html-b"))
	assert.Len(t, a, 36)
}

func TestClient_EmitGetDelete(t *testing.T) {
	g, srv := newGraphServer(t)
	c := NewClient(srv.URL, "secret", WithRetries(1, 0))
	ctx := context.Background()

	rec := pageRecord("s3-object-production/docs/index.html-a")
	require.NoError(t, c.Emit(ctx, rec))
	assert.Len(t, g.nodes, 1)

	node, err := c.GetNode(ctx, NodeID(rec.Identity))
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, rec.Identity, node.Identity)
	assert.Equal(t, records.TypeObject, node.Type)
	assert.Equal(t, "abc", node.ContentDigest)
	assert.Equal(t, rec.Body, node.Record.Body)

	require.NoError(t, c.DeleteNode(ctx, NodeID(rec.Identity)))
	node, err = c.GetNode(ctx, NodeID(rec.Identity))
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestClient_ReemitReplacesNode(t *testing.T) {
	g, srv := newGraphServer(t)
	c := NewClient(srv.URL, "secret", WithRetries(1, 0))

	rec := pageRecord("s3-object-production/docs/index.html-a")
	require.NoError(t, c.Emit(context.Background(), rec))
	rec.Internal.ContentDigest = "def"
	require.NoError(t, c.Emit(context.Background(), rec))

	require.Len(t, g.nodes, 1)
	assert.Equal(t, "def", g.nodes[NodeID(rec.Identity)].ContentDigest)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	g, srv := newGraphServer(t)
	g.failures = 2
	c := NewClient(srv.URL, "secret", WithRetries(3, 0))

	require.NoError(t, c.Emit(context.Background(), pageRecord("id-1")))
	assert.Equal(t, int32(3), atomic.LoadInt32(&g.puts))
}

func TestClient_GivesUpAfterAttempts(t *testing.T) {
	g, srv := newGraphServer(t)
	g.failures = 10
	c := NewClient(srv.URL, "secret", WithRetries(2, 0))

	err := c.Emit(context.Background(), pageRecord("id-1"))
	require.Error(t, err)
	var re *RetryableError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusServiceUnavailable, re.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&g.puts))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	_, srv := newGraphServer(t)
	c := NewClient(srv.URL, "wrong", WithRetries(3, 0))

	err := c.Emit(context.Background(), pageRecord("id-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	var re *RetryableError
	assert.False(t, errors.As(err, &re))
}

func TestMemorySink(t *testing.T) {
	s := NewMemorySink()
	n, err := records.Emit(context.Background(), s, []records.Record{pageRecord("a"), pageRecord("b")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, s.Len())

	got := s.Records()
	got[0].Identity = "mutated"
	assert.Equal(t, "a", s.Records()[0].Identity)
}

func TestJSONLSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONLSink(&buf)
	require.NoError(t, s.Emit(context.Background(), pageRecord("a")))
	require.NoError(t, s.Emit(context.Background(), pageRecord("b")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var rec records.Record
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "b", rec.Identity)
	// Markup stays readable: angle brackets are not \u003c escaped.
	assert.Contains(t, lines[0], `<section id=\"a\">`)
	assert.NotContains(t, lines[0], `\u003c`)
}
