package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/canvas/core/chat"
	coreerrors "github.com/adalundhe/canvas/core/errors"
	"github.com/adalundhe/canvas/core/logging"
	"github.com/adalundhe/canvas/core/metrics"
	"github.com/adalundhe/canvas/core/providers"
	"github.com/adalundhe/canvas/core/router"
	"github.com/adalundhe/canvas/core/sandbox"
	"github.com/adalundhe/canvas/core/studio"
	"github.com/adalundhe/canvas/core/tokens"
)

const counterCode = "```tsx\n'use client'\n" + `
export default function Counter() {
  const [n, setN] = React.useState(0)
  return <Button onClick={() => setN(n + 1)}>{n}</Button>
}
` + "```"

type stubCompleter struct {
	text string
	err  error
}

func (s *stubCompleter) Complete(_ context.Context, req router.Request) (*router.Completion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &router.Completion{Text: s.text, Provider: providers.ProviderTypeOpenAI, Mode: req.Mode}, nil
}

func (s *stubCompleter) Stream(ctx context.Context, req router.Request, h router.StreamHandlers) (*router.Completion, error) {
	c, err := s.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, part := range strings.SplitAfter(c.Text, " ") {
		if err := h.OnChunk(part); err != nil {
			return nil, err
		}
	}
	h.OnComplete(c.Text)
	return c, nil
}

type fixture struct {
	handler   http.Handler
	completer *stubCompleter
	tokens    *tokens.MemoryStore
	chats     *chat.MemoryStore
	engine    *sandbox.Engine
	registry  *prometheus.Registry
}

func newFixture(t *testing.T, usagePath string) *fixture {
	t.Helper()
	f := &fixture{
		completer: &stubCompleter{},
		tokens:    tokens.NewMemoryStore(),
		chats:     chat.NewMemoryStore(),
		registry:  prometheus.NewRegistry(),
	}
	logger := logging.NewNop()
	m := metrics.New(f.registry)
	runner := sandbox.NewRunner(sandbox.DefaultLimits(), sandbox.WithLogger(logger), sandbox.WithMetrics(m))
	f.engine = sandbox.NewEngine(sandbox.NewManager(runner), nil)
	t.Cleanup(f.engine.Manager().Close)

	f.handler = NewHandler(Deps{
		Studio:    studio.New(f.completer, f.tokens, f.chats, studio.WithLogger(logger)),
		Engine:    f.engine,
		Metrics:   m,
		Gatherer:  f.registry,
		UsagePath: usagePath,
		Logger:    logger,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, target, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if user != "" {
		req.Header.Set(DefaultUserHeader, user)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestUnauthenticated(t *testing.T) {
	f := newFixture(t, "")
	for _, target := range []string{"/api/design/tokens", "/api/design/components", "/api/chats"} {
		w := f.do(t, http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
	}
	w := f.do(t, http.MethodPost, "/api/chat", "", `{"messages":[]}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokensRoundTrip(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(t, http.MethodGet, "/api/design/tokens", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[map[string]tokens.DesignTokens](t, w)
	assert.Equal(t, tokens.Defaults(), got["tokens"])

	w = f.do(t, http.MethodPost, "/api/design/tokens", "u1", map[string]any{
		"tokens": map[string]any{"radius": "1rem", "unknown": "x", "ring": 3},
	})
	require.Equal(t, http.StatusOK, w.Code)
	got = decodeBody[map[string]tokens.DesignTokens](t, w)
	assert.Equal(t, "1rem", got["tokens"]["radius"])
	assert.NotContains(t, got["tokens"], "unknown")
	assert.Equal(t, tokens.Defaults()["ring"], got["tokens"]["ring"])

	w = f.do(t, http.MethodGet, "/api/design/tokens", "u2", nil)
	got = decodeBody[map[string]tokens.DesignTokens](t, w)
	assert.Equal(t, tokens.Defaults()["radius"], got["tokens"]["radius"])

	w = f.do(t, http.MethodPost, "/api/design/tokens", "u1", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing tokens"}`, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/design/tokens", "u1", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComponents(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.tokens.SetComponents(context.Background(), "u1", tokens.ComponentClasses{"button_pill": "custom"}))

	w := f.do(t, http.MethodGet, "/api/design/components", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[map[string]tokens.ComponentClasses](t, w)
	assert.Equal(t, "custom", got["components"]["button_pill"])
	assert.Equal(t, tokens.DefaultComponentClasses()["input"], got["components"]["input"])
	assert.Len(t, got["components"], len(tokens.ComponentKeys()))
}

func TestChatStreamsAndPersists(t *testing.T) {
	f := newFixture(t, "")
	f.completer.text = "Use a flex container."

	w := f.do(t, http.MethodPost, "/api/chat", "u1", map[string]any{
		"messages": []providers.Message{{Role: providers.RoleUser, Content: "center a div"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Use a flex container.", w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	id := w.Header().Get("X-Chat-Id")
	require.NotEmpty(t, id)

	w = f.do(t, http.MethodGet, "/api/chats", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[map[string][]chat.Transcript](t, w)
	require.Len(t, list["chats"], 1)
	assert.Equal(t, "center a div", list["chats"][0].Title)

	w = f.do(t, http.MethodGet, "/api/chats/"+id, "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tr := decodeBody[chat.Transcript](t, w)
	assert.Equal(t, "/chat/"+id, tr.Path)

	w = f.do(t, http.MethodGet, "/api/chats/"+id, "u2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFailureMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"auth", coreerrors.NewFailure(coreerrors.KindAuthInvalid, "openai", "Incorrect API key provided"), http.StatusUnauthorized},
		{"capacity", coreerrors.NewFailure(coreerrors.KindCapacityExhausted, "openai", "all providers out of quota"), http.StatusServiceUnavailable},
		{"malformed", coreerrors.NewFailure(coreerrors.KindMalformed, "gemini", "empty"), http.StatusBadGateway},
		{"unknown", coreerrors.NewFailure(coreerrors.KindUnknown, "claude", "boom"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "")
			f.completer.err = tt.err

			w := f.do(t, http.MethodPost, "/api/design/chat", "u1", map[string]any{
				"messages": []providers.Message{{Role: providers.RoleUser, Content: "darker"}},
			})
			assert.Equal(t, tt.status, w.Code)
			body := decodeBody[errorBody](t, w)
			assert.Contains(t, body.Error, tt.err.(*coreerrors.Failure).Message)

			w = f.do(t, http.MethodPost, "/api/chat", "u1", map[string]any{
				"messages": []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
			})
			assert.Equal(t, tt.status, w.Code)
			assert.Empty(t, w.Header().Get("X-Chat-Id"))
		})
	}
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(t, http.MethodPost, "/api/chat", "u1", `{"messages":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/design/code", "u1", `{"name":"Card"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing prompt"}`, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/design/chat", "u1", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/design/chat", "u1", `{"messages":[{"role":"user","content":"x"}],"provider":"mistral"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDesignChat(t *testing.T) {
	f := newFixture(t, "")
	f.completer.text = `{"reply":"Rounder corners","tokens":{"radius":"1rem"}}`

	w := f.do(t, http.MethodPost, "/api/design/chat", "u1", map[string]any{
		"messages": []providers.Message{{Role: providers.RoleUser, Content: "rounder"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	reply := decodeBody[studio.DesignChatReply](t, w)
	assert.Equal(t, "Rounder corners", reply.Reply)
	assert.Equal(t, "1rem", reply.Tokens["radius"])
}

func TestGenerateCodeRendersOnSurface(t *testing.T) {
	f := newFixture(t, "")
	f.completer.text = counterCode

	w := f.do(t, http.MethodPost, "/api/design/code", "u1", map[string]any{
		"prompt": "a counter", "name": "Counter", "surface": "main",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[codeResponse](t, w)
	assert.Equal(t, "Counter", resp.Name)
	assert.True(t, strings.HasPrefix(resp.Source, "'use client'"))
	require.NotNil(t, resp.Preview)
	assert.Contains(t, resp.Preview.HTML, ">0</button>")

	cur, ok := f.engine.Manager().Surface(sandbox.SurfaceID("u1", "main")).Current()
	require.True(t, ok)
	assert.Equal(t, resp.Preview.SessionID, cur.SessionID)
}

func TestPreview(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(t, http.MethodPost, "/api/preview", "u1", previewRequest{Surface: "main", Code: counterCode})
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody[sandbox.Outcome](t, w)
	assert.Contains(t, out.HTML, "data-canvas-root")
	assert.Contains(t, out.HTML, "--radius: 0.5rem;")

	w = f.do(t, http.MethodPost, "/api/preview", "u1", previewRequest{Code: "export default function A() { return <div> }"})
	require.Equal(t, http.StatusOK, w.Code)
	out = decodeBody[sandbox.Outcome](t, w)
	require.NotNil(t, out.Compile)
	assert.NotEmpty(t, out.Compile.Messages)

	w = f.do(t, http.MethodPost, "/api/preview", "u1", previewRequest{Code: "export default function A() { return missing }"})
	require.Equal(t, http.StatusOK, w.Code)
	out = decodeBody[sandbox.Outcome](t, w)
	require.NotNil(t, out.Err)
	assert.Contains(t, out.Err.Message, "missing")
}

func TestFrame(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(t, http.MethodGet, "/api/preview/frame?code="+url.QueryEscape(counterCode), "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `id="root"`)

	w = f.do(t, http.MethodGet, "/api/preview/frame?embed=1&code="+url.QueryEscape(counterCode), "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), `<iframe sandbox="allow-scripts"`))

	w = f.do(t, http.MethodGet, "/api/preview/frame?code="+url.QueryEscape("export default function A() { return <div> }"), "u1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "compile_error")
}

func TestUsage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.md")
	require.NoError(t, os.WriteFile(path, []byte("# Usage\n"), 0o644))

	w := newFixture(t, path).do(t, http.MethodGet, "/api/docs/usage", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# Usage\n", w.Body.String())

	w = newFixture(t, filepath.Join(t.TempDir(), "missing.md")).do(t, http.MethodGet, "/api/docs/usage", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, "")
	f.do(t, http.MethodGet, "/healthz", "", nil)
	f.do(t, http.MethodPost, "/api/preview", "u1", previewRequest{Code: counterCode})

	w := f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `canvas_http_requests_total{code="200",route="/healthz"} 1`)
	assert.Contains(t, body, `canvas_sandbox_renders_total{outcome="mounted"} 1`)
}
