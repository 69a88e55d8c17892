package http_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/opentrusty/console/internal/audit"
	"github.com/opentrusty/console/internal/backend"
	"github.com/opentrusty/console/internal/identity"
	transportHTTP "github.com/opentrusty/console/internal/transport/http"
	"github.com/stretchr/testify/require"
)

const testHost = "admin.local"

// recordingAudit keeps every event for assertions
type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *recordingAudit) Log(_ context.Context, e audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAudit) types() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeBackend counts the requests that reach it
type fakeBackend struct {
	*httptest.Server
	hits atomic.Int32
}

func newFakeBackend(t *testing.T, handler http.HandlerFunc) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(fb.Close)
	return fb
}

type consoleOptions struct {
	verifier *identity.Verifier
	audit    audit.Logger
	limiter  *transportHTTP.RateLimiter
	opts     transportHTTP.RouterOptions
}

func newConsole(t *testing.T, backendURL string, co consoleOptions) http.Handler {
	t.Helper()
	client, err := backend.New(backend.Config{BaseURL: backendURL}, nil)
	require.NoError(t, err)

	if co.opts.ExternalHost == "" {
		co.opts.ExternalHost = testHost
	}
	h := transportHTTP.NewHandler(client, co.verifier, co.audit, nil)
	return transportHTTP.NewRouter(h, co.limiter, co.opts)
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body.Message
}

type uploadPart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, parts ...uploadPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		header := textproto.MIMEHeader{}
		if p.filename != "" {
			header.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		} else {
			header.Set("Content-Disposition", `form-data; name="`+p.field+`"`)
		}
		if p.contentType != "" {
			header.Set("Content-Type", p.contentType)
		}
		pw, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = pw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
