package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/djvang/pdftron-sign-app/api/ledgerhandler"
	"github.com/djvang/pdftron-sign-app/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, pprof bool) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(&HTTPServerConfig{
		ListenAddr:  "127.0.0.1:0",
		EnablePprof: pprof,
		Log:         log,
	}, ledgerhandler.NewHandler(ledger.NewMemoryLedger(), time.Hour, log))
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Code, w.Body.String()
}

func TestDrainUndrain(t *testing.T) {
	srv := newTestServer(t, false)
	h := srv.Handler()

	steps := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/livez", http.StatusOK, `{"status":"alive"}`},
		{"/readyz", http.StatusOK, `{"status":"ready"}`},
		{"/drain", http.StatusOK, `{"status":"draining"}`},
		{"/drain", http.StatusOK, `{"status":"already draining"}`},
		{"/readyz", http.StatusServiceUnavailable, `{"status":"not ready"}`},
		{"/livez", http.StatusOK, `{"status":"alive"}`},
		{"/undrain", http.StatusOK, `{"status":"ready"}`},
		{"/undrain", http.StatusOK, `{"status":"already ready"}`},
		{"/readyz", http.StatusOK, `{"status":"ready"}`},
	}

	for _, step := range steps {
		code, body := get(t, h, step.path)
		assert.Equal(t, step.wantCode, code, step.path)
		assert.JSONEq(t, step.wantBody, body, step.path)
	}
	assert.True(t, srv.IsReady())
}

func TestAPIRoutesMounted(t *testing.T) {
	srv := newTestServer(t, false)

	code, body := get(t, srv.Handler(), "/api/contracts")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, body)

	code, _ = get(t, srv.Handler(), "/api/contracts/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPprofIsOptional(t *testing.T) {
	code, _ := get(t, newTestServer(t, false).Handler(), "/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, newTestServer(t, true).Handler(), "/debug/pprof/")
	assert.Equal(t, http.StatusOK, code)
}
