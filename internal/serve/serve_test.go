package serve

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, liveReload bool) (*Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>reports</h1>"), 0o644)
	require.NoError(t, err)
	return NewServer(Options{Host: "127.0.0.1", Port: 0, Dir: dir, LiveReload: liveReload}, nil), dir
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, false)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestStaticFiles(t *testing.T) {
	s, _ := newTestServer(t, false)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "reports")

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/absent.csv", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, false)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestEventsDisabledWithoutLiveReload(t *testing.T) {
	s, _ := newTestServer(t, false)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHubBroadcast(t *testing.T) {
	s, _ := newTestServer(t, true)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)

	// First frame announces the connection.
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "connected")
	_, _ = reader.ReadString('\n')

	// Wait for registration before broadcasting.
	require.Eventually(t, func() bool {
		return s.Hub().ClientCount() > 0
	}, 2*time.Second, 10*time.Millisecond, "client never registered")

	s.Hub().Broadcast(ReloadEvent{Type: "reload", Path: "index.html", Timestamp: time.Now()})
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"reload"`)
	assert.Contains(t, line, "index.html")
}

func TestHubConcurrentBroadcast(t *testing.T) {
	s, _ := newTestServer(t, true)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)
	_, err = reader.ReadString('\n')
	require.NoError(t, err)
	_, _ = reader.ReadString('\n')
	require.Eventually(t, func() bool {
		return s.Hub().ClientCount() > 0
	}, 2*time.Second, 10*time.Millisecond)

	// Writers race only against the connection goroutine's channel drain;
	// every frame must arrive intact.
	const frames = 4
	var wg sync.WaitGroup
	for i := 0; i < frames; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Hub().Broadcast(ReloadEvent{Type: "reload", Path: fmt.Sprintf("f%d.csv", n), Timestamp: time.Now()})
		}(i)
	}
	wg.Wait()

	got := 0
	for got < frames {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.Contains(line, `"reload"`) {
			got++
		}
	}
}

func TestWatcherFiresReload(t *testing.T) {
	s, dir := newTestServer(t, true)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	ctx := t.Context()
	go func() { _ = NewWatcher(dir, s.Hub(), nil).Run(ctx) }()

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)
	_, err = reader.ReadString('\n')
	require.NoError(t, err)
	_, _ = reader.ReadString('\n')
	require.Eventually(t, func() bool {
		return s.Hub().ClientCount() > 0
	}, 2*time.Second, 10*time.Millisecond)

	// Give the watcher a moment to set up its watches.
	time.Sleep(100 * time.Millisecond)
	err = os.WriteFile(filepath.Join(dir, "fresh.csv"), []byte("a,b\n"), 0o644)
	require.NoError(t, err)

	lineCh := make(chan string, 1)
	go func() {
		l, err := reader.ReadString('\n')
		if err == nil {
			lineCh <- l
		}
	}()
	select {
	case line := <-lineCh:
		assert.Contains(t, line, `"reload"`)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload event after file change")
	}
}
