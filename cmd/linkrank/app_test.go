package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkrank/internal/config"
	"github.com/fyrsmithlabs/linkrank/internal/consumer"
	"github.com/fyrsmithlabs/linkrank/internal/orchestrator"
	"github.com/fyrsmithlabs/linkrank/internal/page"
)

const testSnapshot = `{"url":"https://news.example.com/","candidates":[
  {"text":"Markets rally","href":"https://news.example.com/markets"}
]}`

// setupTestEnv isolates the config lookup and resets the global flags.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	prevConfig, prevLevel := configPath, logLevel
	configPath, logLevel = "", ""
	t.Cleanup(func() { configPath, logLevel = prevConfig, prevLevel })
	return home
}

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	server, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)
	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestOrchestratorConfig(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, orchestrator.Config{}, orchestratorConfig(cfg), "zero bounds defer to the orchestrator")

	cfg.Ranking = config.RankingConfig{
		Protocol:      "pairs",
		BatchSize:     4,
		MaxCandidates: 12,
		BatchTimeout:  config.Duration(2 * time.Second),
		HardTimeout:   config.Duration(5 * time.Second),
		SingleShotMax: 2,
	}
	got := orchestratorConfig(cfg)
	assert.Equal(t, orchestrator.Config{
		BatchSize:     4,
		MaxCandidates: 12,
		BatchTimeout:  2 * time.Second,
		HardTimeout:   5 * time.Second,
		SingleShotMax: 2,
		Protocol:      orchestrator.ModePairs,
	}, got)
	require.NoError(t, got.Validate())
}

func TestLoadHandle(t *testing.T) {
	dir := t.TempDir()
	htmlPath := writeFile(t, dir, "page.html", `<a href="/a">A</a>`)
	snapPath := writeFile(t, dir, "capture.json", testSnapshot)

	tests := []struct {
		name     string
		url      string
		html     string
		snapshot string
		wantURL  string
		wantType string
		wantErr  string
	}{
		{name: "url", url: "https://example.com/", wantURL: "https://example.com/"},
		{name: "non-http url", url: "ftp://example.com/", wantErr: "http or https"},
		{name: "nothing", wantErr: "required"},
		{name: "html with url", url: "https://example.com/", html: htmlPath, wantURL: "https://example.com/", wantType: "text/html"},
		{name: "html without url", html: htmlPath, wantURL: "file://", wantType: "text/html"},
		{name: "snapshot url", snapshot: snapPath, wantURL: "https://news.example.com/", wantType: "application/json"},
		{name: "snapshot override", url: "https://other.example.com/", snapshot: snapPath, wantURL: "https://other.example.com/", wantType: "application/json"},
		{name: "missing html", html: filepath.Join(dir, "missing.html"), wantErr: "reading html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := loadHandle(tt.url, tt.html, tt.snapshot)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(h.URL, tt.wantURL), "url %q", h.URL)
			assert.Equal(t, tt.wantType, h.ContentType)
			if tt.wantType != "" {
				assert.NotEmpty(t, h.Content)
			}
		})
	}
}

func TestNewRankOutput_EmptyCandidates(t *testing.T) {
	out := newRankOutput(orchestrator.Result{RequestID: 3, URL: "https://example.com/", Status: consumer.StatusNoLinks})
	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"candidates":[]`)
	assert.Contains(t, string(data), `"status":"no_links"`)
	assert.NotContains(t, string(data), `"error"`)
}

func TestNewApp_Defaults(t *testing.T) {
	setupTestEnv(t)
	ctx := context.Background()

	a, err := newApp(ctx, appOptions{publish: true})
	require.NoError(t, err)
	assert.NotNil(t, a.analyzer)
	assert.NotNil(t, a.broadcaster)
	assert.Nil(t, a.natsConn, "NATS stays off without a URL")
	assert.Equal(t, 9090, a.cfg.Server.Port)
	require.NoError(t, a.Close(ctx))
}

func TestNewApp_InvalidSettings(t *testing.T) {
	t.Run("log level", func(t *testing.T) {
		setupTestEnv(t)
		logLevel = "loud"
		_, err := newApp(context.Background(), appOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--log-level")
	})
	t.Run("protocol", func(t *testing.T) {
		setupTestEnv(t)
		t.Setenv("LINKRANK_RANKING_PROTOCOL", "xml")
		_, err := newApp(context.Background(), appOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown ranking protocol")
	})
}

func TestNewApp_PublishesToNATS(t *testing.T) {
	setupTestEnv(t)
	server := startTestNATSServer(t)
	t.Setenv("LINKRANK_NATS_URL", server.ClientURL())
	t.Setenv("LINKRANK_NATS_SUBJECT_PREFIX", "test.snapshots")

	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	received := make(chan consumer.Snapshot, 4)
	sub, err := consumer.Subscribe(nc, "test.snapshots", nil, func(s consumer.Snapshot) { received <- s })
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()
	require.NoError(t, nc.Flush())

	ctx := context.Background()
	rec := consumer.NewRecorder()
	a, err := newApp(ctx, appOptions{publish: true, sinks: []consumer.Consumer{rec}})
	require.NoError(t, err)
	defer func() { _ = a.Close(ctx) }()
	require.NotNil(t, a.natsConn)

	// No candidate survives normalisation, so no engine call is made.
	res, err := a.analyzer.Analyze(ctx, page.Handle{
		URL:         "https://empty.example.com/",
		Content:     []byte(`{"url":"https://empty.example.com/","candidates":[]}`),
		ContentType: "application/json",
	})
	require.NoError(t, err)
	assert.Equal(t, consumer.StatusNoLinks, res.Status)
	require.Len(t, rec.Finals(), 1)

	latest, ok := a.broadcaster.LatestFinal()
	require.True(t, ok)
	assert.Equal(t, res.RequestID, latest.RequestID)

	select {
	case s := <-received:
		assert.True(t, s.Final)
		assert.Equal(t, "https://empty.example.com/", s.URL)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot published")
	}
}

type fakeTrigger struct {
	mu      sync.Mutex
	handles []page.Handle
}

func (f *fakeTrigger) Trigger(h page.Handle) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handles = append(f.handles, h)
	return uint64(len(f.handles))
}

func (f *fakeTrigger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handles)
}

func (f *fakeTrigger) last() page.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[len(f.handles)-1]
}

func TestFileWatcher_TriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "page.html", `<a href="/a">First</a>`)
	writeFile(t, dir, "other.html", `<a href="/b">Other</a>`)

	trig := &fakeTrigger{}
	w := &fileWatcher{
		path: path,
		load: func() (page.Handle, error) {
			return loadHandle("https://example.com/", path, "")
		},
		analyzer: trig,
		logger:   zap.NewNop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return trig.count() == 1 }, 5*time.Second, 10*time.Millisecond,
		"initial analysis is triggered on start")

	require.NoError(t, os.WriteFile(path, []byte(`<a href="/c">Second</a>`), 0o600))
	require.Eventually(t, func() bool { return trig.count() >= 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, string(trig.last().Content), "Second")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	w := &fileWatcher{path: "/pages/page.html"}
	assert.False(t, w.relevant(fsEvent("/pages/other.html", true)))
	assert.True(t, w.relevant(fsEvent("/pages/page.html", true)))
	assert.False(t, w.relevant(fsEvent("/pages/page.html", false)))
}

func fsEvent(name string, write bool) fsnotify.Event {
	op := fsnotify.Chmod
	if write {
		op = fsnotify.Write
	}
	return fsnotify.Event{Name: name, Op: op}
}

func TestRunInit(t *testing.T) {
	home := setupTestEnv(t)
	prev := initForce
	t.Cleanup(func() { initForce = prev })
	initForce = false

	var out bytes.Buffer
	initCmd.SetOut(&out)
	t.Cleanup(func() { initCmd.SetOut(nil) })

	require.NoError(t, runInit(initCmd, nil))
	path := filepath.Join(home, ".config", "linkrank", "config.yaml")
	assert.Contains(t, out.String(), "Wrote "+path)

	out.Reset()
	require.NoError(t, runInit(initCmd, nil))
	assert.Contains(t, out.String(), "already exists")

	a, err := newApp(context.Background(), appOptions{})
	require.NoError(t, err, "the written file loads")
	assert.Equal(t, "auto", a.cfg.Ranking.Protocol)
	require.NoError(t, a.Close(context.Background()))
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "linkrank dev (commit unknown, built unknown)", versionString())
}
