package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

const manifest = `
[plugin]
id = "notes"
name = "Notes"
script = "main.js"

[[entrypoint]]
id = "browse"
name = "Browse Notes"
type = "view"

[assets]
include = ["icons/*.png"]
`

const script = `
var root = host.getContainer("view");
var list = host.createInstance("ui:list", {});
var item = host.createInstance("ui:list_item", {title: "groceries", icon: {asset: "icons/note.png"}});
host.appendChild(list, item);
host.appendChild(root, list);
host.render("browse", "view", true);
`

var png = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func writePlugin(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
	return dir
}

func newTestServer(t *testing.T, files map[string][]byte) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Plugin.Dir = writePlugin(t, files)
	cfg.Logging.Development = true

	s, err := NewServer(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestServerRendersPluginScript(t *testing.T) {
	s := newTestServer(t, map[string][]byte{
		"plugin.toml":    []byte(manifest),
		"main.js":        []byte(script),
		"icons/note.png": png,
	})
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		_, ok := s.host.Rendered(widget.LocationView)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	p, _ := s.host.Rendered(widget.LocationView)
	item := p.Root.Children[0].Children[0]
	require.Contains(t, p.Images, item.ID)
	assert.Equal(t, "image/png", p.Images[item.ID].MIME)
	assert.Empty(t, p.ImageErrors)

	srv := httptest.NewServer(s.Router())
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg map[string]interface{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "system", msg["type"])
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "render", msg["type"])
}

func TestServerHealth(t *testing.T) {
	s := newTestServer(t, map[string][]byte{"plugin.toml": []byte(manifest)})

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"plugin":"notes"`)

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestServerReportsScriptFailures(t *testing.T) {
	tests := []struct {
		name  string
		files map[string][]byte
	}{
		{"missing script", map[string][]byte{"plugin.toml": []byte(manifest)}},
		{"throwing script", map[string][]byte{
			"plugin.toml": []byte(manifest),
			"main.js":     []byte(`throw new Error("boom")`),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.files)
			assert.Error(t, s.Start(context.Background()))
		})
	}
}

func TestNewServerRejectsBadManifest(t *testing.T) {
	cfg := config.Default()
	cfg.Plugin.Dir = writePlugin(t, map[string][]byte{"plugin.toml": []byte("[plugin")})
	_, err := NewServer(cfg, nil)
	assert.Error(t, err)
}
