package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devgenius/artifact-gateway/internal/config"
	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/pipeline"
	"github.com/devgenius/artifact-gateway/internal/provider/fake"
	"github.com/devgenius/artifact-gateway/internal/storage/memory"
)

const diagramReply = "```xml\n<mxGraphModel><root><mxCell id=\"0\"/><mxCell id=\"1\" parent=\"0\" value=\"AWS Lambda\"/></root></mxGraphModel>\n```"

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGateway_New_InvalidConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "generation:\n  max_attempts: 0\n")
	if _, err := New(WithConfigFile(path), WithLogger(quietLogger())); err == nil {
		t.Fatal("expected error for max_attempts 0")
	}
}

func TestGateway_New_UnknownStorage(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "storage:\n  type: cassandra\n")
	_, err := New(WithConfigFile(path), WithLogger(quietLogger()))
	if err == nil || !strings.Contains(err.Error(), "cassandra") {
		t.Fatalf("err = %v", err)
	}
}

func TestGateway_Start_Serve_Reload_Shutdown(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
server:
  port: 0
provider:
  model: first-model
render:
  kroki_url: ""
`)
	p := fake.New(
		fake.Text(domain.StopReasonEndTurn, diagramReply),
		fake.Text(domain.StopReasonEndTurn, diagramReply),
	)
	store := memory.New()
	gw, err := New(WithConfigFile(path), WithLogger(quietLogger()), WithProvider(p), WithStore(store))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if gw.Handler() != nil {
		t.Error("Handler() should be nil before Start")
	}

	ctx := context.Background()
	if err := gw.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := gw.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	health := httptest.NewRecorder()
	gw.Handler().ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	if health.Code != http.StatusOK {
		t.Errorf("health status = %d", health.Code)
	}

	id := createSession(t, gw)
	first := generate(t, gw, id)

	newCfg := *gw.Config()
	newCfg.Provider.Model = "second-model"
	if err := gw.reload(&newCfg); err != nil {
		t.Fatalf("reload() error = %v", err)
	}
	second := generate(t, gw, id)

	for want, res := range map[string]*pipeline.Result{"first-model": first, "second-model": second} {
		fb, err := store.GetFeedback(ctx, res.FeedbackID)
		if err != nil {
			t.Fatal(err)
		}
		if fb.ModelID != want {
			t.Errorf("ModelID = %q, want %q", fb.ModelID, want)
		}
	}
	if got := p.Requests()[1].Model; got != "second-model" {
		t.Errorf("reloaded request model = %q", got)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestGateway_ReloadBeforeStart(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "server:\n  port: 0\n")
	gw, err := New(WithConfigFile(path), WithLogger(quietLogger()), WithProvider(fake.New()))
	if err != nil {
		t.Fatal(err)
	}
	cfg := *gw.Config()
	if err := gw.reload(&cfg); err == nil {
		t.Error("reload before Start should fail")
	}
}

func TestOpenArtifacts(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.ArtifactsConfig
		wantRegion string
		wantErr    bool
	}{
		{name: "memory", cfg: config.ArtifactsConfig{Type: "memory"}},
		{name: "fs", cfg: config.ArtifactsConfig{Type: "fs", Dir: t.TempDir()}},
		{name: "s3", cfg: config.ArtifactsConfig{Type: "s3", S3: config.S3Config{Bucket: "b", Region: "eu-west-1"}}, wantRegion: "eu-west-1"},
		{name: "s3 without bucket", cfg: config.ArtifactsConfig{Type: "s3"}, wantErr: true},
		{name: "unknown", cfg: config.ArtifactsConfig{Type: "ftp"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, region, err := OpenArtifacts(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (s == nil || region != tt.wantRegion) {
				t.Errorf("store = %v, region = %q", s, region)
			}
		})
	}
}

func TestOpenStore(t *testing.T) {
	s, err := OpenStore(config.StorageConfig{Type: "sqlite", DSN: "file:runtime_test?mode=memory&cache=shared"})
	if err != nil {
		t.Fatalf("OpenStore(sqlite) error = %v", err)
	}
	s.Close()

	if _, err := OpenStore(config.StorageConfig{Type: "postgres"}); err == nil {
		t.Error("postgres without dsn should fail")
	}
}

func createSession(t *testing.T, gw *Gateway) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"messages":[{"role":"assistant","content":"An event driven image pipeline"}]}`))
	gw.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.ConversationID
}

func generate(t *testing.T, gw *Gateway, id string) *pipeline.Result {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id+"/artifacts/architecture", strings.NewReader(`{}`))
	gw.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var res pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	return &res
}
