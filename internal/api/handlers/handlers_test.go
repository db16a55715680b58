package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/devgenius/artifact-gateway/internal/artifact"
	"github.com/devgenius/artifact-gateway/internal/continuation"
	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/invoke"
	"github.com/devgenius/artifact-gateway/internal/pipeline"
	"github.com/devgenius/artifact-gateway/internal/provider/fake"
	"github.com/devgenius/artifact-gateway/internal/render"
	"github.com/devgenius/artifact-gateway/internal/session"
	"github.com/devgenius/artifact-gateway/internal/storage/memory"
)

const diagram = `<mxGraphModel><root><mxCell id="0"/><mxCell id="1" parent="0"/><mxCell id="2" value="Amazon S3" style="shape=mxgraph.aws4.s3"/></root></mxGraphModel>`

const workspaceDSL = `workspace {
  model {
    user = person "User"
    app = softwareSystem "App"
    user -> app "Uses"
  }
  views {
    systemContext app {
      include *
      autoLayout
    }
  }
}`

type testEnv struct {
	provider  *fake.Provider
	sessions  *session.Store
	store     *memory.Store
	artifacts *artifact.MemoryStore
	router    *chi.Mux
}

func newTestEnv(t *testing.T, opts []Option, turns ...fake.Turn) *testEnv {
	t.Helper()
	env := &testEnv{
		provider:  fake.New(turns...),
		sessions:  session.NewStore(),
		store:     memory.New(),
		artifacts: artifact.NewMemoryStore(),
		router:    chi.NewRouter(),
	}
	client := invoke.New(env.provider, invoke.Config{Model: "test-model", RetryBase: time.Millisecond})
	p := pipeline.New(continuation.New(client),
		pipeline.WithArtifactStore(env.artifacts),
		pipeline.WithConversationStore(env.store),
		pipeline.WithFeedbackStore(env.store),
		pipeline.WithModel("test-model"),
	)
	New(p, env.sessions, env.store, env.artifacts, opts...).Register(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/sessions", `{"user_name":"Ada","messages":[{"role":"assistant","content":"A serverless upload API"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp sessionResponse
	decode(t, rec, &resp)
	return resp.ConversationID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorBody
	decode(t, rec, &body)
	return body.Error.Code
}

func fence(tag, body string) string {
	return "Here you go:\n```" + tag + "\n" + body + "\n```\n"
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t)

	rec, err := env.store.GetSession(context.Background(), id)
	if err != nil || rec.UserName != "Ada" {
		t.Fatalf("persisted session = %+v, %v", rec, err)
	}

	got := env.do(t, http.MethodPut, "/v1/sessions/"+id+"/selection", `{"kinds":["dsl","architecture"]}`)
	if got.Code != http.StatusOK {
		t.Fatalf("selection status = %d", got.Code)
	}
	var resp sessionResponse
	decode(t, got, &resp)
	if len(resp.Selected) != 2 || resp.Selected[0] != domain.KindArchitecture {
		t.Errorf("Selected = %v, want display order", resp.Selected)
	}
	if resp.Messages != 1 {
		t.Errorf("Messages = %d", resp.Messages)
	}

	if got := env.do(t, http.MethodDelete, "/v1/sessions/"+id+"/", ""); got.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", got.Code)
	}
	if got := env.do(t, http.MethodGet, "/v1/sessions/"+id+"/", ""); got.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", got.Code)
	}
}

func TestSessionInputValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"bad role", http.MethodPost, "/v1/sessions/" + id + "/messages", `{"messages":[{"role":"system","content":"x"}]}`},
		{"empty messages", http.MethodPost, "/v1/sessions/" + id + "/messages", `{"messages":[]}`},
		{"unknown kind", http.MethodPut, "/v1/sessions/" + id + "/selection", `{"kinds":["slides"]}`},
		{"bad json", http.MethodPost, "/v1/sessions", `{`},
		{"generate unknown kind", http.MethodPost, "/v1/sessions/" + id + "/artifacts/slides", `{}`},
		{"nothing selected", http.MethodPost, "/v1/sessions/" + id + "/generate", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGenerateAndRateFeedback(t *testing.T) {
	env := newTestEnv(t, nil, fake.Text(domain.StopReasonEndTurn, fence("xml", diagram)))
	id := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/v1/sessions/"+id+"/artifacts/architecture", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var res pipeline.Result
	decode(t, rec, &res)
	if res.Artifact != diagram || res.FeedbackID == "" || res.ArtifactName == "" {
		t.Fatalf("result = %+v", res)
	}

	files := env.do(t, http.MethodGet, "/v1/sessions/"+id+"/files", "")
	if !strings.Contains(files.Body.String(), res.ArtifactName) {
		t.Errorf("files = %s", files.Body.String())
	}
	file := env.do(t, http.MethodGet, "/v1/sessions/"+id+"/files/"+res.ArtifactName, "")
	if file.Code != http.StatusOK || !strings.HasPrefix(file.Header().Get("Content-Type"), "text/markdown") {
		t.Errorf("file status = %d, type = %q", file.Code, file.Header().Get("Content-Type"))
	}

	conv := env.do(t, http.MethodGet, "/v1/sessions/"+id+"/conversation", "")
	var records struct {
		Records []domain.ConversationRecord `json:"records"`
	}
	decode(t, conv, &records)
	if len(records.Records) != 1 {
		t.Errorf("records = %+v", records.Records)
	}

	rate := env.do(t, http.MethodPost, "/v1/feedback/"+res.FeedbackID, `{"sentiment":1,"explanation":"clear layout"}`)
	if rate.Code != http.StatusOK {
		t.Fatalf("rate status = %d, body = %s", rate.Code, rate.Body.String())
	}
	var fb domain.Feedback
	decode(t, rate, &fb)
	if fb.Sentiment == nil || *fb.Sentiment != domain.SentimentPositive || fb.Explanation != "clear layout" {
		t.Errorf("feedback = %+v", fb)
	}
}

func TestRecordFeedbackErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing sentiment", `{"explanation":"x"}`, http.StatusBadRequest},
		{"bad sentiment", `{"sentiment":3,"explanation":"x"}`, http.StatusBadRequest},
		{"missing explanation", `{"sentiment":0}`, http.StatusBadRequest},
		{"unknown slot", `{"sentiment":0,"explanation":"x"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/feedback/nope", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name     string
		turns    []fake.Turn
		wantCode int
		wantErr  string
	}{
		{
			name:     "no fenced block",
			turns:    []fake.Turn{fake.Text(domain.StopReasonEndTurn, "I cannot draw that.")},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "extraction_failed",
		},
		{
			name:     "throttled",
			turns:    []fake.Turn{fake.Throttle(), fake.Throttle(), fake.Throttle()},
			wantCode: http.StatusTooManyRequests,
			wantErr:  "invocation_failed",
		},
		{
			name:     "provider rejects credentials",
			turns:    []fake.Turn{{Err: domain.ErrAuthentication("bad key")}},
			wantCode: http.StatusBadGateway,
			wantErr:  "invocation_failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, tt.turns...)
			id := env.createSession(t)
			rec := env.do(t, http.MethodPost, "/v1/sessions/"+id+"/artifacts/architecture", `{}`)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.wantErr {
				t.Errorf("code = %q, want %q", code, tt.wantErr)
			}
		})
	}
}

func TestGenerateStream(t *testing.T) {
	env := newTestEnv(t, nil, fake.Text(domain.StopReasonEndTurn, "```xml\n", diagram, "\n```"))
	id := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/v1/sessions/"+id+"/artifacts/architecture", `{}`, "Accept", "text/event-stream")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if n := strings.Count(body, "event: delta\n"); n != 3 {
		t.Errorf("delta events = %d, body:\n%s", n, body)
	}
	if !strings.Contains(body, "event: result\n") || strings.Contains(body, "event: error\n") {
		t.Errorf("body:\n%s", body)
	}
}

func TestGenerateSelectedContinuesAfterFailure(t *testing.T) {
	env := newTestEnv(t, nil,
		fake.Text(domain.StopReasonEndTurn, "no diagram here"),
		fake.Text(domain.StopReasonEndTurn, fence("dsl", workspaceDSL)),
	)
	id := env.createSession(t)
	env.do(t, http.MethodPut, "/v1/sessions/"+id+"/selection", `{"kinds":["architecture","dsl"]}`)

	rec := env.do(t, http.MethodPost, "/v1/sessions/"+id+"/generate", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Results []kindResult `json:"results"`
	}
	decode(t, rec, &resp)
	if len(resp.Results) != 2 {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Results[0].Error == nil || resp.Results[0].Error.Code != "extraction_failed" {
		t.Errorf("architecture = %+v", resp.Results[0])
	}
	if resp.Results[1].Result == nil || !resp.Results[1].Result.Validation.Valid {
		t.Errorf("dsl = %+v", resp.Results[1])
	}
}

func TestBundle(t *testing.T) {
	env := newTestEnv(t, nil, fake.Text(domain.StopReasonEndTurn, fence("xml", diagram)))
	id := env.createSession(t)
	env.do(t, http.MethodPost, "/v1/sessions/"+id+"/artifacts/architecture", `{}`)

	rec := env.do(t, http.MethodPost, "/v1/sessions/"+id+"/bundle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		URL string `json:"url"`
	}
	decode(t, rec, &resp)
	if want := "memory://" + id + "/" + artifact.BundleName; resp.URL != want {
		t.Errorf("url = %q, want %q", resp.URL, want)
	}
	sess, err := env.store.GetSession(context.Background(), id)
	if err != nil || sess.BundleURL != resp.URL {
		t.Errorf("session bundle url = %+v, %v", sess, err)
	}

	raw := env.do(t, http.MethodPost, "/v1/sessions/"+id+"/bundle", "", "Accept", "application/zip")
	zr, err := zip.NewReader(bytes.NewReader(raw.Body.Bytes()), int64(raw.Body.Len()))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if len(names) != 2 || !strings.Contains(strings.Join(names, ","), id+"/"+artifact.TranscriptName) {
		t.Errorf("entries = %v", names)
	}
}

func TestValidateEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/validate/dsl", mustJSON(t, map[string]string{"content": "```\n" + workspaceDSL + "\n```"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Valid   bool   `json:"valid"`
		Cleaned string `json:"cleaned"`
	}
	decode(t, rec, &resp)
	if !resp.Valid || !strings.HasPrefix(resp.Cleaned, "workspace") {
		t.Errorf("resp = %+v", resp)
	}

	if rec := env.do(t, http.MethodPost, "/v1/validate/slides", `{"content":"x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/v1/validate/cost", `{"content":"  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty content status = %d", rec.Code)
	}
}

func TestExtractEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	body := mustJSON(t, map[string]string{"text": fence("ts", "a") + fence("ts", "b"), "tag": "ts"})
	rec := env.do(t, http.MethodPost, "/v1/extract", body)
	var resp struct {
		Blocks []string `json:"blocks"`
	}
	decode(t, rec, &resp)
	if len(resp.Blocks) != 2 || resp.Blocks[0] != "a" {
		t.Errorf("blocks = %v", resp.Blocks)
	}

	rec = env.do(t, http.MethodPost, "/v1/extract", `{"text":"plain","tag":"yaml"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing block status = %d", rec.Code)
	}
}

func TestAnalyzeEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/analyze/diagram", mustJSON(t, map[string]string{"content": diagram}))
	if !strings.Contains(rec.Body.String(), "Amazon S3") {
		t.Errorf("diagram analysis = %s", rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/v1/analyze/dsl", mustJSON(t, map[string]string{"content": workspaceDSL}))
	if !strings.Contains(rec.Body.String(), `"has_workspace":true`) {
		t.Errorf("dsl explanation = %s", rec.Body.String())
	}
}

func TestRenderDrawIO(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/render/drawio", mustJSON(t, map[string]string{"content": diagram}))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("status = %d, type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "mxgraph") {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/v1/render/drawio", `{"content":"<mxGraphModel>"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed status = %d", rec.Code)
	}
}

func TestRenderStructurizr(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := env.do(t, http.MethodPost, "/v1/render/structurizr", mustJSON(t, map[string]string{"content": workspaceDSL}))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("svg", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/structurizr/svg/") {
				t.Errorf("path = %s", r.URL.Path)
			}
			io.WriteString(w, "<svg/>")
		}))
		defer upstream.Close()

		kroki, err := render.NewKroki(4, render.WithKrokiURL(upstream.URL))
		if err != nil {
			t.Fatal(err)
		}
		env := newTestEnv(t, []Option{WithKroki(kroki)})
		rec := env.do(t, http.MethodPost, "/v1/render/structurizr", mustJSON(t, map[string]string{"content": workspaceDSL}))
		if rec.Code != http.StatusOK || rec.Body.String() != "<svg/>" {
			t.Errorf("status = %d, body = %q", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
			t.Errorf("Content-Type = %q", ct)
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		kroki, _ := render.NewKroki(4, render.WithKrokiURL("http://127.0.0.1:0"))
		env := newTestEnv(t, []Option{WithKroki(kroki)})
		rec := env.do(t, http.MethodPost, "/v1/render/structurizr", mustJSON(t, map[string]string{"content": workspaceDSL, "format": "gif"}))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
