package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWeb serves a SearXNG JSON endpoint and the pages it links to.
func fakeWeb(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		type hit struct {
			URL     string `json:"url"`
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		var hits []hit
		for _, id := range []string{"a", "b", "c", "d", "e"} {
			hits = append(hits, hit{URL: srv.URL + "/p/" + id, Title: "NVIDIA report " + id, Content: "snippet " + id})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": hits})
	})

	mux.HandleFunc("/p/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/p/")
		para := strings.Repeat(fmt.Sprintf("NVIDIA reported record data center revenue in report %s. ", id), 8)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>NVIDIA report %s</title></head><body>
<nav>Home | Markets</nav>
<article><h1>NVIDIA report %s</h1><p>%s</p><p>%s</p></article>
</body></html>`, id, id, para, para)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// fakeModels answers OpenAI-compatible chat calls by model name and serves
// Ollama embeddings.
type fakeModels struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeModels) count(model string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[model]
}

func (f *fakeModels) reply(model, user string) string {
	switch model {
	case "planner":
		return "<think>earnings question</think><search_type>financial</search_type><topic>NVIDIA quarterly earnings</topic>"
	case "validator":
		for _, ok := range []string{"/p/a\n", "/p/c\n", "/p/e\n"} {
			if strings.Contains(user, ok) {
				return "<pass></pass>"
			}
		}
		return "<fail>not about the latest quarter</fail>"
	case "abstractor":
		return "<structured_data>- data center revenue hit a record</structured_data>"
	case "synthesis":
		if strings.Contains(user, `ref="3"`) {
			return "NVIDIA posted record data center revenue [1][2][3]."
		}
		return "The page describes NVIDIA's record quarter [1]."
	case "summary":
		return "Explained NVIDIA's record quarter from three reports."
	case "title":
		return "NVIDIA earnings"
	}
	return ""
}

func newFakeModels(t *testing.T) (*fakeModels, *httptest.Server) {
	t.Helper()
	f := &fakeModels{calls: map[string]int{}}
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string         `json:"model"`
			Messages []core.Message `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		f.calls[req.Model]++
		f.mu.Unlock()

		user := req.Messages[len(req.Messages)-1].Content
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": f.reply(req.Model, user)}}},
		})
	})

	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.3, 0.4, 0.5}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func setupEnv(t *testing.T, models, web string) {
	t.Setenv("CHORUS_RUNTIME_PATH", t.TempDir())
	t.Setenv("LLM_PROVIDER", "custom")
	t.Setenv("CUSTOM_OPENAI_BASE_URL", models)
	t.Setenv("OLLAMA_BASE_URL", models)
	t.Setenv("SEARXNG_URL", web)
	t.Setenv("SEARCH_RPS", "100")
	for env, model := range map[string]string{
		"PLANNER_MODEL":    "planner",
		"VALIDATOR_MODEL":  "validator",
		"REFINER_MODEL":    "refiner",
		"ABSTRACTOR_MODEL": "abstractor",
		"SYNTHESIS_MODEL":  "synthesis",
		"SUMMARY_MODEL":    "summary",
		"TITLE_MODEL":      "title",
	} {
		t.Setenv(env, model)
	}
}

func TestApp_FinancialQuestionEndToEnd(t *testing.T) {
	ctx := context.Background()
	web := fakeWeb(t)
	models, modelSrv := newFakeModels(t)
	setupEnv(t, modelSrv.URL, web.URL)

	app, err := NewApp(ctx)
	require.NoError(t, err)
	defer app.Close(ctx)

	var states []core.State
	res, err := app.Sessions.Ask(ctx, "", "How did NVIDIA do last quarter?", func(p core.Progress) {
		states = append(states, p.State)
	})
	require.NoError(t, err)

	var urls []string
	for _, c := range res.Citations {
		urls = append(urls, c.URL)
	}
	assert.Equal(t, []string{web.URL + "/p/a", web.URL + "/p/c", web.URL + "/p/e"}, urls)
	assert.Equal(t, core.SearchFinancial, res.Plan.Type)
	assert.Contains(t, res.DisplayContent, "**Sources**")
	assert.Equal(t, "Explained NVIDIA's record quarter from three reports.", res.MemoryContent)
	assert.NotContains(t, states, core.StateRefining)
	assert.Equal(t, 5, models.count("validator"))
	assert.Equal(t, 0, models.count("refiner"))

	// titling finishes in the background
	require.NoError(t, app.Sessions.Shutdown(ctx))

	s, err := app.Sessions.Get(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "NVIDIA earnings", s.Title)
	assert.Equal(t, 1, s.Turns)

	turns, err := app.Sessions.History(ctx, res.SessionID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, []float64{0.3, 0.4, 0.5}, turns[0].Embedding)
}

func TestApp_DirectURLSkipsPlannerAndValidator(t *testing.T) {
	ctx := context.Background()
	web := fakeWeb(t)
	models, modelSrv := newFakeModels(t)
	setupEnv(t, modelSrv.URL, web.URL)

	app, err := NewApp(ctx)
	require.NoError(t, err)
	defer app.Close(ctx)

	res, err := app.Sessions.Ask(ctx, "", "summarize "+web.URL+"/p/b please", nil)
	require.NoError(t, err)

	assert.Equal(t, core.SearchDirect, res.Plan.Type)
	require.Len(t, res.Citations, 1)
	assert.Equal(t, web.URL+"/p/b", res.Citations[0].URL)
	assert.Equal(t, 0, models.count("planner"))
	assert.Equal(t, 0, models.count("validator"))
	assert.Equal(t, 1, models.count("synthesis"))
}

func TestApp_ClosesStorageWhenWiringFails(t *testing.T) {
	ctx := context.Background()
	t.Setenv("CHORUS_RUNTIME_PATH", t.TempDir())
	t.Setenv("LLM_PROVIDER", "custom")
	t.Setenv("CUSTOM_OPENAI_BASE_URL", "")

	var opened *sql.DB
	openDB = func(ctx context.Context, path string) (*sql.DB, error) {
		db, err := sqlite.NewDB(ctx, path)
		opened = db
		return db, err
	}
	t.Cleanup(func() { openDB = sqlite.NewDB })

	app, err := NewApp(ctx)
	require.Error(t, err)
	assert.Nil(t, app)
	require.NotNil(t, opened)
	assert.ErrorContains(t, opened.Ping(), "database is closed")
}
