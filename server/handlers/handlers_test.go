package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/sous/config"
	"github.com/teilomillet/sous/server/metrics"
	"github.com/teilomillet/sous/server/mocks"
	"github.com/teilomillet/sous/server/processing"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newHandler(t *testing.T, gen *mocks.MockGenerator, opts ...Option) *IngredientHandler {
	t.Helper()
	proc, err := processing.NewProcessor(config.DefaultPromptTemplate, gen, zaptest.NewLogger(t))
	require.NoError(t, err)
	return NewIngredientHandler(proc, "Gemini", zaptest.NewLogger(t), opts...)
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantError   string
		wantSuccess *bool
		wantItems   []string
		wantCalls   int
	}{
		{name: "valid recipe", body: `{"recipe":"chicken curry"}`, wantCode: 200, wantSuccess: boolPtr(true), wantItems: []string{"chicken", "curry powder", "onion", "garlic"}, wantCalls: 1},
		{name: "extra fields ignored", body: `{"recipe":"chicken curry","servings":4}`, wantCode: 200, wantSuccess: boolPtr(true), wantItems: []string{"chicken", "curry powder", "onion", "garlic"}, wantCalls: 1},
		{name: "empty body", body: ``, wantCode: 400, wantError: "No JSON data received", wantItems: []string{}},
		{name: "malformed json", body: `{recipe}`, wantCode: 400, wantError: "No JSON data received", wantItems: []string{}},
		{name: "json null", body: `null`, wantCode: 400, wantError: "No JSON data received", wantItems: []string{}},
		{name: "json array", body: `["chicken curry"]`, wantCode: 400, wantError: "No JSON data received", wantItems: []string{}},
		{name: "empty object", body: `{}`, wantCode: 400, wantError: "No recipe provided", wantItems: []string{}},
		{name: "empty recipe", body: `{"recipe":""}`, wantCode: 400, wantError: "No recipe provided", wantItems: []string{}},
		{name: "blank recipe", body: `{"recipe":"   "}`, wantCode: 400, wantError: "No recipe provided", wantItems: []string{}},
		{name: "numeric recipe", body: `{"recipe":42}`, wantCode: 400, wantError: "No recipe provided", wantItems: []string{}},
		{name: "null recipe", body: `{"recipe":null}`, wantCode: 400, wantError: "No recipe provided", wantItems: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := mocks.NewMockGenerator("chicken, curry powder, onion, garlic")
			h := newHandler(t, gen)

			code, resp := h.Handle(context.Background(), []byte(tt.body))
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantSuccess, resp.Success)
			assert.Equal(t, tt.wantItems, resp.Ingredients)
			assert.Equal(t, tt.wantCalls, gen.Calls())
			if code == http.StatusOK {
				require.NotNil(t, resp.Recipe)
			} else {
				assert.Nil(t, resp.Recipe)
			}
		})
	}
}

func TestHandleEchoesRecipeAsReceived(t *testing.T) {
	h := newHandler(t, mocks.NewMockGenerator("noodles"))
	code, resp := h.Handle(context.Background(), []byte(`{"recipe":"  pho "}`))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "  pho ", *resp.Recipe)
}

func TestHandleEmptyCompletion(t *testing.T) {
	h := newHandler(t, mocks.NewMockGenerator(""))
	code, resp := h.Handle(context.Background(), []byte(`{"recipe":"air"}`))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{}, resp.Ingredients)
}

func TestHandleProviderError(t *testing.T) {
	gen := mocks.NewMockGeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("deadline exceeded")
	})
	h := newHandler(t, gen)

	code, resp := h.Handle(context.Background(), []byte(`{"recipe":"paella"}`))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Gemini API error: deadline exceeded", resp.Error)
	assert.Equal(t, boolPtr(false), resp.Success)
	assert.Equal(t, []string{}, resp.Ingredients)
}

func TestHandleRecoversPanics(t *testing.T) {
	gen := mocks.NewMockGeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		panic("boom")
	})
	h := newHandler(t, gen)

	var (
		code int
		resp Response
	)
	require.NotPanics(t, func() {
		code, resp = h.Handle(context.Background(), []byte(`{"recipe":"x"}`))
	})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "boom", resp.Error)
	assert.Equal(t, boolPtr(false), resp.Success)
	assert.Equal(t, []string{}, resp.Ingredients)
	assert.Nil(t, resp.Recipe)
}

func TestServeHTTPLogsRequestIDOnce(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	gen := mocks.NewMockGeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("upstream down")
	})
	proc, err := processing.NewProcessor(config.DefaultPromptTemplate, gen, zap.New(core))
	require.NoError(t, err)
	h := NewIngredientHandler(proc, "Gemini", zap.New(core))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/get-ingredients", strings.NewReader(`{"recipe":"x"}`)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	entries := logs.FilterMessage("request error").All()
	require.Len(t, entries, 1)
	count := 0
	for _, f := range entries[0].Context {
		if f.Key == "request_id" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestHandleNotConfigured(t *testing.T) {
	h := NewIngredientHandler(nil, "Gemini", zaptest.NewLogger(t))
	assert.False(t, h.Configured())

	// Validation still comes first.
	code, resp := h.Handle(context.Background(), []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No recipe provided", resp.Error)

	code, resp = h.Handle(context.Background(), []byte(`{"recipe":"stew"}`))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Gemini API not configured", resp.Error)
	assert.Equal(t, boolPtr(false), resp.Success)
}

func TestHandleCustomNotConfiguredMessage(t *testing.T) {
	h := newHandler(t, mocks.NewMockGenerator("x"),
		WithNotConfigured("Ollama API not configured", errors.New("endpoint unset")))
	assert.False(t, h.Configured())

	code, resp := h.Handle(context.Background(), []byte(`{"recipe":"stew"}`))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Ollama API not configured", resp.Error)
}

func TestServeHTTPRecordsOutcomes(t *testing.T) {
	m := metrics.NewMetrics()
	h := newHandler(t, mocks.NewMockGenerator("a, b, c"), WithMetrics(m))

	for _, body := range []string{`{"recipe":"x"}`, `{"recipe":"y"}`, `{}`} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/get-ingredients", strings.NewReader(body)))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.IngredientRequests.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IngredientRequests.WithLabelValues("validation_error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.IngredientsReturned))
}

func TestServeHTTPBodyTooLarge(t *testing.T) {
	gen := mocks.NewMockGenerator("x")
	h := newHandler(t, gen, WithMaxBodyBytes(16))

	body := `{"recipe":"` + strings.Repeat("a", 64) + `"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/get-ingredients", strings.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"error":"Request body too large","ingredients":[]}`, rec.Body.String())
	assert.Equal(t, 0, gen.Calls())
}

func TestHealth(t *testing.T) {
	configured := false
	h := Health(func() bool { return configured })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.JSONEq(t, `{"status":"ok","gemini_configured":false}`, rec.Body.String())

	configured = true
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","gemini_configured":true}`, rec.Body.String())
}

func TestRootWithoutEndpoints(t *testing.T) {
	rec := httptest.NewRecorder()
	Root(ServiceInfo{Status: "ok", Service: "sous"}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"status":"ok","service":"sous","version":"","endpoints":[]}`, rec.Body.String())
}

func TestTestPage(t *testing.T) {
	t.Run("embedded", func(t *testing.T) {
		rec := httptest.NewRecorder()
		TestPage("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test.html", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "<form")
	})

	t.Run("directory override", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "test.html"), []byte("<p>local</p>"), 0o644))

		rec := httptest.NewRecorder()
		TestPage(dir).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test.html", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "<p>local</p>", rec.Body.String())
	})

	t.Run("missing file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		TestPage(t.TempDir()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test.html", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func boolPtr(b bool) *bool { return &b }
