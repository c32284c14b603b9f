package groq

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lankasat/lankasat-live/internal/adapter/sentinel"
	"github.com/lankasat/lankasat-live/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGroqClient(baseURL string) *Client {
	return &Client{
		apiKey:     "gsk_test",
		baseURL:    baseURL,
		model:      "llama-3.3-70b-versatile",
		httpClient: &http.Client{Timeout: 5 * time.Second},
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

type staticStats struct{ stats sentinel.Statistics }

func (s staticStats) FetchStatistics(context.Context, string, sentinel.BBox) sentinel.Statistics {
	return s.stats
}

type staticContext string

func (s staticContext) ChatContext(context.Context) string { return string(s) }

func completionServer(t *testing.T, capture *completionRequest, reply string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": reply}}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestChatCompletion_Success(t *testing.T) {
	var captured completionRequest
	srv := completionServer(t, &captured, "Flooding is visible along the Kelani Ganga.")
	defer srv.Close()

	c := testGroqClient(srv.URL)

	reply, err := c.ChatCompletion(context.Background(), []Message{
		{Role: "system", Content: "prompt"},
		{Role: "user", Content: "What do I see?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Flooding is visible along the Kelani Ganga.", reply)
	assert.Equal(t, "llama-3.3-70b-versatile", captured.Model)
	assert.Equal(t, 0.7, captured.Temperature)
	assert.Equal(t, 1024, captured.MaxTokens)
}

func TestChatCompletion_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit reached"}}`))
	}))
	defer srv.Close()

	c := testGroqClient(srv.URL)

	_, err := c.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit reached")
}

func TestChatCompletion_NoAPIKey(t *testing.T) {
	c := testGroqClient("http://unused")
	c.apiKey = ""

	_, err := c.ChatCompletion(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not configured")
}

func TestRespond_InjectsLiveContext(t *testing.T) {
	var captured completionRequest
	srv := completionServer(t, &captured, "ok")
	defer srv.Close()

	stats := sentinel.Statistics{
		Status:         "success",
		Date:           "2024-06-14",
		FloodSeverity:  "moderate",
		WaterIndexMean: 0.21,
		TurbidityMean:  1.3,
		WaterCondition: "muddy",
		Interpretation: "MODERATE FLOODING",
	}
	a := NewAssistant(
		testGroqClient(srv.URL),
		staticStats{stats},
		staticContext("=== CURRENT WEATHER CONDITIONS IN SRI LANKA ===\nrainy"),
		staticContext("=== LIVE RIVER WATER LEVEL DATA (Sri Lanka DMC) ===\nrivers rising"),
		sentinel.BBox{West: 79.4, South: 5.9, East: 82.2, North: 10.1},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	reply, err := a.Respond(context.Background(), "Is Colombo flooding?", &DashboardContext{
		Layer: "S2_TRUE_COLOR", Date: "2024-06-15", LayerDescription: "Natural color",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)

	require.NotEmpty(t, captured.Messages)
	system := captured.Messages[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "You are LankaSat AI")
	assert.Contains(t, system.Content, "Selected Layer: S2_TRUE_COLOR")
	assert.Contains(t, system.Content, "Flood Severity: MODERATE")
	assert.Contains(t, system.Content, "CURRENT WEATHER CONDITIONS")
	assert.Contains(t, system.Content, "LIVE RIVER WATER LEVEL DATA")

	last := captured.Messages[len(captured.Messages)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "Is Colombo flooding?", last.Content)
}

func TestRespond_SkipsContextualStats(t *testing.T) {
	var captured completionRequest
	srv := completionServer(t, &captured, "ok")
	defer srv.Close()

	a := NewAssistant(
		testGroqClient(srv.URL),
		staticStats{sentinel.Statistics{Status: "contextual"}},
		nil, nil,
		sentinel.BBox{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	_, err := a.Respond(context.Background(), "hi", &DashboardContext{Layer: "S1_VV", Date: "2024-06-15"}, nil)
	require.NoError(t, err)
	assert.NotContains(t, captured.Messages[0].Content, "LIVE SATELLITE ANALYSIS")
}

func TestRespond_TruncatesHistory(t *testing.T) {
	var captured completionRequest
	srv := completionServer(t, &captured, "ok")
	defer srv.Close()

	a := NewAssistant(testGroqClient(srv.URL), nil, nil, nil, sentinel.BBox{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	history := make([]Message, 25)
	for i := range history {
		history[i] = Message{Role: "user", Content: strings.Repeat("x", i+1)}
	}

	_, err := a.Respond(context.Background(), "latest", nil, history)
	require.NoError(t, err)

	// system + last 10 history turns + the new user message.
	require.Len(t, captured.Messages, 12)
	assert.Equal(t, strings.Repeat("x", 16), captured.Messages[1].Content)
	assert.Equal(t, "latest", captured.Messages[11].Content)
}

func TestLayerExplanation(t *testing.T) {
	assert.Contains(t, LayerExplanation("S2_TRUE_COLOR"), "BROWN/TAN")
	assert.Equal(t, "Unknown layer type.", LayerExplanation("NOT_A_LAYER"))
}
