package translate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(attempt int) Request {
	return Request{
		SourceName: "English",
		TargetName: "French [fr]",
		TargetCode: "fr",
		Items:      []Item{{Path: "greet", Text: "Hello __PH0__"}},
		Attempt:    attempt,
	}
}

// ---------------------------------------------------------------------------
// Wire formats
// ---------------------------------------------------------------------------

func TestHTTPTranslator_OpenAIChat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		content := "```json\n{\"items\":[{\"path\":\"greet\",\"text\":\" Bonjour __PH0__ \"}]}\n```"
		resp := map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	prov := Provider{ID: ProviderOpenAI, Name: "OpenAI", BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "gpt-4o-mini", Timeout: 5 * time.Second}
	tr := NewHTTPFactory(prov, false)()

	items, err := tr.TranslateBatch(context.Background(), testRequest(0))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"greet": "Bonjour __PH0__"}, items)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.Equal(t, 0.2, got["temperature"])
	assert.Equal(t, 0.9, got["top_p"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	sys := msgs[0].(map[string]any)["content"].(string)
	assert.Contains(t, sys, "Translate from English to French [fr].")
	assert.Contains(t, sys, "Do NOT use any Chinese characters")
	user := msgs[1].(map[string]any)["content"].(string)
	assert.Equal(t, `{"items":[{"path":"greet","text":"Hello __PH0__"}]}`, user)
}

func TestHTTPTranslator_RetryLowersTemperature(t *testing.T) {
	var temp float64 = -1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Temperature float64 `json:"temperature"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		temp = body.Temperature
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{\"items\":[{\"path\":\"greet\",\"text\":\"x\"}]}"}}]}`)
	}))
	defer srv.Close()

	prov := Provider{ID: ProviderGroq, BaseURL: srv.URL, APIKey: "k", Model: "m", Timeout: 5 * time.Second}
	_, err := NewHTTPFactory(prov, false)().TranslateBatch(context.Background(), testRequest(1))
	require.NoError(t, err)
	assert.Equal(t, 0.0, temp)
}

func TestHTTPTranslator_Gemini(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.NotNil(t, body["systemInstruction"])
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{\"items\":[{\"path\":\"greet\",\"text\":\"Salut\"}]}"}]}}]}`)
	}))
	defer srv.Close()

	prov := Provider{ID: ProviderGoogle, BaseURL: srv.URL, APIKey: "g-key", Model: "gemini-2.0-flash", Timeout: 5 * time.Second}
	items, err := NewHTTPFactory(prov, false)().TranslateBatch(context.Background(), testRequest(0))
	require.NoError(t, err)
	assert.Equal(t, "Salut", items["greet"])
}

func TestHTTPTranslator_Anthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "a-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"{\"items\":[{\"path\":\"greet\",\"text\":\"Salut\"}]}"}]}`)
	}))
	defer srv.Close()

	prov := Provider{ID: ProviderAnthropic, BaseURL: srv.URL, APIKey: "a-key", Model: "claude", Timeout: 5 * time.Second}
	items, err := NewHTTPFactory(prov, false)().TranslateBatch(context.Background(), testRequest(0))
	require.NoError(t, err)
	assert.Equal(t, "Salut", items["greet"])
}

func TestHTTPTranslator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rate limited with Retry-After",
			status: http.StatusTooManyRequests,
			header: map[string]string{"Retry-After": "0.01"},
			body:   `{"error":{"message":"slow down"}}`,
			check: func(t *testing.T, err error) {
				require.True(t, IsRateLimited(err))
				var rl *RateLimitError
				require.ErrorAs(t, err, &rl)
				assert.Equal(t, 10*time.Millisecond, rl.RetryAfter)
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   "bad gateway",
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "status 502")
				assert.False(t, IsRateLimited(err))
			},
		},
		{
			name:   "api error payload",
			status: http.StatusOK,
			body:   `{"error":{"message":"invalid model"}}`,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "invalid model")
			},
		},
		{
			name:   "model returned prose",
			status: http.StatusOK,
			body:   `{"choices":[{"message":{"content":"Sure! Here you go."}}]}`,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "parsing model output")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			prov := Provider{ID: ProviderOpenAI, BaseURL: srv.URL, APIKey: "k", Model: "m", Timeout: 5 * time.Second}
			_, err := NewHTTPFactory(prov, false)().TranslateBatch(context.Background(), testRequest(0))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

// ---------------------------------------------------------------------------
// Prompt and response helpers
// ---------------------------------------------------------------------------

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt("Chinese (Simplified)", "English [en]", "en")
	assert.True(t, strings.HasPrefix(p, "You are a senior localization translator. Translate from Chinese (Simplified) to English [en]."))
	assert.Contains(t, p, "__PH0__, __TERM0__")
	assert.Contains(t, p, `{"items":[{"path":"...","text":"..."}]}`)
	assert.Contains(t, p, "Chinese characters")

	assert.NotContains(t, SystemPrompt("Chinese (Simplified)", "Chinese (Traditional)", "zh-hant"), "Chinese characters")
}

func TestParseItems(t *testing.T) {
	items, err := parseItems(`{"items":[{"path":"a","text":" x "},{"path":1,"text":"y"},{"path":"c"}]}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "x"}, items)

	_, err = parseItems("not json")
	assert.Error(t, err)
}

func TestAccept(t *testing.T) {
	one := []Item{{Path: "a"}}
	assert.NoError(t, accept(map[string]string{"a": "x"}, one, 0.85))
	assert.Error(t, accept(map[string]string{"b": "x"}, one, 0.85))
	assert.Error(t, accept(map[string]string{}, one, 0.85))

	var ten []Item
	got := map[string]string{}
	for i := 0; i < 10; i++ {
		p := string(rune('a' + i))
		ten = append(ten, Item{Path: p})
		if i < 8 {
			got[p] = "x"
		}
	}
	assert.NoError(t, accept(got, ten, 0.8))
	assert.NoError(t, accept(got, ten, 0.85))
	assert.Error(t, accept(got, ten, 0.9))
}

func TestParseRetryDelay(t *testing.T) {
	body := []byte(`{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"2s"}]}}`)
	assert.Equal(t, 3*time.Second, parseRetryDelay(http.Header{}, body))
	assert.Equal(t, time.Duration(0), parseRetryDelay(http.Header{}, []byte(`{}`)))

	h := http.Header{}
	h.Set("Retry-After", "4")
	assert.Equal(t, 4*time.Second, parseRetryDelay(h, nil))
}

func TestDefaultBackoff(t *testing.T) {
	for attempt := 0; attempt < 4; attempt++ {
		d := DefaultBackoff(attempt)
		base := time.Duration(1<<attempt) * time.Second
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+250*time.Millisecond)
	}
}

func TestProviderValidate(t *testing.T) {
	p, ok := LookupProvider(ProviderOpenAI)
	require.True(t, ok)
	assert.Error(t, p.Validate(), "missing API key")
	p.APIKey = "k"
	assert.NoError(t, p.Validate())

	o, _ := LookupProvider(ProviderOllama)
	assert.NoError(t, o.Validate())

	c, _ := LookupProvider(ProviderCustomOpenAI)
	c.APIKey = "k"
	c.Model = "m"
	assert.Error(t, c.Validate(), "missing base URL")

	assert.Contains(t, ProviderIDs(), ProviderAnthropic)
}

func TestAPIErrorEnvelope(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":{"message":"quota exceeded"}}`, "API error: quota exceeded"},
		{`{"error":"model not found"}`, "API error: model not found"},
		{`{"error":null,"choices":[]}`, "could not extract text"},
	}
	for _, tt := range tests {
		_, err := openAIChat{}.decode([]byte(tt.body))
		require.Error(t, err)
		assert.Contains(t, err.Error(), tt.want)
	}

	_, err := anthropicMessages{}.decode([]byte(`{"content":[{"type":"tool_use"}]}`))
	assert.ErrorContains(t, err, "could not extract text")
}

func TestPauseGate(t *testing.T) {
	g := &pauseGate{}
	require.NoError(t, g.wait(context.Background()))

	g.extend(50 * time.Millisecond)
	g.extend(time.Millisecond)
	assert.Greater(t, g.remaining(), 10*time.Millisecond, "a shorter pause must not cut a longer one")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.wait(ctx), context.Canceled)

	start := time.Now()
	require.NoError(t, g.wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
