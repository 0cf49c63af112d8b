package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Shared 429 pause
// ---------------------------------------------------------------------------

// pauseGate holds back every worker of one factory until a provider's
// retry delay has passed.
type pauseGate struct {
	mu    sync.Mutex
	until time.Time
}

// extend moves the deadline to now+d unless a later one is already set.
func (g *pauseGate) extend(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if end := time.Now().Add(d); end.After(g.until) {
		g.until = end
	}
}

func (g *pauseGate) remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Until(g.until)
}

// wait blocks until the deadline or ctx is done. The deadline is re-read
// after each tick because other workers may extend it.
func (g *pauseGate) wait(ctx context.Context) error {
	for {
		left := g.remaining()
		if left <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(left, 100*time.Millisecond)):
		}
	}
}

// newHTTPClient honours an explicit proxy, else the environment.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyFromEnvironment
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// ---------------------------------------------------------------------------
// Wire formats
// ---------------------------------------------------------------------------

// sampling holds the per-attempt generation parameters.
type sampling struct {
	Temperature float64
	TopP        float64
}

// samplingFor lowers the temperature to zero on retries.
func samplingFor(attempt int) sampling {
	if attempt == 0 {
		return sampling{Temperature: 0.2, TopP: 0.9}
	}
	return sampling{Temperature: 0, TopP: 0.9}
}

// chatTurn is one message in a chat-style request.
type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// wireFormat knows how one API family addresses, encodes and answers a
// two-message (system + user) request.
type wireFormat interface {
	endpoint(p Provider) string
	authorize(h http.Header, p Provider)
	encode(model, system, user string, s sampling) ([]byte, error)
	// decode returns the model's text from a 200 response body.
	decode(body []byte) (string, error)
}

// apiError is the error envelope shared by all three families.
type apiError struct {
	Error json.RawMessage `json:"error"`
}

// check reports a non-null "error" member as an error.
func (e apiError) check() error {
	if len(e.Error) == 0 || string(e.Error) == "null" {
		return nil
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(e.Error, &obj) == nil && obj.Message != "" {
		return fmt.Errorf("API error: %s", obj.Message)
	}
	var s string
	if json.Unmarshal(e.Error, &s) == nil && s != "" {
		return fmt.Errorf("API error: %s", s)
	}
	return fmt.Errorf("API error: %s", truncate(string(e.Error), 200))
}

func noText(body []byte) error {
	return fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

// openAIChat covers OpenAI, Groq, Ollama and other compatible servers.
type openAIChat struct{}

func (openAIChat) endpoint(p Provider) string {
	base := strings.TrimRight(p.BaseURL, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

func (openAIChat) authorize(h http.Header, p Provider) {
	if p.APIKey != "" {
		h.Set("Authorization", "Bearer "+p.APIKey)
	}
}

func (openAIChat) encode(model, system, user string, s sampling) ([]byte, error) {
	return json.Marshal(struct {
		Model       string     `json:"model"`
		Messages    []chatTurn `json:"messages"`
		Temperature float64    `json:"temperature"`
		TopP        float64    `json:"top_p"`
		Stream      bool       `json:"stream"`
	}{
		Model:       model,
		Messages:    []chatTurn{{"system", system}, {"user", user}},
		Temperature: s.Temperature,
		TopP:        s.TopP,
	})
}

func (openAIChat) decode(body []byte) (string, error) {
	var resp struct {
		apiError
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if err := resp.check(); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return "", noText(body)
	}
	return *resp.Choices[0].Message.Content, nil
}

// geminiGenerate is Google AI's generateContent.
type geminiGenerate struct{}

type geminiContent struct {
	Role  string `json:"role,omitempty"`
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

func geminiText(role, text string) geminiContent {
	c := geminiContent{Role: role}
	c.Parts = append(c.Parts, struct {
		Text string `json:"text"`
	}{text})
	return c
}

func (geminiGenerate) endpoint(p Provider) string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(p.BaseURL, "/"), p.Model)
}

func (geminiGenerate) authorize(h http.Header, p Provider) {
	if p.APIKey != "" {
		h.Set("x-goog-api-key", p.APIKey)
	}
}

func (geminiGenerate) encode(_, system, user string, s sampling) ([]byte, error) {
	req := struct {
		Contents         []geminiContent `json:"contents"`
		GenerationConfig struct {
			Temperature float64 `json:"temperature"`
			TopP        float64 `json:"topP"`
		} `json:"generationConfig"`
		SystemInstruction *geminiContent `json:"systemInstruction,omitempty"`
	}{Contents: []geminiContent{geminiText("user", user)}}
	req.GenerationConfig.Temperature = s.Temperature
	req.GenerationConfig.TopP = s.TopP
	if system != "" {
		si := geminiText("", system)
		req.SystemInstruction = &si
	}
	return json.Marshal(req)
}

func (geminiGenerate) decode(body []byte) (string, error) {
	var resp struct {
		apiError
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if err := resp.check(); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", noText(body)
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// anthropicMessages is Anthropic's messages API.
type anthropicMessages struct{}

func (anthropicMessages) endpoint(p Provider) string {
	return strings.TrimRight(p.BaseURL, "/") + "/messages"
}

func (anthropicMessages) authorize(h http.Header, p Provider) {
	if p.APIKey != "" {
		h.Set("x-api-key", p.APIKey)
	}
	h.Set("anthropic-version", "2023-06-01")
}

func (anthropicMessages) encode(model, system, user string, s sampling) ([]byte, error) {
	return json.Marshal(struct {
		Model       string     `json:"model"`
		MaxTokens   int        `json:"max_tokens"`
		System      string     `json:"system,omitempty"`
		Messages    []chatTurn `json:"messages"`
		Temperature float64    `json:"temperature"`
		TopP        float64    `json:"top_p"`
	}{
		Model:       model,
		MaxTokens:   4096,
		System:      system,
		Messages:    []chatTurn{{"user", user}},
		Temperature: s.Temperature,
		TopP:        s.TopP,
	})
}

func (anthropicMessages) decode(body []byte) (string, error) {
	var resp struct {
		apiError
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if err := resp.check(); err != nil {
		return "", err
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", noText(body)
}

// ---------------------------------------------------------------------------
// Rate limiting
// ---------------------------------------------------------------------------

// RateLimitError reports an HTTP 429 answer. RetryAfter is zero when the
// provider gave no hint.
type RateLimitError struct {
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s", truncate(e.Body, 200))
}

// IsRateLimited reports whether err came from a 429 answer.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// parseRetryDelay reads the Retry-After header, then Google's RetryInfo
// detail in the body. Google's delay gets one extra second of slack.
func parseRetryDelay(header http.Header, body []byte) time.Duration {
	if v := strings.TrimSpace(header.Get("Retry-After")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}

	var info struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &info) != nil {
		return 0
	}
	for _, d := range info.Error.Details {
		if !strings.HasSuffix(d.Type, "RetryInfo") || d.RetryDelay == "" {
			continue
		}
		if secs, err := strconv.ParseFloat(strings.TrimSuffix(d.RetryDelay, "s"), 64); err == nil {
			return time.Duration(secs*float64(time.Second)) + time.Second
		}
	}
	return 0
}

// ---------------------------------------------------------------------------
// HTTP translator
// ---------------------------------------------------------------------------

// HTTPTranslator sends one request per call to an HTTP provider. It owns
// its HTTP client; create one per worker with NewHTTPFactory.
type HTTPTranslator struct {
	prov    Provider
	wire    wireFormat
	client  *http.Client
	gate    *pauseGate
	verbose bool
}

// NewHTTPFactory returns a Factory producing translators for prov. All
// translators from one factory share a pause gate, so a 429 seen by one
// worker holds back the others.
func NewHTTPFactory(prov Provider, verbose bool) Factory {
	gate := &pauseGate{}
	wire := prov.format()
	return func() Translator {
		return &HTTPTranslator{
			prov:    prov,
			wire:    wire,
			client:  newHTTPClient(prov.Proxy, prov.Timeout),
			gate:    gate,
			verbose: verbose,
		}
	}
}

// TranslateBatch performs a single attempt. Retrying is up to the caller.
func (t *HTTPTranslator) TranslateBatch(ctx context.Context, req Request) (map[string]string, error) {
	payload, err := userPayload(req.Items)
	if err != nil {
		return nil, err
	}
	system := SystemPrompt(req.SourceName, req.TargetName, req.TargetCode)
	body, err := t.wire.encode(t.prov.Model, system, payload, samplingFor(req.Attempt))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	if err := t.gate.wait(ctx); err != nil {
		return nil, err
	}

	endpoint := t.wire.endpoint(t.prov)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	t.wire.authorize(httpReq.Header, t.prov)

	if t.verbose {
		log.Printf("[DEBUG] %s attempt %d: POST %s", t.prov.Name, req.Attempt+1, endpoint)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		delay := parseRetryDelay(resp.Header, respBody)
		if delay > 0 {
			t.gate.extend(delay)
		}
		return nil, &RateLimitError{RetryAfter: delay, Body: string(respBody)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	text, err := t.wire.decode(respBody)
	if err != nil {
		return nil, err
	}
	return parseItems(text)
}
