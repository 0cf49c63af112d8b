package translate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sxxw-site/sitei18n/mask"
)

// Item is one string in a request or response.
type Item struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

// SystemPrompt returns the instructions sent with every request.
func SystemPrompt(sourceName, targetName, targetCode string) string {
	rules := []string{
		"You are a senior localization translator.",
		fmt.Sprintf("Translate from %s to %s.", sourceName, targetName),
		"Preserve brand names and URLs verbatim.",
		"Preserve placeholders/tokens EXACTLY (e.g., {name}, {0}, %d, %@, {{count}}, __PH0__, __TERM0__).",
		"Return ONLY valid JSON (no markdown, no extra text).",
		`JSON schema: {"items":[{"path":"...","text":"..."}]}`,
		"Do not change any path value.",
	}
	if !mask.IsChinese(targetCode) {
		rules = append(rules, "IMPORTANT: Do NOT use any Chinese characters in the output.")
	}
	return strings.Join(rules, " ")
}

// userPayload renders the items as the JSON user message.
func userPayload(items []Item) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(struct {
		Items []Item `json:"items"`
	}{Items: items}); err != nil {
		return "", fmt.Errorf("encoding request items: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// parseItems decodes a model answer of the form {"items":[{path,text}]}.
// Items whose path or text is not a string are dropped; text is trimmed.
func parseItems(content string) (map[string]string, error) {
	content = strings.TrimSpace(content)
	if m := markdownCodeBlock.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	var resp struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("parsing model output: %w (content: %s)", err, truncate(content, 200))
	}

	out := make(map[string]string, len(resp.Items))
	for _, it := range resp.Items {
		path, ok1 := it["path"].(string)
		text, ok2 := it["text"].(string)
		if ok1 && ok2 {
			out[path] = strings.TrimSpace(text)
		}
	}
	return out, nil
}

// accept checks a batch answer against the completeness threshold. Only
// answers for requested paths count.
func accept(got map[string]string, requested []Item, threshold float64) error {
	need := int(threshold * float64(len(requested)))
	if need < 1 {
		need = 1
	}
	have := 0
	for _, it := range requested {
		if _, ok := got[it.Path]; ok {
			have++
		}
	}
	if have < need {
		return fmt.Errorf("too few items returned: %d of %d (need %d)", have, len(requested), need)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
