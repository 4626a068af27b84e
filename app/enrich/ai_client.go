package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AIClient talks to an OpenAI-compatible chat completions endpoint. The
// upstream model is treated as an opaque text rewriter; anything it
// returns is parsed leniently by ParseEnrichment.
type AIClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

func NewAIClient(endpoint, model, apiKey string) *AIClient {
	return &AIClient{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

const systemPrompt = "Sen Türkçe haber metinlerini yeniden yazan bir editörsün. " +
	"Yanıtını istenen etiket biçiminde ver, başka açıklama ekleme."

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete posts a single prompt and returns the raw completion text.
func (c *AIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("ai client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("completion error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// BuildPrompt renders the fixed rewrite prompt for one item.
func BuildPrompt(title, content string) string {
	// Cap the body so a pathological wire item does not blow the context.
	// Rune-wise, so a multi-byte character never gets split.
	content = truncateRunes(content, 12000)

	var b strings.Builder
	b.WriteString("Aşağıdaki haberi SEO uyumlu olacak şekilde yeniden yaz.\n")
	b.WriteString("Yanıtını tam olarak şu etiketlerle ver:\n")
	b.WriteString("ENHANCED_CONTENT: <yeniden yazılmış metin>\n")
	b.WriteString("SEO_TITLE: <en fazla 60 karakter>\n")
	b.WriteString("META_DESCRIPTION: <en fazla 155 karakter>\n")
	b.WriteString("KEYWORDS: <virgülle ayrılmış anahtar kelimeler>\n")
	b.WriteString("HASHTAGS: <virgülle ayrılmış etiketler>\n")
	b.WriteString("HEADINGS: <virgülle ayrılmış ara başlıklar>\n")
	b.WriteString("BULLETS: <virgülle ayrılmış önemli noktalar>\n")
	b.WriteString("CTA: <okuyucuya çağrı cümlesi>\n\n")
	b.WriteString("BAŞLIK: ")
	b.WriteString(title)
	b.WriteString("\n\nMETİN:\n")
	b.WriteString(content)
	return b.String()
}
