package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(baseURL, model string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Generate performs one raw completion round trip. Transient transport
// failures come back wrapped as domain.ErrTemporary so callers can classify
// without knowing ollama's error shapes; context errors pass through
// untouched.
func (c *Client) Generate(ctx context.Context, system, prompt string) (domain.ProviderReply, error) {
	request := map[string]any{
		"model":  c.model,
		"system": system,
		"prompt": prompt,
		"stream": false,
	}

	var response struct {
		Response        string `json:"response"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	if err := c.postJSON(ctx, "/api/generate", request, &response, "generate"); err != nil {
		return domain.ProviderReply{}, wrapTemporaryIfNeeded("ollama generate", err)
	}

	usage := domain.Usage{
		PromptTokens:     response.PromptEvalCount,
		CompletionTokens: response.EvalCount,
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	return domain.ProviderReply{
		Text:  strings.TrimSpace(response.Response),
		Usage: usage,
	}, nil
}
