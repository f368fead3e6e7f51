package llamacpp

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const reqTimeout = 5 * time.Minute

// Client talks to a llama.cpp server through its OpenAI-compatible API
type Client struct {
	*resty.Client
}

// Message is an OpenAI-compatible chat message
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []ContentPart
}

// ContentPart is one text or image part of a message
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an inline data URL
type ImageURL struct {
	URL string `json:"url"`
}

// ChatCompletionRequest is an OpenAI-compatible chat completion request
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stream      bool      `json:"stream"`
}

// NewClient returns a client for serverURL
func NewClient(serverURL string, logger *zap.Logger) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := resty.New().
		SetLogger(logger.Sugar()).
		SetBaseURL(strings.TrimSuffix(serverURL, "/")).
		SetTimeout(reqTimeout).
		SetHeader("Content-Type", "application/json")

	return &Client{Client: r}, nil
}

// SimpleQuery sends one image with prompt and returns the reply text
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	content := []ContentPart{
		{
			Type: "text",
			Text: prompt,
		},
	}

	if imgB64 != "" {
		content = append(content, ContentPart{
			Type: "image_url",
			ImageURL: &ImageURL{
				URL: "data:image/jpeg;base64," + imgB64,
			},
		})
	}

	req := ChatCompletionRequest{
		Model: model,
		Messages: []Message{
			{
				Role:    "user",
				Content: content,
			},
		},
		Temperature: 0,
		MaxTokens:   4096,
		Stream:      false,
	}

	resp, err := c.R().
		SetContext(ctx).
		SetBody(req).
		Post("/v1/chat/completions")
	if err != nil {
		return "", errors.Wrap(err, "request failed")
	}
	if resp.IsError() {
		return "", errors.Errorf("server returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return replyText(resp.Body())
}

// replyText extracts the first choice's text. Content may be a string or an
// array of parts.
func replyText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", errors.New("failed to parse response")
	}
	choices := gjson.GetBytes(body, "choices")
	if len(choices.Array()) == 0 {
		return "", errors.New("no choices in response")
	}

	content := choices.Get("0.message.content")
	var text string
	if content.IsArray() {
		for _, part := range content.Array() {
			if t := part.Get("text").String(); t != "" {
				text = t
				break
			}
		}
	} else {
		text = content.String()
	}

	if text == "" {
		return "", errors.New("empty response from llama.cpp server")
	}
	return text, nil
}
