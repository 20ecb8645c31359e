package llamacpp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/menta2k/video-slides/pkg/types"
)

// DefaultServerURL is where llama-server listens by default
const DefaultServerURL = "http://localhost:8080"

// Client talks to the OpenAI compatible API of llama.cpp's server
type Client struct {
	client *openai.Client
}

// NewClient creates a client for serverURL, adding the /v1 prefix
func NewClient(serverURL string) (*Client, error) {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, fmt.Errorf("invalid server URL %q", serverURL)
	}

	config := openai.DefaultConfig("")
	config.BaseURL = strings.TrimSuffix(strings.TrimSuffix(serverURL, "/"), "/v1") + "/v1"
	config.HTTPClient = &http.Client{Timeout: 5 * time.Minute}

	return &Client{client: openai.NewClientWithConfig(config)}, nil
}

// SimpleQuery asks a free form question about an image
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return c.complete(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    userMessage(prompt, imgB64),
		Temperature: 0.7,
		TopP:        0.9,
		MaxTokens:   2048,
	})
}

// DescribeSlide asks the model for slide notes and parses its JSON answer
func (c *Client) DescribeSlide(ctx context.Context, model, prompt, imgB64 string) (*types.SlideNote, error) {
	content, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    userMessage(prompt, imgB64),
		Temperature: 0.2,
		TopP:        0.8,
		MaxTokens:   4096,
	})
	if err != nil {
		return nil, err
	}
	return types.ParseSlideNote(content), nil
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	msg := resp.Choices[0].Message
	if msg.Content != "" {
		return msg.Content, nil
	}
	for _, part := range msg.MultiContent {
		if part.Type == openai.ChatMessagePartTypeText && part.Text != "" {
			return part.Text, nil
		}
	}
	return "", fmt.Errorf("empty response from llama.cpp server")
}

func userMessage(prompt, imgB64 string) []openai.ChatCompletionMessage {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: prompt},
	}
	if imgB64 != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: "data:image/jpeg;base64," + imgB64,
			},
		})
	}
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, MultiContent: parts},
	}
}
