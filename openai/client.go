package openai

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Message is one turn of a conversation sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CallOptions describes a single completion call. ImageURL, when set,
// is attached to the last user message as a vision part (data URL or
// https URL). JSONMode asks the provider for a JSON-object response.
type CallOptions struct {
	SystemPrompt string
	Messages     []Message
	ImageURL     string
	JSONMode     bool
}

// Client wraps the provider API. It performs exactly one outbound
// request per method call; retry and fallback live in the pipeline.
type Client struct {
	api *openai.Client
}

func NewClient(apiKey string) *Client {
	return &Client{api: openai.NewClient(apiKey)}
}

// Complete issues one non-streaming chat completion against the given
// model and returns the raw message content.
func (c *Client) Complete(ctx context.Context, model string, opts CallOptions) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, buildRequest(model, opts))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream issues one streaming chat completion. The returned channel is
// closed when the provider finishes or the stream errors; connection
// errors are returned immediately so the caller can still fall back.
func (c *Client) Stream(ctx context.Context, model string, opts CallOptions) (<-chan string, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, buildRequest(model, opts))
	if err != nil {
		return nil, err
	}

	ch := make(chan string)
	go func() {
		defer stream.Close()
		defer close(ch)
		for {
			resp, err := stream.Recv()
			if err != nil {
				break
			}
			if len(resp.Choices) > 0 {
				ch <- resp.Choices[0].Delta.Content
			}
		}
	}()
	return ch, nil
}

// Transcribe converts an uploaded audio file into text via the speech
// model. Used as a pre-step by the listening endpoint before the
// analysis pipeline runs on the transcript.
func (c *Client) Transcribe(ctx context.Context, filePath string) (string, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filePath,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func buildRequest(model string, opts CallOptions) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(opts.Messages)+1)
	if strings.TrimSpace(opts.SystemPrompt) != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	for i, m := range opts.Messages {
		role := m.Role
		switch role {
		case "user", "assistant", "system":
		default:
			role = openai.ChatMessageRoleUser
		}
		// Attach the image to the final user message as a vision part.
		if opts.ImageURL != "" && i == len(opts.Messages)-1 && role == openai.ChatMessageRoleUser {
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role: role,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: m.Content},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: opts.ImageURL},
					},
				},
			})
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{Model: model, Messages: msgs}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}
