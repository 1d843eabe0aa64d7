package ai

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to any OpenAI-compatible completion endpoint.
type OpenAIProvider struct {
	config *Config
	client *openai.Client
}

func NewOpenAIProvider(config *Config) (*OpenAIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, NewConfigError(err.Error())
	}

	clientConfig := openai.DefaultConfig(config.LLMKey)
	if config.LLMBaseURL != "" {
		clientConfig.BaseURL = config.LLMBaseURL
	}

	return &OpenAIProvider{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// StreamCompletion forwards every delta to onDelta as soon as the provider
// produces it. An onDelta error aborts the stream and is returned verbatim.
func (p *OpenAIProvider) StreamCompletion(ctx context.Context, model string, messages []ChatMessage, onDelta func(string) error) error {
	request := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: p.config.Temperature,
		TopP:        p.config.TopP,
		Stream:      true,
	}
	for _, m := range messages {
		request.Messages = append(request.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	// One attempt only. A failed exchange is reported to the user, who
	// decides whether to resend.
	stream, err := p.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		return NewProviderError("streaming", "failed to create stream", err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return NewProviderError("streaming", "stream receive error", err)
		}

		if len(response.Choices) > 0 {
			delta := response.Choices[0].Delta.Content
			if delta != "" && onDelta != nil {
				if cbErr := onDelta(delta); cbErr != nil {
					return cbErr
				}
			}
		}
	}
}
