package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/OussamaSEBROU/the-senctuary/internal/constant"
	"github.com/OussamaSEBROU/the-senctuary/pkg/genai"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Provider targets OpenAI-compatible chat-completion endpoints via the
// official openai-go SDK. These endpoints take text only, so raw document
// grounding is not available: Extract and document-attached turns report
// ErrDocumentGroundingUnsupported. Useful for title summarization and for
// conversations whose attachment policy relies on history retention.
type Provider struct {
	model string
	opts  []option.RequestOption
}

var _ genai.Provider = &Provider{}

func NewProvider(apiKey, model, baseURL string) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key missing")
	}
	if model == "" {
		return nil, errors.New("openai model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Provider{model: model, opts: opts}, nil
}

func (p *Provider) Extract(ctx context.Context, doc *genai.DocumentPayload, locale string) ([]genai.Axiom, error) {
	return nil, genai.ErrDocumentGroundingUnsupported
}

func (p *Provider) ConverseStream(ctx context.Context, doc *genai.DocumentPayload, history []genai.Message, userText, locale string, opts ...genai.Option) (genai.Stream, error) {
	if doc != nil {
		return nil, genai.ErrDocumentGroundingUnsupported
	}

	options := &genai.Options{}
	for _, opt := range opts {
		opt(options)
	}
	model := p.model
	if options.Model != "" {
		model = options.Model
	}

	msgs := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(constant.ResearcherSystemInstructionV1),
	}
	for _, h := range history {
		switch h.Role {
		case "model":
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(h.Content))
		default:
			msgs = append(msgs, openai.UserMessage(h.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(userText))

	client := openai.NewClient(p.opts...)
	sse := client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	})

	fragments := make(chan genai.Fragment)
	go func() {
		defer close(fragments)
		defer sse.Close()
		for sse.Next() {
			chunk := sse.Current()
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				select {
				case fragments <- genai.Fragment{Text: chunk.Choices[0].Delta.Content}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := sse.Err(); err != nil {
			select {
			case fragments <- genai.Fragment{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return fragments, nil
}

func (p *Provider) Summarize(ctx context.Context, firstMessage, locale string) (string, error) {
	client := openai.NewClient(p.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(constant.TitleSummarizePrompt(firstMessage, locale)),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}

	title := strings.TrimSpace(resp.Choices[0].Message.Content)
	if title == "" {
		return constant.DefaultTitle(locale), nil
	}
	words := strings.Fields(title)
	if len(words) > constant.TitleWordLimit {
		title = strings.Join(words[:constant.TitleWordLimit], " ")
	}
	return title, nil
}
