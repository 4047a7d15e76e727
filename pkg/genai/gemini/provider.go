package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/OussamaSEBROU/the-senctuary/internal/constant"
	"github.com/OussamaSEBROU/the-senctuary/pkg/genai"
)

const baseURL = "https://generativelanguage.googleapis.com/v1beta/models"

type Provider struct {
	apiKey string
	model  string
	client *http.Client
}

// Ensure Provider implements the full collaborator contract
var _ genai.Provider = &Provider{}

func NewProvider(apiKey, model string) *Provider {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Provider{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// --- Interface Implementation ---

func (p *Provider) Extract(ctx context.Context, doc *genai.DocumentPayload, locale string) ([]genai.Axiom, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: doc.MimeType, Data: doc.Data}},
				{Text: constant.AxiomExtractionPrompt(locale)},
			},
		}},
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: constant.ResearcherSystemInstructionV1}},
		},
	}

	text, err := p.generate(ctx, p.model, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", genai.ErrExtractionFailed, err)
	}

	// The model may wrap the array in markdown fences or prose; take the
	// outermost JSON array.
	jsonText := jsonArrayPattern.FindString(text)
	if jsonText == "" {
		jsonText = text
	}

	var axioms []genai.Axiom
	if err := json.Unmarshal([]byte(jsonText), &axioms); err != nil {
		return nil, fmt.Errorf("%w: parse error: %v", genai.ErrExtractionFailed, err)
	}
	if len(axioms) == 0 {
		return nil, fmt.Errorf("%w: empty axiom list", genai.ErrExtractionFailed)
	}

	return axioms, nil
}

func (p *Provider) ConverseStream(ctx context.Context, doc *genai.DocumentPayload, history []genai.Message, userText, locale string, opts ...genai.Option) (genai.Stream, error) {
	options := &genai.Options{
		Temperature: 0.6,
	}
	for _, opt := range opts {
		opt(options)
	}
	model := p.model
	if options.Model != "" {
		model = options.Model
	}

	contents := make([]geminiContent, 0, len(history)+1)
	for _, h := range history {
		contents = append(contents, geminiContent{
			Role:  h.Role,
			Parts: []geminiPart{{Text: h.Content}},
		})
	}

	currentParts := make([]geminiPart, 0, 2)
	if doc != nil {
		currentParts = append(currentParts, geminiPart{
			InlineData: &geminiInlineData{MimeType: doc.MimeType, Data: doc.Data},
		})
	}
	currentParts = append(currentParts, geminiPart{Text: userText})
	contents = append(contents, geminiContent{Role: "user", Parts: currentParts})

	payload := geminiRequest{
		Contents: contents,
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: constant.ResearcherSystemInstructionV1}},
		},
		GenerationConfig: &geminiGenerationConfig{Temperature: options.Temperature},
	}

	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse", baseURL, model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadJson))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		resBody, _ := io.ReadAll(res.Body)
		res.Body.Close()
		return nil, fmt.Errorf(
			"status error, got status %d. with response body %s",
			res.StatusCode,
			string(resBody),
		)
	}

	fragments := make(chan genai.Fragment)
	go p.pumpSSE(ctx, res.Body, fragments)

	return fragments, nil
}

// pumpSSE reads server-sent events off the response body and forwards the
// candidate text of each chunk. The channel close marks stream exhaustion.
// Every send races ctx so an abandoned consumer cannot strand the pump;
// exiting closes the body and releases the connection.
func (p *Provider) pumpSSE(ctx context.Context, body io.ReadCloser, fragments chan<- genai.Fragment) {
	defer close(fragments)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	// Chunks carrying long parts can exceed the default line limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return
		}

		var chunk geminiResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Candidates) > 0 && len(chunk.Candidates[0].Content.Parts) > 0 {
			select {
			case fragments <- genai.Fragment{Text: chunk.Candidates[0].Content.Parts[0].Text}:
			case <-ctx.Done():
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case fragments <- genai.Fragment{Err: err}:
		case <-ctx.Done():
		}
	}
}

func (p *Provider) Summarize(ctx context.Context, firstMessage, locale string) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: constant.TitleSummarizePrompt(firstMessage, locale)}},
		}},
	}

	text, err := p.generate(ctx, p.model, payload)
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(text)
	if title == "" {
		return constant.DefaultTitle(locale), nil
	}
	words := strings.Fields(title)
	if len(words) > constant.TitleWordLimit {
		title = strings.Join(words[:constant.TitleWordLimit], " ")
	}
	return title, nil
}

func (p *Provider) generate(ctx context.Context, model string, payload geminiRequest) (string, error) {
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s:generateContent", baseURL, model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadJson))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-goog-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf(
			"status error, got status %d. with response body %s",
			res.StatusCode,
			string(resBody),
		)
	}

	var geminiRes geminiResponse
	if err := json.Unmarshal(resBody, &geminiRes); err != nil {
		return "", err
	}
	if len(geminiRes.Candidates) == 0 || len(geminiRes.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty candidate response")
	}

	return geminiRes.Candidates[0].Content.Parts[0].Text, nil
}
