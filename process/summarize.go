package process

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Summarizer produces a summary and ordered key points from transcript text.
type Summarizer interface {
	Summarize(ctx context.Context, text, title string, maxWords, maxKeyPoints int) (summary string, keyPoints []string, err error)
	// Model identifies the model used, recorded with every summary.
	Model() string
}

// OpenRouter is a Summarizer on the OpenRouter chat completion API, which
// speaks the OpenAI protocol.
type OpenRouter struct {
	client *openai.Client
	model  string
}

func NewOpenRouter(apiKey, baseURL, model string) *OpenRouter {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenRouter{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (o *OpenRouter) Model() string { return o.model }

const summarizeSystemPrompt = `You are a helpful assistant that summarizes YouTube video transcripts. Provide clear, concise summaries with actionable key points.`

const summarizePrompt = `Please analyze this YouTube video transcript and provide a summary.

Video Title: %s

Transcript:
%s

Please provide:
1. A concise summary (maximum %d words) that captures the main message and important details
2. A list of %d key takeaways or main points

Format your response as JSON with this structure:
{
    "summary": "Your summary here...",
    "key_points": [
        "First key point",
        "Second key point"
    ]
}

Keep the language clear and concise.`

func (o *OpenRouter) Summarize(ctx context.Context, text, title string, maxWords, maxKeyPoints int) (string, []string, error) {
	resp, err := o.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       o.model,
			Temperature: 0.7,
			MaxTokens:   2000,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: summarizeSystemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: fmt.Sprintf(summarizePrompt, title, text, maxWords, maxKeyPoints),
				},
			},
		})
	if err != nil {
		return "", nil, fmt.Errorf("fetch summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, fmt.Errorf("fetch summary: empty response")
	}

	summary, keyPoints := parseSummaryResponse(resp.Choices[len(resp.Choices)-1].Message.Content, maxKeyPoints)
	if summary == "" {
		return "", nil, fmt.Errorf("fetch summary: no summary in response")
	}

	return summary, keyPoints, nil
}

// parseSummaryResponse expects the JSON the prompt asks for, but models
// wander: it strips markdown fences first and falls back to plain text
// extraction when the JSON does not parse.
func parseSummaryResponse(content string, maxKeyPoints int) (string, []string) {
	content = stripFences(content)

	var parsed struct {
		Summary   string   `json:"summary"`
		KeyPoints []string `json:"key_points"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err == nil {
		if len(parsed.KeyPoints) > maxKeyPoints {
			parsed.KeyPoints = parsed.KeyPoints[:maxKeyPoints]
		}
		return strings.TrimSpace(parsed.Summary), parsed.KeyPoints
	}

	var summary string
	keyPoints := []string{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if summary == "" && strings.Contains(strings.ToLower(line), "summary") && strings.Contains(line, ":") {
			summary = strings.Trim(strings.SplitN(line, ":", 2)[1], ` "`)
			continue
		}
		if point, ok := strings.CutPrefix(line, "- "); ok {
			keyPoints = append(keyPoints, strings.TrimSpace(point))
		}
	}
	if summary == "" {
		paragraphs := strings.SplitN(content, "\n\n", 2)
		summary = strings.TrimSpace(paragraphs[0])
	}
	if len(keyPoints) > maxKeyPoints {
		keyPoints = keyPoints[:maxKeyPoints]
	}

	return summary, keyPoints
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var _ Summarizer = (*OpenRouter)(nil)
