package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/common/logger"
	"design-workers/internal/models"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	openai "github.com/openai/openai-go"
	oshared "github.com/openai/openai-go/shared"
)

const intentSystemPrompt = `You convert design prompts into a JSON design intent.
Reply with one JSON object and nothing else, shaped as:
{"style":{"palette":["#RRGGBB"],"strokeRules":{"strokeOnly":false,"minStrokeWidth":1,"maxStrokeWidth":3,"allowFill":true},"density":"sparse|medium|dense","symmetry":"none|radial|bilateral"},
 "motifs":["circle"],
 "layout":{"sizes":[{"type":"circle","minSize":20,"maxSize":60}],"counts":{"circle":3},"arrangement":"grid|centered|scattered|organic"},
 "constraints":{"strokeOnly":false,"maxElements":0,"requiredMotifs":[]}}
Use lowercase singular motif names. Leave maxElements at 0 unless the prompt states a limit.`

// Completer sends one system+user exchange to a chat model and returns the
// raw text reply.
type Completer interface {
	Complete(ctx context.Context, model, system, prompt string) (string, error)
}

type OpenAICompleter struct {
	client openai.Client
}

func NewOpenAICompleter(client openai.Client) *OpenAICompleter {
	return &OpenAICompleter{client: client}
}

func (c *OpenAICompleter) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	format := oshared.NewResponseFormatJSONObjectParam()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{OfJSONObject: &format},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type AnthropicCompleter struct {
	client    anthropic.Client
	maxTokens int64
}

func NewAnthropicCompleter(client anthropic.Client) *AnthropicCompleter {
	return &AnthropicCompleter{client: client, maxTokens: 1024}
}

func (c *AnthropicCompleter) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	})
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}
	if out.Len() == 0 {
		return "", errors.New("message returned no text content")
	}
	return out.String(), nil
}

// LLMNormalizer asks a chat model for the intent. Any transport, decoding or
// shape problem is reported as NORMALIZATION_FAILED so the orchestrator can
// fall back to the rule-based normalizer.
type LLMNormalizer struct {
	completer    Completer
	defaultModel string
	logger       logger.Logger
}

func NewLLMNormalizer(completer Completer, defaultModel string, log logger.Logger) *LLMNormalizer {
	return &LLMNormalizer{
		completer:    completer,
		defaultModel: defaultModel,
		logger:       log.WithFields(map[string]interface{}{"component": "llm-normalizer"}),
	}
}

func (n *LLMNormalizer) Normalize(ctx context.Context, req NormalizeRequest) (*NormalizeResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, apperrors.NewNormalizationFailedError(errors.New("empty prompt"))
	}
	model := strings.TrimSpace(req.Model)
	if model == "" || model == RuleBasedModel {
		model = n.defaultModel
	}
	if model == "" {
		return nil, apperrors.NewNormalizationFailedError(errors.New("no model configured"))
	}

	raw, err := n.completer.Complete(ctx, model, intentSystemPrompt, req.Prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewLLMTimeoutError(err)
		}
		return nil, apperrors.NewNormalizationFailedError(err)
	}

	intent, err := ParseIntent(raw)
	if err != nil {
		n.logger.Debug("discarding unparseable intent", map[string]interface{}{"model": model, "error": err.Error()})
		return nil, apperrors.NewNormalizationFailedError(err)
	}
	if len(req.Palette) > 0 {
		intent.Style.Palette = append([]string(nil), req.Palette...)
	}
	return &NormalizeResult{Intent: intent, Model: model}, nil
}

// ParseIntent decodes a model reply. Code fences are tolerated, unknown
// enum values are not.
func ParseIntent(raw string) (models.DesignIntent, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var intent models.DesignIntent
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&intent); err != nil {
		return models.DesignIntent{}, fmt.Errorf("decode intent: %w", err)
	}

	if d := intent.Style.Density; d != "" && !d.Valid() {
		return models.DesignIntent{}, fmt.Errorf("unknown density %q", d)
	}
	if a := intent.Layout.Arrangement; a != "" && !a.Valid() {
		return models.DesignIntent{}, fmt.Errorf("unknown arrangement %q", a)
	}
	switch intent.Style.Symmetry {
	case "", models.SymmetryNone, models.SymmetryRadial, models.SymmetryBilateral:
	default:
		return models.DesignIntent{}, fmt.Errorf("unknown symmetry %q", intent.Style.Symmetry)
	}
	for _, c := range intent.Style.Palette {
		if !hexOnly.MatchString(c) {
			return models.DesignIntent{}, fmt.Errorf("palette colour %q is not hex", c)
		}
	}
	if intent.Constraints.MaxElements < 0 {
		return models.DesignIntent{}, fmt.Errorf("maxElements %d is negative", intent.Constraints.MaxElements)
	}

	if intent.Style.Density == "" {
		intent.Style.Density = models.DensityMedium
	}
	if intent.Style.Symmetry == "" {
		intent.Style.Symmetry = models.SymmetryNone
	}
	if intent.Layout.Arrangement == "" {
		intent.Layout.Arrangement = models.ArrangementCentered
	}
	for i, m := range intent.Motifs {
		intent.Motifs[i] = strings.ToLower(strings.TrimSpace(m))
	}
	return intent, nil
}
