package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/aipowergrid/imagine-mint/internal/prompts"
)

// Verdict is the classifier's answer, normally "safe" or "unsafe".
type Verdict string

const (
	VerdictSafe   Verdict = "safe"
	VerdictUnsafe Verdict = "unsafe"
)

// Safe reports whether the verdict is exactly "safe", ignoring case and
// surrounding whitespace. Anything else is treated as unsafe.
func (v Verdict) Safe() bool {
	return strings.EqualFold(strings.TrimSpace(string(v)), string(VerdictSafe))
}

var safetySchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"prompt": {Type: jsonschema.String},
		"safety": {
			Type:        jsonschema.String,
			Description: prompts.SafetyDescription,
			Enum:        []string{string(VerdictSafe), string(VerdictUnsafe)},
		},
	},
	Required:             []string{"prompt", "safety"},
	AdditionalProperties: false,
}

type safetyCheck struct {
	Prompt string `json:"prompt"`
	Safety string `json:"safety"`
}

// Classifier asks the model whether a prompt is acceptable.
type Classifier struct {
	client ChatClient
	model  string
	cache  *cache.Cache
}

// NewClassifier returns a classifier. A positive ttl caches verdicts per
// prompt text; zero disables caching.
func NewClassifier(client ChatClient, model string, ttl time.Duration) *Classifier {
	c := &Classifier{client: client, model: modelOrDefault(model)}
	if ttl > 0 {
		c.cache = cache.New(ttl, 2*ttl)
	}
	return c
}

func (c *Classifier) Classify(ctx context.Context, prompt string) (Verdict, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(prompt); ok {
			return v.(Verdict), nil
		}
	}

	content, err := complete(ctx, c.client, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "safety_check",
				Schema: &safetySchema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: safety check: %w", err)
	}

	var check safetyCheck
	if err := json.Unmarshal([]byte(content), &check); err != nil {
		return "", fmt.Errorf("llm: decode safety check: %w", err)
	}

	verdict := Verdict(strings.ToLower(strings.TrimSpace(check.Safety)))
	if c.cache != nil {
		c.cache.Set(prompt, verdict, cache.DefaultExpiration)
	}
	return verdict, nil
}
