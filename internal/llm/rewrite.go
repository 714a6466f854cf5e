package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/aipowergrid/imagine-mint/internal/nft"
	"github.com/aipowergrid/imagine-mint/internal/prompts"
)

// Rewriter turns the user's prompt into a richer image prompt.
type Rewriter struct {
	client ChatClient
	model  string
}

func NewRewriter(client ChatClient, model string) *Rewriter {
	return &Rewriter{client: client, model: modelOrDefault(model)}
}

func (r *Rewriter) Rewrite(ctx context.Context, prompt string) (prompts.Rewrite, error) {
	content, err := complete(ctx, r.client, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0.5,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.RewriteInstruction(prompt)},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return prompts.Rewrite{}, fmt.Errorf("llm: rewrite prompt: %w", err)
	}

	rewrite := prompts.ParseRewrite(content)
	if rewrite.Prompt == "" {
		return prompts.Rewrite{}, fmt.Errorf("llm: rewrite prompt: %w", ErrEmptyResponse)
	}
	return rewrite, nil
}

// Synthesizer produces the token's descriptive traits.
type Synthesizer struct {
	client ChatClient
	model  string
}

func NewSynthesizer(client ChatClient, model string) *Synthesizer {
	return &Synthesizer{client: client, model: modelOrDefault(model)}
}

func (s *Synthesizer) Synthesize(ctx context.Context, rewritten string) (nft.Traits, error) {
	content, err := complete(ctx, s.client, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.5,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.MetadataInstruction(rewritten)},
			{Role: openai.ChatMessageRoleUser, Content: rewritten},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nft.Traits{}, fmt.Errorf("llm: synthesize metadata: %w", err)
	}

	var traits nft.Traits
	if err := json.Unmarshal([]byte(content), &traits); err != nil {
		return nft.Traits{}, fmt.Errorf("llm: decode metadata: %w", err)
	}
	return traits, nil
}
