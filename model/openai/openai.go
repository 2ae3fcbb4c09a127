//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

// Package openai implements the generation contract on OpenAI-compatible
// chat completion endpoints.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/flowforge/flowforge/model"
)

var _ model.Generator = (*Generator)(nil)

// ErrEmptyCompletion is returned when the provider answers with no choices.
var ErrEmptyCompletion = errors.New("completion returned no choices")

// Generator calls an OpenAI-compatible chat completion API.
type Generator struct {
	client openai.Client
}

// New creates a Generator. With no options the client reads OPENAI_API_KEY
// and talks to the default OpenAI endpoint.
func New(opts ...Option) *Generator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var clientOpts []openaiopt.RequestOption
	if o.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.apiKey))
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.baseURL))
	}
	clientOpts = append(clientOpts, o.openAIOptions...)

	return &Generator{client: openai.NewClient(clientOpts...)}
}

// GenerateText generates a completion for a plain text prompt.
func (g *Generator) GenerateText(ctx context.Context, prompt, modelName string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(prompt),
				},
			},
		},
	}
	return g.complete(ctx, modelName, messages)
}

// GenerateVision generates a completion for a prompt plus images. Each image
// is passed as an image_url content part; the openai API accepts both http(s)
// URLs and data URIs there.
func (g *Generator) GenerateVision(ctx context.Context, prompt string, images []string, modelName string) (string, error) {
	contentParts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(images)+1)
	if prompt != "" {
		contentParts = append(contentParts, openai.ChatCompletionContentPartUnionParam{
			OfText: &openai.ChatCompletionContentPartTextParam{
				Text: prompt,
			},
		})
	}
	for _, image := range images {
		contentParts = append(contentParts, openai.ChatCompletionContentPartUnionParam{
			OfImageURL: &openai.ChatCompletionContentPartImageParam{
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
					URL: image,
				},
			},
		})
	}
	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: contentParts,
				},
			},
		},
	}
	return g.complete(ctx, modelName, messages)
}

func (g *Generator) complete(ctx context.Context, modelName string,
	messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelName),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return completion.Choices[0].Message.Content, nil
}
