//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	openaiopt "github.com/openai/openai-go/option"
)

// Option configures the Generator.
type Option func(*options)

type options struct {
	apiKey        string
	baseURL       string
	openAIOptions []openaiopt.RequestOption
}

// WithAPIKey sets the API key. When unset, the openai client falls back to
// the OPENAI_API_KEY environment variable.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithExtraHeaders adds headers to every request, e.g. gateway routing keys.
func WithExtraHeaders(headers map[string]string) Option {
	return func(o *options) {
		for k, v := range headers {
			o.openAIOptions = append(o.openAIOptions, openaiopt.WithHeader(k, v))
		}
	}
}

// WithOpenAIOptions appends raw openai-go request options, applied after the
// options constructed from the fields above.
func WithOpenAIOptions(opts ...openaiopt.RequestOption) Option {
	return func(o *options) {
		o.openAIOptions = append(o.openAIOptions, opts...)
	}
}
