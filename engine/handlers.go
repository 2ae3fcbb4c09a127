//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/flowforge/flowforge/model"
	"github.com/flowforge/flowforge/workflow"
)

// Handler executes one node kind: it turns the resolved input bag and the
// node's config into an output bag. Handlers return an error only for real
// failures; "no usable data" is expressed with a sentinel status in the bag.
type Handler interface {
	Execute(ctx context.Context, inputs, config map[string]any) (map[string]any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, inputs, config map[string]any) (map[string]any, error)

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, inputs, config map[string]any) (map[string]any, error) {
	return f(ctx, inputs, config)
}

// Registry maps node kinds to their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[workflow.NodeKind]Handler
}

// NewRegistry creates a registry with the built-in handlers installed. The
// generator backs llm nodes; defaultModel is used when a node config names
// no model.
func NewRegistry(gen model.Generator, defaultModel string) *Registry {
	r := &Registry{handlers: make(map[workflow.NodeKind]Handler)}
	r.Register(workflow.KindText, HandlerFunc(executeText))
	r.Register(workflow.KindImage, HandlerFunc(executeImage))
	r.Register(workflow.KindVideo, HandlerFunc(executeVideo))
	r.Register(workflow.KindCrop, HandlerFunc(executeCrop))
	r.Register(workflow.KindExtract, HandlerFunc(executeExtract))
	r.Register(workflow.KindLLM, &llmHandler{gen: gen, defaultModel: defaultModel})
	return r
}

// Register installs or replaces the handler for a kind.
func (r *Registry) Register(kind workflow.NodeKind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Handler returns the handler for a kind. Unknown kinds get a handler that
// emits an "unknown_type" sentinel bag so the node still counts as attempted.
func (r *Registry) Handler(kind workflow.NodeKind) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[kind]; ok {
		return h
	}
	return HandlerFunc(executeUnknown)
}

func executeText(_ context.Context, _, config map[string]any) (map[string]any, error) {
	content := stringValue(config["content"])
	if content == "" {
		content = stringValue(config["text"])
	}
	return map[string]any{"output": content, "text": content}, nil
}

func executeImage(_ context.Context, _, config map[string]any) (map[string]any, error) {
	imageBase64 := stringValue(config["imageBase64"])
	imageURL := stringValue(config["imageUrl"])
	value := imageBase64
	if value == "" {
		value = imageURL
	}
	out := map[string]any{"output": value, "image": value}
	if imageURL != "" {
		out["url"] = imageURL
	}
	if imageBase64 != "" {
		out["imageBase64"] = imageBase64
	}
	return out, nil
}

func executeVideo(_ context.Context, _, config map[string]any) (map[string]any, error) {
	url := stringValue(config["videoUrl"])
	return map[string]any{"output": url, "url": url}, nil
}

func executeCrop(_ context.Context, inputs, config map[string]any) (map[string]any, error) {
	if cropped := stringValue(config["croppedImageUrl"]); isImageValue(cropped) {
		return imageResult(cropped), nil
	}
	// The crop was not prepared ahead of the run; fall back to the first
	// usable upstream image.
	candidates := []any{
		inputs["image"],
		inputs["image_url"],
		firstElement(inputs["images"]),
		inputs["url"],
	}
	for _, c := range candidates {
		if isImageValue(c) {
			return imageResult(stringValue(c)), nil
		}
	}
	return map[string]any{"output": nil, "status": statusNoInput}, nil
}

func executeExtract(_ context.Context, _, config map[string]any) (map[string]any, error) {
	if frame := stringValue(config["extractedFrameUrl"]); isImageValue(frame) {
		return imageResult(frame), nil
	}
	return map[string]any{
		"output":  nil,
		"status":  statusNotExtracted,
		"message": "frame must be extracted before running",
	}, nil
}

func executeUnknown(_ context.Context, _, _ map[string]any) (map[string]any, error) {
	return map[string]any{"output": nil, "status": "unknown_type"}, nil
}

// llmHandler calls the generation collaborator with the composed prompt and
// any resolved images.
type llmHandler struct {
	gen          model.Generator
	defaultModel string
}

// DefaultPrompt is sent when neither a system nor a user prompt resolves.
const DefaultPrompt = "Hello"

// Execute implements Handler.
func (h *llmHandler) Execute(ctx context.Context, inputs, config map[string]any) (map[string]any, error) {
	if h.gen == nil {
		return nil, fmt.Errorf("llm node has no generator configured")
	}
	system := firstStringValue(inputs["systemPrompt"], inputs["system"],
		config["systemPrompt"], config["system"])
	if system == "" {
		system = prefixedValue(inputs, "system")
	}
	user := firstStringValue(inputs["userPrompt"], inputs["user"], inputs["prompt"],
		config["userPrompt"], config["user"], config["prompt"])
	if user == "" {
		// Edges routed to handles like "user_message" still feed the prompt.
		user = prefixedValue(inputs, "user")
	}
	prompt := composePrompt(system, user)

	modelName := stringValue(config["model"])
	if modelName == "" {
		modelName = h.defaultModel
	}

	images := filterImages(inputs["images"])
	var (
		text string
		err  error
	)
	if len(images) > 0 {
		text, err = h.gen.GenerateVision(ctx, prompt, images, modelName)
	} else {
		text, err = h.gen.GenerateText(ctx, prompt, modelName)
	}
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	return map[string]any{"output": text, "text": text}, nil
}

// composePrompt joins the prompt parts that are present into a single string.
func composePrompt(system, user string) string {
	var parts []string
	if system != "" {
		parts = append(parts, "System: "+system)
	}
	if user != "" {
		parts = append(parts, "User: "+user)
	}
	if len(parts) == 0 {
		return DefaultPrompt
	}
	return strings.Join(parts, "\n\n")
}

// filterImages keeps only values passing the image predicate.
func filterImages(v any) []string {
	var images []string
	for _, img := range toAnySlice(v) {
		if isImageValue(img) {
			images = append(images, stringValue(img))
		}
	}
	return images
}

func imageResult(url string) map[string]any {
	return map[string]any{"output": url, "url": url, "image": url}
}

func firstElement(v any) any {
	if vals := toAnySlice(v); len(vals) > 0 {
		return vals[0]
	}
	return nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// prefixedValue returns the first non-empty string stored under a key with
// the given prefix, scanning keys in sorted order so the pick is stable.
func prefixedValue(bag map[string]any, prefix string) string {
	keys := make([]string, 0, len(bag))
	for k := range bag {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s := stringValue(bag[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstStringValue(vals ...any) string {
	for _, v := range vals {
		if s := stringValue(v); s != "" {
			return s
		}
	}
	return ""
}
