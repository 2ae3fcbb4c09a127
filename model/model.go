//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

// Package model defines the generation collaborator contract used by llm
// nodes.
package model

import (
	"context"
)

// Generator produces text from prompts, optionally grounded on images. Both
// calls may fail with a provider or transport error; the engine converts such
// failures into FAILED node executions.
type Generator interface {
	// GenerateText generates a completion for a plain text prompt.
	GenerateText(ctx context.Context, prompt, model string) (string, error)
	// GenerateVision generates a completion for a prompt plus one or more
	// images. Each image is an http(s) URL or a data URI.
	GenerateVision(ctx context.Context, prompt string, images []string, model string) (string, error)
}
