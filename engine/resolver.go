//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

package engine

import (
	"strings"

	"dario.cat/mergo"

	"github.com/flowforge/flowforge/graph"
	"github.com/flowforge/flowforge/log"
	"github.com/flowforge/flowforge/workflow"
)

// Producer bag statuses that mean "no usable data": edges from such producers
// contribute nothing to the consumer.
const (
	statusNoInput      = "no_input"
	statusNotExtracted = "not_extracted"
)

// candidateKeys is the extraction priority for a producer's scalar value.
var candidateKeys = [...]string{"image", "output", "text", "url"}

// maxInlineValueLen caps non-image values assigned under a named handle so
// large base64 payloads never pollute prompt or text fields.
const maxInlineValueLen = 1000

// resolveInputs merges the outputs of a node's upstream producers into a
// single input bag. The bag starts from the run inputs with the node's own
// config merged over them, then incoming edges are applied in edge record
// order: scalar handles overwrite on collision, the images list accumulates
// without deduplication.
func resolveInputs(g *graph.Graph, node workflow.Node, runInputs map[string]any,
	outputs map[string]map[string]any) map[string]any {
	bag := make(map[string]any, len(runInputs)+len(node.Config))
	for k, v := range runInputs {
		bag[k] = v
	}
	for k, v := range node.Config {
		bag[k] = v
	}

	for _, edge := range g.Incoming(node.ID) {
		producer, ok := outputs[edge.SourceID]
		if !ok {
			// Topological order guarantees producers run first; a missing
			// bag means the producer was never attempted.
			log.Warnf("resolve: node %s: producer %s has no output, skipping edge %s",
				node.ID, edge.SourceID, edge.ID)
			continue
		}
		if status, _ := producer["status"].(string); status == statusNoInput || status == statusNotExtracted {
			continue
		}

		if edge.TargetHandle == "" {
			mergeProducerBag(bag, producer)
			continue
		}

		candidate := extractCandidate(producer)
		if isEmptyValue(candidate) {
			continue
		}
		routeCandidate(bag, edge.TargetHandle, candidate)
	}
	return bag
}

// extractCandidate picks the producer's value by field priority.
func extractCandidate(producer map[string]any) any {
	for _, key := range candidateKeys {
		if v, ok := producer[key]; ok && !isEmptyValue(v) {
			return v
		}
	}
	return nil
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// routeCandidate assigns the candidate into the bag according to the target
// handle's routing rules.
func routeCandidate(bag map[string]any, handle string, candidate any) {
	switch {
	case strings.HasPrefix(handle, "images"):
		appendImages(bag, candidate)
	case handle == "image" || handle == "image_url":
		bag[handle] = candidate
		bag["image"] = candidate
		if isImageValue(candidate) {
			appendImages(bag, candidate)
		}
	default:
		if isImageValue(candidate) {
			// Images reach the llm regardless of how the handle is named.
			appendImages(bag, candidate)
			if s, ok := candidate.(string); ok && !isDataURI(candidate) && len(s) < maxInlineValueLen {
				bag[handle] = candidate
			}
			return
		}
		bag[handle] = candidate
	}
}

// mergeProducerBag shallow-merges the producer's whole output bag into the
// input bag for edges with no target handle. Later edges overwrite earlier
// ones on key collision.
func mergeProducerBag(bag map[string]any, producer map[string]any) {
	if err := mergo.Merge(&bag, producer, mergo.WithOverride); err != nil {
		// mergo only fails on non-map destinations; fall back to a plain
		// copy so the edge still contributes.
		for k, v := range producer {
			bag[k] = v
		}
	}
	if img, ok := producer["image"]; ok && isImageValue(img) {
		appendImages(bag, img)
	}
}

// appendImages appends the candidate, or each of its elements when it is
// array-like, to the bag's images list. Only values passing the image
// predicate are kept; order follows edge iteration and duplicates are
// preserved.
func appendImages(bag map[string]any, candidate any) {
	images := toAnySlice(bag["images"])
	switch vals := candidate.(type) {
	case []any:
		for _, v := range vals {
			if isImageValue(v) {
				images = append(images, v)
			}
		}
	case []string:
		for _, v := range vals {
			if isImageValue(v) {
				images = append(images, v)
			}
		}
	default:
		if isImageValue(candidate) {
			images = append(images, candidate)
		}
	}
	if len(images) > 0 {
		bag["images"] = images
	}
}

// toAnySlice normalizes a bag value that may be []any or []string.
func toAnySlice(v any) []any {
	switch vals := v.(type) {
	case []any:
		return vals
	case []string:
		out := make([]any, 0, len(vals))
		for _, s := range vals {
			out = append(out, s)
		}
		return out
	}
	return nil
}
