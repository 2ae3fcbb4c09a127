//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the tracer handle and span attribute keys used by
// the engine. Hosts install their own trace provider; with none installed
// the spans are no-ops.
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentName identifies this library to the trace provider.
const InstrumentName = "github.com/flowforge/flowforge"

// Tracer is the tracer used for run and node spans.
var Tracer trace.Tracer = otel.Tracer(InstrumentName)

// Span attribute keys.
const (
	KeyRunID      = attribute.Key("flowforge.run.id")
	KeyWorkflowID = attribute.Key("flowforge.workflow.id")
	KeyNodeID     = attribute.Key("flowforge.node.id")
	KeyNodeKind   = attribute.Key("flowforge.node.kind")
	KeyStatus     = attribute.Key("flowforge.status")
)
