package engine

import (
	"context"

	"github.com/italolelis/youcast/internal/telemetry"
)

// InstrumentedEngine wraps an Engine with telemetry.
type InstrumentedEngine struct {
	engine    Engine
	name      string
	telemetry *telemetry.Telemetry
}

// NewInstrumentedEngine creates a new instrumented engine; name labels the metrics.
func NewInstrumentedEngine(e Engine, name string, tel *telemetry.Telemetry) *InstrumentedEngine {
	return &InstrumentedEngine{
		engine:    e,
		name:      name,
		telemetry: tel,
	}
}

// Fetch runs the wrapped engine inside an engine_fetch span.
func (e *InstrumentedEngine) Fetch(ctx context.Context, inv Invocation, l Listener) error {
	return e.telemetry.InstrumentEngineOperation(ctx, e.name, "fetch", func(ctx context.Context) error {
		return e.engine.Fetch(ctx, inv, l)
	})
}
