package world

// Metrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type Metrics struct {
	Tick      uint64  `json:"tick"`
	StepMS    float64 `json:"step_ms"`
	Observers int     `json:"observers"`
	Stats     Stats   `json:"stats"`

	TopChains []ChainSummary `json:"top_chains,omitempty"`
}

func (w *World) Metrics() Metrics {
	if w == nil {
		return Metrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return Metrics{}
	}
	m, ok := v.(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}
