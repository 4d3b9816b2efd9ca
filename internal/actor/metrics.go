package actor

// Metrics is the narrow surface the runner needs from whatever
// observability backend is wired in. Declared here, not in
// internal/metrics, so this package never imports Prometheus directly —
// internal/metrics.Collector satisfies it.
type Metrics interface {
	ObserveEnvelopeIn(typeTag string)
	ObserveEnvelopeOut(typeTag string)
	ObserveTimerQueueDepth(n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveEnvelopeIn(string)   {}
func (noopMetrics) ObserveEnvelopeOut(string)  {}
func (noopMetrics) ObserveTimerQueueDepth(int) {}
