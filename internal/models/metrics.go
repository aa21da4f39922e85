package models

import "time"

// SystemMetrics is a JSON friendly summary of the Prometheus counters.
type SystemMetrics struct {
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	SessionTransitions       map[string]uint64 `json:"session_transitions"`
	FeedbackCreated          uint64            `json:"feedback_created"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
