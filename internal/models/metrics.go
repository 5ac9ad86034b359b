package models

import "time"

// SystemMetrics is a lightweight snapshot of runtime counters exposed to administrators.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	LedgersComputed          uint64    `json:"ledgers_computed"`
	LedgerAnomalies          uint64    `json:"ledger_anomalies"`
	ReportJobsSucceeded      uint64    `json:"report_jobs_succeeded"`
	ReportJobsFailed         uint64    `json:"report_jobs_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
