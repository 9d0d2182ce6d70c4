package api

import "github.com/bitswalk/lkt/src/lkt/db"

// Pagination defaults for list endpoints
const (
	DefaultPaginationLimit = 50
	MaxPaginationLimit     = 500
)

// HealthResponse is returned by /health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// RunListResponse is returned by GET /v1/runs
type RunListResponse struct {
	Count  int      `json:"count"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
	Runs   []db.Run `json:"runs"`
}

// ResultListResponse is returned by GET /v1/runs/:id/results
type ResultListResponse struct {
	RunID   string      `json:"run_id"`
	Count   int         `json:"count"`
	Results []db.Result `json:"results"`
}

// LogListResponse is returned by GET /v1/runs/:id/logs
type LogListResponse struct {
	RunID string   `json:"run_id"`
	Logs  []string `json:"logs"`
}
