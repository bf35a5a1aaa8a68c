// Package output persists discovery runs: result artifacts as JSON files and
// a run history in BoltDB.
package output

import (
	"time"

	"github.com/atharvkhisti/WebReckon/internal/aggregate"
	"github.com/atharvkhisti/WebReckon/internal/metrics"
	"github.com/atharvkhisti/WebReckon/internal/websocket"
)

// Run is everything one discovery session produced.
type Run struct {
	ID           string              `json:"id"`
	Target       string              `json:"target"`
	StartedAt    time.Time           `json:"startedAt"`
	Duration     time.Duration       `json:"duration"`
	State        string              `json:"state"`
	Attempts     int                 `json:"attempts"`
	RetryCount   int                 `json:"retryCount"`
	FinalURL     string              `json:"finalUrl,omitempty"`
	Error        string              `json:"error,omitempty"`
	ArtifactPath string              `json:"artifactPath,omitempty"`
	Summary      aggregate.Summary   `json:"summary"`
	Artifact     *aggregate.Artifact `json:"artifact"`
	Probes       []websocket.Result  `json:"probes,omitempty"`
	Metrics      metrics.Snapshot    `json:"metrics"`
}

// NewRunID derives a sortable run identifier from the start time.
func NewRunID(started time.Time) string {
	return started.UTC().Format("20060102T150405.000000000Z")
}

// Sink receives a finished run. Save returns where the run was stored.
type Sink interface {
	Save(run *Run) (string, error)
	Close() error
}

// Config holds output configuration.
type Config struct {
	Dir     string `json:"dir" yaml:"dir"`
	Pretty  bool   `json:"pretty" yaml:"pretty"`
	History string `json:"history,omitempty" yaml:"history"`
}

// DefaultConfig writes pretty artifacts under results/ and keeps history
// next to them.
func DefaultConfig() Config {
	return Config{
		Dir:     "results",
		Pretty:  true,
		History: "results/history.db",
	}
}
