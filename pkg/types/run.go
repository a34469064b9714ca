// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunStatus tracks a generation run through the pipeline.
type RunStatus string

const (
	RunStarted  RunStatus = "started"
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// Run records one generation run so it can be listed and replayed.
type Run struct {
	// ID is a UUID assigned when the run starts.
	ID string `json:"id" yaml:"id"`

	// StartedAt is when the run began (UTC).
	StartedAt time.Time `json:"started_at" yaml:"started_at"`

	// Seed is the resolved seed, recorded even when it was drawn at startup.
	Seed int64 `json:"seed" yaml:"seed"`

	// Config is the full configuration with Seed and Year resolved.
	Config GenerationConfig `json:"config" yaml:"config"`

	// Status is started, complete, or failed.
	Status RunStatus `json:"status" yaml:"status"`

	// Artifact is the path of the delivered artifact, if any.
	Artifact string `json:"artifact,omitempty" yaml:"artifact,omitempty"`

	// Error holds the failure message for failed runs.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
