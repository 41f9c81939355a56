// Package workflow implements a small directed-graph execution engine with
// per-stage failure isolation. A workflow is a named graph of stages wired by
// static edges or routing functions; one state value travels through the run
// and accumulates an ordered log of every stage execution. Stage failures
// never abort the engine: they are recorded on the state and handled
// according to the stage's failure policy.
package workflow

import (
	"time"
)

// Status classifies the outcome of a single stage execution.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Policy decides how a run reacts to a stage failure.
type Policy int

const (
	// PolicyContinue marks the run degraded and proceeds with routing.
	PolicyContinue Policy = iota
	// PolicyFatal marks the run fatal and stops it after recording.
	PolicyFatal
)

// String returns the policy label used in logs and metrics.
func (p Policy) String() string {
	if p == PolicyFatal {
		return "fatal"
	}
	return "continue"
}

// StageResult is one entry of the stage log.
type StageResult struct {
	Stage     string        `json:"stage"`
	Status    Status        `json:"status"`
	Error     error         `json:"-"`
	Fatal     bool          `json:"fatal,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// State is the contract a workflow state must satisfy. Implementations embed
// BaseState and add their own domain fields. A state value belongs to exactly
// one run and is never shared between runs.
type State interface {
	RecordStage(result StageResult)
	StageLog() []StageResult
	MarkFatal()
	Fatal() bool
	MarkDegraded()
	Degraded() bool
}

// BaseState is an embeddable State implementation.
type BaseState struct {
	stages   []StageResult
	fatal    bool
	degraded bool
}

// RecordStage appends one stage result to the ordered log.
func (s *BaseState) RecordStage(result StageResult) {
	s.stages = append(s.stages, result)
}

// StageLog returns the stage results in execution order.
func (s *BaseState) StageLog() []StageResult {
	return s.stages
}

// MarkFatal flags the run as fatally failed.
func (s *BaseState) MarkFatal() {
	s.fatal = true
}

// Fatal reports whether a fatal stage failure occurred.
func (s *BaseState) Fatal() bool {
	return s.fatal
}

// MarkDegraded flags the run as degraded by a non-fatal failure.
func (s *BaseState) MarkDegraded() {
	s.degraded = true
}

// Degraded reports whether any non-fatal stage failure occurred.
func (s *BaseState) Degraded() bool {
	return s.degraded
}

// FailedStages returns the names of stages that recorded an error.
func (s *BaseState) FailedStages() []string {
	var failed []string
	for _, r := range s.stages {
		if r.Status == StatusError {
			failed = append(failed, r.Stage)
		}
	}
	return failed
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
