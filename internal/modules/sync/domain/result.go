package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "studysync/internal/platform/errors"
)

type Phase string

const (
	PhaseRun      Phase = "run"
	PhaseUpload   Phase = "upload"
	PhaseDownload Phase = "download"
)

type State string

const (
	StatePending     State = "pending"
	StateUploading   State = "uploading"
	StateDownloading State = "downloading"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
	StateSkipped     State = "skipped"
)

// Action is what a successful project outcome did.
type Action string

const (
	ActionUploaded Action = "uploaded"
	ActionImported Action = "imported"
	ActionMerged   Action = "merged"
)

type FailureKind string

const (
	KindNotFound          FailureKind = "not_found"
	KindTransport         FailureKind = "transport"
	KindMalformedSnapshot FailureKind = "malformed_snapshot"
	KindIdentityConflict  FailureKind = "identity_conflict"
	KindSyncInProgress    FailureKind = "sync_in_progress"
	KindCancelled         FailureKind = "cancelled"
	KindInternal          FailureKind = "internal"
)

// ClassifyError maps an error onto the failure taxonomy.
func ClassifyError(err error) FailureKind {
	switch {
	case errors.Is(err, apperrors.ErrSyncInProgress):
		return KindSyncInProgress
	case errors.Is(err, apperrors.ErrIdentityConflict):
		return KindIdentityConflict
	case errors.Is(err, apperrors.ErrMalformedSnapshot):
		return KindMalformedSnapshot
	case errors.Is(err, apperrors.ErrTransport):
		return KindTransport
	case errors.Is(err, apperrors.ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindInternal
	}
}

type Failure struct {
	ProjectKey string      `json:"project_key"`
	Phase      Phase       `json:"phase"`
	Kind       FailureKind `json:"kind"`
	Reason     string      `json:"reason"`
}

type Outcome struct {
	ProjectKey string   `json:"project_key"`
	ProjectID  string   `json:"project_id,omitempty"`
	Name       string   `json:"name,omitempty"`
	Phase      Phase    `json:"phase"`
	State      State    `json:"state"`
	Action     Action   `json:"action,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// ProjectRun tracks one project through one phase:
// pending -> uploading|downloading -> succeeded|failed, or pending|active -> skipped.
type ProjectRun struct {
	outcome Outcome
	kind    FailureKind
}

func NewProjectRun(key string, phase Phase) *ProjectRun {
	return &ProjectRun{outcome: Outcome{ProjectKey: key, Phase: phase, State: StatePending}}
}

func (r *ProjectRun) Start() error {
	if r.outcome.State != StatePending {
		return fmt.Errorf("project %s: cannot start from %s", r.outcome.ProjectKey, r.outcome.State)
	}
	switch r.outcome.Phase {
	case PhaseUpload:
		r.outcome.State = StateUploading
	case PhaseDownload:
		r.outcome.State = StateDownloading
	default:
		return fmt.Errorf("project %s: no active state for phase %s", r.outcome.ProjectKey, r.outcome.Phase)
	}
	return nil
}

func (r *ProjectRun) active() bool {
	return r.outcome.State == StateUploading || r.outcome.State == StateDownloading
}

func (r *ProjectRun) Succeed(action Action, projectID, name string) error {
	if !r.active() {
		return fmt.Errorf("project %s: cannot succeed from %s", r.outcome.ProjectKey, r.outcome.State)
	}
	r.outcome.State = StateSucceeded
	r.outcome.Action = action
	r.outcome.ProjectID = projectID
	r.outcome.Name = name
	return nil
}

func (r *ProjectRun) Fail(err error) error {
	if !r.active() {
		return fmt.Errorf("project %s: cannot fail from %s", r.outcome.ProjectKey, r.outcome.State)
	}
	r.outcome.State = StateFailed
	r.outcome.Reason = err.Error()
	r.kind = ClassifyError(err)
	return nil
}

func (r *ProjectRun) Skip(reason string) error {
	if r.outcome.State != StatePending && !r.active() {
		return fmt.Errorf("project %s: cannot skip from %s", r.outcome.ProjectKey, r.outcome.State)
	}
	r.outcome.State = StateSkipped
	r.outcome.Reason = reason
	return nil
}

func (r *ProjectRun) Warn(w string) {
	r.outcome.Warnings = append(r.outcome.Warnings, w)
}

func (r *ProjectRun) Outcome() Outcome {
	out := r.outcome
	out.Warnings = append([]string(nil), r.outcome.Warnings...)
	return out
}

// Result is the structured report of one sync run.
type Result struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Uploaded   int       `json:"uploaded"`
	Downloaded int       `json:"downloaded"`
	Imported   int       `json:"imported"`
	Merged     int       `json:"merged"`
	Outcomes   []Outcome `json:"outcomes"`
	Failures   []Failure `json:"failures"`
}

func (r Result) OK() bool {
	return len(r.Failures) == 0
}

// Message is a one-line human summary of the run.
func (r Result) Message() string {
	parts := []string{
		fmt.Sprintf("Uploaded %d", r.Uploaded),
		fmt.Sprintf("downloaded %d (%d new, %d merged)", r.Downloaded, r.Imported, r.Merged),
	}
	switch n := len(r.Failures); n {
	case 0:
	case 1:
		parts = append(parts, "1 error")
	default:
		parts = append(parts, fmt.Sprintf("%d errors", n))
	}
	return strings.Join(parts, ", ")
}

// Accumulator collects project outcomes from concurrent workers. It only
// ever appends.
type Accumulator struct {
	mu       sync.Mutex
	result   Result
	finished bool
}

func NewAccumulator(runID string, startedAt time.Time) *Accumulator {
	return &Accumulator{result: Result{RunID: runID, StartedAt: startedAt, Outcomes: []Outcome{}, Failures: []Failure{}}}
}

// Record appends the terminal outcome of a project run.
func (a *Accumulator) Record(run *ProjectRun) {
	outcome := run.Outcome()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return
	}
	a.result.Outcomes = append(a.result.Outcomes, outcome)
	switch outcome.State {
	case StateSucceeded:
		switch outcome.Action {
		case ActionUploaded:
			a.result.Uploaded++
		case ActionImported:
			a.result.Downloaded++
			a.result.Imported++
		case ActionMerged:
			a.result.Downloaded++
			a.result.Merged++
		}
	case StateFailed:
		a.result.Failures = append(a.result.Failures, Failure{
			ProjectKey: outcome.ProjectKey,
			Phase:      outcome.Phase,
			Kind:       run.kind,
			Reason:     outcome.Reason,
		})
	}
}

// Fail appends a failure that is not tied to a single project.
func (a *Accumulator) Fail(phase Phase, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return
	}
	a.result.Failures = append(a.result.Failures, Failure{Phase: phase, Kind: ClassifyError(err), Reason: err.Error()})
}

// Finish seals the accumulator and returns the result with outcomes in a
// stable order.
func (a *Accumulator) Finish(at time.Time) Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.finished {
		a.finished = true
		a.result.FinishedAt = at
		sort.SliceStable(a.result.Outcomes, func(i, j int) bool {
			oi, oj := a.result.Outcomes[i], a.result.Outcomes[j]
			if oi.Phase != oj.Phase {
				return oi.Phase == PhaseUpload
			}
			return oi.ProjectKey < oj.ProjectKey
		})
		sort.SliceStable(a.result.Failures, func(i, j int) bool {
			fi, fj := a.result.Failures[i], a.result.Failures[j]
			if fi.Phase != fj.Phase {
				return phaseRank(fi.Phase) < phaseRank(fj.Phase)
			}
			return fi.ProjectKey < fj.ProjectKey
		})
	}
	out := a.result
	out.Outcomes = append([]Outcome(nil), a.result.Outcomes...)
	out.Failures = append([]Failure(nil), a.result.Failures...)
	return out
}

func phaseRank(p Phase) int {
	switch p {
	case PhaseRun:
		return 0
	case PhaseUpload:
		return 1
	default:
		return 2
	}
}
