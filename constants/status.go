package constants

// RunState is the orchestrator state for a single invoice run.
type RunState string

// Stable values (persisted in the run log and backups).
const (
	RunStateNormalizing RunState = "NORMALIZING"
	RunStateExtracting  RunState = "EXTRACTING"
	RunStateResolving   RunState = "RESOLVING"
	RunStateValidating  RunState = "VALIDATING"
	RunStateGenerating  RunState = "GENERATING"
	RunStateDone        RunState = "DONE"    // terminal success
	RunStateAborted     RunState = "ABORTED" // terminal failure
)

// IsTerminal reports whether no further transition is possible.
func (s RunState) IsTerminal() bool {
	return s == RunStateDone || s == RunStateAborted
}

// ValidationStatus is the reconciliation verdict for a run.
type ValidationStatus string

const (
	ValidationOK              ValidationStatus = "ok"
	ValidationWithinTolerance ValidationStatus = "within_tolerance"
	ValidationFailed          ValidationStatus = "failed"
)

// rank orders statuses from best to worst.
func (s ValidationStatus) rank() int {
	switch s {
	case ValidationOK:
		return 0
	case ValidationWithinTolerance:
		return 1
	default:
		return 2
	}
}

// Worse returns the worse of the two statuses.
func (s ValidationStatus) Worse(other ValidationStatus) ValidationStatus {
	if other.rank() > s.rank() {
		return other
	}
	return s
}
