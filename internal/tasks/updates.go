package tasks

// Stage is one state of the transfer state machine. Transitions are
// forward-only: fetching, creating, searching, adding, then complete, with
// error reachable from any non-terminal stage. No transition revisits a
// prior stage.
type Stage string

const (
	StageFetching  Stage = "fetching"
	StageCreating  Stage = "creating"
	StageSearching Stage = "searching"
	StageAdding    Stage = "adding"
	StageComplete  Stage = "complete"
	StageError     Stage = "error"
)

// Terminal reports whether the stage ends a transfer.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// Progress milestones per stage. Within one transfer the reported percent
// never decreases.
const (
	progressFetching  = 0
	progressCreating  = 25
	progressSearching = 50
	progressAdding    = 90
	progressComplete  = 100
)

// StageUpdate is one progress event emitted on every stage transition.
// Consumers receive them over a channel so several observers (UI, logs)
// can subscribe without the orchestrator knowing about them.
type StageUpdate struct {
	Stage    Stage
	Progress int
	Message  string
	Err      error
}

// emit sends an update without blocking. A slow or absent consumer drops
// events rather than stalling the transfer.
func emit(ch chan<- StageUpdate, update StageUpdate) {
	if ch == nil {
		return
	}
	select {
	case ch <- update:
	default:
	}
}
