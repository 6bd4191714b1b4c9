package domain

// Stage is a point in a prediction request's lifecycle.
//
//	received -> validated -> completed
//	    |            |
//	 rejected      failed
type Stage string

const (
	StageReceived  Stage = "received"
	StageValidated Stage = "validated"
	StageCompleted Stage = "completed"
	StageRejected  Stage = "rejected"
	StageFailed    Stage = "failed"
)

// Terminal reports whether no further transition follows s.
func (s Stage) Terminal() bool {
	switch s {
	case StageCompleted, StageRejected, StageFailed:
		return true
	default:
		return false
	}
}

// Next returns the stage reached from s given the outcome of its step.
// A failed step moves received to rejected and validated to failed.
// Terminal stages do not move.
func (s Stage) Next(ok bool) Stage {
	switch s {
	case StageReceived:
		if ok {
			return StageValidated
		}
		return StageRejected
	case StageValidated:
		if ok {
			return StageCompleted
		}
		return StageFailed
	default:
		return s
	}
}
