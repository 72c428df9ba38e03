package proof

// Stage is a step of the per-request state machine:
//
//	Idle → Resolving → Fetching → Validating → Assembling → Done
//
// Any non-terminal stage may instead end in Failed.
type Stage int

const (
	StageIdle Stage = iota
	StageResolving
	StageFetching
	StageValidating
	StageAssembling
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageIdle:       "idle",
	StageResolving:  "resolving",
	StageFetching:   "fetching",
	StageValidating: "validating",
	StageAssembling: "assembling",
	StageDone:       "done",
	StageFailed:     "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Terminal reports whether no further transition is possible
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// next returns the successor on the success path
func (s Stage) next() Stage {
	if s >= StageAssembling {
		return StageDone
	}
	return s + 1
}
