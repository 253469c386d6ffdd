package domain

// Stage is one of the three sequential labeling passes.
type Stage int

const (
	StageStructural Stage = iota
	StageQuality
	StageCause
)

func (s Stage) String() string {
	switch s {
	case StageStructural:
		return "structural"
	case StageQuality:
		return "quality"
	case StageCause:
		return "cause"
	}
	return "unknown"
}

// Next returns the following stage and false once the pipeline is done.
func (s Stage) Next() (Stage, bool) {
	if s >= StageCause {
		return s, false
	}
	return s + 1, true
}

// State is a classification decision for one entity. Two-state stages use
// Selected/Rejected; the cause stage uses Categorized plus a category name.
type State int

const (
	Unset State = iota
	Selected
	Rejected
	Categorized
)

func (s State) String() string {
	switch s {
	case Selected:
		return "selected"
	case Rejected:
		return "rejected"
	case Categorized:
		return "categorized"
	}
	return "unset"
}

// Source records whether a decision came from the user or from a classifier
// pass.
type Source int

const (
	SourceNone Source = iota
	SourceManual
	SourceAuto
)

func (s Source) String() string {
	switch s {
	case SourceManual:
		return "manual"
	case SourceAuto:
		return "auto"
	}
	return "none"
}

// Entry is one ledger row. Category is meaningful only when State is
// Categorized, Source only when State is not Unset.
type Entry struct {
	State    State
	Category string
	Source   Source
}
