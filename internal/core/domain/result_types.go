package domain

type Action string

const (
	ActionNone    Action = "none"
	ActionCreate  Action = "create"
	ActionDestroy Action = "destroy"
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
)

func (a Action) String() string {
	return string(a)
}

type ActionStatus string

const (
	StatusApplied ActionStatus = "APPLIED"
	StatusNoop    ActionStatus = "NOOP"
	StatusPlanned ActionStatus = "PLANNED"
	StatusError   ActionStatus = "ERROR"
	StatusSkipped ActionStatus = "SKIPPED"
)

// ActionResult records what happened to one desired resource during a pass.
// Actions lists the remote mutations in the order they were issued.
type ActionResult struct {
	Name     string
	Desired  EnsureState
	Observed EnsureState
	Final    EnsureState
	Actions  []Action
	Status   ActionStatus
	Error    error
}

type PassResult struct {
	PassID     string
	APIVersion string
	DryRun     bool
	Results    []ActionResult
}

func (p PassResult) Failed() int {
	n := 0
	for _, r := range p.Results {
		if r.Status == StatusError {
			n++
		}
	}
	return n
}
