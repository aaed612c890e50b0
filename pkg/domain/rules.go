package domain

// Status captures a validation verdict.
type Status string

// Validation statuses, in ascending order of severity for rollup. IGNORE is an
// operator-dismissed WARN or ERROR and never elevates the overall status.
const (
	// StatusOK marks a passing check.
	StatusOK Status = "ok"
	// StatusIgnore marks a dismissed check; displayed distinctly from OK.
	StatusIgnore Status = "ignore"
	// StatusWarn is advisory; promotion is still allowed.
	StatusWarn Status = "warning"
	// StatusError blocks promotion of the draft.
	StatusError Status = "error"
)

func (s Status) rank() int {
	switch s {
	case StatusWarn:
		return 2
	case StatusError:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusIgnore, StatusWarn, StatusError:
		return true
	}
	return false
}

// Worst returns the more severe of two statuses. IGNORE and OK rank equally and
// collapse to OK.
func Worst(a, b Status) Status {
	if b.rank() > a.rank() {
		a = b
	}
	if a.rank() == 0 {
		return StatusOK
	}
	return a
}

// Outcome is one validator's verdict on one rule at one path. Row-level
// outcomes carry the identifier of the list element they describe.
type Outcome struct {
	Identity      string         `json:"identity"`
	Name          string         `json:"name"`
	Status        Status         `json:"status"`
	Code          string         `json:"code,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	RowID         string         `json:"row_id,omitempty"`
	IgnoredStatus Status         `json:"ignored_status,omitempty"`
}

// Ignored reports whether the outcome was dismissed by an operator.
func (o Outcome) Ignored() bool { return o.Status == StatusIgnore }

// Blocking reports whether the outcome prevents promotion.
func (o Outcome) Blocking() bool { return o.Status == StatusError }

// Ignore rewrites the outcome to IGNORE, remembering its underlying status.
func (o Outcome) Ignore() Outcome {
	if o.Status == StatusIgnore {
		return o
	}
	o.IgnoredStatus = o.Status
	o.Status = StatusIgnore
	return o
}

// Restore reverses Ignore. Outcomes that were not ignored are returned as is.
func (o Outcome) Restore() Outcome {
	if o.Status != StatusIgnore {
		return o
	}
	o.Status = o.IgnoredStatus
	if !o.Status.Valid() || o.Status == StatusIgnore {
		o.Status = StatusWarn
	}
	o.IgnoredStatus = ""
	return o
}
