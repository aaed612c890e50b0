package domain

import (
	"fmt"
	"sort"
	"time"

	"reefcore/pkg/recordpath"
)

// ReportSchemaVersion is bumped whenever the serialized Report shape changes.
const ReportSchemaVersion = 2

// RecordKey addresses record-level results rather than a field path.
const RecordKey = "$record"

// TreeKey holds the slots of a node when a report is rendered as a tree.
const TreeKey = "$validations"

// Level describes what a validation targets.
type Level string

// Validation levels.
const (
	LevelRecord Level = "record"
	LevelRow    Level = "row"
	LevelField  Level = "field"
)

// ResultType describes whether a validation yields one outcome or a list.
type ResultType string

// Validation result types.
const (
	TypeValue ResultType = "value"
	TypeList  ResultType = "list"
)

// Slot holds the results of one validation at one report key. Value-typed
// validations fill Outcome; list-typed validations fill Rows in element order.
type Slot struct {
	Name    string     `json:"name"`
	Level   Level      `json:"level"`
	Type    ResultType `json:"type"`
	Paths   []string   `json:"paths"`
	Outcome *Outcome   `json:"outcome,omitempty"`
	Rows    []Outcome  `json:"rows,omitempty"`
}

// Outcomes returns the slot's outcomes in order.
func (s Slot) Outcomes() []Outcome {
	if s.Type == TypeValue {
		if s.Outcome == nil {
			return nil
		}
		return []Outcome{*s.Outcome}
	}
	return s.Rows
}

// Report is the addressed result of one validation run. Results is keyed by
// report key (a field or list path, or RecordKey) and then by validation
// identity, so several validations can share a key without overwriting.
type Report struct {
	SchemaVersion int                        `json:"schema_version"`
	OverallStatus Status                     `json:"overall_status"`
	ValidatedAt   time.Time                  `json:"validated_at"`
	Results       map[string]map[string]Slot `json:"results"`
}

// NewReport constructs an empty report stamped with at.
func NewReport(at time.Time) *Report {
	return &Report{
		SchemaVersion: ReportSchemaVersion,
		OverallStatus: StatusOK,
		ValidatedAt:   at.UTC(),
		Results:       make(map[string]map[string]Slot),
	}
}

// Put stores slot under key and identity, replacing any previous slot with
// the same identity at that key.
func (r *Report) Put(key, identity string, slot Slot) {
	if r.Results == nil {
		r.Results = make(map[string]map[string]Slot)
	}
	bucket, ok := r.Results[key]
	if !ok {
		bucket = make(map[string]Slot)
		r.Results[key] = bucket
	}
	bucket[identity] = slot
}

// Slot returns the slot stored under key and identity.
func (r *Report) Slot(key, identity string) (Slot, bool) {
	if r == nil {
		return Slot{}, false
	}
	slot, ok := r.Results[key][identity]
	return slot, ok
}

// OutcomeKey addresses one outcome independent of its report key.
type OutcomeKey struct {
	Identity string
	RowID    string
}

// Index maps every outcome in the report by identity and row id.
func (r *Report) Index() map[OutcomeKey]Outcome {
	idx := make(map[OutcomeKey]Outcome)
	if r == nil {
		return idx
	}
	for _, bucket := range r.Results {
		for identity, slot := range bucket {
			for _, o := range slot.Outcomes() {
				idx[OutcomeKey{Identity: identity, RowID: o.RowID}] = o
			}
		}
	}
	return idx
}

// Keys returns the report keys in sorted order.
func (r *Report) Keys() []string {
	keys := make([]string, 0, len(r.Results))
	for k := range r.Results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Outcomes flattens the report in key, identity, then row order.
func (r *Report) Outcomes() []Outcome {
	if r == nil {
		return nil
	}
	var out []Outcome
	for _, key := range r.Keys() {
		bucket := r.Results[key]
		ids := make([]string, 0, len(bucket))
		for id := range bucket {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			out = append(out, bucket[id].Outcomes()...)
		}
	}
	return out
}

// Recompute derives OverallStatus from every non-ignored outcome and returns it.
func (r *Report) Recompute() Status {
	status := StatusOK
	for _, bucket := range r.Results {
		for _, slot := range bucket {
			for _, o := range slot.Outcomes() {
				if o.Ignored() {
					continue
				}
				status = Worst(status, o.Status)
			}
		}
	}
	r.OverallStatus = status
	return status
}

// Counts tallies outcomes by status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, o := range r.Outcomes() {
		counts[o.Status]++
	}
	return counts
}

// SetIgnored dismisses (or restores) the outcome addressed by key, identity and
// row id, then recomputes the overall status. Value-typed slots ignore rowID.
func (r *Report) SetIgnored(key, identity, rowID string, ignored bool) error {
	slot, ok := r.Slot(key, identity)
	if !ok {
		return fmt.Errorf("report slot %s/%s: %w", key, identity, ErrNotFound)
	}
	apply := func(o Outcome) (Outcome, error) {
		if !ignored {
			return o.Restore(), nil
		}
		if o.Status == StatusOK {
			return o, fmt.Errorf("report slot %s/%s: %w", key, identity, ErrNotIgnorable)
		}
		return o.Ignore(), nil
	}
	switch slot.Type {
	case TypeValue:
		if slot.Outcome == nil {
			return fmt.Errorf("report slot %s/%s: %w", key, identity, ErrNotFound)
		}
		updated, err := apply(*slot.Outcome)
		if err != nil {
			return err
		}
		slot.Outcome = &updated
	default:
		rows := make([]Outcome, len(slot.Rows))
		copy(rows, slot.Rows)
		found := false
		for i, o := range rows {
			if o.RowID != rowID {
				continue
			}
			updated, err := apply(o)
			if err != nil {
				return err
			}
			rows[i] = updated
			found = true
		}
		if !found {
			return fmt.Errorf("report row %s/%s/%s: %w", key, identity, rowID, ErrNotFound)
		}
		slot.Rows = rows
	}
	r.Put(key, identity, slot)
	r.Recompute()
	return nil
}

// Tree renders the results nested along their paths, the shape a review UI
// walks to place one badge per addressed field. Each node's slots live under
// TreeKey; record-level slots sit under RecordKey at the root.
func (r *Report) Tree() map[string]any {
	tree := make(map[string]any)
	for _, key := range r.Keys() {
		slots := r.Results[key]
		if key == RecordKey {
			tree[RecordKey] = slots
			continue
		}
		recordpath.Set(tree, recordpath.Join(key, TreeKey), slots)
	}
	return tree
}
