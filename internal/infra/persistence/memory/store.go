// Package memory provides an in-memory implementation of the reference,
// record and dry-run persistence contracts for tests and ephemeral
// environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"reefcore/internal/geo"
	"reefcore/internal/infra/persistence/submission"
	"reefcore/pkg/domain"
	"reefcore/pkg/recordpath"
)

// Compile-time contract assertions.
var (
	_ domain.ReferenceStore = (*Store)(nil)
	_ domain.RecordStore    = (*Store)(nil)
	_ domain.Instance       = (*Store)(nil)
)

type memoryState struct {
	sites        map[string]domain.Site
	managements  map[string]domain.Management
	attributes   map[string]domain.Attribute
	regions      map[string]domain.Region
	sampleUnits  map[string]domain.SampleUnit
	observations map[string][]submission.Observation
	drafts       map[string]domain.DraftRecord
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Sites        map[string]domain.Site              `json:"sites"`
	Managements  map[string]domain.Management        `json:"managements"`
	Attributes   map[string]domain.Attribute         `json:"attributes"`
	Regions      map[string]domain.Region            `json:"regions"`
	SampleUnits  map[string]domain.SampleUnit        `json:"sample_units"`
	Observations map[string][]submission.Observation `json:"observations"`
	Drafts       map[string]domain.DraftRecord       `json:"drafts"`
}

func newMemoryState() memoryState {
	return memoryState{
		sites:        make(map[string]domain.Site),
		managements:  make(map[string]domain.Management),
		attributes:   make(map[string]domain.Attribute),
		regions:      make(map[string]domain.Region),
		sampleUnits:  make(map[string]domain.SampleUnit),
		observations: make(map[string][]submission.Observation),
		drafts:       make(map[string]domain.DraftRecord),
	}
}

func (s memoryState) clone() memoryState {
	cp := newMemoryState()
	for k, v := range s.sites {
		cp.sites[k] = cloneSite(v)
	}
	for k, v := range s.managements {
		cp.managements[k] = v
	}
	for k, v := range s.attributes {
		cp.attributes[k] = cloneAttribute(v)
	}
	for k, v := range s.regions {
		cp.regions[k] = v
	}
	for k, v := range s.sampleUnits {
		cp.sampleUnits[k] = cloneSampleUnit(v)
	}
	for k, v := range s.observations {
		cp.observations[k] = append([]submission.Observation(nil), v...)
	}
	for k, v := range s.drafts {
		cp.drafts[k] = cloneDraft(v)
	}
	return cp
}

func cloneSite(s domain.Site) domain.Site {
	if s.Location != nil {
		loc := *s.Location
		s.Location = &loc
	}
	return s
}

func cloneAttribute(a domain.Attribute) domain.Attribute {
	a.Regions = append([]string(nil), a.Regions...)
	return a
}

func cloneSampleUnit(su domain.SampleUnit) domain.SampleUnit {
	su.ObserverIDs = append([]string(nil), su.ObserverIDs...)
	if su.Attributes != nil {
		su.Attributes = recordpath.Clone(su.Attributes).(map[string]any)
	}
	if su.Depth != nil {
		d := *su.Depth
		su.Depth = &d
	}
	return su
}

func cloneDraft(d domain.DraftRecord) domain.DraftRecord {
	if d.Data != nil {
		d.Data = recordpath.Clone(d.Data).(map[string]any)
	}
	if d.Validations != nil {
		d.Validations = cloneReport(d.Validations)
	}
	return d
}

func cloneReport(r *domain.Report) *domain.Report {
	cp := *r
	cp.Results = make(map[string]map[string]domain.Slot, len(r.Results))
	for key, slots := range r.Results {
		inner := make(map[string]domain.Slot, len(slots))
		for id, slot := range slots {
			slot.Paths = append([]string(nil), slot.Paths...)
			if slot.Outcome != nil {
				o := *slot.Outcome
				slot.Outcome = &o
			}
			slot.Rows = append([]domain.Outcome(nil), slot.Rows...)
			inner[id] = slot
		}
		cp.Results[key] = inner
	}
	return &cp
}

// Store is an in-memory reference, record and dry-run store.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	index *geo.Index
	nowFn func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state.clone()
	return Snapshot{
		Sites:        st.sites,
		Managements:  st.managements,
		Attributes:   st.attributes,
		Regions:      st.regions,
		SampleUnits:  st.sampleUnits,
		Observations: st.observations,
		Drafts:       st.drafts,
	}
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) error {
	st := newMemoryState()
	for k, v := range snapshot.Sites {
		st.sites[k] = v
	}
	for k, v := range snapshot.Managements {
		st.managements[k] = v
	}
	for k, v := range snapshot.Attributes {
		st.attributes[k] = v
	}
	for k, v := range snapshot.Regions {
		st.regions[k] = v
	}
	for k, v := range snapshot.SampleUnits {
		st.sampleUnits[k] = v
	}
	for k, v := range snapshot.Observations {
		st.observations[k] = v
	}
	for k, v := range snapshot.Drafts {
		st.drafts[k] = v
	}
	st = st.clone()
	idx, err := buildIndex(st.regions)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.index = idx
	return nil
}

func buildIndex(regions map[string]domain.Region) (*geo.Index, error) {
	list := make([]domain.Region, 0, len(regions))
	for _, r := range regions {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return geo.NewIndex(list)
}

// PutSite inserts or replaces a site.
func (s *Store) PutSite(site domain.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.sites[site.ID] = cloneSite(site)
}

// PutManagement inserts or replaces a management regime.
func (s *Store) PutManagement(m domain.Management) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.managements[m.ID] = m
}

// PutAttribute inserts or replaces an attribute.
func (s *Store) PutAttribute(a domain.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.attributes[a.ID] = cloneAttribute(a)
}

// PutRegion inserts or replaces a region and rebuilds the region index.
func (s *Store) PutRegion(r domain.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	regions := make(map[string]domain.Region, len(s.state.regions)+1)
	for k, v := range s.state.regions {
		regions[k] = v
	}
	regions[r.ID] = r
	idx, err := buildIndex(regions)
	if err != nil {
		return err
	}
	s.state.regions = regions
	s.index = idx
	return nil
}

// PutSampleUnit inserts a committed sample unit directly.
func (s *Store) PutSampleUnit(su domain.SampleUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.sampleUnits[su.ID] = cloneSampleUnit(su)
}

// PutDraft inserts or replaces a draft record.
func (s *Store) PutDraft(d domain.DraftRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = s.nowFn()
	}
	s.state.drafts[d.ID] = cloneDraft(d)
}

// Sites returns the subset of ids that name known sites.
func (s *Store) Sites(_ context.Context, ids []string) (map[string]domain.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Site, len(ids))
	for _, id := range ids {
		if site, ok := s.state.sites[id]; ok {
			out[id] = cloneSite(site)
		}
	}
	return out, nil
}

// Managements returns the subset of ids that name known management regimes.
func (s *Store) Managements(_ context.Context, ids []string) (map[string]domain.Management, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Management, len(ids))
	for _, id := range ids {
		if m, ok := s.state.managements[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

// Attributes returns the subset of ids that name known attributes.
func (s *Store) Attributes(_ context.Context, ids []string) (map[string]domain.Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Attribute, len(ids))
	for _, id := range ids {
		if a, ok := s.state.attributes[id]; ok {
			out[id] = cloneAttribute(a)
		}
	}
	return out, nil
}

// RegionsContaining returns the ids of regions whose geometry holds p.
func (s *Store) RegionsContaining(_ context.Context, p domain.Point) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Containing(p), nil
}

// FindSampleUnits returns committed sample units clashing with q.
func (s *Store) FindSampleUnits(_ context.Context, q domain.SampleUnitQuery) ([]domain.SampleUnitMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SampleUnitMatch
	for _, su := range s.state.sampleUnits {
		if shared, ok := submission.Matches(q, su); ok {
			out = append(out, domain.SampleUnitMatch{ID: su.ID, SharedObservers: shared})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetDraft returns the draft with id.
func (s *Store) GetDraft(_ context.Context, id string) (domain.DraftRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.state.drafts[id]
	if !ok {
		return domain.DraftRecord{}, fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	return cloneDraft(d), nil
}

// SaveReport replaces the stored report of the draft.
func (s *Store) SaveReport(_ context.Context, id string, report domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.state.drafts[id]
	if !ok {
		return fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	d.Validations = cloneReport(&report)
	d.UpdatedAt = s.nowFn()
	s.state.drafts[id] = d
	return nil
}

// RunInTransaction executes fn against a transactional copy of the state and
// commits it only when fn succeeds.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &Tx{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// Submit promotes draft into a committed sample unit and returns its id.
func (s *Store) Submit(ctx context.Context, draft domain.DraftRecord) (string, error) {
	var id string
	err := s.RunInTransaction(ctx, func(tx *Tx) error {
		var err error
		id, err = tx.Submit(draft)
		return err
	})
	return id, err
}

// DrySubmit performs Submit against a discarded copy of the state.
func (s *Store) DrySubmit(ctx context.Context, draft domain.DraftRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &Tx{state: s.state.clone()}
	_, err := tx.Submit(draft)
	return err
}

// Tx is a mutable copy of the store state.
type Tx struct {
	state memoryState
}

// Submit checks the constraints the SQL stores enforce and inserts the
// decoded sample unit and observations.
func (tx *Tx) Submit(draft domain.DraftRecord) (string, error) {
	sub, err := submission.Decode(draft)
	if err != nil {
		return "", err
	}
	su := sub.SampleUnit
	if _, ok := tx.state.sites[su.SiteID]; !ok {
		return "", foreignKey("sample_units", "site_id", "sample_units_site_id_fkey", su.SiteID)
	}
	if _, ok := tx.state.managements[su.ManagementID]; !ok {
		return "", foreignKey("sample_units", "management_id", "sample_units_management_id_fkey", su.ManagementID)
	}
	for _, o := range sub.Observations {
		if o.AttributeID != "" {
			if _, ok := tx.state.attributes[o.AttributeID]; !ok {
				return "", foreignKey("observations", "attribute_id", "observations_attribute_id_fkey", o.AttributeID)
			}
		}
		for field, v := range o.Values {
			if v < 0 {
				return "", &domain.StorageError{
					Code: "check_violation", Message: fmt.Sprintf("%s must not be negative", field),
					Table: "observations", Column: field, Constraint: "observations_values_check",
				}
			}
		}
	}
	if n, ok := su.Attributes["len_surveyed"].(float64); ok && n <= 0 {
		return "", &domain.StorageError{
			Code: "check_violation", Message: "len_surveyed must be positive",
			Table: "sample_units", Column: "len_surveyed", Constraint: "sample_units_len_surveyed_check",
		}
	}
	su.ID = uuid.NewString()
	tx.state.sampleUnits[su.ID] = su
	tx.state.observations[su.ID] = sub.Observations
	delete(tx.state.drafts, draft.ID)
	return su.ID, nil
}

func foreignKey(table, column, constraint, value string) *domain.StorageError {
	return &domain.StorageError{
		Code:       "foreign_key_violation",
		Message:    fmt.Sprintf("%s %s does not exist", column, value),
		Table:      table,
		Column:     column,
		Constraint: constraint,
		Detail:     fmt.Sprintf("Key (%s)=(%s) is not present.", column, value),
	}
}
