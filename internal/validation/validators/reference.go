package validators

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"reefcore/internal/validation"
	"reefcore/pkg/domain"
	"reefcore/pkg/recordpath"
)

type siteExists struct {
	refs domain.ReferenceStore
}

// SiteExists fails with "invalid_site" when the bound site id is malformed or
// unknown. Absent ids are left to Required.
func SiteExists(refs domain.ReferenceStore) validation.ValueValidator {
	return siteExists{refs: refs}
}

func (siteExists) Name() validation.Name { return validation.NameSiteExists }

func (s siteExists) Check(ctx context.Context, in validation.Input) (domain.Outcome, error) {
	v, ok := in.Value(0)
	if !ok || isEmpty(v) {
		return validation.OK(), nil
	}
	id, ok := parseID(v)
	if !ok {
		return validation.Err("invalid_site", map[string]any{"site": v, "reason": "malformed"}), nil
	}
	sites, err := s.refs.Sites(ctx, []string{id})
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("lookup site: %w", err)
	}
	if _, found := sites[id]; !found {
		return validation.Err("invalid_site", map[string]any{"site": id, "reason": "unknown"}), nil
	}
	return validation.OK(), nil
}

type managementExists struct {
	refs domain.ReferenceStore
}

// ManagementExists fails with "invalid_management" when the bound management
// id is malformed or unknown.
func ManagementExists(refs domain.ReferenceStore) validation.ValueValidator {
	return managementExists{refs: refs}
}

func (managementExists) Name() validation.Name { return validation.NameManagementExists }

func (m managementExists) Check(ctx context.Context, in validation.Input) (domain.Outcome, error) {
	v, ok := in.Value(0)
	if !ok || isEmpty(v) {
		return validation.OK(), nil
	}
	id, ok := parseID(v)
	if !ok {
		return validation.Err("invalid_management", map[string]any{"management": v, "reason": "malformed"}), nil
	}
	mgmts, err := m.refs.Managements(ctx, []string{id})
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("lookup management: %w", err)
	}
	if _, found := mgmts[id]; !found {
		return validation.Err("invalid_management", map[string]any{"management": id, "reason": "unknown"}), nil
	}
	return validation.OK(), nil
}

type attributeExists struct {
	refs domain.ReferenceStore
}

// AttributeExists checks, per element of the list bound at index 0, that the
// attribute id bound at index 1 names a known attribute. Attributes are
// fetched in one batch.
func AttributeExists(refs domain.ReferenceStore) validation.ListValidator {
	return attributeExists{refs: refs}
}

func (attributeExists) Name() validation.Name { return validation.NameAttributeExists }

func (a attributeExists) CheckList(ctx context.Context, in validation.Input) ([]domain.Outcome, error) {
	rows, _ := in.List(0)
	if len(rows) == 0 {
		return nil, nil
	}
	key := relative(in.Path(0), in.Path(1))
	attrs, err := a.refs.Attributes(ctx, collectIDs(rows, key))
	if err != nil {
		return nil, fmt.Errorf("lookup attributes: %w", err)
	}
	out := make([]domain.Outcome, len(rows))
	ids := validation.RowIDs(rows)
	for i, row := range rows {
		o := validation.OK()
		if v, ok := recordpath.Get(row, key); ok && !isEmpty(v) {
			id, parsed := parseID(v)
			switch {
			case !parsed:
				o = validation.Err("invalid_attribute", map[string]any{"attribute": v, "reason": "malformed"})
			default:
				if _, found := attrs[id]; !found {
					o = validation.Err("invalid_attribute", map[string]any{"attribute": id, "reason": "unknown"})
				}
			}
		}
		o.RowID = ids[i]
		out[i] = o
	}
	return out, nil
}

type uniqueTransect struct {
	protocol domain.Protocol
	refs     domain.ReferenceStore
	status   domain.Status
}

// UniqueTransect looks for a committed sample unit of the same protocol with
// identical identifying attributes and at least one shared observer. Bound
// paths, in order: site, management, sample date, observer list (elements
// carry "profile"), label, depth, then any protocol-specific identifying
// fields (number, width, quadrat size) compared exactly by leaf name.
func UniqueTransect(protocol domain.Protocol, refs domain.ReferenceStore, status domain.Status) validation.ValueValidator {
	return uniqueTransect{protocol: protocol, refs: refs, status: status}
}

func (uniqueTransect) Name() validation.Name { return validation.NameUniqueTransect }

func (u uniqueTransect) Check(ctx context.Context, in validation.Input) (domain.Outcome, error) {
	siteRaw, okSite := in.Value(0)
	mgmtRaw, okMgmt := in.Value(1)
	date, okDate := in.String(2)
	if !okSite || !okMgmt || !okDate || isEmpty(siteRaw) || isEmpty(mgmtRaw) || strings.TrimSpace(date) == "" {
		return validation.OK(), nil
	}
	site, ok := parseID(siteRaw)
	if !ok {
		return validation.Err("invalid_input", map[string]any{"field": in.Path(0), "value": siteRaw}), nil
	}
	mgmt, ok := parseID(mgmtRaw)
	if !ok {
		return validation.Err("invalid_input", map[string]any{"field": in.Path(1), "value": mgmtRaw}), nil
	}

	observers, _ := in.List(3)
	observerIDs := make([]string, 0, len(observers))
	for _, obs := range observers {
		raw, ok := recordpath.Get(obs, "profile")
		if !ok {
			continue
		}
		id, ok := parseID(raw)
		if !ok {
			return validation.Err("invalid_input", map[string]any{"field": in.Path(3), "value": raw}), nil
		}
		observerIDs = append(observerIDs, id)
	}
	if len(observerIDs) == 0 {
		return validation.OK(), nil
	}
	sort.Strings(observerIDs)

	q := domain.SampleUnitQuery{
		Protocol:     u.protocol,
		SiteID:       site,
		ManagementID: mgmt,
		SampleDate:   strings.TrimSpace(date),
		ObserverIDs:  observerIDs,
	}
	if label, ok := in.String(4); ok {
		q.Label = NormaliseLabel(label)
	}
	if raw, ok := in.Value(5); ok && raw != nil {
		depth, ok := recordpath.ToFloat(raw)
		if !ok {
			return validation.Err("invalid_input", map[string]any{"field": in.Path(5), "value": raw}), nil
		}
		q.Depth = &depth
	}
	for i := 6; i < len(in.Paths); i++ {
		raw, ok := in.Value(i)
		if !ok || raw == nil {
			continue
		}
		if q.Attributes == nil {
			q.Attributes = make(map[string]any)
		}
		segs := recordpath.Split(in.Path(i))
		leaf := segs[len(segs)-1]
		if f, ok := recordpath.ToFloat(raw); ok {
			q.Attributes[leaf] = f
		} else {
			q.Attributes[leaf] = raw
		}
	}

	matches, err := u.refs.FindSampleUnits(ctx, q)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("find sample units: %w", err)
	}
	if len(matches) == 0 {
		return validation.OK(), nil
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	sort.Strings(ids)
	return validation.With(u.status, "duplicate_transect", map[string]any{
		"sample_unit_ids": ids,
		"protocol":        string(u.protocol),
	}), nil
}

// NormaliseLabel canonicalises a free-text sample unit label for comparison.
func NormaliseLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(label)))
}
