package submission

import (
	"reflect"

	"reefcore/pkg/domain"
)

// Matches reports whether the committed sample unit su clashes with q and
// returns the observers they share. Only the attributes named in q are
// compared; a nil query depth matches any depth.
func Matches(q domain.SampleUnitQuery, su domain.SampleUnit) ([]string, bool) {
	if su.Protocol != q.Protocol || su.SiteID != q.SiteID || su.ManagementID != q.ManagementID || su.SampleDate != q.SampleDate {
		return nil, false
	}
	if LabelKey(su.Label) != LabelKey(q.Label) {
		return nil, false
	}
	if q.Depth != nil && (su.Depth == nil || *su.Depth != *q.Depth) {
		return nil, false
	}
	for k, want := range q.Attributes {
		got, ok := su.Attributes[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return nil, false
		}
	}
	wanted := make(map[string]struct{}, len(q.ObserverIDs))
	for _, id := range q.ObserverIDs {
		wanted[id] = struct{}{}
	}
	var shared []string
	for _, id := range su.ObserverIDs {
		if _, ok := wanted[id]; ok {
			shared = append(shared, id)
		}
	}
	return shared, len(shared) > 0
}
