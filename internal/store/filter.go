package store

import (
	"sort"
	"strings"

	"github.com/Muhiddinjon/call-center-crm/internal/types"
)

// filterCalls applies the non-indexed filters to an already-paged result.
// Filtering happens after paging, so a page can come back short; QueryCalls
// documents this.
func filterCalls(calls []types.CallRecord, f types.CallFilters) []types.CallRecord {
	out := calls[:0]
	for _, c := range calls {
		if f.Region != "" && c.Region != f.Region {
			continue
		}
		if f.Direction != "" && c.Direction != f.Direction {
			continue
		}
		if f.CallerType != "" && c.CallerType != f.CallerType {
			continue
		}
		if f.OperatorName != "" && c.OperatorName != f.OperatorName {
			continue
		}
		if f.PhoneNumber != "" && !strings.Contains(c.PhoneNumber, f.PhoneNumber) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func sortCallsNewestFirst(calls []types.CallRecord) {
	sort.Slice(calls, func(i, j int) bool {
		if calls[i].StartedAt != calls[j].StartedAt {
			return calls[i].StartedAt > calls[j].StartedAt
		}
		return calls[i].ID > calls[j].ID
	})
}
