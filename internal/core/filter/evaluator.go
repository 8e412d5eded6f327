package filter

import "github.com/feedbrew/feedbrew/internal/core/domain"

// Passes evaluates every filter group of the given usage against the entry
// and combines the group results with the feed's cross-group operator.
// A feed with no groups for the usage passes unconditionally.
func Passes(entry domain.Entry, pf *domain.ProcessedFeed, usage domain.FilterUsage) bool {
	groups := pf.GroupsFor(usage)
	if len(groups) == 0 {
		return true
	}

	groupResults := make([]bool, 0, len(groups))
	for _, group := range groups {
		groupResults = append(groupResults, evaluateGroup(entry, group, pf.CaseSensitive))
	}

	return combine(groupResults, pf.CrossGroupOperator(usage))
}

// evaluateGroup combines the group's rule results with its relational
// operator. An empty group passes vacuously: any([]) would otherwise make an
// accidentally emptied group reject everything.
func evaluateGroup(entry domain.Entry, group domain.FilterGroup, caseSensitive bool) bool {
	if len(group.Filters) == 0 {
		return true
	}

	results := make([]bool, 0, len(group.Filters))
	for _, f := range group.Filters {
		results = append(results, Match(entry, f, caseSensitive))
	}

	return combine(results, group.RelationalOperator)
}

func combine(results []bool, op domain.Operator) bool {
	anyTrue := false
	allTrue := true

	for _, r := range results {
		if r {
			anyTrue = true
		} else {
			allTrue = false
		}
	}

	switch op {
	case domain.OperatorAll:
		return allTrue
	case domain.OperatorNone:
		return !anyTrue
	default:
		return anyTrue
	}
}
