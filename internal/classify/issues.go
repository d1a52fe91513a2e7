package classify

import (
	"fmt"
	"sort"

	"github.com/twinmind/telegraf-importer/internal/mapping"
)

// Issue is a row that prevents commit.
type Issue struct {
	InternalID  int
	Measurement string
	Status      Status
	Reason      string
}

func (i Issue) String() string {
	return fmt.Sprintf("row %d (%q): %s", i.InternalID, i.Measurement, i.Reason)
}

// DuplicateGroups returns the row ids of each internal duplicate group, keyed by measurement.
func (r Result) DuplicateGroups(points []mapping.CandidatePoint) map[string][]int {
	groups := make(map[string][]int)
	for _, p := range points {
		if r.StatusOf(p).Status == StatusInternalDuplicate {
			groups[p.Measurement] = append(groups[p.Measurement], p.InternalID)
		}
	}
	return groups
}

// Issues lists every row that blocks commit, ordered by row id. Linked, unknown and invalid rows always block.
// A duplicate group blocks unless exactly one of its rows is marked for import.
func (r Result) Issues(points []mapping.CandidatePoint) []Issue {
	marked := make(map[string]int)
	for _, p := range points {
		if p.MarkedForImport && r.StatusOf(p).Status == StatusInternalDuplicate {
			marked[p.Measurement]++
		}
	}

	var issues []Issue
	for _, p := range points {
		st := r.StatusOf(p).Status
		issue := Issue{InternalID: p.InternalID, Measurement: p.Measurement, Status: st}
		switch st {
		case StatusLinked:
			issue.Reason = "already linked to another config file"
		case StatusUnknown:
			issue.Reason = "status could not be determined; recheck"
		case StatusInvalid:
			issue.Reason = "measurement is empty"
		case StatusInternalDuplicate:
			switch marked[p.Measurement] {
			case 1:
				continue
			case 0:
				issue.Reason = "duplicate name; rename or mark one row for import"
			default:
				issue.Reason = "duplicate name; more than one row marked for import"
			}
		default:
			continue
		}
		issues = append(issues, issue)
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].InternalID < issues[j].InternalID })
	return issues
}
