package classify

import (
	"context"
	"fmt"
	"sort"

	"github.com/twinmind/telegraf-importer/internal/mapping"
	"github.com/twinmind/telegraf-importer/internal/platform"
)

// Checker looks up measurement names in the point store.
type Checker interface {
	CheckPointStatus(ctx context.Context, names []string, configID int64) (map[string]platform.PointStatus, error)
}

// Result is a complete classification of one candidate batch.
type Result struct {
	// Statuses is keyed by measurement name. The empty name maps to StatusInvalid.
	Statuses map[string]PointStatus
	// Checked lists the names sent to the remote lookup, sorted.
	Checked []string
	// Warning is set when the remote lookup failed; affected names are StatusUnknown.
	Warning error
}

// StatusOf returns the verdict for a candidate point.
func (r Result) StatusOf(p mapping.CandidatePoint) PointStatus {
	if st, ok := r.Statuses[p.Measurement]; ok {
		return st
	}
	return PointStatus{Status: StatusUnknown}
}

// Counts tallies rows per status.
func (r Result) Counts(points []mapping.CandidatePoint) map[Status]int {
	counts := make(map[Status]int)
	for _, p := range points {
		counts[r.StatusOf(p).Status]++
	}
	return counts
}

// Classify assigns a status to every measurement in the batch. Empty names are invalid and names occurring more
// than once are internal duplicates; neither is sent to the checker. All remaining names go out in one sorted,
// deduplicated lookup. A failed lookup marks those names unknown and is reported through Result.Warning rather than
// as an error. The returned error is only set when ctx is done.
func Classify(ctx context.Context, points []mapping.CandidatePoint, configID int64, checker Checker) (Result, error) {
	res := Result{Statuses: make(map[string]PointStatus, len(points))}

	occurrences := make(map[string]int, len(points))
	for _, p := range points {
		occurrences[p.Measurement]++
	}

	for name, n := range occurrences {
		switch {
		case name == "":
			res.Statuses[name] = PointStatus{Status: StatusInvalid}
		case n > 1:
			res.Statuses[name] = PointStatus{Status: StatusInternalDuplicate}
		default:
			res.Checked = append(res.Checked, name)
		}
	}
	sort.Strings(res.Checked)

	if len(res.Checked) == 0 {
		return res, nil
	}

	remote, err := checker.CheckPointStatus(ctx, res.Checked, configID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		res.Warning = fmt.Errorf("check point status: %w", err)
		for _, name := range res.Checked {
			res.Statuses[name] = PointStatus{Status: StatusUnknown}
		}
		return res, nil
	}

	for _, name := range res.Checked {
		verdict, ok := remote[name]
		if !ok {
			res.Statuses[name] = PointStatus{Status: StatusUnknown}
			continue
		}
		res.Statuses[name] = fromRemote(verdict)
	}
	return res, nil
}
