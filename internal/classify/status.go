package classify

import "github.com/twinmind/telegraf-importer/internal/platform"

// Status is the import verdict for a measurement name.
type Status string

// Point statuses.
const (
	StatusNew               Status = platform.StatusNew
	StatusUnlinked          Status = platform.StatusUnlinked
	StatusLinked            Status = platform.StatusLinked
	StatusSynced            Status = platform.StatusSynced
	StatusInternalDuplicate Status = "internal_duplicate"
	// StatusUnknown marks names whose remote lookup failed or came back without a verdict.
	StatusUnknown Status = "unknown"
	// StatusInvalid marks rows with an empty measurement.
	StatusInvalid Status = "invalid"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusNew,
	StatusUnlinked,
	StatusSynced,
	StatusInternalDuplicate,
	StatusLinked,
	StatusUnknown,
	StatusInvalid,
}

// ParseStatus converts a status name.
func ParseStatus(name string) (Status, bool) {
	for _, s := range Statuses {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

// Blocking reports whether a row with this status prevents commit on its own. Duplicates are handled per group.
func (s Status) Blocking() bool {
	switch s {
	case StatusLinked, StatusUnknown, StatusInvalid:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// PointStatus is the verdict for one measurement, with the remote point for merges.
type PointStatus struct {
	Status  Status `json:"status"`
	PointID *int64 `json:"point_id,omitempty"`
}

func fromRemote(remote platform.PointStatus) PointStatus {
	switch Status(remote.Status) {
	case StatusNew, StatusLinked, StatusSynced:
		return PointStatus{Status: Status(remote.Status), PointID: remote.PointID}
	case StatusUnlinked:
		if remote.PointID == nil {
			return PointStatus{Status: StatusUnknown}
		}
		return PointStatus{Status: StatusUnlinked, PointID: remote.PointID}
	default:
		return PointStatus{Status: StatusUnknown}
	}
}
