package enums

// AssignmentStatus is the state of a delivery assignment ledger entry.
type AssignmentStatus string

const (
	AssignmentStatusAssigned  AssignmentStatus = "assigned"
	AssignmentStatusCompleted AssignmentStatus = "completed"
	// AssignmentStatusReleased marks a binding withdrawn before delivery, by a
	// reject or by the owner re-opening the shop order.
	AssignmentStatusReleased  AssignmentStatus = "released"
)

var assignmentStatuses = newSet("assignment status",
	AssignmentStatusAssigned,
	AssignmentStatusCompleted,
	AssignmentStatusReleased,
)

func (s AssignmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AssignmentStatus.
func (s AssignmentStatus) IsValid() bool {
	return assignmentStatuses.contains(s)
}

// ParseAssignmentStatus converts raw input into a AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	return assignmentStatuses.parse(value)
}
