package models

import "encoding/json"

// Join rows live in the record store and carry their own ID, distinct from
// the IDs of the entities they relate. The store enforces no uniqueness on
// the pair, so readers must tolerate duplicates.

// GroupUser relates a Group to a User.
type GroupUser struct {
	ID      string `json:"id"`
	GroupID string `json:"group_id"`
	UserID  string `json:"user_id"`
	Created string `json:"created,omitempty"`
	Updated string `json:"updated,omitempty"`
}

// GroupDashboard relates a Group to a BI report. DashboardID is the report
// ID on the BI platform.
type GroupDashboard struct {
	ID          string `json:"id"`
	GroupID     string `json:"group_id"`
	DashboardID string `json:"dashboard_id"`
	Created     string `json:"created,omitempty"`
	Updated     string `json:"updated,omitempty"`
}

// PipelineDashboard relates an orchestrator pipeline to a BI report.
// Handlers assume at most one row per DashboardID.
type PipelineDashboard struct {
	ID          string `json:"id"`
	PipelineID  string `json:"pipeline_id"`
	DashboardID string `json:"dashboard_id"`
	Created     string `json:"created,omitempty"`
	Updated     string `json:"updated,omitempty"`
}

// GroupMember is a User seen through a GroupUser row: ID is the join row
// and UserID the user.
type GroupMember struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Active   bool   `json:"active"`
	Created  string `json:"created"`
	Updated  string `json:"updated"`
}

// AssociationKind names one of the three join collections.
type AssociationKind string

const (
	KindGroupUser         AssociationKind = "group-user"
	KindGroupDashboard    AssociationKind = "group-dashboard"
	KindPipelineDashboard AssociationKind = "pipeline-dashboard"
)

// Fields returns the record field names holding the two related IDs.
func (k AssociationKind) Fields() (left, right string) {
	switch k {
	case KindGroupUser:
		return "group_id", "user_id"
	case KindGroupDashboard:
		return "group_id", "dashboard_id"
	case KindPipelineDashboard:
		return "pipeline_id", "dashboard_id"
	default:
		return "", ""
	}
}

// Valid reports whether k is a known kind.
func (k AssociationKind) Valid() bool {
	l, _ := k.Fields()
	return l != ""
}

// Association is a kind-agnostic view of a join row. It serializes with the
// kind's own field names, e.g. {"id", "group_id", "user_id"}.
type Association struct {
	Kind  AssociationKind
	ID    string
	Left  string
	Right string
}

// MarshalJSON renders the row the way the record store stores it.
func (a Association) MarshalJSON() ([]byte, error) {
	l, r := a.Kind.Fields()
	return json.Marshal(map[string]string{"id": a.ID, l: a.Left, r: a.Right})
}
