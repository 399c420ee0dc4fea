package models

// Group is a local grouping of users that can be granted dashboards.
// It is unrelated to the BI platform's own workspaces (see BIGroup).
type Group struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	Created     string `json:"created"`
	Updated     string `json:"updated"`
}

// GroupInput carries the fields accepted when creating a group.
type GroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// GroupUpdate is a partial update; nil fields are left untouched.
type GroupUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// UserGroups is the answer to "which groups does this user belong to".
type UserGroups struct {
	Groups []Group `json:"groups"`
	Total  int     `json:"total"`
}

// GroupPage is one page of groups in the record store's list shape.
type GroupPage struct {
	Page       int     `json:"page"`
	PerPage    int     `json:"perPage"`
	TotalItems int     `json:"totalItems"`
	TotalPages int     `json:"totalPages"`
	Items      []Group `json:"items"`
}
