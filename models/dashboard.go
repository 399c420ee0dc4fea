package models

import "encoding/json"

// Dashboard is a projection of a BI platform report. It is never stored
// locally; GroupDashboard rows reference it by ID.
type Dashboard struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DatasetID   string `json:"datasetId"`
	Description string `json:"description"`
	GroupID     string `json:"groupId"`
	GroupName   string `json:"groupName"`
}

// BIGroup is a BI platform workspace. Fields beyond id and name are kept
// verbatim in Raw so the passthrough endpoints lose nothing.
type BIGroup struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Raw  json.RawMessage `json:"-"`
}

// MarshalJSON emits the upstream object unchanged when it is available.
func (g BIGroup) MarshalJSON() ([]byte, error) {
	if len(g.Raw) > 0 {
		return g.Raw, nil
	}
	type plain BIGroup
	return json.Marshal(plain(g))
}
