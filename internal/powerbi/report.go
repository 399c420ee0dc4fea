package powerbi

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"hopperGateway/models"
)

// RawReport is a report object exactly as the BI platform returned it.
type RawReport json.RawMessage

// MarshalJSON emits the upstream object unchanged.
func (r RawReport) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// Dashboard projects the report onto the fields the front-end uses.
func (r RawReport) Dashboard(g models.BIGroup) models.Dashboard {
	res := gjson.ParseBytes(r)
	return models.Dashboard{
		ID:          res.Get("id").String(),
		Name:        res.Get("name").String(),
		DatasetID:   res.Get("datasetId").String(),
		Description: res.Get("description").String(),
		GroupID:     g.ID,
		GroupName:   g.Name,
	}
}
