package models

// Pipeline is a projection of an orchestrator workflow definition (DAG).
type Pipeline struct {
	ID                   string `json:"id"`
	Description          string `json:"description"`
	TimetableDescription string `json:"timetable_description"`
	IsPaused             bool   `json:"is_paused"`
	IsActive             bool   `json:"is_active"`
	FileToken            string `json:"file_token,omitempty"`
}

// PipelineList is the answer of GET /pipelines.
type PipelineList struct {
	Dags          []Pipeline `json:"dags"`
	TotalEntries  int        `json:"total_entries"`
	TotalReturned int        `json:"total_returned"`
}

// DagRun is the outcome of triggering a pipeline.
type DagRun struct {
	Message     string `json:"message"`
	DagRunID    string `json:"dag_run_id"`
	LogicalDate string `json:"logical_date"`
	State       string `json:"state"`
}
