package models

// Job status values as reported by the Fabrica API. The server owns the
// lifecycle; clients only ever observe PENDING → RUNNING → {SUCCESS, FAILURE}.
const (
	JobStatusPending = "PENDING"
	JobStatusRunning = "RUNNING"
	JobStatusSuccess = "SUCCESS"
	JobStatusFailure = "FAILURE"
)

// JobRecord is a snapshot of a server-side generation job. The client never
// constructs one, it only deserializes what the API returns.
type JobRecord struct {
	JobID    string            `json:"job_id"`
	Status   string            `json:"status"`
	Progress *float64          `json:"progress,omitempty"` // percent, 0-100
	Message  *string           `json:"message,omitempty"`
	Files    map[string]string `json:"files,omitempty"` // artifact name -> URI
	Error    *string           `json:"error,omitempty"`
}

// Terminal reports whether the job has reached a final status.
func (j *JobRecord) Terminal() bool {
	return j.Status == JobStatusSuccess || j.Status == JobStatusFailure
}

// JobSummary is one entry of the completed-jobs listing.
type JobSummary struct {
	JobID     string  `json:"job_id"`
	Status    string  `json:"status"`
	Message   *string `json:"message,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// DeleteResult is the API response to a job deletion.
type DeleteResult struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// TablePreview holds a paginated preview of generated rows for one table.
type TablePreview struct {
	Columns     []string         `json:"columns"`
	Rows        []map[string]any `json:"rows"`
	TotalRows   int              `json:"total_rows"`
	PreviewRows int              `json:"preview_rows"`
}

// JobData is the preview payload for a completed job, keyed by table name.
type JobData struct {
	JobID  string                  `json:"job_id"`
	Tables map[string]TablePreview `json:"tables"`
}
