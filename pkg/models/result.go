package models

// OperationResult is the per-call outcome returned to the workflow engine.
// Produced fresh on every invocation; never persisted by this layer.
// An approval-gated call is not an error: Success is true, RequiresApproval
// is set and ApprovalID identifies the ticket. Callers must check the flag.
type OperationResult struct {
	ID               string      `json:"id,omitempty"`
	Operation        string      `json:"operation"`
	Success          bool        `json:"success"`
	Data             interface{} `json:"data,omitempty"`
	Error            string      `json:"error,omitempty"`
	DurationMs       int64       `json:"duration_ms,omitempty"`
	RowCount         int         `json:"row_count,omitempty"`
	RequiresApproval bool        `json:"requires_approval,omitempty"`
	ApprovalID       string      `json:"approval_id,omitempty"`
}

// BatchStats aggregates the outcome of a batch call. A gated operation
// counts toward ApprovalCount, not SuccessCount.
type BatchStats struct {
	TotalTimeMs   int64 `json:"total_time_ms"`
	SuccessCount  int   `json:"success_count"`
	FailureCount  int   `json:"failure_count"`
	ApprovalCount int   `json:"approval_count"`
}

// BatchResult aggregates N operation results, index-aligned with the
// request slice. Success is true iff no operation failed.
type BatchResult struct {
	Success bool              `json:"success"`
	Results []OperationResult `json:"results"`
	Stats   BatchStats        `json:"stats"`
}
