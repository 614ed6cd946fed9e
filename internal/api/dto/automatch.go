package dto

// AutoMatchJobStartedResponse is returned when a job is accepted.
type AutoMatchJobStartedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// AutoMatchJobResponse represents an auto-match job's status.
type AutoMatchJobResponse struct {
	JobID       string                    `json:"job_id"`
	Owner       string                    `json:"owner"`
	AllOwners   bool                      `json:"all_owners"`
	Status      string                    `json:"status"`
	StartedAt   string                    `json:"started_at"`
	CompletedAt *string                   `json:"completed_at,omitempty"`
	Progress    AutoMatchProgressResponse `json:"progress"`
	Results     []AutoMatchResultResponse `json:"results,omitempty"`
	Error       *string                   `json:"error,omitempty"`
}

// AutoMatchProgressResponse represents real-time progress.
type AutoMatchProgressResponse struct {
	CurrentPhase      string `json:"current_phase"`
	TotalReceipts     int    `json:"total_receipts"`
	ProcessedReceipts int    `json:"processed_receipts"`
	ProposedCount     int    `json:"proposed_count"`
	FailedCount       int    `json:"failed_count"`
	LastUpdate        string `json:"last_update"`
}

// AutoMatchResultResponse represents one owner's run outcome.
type AutoMatchResultResponse struct {
	Owner              string `json:"owner"`
	Processed          int    `json:"processed"`
	Proposed           int    `json:"proposed"`
	TransactionMatches int    `json:"transaction_matches"`
	GroupMatches       int    `json:"group_matches"`
	Ambiguous          int    `json:"ambiguous"`
	NoCandidates       int    `json:"no_candidates"`
	BelowThreshold     int    `json:"below_threshold"`
	Failed             int    `json:"failed"`
	DurationMillis     int64  `json:"duration_ms"`
}

// AutoMatchJobListResponse lists auto-match jobs.
type AutoMatchJobListResponse struct {
	Jobs  []AutoMatchJobResponse `json:"jobs"`
	Count int                    `json:"count"`
}
