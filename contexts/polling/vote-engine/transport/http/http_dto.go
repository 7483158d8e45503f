package http

import "time"

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type ErrorResponse struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

type OptionRequest struct {
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
}

type CreateVoteRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Options     []OptionRequest `json:"options,omitempty"`
}

type OptionResponse struct {
	OptionID string `json:"option_id"`
	Title    string `json:"title"`
	Content  string `json:"content,omitempty"`
	Position int    `json:"position"`
}

type VoteResponse struct {
	VoteID      string           `json:"vote_id"`
	Slug        string           `json:"slug,omitempty"`
	OwnerID     string           `json:"owner_id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Status      string           `json:"status"`
	OptionCount int              `json:"option_count"`
	Options     []OptionResponse `json:"options,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	PublishedAt *time.Time       `json:"published_at,omitempty"`
	ClosedAt    *time.Time       `json:"closed_at,omitempty"`
}

type SubmitResponseRequest struct {
	Values map[string]int `json:"values"`
}

type SubmitResponseResponse struct {
	Status        string    `json:"status"`
	ResponseSetID string    `json:"response_set_id"`
	VoteID        string    `json:"vote_id"`
	IdentityKind  string    `json:"identity_kind"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

type OptionResult struct {
	Title      string  `json:"title"`
	Position   int     `json:"position"`
	Count      int     `json:"count"`
	TotalScore int     `json:"total_score"`
	Mean       float64 `json:"mean"`
}

type ResultsResponse struct {
	VoteID        string                  `json:"vote_id"`
	Status        string                  `json:"status"`
	ResponseCount int                     `json:"response_count"`
	Results       map[string]OptionResult `json:"results"`
}

type SnapshotResponse struct {
	ResultsResponse
	InputsHash string    `json:"inputs_hash"`
	TakenAt    time.Time `json:"taken_at"`
}

type FlagRequest struct {
	FlagType string `json:"flag_type"`
	Reason   string `json:"reason,omitempty"`
}

type FlagResponse struct {
	FlagID      string     `json:"flag_id"`
	VoteID      string     `json:"vote_id"`
	FlagType    string     `json:"flag_type"`
	ReportedBy  string     `json:"reported_by"`
	Reason      string     `json:"reason,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	ReviewNotes string     `json:"review_notes,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
}

type FlagListResponse struct {
	Items []FlagResponse `json:"items"`
}

type ReviewFlagRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
}

type ApplyActionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

type BulkActionRequest struct {
	VoteIDs []string `json:"vote_ids"`
	Action  string   `json:"action"`
	Reason  string   `json:"reason,omitempty"`
}

type BulkActionItem struct {
	VoteID     string `json:"vote_id"`
	Result     string `json:"result"`
	VoteStatus string `json:"vote_status,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	Message    string `json:"message,omitempty"`
}

type BulkActionResponse struct {
	Items     []BulkActionItem `json:"items"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

type ModerationActionResponse struct {
	ActionID   string    `json:"action_id"`
	VoteID     string    `json:"vote_id"`
	ActionType string    `json:"action_type"`
	Reason     string    `json:"reason,omitempty"`
	ActorID    string    `json:"actor_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	CreatedAt  time.Time `json:"created_at"`
}

type ModerationActionListResponse struct {
	Items []ModerationActionResponse `json:"items"`
}
