package database

// User is an account in the product.
type User struct {
	ID               int64
	Handle           string
	DisplayName      *string
	Email            *string
	APIToken         *string
	StripeCustomerID *string
	Persona          *string
	Interests        *string
	Bio              *string
	Public           bool
	LastActiveAt     *string
	CreatedAt        *string
}

// CurationConfig is the per-user news-curation state. A missing row means
// all defaults: enabled, zero counters, never checked.
type CurationConfig struct {
	UserID              int64
	Enabled             bool
	LastCheckAt         *string
	LastSuccessAt       *string
	ConsecutiveFailures int
	ArticlesSentToday   int
	LastResetDate       *string
}

// CurationPatch is a partial update to a curation config. Nil fields are
// left untouched; the config row is never fully overwritten.
type CurationPatch struct {
	Enabled             *bool
	LastCheckAt         *string
	LastSuccessAt       *string
	ConsecutiveFailures *int
	// IncrementFailures bumps consecutive_failures by one; ignored when
	// ConsecutiveFailures is set.
	IncrementFailures bool
	ArticlesSentToday *int
	// AddArticlesSentToday increments the daily counter; ignored when
	// ArticlesSentToday is set.
	AddArticlesSentToday int
	LastResetDate        *string
}

// EligibleUser is one row of the batch-selection scan: an active user
// joined to whatever curation config exists for them.
type EligibleUser struct {
	UserID              int64
	LastActiveAt        *string
	Enabled             bool
	LastCheckAt         *string
	ArticlesSentToday   int
	LastResetDate       *string
	ConsecutiveFailures int
}

// Message is one entry in a user's assistant timeline.
type Message struct {
	ID        int64   `json:"id"`
	UserID    int64   `json:"user_id"`
	Role      string  `json:"role"` // "user" or "assistant"
	Kind      string  `json:"kind"` // "chat" or "digest"
	Content   string  `json:"content"`
	CreatedAt *string `json:"created_at,omitempty"`
}

// KnowledgeItem is one document in a user's knowledge base.
type KnowledgeItem struct {
	ID        string   `json:"id"`
	UserID    int64    `json:"user_id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Source    string   `json:"source"` // "manual" or "upload"
	Tags      []string `json:"tags"`
	Public    bool     `json:"public"`
	CreatedAt *string  `json:"created_at,omitempty"`
	UpdatedAt *string  `json:"updated_at,omitempty"`
}

// KnowledgeFilter narrows a knowledge listing.
type KnowledgeFilter struct {
	Source string
	Tag    string
	Query  string
	Limit  int
	Offset int
}

// RunError is one per-user failure recorded on a curation run.
type RunError struct {
	UserID int64  `json:"user_id"`
	Error  string `json:"error"`
	At     string `json:"at"`
}

// RunRecord is the aggregate statistics row for one curation run.
type RunRecord struct {
	ID             int64      `json:"id"`
	StartedAt      string     `json:"started_at"`
	Status         string     `json:"status"` // "success", "partial" or "failed"
	UsersSelected  int        `json:"users_selected"`
	UsersSucceeded int        `json:"users_succeeded"`
	UsersSkipped   int        `json:"users_skipped"`
	UsersErrored   int        `json:"users_errored"`
	ArticlesSent   int        `json:"articles_sent"`
	AvgRelevance   float64    `json:"avg_relevance"`
	DurationMs     int64      `json:"duration_ms"`
	Errors         []RunError `json:"errors,omitempty"`
}

// Stats contains aggregate database statistics.
type Stats struct {
	Users          int
	Messages       int
	KnowledgeItems int
	SeenArticles   int
	CurationRuns   int
	LastRun        *RunRecord
}
