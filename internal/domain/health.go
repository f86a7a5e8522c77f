package domain

// ============================================================
// Health & operational API responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	Detail      string `json:"detail,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// WebhookStatus is returned by GET /webhook/status.
type WebhookStatus struct {
	Status              string `json:"status"`
	ActiveConversations int    `json:"active_conversations"`
	Timestamp           string `json:"timestamp"`
}

// ConversationSummary is one row of GET /webhook/conversations.
type ConversationSummary struct {
	UserID       string `json:"user_id"`
	Name         string `json:"name,omitempty"`
	Stage        Stage  `json:"stage"`
	Completeness int    `json:"completeness"`
	Quotes       int    `json:"quotes"`
	Messages     int    `json:"messages"`
	UpdatedAt    string `json:"updated_at"`
}

// TurnMetrics is a point-in-time snapshot of conversation metrics,
// exposed under the admin API.
type TurnMetrics struct {
	TotalTurns      int64            `json:"totalTurns"`
	TurnsByTarget   map[string]int64 `json:"turnsByTarget"`
	LLMFallbacks    int64            `json:"llmFallbacks"`
	QuotesGenerated int64            `json:"quotesGenerated"`
	CacheHitRate    float64          `json:"cacheHitRate"`
}
