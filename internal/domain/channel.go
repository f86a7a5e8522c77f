package domain

import "time"

// ============================================================
// Channel types: inbound WhatsApp messages and delivery results
// ============================================================

// InboundMessage is a parsed message from the messaging platform webhook.
type InboundMessage struct {
	From        string    `json:"from"`
	To          string    `json:"to"`
	Type        string    `json:"type"`
	Content     string    `json:"content"`
	ID          string    `json:"id"`
	ContactName string    `json:"contact_name,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// SendResult reports a delivery attempt. Failures are data, not errors,
// so the caller can log them and move on.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Parts     int    `json:"parts,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TurnResult is what one processed message produces.
type TurnResult struct {
	UserID       string  `json:"user_id"`
	Reply        string  `json:"reply"`
	Stage        Stage   `json:"stage"`
	Target       Target  `json:"target"`
	Intent       Intent  `json:"intent"`
	Completeness int     `json:"completeness"`
	Quotes       []Quote `json:"quotes,omitempty"`
	Command      string  `json:"command,omitempty"`
	Fallback     bool    `json:"fallback"`
}

// ChatRequest is the body of POST /v1/chat/{userId}.
type ChatRequest struct {
	Message     string `json:"message"`
	ContactName string `json:"contact_name,omitempty"`
}

// TokenRequest is the body of POST /v1/admin/token.
type TokenRequest struct {
	Password string `json:"password"`
}

// TokenResponse carries an admin access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// TurnEvent is published after each processed turn.
type TurnEvent struct {
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	ProfileID    string    `json:"profile_id"`
	Stage        Stage     `json:"stage"`
	Target       Target    `json:"target"`
	Intent       Intent    `json:"intent"`
	Completeness int       `json:"completeness"`
	QuoteCount   int       `json:"quote_count"`
	Fallback     bool      `json:"fallback"`
	At           time.Time `json:"at"`
}

// QuotesEvent is published when a quoting pass produced offers.
type QuotesEvent struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	ProfileID string    `json:"profile_id"`
	Quotes    []Quote   `json:"quotes"`
	Adjusted  bool      `json:"adjusted"`
	At        time.Time `json:"at"`
}
