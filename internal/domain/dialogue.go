package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxHistory bounds the message history kept per conversation.
const MaxHistory = 50

// MaxFieldAttempts is how many unparseable answers reset the sub-context.
const MaxFieldAttempts = 3

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the conversation history.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// AnswerKind is the type of answer expected for a pending field.
type AnswerKind string

const (
	AnswerNone    AnswerKind = ""
	AnswerNumber  AnswerKind = "number"
	AnswerText    AnswerKind = "text"
	AnswerBoolean AnswerKind = "boolean"
)

// KindOf returns the expected answer kind for a field.
func KindOf(f Field) AnswerKind {
	switch f {
	case FieldAge, FieldDependents, FieldMonthlyIncome, FieldSavingsCapacity, FieldDesiredCapital:
		return AnswerNumber
	case FieldHasLifeInsurance:
		return AnswerBoolean
	case "":
		return AnswerNone
	}
	return AnswerText
}

// SubContext tracks "we just asked for field X". Instructions carries the
// router handoff text read verbatim by the next responder.
type SubContext struct {
	PendingField Field      `json:"pending_field,omitempty"`
	Attempts     int        `json:"attempts,omitempty"`
	ExpectedKind AnswerKind `json:"expected_kind,omitempty"`
	LastQuestion string     `json:"last_question,omitempty"`
	Instructions string     `json:"instructions,omitempty"`
}

// Await records that field f was requested. Asking the same field again
// counts as another attempt.
func (c *SubContext) Await(f Field, question string) {
	if c.PendingField == f {
		c.Attempts++
	} else {
		c.PendingField = f
		c.Attempts = 1
	}
	c.ExpectedKind = KindOf(f)
	c.LastQuestion = question
}

// Waiting reports whether a field answer is pending.
func (c SubContext) Waiting() bool {
	return c.PendingField != ""
}

// Reset clears the pending-field bookkeeping. Instructions are kept.
func (c *SubContext) Reset() {
	c.PendingField = ""
	c.Attempts = 0
	c.ExpectedKind = AnswerNone
	c.LastQuestion = ""
}

// DialogueState is the aggregate root of one conversation.
type DialogueState struct {
	UserID          string          `json:"user_id"`
	Stage           Stage           `json:"stage"`
	LastUserMessage string          `json:"last_user_message"`
	LastBotReply    string          `json:"last_bot_reply"`
	Profile         ClientProfile   `json:"profile"`
	Context         SubContext      `json:"context"`
	Recommendation  *Recommendation `json:"recommendation,omitempty"`
	Quotes          []Quote         `json:"quotes,omitempty"`
	PreviousQuotes  []Quote         `json:"previous_quotes,omitempty"`
	History         []Message       `json:"history,omitempty"`
	ActiveResponder Target          `json:"active_responder"`
	NextResponder   Target          `json:"next_responder"`
	LastIntent      Intent          `json:"last_intent"`
	Completeness    int             `json:"completeness"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewDialogueState creates an empty conversation for userID.
func NewDialogueState(userID string) *DialogueState {
	now := time.Now().UTC()
	return &DialogueState{
		UserID:        userID,
		Stage:         StageStart,
		Profile:       ClientProfile{ID: uuid.NewString()},
		NextResponder: TargetNeedsBasedSelling,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AppendMessage adds a history entry, dropping the oldest past MaxHistory.
func (s *DialogueState) AppendMessage(role, content string) {
	s.History = append(s.History, Message{Role: role, Content: content, At: time.Now().UTC()})
	if over := len(s.History) - MaxHistory; over > 0 {
		s.History = append([]Message(nil), s.History[over:]...)
	}
}

// RecentHistory returns at most the last n messages.
func (s *DialogueState) RecentHistory(n int) []Message {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// HasRecommendation reports whether needs analysis produced a product.
func (s *DialogueState) HasRecommendation() bool {
	return s.Recommendation != nil
}

// HasQuotes reports whether at least one quote exists.
func (s *DialogueState) HasQuotes() bool {
	return len(s.Quotes) > 0
}

// RecommendedQuote returns the quote flagged as recommended, or the first one.
func (s *DialogueState) RecommendedQuote() (Quote, bool) {
	for _, q := range s.Quotes {
		if q.Recommended {
			return q, true
		}
	}
	if len(s.Quotes) > 0 {
		return s.Quotes[0], true
	}
	return Quote{}, false
}

// Restart wipes the sales progress while keeping the profile identity,
// so the same phone number can start over.
func (s *DialogueState) Restart() {
	s.Stage = StageStart
	s.History = nil
	s.Quotes = nil
	s.PreviousQuotes = nil
	s.Recommendation = nil
	s.Context = SubContext{}
	s.Profile = ClientProfile{ID: s.Profile.ID, Phone: s.Profile.Phone}
	s.ActiveResponder = TargetUnknown
	s.NextResponder = TargetNeedsBasedSelling
	s.LastIntent = IntentNeutral
	s.Completeness = 0
	s.UpdatedAt = time.Now().UTC()
}

// Summary builds the row used by the conversations listing.
func (s *DialogueState) Summary() ConversationSummary {
	return ConversationSummary{
		UserID:       s.UserID,
		Name:         s.Profile.Name,
		Stage:        s.Stage,
		Completeness: s.Completeness,
		Quotes:       len(s.Quotes),
		Messages:     len(s.History),
		UpdatedAt:    s.UpdatedAt.Format(time.RFC3339),
	}
}
