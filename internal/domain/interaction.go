package domain

import (
	"time"
)

// ConversationRecord is one persisted prompt/response exchange.
type ConversationRecord struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	Prompt         string    `json:"prompt" db:"prompt"`
	Response       string    `json:"response" db:"response"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Sentiment is a thumbs rating.
type Sentiment int

const (
	SentimentNegative Sentiment = 0
	SentimentPositive Sentiment = 1
)

// Valid reports whether s is a thumbs-down or thumbs-up value.
func (s Sentiment) Valid() bool {
	return s == SentimentNegative || s == SentimentPositive
}

// Feedback is a slot opened after each successful generation. It is
// completed once the user supplies a rating and a mandatory explanation.
type Feedback struct {
	ID             string     `json:"id" db:"id"`
	ConversationID string     `json:"conversation_id" db:"conversation_id"`
	UseCase        string     `json:"use_case" db:"use_case"`
	ModelID        string     `json:"model_id" db:"model_id"`
	Response       string     `json:"response" db:"response"`
	Sentiment      *Sentiment `json:"sentiment,omitempty" db:"sentiment"`
	Explanation    string     `json:"explanation,omitempty" db:"explanation"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	RatedAt        *time.Time `json:"rated_at,omitempty" db:"rated_at"`
}

// Interaction is one transcript entry: a labelled piece of generated output.
type Interaction struct {
	Type    string `json:"type"`
	Details string `json:"details"`
}

// SessionRecord is the persisted header of a working session.
type SessionRecord struct {
	ConversationID string     `json:"conversation_id" db:"conversation_id"`
	UserName       string     `json:"user_name,omitempty" db:"user_name"`
	UserEmail      string     `json:"user_email,omitempty" db:"user_email"`
	BundleURL      string     `json:"bundle_url,omitempty" db:"bundle_url"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}
