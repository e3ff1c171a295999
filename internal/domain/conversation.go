package domain

import "time"

// ConversationListItem is a row of the assistant conversation list.
type ConversationListItem struct {
	ID        string    `json:"id"`
	ChildID   string    `json:"childId"`
	Title     string    `json:"title"`
	TurnCount int       `json:"turnCount"`
	UpdatedAt time.Time `json:"updatedAtUtc"`
}

// CreateConversationRequest creates a conversation for a child, or returns
// the existing one.
type CreateConversationRequest struct {
	ChildID string  `json:"childId"`
	Title   *string `json:"title,omitempty"`
}

// ConversationRef is the create-or-get response.
type ConversationRef struct {
	ID string `json:"id"`
}

// PatchConversationRequest updates conversation metadata. Nil fields are left alone.
type PatchConversationRequest struct {
	Title    *string `json:"title,omitempty"`
	Archived *bool   `json:"archived,omitempty"`
}

// SendMessageRequest enqueues a user message for the assistant.
type SendMessageRequest struct {
	Message string `json:"message"`
}
