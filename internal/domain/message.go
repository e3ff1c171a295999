// Package domain holds the request/response contracts shared by the api, hub
// and chat packages.
package domain

import (
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// DeliveryStatus tracks optimistic user messages on the client only.
// Messages fetched from the server carry the zero value.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Message is a single turn in a conversation.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"createdAtUtc"`
	Status    DeliveryStatus `json:"-"`
}

// Local id prefixes. Server-issued ids never carry them.
const (
	LocalUserIDPrefix      = "tmp_"
	LocalAssistantIDPrefix = "srv_"
)

// IsLocal reports whether the message id was synthesized on the client.
func (m Message) IsLocal() bool {
	return strings.HasPrefix(m.ID, LocalUserIDPrefix) || strings.HasPrefix(m.ID, LocalAssistantIDPrefix)
}
