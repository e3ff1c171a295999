package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/soyeahso/zeyn/internal/domain"
	"github.com/soyeahso/zeyn/internal/logging"
)

// ConversationAPI is the REST surface of the conversation list.
type ConversationAPI interface {
	ListConversations(ctx context.Context) ([]domain.ConversationListItem, error)
	CreateOrGetConversation(ctx context.Context, childID string, title *string) (string, error)
}

// Conversations caches the caller's conversation list.
type Conversations struct {
	api ConversationAPI
	log *logging.Logger

	mu      sync.Mutex
	items   []domain.ConversationListItem
	loading bool
	err     error
}

func NewConversations(api ConversationAPI, log *logging.Logger) *Conversations {
	if log == nil {
		log = logging.Nop()
	}
	return &Conversations{api: api, log: log}
}

// Refresh reloads the list. On failure the previous items are kept and the
// error is both returned and remembered for Err.
func (c *Conversations) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	items, err := c.api.ListConversations(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.err = fmt.Errorf("listing conversations: %w", err)
		c.log.Warn().Err(err).Msg("conversation list refresh failed")
		return c.err
	}
	c.items = items
	c.err = nil
	return nil
}

// Items returns a copy of the last loaded list.
func (c *Conversations) Items() []domain.ConversationListItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ConversationListItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Conversations) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err is the error of the most recent Refresh, nil after a success.
func (c *Conversations) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Ensure returns the id of the child's conversation, creating it when the
// child has none. A blank title is not sent.
func (c *Conversations) Ensure(ctx context.Context, childID, title string) (string, error) {
	if strings.TrimSpace(childID) == "" {
		return "", fmt.Errorf("chat: child id is required")
	}
	var t *string
	if title = strings.TrimSpace(title); title != "" {
		t = &title
	}
	id, err := c.api.CreateOrGetConversation(ctx, childID, t)
	if err != nil {
		return "", fmt.Errorf("creating conversation for child %s: %w", childID, err)
	}
	return id, nil
}
