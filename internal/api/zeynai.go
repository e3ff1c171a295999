package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/soyeahso/zeyn/internal/domain"
)

// DefaultPageSize is the history page size used when take is not positive.
const DefaultPageSize = 50

func (c *Client) conversationsPath() string {
	return "/api/" + c.namespace + "/conversations"
}

func (c *Client) conversationPath(id string) string {
	return c.conversationsPath() + "/" + url.PathEscape(id)
}

// ListConversations returns the caller's assistant conversations.
func (c *Client) ListConversations(ctx context.Context) ([]domain.ConversationListItem, error) {
	var items []domain.ConversationListItem
	if err := c.do(ctx, http.MethodGet, c.conversationsPath(), nil, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateOrGetConversation returns the conversation id for the child, creating it if needed.
func (c *Client) CreateOrGetConversation(ctx context.Context, childID string, title *string) (string, error) {
	var ref domain.ConversationRef
	req := domain.CreateConversationRequest{ChildID: childID, Title: title}
	if err := c.do(ctx, http.MethodPost, c.conversationsPath(), nil, req, &ref); err != nil {
		return "", err
	}
	return ref.ID, nil
}

// GetMessages fetches one page of history. The server orders the page.
func (c *Client) GetMessages(ctx context.Context, conversationID string, skip, take int) ([]domain.Message, error) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = DefaultPageSize
	}
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("take", strconv.Itoa(take))

	var msgs []domain.Message
	if err := c.do(ctx, http.MethodGet, c.conversationPath(conversationID)+"/messages", q, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage enqueues a user message. The reply streams over the hub.
func (c *Client) SendMessage(ctx context.Context, conversationID, message string) error {
	return c.do(ctx, http.MethodPost, c.conversationPath(conversationID)+"/send", nil,
		domain.SendMessageRequest{Message: message}, nil)
}

// PatchConversation updates title and/or archived flag.
func (c *Client) PatchConversation(ctx context.Context, conversationID string, patch domain.PatchConversationRequest) error {
	return c.do(ctx, http.MethodPatch, c.conversationPath(conversationID), nil, patch, nil)
}
