package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/soyeahso/zeyn/internal/domain"
)

const childrenPath = "/api/parent/children"

func (c *Client) ListChildren(ctx context.Context) ([]domain.Child, error) {
	var out []domain.Child
	if err := c.do(ctx, http.MethodGet, childrenPath, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetChild(ctx context.Context, id string) (*domain.Child, error) {
	var out domain.Child
	if err := c.do(ctx, http.MethodGet, childrenPath+"/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateChild(ctx context.Context, child domain.Child) (*domain.Child, error) {
	var out domain.Child
	if err := c.do(ctx, http.MethodPost, childrenPath, nil, child, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateChild replaces the child record (PUT semantics).
func (c *Client) UpdateChild(ctx context.Context, id string, child domain.Child) (*domain.Child, error) {
	var out domain.Child
	if err := c.do(ctx, http.MethodPut, childrenPath+"/"+url.PathEscape(id), nil, child, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteChild(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, childrenPath+"/"+url.PathEscape(id), nil, nil, nil)
}
