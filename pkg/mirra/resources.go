package mirra

import (
	"context"
	"encoding/json"
	"net/http"
)

// ResourceService exposes external integrations.
type ResourceService struct {
	client *Client
}

// Call invokes a method on a resource and returns the raw result.
func (s *ResourceService) Call(ctx context.Context, params CallResourceParams) (json.RawMessage, error) {
	var out json.RawMessage
	if err := s.client.request(ctx, http.MethodPost, "/resources/call", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns the available resources.
func (s *ResourceService) List(ctx context.Context) ([]Resource, error) {
	var out []Resource
	if err := s.client.request(ctx, http.MethodGet, "/resources", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches a resource by id.
func (s *ResourceService) Get(ctx context.Context, id string) (*Resource, error) {
	var out Resource
	if err := s.client.request(ctx, http.MethodGet, "/resources/"+id, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
