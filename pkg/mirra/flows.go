package mirra

import (
	"context"
	"net/http"
)

// FlowService manages server-side routing automations.
type FlowService struct {
	client *Client
}

// Create registers a new flow.
func (s *FlowService) Create(ctx context.Context, params CreateFlowParams) (*Flow, error) {
	var out Flow
	if err := s.client.request(ctx, http.MethodPost, "/flows", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches a flow by id.
func (s *FlowService) Get(ctx context.Context, id string) (*Flow, error) {
	var out Flow
	if err := s.client.request(ctx, http.MethodGet, "/flows/"+id, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns all flows.
func (s *FlowService) List(ctx context.Context) ([]Flow, error) {
	var out []Flow
	if err := s.client.request(ctx, http.MethodGet, "/flows", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a flow.
func (s *FlowService) Delete(ctx context.Context, id string) error {
	return s.client.request(ctx, http.MethodDelete, "/flows/"+id, nil, nil, nil)
}
