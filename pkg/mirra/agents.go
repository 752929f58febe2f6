package mirra

import (
	"context"
	"net/http"
)

// AgentService manages hosted agents.
type AgentService struct {
	client *Client
}

// Create registers a new agent.
func (s *AgentService) Create(ctx context.Context, params CreateAgentParams) (*Agent, error) {
	var out Agent
	if err := s.client.request(ctx, http.MethodPost, "/agents", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches an agent by id.
func (s *AgentService) Get(ctx context.Context, id string) (*Agent, error) {
	var out Agent
	if err := s.client.request(ctx, http.MethodGet, "/agents/"+id, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns all agents.
func (s *AgentService) List(ctx context.Context) ([]Agent, error) {
	var out []Agent
	if err := s.client.request(ctx, http.MethodGet, "/agents", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update mutates an agent.
func (s *AgentService) Update(ctx context.Context, id string, params UpdateAgentParams) (*Agent, error) {
	var out Agent
	if err := s.client.request(ctx, http.MethodPatch, "/agents/"+id, params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes an agent.
func (s *AgentService) Delete(ctx context.Context, id string) error {
	return s.client.request(ctx, http.MethodDelete, "/agents/"+id, nil, nil, nil)
}
