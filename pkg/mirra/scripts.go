package mirra

import (
	"context"
	"net/http"
)

// ScriptService manages deployable scripts.
type ScriptService struct {
	client *Client
}

// Create registers a new script.
func (s *ScriptService) Create(ctx context.Context, params CreateScriptParams) (*Script, error) {
	var out Script
	if err := s.client.request(ctx, http.MethodPost, "/scripts", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches a script by id.
func (s *ScriptService) Get(ctx context.Context, id string) (*Script, error) {
	var out Script
	if err := s.client.request(ctx, http.MethodGet, "/scripts/"+id, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns all scripts.
func (s *ScriptService) List(ctx context.Context) ([]Script, error) {
	var out []Script
	if err := s.client.request(ctx, http.MethodGet, "/scripts", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update mutates a script.
func (s *ScriptService) Update(ctx context.Context, id string, params UpdateScriptParams) (*Script, error) {
	var out Script
	if err := s.client.request(ctx, http.MethodPatch, "/scripts/"+id, params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a script.
func (s *ScriptService) Delete(ctx context.Context, id string) error {
	return s.client.request(ctx, http.MethodDelete, "/scripts/"+id, nil, nil, nil)
}

// Deploy publishes a script.
func (s *ScriptService) Deploy(ctx context.Context, id string) error {
	return s.client.request(ctx, http.MethodPost, "/scripts/"+id+"/deploy", nil, nil, nil)
}

// Invoke runs a deployed script with the given payload.
func (s *ScriptService) Invoke(ctx context.Context, id string, payload any) (*ScriptInvocationResult, error) {
	var out ScriptInvocationResult
	body := map[string]any{"payload": payload}
	if err := s.client.request(ctx, http.MethodPost, "/scripts/"+id+"/invoke", body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
