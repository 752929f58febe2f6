package mirra

import (
	"context"
	"net/http"
)

// TemplateService exposes installable templates.
type TemplateService struct {
	client *Client
}

// List returns the available templates.
func (s *TemplateService) List(ctx context.Context) ([]Template, error) {
	var out []Template
	if err := s.client.request(ctx, http.MethodGet, "/templates", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches a template by id.
func (s *TemplateService) Get(ctx context.Context, id string) (*Template, error) {
	var out Template
	if err := s.client.request(ctx, http.MethodGet, "/templates/"+id, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Install installs a template into the caller's workspace.
func (s *TemplateService) Install(ctx context.Context, id string) error {
	return s.client.request(ctx, http.MethodPost, "/templates/"+id+"/install", nil, nil, nil)
}
