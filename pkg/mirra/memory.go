package mirra

import (
	"context"
	"net/http"
)

// MemoryService exposes knowledge-base operations.
type MemoryService struct {
	client *Client
}

// Create stores a new memory entity and returns its id.
func (s *MemoryService) Create(ctx context.Context, entity MemoryEntity) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := s.client.request(ctx, http.MethodPost, "/memory", entity, nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Search ranks memories by semantic similarity to the query.
func (s *MemoryService) Search(ctx context.Context, query MemorySearchQuery) ([]MemorySearchResult, error) {
	var out []MemorySearchResult
	if err := s.client.request(ctx, http.MethodPost, "/memory/search", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Query filters memories without similarity ranking.
func (s *MemoryService) Query(ctx context.Context, params MemoryQueryParams) ([]MemoryEntity, error) {
	var out []MemoryEntity
	if err := s.client.request(ctx, http.MethodPost, "/memory/query", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindOne fetches a single memory by id. Returns nil when it does not exist.
func (s *MemoryService) FindOne(ctx context.Context, id string) (*MemoryEntity, error) {
	var out *MemoryEntity
	body := map[string]string{"id": id}
	if err := s.client.request(ctx, http.MethodPost, "/memory/findOne", body, nil, &out); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// Update mutates an existing memory entity.
func (s *MemoryService) Update(ctx context.Context, id string, updates MemoryUpdateParams) error {
	body := struct {
		ID string `json:"id"`
		MemoryUpdateParams
	}{ID: id, MemoryUpdateParams: updates}
	return s.client.request(ctx, http.MethodPost, "/memory/update", body, nil, nil)
}

// Delete removes a memory entity.
func (s *MemoryService) Delete(ctx context.Context, id string) error {
	body := map[string]string{"id": id}
	return s.client.request(ctx, http.MethodPost, "/memory/delete", body, nil, nil)
}
