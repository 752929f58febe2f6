package mirra

import (
	"context"
	"net/http"
)

// MessageService sends and edits group messages.
type MessageService struct {
	client *Client
}

// Send posts a new message to a group.
func (s *MessageService) Send(ctx context.Context, params SendMessageParams) (*Message, error) {
	var out Message
	if err := s.client.request(ctx, http.MethodPost, "/messages", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update edits an existing message in place.
func (s *MessageService) Update(ctx context.Context, id string, params UpdateMessageParams) (*Message, error) {
	var out Message
	if err := s.client.request(ctx, http.MethodPatch, "/messages/"+id, params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
