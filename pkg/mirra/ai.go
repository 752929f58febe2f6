package mirra

import (
	"context"
	"net/http"
)

// AIService exposes AI chat and decision operations.
type AIService struct {
	client *Client
}

// Chat sends a chat completion request.
func (s *AIService) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := s.client.request(ctx, http.MethodPost, "/ai/chat", req, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Decide asks the AI to pick one of the supplied options.
func (s *AIService) Decide(ctx context.Context, req DecideRequest) (*DecideResponse, error) {
	var out DecideResponse
	if err := s.client.request(ctx, http.MethodPost, "/ai/decide", req, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BatchChat processes multiple chat requests in one call.
func (s *AIService) BatchChat(ctx context.Context, req BatchChatRequest) ([]ChatResponse, error) {
	var out []ChatResponse
	if err := s.client.request(ctx, http.MethodPost, "/ai/batchChat", req, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
