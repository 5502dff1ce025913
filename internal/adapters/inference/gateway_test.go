package inference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HACKER097/FogMachine/internal/domain"
	openai "github.com/HACKER097/FogMachine/internal/infra/openai"
)

type fakeChatClient struct {
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (f *fakeChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Role: "assistant", Content: f.content}}},
	}, nil
}

func TestInferJSONDecodesResponse(t *testing.T) {
	client := &fakeChatClient{content: `{"relevant": [1, 2]}`}
	gw := NewGateway(client, "test-model", time.Second)

	var out struct {
		Relevant []int `json:"relevant"`
	}
	if err := gw.InferJSON(context.Background(), "инструкция", "данные", &out); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(out.Relevant) != 2 {
		t.Fatalf("ожидали 2 индекса, получили %d", len(out.Relevant))
	}
	if client.lastReq.ResponseFormat == nil || client.lastReq.ResponseFormat.Type != openai.ResponseFormatTypeJSONObject {
		t.Fatalf("ожидали запрос формата json_object")
	}
	if client.lastReq.Model != "test-model" {
		t.Fatalf("ожидали модель test-model, получили %q", client.lastReq.Model)
	}
}

func TestInferJSONMalformed(t *testing.T) {
	client := &fakeChatClient{content: "это не JSON"}
	gw := NewGateway(client, "", 0)

	var out map[string]any
	err := gw.InferJSON(context.Background(), "инструкция", "данные", &out)
	if !errors.Is(err, domain.ErrInferenceMalformed) {
		t.Fatalf("ожидали ErrInferenceMalformed, получили %v", err)
	}
}

func TestInferTransportError(t *testing.T) {
	client := &fakeChatClient{err: errors.New("connection refused")}
	gw := NewGateway(client, "", 0)

	if _, err := gw.Infer(context.Background(), "инструкция", "данные"); !errors.Is(err, domain.ErrInferenceUnavailable) {
		t.Fatalf("ожидали ErrInferenceUnavailable, получили %v", err)
	}
}

func TestInferEmptyChoice(t *testing.T) {
	client := &fakeChatClient{content: "   "}
	gw := NewGateway(client, "", 0)

	if _, err := gw.Infer(context.Background(), "инструкция", "данные"); !errors.Is(err, domain.ErrInferenceMalformed) {
		t.Fatalf("ожидали ErrInferenceMalformed, получили %v", err)
	}
}
