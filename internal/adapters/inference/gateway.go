package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/HACKER097/FogMachine/internal/domain"
	openai "github.com/HACKER097/FogMachine/internal/infra/openai"
)

type chatCompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Gateway реализует domain.Inference поверх Chat Completions.
// Без ретраев и кэширования: у разных этапов разная терпимость к сбоям,
// политика повторов остаётся вызывающему.
type Gateway struct {
	client  chatCompletionClient
	model   string
	timeout time.Duration
}

// NewGateway создаёт шлюз инференса.
func NewGateway(client chatCompletionClient, model string, timeout time.Duration) *Gateway {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Gateway{client: client, model: model, timeout: timeout}
}

var _ domain.Inference = (*Gateway)(nil)

// Infer выполняет один вызов модели и возвращает сырой текст.
func (g *Gateway) Infer(ctx context.Context, instruction, payload string) (string, error) {
	content, err := g.complete(ctx, instruction, payload, nil)
	if err != nil {
		return "", err
	}
	return content, nil
}

// InferJSON требует структурированный JSON-ответ и декодирует его в out.
func (g *Gateway) InferJSON(ctx context.Context, instruction, payload string, out any) error {
	format := &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject}
	content, err := g.complete(ctx, instruction, payload, format)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("%w: распаковка ответа модели: %v", domain.ErrInferenceMalformed, err)
	}
	return nil
}

func (g *Gateway) complete(ctx context.Context, instruction, payload string, format *openai.ChatCompletionResponseFormat) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: instruction},
			{Role: openai.RoleUser, Content: payload},
		},
		ResponseFormat: format,
	}
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInferenceUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: пустой ответ модели", domain.ErrInferenceMalformed)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: пустой ответ модели", domain.ErrInferenceMalformed)
	}
	return content, nil
}
