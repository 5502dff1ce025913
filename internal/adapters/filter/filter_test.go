package filter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/HACKER097/FogMachine/internal/domain"
)

type stubInference struct {
	jsonResponse string
	calls        int
}

func (s *stubInference) Infer(ctx context.Context, instruction, payload string) (string, error) {
	s.calls++
	return s.jsonResponse, nil
}

func (s *stubInference) InferJSON(ctx context.Context, instruction, payload string, out any) error {
	s.calls++
	return json.Unmarshal([]byte(s.jsonResponse), out)
}

func TestRelevantProjectsSubsequence(t *testing.T) {
	inf := &stubInference{jsonResponse: `{"relevant": [3, 1]}`}
	items := []string{"alpha", "beta", "gamma"}
	got, err := Relevant(context.Background(), inf, "instruction", "мнение", "Item", items, func(s string) string { return s })
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ожидали 2 элемента, получили %d", len(got))
	}
	// порядок входа сохраняется независимо от порядка индексов в ответе
	if got[0] != "alpha" || got[1] != "gamma" {
		t.Fatalf("ожидали [alpha gamma], получили %v", got)
	}
}

func TestRelevantEmptyBatchSkipsInference(t *testing.T) {
	inf := &stubInference{jsonResponse: `{"relevant": [1]}`}
	got, err := Relevant(context.Background(), inf, "instruction", "мнение", "Item", []string{}, func(s string) string { return s })
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ожидали пустой результат")
	}
	if inf.calls != 0 {
		t.Fatalf("ожидали ноль обращений к модели, было %d", inf.calls)
	}
}

func TestRelevantIndexOutOfRange(t *testing.T) {
	inf := &stubInference{jsonResponse: `{"relevant": [7]}`}
	items := []string{"alpha", "beta", "gamma"}
	_, err := Relevant(context.Background(), inf, "instruction", "мнение", "Item", items, func(s string) string { return s })
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("ожидали ErrIndexOutOfRange, получили %v", err)
	}
}

func TestRelevantDeduplicatesIndices(t *testing.T) {
	inf := &stubInference{jsonResponse: `{"relevant": [2, 2, 2]}`}
	items := []string{"alpha", "beta"}
	got, err := Relevant(context.Background(), inf, "instruction", "мнение", "Item", items, func(s string) string { return s })
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 1 || got[0] != "beta" {
		t.Fatalf("ожидали [beta], получили %v", got)
	}
}

var _ domain.Inference = (*stubInference)(nil)
