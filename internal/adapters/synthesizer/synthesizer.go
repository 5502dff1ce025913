package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HACKER097/FogMachine/internal/domain"
)

// ErrReplyCountMismatch возвращается, когда модель вернула не столько
// ответов, сколько комментариев было в батче. Позиционное соответствие
// в этом случае доверять нельзя, молча обрезать или дополнять — тоже.
var ErrReplyCountMismatch = errors.New("reply count mismatch")

type repliesResponse struct {
	Replies []string `json:"replies"`
}

// Replies генерирует по одному ответу на каждый комментарий батча.
// Результат выровнен позиционно со входом: i-й текст отвечает i-му
// комментарию.
func Replies(ctx context.Context, inf domain.Inference, instruction, opinion string, comments []domain.Comment) ([]string, error) {
	if len(comments) == 0 {
		return []string{}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Opinion: %s\n", opinion)
	for i, comment := range comments {
		fmt.Fprintf(&b, "=== Comment %d ===\n%s\n", i+1, comment.Body)
	}

	var parsed repliesResponse
	if err := inf.InferJSON(ctx, instruction, b.String(), &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Replies) != len(comments) {
		return nil, fmt.Errorf("%w: %d ответов на %d комментариев", ErrReplyCountMismatch, len(parsed.Replies), len(comments))
	}
	return parsed.Replies, nil
}
