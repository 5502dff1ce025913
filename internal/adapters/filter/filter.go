package filter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HACKER097/FogMachine/internal/domain"
)

// ErrIndexOutOfRange возвращается, когда модель сослалась на номер
// вне показанного ей батча. Этап падает целиком: уехавший индекс почти
// наверняка значит, что модель потеряла привязку к батчу, и чинить его
// угадыванием опаснее, чем прервать запуск.
var ErrIndexOutOfRange = errors.New("relevance index out of range")

type indicesResponse struct {
	Relevant []int `json:"relevant"`
}

// Relevant отбирает релевантные мнению элементы батча. Элементы
// рендерятся пронумерованными блоками (нумерация с единицы — так же,
// как модель ссылается на них в ответе), модель возвращает JSON
// {"relevant": [числа]}, результат — подпоследовательность входа
// с сохранением исходного порядка.
//
// Пустой батч возвращается сразу, без обращения к модели.
func Relevant[T any](ctx context.Context, inf domain.Inference, instruction, opinion, label string, items []T, render func(T) string) ([]T, error) {
	if len(items) == 0 {
		return []T{}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Opinion: %s\n", opinion)
	for i, item := range items {
		fmt.Fprintf(&b, "=== %s %d ===\n%s\n", label, i+1, render(item))
	}

	var parsed indicesResponse
	if err := inf.InferJSON(ctx, instruction, b.String(), &parsed); err != nil {
		return nil, err
	}

	chosen := make(map[int]struct{}, len(parsed.Relevant))
	for _, n := range parsed.Relevant {
		if n < 1 || n > len(items) {
			return nil, fmt.Errorf("%w: %d при размере батча %d", ErrIndexOutOfRange, n, len(items))
		}
		chosen[n-1] = struct{}{}
	}

	out := make([]T, 0, len(chosen))
	for i, item := range items {
		if _, ok := chosen[i]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}
