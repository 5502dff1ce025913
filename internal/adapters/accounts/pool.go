package accounts

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/HACKER097/FogMachine/internal/domain"
)

// Strategy выбирает индекс аккаунта для очередной операции.
// Точка расширения для взвешенного выбора или кулдаунов по аккаунтам.
type Strategy interface {
	Next(size int) int
}

// RandomStrategy выбирает аккаунт равномерно случайно. Случайная ротация
// размазывает объём публикаций по аккаунтам и снижает шанс платформенного
// троттлинга отдельного аккаунта.
type RandomStrategy struct{}

// Next возвращает случайный индекс в [0, size).
func (RandomStrategy) Next(size int) int {
	return rand.IntN(size)
}

// Pool хранит аккаунты одного запуска кампании. Состав не меняется
// после создания; выбор конкурентно безопасен.
type Pool struct {
	mu       sync.Mutex
	accounts []domain.Account
	strategy Strategy
}

// NewPool создаёт пул. При nil-стратегии используется случайная ротация.
func NewPool(accounts []domain.Account, strategy Strategy) *Pool {
	if strategy == nil {
		strategy = RandomStrategy{}
	}
	return &Pool{accounts: accounts, strategy: strategy}
}

var _ domain.AccountPool = (*Pool)(nil)

// BuildPool собирает пул из учётных данных воркеров, создавая клиента
// платформы на каждый аккаунт. Пул пересобирается на каждый запуск,
// чтобы подхватывать новых воркеров.
func BuildPool(ctx context.Context, creds domain.CredentialRepo, factory domain.PlatformClientFactory, strategy Strategy) (*Pool, error) {
	list, err := creds.ListWorkerCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("загрузка учётных данных воркеров: %w", err)
	}
	accounts := make([]domain.Account, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, cred := range list {
		if _, ok := seen[cred.Username]; ok {
			continue
		}
		seen[cred.Username] = struct{}{}
		accounts = append(accounts, domain.Account{
			OwnerUserID: cred.OwnerUserID,
			Username:    cred.Username,
			Client:      factory.NewClient(cred),
		})
	}
	return NewPool(accounts, strategy), nil
}

// Select возвращает аккаунт для следующей операции.
// Для пустого пула — domain.ErrNoAccounts.
func (p *Pool) Select() (domain.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.accounts) == 0 {
		return domain.Account{}, domain.ErrNoAccounts
	}
	idx := p.strategy.Next(len(p.accounts))
	if idx < 0 || idx >= len(p.accounts) {
		return domain.Account{}, fmt.Errorf("стратегия вернула индекс %d вне пула размера %d", idx, len(p.accounts))
	}
	return p.accounts[idx], nil
}

// Size возвращает размер пула.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.accounts)
}
