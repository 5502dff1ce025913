package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/HACKER097/FogMachine/internal/domain"
)

// Memory реализует леджер в памяти. Используется в dev-режиме и тестах;
// семантика переводов совпадает с Postgres-реализацией.
type Memory struct {
	mu       sync.Mutex
	balances map[int64]int64
}

// NewMemory создаёт пустой леджер.
func NewMemory() *Memory {
	return &Memory{balances: make(map[int64]int64)}
}

var _ domain.Ledger = (*Memory)(nil)

// SetBalance задаёт баланс пользователя, создавая счёт при необходимости.
func (m *Memory) SetBalance(userID, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = balance
}

// Balance возвращает баланс пользователя.
func (m *Memory) Balance(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[userID]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	return balance, nil
}

// Transfer атомарно переводит кредиты. При недостатке средств
// не меняется ни один баланс.
func (m *Memory) Transfer(ctx context.Context, senderUserID, receiverUserID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("сумма перевода должна быть положительной, получили %d", amount)
	}
	if senderUserID == receiverUserID {
		return fmt.Errorf("перевод самому себе не поддерживается")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sender, ok := m.balances[senderUserID]
	if !ok {
		return fmt.Errorf("%w: пользователь %d", domain.ErrAccountNotFound, senderUserID)
	}
	if _, ok := m.balances[receiverUserID]; !ok {
		return fmt.Errorf("%w: пользователь %d", domain.ErrAccountNotFound, receiverUserID)
	}
	if sender < amount {
		return fmt.Errorf("%w: баланс %d, требуется %d", domain.ErrInsufficientCredits, sender, amount)
	}
	m.balances[senderUserID] -= amount
	m.balances[receiverUserID] += amount
	return nil
}
