package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/HACKER097/FogMachine/internal/domain"
)

func TestTransferExactBalance(t *testing.T) {
	m := NewMemory()
	m.SetBalance(1, 50)
	m.SetBalance(2, 0)

	if err := m.Transfer(context.Background(), 1, 2, 50); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	sender, _ := m.Balance(context.Background(), 1)
	receiver, _ := m.Balance(context.Background(), 2)
	if sender != 0 {
		t.Fatalf("ожидали нулевой баланс отправителя, получили %d", sender)
	}
	if receiver != 50 {
		t.Fatalf("ожидали 50 у получателя, получили %d", receiver)
	}
}

func TestTransferInsufficientLeavesBalancesIntact(t *testing.T) {
	m := NewMemory()
	m.SetBalance(1, 10)
	m.SetBalance(2, 5)

	err := m.Transfer(context.Background(), 1, 2, 25)
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("ожидали ErrInsufficientCredits, получили %v", err)
	}

	sender, _ := m.Balance(context.Background(), 1)
	receiver, _ := m.Balance(context.Background(), 2)
	if sender != 10 || receiver != 5 {
		t.Fatalf("балансы не должны меняться при отказе: %d, %d", sender, receiver)
	}
}

func TestTransferConservesTotal(t *testing.T) {
	m := NewMemory()
	m.SetBalance(1, 100)
	m.SetBalance(2, 40)

	for i := 0; i < 7; i++ {
		if err := m.Transfer(context.Background(), 1, 2, 10); err != nil {
			t.Fatalf("перевод %d: %v", i, err)
		}
	}

	sender, _ := m.Balance(context.Background(), 1)
	receiver, _ := m.Balance(context.Background(), 2)
	if sender+receiver != 140 {
		t.Fatalf("сумма кредитов должна сохраняться, получили %d", sender+receiver)
	}
}

func TestTransferUnknownAccount(t *testing.T) {
	m := NewMemory()
	m.SetBalance(1, 100)

	err := m.Transfer(context.Background(), 1, 99, 10)
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("ожидали ErrAccountNotFound, получили %v", err)
	}
}
