package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HACKER097/FogMachine/internal/domain"
	"github.com/HACKER097/FogMachine/internal/infra/metrics"
)

// Postgres реализует кредитный леджер поверх pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres создаёт леджер.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var _ domain.Ledger = (*Postgres)(nil)

// EnsureAccount создаёт кредитный счёт пользователя, если его ещё нет.
func (p *Postgres) EnsureAccount(ctx context.Context, userID int64, startingBalance int64) (domain.CreditAccount, error) {
	var acc domain.CreditAccount
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO credit_accounts (user_id, balance)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
RETURNING user_id, balance, created_at, updated_at
`, userID, startingBalance).Scan(&acc.UserID, &acc.Balance, &acc.CreatedAt, &acc.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "credit_accounts_ensure", "credit_accounts", start, err)
	if err != nil {
		return domain.CreditAccount{}, err
	}
	return acc, nil
}

// Balance возвращает баланс пользователя.
func (p *Postgres) Balance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT balance FROM credit_accounts WHERE user_id = $1
`, userID).Scan(&balance)
	metrics.ObserveNetworkRequest("postgres", "credit_accounts_balance", "credit_accounts", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrAccountNotFound
		}
		return 0, err
	}
	return balance, nil
}

// Transfer атомарно переводит кредиты между пользователями. Оба счёта
// блокируются FOR UPDATE в порядке возрастания id, чтобы конкурентные
// переводы не взаимоблокировались. При недостатке средств не меняется
// ни один баланс.
func (p *Postgres) Transfer(ctx context.Context, senderUserID, receiverUserID, amount int64) error {
	err := p.transfer(ctx, senderUserID, receiverUserID, amount)
	metrics.IncCreditTransfer(err)
	return err
}

func (p *Postgres) transfer(ctx context.Context, senderUserID, receiverUserID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("сумма перевода должна быть положительной, получили %d", amount)
	}
	if senderUserID == receiverUserID {
		return fmt.Errorf("перевод самому себе не поддерживается")
	}

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "credit_accounts", start, err)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	first, second := senderUserID, receiverUserID
	if second < first {
		first, second = second, first
	}
	balances := make(map[int64]int64, 2)
	for _, id := range []int64{first, second} {
		var balance int64
		lockStart := time.Now()
		err = tx.QueryRow(ctx, `
SELECT balance FROM credit_accounts WHERE user_id = $1 FOR UPDATE
`, id).Scan(&balance)
		metrics.ObserveNetworkRequest("postgres", "credit_accounts_lock", "credit_accounts", lockStart, err)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				err = fmt.Errorf("%w: пользователь %d", domain.ErrAccountNotFound, id)
			}
			return err
		}
		balances[id] = balance
	}

	if balances[senderUserID] < amount {
		err = fmt.Errorf("%w: баланс %d, требуется %d", domain.ErrInsufficientCredits, balances[senderUserID], amount)
		return err
	}

	updStart := time.Now()
	_, err = tx.Exec(ctx, `
UPDATE credit_accounts SET balance = balance - $1, updated_at = now() WHERE user_id = $2
`, amount, senderUserID)
	metrics.ObserveNetworkRequest("postgres", "credit_accounts_debit", "credit_accounts", updStart, err)
	if err != nil {
		return err
	}
	updStart = time.Now()
	_, err = tx.Exec(ctx, `
UPDATE credit_accounts SET balance = balance + $1, updated_at = now() WHERE user_id = $2
`, amount, receiverUserID)
	metrics.ObserveNetworkRequest("postgres", "credit_accounts_credit", "credit_accounts", updStart, err)
	if err != nil {
		return err
	}

	insStart := time.Now()
	_, err = tx.Exec(ctx, `
INSERT INTO credit_transfers (id, sender_id, receiver_id, amount)
VALUES ($1, $2, $3, $4)
`, uuid.NewString(), senderUserID, receiverUserID, amount)
	metrics.ObserveNetworkRequest("postgres", "credit_transfers_insert", "credit_transfers", insStart, err)
	if err != nil {
		return err
	}

	commitStart := time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "credit_accounts", commitStart, err)
	return err
}
