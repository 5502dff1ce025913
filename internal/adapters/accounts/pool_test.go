package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/HACKER097/FogMachine/internal/domain"
)

type stubFactory struct{}

func (stubFactory) NewClient(cred domain.WorkerCredential) domain.PlatformClient { return nil }

type stubCreds struct {
	list []domain.WorkerCredential
}

func (s *stubCreds) ListWorkerCredentials(context.Context) ([]domain.WorkerCredential, error) {
	return s.list, nil
}

func (s *stubCreds) UpsertWorkerCredential(context.Context, domain.WorkerCredential) error {
	return nil
}

func TestSelectReturnsPoolMember(t *testing.T) {
	pool := NewPool([]domain.Account{
		{OwnerUserID: 1, Username: "alpha"},
		{OwnerUserID: 2, Username: "beta"},
		{OwnerUserID: 3, Username: "gamma"},
	}, nil)

	members := map[string]struct{}{"alpha": {}, "beta": {}, "gamma": {}}
	for i := 0; i < 100; i++ {
		acct, err := pool.Select()
		if err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
		if _, ok := members[acct.Username]; !ok {
			t.Fatalf("выбран аккаунт вне пула: %s", acct.Username)
		}
	}
}

func TestSelectEmptyPool(t *testing.T) {
	pool := NewPool(nil, nil)
	_, err := pool.Select()
	if !errors.Is(err, domain.ErrNoAccounts) {
		t.Fatalf("ожидали ErrNoAccounts, получили %v", err)
	}
}

func TestBuildPoolDeduplicatesByUsername(t *testing.T) {
	creds := &stubCreds{list: []domain.WorkerCredential{
		{OwnerUserID: 1, Username: "alpha"},
		{OwnerUserID: 2, Username: "alpha"},
		{OwnerUserID: 3, Username: "beta"},
	}}
	pool, err := BuildPool(context.Background(), creds, stubFactory{}, nil)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if pool.Size() != 2 {
		t.Fatalf("ожидали 2 аккаунта, получили %d", pool.Size())
	}
}

type fixedStrategy struct{ idx int }

func (f fixedStrategy) Next(int) int { return f.idx }

func TestSelectHonorsStrategy(t *testing.T) {
	pool := NewPool([]domain.Account{
		{Username: "alpha"},
		{Username: "beta"},
	}, fixedStrategy{idx: 1})
	acct, err := pool.Select()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if acct.Username != "beta" {
		t.Fatalf("ожидали beta, получили %s", acct.Username)
	}
}
