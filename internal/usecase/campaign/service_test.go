package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/HACKER097/FogMachine/internal/adapters/ledger"
	"github.com/HACKER097/FogMachine/internal/domain"
)

type scriptedInference struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (s *scriptedInference) Infer(context.Context, string, string) (string, error) {
	return "", errors.New("не ожидали вызов Infer")
}

func (s *scriptedInference) InferJSON(_ context.Context, _, _ string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.responses) {
		return errors.New("неожиданный вызов модели")
	}
	raw := s.responses[s.calls]
	s.calls++
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInferenceMalformed, err)
	}
	return nil
}

func (s *scriptedInference) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubCreds struct {
	creds []domain.WorkerCredential
}

func (s *stubCreds) ListWorkerCredentials(context.Context) ([]domain.WorkerCredential, error) {
	return s.creds, nil
}

func (s *stubCreds) UpsertWorkerCredential(context.Context, domain.WorkerCredential) error {
	return nil
}

type stubCampaigns struct {
	mu       sync.Mutex
	created  []domain.Campaign
	statuses []domain.CampaignStatus
	records  []domain.ReplyRecord
}

func (s *stubCampaigns) CreateCampaign(_ context.Context, c domain.Campaign) (domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, c)
	return c, nil
}

func (s *stubCampaigns) GetCampaign(context.Context, string) (domain.Campaign, error) {
	return domain.Campaign{}, domain.ErrCampaignNotFound
}

func (s *stubCampaigns) UpdateCampaignStatus(_ context.Context, _ string, status domain.CampaignStatus, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *stubCampaigns) SaveReplyRecords(_ context.Context, _ string, records []domain.ReplyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *stubCampaigns) lastStatus() domain.CampaignStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return ""
	}
	return s.statuses[len(s.statuses)-1]
}

type stubPlatform struct {
	mu       sync.Mutex
	posts    map[string][]domain.Post
	comments map[string][]domain.Comment
	replies  []string
	replyErr error
}

func (s *stubPlatform) HotPosts(_ context.Context, subreddit string, _ int) ([]domain.Post, error) {
	return s.posts[subreddit], nil
}

func (s *stubPlatform) TopComments(_ context.Context, post domain.Post, limit int) ([]domain.Comment, error) {
	batch := s.comments[post.Fullname]
	if len(batch) > limit {
		batch = batch[:limit]
	}
	return batch, nil
}

func (s *stubPlatform) Reply(_ context.Context, parentFullname, text string) (domain.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replyErr != nil {
		return domain.Reply{}, s.replyErr
	}
	s.replies = append(s.replies, parentFullname)
	return domain.Reply{Fullname: "t1_new", Permalink: "/r/test/comments/abc/_/new"}, nil
}

func (s *stubPlatform) replyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

type stubFactory struct {
	client domain.PlatformClient
}

func (f *stubFactory) NewClient(domain.WorkerCredential) domain.PlatformClient { return f.client }

// firstStrategy всегда выбирает первый аккаунт, чтобы владелец
// ответа в тестах был детерминирован.
type firstStrategy struct{}

func (firstStrategy) Next(int) int { return 0 }

func newTestService(creds *stubCreds, campaigns *stubCampaigns, platform *stubPlatform, inf domain.Inference, lgr domain.Ledger) *Service {
	return NewService(creds, campaigns, &stubFactory{client: platform}, inf, lgr, nil, firstStrategy{}, zerolog.Nop(), Limits{PostCount: 5, CommentCount: 5, CreditPerReply: 5})
}

func collect(events <-chan domain.StageEvent) []domain.StageEvent {
	var out []domain.StageEvent
	for e := range events {
		out = append(out, e)
	}
	return out
}

func TestRunNoVenuesCompletesWithoutRetrieval(t *testing.T) {
	inf := &scriptedInference{responses: []string{`{"subreddits": []}`}}
	campaigns := &stubCampaigns{}
	platform := &stubPlatform{}
	lgr := ledger.NewMemory()
	lgr.SetBalance(1, 100)
	svc := newTestService(&stubCreds{creds: []domain.WorkerCredential{{OwnerUserID: 2, Username: "w1"}}}, campaigns, platform, inf, lgr)

	events := collect(svc.Run(context.Background(), RunParams{ProviderID: 1, Opinion: "кофе лучше чая"}))

	want := []domain.StageStatus{domain.StageFindingSubreddits, domain.StageFoundSubreddits, domain.StageFinished}
	assertStatuses(t, events, want)
	if inf.callCount() != 1 {
		t.Fatalf("ожидали ровно 1 вызов модели, получили %d", inf.callCount())
	}
	if campaigns.lastStatus() != domain.CampaignStatusCompleted {
		t.Fatalf("ожидали статус completed, получили %q", campaigns.lastStatus())
	}
	if platform.replyCount() != 0 {
		t.Fatalf("не ожидали публикаций")
	}
}

func TestRunFullPipeline(t *testing.T) {
	posts := map[string][]domain.Post{
		"golang": {
			{ID: "p1", Fullname: "t3_p1", Subreddit: "golang", Title: "один"},
			{ID: "p2", Fullname: "t3_p2", Subreddit: "golang", Title: "два"},
			{ID: "p3", Fullname: "t3_p3", Subreddit: "golang", Title: "три"},
		},
		"coffee": {
			{ID: "p4", Fullname: "t3_p4", Subreddit: "coffee", Title: "четыре"},
			{ID: "p5", Fullname: "t3_p5", Subreddit: "coffee", Title: "пять"},
			{ID: "p6", Fullname: "t3_p6", Subreddit: "coffee", Title: "шесть"},
		},
	}
	comments := map[string][]domain.Comment{
		"t3_p1": {
			{ID: "c1", Fullname: "t1_c1", PostFullname: "t3_p1", Body: "а", Permalink: "/r/golang/comments/p1/_/c1"},
			{ID: "c2", Fullname: "t1_c2", PostFullname: "t3_p1", Body: "б", Permalink: "/r/golang/comments/p1/_/c2"},
		},
		"t3_p4": {
			{ID: "c3", Fullname: "t1_c3", PostFullname: "t3_p4", Body: "в", Permalink: "/r/coffee/comments/p4/_/c3"},
		},
	}
	inf := &scriptedInference{responses: []string{
		`{"relevant": [1, 4]}`,
		`{"relevant": [2]}`,
		`{"replies": ["ответ на б"]}`,
	}}
	campaigns := &stubCampaigns{}
	platform := &stubPlatform{posts: posts, comments: comments}
	lgr := ledger.NewMemory()
	lgr.SetBalance(1, 100)
	lgr.SetBalance(2, 0)
	svc := newTestService(&stubCreds{creds: []domain.WorkerCredential{{OwnerUserID: 2, Username: "w1"}}}, campaigns, platform, inf, lgr)

	events := collect(svc.Run(context.Background(), RunParams{
		ProviderID: 1,
		Opinion:    "кофе лучше чая",
		Subreddits: []string{"golang", "coffee"},
	}))

	want := []domain.StageStatus{
		domain.StageGettingPosts, domain.StageGotPosts,
		domain.StageFilteringPosts, domain.StageFilteredPosts,
		domain.StageFilteringComments, domain.StageFilteredComments,
		domain.StageReplying, domain.StageFinished,
	}
	assertStatuses(t, events, want)

	final := events[len(events)-1]
	if len(final.Replies) != 1 {
		t.Fatalf("ожидали 1 запись об ответе, получили %d", len(final.Replies))
	}
	record := final.Replies[0]
	if record.OwnerUserID != 2 {
		t.Fatalf("ожидали владельца 2, получили %d", record.OwnerUserID)
	}
	if record.CommentFullname != "t1_c2" {
		t.Fatalf("ожидали ответ на t1_c2, получили %s", record.CommentFullname)
	}
	if record.Permalink == "" {
		t.Fatalf("ожидали пермалинк ответа")
	}

	balance, err := lgr.Balance(context.Background(), 2)
	if err != nil {
		t.Fatalf("баланс воркера: %v", err)
	}
	if balance != 5 {
		t.Fatalf("ожидали 5 кредитов у воркера, получили %d", balance)
	}
	balance, _ = lgr.Balance(context.Background(), 1)
	if balance != 95 {
		t.Fatalf("ожидали 95 кредитов у заказчика, получили %d", balance)
	}
	if len(campaigns.records) != 1 {
		t.Fatalf("ожидали 1 сохранённую запись, получили %d", len(campaigns.records))
	}
	if campaigns.lastStatus() != domain.CampaignStatusCompleted {
		t.Fatalf("ожидали статус completed, получили %q", campaigns.lastStatus())
	}
}

func TestRunIndexOutOfRangeFailsBeforeDispatch(t *testing.T) {
	posts := map[string][]domain.Post{
		"golang": {
			{ID: "p1", Fullname: "t3_p1", Subreddit: "golang", Title: "один"},
			{ID: "p2", Fullname: "t3_p2", Subreddit: "golang", Title: "два"},
			{ID: "p3", Fullname: "t3_p3", Subreddit: "golang", Title: "три"},
		},
	}
	inf := &scriptedInference{responses: []string{`{"relevant": [7]}`}}
	campaigns := &stubCampaigns{}
	platform := &stubPlatform{posts: posts}
	lgr := ledger.NewMemory()
	lgr.SetBalance(1, 100)
	svc := newTestService(&stubCreds{creds: []domain.WorkerCredential{{OwnerUserID: 2, Username: "w1"}}}, campaigns, platform, inf, lgr)

	events := collect(svc.Run(context.Background(), RunParams{ProviderID: 1, Opinion: "кофе лучше чая", Subreddits: []string{"golang"}}))

	final := events[len(events)-1]
	if final.Status != domain.StageError {
		t.Fatalf("ожидали терминальное событие Error, получили %q", final.Status)
	}
	if final.Message == "" {
		t.Fatalf("ожидали сообщение об ошибке")
	}
	if campaigns.lastStatus() != domain.CampaignStatusFailed {
		t.Fatalf("ожидали статус failed, получили %q", campaigns.lastStatus())
	}
	if platform.replyCount() != 0 {
		t.Fatalf("не ожидали публикаций после сбоя фильтрации")
	}
}

func TestRunNoAccountsFails(t *testing.T) {
	inf := &scriptedInference{}
	campaigns := &stubCampaigns{}
	svc := newTestService(&stubCreds{}, campaigns, &stubPlatform{}, inf, ledger.NewMemory())

	events := collect(svc.Run(context.Background(), RunParams{ProviderID: 1, Opinion: "кофе лучше чая", Subreddits: []string{"golang"}}))

	final := events[len(events)-1]
	if final.Status != domain.StageError {
		t.Fatalf("ожидали Error, получили %q", final.Status)
	}
	if inf.callCount() != 0 {
		t.Fatalf("не ожидали вызовов модели без аккаунтов")
	}
}

func TestRunReplyFailureSkipsItem(t *testing.T) {
	posts := map[string][]domain.Post{
		"golang": {{ID: "p1", Fullname: "t3_p1", Subreddit: "golang", Title: "один"}},
	}
	comments := map[string][]domain.Comment{
		"t3_p1": {{ID: "c1", Fullname: "t1_c1", PostFullname: "t3_p1", Body: "а", Permalink: "/x"}},
	}
	inf := &scriptedInference{responses: []string{
		`{"relevant": [1]}`,
		`{"relevant": [1]}`,
		`{"replies": ["ответ"]}`,
	}}
	campaigns := &stubCampaigns{}
	platform := &stubPlatform{posts: posts, comments: comments, replyErr: errors.New("RATELIMIT")}
	lgr := ledger.NewMemory()
	lgr.SetBalance(1, 100)
	svc := newTestService(&stubCreds{creds: []domain.WorkerCredential{{OwnerUserID: 2, Username: "w1"}}}, campaigns, platform, inf, lgr)

	events := collect(svc.Run(context.Background(), RunParams{ProviderID: 1, Opinion: "кофе лучше чая", Subreddits: []string{"golang"}}))

	final := events[len(events)-1]
	if final.Status != domain.StageFinished {
		t.Fatalf("ожидали Finished несмотря на сбой публикации, получили %q", final.Status)
	}
	if len(final.Replies) != 0 {
		t.Fatalf("не ожидали записей об ответах")
	}
	balance, _ := lgr.Balance(context.Background(), 1)
	if balance != 100 {
		t.Fatalf("баланс заказчика не должен меняться, получили %d", balance)
	}
}

func assertStatuses(t *testing.T, events []domain.StageEvent, want []domain.StageStatus) {
	t.Helper()
	if len(events) != len(want) {
		t.Fatalf("ожидали %d событий, получили %d: %v", len(want), len(events), statuses(events))
	}
	for i, status := range want {
		if events[i].Status != status {
			t.Fatalf("событие %d: ожидали %q, получили %q", i, status, events[i].Status)
		}
	}
}

func statuses(events []domain.StageEvent) []domain.StageStatus {
	out := make([]domain.StageStatus, 0, len(events))
	for _, e := range events {
		out = append(out, e.Status)
	}
	return out
}
