package campaign

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/HACKER097/FogMachine/internal/adapters/accounts"
	"github.com/HACKER097/FogMachine/internal/adapters/filter"
	"github.com/HACKER097/FogMachine/internal/adapters/synthesizer"
	"github.com/HACKER097/FogMachine/internal/domain"
	"github.com/HACKER097/FogMachine/internal/infra/metrics"
)

const discoveryCacheTTL = 6 * time.Hour

// Limits задаёт значения по умолчанию и цену ответа в кредитах.
type Limits struct {
	PostCount      int
	CommentCount   int
	CreditPerReply int64
}

// RunParams — параметры одного запуска кампании.
type RunParams struct {
	CampaignID   string
	ProviderID   int64
	Opinion      string
	PostCount    int
	CommentCount int
	// Subreddits задаёт площадки явно. Пустой список включает
	// автоматический поиск площадок по мнению.
	Subreddits []string
}

// Service реализует оркестрацию кампании: поиск площадок, выгрузка
// и фильтрация контента, генерация и публикация ответов, расчёты.
type Service struct {
	creds     domain.CredentialRepo
	campaigns domain.CampaignRepo
	factory   domain.PlatformClientFactory
	inference domain.Inference
	ledger    domain.Ledger
	cache     domain.Cache
	strategy  accounts.Strategy
	log       zerolog.Logger
	limits    Limits
}

// NewService создаёт сервис кампаний. cache может быть nil, тогда
// поиск площадок не мемоизируется.
func NewService(creds domain.CredentialRepo, campaigns domain.CampaignRepo, factory domain.PlatformClientFactory, inference domain.Inference, ledger domain.Ledger, cache domain.Cache, strategy accounts.Strategy, log zerolog.Logger, limits Limits) *Service {
	return &Service{
		creds:     creds,
		campaigns: campaigns,
		factory:   factory,
		inference: inference,
		ledger:    ledger,
		cache:     cache,
		strategy:  strategy,
		log:       log,
		limits:    limits,
	}
}

type subredditsResponse struct {
	Subreddits []string `json:"subreddits"`
}

// DiscoverVenues подбирает сабреддиты под мнение. Результат
// мемоизируется по хэшу мнения.
func (s *Service) DiscoverVenues(ctx context.Context, opinion string) ([]string, error) {
	key := discoveryCacheKey(opinion)
	if s.cache != nil {
		if raw, err := s.cache.Get(key); err == nil && len(raw) > 0 {
			var cached []string
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var parsed subredditsResponse
	if err := s.inference.InferJSON(ctx, promptFindSubreddits, "Opinion: "+opinion, &parsed); err != nil {
		return nil, fmt.Errorf("поиск сабреддитов: %w", err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(parsed.Subreddits); err == nil {
			if err := s.cache.Set(key, raw, discoveryCacheTTL); err != nil {
				s.log.Warn().Err(err).Msg("не удалось закэшировать сабреддиты")
			}
		}
	}
	return parsed.Subreddits, nil
}

func discoveryCacheKey(opinion string) string {
	sum := sha256.Sum256([]byte(opinion))
	return "fogmachine:venues:" + hex.EncodeToString(sum[:])
}

// Run выполняет кампанию и стримит события этапов. Канал закрывается
// после ровно одного терминального события. Отмена ctx останавливает
// кампанию между этапами.
func (s *Service) Run(ctx context.Context, params RunParams) <-chan domain.StageEvent {
	events := make(chan domain.StageEvent, 8)
	go func() {
		defer close(events)
		s.run(ctx, params, events)
	}()
	return events
}

func (s *Service) run(ctx context.Context, params RunParams, events chan<- domain.StageEvent) {
	if params.PostCount <= 0 {
		params.PostCount = s.limits.PostCount
	}
	if params.CommentCount <= 0 {
		params.CommentCount = s.limits.CommentCount
	}
	if params.CampaignID == "" {
		params.CampaignID = uuid.NewString()
	}

	log := s.log.With().Str("campaign_id", params.CampaignID).Logger()

	if _, err := s.campaigns.CreateCampaign(ctx, domain.Campaign{
		ID:           params.CampaignID,
		ProviderID:   params.ProviderID,
		Opinion:      params.Opinion,
		PostCount:    params.PostCount,
		CommentCount: params.CommentCount,
		Subreddits:   params.Subreddits,
		Status:       domain.CampaignStatusRunning,
	}); err != nil {
		s.fail(ctx, log, params.CampaignID, events, fmt.Errorf("создание кампании: %w", err))
		return
	}

	pool, err := accounts.BuildPool(ctx, s.creds, s.factory, s.strategy)
	if err != nil {
		s.fail(ctx, log, params.CampaignID, events, fmt.Errorf("сборка пула аккаунтов: %w", err))
		return
	}
	if pool.Size() == 0 {
		s.fail(ctx, log, params.CampaignID, events, domain.ErrNoAccounts)
		return
	}
	log.Info().Int("accounts", pool.Size()).Msg("пул аккаунтов собран")

	subreddits := params.Subreddits
	if len(subreddits) == 0 {
		stageStart := time.Now()
		events <- domain.StageEvent{Status: domain.StageFindingSubreddits}
		subreddits, err = s.DiscoverVenues(ctx, params.Opinion)
		if err != nil {
			s.fail(ctx, log, params.CampaignID, events, err)
			return
		}
		metrics.ObserveStage("find_subreddits", stageStart)
		events <- domain.StageEvent{Status: domain.StageFoundSubreddits, Subreddits: subreddits}
	}
	if len(subreddits) == 0 {
		log.Info().Msg("сабреддиты не найдены, кампания завершена")
		s.finish(ctx, log, params.CampaignID, events, nil)
		return
	}

	stageStart := time.Now()
	events <- domain.StageEvent{Status: domain.StageGettingPosts}
	var posts []domain.Post
	for _, subreddit := range subreddits {
		if err := ctx.Err(); err != nil {
			s.fail(ctx, log, params.CampaignID, events, err)
			return
		}
		account, err := pool.Select()
		if err != nil {
			s.fail(ctx, log, params.CampaignID, events, err)
			return
		}
		batch, err := account.Client.HotPosts(ctx, subreddit, params.PostCount)
		if err != nil {
			s.fail(ctx, log, params.CampaignID, events, fmt.Errorf("выгрузка постов r/%s: %w", subreddit, err))
			return
		}
		posts = append(posts, batch...)
	}
	metrics.ObserveStage("get_posts", stageStart)
	events <- domain.StageEvent{Status: domain.StageGotPosts, Posts: posts}

	stageStart = time.Now()
	events <- domain.StageEvent{Status: domain.StageFilteringPosts}
	relevantPosts, err := filter.Relevant(ctx, s.inference, promptFilterPosts, params.Opinion, "Post", posts, renderPost)
	if err != nil {
		s.fail(ctx, log, params.CampaignID, events, fmt.Errorf("фильтрация постов: %w", err))
		return
	}
	metrics.ObserveStage("filter_posts", stageStart)
	events <- domain.StageEvent{Status: domain.StageFilteredPosts, Posts: relevantPosts}
	if len(relevantPosts) == 0 {
		log.Info().Msg("релевантных постов нет, кампания завершена")
		s.finish(ctx, log, params.CampaignID, events, nil)
		return
	}

	stageStart = time.Now()
	events <- domain.StageEvent{Status: domain.StageFilteringComments}
	var comments []domain.Comment
	for _, post := range relevantPosts {
		if err := ctx.Err(); err != nil {
			s.fail(ctx, log, params.CampaignID, events, err)
			return
		}
		account, err := pool.Select()
		if err != nil {
			s.fail(ctx, log, params.CampaignID, events, err)
			return
		}
		batch, err := account.Client.TopComments(ctx, post, params.CommentCount)
		if err != nil {
			s.fail(ctx, log, params.CampaignID, events, fmt.Errorf("выгрузка комментариев %s: %w", post.Fullname, err))
			return
		}
		comments = append(comments, batch...)
	}
	relevantComments, err := filter.Relevant(ctx, s.inference, promptFilterComments, params.Opinion, "Comment", comments, renderComment)
	if err != nil {
		s.fail(ctx, log, params.CampaignID, events, fmt.Errorf("фильтрация комментариев: %w", err))
		return
	}
	metrics.ObserveStage("filter_comments", stageStart)
	events <- domain.StageEvent{Status: domain.StageFilteredComments, Comments: relevantComments}
	if len(relevantComments) == 0 {
		log.Info().Msg("релевантных комментариев нет, кампания завершена")
		s.finish(ctx, log, params.CampaignID, events, nil)
		return
	}

	stageStart = time.Now()
	events <- domain.StageEvent{Status: domain.StageReplying}
	texts, err := synthesizer.Replies(ctx, s.inference, promptGenerateReplies, params.Opinion, relevantComments)
	if err != nil {
		s.fail(ctx, log, params.CampaignID, events, fmt.Errorf("генерация ответов: %w", err))
		return
	}

	records := s.dispatch(ctx, log, params, relevantComments, texts, pool)
	metrics.ObserveStage("reply", stageStart)

	if err := s.campaigns.SaveReplyRecords(ctx, params.CampaignID, records); err != nil {
		log.Error().Err(err).Msg("не удалось сохранить записи об ответах")
	}
	s.finish(ctx, log, params.CampaignID, events, records)
}

// dispatch публикует ответы и проводит расчёты. Сбой на одном
// комментарии не останавливает остальные.
func (s *Service) dispatch(ctx context.Context, log zerolog.Logger, params RunParams, comments []domain.Comment, texts []string, pool domain.AccountPool) []domain.ReplyRecord {
	records := make([]domain.ReplyRecord, 0, len(comments))
	for i, comment := range comments {
		if ctx.Err() != nil {
			return records
		}
		account, err := pool.Select()
		if err != nil {
			log.Warn().Err(err).Str("comment", comment.Fullname).Msg("аккаунт недоступен, ответ пропущен")
			metrics.IncReplySkipped()
			continue
		}
		reply, err := account.Client.Reply(ctx, comment.Fullname, texts[i])
		if err != nil {
			log.Warn().Err(err).Str("comment", comment.Fullname).Str("account", account.Username).Msg("публикация ответа не удалась")
			metrics.IncReplySkipped()
			continue
		}
		metrics.IncReplyPosted()
		records = append(records, domain.ReplyRecord{
			OwnerUserID:      account.OwnerUserID,
			CommentFullname:  comment.Fullname,
			CommentPermalink: comment.Permalink,
			Permalink:        reply.Permalink,
			Text:             texts[i],
		})

		if err := s.ledger.Transfer(ctx, params.ProviderID, account.OwnerUserID, s.limits.CreditPerReply); err != nil {
			if errors.Is(err, domain.ErrInsufficientCredits) {
				log.Warn().Int64("provider", params.ProviderID).Msg("недостаточно кредитов для оплаты ответа")
			} else {
				log.Error().Err(err).Int64("worker", account.OwnerUserID).Msg("перевод кредитов не удался")
			}
		}
	}
	return records
}

func (s *Service) finish(ctx context.Context, log zerolog.Logger, campaignID string, events chan<- domain.StageEvent, records []domain.ReplyRecord) {
	if err := s.campaigns.UpdateCampaignStatus(ctx, campaignID, domain.CampaignStatusCompleted, ""); err != nil {
		log.Error().Err(err).Msg("не удалось обновить статус кампании")
	}
	metrics.IncCampaignRun("completed")
	log.Info().Int("replies", len(records)).Msg("кампания завершена")
	events <- domain.StageEvent{Status: domain.StageFinished, Replies: records}
}

func (s *Service) fail(ctx context.Context, log zerolog.Logger, campaignID string, events chan<- domain.StageEvent, cause error) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := s.campaigns.UpdateCampaignStatus(ctx, campaignID, domain.CampaignStatusFailed, cause.Error()); err != nil {
		log.Error().Err(err).Msg("не удалось обновить статус кампании")
	}
	metrics.IncCampaignRun("failed")
	log.Error().Err(cause).Msg("кампания остановлена")
	events <- domain.StageEvent{Status: domain.StageError, Message: cause.Error()}
}

func renderPost(post domain.Post) string {
	if post.Body == "" {
		return post.Title
	}
	return post.Title + "\n" + post.Body
}

func renderComment(comment domain.Comment) string {
	return comment.Body
}
