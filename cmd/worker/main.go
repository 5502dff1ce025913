package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/HACKER097/FogMachine/internal/adapters/accounts"
	"github.com/HACKER097/FogMachine/internal/adapters/inference"
	"github.com/HACKER097/FogMachine/internal/adapters/ledger"
	"github.com/HACKER097/FogMachine/internal/adapters/notify"
	"github.com/HACKER097/FogMachine/internal/adapters/reddit"
	"github.com/HACKER097/FogMachine/internal/adapters/repo"
	"github.com/HACKER097/FogMachine/internal/domain"
	"github.com/HACKER097/FogMachine/internal/infra/cache"
	"github.com/HACKER097/FogMachine/internal/infra/config"
	"github.com/HACKER097/FogMachine/internal/infra/db"
	infralog "github.com/HACKER097/FogMachine/internal/infra/log"
	"github.com/HACKER097/FogMachine/internal/infra/metrics"
	"github.com/HACKER097/FogMachine/internal/infra/openai"
	"github.com/HACKER097/FogMachine/internal/infra/queue"
	campaignusecase "github.com/HACKER097/FogMachine/internal/usecase/campaign"
)

const jobDedupTTL = 24 * time.Hour

func main() {
	cfg := config.Load()
	log := infralog.NewLogger(cfg.AppEnv, "worker")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()

	rabbit, err := queue.NewRabbitCampaignQueue(cfg.RabbitURL, cfg.Queues.Campaign)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: нет подключения к rabbitmq")
	}
	defer rabbit.Close()

	var appCache domain.Cache
	if cfg.RedisAddr != "" {
		appCache = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	var notifier domain.Notifier = notify.Noop{}
	if cfg.Ops.TGBotToken != "" && cfg.Ops.TGChatID != 0 {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Ops.TGBotToken)
		if err != nil {
			log.Fatal().Err(err).Msg("worker: не удалось создать бота уведомлений")
		}
		notifier = notify.NewTelegram(botAPI, cfg.Ops.TGChatID)
	}

	repoAdapter := repo.NewPostgres(pool)
	ledgerAdapter := ledger.NewPostgres(pool)
	openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
	gateway := inference.NewGateway(openaiClient, cfg.OpenAI.Model, cfg.OpenAI.Timeout)
	factory := reddit.NewFactory(reddit.Config{
		BaseURL:    cfg.Reddit.BaseURL,
		AuthURL:    cfg.Reddit.AuthURL,
		UserAgent:  cfg.Reddit.UserAgent,
		Timeout:    cfg.Reddit.Timeout,
		RequestGap: cfg.Reddit.RequestGap,
	})

	svc := campaignusecase.NewService(
		repoAdapter, repoAdapter, factory, gateway, ledgerAdapter, appCache,
		accounts.RandomStrategy{},
		log.With().Str("component", "campaign").Logger(),
		campaignusecase.Limits{
			PostCount:      cfg.Limits.PostCount,
			CommentCount:   cfg.Limits.CommentCount,
			CreditPerReply: cfg.Limits.CreditPerReply,
		},
	)

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), ":9090")

	worker := &campaignWorker{
		queue:     rabbit,
		service:   svc,
		campaigns: repoAdapter,
		notifier:  notifier,
		cache:     appCache,
		log:       log,
	}

	log.Info().Msg("worker: старт")
	worker.Run(ctx)
	log.Info().Msg("worker: остановка")
}

type campaignWorker struct {
	queue     domain.CampaignQueue
	service   *campaignusecase.Service
	campaigns domain.CampaignRepo
	notifier  domain.Notifier
	cache     domain.Cache
	log       zerolog.Logger
}

func (w *campaignWorker) Run(ctx context.Context) {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("worker: ошибка чтения очереди")
			time.Sleep(time.Second)
			continue
		}

		jobLog := w.log.With().
			Str("job_id", job.ID).
			Str("campaign_id", job.CampaignID).
			Int64("provider", job.ProviderID).
			Str("cause", string(job.Cause)).
			Logger()

		if job.Opinion == "" {
			jobLog.Error().Msg("worker: задача без мнения, подтверждаем и пропускаем")
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("worker: не удалось подтвердить пустую задачу")
			}
			continue
		}

		if err := w.runOnce(ctx, job, jobLog); err != nil {
			jobLog.Error().Err(err).Msg("worker: задача завершилась ошибкой, вернём в очередь")
			if ackErr := ack(false); ackErr != nil {
				jobLog.Error().Err(ackErr).Msg("worker: не удалось вернуть задачу в очередь")
			}
			time.Sleep(time.Second)
			continue
		}

		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("worker: не удалось подтвердить задачу")
		}
	}
}

// runOnce выполняет кампанию из задачи. Задачи с идентификатором
// дедуплицируются через кэш: повторная доставка брокером не приводит
// к повторной кампании.
func (w *campaignWorker) runOnce(ctx context.Context, job domain.CampaignJob, jobLog zerolog.Logger) error {
	execute := func() error {
		return w.executeCampaign(ctx, job, jobLog)
	}
	if w.cache != nil && job.ID != "" {
		return w.cache.Once("fogmachine:job:"+job.ID, jobDedupTTL, execute)
	}
	return execute()
}

func (w *campaignWorker) executeCampaign(ctx context.Context, job domain.CampaignJob, jobLog zerolog.Logger) error {
	var final domain.StageEvent
	events := w.service.Run(ctx, campaignusecase.RunParams{
		CampaignID:   job.CampaignID,
		ProviderID:   job.ProviderID,
		Opinion:      job.Opinion,
		PostCount:    job.PostCount,
		CommentCount: job.CommentCount,
		Subreddits:   job.Subreddits,
	})
	for event := range events {
		jobLog.Info().Str("status", string(event.Status)).Msg("worker: этап кампании")
		if event.Terminal() {
			final = event
		}
	}

	campaign, err := w.campaigns.GetCampaign(ctx, job.CampaignID)
	if err != nil {
		jobLog.Error().Err(err).Msg("worker: не удалось прочитать кампанию для уведомления")
		campaign = domain.Campaign{ID: job.CampaignID, ProviderID: job.ProviderID, Opinion: job.Opinion}
	}
	if err := w.notifier.CampaignFinished(ctx, campaign, len(final.Replies), final.Message); err != nil {
		jobLog.Warn().Err(err).Msg("worker: уведомление не доставлено")
	}

	if final.Status == domain.StageError {
		jobLog.Error().Str("detail", final.Message).Msg("worker: кампания завершилась ошибкой")
	} else {
		jobLog.Info().Int("replies", len(final.Replies)).Msg("worker: кампания завершена")
	}
	// Сбой кампании фиксируется в её статусе, а не ретраем задачи:
	// повтор в очереди означал бы повторные публикации.
	return nil
}
