package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/HACKER097/FogMachine/internal/adapters/accounts"
	"github.com/HACKER097/FogMachine/internal/adapters/inference"
	"github.com/HACKER097/FogMachine/internal/adapters/ledger"
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

func main() {
	cfg := config.Load()
	log := infralog.NewLogger(cfg.AppEnv, "api")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	ledgerAdapter := ledger.NewPostgres(pool)

	var appCache domain.Cache
	if cfg.RedisAddr != "" {
		appCache = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	var jobs domain.CampaignQueue
	if cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbitCampaignQueue(cfg.RabbitURL, cfg.Queues.Campaign)
		if err != nil {
			log.Fatal().Err(err).Msg("api: нет подключения к rabbitmq")
		}
		defer rabbit.Close()
		jobs = rabbit
	}

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

	r := chi.NewRouter()

	r.Post("/api/v1/campaigns/discover", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req discoverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Opinion == "" {
			writeError(w, http.StatusBadRequest, "opinion is required")
			return
		}
		subreddits, err := svc.DiscoverVenues(r.Context(), req.Opinion)
		if err != nil {
			log.Error().Err(err).Msg("api: поиск сабреддитов")
			writeError(w, http.StatusBadGateway, "venue discovery failed")
			return
		}
		writeJSON(w, map[string]any{"subreddits": subreddits})
	})

	r.Post("/api/v1/campaigns/run", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		providerID, err := requesterID(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Opinion == "" {
			writeError(w, http.StatusBadRequest, "opinion is required")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		events := svc.Run(r.Context(), campaignusecase.RunParams{
			ProviderID:   providerID,
			Opinion:      req.Opinion,
			PostCount:    req.PostCount,
			CommentCount: req.CommentCount,
			Subreddits:   req.Subreddits,
		})
		for event := range events {
			payload, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Msg("api: сериализация события")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	})

	r.Post("/api/v1/campaigns/enqueue", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if jobs == nil {
			writeError(w, http.StatusServiceUnavailable, "queue is not configured")
			return
		}
		providerID, err := requesterID(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Opinion == "" {
			writeError(w, http.StatusBadRequest, "opinion is required")
			return
		}
		job := domain.CampaignJob{
			ID:           uuid.NewString(),
			CampaignID:   uuid.NewString(),
			ProviderID:   providerID,
			Opinion:      req.Opinion,
			PostCount:    req.PostCount,
			CommentCount: req.CommentCount,
			Subreddits:   req.Subreddits,
			RequestedAt:  time.Now().UTC(),
			Cause:        domain.CampaignCauseManual,
		}
		if err := jobs.Enqueue(r.Context(), job); err != nil {
			log.Error().Err(err).Msg("api: постановка кампании в очередь")
			writeError(w, http.StatusInternalServerError, "failed to enqueue campaign")
			return
		}
		writeJSON(w, map[string]string{"job_id": job.ID, "campaign_id": job.CampaignID})
	})

	r.Get("/api/v1/campaigns/{id}", func(w http.ResponseWriter, r *http.Request) {
		campaign, err := repoAdapter.GetCampaign(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, domain.ErrCampaignNotFound) {
				writeError(w, http.StatusNotFound, "campaign not found")
				return
			}
			log.Error().Err(err).Msg("api: чтение кампании")
			writeError(w, http.StatusInternalServerError, "failed to load campaign")
			return
		}
		writeJSON(w, campaign)
	})

	r.Post("/api/v1/workers/credentials", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		ownerID, err := requesterID(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		var req credentialRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ClientID == "" || req.ClientSecret == "" || req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "all credential fields are required")
			return
		}
		cred := domain.WorkerCredential{
			OwnerUserID:  ownerID,
			ClientID:     req.ClientID,
			ClientSecret: req.ClientSecret,
			Username:     req.Username,
			Password:     req.Password,
		}
		if err := repoAdapter.UpsertWorkerCredential(r.Context(), cred); err != nil {
			log.Error().Err(err).Msg("api: сохранение учётных данных воркера")
			writeError(w, http.StatusInternalServerError, "failed to save credentials")
			return
		}
		account, err := ledgerAdapter.EnsureAccount(r.Context(), ownerID, 0)
		if err != nil {
			log.Error().Err(err).Msg("api: создание кредитного счёта")
			writeError(w, http.StatusInternalServerError, "failed to ensure credit account")
			return
		}
		writeJSON(w, map[string]any{"status": "ok", "balance": account.Balance})
	})

	r.Get("/api/v1/credits/{userID}", func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		balance, err := ledgerAdapter.Balance(r.Context(), userID)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				writeError(w, http.StatusNotFound, "account not found")
				return
			}
			log.Error().Err(err).Msg("api: чтение баланса")
			writeError(w, http.StatusInternalServerError, "failed to load balance")
			return
		}
		writeJSON(w, map[string]any{"user_id": userID, "balance": balance})
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), ":9090")
	go func() {
		log.Info().Int("port", cfg.Port).Msg("api: старт")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	log.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type discoverRequest struct {
	Opinion string `json:"opinion"`
}

type runRequest struct {
	Opinion      string   `json:"opinion"`
	PostCount    int      `json:"post_count"`
	CommentCount int      `json:"comment_count"`
	Subreddits   []string `json:"subreddits"`
}

type credentialRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username"`
	Password     string `json:"password"`
}

// requesterID извлекает идентификатор пользователя из заголовка.
// Авторизация внешняя: сервис доверяет значению от шлюза.
func requesterID(r *http.Request) (int64, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, errors.New("X-User-ID header is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("X-User-ID header is invalid")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
