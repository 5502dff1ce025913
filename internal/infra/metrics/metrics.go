package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	CampaignRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_runs_total",
		Help: "Количество запусков кампаний по терминальному статусу",
	}, []string{"status"})

	CampaignStageSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campaign_stage_seconds",
		Help:    "Длительность этапов кампании",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	RepliesPostedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replies_posted_total",
		Help: "Количество успешно опубликованных ответов",
	})

	RepliesSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replies_skipped_total",
		Help: "Количество ответов, пропущенных из-за ошибки публикации",
	})

	CreditTransfersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_transfers_total",
		Help: "Количество переводов кредитов по статусу",
	}, []string{"status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		CampaignRunsTotal,
		CampaignStageSeconds,
		RepliesPostedTotal,
		RepliesSkippedTotal,
		CreditTransfersTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// ObserveStage записывает длительность этапа кампании.
func ObserveStage(stage string, start time.Time) {
	CampaignStageSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// IncCampaignRun увеличивает счётчик запусков для терминального статуса.
func IncCampaignRun(status string) {
	CampaignRunsTotal.WithLabelValues(status).Inc()
}

// IncReplyPosted увеличивает счётчик опубликованных ответов.
func IncReplyPosted() {
	RepliesPostedTotal.Inc()
}

// IncReplySkipped увеличивает счётчик пропущенных ответов.
func IncReplySkipped() {
	RepliesSkippedTotal.Inc()
}

// IncCreditTransfer увеличивает счётчик переводов кредитов.
func IncCreditTransfer(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	CreditTransfersTotal.WithLabelValues(status).Inc()
}
