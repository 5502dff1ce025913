package domain

import (
	"context"
	"time"
)

// CampaignJobCause описывает источник запроса на запуск кампании.
type CampaignJobCause string

const (
	// CampaignCauseManual — кампания поставлена в очередь через API.
	CampaignCauseManual CampaignJobCause = "manual"
	// CampaignCauseRerun — повторный запуск завершившейся ошибкой кампании.
	CampaignCauseRerun CampaignJobCause = "rerun"
)

// CampaignJob содержит параметры асинхронного запуска кампании.
type CampaignJob struct {
	ID           string           `json:"job_id,omitempty"`
	CampaignID   string           `json:"campaign_id"`
	ProviderID   int64            `json:"provider_id"`
	Opinion      string           `json:"opinion"`
	PostCount    int              `json:"post_count"`
	CommentCount int              `json:"comment_count"`
	Subreddits   []string         `json:"subreddits,omitempty"`
	RequestedAt  time.Time        `json:"requested_at"`
	Cause        CampaignJobCause `json:"cause"`
}

// CampaignQueue описывает очередь задач на запуск кампаний.
type CampaignQueue interface {
	Enqueue(ctx context.Context, job CampaignJob) error
	Receive(ctx context.Context) (CampaignJob, CampaignAckFunc, error)
}

// CampaignAckFunc подтверждает обработку или возвращает задачу в очередь.
type CampaignAckFunc func(success bool) error
