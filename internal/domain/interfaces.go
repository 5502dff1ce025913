package domain

import (
	"context"
	"time"
)

// Inference — шлюз к LLM: инструкция + полезная нагрузка → текст.
// Без ретраев и без кэширования: политика повторов принадлежит вызывающему.
type Inference interface {
	Infer(ctx context.Context, instruction, payload string) (string, error)
	// InferJSON требует от модели структурированный JSON-ответ и
	// декодирует его в out. Неразбираемый ответ — ErrInferenceMalformed.
	InferJSON(ctx context.Context, instruction, payload string, out any) error
}

// PlatformClient выполняет операции платформы от имени одного аккаунта.
// Все вызовы ходят по сети и могут упереться в платформенные лимиты.
type PlatformClient interface {
	HotPosts(ctx context.Context, subreddit string, limit int) ([]Post, error)
	TopComments(ctx context.Context, post Post, limit int) ([]Comment, error)
	Reply(ctx context.Context, parentFullname, text string) (Reply, error)
}

// PlatformClientFactory создаёт клиента платформы из учётных данных воркера.
type PlatformClientFactory interface {
	NewClient(cred WorkerCredential) PlatformClient
}

// AccountPool выдаёт аккаунт для очередной операции. Выбор атомарен
// относительно конкурентных запусков и возвращает аккаунт явно,
// без скрытого разделяемого курсора.
type AccountPool interface {
	Select() (Account, error)
	Size() int
}

// CredentialRepo управляет учётными данными воркеров.
type CredentialRepo interface {
	ListWorkerCredentials(ctx context.Context) ([]WorkerCredential, error)
	UpsertWorkerCredential(ctx context.Context, cred WorkerCredential) error
}

// CampaignRepo сохраняет кампании и их терминальные статусы.
type CampaignRepo interface {
	CreateCampaign(ctx context.Context, campaign Campaign) (Campaign, error)
	GetCampaign(ctx context.Context, id string) (Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id string, status CampaignStatus, detail string) error
	SaveReplyRecords(ctx context.Context, campaignID string, records []ReplyRecord) error
}

// Ledger переводит кредиты между пользователями. Перевод атомарен:
// либо меняются оба баланса, либо ни один.
type Ledger interface {
	Transfer(ctx context.Context, senderUserID, receiverUserID, amount int64) error
	Balance(ctx context.Context, userID int64) (int64, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}

// Notifier доставляет операторам уведомление о завершении кампании.
type Notifier interface {
	CampaignFinished(ctx context.Context, campaign Campaign, replies int, errMsg string) error
}
