package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HACKER097/FogMachine/internal/domain"
	"github.com/HACKER097/FogMachine/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var _ domain.CredentialRepo = (*Postgres)(nil)
var _ domain.CampaignRepo = (*Postgres)(nil)

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 5*time.Second)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// ListWorkerCredentials возвращает учётные данные всех воркеров.
func (p *Postgres) ListWorkerCredentials(ctx context.Context) ([]domain.WorkerCredential, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id, client_id, client_secret, reddit_username, reddit_password
FROM worker_credentials
ORDER BY user_id
`)
	metrics.ObserveNetworkRequest("postgres", "worker_credentials_list", "worker_credentials", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []domain.WorkerCredential
	for rows.Next() {
		var cred domain.WorkerCredential
		if err := rows.Scan(&cred.OwnerUserID, &cred.ClientID, &cred.ClientSecret, &cred.Username, &cred.Password); err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// UpsertWorkerCredential сохраняет или обновляет учётные данные воркера.
func (p *Postgres) UpsertWorkerCredential(ctx context.Context, cred domain.WorkerCredential) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO worker_credentials (user_id, client_id, client_secret, reddit_username, reddit_password)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
    client_id = EXCLUDED.client_id,
    client_secret = EXCLUDED.client_secret,
    reddit_username = EXCLUDED.reddit_username,
    reddit_password = EXCLUDED.reddit_password
`, cred.OwnerUserID, cred.ClientID, cred.ClientSecret, cred.Username, cred.Password)
	metrics.ObserveNetworkRequest("postgres", "worker_credentials_upsert", "worker_credentials", start, err)
	return err
}

// CreateCampaign сохраняет новую кампанию.
func (p *Postgres) CreateCampaign(ctx context.Context, campaign domain.Campaign) (domain.Campaign, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if campaign.Status == "" {
		campaign.Status = domain.CampaignStatusRunning
	}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO campaigns (id, provider_id, opinion, post_count, comment_count, subreddits, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at
`, campaign.ID, campaign.ProviderID, campaign.Opinion, campaign.PostCount, campaign.CommentCount, campaign.Subreddits, string(campaign.Status)).
		Scan(&campaign.CreatedAt, &campaign.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "campaigns_create", "campaigns", start, err)
	if err != nil {
		return domain.Campaign{}, err
	}
	return campaign, nil
}

// GetCampaign возвращает кампанию по идентификатору.
func (p *Postgres) GetCampaign(ctx context.Context, id string) (domain.Campaign, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var campaign domain.Campaign
	var status string
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, provider_id, opinion, post_count, comment_count, subreddits, status, COALESCE(status_detail, ''), created_at, updated_at
FROM campaigns
WHERE id = $1
`, id).Scan(&campaign.ID, &campaign.ProviderID, &campaign.Opinion, &campaign.PostCount, &campaign.CommentCount,
		&campaign.Subreddits, &status, &campaign.StatusDetail, &campaign.CreatedAt, &campaign.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "campaigns_get", "campaigns", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Campaign{}, domain.ErrCampaignNotFound
		}
		return domain.Campaign{}, err
	}
	campaign.Status = domain.CampaignStatus(status)
	return campaign, nil
}

// UpdateCampaignStatus переводит кампанию в терминальный статус.
func (p *Postgres) UpdateCampaignStatus(ctx context.Context, id string, status domain.CampaignStatus, detail string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE campaigns SET status = $2, status_detail = NULLIF($3, ''), updated_at = now()
WHERE id = $1
`, id, string(status), detail)
	metrics.ObserveNetworkRequest("postgres", "campaigns_update_status", "campaigns", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

// SaveReplyRecords сохраняет опубликованные ответы кампании.
func (p *Postgres) SaveReplyRecords(ctx context.Context, campaignID string, records []domain.ReplyRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "campaign_replies", start, err)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, record := range records {
		insStart := time.Now()
		_, err = tx.Exec(ctx, `
INSERT INTO campaign_replies (campaign_id, owner_user_id, comment_fullname, comment_permalink, permalink, reply_text)
VALUES ($1, $2, $3, $4, $5, $6)
`, campaignID, record.OwnerUserID, record.CommentFullname, record.CommentPermalink, record.Permalink, record.Text)
		metrics.ObserveNetworkRequest("postgres", "campaign_replies_insert", "campaign_replies", insStart, err)
		if err != nil {
			return err
		}
	}

	commitStart := time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "campaign_replies", commitStart, err)
	return err
}
