package domain

import "time"

// CampaignStatus описывает терминальное состояние кампании в хранилище.
type CampaignStatus string

const (
	// CampaignStatusRunning — кампания выполняется.
	CampaignStatusRunning CampaignStatus = "running"
	// CampaignStatusCompleted — кампания успешно завершена.
	CampaignStatusCompleted CampaignStatus = "completed"
	// CampaignStatusFailed — кампания остановлена из-за ошибки этапа.
	CampaignStatusFailed CampaignStatus = "failed"
)

// Campaign описывает один запуск распространения мнения.
type Campaign struct {
	ID           string         `json:"id"`
	ProviderID   int64          `json:"provider_id"`
	Opinion      string         `json:"opinion"`
	PostCount    int            `json:"post_count"`
	CommentCount int            `json:"comment_count"`
	Subreddits   []string       `json:"subreddits,omitempty"`
	Status       CampaignStatus `json:"status"`
	StatusDetail string         `json:"status_detail,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Post представляет пост сабреддита. Снимок на момент выгрузки,
// живое состояние платформы за ним не отслеживается.
type Post struct {
	ID        string    `json:"id"`
	Fullname  string    `json:"fullname"`
	Subreddit string    `json:"subreddit"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Author    string    `json:"author"`
	Score     int       `json:"score"`
	Permalink string    `json:"permalink"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment представляет комментарий под постом.
type Comment struct {
	ID           string    `json:"id"`
	Fullname     string    `json:"fullname"`
	PostFullname string    `json:"post_fullname"`
	Subreddit    string    `json:"subreddit"`
	Body         string    `json:"body"`
	Author       string    `json:"author"`
	Score        int       `json:"score"`
	Permalink    string    `json:"permalink"`
	CreatedAt    time.Time `json:"created_at"`
}

// Reply описывает результат публикации ответа на платформе.
type Reply struct {
	Fullname  string `json:"fullname"`
	Permalink string `json:"permalink"`
}

// ReplyRecord фиксирует один успешно опубликованный ответ:
// кто из воркеров его разместил и на какой комментарий.
type ReplyRecord struct {
	OwnerUserID      int64  `json:"owner_user_id"`
	CommentFullname  string `json:"comment_fullname"`
	CommentPermalink string `json:"comment_permalink"`
	Permalink        string `json:"permalink"`
	Text             string `json:"text"`
}

// WorkerCredential содержит учётные данные Reddit-аккаунта воркера.
type WorkerCredential struct {
	OwnerUserID  int64  `json:"owner_user_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username"`
	Password     string `json:"password"`
}

// Account связывает аккаунт платформы с владельцем-воркером.
// Экземпляр живёт один запуск кампании и после старта не мутирует.
type Account struct {
	OwnerUserID int64
	Username    string
	Client      PlatformClient
}

// CreditAccount представляет баланс пользователя в кредитах.
type CreditAccount struct {
	UserID    int64     `json:"user_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
