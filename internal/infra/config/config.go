package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		Campaign string `envconfig:"CAMPAIGN_QUEUE_KEY" default:"campaign_jobs"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"120s"`
	} `envconfig:""`

	Reddit struct {
		BaseURL    string        `envconfig:"REDDIT_BASE_URL"`
		AuthURL    string        `envconfig:"REDDIT_AUTH_URL"`
		UserAgent  string        `envconfig:"REDDIT_USER_AGENT" default:"FogMachine"`
		Timeout    time.Duration `envconfig:"REDDIT_TIMEOUT" default:"30s"`
		RequestGap time.Duration `envconfig:"REDDIT_REQUEST_GAP" default:"1s"`
	} `envconfig:""`

	Limits struct {
		PostCount      int   `envconfig:"POST_COUNT_DEFAULT" default:"5"`
		CommentCount   int   `envconfig:"COMMENT_COUNT_DEFAULT" default:"5"`
		CreditPerReply int64 `envconfig:"CREDIT_PER_REPLY" default:"5"`
	} `envconfig:""`

	Ops struct {
		TGBotToken string `envconfig:"OPS_TG_BOT_TOKEN"`
		TGChatID   int64  `envconfig:"OPS_TG_CHAT_ID"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
