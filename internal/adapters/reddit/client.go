package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/HACKER097/FogMachine/internal/domain"
	"github.com/HACKER097/FogMachine/internal/infra/metrics"
)

const (
	defaultBaseURL = "https://oauth.reddit.com"
	defaultAuthURL = "https://www.reddit.com"
)

// Config описывает параметры доступа к Reddit API.
type Config struct {
	BaseURL    string
	AuthURL    string
	UserAgent  string
	Timeout    time.Duration
	RequestGap time.Duration
}

// Factory создаёт клиентов платформы из учётных данных воркеров.
type Factory struct {
	cfg Config
}

// NewFactory создаёт фабрику клиентов.
func NewFactory(cfg Config) *Factory {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "FogMachine"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.AuthURL = strings.TrimRight(cfg.AuthURL, "/")
	return &Factory{cfg: cfg}
}

var _ domain.PlatformClientFactory = (*Factory)(nil)

// NewClient создаёт клиента, привязанного к одному аккаунту.
func (f *Factory) NewClient(cred domain.WorkerCredential) domain.PlatformClient {
	return &Client{
		http: &http.Client{Timeout: f.cfg.Timeout},
		cfg:  f.cfg,
		cred: cred,
	}
}

// Client выполняет запросы Reddit API от имени одного аккаунта.
// Между запросами выдерживается пауза RequestGap, чтобы не упираться
// в платформенные лимиты одного аккаунта.
type Client struct {
	http *http.Client
	cfg  Config
	cred domain.WorkerCredential

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	lastRequest time.Time
}

var _ domain.PlatformClient = (*Client)(nil)

// HotPosts возвращает горячие посты сабреддита.
func (c *Client) HotPosts(ctx context.Context, subreddit string, limit int) ([]domain.Post, error) {
	if limit <= 0 {
		limit = 25
	}
	endpoint := fmt.Sprintf("%s/r/%s/hot?limit=%d&raw_json=1", c.cfg.BaseURL, url.PathEscape(subreddit), limit)
	var list listing
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &list, "hot_posts", subreddit); err != nil {
		return nil, fmt.Errorf("горячие посты r/%s: %w", subreddit, err)
	}
	posts := make([]domain.Post, 0, len(list.Data.Children))
	for _, child := range list.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		posts = append(posts, child.toPost())
	}
	return posts, nil
}

// TopComments возвращает верхнеуровневые комментарии поста.
func (c *Client) TopComments(ctx context.Context, post domain.Post, limit int) ([]domain.Comment, error) {
	if limit <= 0 {
		limit = 25
	}
	endpoint := fmt.Sprintf("%s/comments/%s?sort=top&depth=1&limit=%d&raw_json=1", c.cfg.BaseURL, url.PathEscape(post.ID), limit)
	// Ответ — массив из двух листингов: сам пост и его комментарии.
	var lists []listing
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &lists, "comments", post.ID); err != nil {
		return nil, fmt.Errorf("комментарии поста %s: %w", post.ID, err)
	}
	if len(lists) < 2 {
		return nil, nil
	}
	comments := make([]domain.Comment, 0, limit)
	for _, child := range lists[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		comments = append(comments, child.toComment())
		if len(comments) >= limit {
			break
		}
	}
	return comments, nil
}

// Reply публикует ответ на комментарий или пост по его fullname.
func (c *Client) Reply(ctx context.Context, parentFullname, text string) (domain.Reply, error) {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("thing_id", parentFullname)
	form.Set("text", text)
	var resp commentResponse
	if err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/api/comment", form, &resp, "reply", parentFullname); err != nil {
		return domain.Reply{}, fmt.Errorf("публикация ответа на %s: %w", parentFullname, err)
	}
	if len(resp.JSON.Errors) > 0 {
		return domain.Reply{}, fmt.Errorf("публикация ответа на %s: отклонено платформой: %v", parentFullname, resp.JSON.Errors[0])
	}
	if len(resp.JSON.Data.Things) == 0 {
		return domain.Reply{}, fmt.Errorf("публикация ответа на %s: пустой ответ платформы", parentFullname)
	}
	posted := resp.JSON.Data.Things[0]
	return domain.Reply{
		Fullname:  posted.Data.Name,
		Permalink: permalinkBase + posted.Data.Permalink,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, form url.Values, out any, operation, target string) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}
	if err := c.throttle(ctx); err != nil {
		return err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("reddit", operation, target, start, err)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
		return fmt.Errorf("unauthorized: token rejected")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited: retry after %s", resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.cred.Username)
	form.Set("password", c.cred.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.cred.ClientID, c.cred.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("reddit", "access_token", c.cred.Username, start, err)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("token request: unexpected status %d", resp.StatusCode)
	}
	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("token request: decode response: %w", err)
	}
	if token.Error != "" {
		return "", fmt.Errorf("token request: %s", token.Error)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token request: пустой access_token для %s", c.cred.Username)
	}

	expiresIn := token.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	c.mu.Lock()
	c.token = token.AccessToken
	// Минута запаса, чтобы не ловить истечение в полёте.
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn)*time.Second - time.Minute)
	c.mu.Unlock()
	return token.AccessToken, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) throttle(ctx context.Context) error {
	if c.cfg.RequestGap <= 0 {
		return nil
	}
	c.mu.Lock()
	wait := c.cfg.RequestGap - time.Since(c.lastRequest)
	c.lastRequest = time.Now().Add(maxDuration(wait, 0))
	c.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
