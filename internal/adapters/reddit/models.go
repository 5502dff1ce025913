package reddit

import (
	"time"

	"github.com/HACKER097/FogMachine/internal/domain"
)

// thing — универсальный элемент листинга Reddit.
type thing struct {
	Kind string    `json:"kind"`
	Data thingData `json:"data"`
}

type thingData struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Subreddit  string  `json:"subreddit"`
	Title      string  `json:"title"`
	SelfText   string  `json:"selftext"`
	Body       string  `json:"body"`
	Author     string  `json:"author"`
	Score      int     `json:"score"`
	Permalink  string  `json:"permalink"`
	LinkID     string  `json:"link_id"`
	CreatedUTC float64 `json:"created_utc"`
}

type listing struct {
	Data struct {
		Children []thing `json:"children"`
	} `json:"data"`
}

// commentResponse — ответ /api/comment при api_type=json.
type commentResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

const permalinkBase = "https://www.reddit.com"

func (t thing) toPost() domain.Post {
	return domain.Post{
		ID:        t.Data.ID,
		Fullname:  t.Data.Name,
		Subreddit: t.Data.Subreddit,
		Title:     t.Data.Title,
		Body:      t.Data.SelfText,
		Author:    t.Data.Author,
		Score:     t.Data.Score,
		Permalink: permalinkBase + t.Data.Permalink,
		CreatedAt: time.Unix(int64(t.Data.CreatedUTC), 0).UTC(),
	}
}

func (t thing) toComment() domain.Comment {
	return domain.Comment{
		ID:           t.Data.ID,
		Fullname:     t.Data.Name,
		PostFullname: t.Data.LinkID,
		Subreddit:    t.Data.Subreddit,
		Body:         t.Data.Body,
		Author:       t.Data.Author,
		Score:        t.Data.Score,
		Permalink:    permalinkBase + t.Data.Permalink,
		CreatedAt:    time.Unix(int64(t.Data.CreatedUTC), 0).UTC(),
	}
}
