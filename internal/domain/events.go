package domain

// StageStatus — статус этапа, передаваемый вызывающей стороне.
// Значения совпадают с тем, что видит потребитель SSE-потока.
type StageStatus string

const (
	StageFindingSubreddits StageStatus = "Finding subreddits"
	StageFoundSubreddits   StageStatus = "Found subreddits"
	StageGettingPosts      StageStatus = "Getting posts"
	StageGotPosts          StageStatus = "Got posts"
	StageFilteringPosts    StageStatus = "Filtering posts"
	StageFilteredPosts     StageStatus = "Filtered posts"
	StageFilteringComments StageStatus = "Filtering comments"
	StageFilteredComments  StageStatus = "Filtered comments"
	StageReplying          StageStatus = "Replying to comments"
	StageFinished          StageStatus = "Finished replying"
	StageError             StageStatus = "Error"
)

// StageEvent — единица потока прогресса кампании. Поток упорядочен,
// только добавляется и завершается ровно одним терминальным событием.
// В полезной нагрузке только плоские снимки: никаких живых хэндлов платформы.
type StageEvent struct {
	Status     StageStatus   `json:"status"`
	Subreddits []string      `json:"subreddits,omitempty"`
	Posts      []Post        `json:"posts,omitempty"`
	Comments   []Comment     `json:"comments,omitempty"`
	Replies    []ReplyRecord `json:"replies,omitempty"`
	Message    string        `json:"message,omitempty"`
}

// Terminal сообщает, завершает ли событие поток.
func (e StageEvent) Terminal() bool {
	return e.Status == StageFinished || e.Status == StageError
}
