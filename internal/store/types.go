package store

// Source is a syndication feed registered by the user.
type Source struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// Article is a unit of content identified by its feed-given URL. The crawl
// stage fills ResolvedURL/OriginalTitle/Content/ImageURL/PublishedAt; the
// evaluation stage fills the translated/summary/score fields.
type Article struct {
	ID                   string   `json:"id"`
	URL                  string   `json:"url"`
	ResolvedURL          string   `json:"resolved_url"`
	OriginalTitle        string   `json:"original_title"`
	TranslatedTitle      string   `json:"translated_title"`
	Summary              string   `json:"summary"`
	ShortSummary         string   `json:"short_summary"`
	Content              *string  `json:"content,omitempty"`
	ImageURL             string   `json:"image_url"`
	PublishedAt          *int64   `json:"published_at,omitempty"`
	CreatedAt            int64    `json:"created_at"`
	ScoreNovelty         *int     `json:"score_novelty,omitempty"`
	ScoreImportance      *int     `json:"score_importance,omitempty"`
	ScoreReliability     *int     `json:"score_reliability,omitempty"`
	ScoreContextValue    *int     `json:"score_context_value,omitempty"`
	ScoreThoughtProvoking *int    `json:"score_thought_provoking,omitempty"`
	AverageScore         *float64 `json:"average_score,omitempty"`
}

// Evaluated reports whether the article has been scored.
func (a *Article) Evaluated() bool { return a.AverageScore != nil }

// Crawlable reports whether the article still needs crawl content.
// An article is crawlable iff content is absent or strictly shorter than
// 200 characters.
func (a *Article) Crawlable() bool {
	return a.Content == nil || len(*a.Content) < 200
}

// Phase tags the source of an ArticleError and the stage of the Worker.
type Phase string

const (
	PhaseCrawl  Phase = "CRAWL"
	PhaseEval   Phase = "EVAL"
	PhaseNotify Phase = "NOTIFY"
)

// ArticleError is the single failure record for a URL; a new failure
// replaces the older one for the same URL.
type ArticleError struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	TitleHint    string `json:"title_hint"`
	ErrorMessage string `json:"error_message"`
	StackTrace   string `json:"stack_trace"`
	Phase        Phase  `json:"phase"`
	Context      string `json:"context"`
	CreatedAt    int64  `json:"created_at"`
}

// BlockedDomain is a host recorded as hostile for the remainder of the
// process lifetime.
type BlockedDomain struct {
	ID        string `json:"id"`
	Domain    string `json:"domain"`
	Reason    string `json:"reason"`
	CreatedAt int64  `json:"created_at"`
}

// CrawlerStatus is the singleton lease/progress row.
type CrawlerStatus struct {
	IsCrawling        bool   `json:"is_crawling"`
	LastRun           *int64 `json:"last_run,omitempty"`
	CurrentTask       string `json:"current_task"`
	ArticlesProcessed int    `json:"articles_processed"`
	LastError         string `json:"last_error"`
	WorkerPID         *int   `json:"worker_pid,omitempty"`
}

// StatusUpdate is a partial update to CrawlerStatus: only non-nil fields
// change.
type StatusUpdate struct {
	IsCrawling        *bool
	LastRun           *int64
	CurrentTask       *string
	ArticlesProcessed *int
	LastError         *string
	WorkerPID         *int
	ClearWorkerPID    bool
}

// Config is the singleton runtime configuration row.
type Config struct {
	LLMAPIKey              string  `json:"llm_api_key"`
	WebhookURL             string  `json:"webhook_url"`
	ScoreThreshold         float64 `json:"score_threshold"`
	FeedFetchConcurrency   int     `json:"feed_fetch_concurrency"`
	MaxConcurrentPerDomain int     `json:"max_concurrent_per_domain"`
	MaxTotalConcurrent     int     `json:"max_total_concurrent"`
	DomainDelayMs          int     `json:"domain_delay_ms"`
	EvalConcurrency        int     `json:"eval_concurrency"`
}
