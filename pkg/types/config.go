package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "fulltext/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ScraperConfig holds settings for the scraper service cascade.
type ScraperConfig struct {
	HTTPConfig `yaml:",inline"`

	// LocalURL is the base URL of the self-hosted scraping provider.
	// Empty disables the local stage.
	LocalURL string `json:"local_url" yaml:"local_url"`

	// CloudURL is the base URL of the cloud provider used with the stealth proxy.
	// Empty disables the cloud-stealth stage.
	CloudURL string `json:"cloud_url" yaml:"cloud_url"`

	// APIKey authenticates against the cloud provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// SkipLocal removes the local stage even when LocalURL is set.
	SkipLocal bool `json:"skip_local" yaml:"skip_local"`

	// Browser enables the headless-browser stage.
	Browser bool `json:"browser" yaml:"browser"`

	// BrowserURL is the DevTools WebSocket URL of a remote Chrome. Empty
	// launches a local headless Chrome.
	BrowserURL string `json:"browser_url,omitempty" yaml:"browser_url,omitempty"`

	// NavigationTimeout bounds one headless navigation (default 45s).
	NavigationTimeout time.Duration `json:"navigation_timeout" yaml:"navigation_timeout"`

	// MaxAttempts is the number of local-provider attempts on transient errors (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// RetryBackoff is the base backoff between local-provider attempts (default 2s).
	RetryBackoff time.Duration `json:"retry_backoff" yaml:"retry_backoff"`
}

// OpenAlexConfig holds settings for the open-access metadata index.
type OpenAlexConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL overrides the OpenAlex works endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Email is sent as the mailto parameter for polite pool access.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// ConversionBackend identifies the PDF conversion tool.
type ConversionBackend string

const (
	BackendService    ConversionBackend = "service"
	BackendMarkitdown ConversionBackend = "markitdown"
)

// ConversionConfig holds settings for the document-conversion stage.
type ConversionConfig struct {
	HTTPConfig `yaml:",inline"`

	// Backend selects the conversion tool: service or markitdown.
	Backend ConversionBackend `json:"backend" yaml:"backend"`

	// URL is the base URL of the conversion service.
	URL string `json:"url" yaml:"url"`

	// PollInterval is the delay between job polls (default 5s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// PageThreshold is the page count at or above which PDFs are chunked (default 100).
	PageThreshold int `json:"page_threshold" yaml:"page_threshold"`

	// ChunkSize is the number of pages per chunk (default 50).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// Quality and Languages are the defaults for RetrievalOptions.
	Quality   Quality  `json:"quality" yaml:"quality"`
	Languages []string `json:"languages" yaml:"languages"`
}

// FallbackConfig holds settings for the slow, VPN-gated retrieval service.
type FallbackConfig struct {
	HTTPConfig `yaml:",inline"`

	// URL is the base URL of the fallback service. Empty disables it.
	URL string `json:"url" yaml:"url"`

	// Token is sent as a bearer token when set.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	// Enabled is the default for RetrievalOptions.EnableFallback.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// PollInterval is the delay between job polls (default 10s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// JobTimeout is the per-job timeout forwarded on submission (default 10m).
	JobTimeout time.Duration `json:"job_timeout" yaml:"job_timeout"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "gpt-5-mini").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint for compatible gateways.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ClassifyConfig holds settings for the content classifier.
type ClassifyConfig struct {
	// Enabled is the default for RetrievalOptions.EnableClassification.
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// CacheConfig holds settings for the durable cache.
type CacheConfig struct {
	// Path is the SQLite database file. Empty keeps the cache in memory.
	Path string `json:"path" yaml:"path"`

	// TTL is how long entries stay fresh (default 7 days).
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// PipelineConfig holds settings for the streaming acquisition pipeline.
type PipelineConfig struct {
	// AcquirePermits limits concurrent acquisition submissions (default 4).
	AcquirePermits int `json:"acquire_permits" yaml:"acquire_permits"`

	// SubmitDelay is the minimum delay between acquisition submissions (default 1s).
	SubmitDelay time.Duration `json:"submit_delay" yaml:"submit_delay"`

	// ConversionQueueSize bounds raw documents waiting for conversion (default 8).
	ConversionQueueSize int `json:"conversion_queue_size" yaml:"conversion_queue_size"`

	// ConvertPermits limits concurrent conversions (default 2).
	ConvertPermits int `json:"convert_permits" yaml:"convert_permits"`

	// PostWorkers is the number of post-processing workers (default 2).
	PostWorkers int `json:"post_workers" yaml:"post_workers"`

	// PostBatchSize caps documents per post-processing call (default 8).
	PostBatchSize int `json:"post_batch_size" yaml:"post_batch_size"`

	// StageTimeout bounds each stage as a whole. Zero waits indefinitely.
	StageTimeout time.Duration `json:"stage_timeout" yaml:"stage_timeout"`

	// OutputDir is where the CLI writes one markdown file per document.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// WorkDir holds downloaded raw documents awaiting conversion.
	WorkDir string `json:"work_dir" yaml:"work_dir"`
}

// Config groups all component configurations.
type Config struct {
	Scraper    ScraperConfig    `json:"scraper" yaml:"scraper"`
	OpenAlex   OpenAlexConfig   `json:"openalex" yaml:"openalex"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	Fallback   FallbackConfig   `json:"fallback" yaml:"fallback"`
	AI         AIConfig         `json:"ai" yaml:"ai"`
	Classify   ClassifyConfig   `json:"classify" yaml:"classify"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	Pipeline   PipelineConfig   `json:"pipeline" yaml:"pipeline"`
}

// RetrievalDefaults derives the default RetrievalOptions from the configuration.
func (c Config) RetrievalDefaults() RetrievalOptions {
	return RetrievalOptions{
		Quality:              c.Conversion.Quality,
		OCRLanguages:         c.Conversion.Languages,
		EnableClassification: c.Classify.Enabled,
		EnableFallback:       c.Fallback.Enabled && c.Fallback.URL != "",
		ScrapeTimeout:        c.Scraper.Timeout,
		LookupTimeout:        c.OpenAlex.Timeout,
		ConvertTimeout:       c.Conversion.Timeout,
		FallbackTimeout:      c.Fallback.JobTimeout,
	}
}
