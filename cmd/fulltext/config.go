package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/fulltext/pkg/types"
)

const defaultUserAgent = "fulltext/0.1"

// setDefaults registers the default for every configuration key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("user_agent", defaultUserAgent)

	v.SetDefault("scraper.local_url", "http://localhost:3002")
	v.SetDefault("scraper.cloud_url", "")
	v.SetDefault("scraper.skip_local", false)
	v.SetDefault("scraper.browser", false)
	v.SetDefault("scraper.browser_url", "")
	v.SetDefault("scraper.timeout", 60*time.Second)
	v.SetDefault("scraper.navigation_timeout", 45*time.Second)
	v.SetDefault("scraper.max_attempts", 3)
	v.SetDefault("scraper.retry_backoff", 2*time.Second)

	v.SetDefault("openalex.base_url", "")
	v.SetDefault("openalex.timeout", 30*time.Second)

	v.SetDefault("conversion.backend", string(types.BackendService))
	v.SetDefault("conversion.url", "http://localhost:8010")
	v.SetDefault("conversion.poll_interval", 5*time.Second)
	v.SetDefault("conversion.timeout", 10*time.Minute)
	v.SetDefault("conversion.page_threshold", 100)
	v.SetDefault("conversion.chunk_size", 50)
	v.SetDefault("conversion.quality", string(types.QualityBalanced))
	v.SetDefault("conversion.languages", []string{"en"})

	v.SetDefault("fallback.url", "")
	v.SetDefault("fallback.enabled", true)
	v.SetDefault("fallback.poll_interval", 10*time.Second)
	v.SetDefault("fallback.timeout", 10*time.Minute)

	v.SetDefault("classify.enabled", true)

	v.SetDefault("ai.model", "gpt-5-mini")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.max_retries", 3)

	v.SetDefault("cache.path", defaultCachePath())
	v.SetDefault("cache.ttl", 7*24*time.Hour)

	v.SetDefault("pipeline.acquire_permits", 4)
	v.SetDefault("pipeline.submit_delay", time.Second)
	v.SetDefault("pipeline.conversion_queue_size", 8)
	v.SetDefault("pipeline.convert_permits", 2)
	v.SetDefault("pipeline.post_workers", 2)
	v.SetDefault("pipeline.post_batch_size", 8)
	v.SetDefault("pipeline.stage_timeout", time.Duration(0))
	v.SetDefault("pipeline.output_dir", "documents")
	v.SetDefault("pipeline.work_dir", filepath.Join(os.TempDir(), "fulltext"))
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "fulltext", "cache.db")
}

// loadConfig reads the configuration from v after defaults, file,
// environment, and flags have been applied.
func loadConfig(v *viper.Viper) types.Config {
	http := func(prefix string) types.HTTPConfig {
		return types.HTTPConfig{Timeout: v.GetDuration(prefix + ".timeout"), UserAgent: v.GetString("user_agent")}
	}

	return types.Config{
		Scraper: types.ScraperConfig{
			HTTPConfig:        http("scraper"),
			LocalURL:          v.GetString("scraper.local_url"),
			CloudURL:          v.GetString("scraper.cloud_url"),
			APIKey:            v.GetString("scraper.api_key"),
			SkipLocal:         v.GetBool("scraper.skip_local"),
			Browser:           v.GetBool("scraper.browser"),
			BrowserURL:        v.GetString("scraper.browser_url"),
			NavigationTimeout: v.GetDuration("scraper.navigation_timeout"),
			MaxAttempts:       v.GetInt("scraper.max_attempts"),
			RetryBackoff:      v.GetDuration("scraper.retry_backoff"),
		},
		OpenAlex: types.OpenAlexConfig{
			HTTPConfig: http("openalex"),
			BaseURL:    v.GetString("openalex.base_url"),
			Email:      v.GetString("openalex.email"),
		},
		Conversion: types.ConversionConfig{
			HTTPConfig:    http("conversion"),
			Backend:       types.ConversionBackend(v.GetString("conversion.backend")),
			URL:           v.GetString("conversion.url"),
			PollInterval:  v.GetDuration("conversion.poll_interval"),
			PageThreshold: v.GetInt("conversion.page_threshold"),
			ChunkSize:     v.GetInt("conversion.chunk_size"),
			Quality:       types.Quality(v.GetString("conversion.quality")),
			Languages:     splitList(v.GetStringSlice("conversion.languages")),
		},
		Fallback: types.FallbackConfig{
			HTTPConfig:   types.HTTPConfig{UserAgent: v.GetString("user_agent")},
			URL:          v.GetString("fallback.url"),
			Token:        v.GetString("fallback.token"),
			Enabled:      v.GetBool("fallback.enabled"),
			PollInterval: v.GetDuration("fallback.poll_interval"),
			JobTimeout:   v.GetDuration("fallback.timeout"),
		},
		AI: types.AIConfig{
			Model:      v.GetString("ai.model"),
			APIKey:     v.GetString("ai.api_key"),
			BaseURL:    v.GetString("ai.base_url"),
			MaxRetries: v.GetInt("ai.max_retries"),
		},
		Classify: types.ClassifyConfig{Enabled: v.GetBool("classify.enabled")},
		Cache: types.CacheConfig{
			Path: v.GetString("cache.path"),
			TTL:  v.GetDuration("cache.ttl"),
		},
		Pipeline: types.PipelineConfig{
			AcquirePermits:      v.GetInt("pipeline.acquire_permits"),
			SubmitDelay:         v.GetDuration("pipeline.submit_delay"),
			ConversionQueueSize: v.GetInt("pipeline.conversion_queue_size"),
			ConvertPermits:      v.GetInt("pipeline.convert_permits"),
			PostWorkers:         v.GetInt("pipeline.post_workers"),
			PostBatchSize:       v.GetInt("pipeline.post_batch_size"),
			StageTimeout:        v.GetDuration("pipeline.stage_timeout"),
			OutputDir:           v.GetString("pipeline.output_dir"),
			WorkDir:             v.GetString("pipeline.work_dir"),
		},
	}
}

// splitList accepts both YAML lists and comma-separated environment values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
