package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	FlyAPIToken string // FLY_API_TOKEN (required)
	FlyOrgSlug  string // FLY_ORG_SLUG (required)
	FlyAPIURL   string // FLYWATCH_API_URL (default "https://api.machines.dev")

	// Storage: postgres when FLYWATCH_DATABASE_URL is set, otherwise an
	// embedded sqlite file.
	DatabaseURL string // FLYWATCH_DATABASE_URL (optional)
	SQLitePath  string // FLYWATCH_SQLITE_PATH (default "fly-checker.db")

	// Notifier channels. Discord wins when both are configured.
	DiscordWebhookURL string // DISCORD_WEBHOOK_URL (optional)
	TelegramBotToken  string // TELEGRAM_BOT_TOKEN (optional)
	TelegramChatID    string // TELEGRAM_CHAT_ID (optional)

	// Serve mode
	CheckInterval time.Duration // FLYWATCH_CHECK_INTERVAL (default 5m)
	HTTPAddr      string        // FLYWATCH_HTTP_ADDR (default ":8080")

	// Optional NATS transition event publishing (empty = disabled).
	NATSURL string // FLYWATCH_NATS_URL

	// Ledger archive settings
	ArchiveInterval   time.Duration // FLYWATCH_ARCHIVE_INTERVAL (default 1h; 0 = disabled)
	ArchiveS3Bucket   string        // FLYWATCH_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // FLYWATCH_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // FLYWATCH_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Prefix   string        // FLYWATCH_ARCHIVE_S3_PREFIX (default "flywatch/ledger")
}

func Load() (*Config, error) {
	c := &Config{
		FlyAPIToken:       os.Getenv("FLY_API_TOKEN"),
		FlyOrgSlug:        os.Getenv("FLY_ORG_SLUG"),
		FlyAPIURL:         envOrDefault("FLYWATCH_API_URL", "https://api.machines.dev"),
		DatabaseURL:       os.Getenv("FLYWATCH_DATABASE_URL"),
		SQLitePath:        envOrDefault("FLYWATCH_SQLITE_PATH", "fly-checker.db"),
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:    os.Getenv("TELEGRAM_CHAT_ID"),
		HTTPAddr:          envOrDefault("FLYWATCH_HTTP_ADDR", ":8080"),
		NATSURL:           os.Getenv("FLYWATCH_NATS_URL"),
		ArchiveS3Bucket:   os.Getenv("FLYWATCH_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("FLYWATCH_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("FLYWATCH_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Prefix:   envOrDefault("FLYWATCH_ARCHIVE_S3_PREFIX", "flywatch/ledger"),
	}
	if c.FlyAPIToken == "" {
		return nil, fmt.Errorf("FLY_API_TOKEN is required")
	}
	if c.FlyOrgSlug == "" {
		return nil, fmt.Errorf("FLY_ORG_SLUG is required")
	}
	if c.TelegramBotToken != "" && c.TelegramChatID == "" {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	var err error
	if c.CheckInterval, err = durationEnv("FLYWATCH_CHECK_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	if c.ArchiveInterval, err = durationEnv("FLYWATCH_ARCHIVE_INTERVAL", "1h"); err != nil {
		return nil, err
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
