package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	LLM       LLMConfig
	BuildHost BuildHostConfig
	Jobs      JobsConfig
	Diff      DiffConfig
}

type LLMConfig struct {
	// Empty APIKey selects the fake client (offline mode).
	APIKey        string
	PrimaryModel  string
	FallbackModel string
}

type BuildHostConfig struct {
	URL            string
	RequestTimeout time.Duration
	PollInterval   time.Duration
	MaxPolls       int
}

type JobsConfig struct {
	// Empty PostgresDSN selects the in-memory store.
	PostgresDSN   string
	TTL           time.Duration
	SweepInterval time.Duration
}

type DiffConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8082", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port: *port,
		Env:  env,
		LLM: LLMConfig{
			APIKey:        strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			PrimaryModel:  firstNonEmpty(os.Getenv("LLM_PRIMARY_MODEL"), "gemini-2.5-pro"),
			FallbackModel: firstNonEmpty(os.Getenv("LLM_FALLBACK_MODEL"), "gemini-2.5-flash"),
		},
		BuildHost: BuildHostConfig{
			URL:            firstNonEmpty(os.Getenv("BUILD_HOST_URL"), "http://localhost:3100"),
			RequestTimeout: durationEnv("BUILD_HOST_TIMEOUT", 2*time.Minute),
			PollInterval:   durationEnv("BUILD_HOST_POLL_INTERVAL", 5*time.Second),
			MaxPolls:       intEnv("BUILD_HOST_MAX_POLLS", 60),
		},
		Jobs: JobsConfig{
			PostgresDSN:   strings.TrimSpace(os.Getenv("JOB_STORE_PG_DSN")),
			TTL:           durationEnv("JOB_TTL", 24*time.Hour),
			SweepInterval: durationEnv("JOB_SWEEP_INTERVAL", 10*time.Minute),
		},
		Diff: loadDiffConfig(env),
	}, nil
}

func loadDiffConfig(env string) DiffConfig {
	endpoint := resolveDiffEndpoint(env)
	return DiffConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(os.Getenv("DIFF_S3_REGION"), "us-east-1"),
		AccessKey: firstNonEmpty(os.Getenv("DIFF_S3_ACCESS_KEY"), os.Getenv("MINIO_ROOT_USER")),
		SecretKey: firstNonEmpty(os.Getenv("DIFF_S3_SECRET_KEY"), os.Getenv("MINIO_ROOT_PASSWORD")),
		Bucket:    firstNonEmpty(os.Getenv("DIFF_S3_BUCKET"), "miniforge-diffs"),
		UseSSL:    resolveDiffUseSSL(env),
	}
}

func resolveDiffEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("DIFF_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("DIFF_S3_ENDPOINT"))
}

func resolveDiffUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("DIFF_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
