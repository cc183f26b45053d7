package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cloo-solutions/vocabtool/internal/domain"
)

const (
	OracleOpenAI    = "openai"
	OracleLangchain = "langchain"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DataDir      string `envconfig:"DATA_DIR" default:"data"`
	RegistryFile string `envconfig:"REGISTRY_FILE"`

	// LookupURL points resolution at a remote vocabulary server instead of
	// the local indexes.
	LookupURL   string `envconfig:"LOOKUP_URL"`
	LookupToken string `envconfig:"LOOKUP_TOKEN"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"vocabularies"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OracleProvider string  `envconfig:"ORACLE_PROVIDER"`
	OpenAIAPIKey   string  `envconfig:"OPENAI_API_KEY"`
	OpenAIModel    string  `envconfig:"OPENAI_MODEL"`
	OpenAIBaseURL  string  `envconfig:"OPENAI_BASE_URL"`
	LLMHost        string  `envconfig:"LLM_HOST" default:"http://localhost:11434/v1"`
	LLMModel       string  `envconfig:"LLM_MODEL" default:"llama3.1"`
	LLMToken       string  `envconfig:"LLM_TOKEN"`
	OracleRPS      float64 `envconfig:"ORACLE_RPS" default:"0"`
	OracleBurst    int     `envconfig:"ORACLE_BURST" default:"1"`

	MaxAttempts         int           `envconfig:"MAX_ATTEMPTS" default:"5"`
	AcceptableGrades    string        `envconfig:"ACCEPTABLE_GRADES" default:"A,B"`
	CandidateGrades     string        `envconfig:"CANDIDATE_GRADES" default:"A"`
	RequireDisplayMatch bool          `envconfig:"REQUIRE_DISPLAY_MATCH" default:"true"`
	LookupTimeout       time.Duration `envconfig:"LOOKUP_TIMEOUT" default:"10s"`
	OracleTimeout       time.Duration `envconfig:"ORACLE_TIMEOUT" default:"60s"`

	RelevanceCutoff float64 `envconfig:"RELEVANCE_CUTOFF" default:"-5"`
	DefaultPageSize int     `envconfig:"DEFAULT_PAGE_SIZE" default:"20"`
	MaxPageSize     int     `envconfig:"MAX_PAGE_SIZE" default:"200"`

	ReloadInterval   time.Duration `envconfig:"RELOAD_INTERVAL" default:"0s"`
	BatchConcurrency int           `envconfig:"BATCH_CONCURRENCY" default:"4"`
	MaxBatch         int           `envconfig:"MAX_BATCH" default:"50"`

	APIToken string `envconfig:"API_TOKEN"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("VOCAB", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks settings envconfig cannot express.
func (c *Config) Validate() error {
	c.OracleProvider = strings.ToLower(strings.TrimSpace(c.OracleProvider))
	switch c.OracleProvider {
	case "", OracleOpenAI, OracleLangchain:
	default:
		return fmt.Errorf("unknown oracle provider %q", c.OracleProvider)
	}
	if _, err := c.Grades(); err != nil {
		return fmt.Errorf("invalid VOCAB_ACCEPTABLE_GRADES: %w", err)
	}
	if _, err := c.CandidateGradeList(); err != nil {
		return fmt.Errorf("invalid VOCAB_CANDIDATE_GRADES: %w", err)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("VOCAB_MAX_ATTEMPTS must be at least 1")
	}
	if c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("VOCAB_DEFAULT_PAGE_SIZE must not exceed VOCAB_MAX_PAGE_SIZE")
	}
	return nil
}

// Grades parses AcceptableGrades.
func (c *Config) Grades() ([]domain.Grade, error) {
	return domain.ParseGrades(c.AcceptableGrades)
}

// CandidateGradeList parses CandidateGrades, the grades a multi-candidate
// pass accepts.
func (c *Config) CandidateGradeList() ([]domain.Grade, error) {
	return domain.ParseGrades(c.CandidateGrades)
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" || c.S3AccessKey != ""
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// HasOracle reports whether an oracle can be constructed. With no explicit
// provider an OpenAI key selects OpenAI.
func (c *Config) HasOracle() bool {
	return c.Oracle() != ""
}

// Oracle returns the effective oracle provider, or "" when none is configured.
func (c *Config) Oracle() string {
	switch c.OracleProvider {
	case OracleOpenAI:
		if c.OpenAIAPIKey == "" {
			return ""
		}
		return OracleOpenAI
	case OracleLangchain:
		return OracleLangchain
	}
	if c.OpenAIAPIKey != "" {
		return OracleOpenAI
	}
	return ""
}

func (c *Config) HasRemoteLookup() bool {
	return c.LookupURL != ""
}
