package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/dreamspy/mnemo/internal/constants"
	"github.com/dreamspy/mnemo/internal/models"
	"github.com/dreamspy/mnemo/internal/tracing"
)

var (
	ErrMissingAPIURL = models.ConfigError{Message: "missing API base URL"}
	ErrMissingDBPath = models.ConfigError{Message: "missing queue database path"}
)

// LoadConfig reads the JSON config file at path, applies defaults and
// environment overrides, and validates the result. A missing file is
// not an error: the client runs on defaults plus environment.
func LoadConfig(path string) (*models.Config, error) {
	var config models.Config

	file, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(file, &config); err != nil {
			return nil, models.ConfigError{Message: "invalid config file: " + err.Error()}
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyDefaults(&config)
	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(home, ".config", "mnemo", "config.json")
}

func applyDefaults(c *models.Config) {
	if c.DatabasePath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.DatabasePath = filepath.Join(home, ".local", "share", "mnemo", "queue.db")
		} else {
			c.DatabasePath = "mnemo-queue.db"
		}
	}
	if c.HTTPTimeoutSec <= 0 {
		c.HTTPTimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}
	if c.Monitor.PollIntervalSec <= 0 {
		c.Monitor.PollIntervalSec = constants.DefaultHealthPollIntervalSec
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultControlPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	tracingDefaults := tracing.DefaultConfig()
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = tracingDefaults.ServiceName
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = tracingDefaults.SampleRate
	}
	// With no collector endpoint configured, traces go to stdout.
	if c.Tracing.OTLPEndpoint == "" {
		c.Tracing.OTLPEndpoint = tracingDefaults.OTLPEndpoint
		c.Tracing.UseStdout = tracingDefaults.UseStdout
	}
	if len(c.DiaryQuestions) == 0 {
		c.DiaryQuestions = DefaultDiaryQuestions()
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("MNEMO_API_URL"); url != "" {
		c.APIBaseURL = url
	}
	if path := os.Getenv("MNEMO_DB_PATH"); path != "" {
		c.DatabasePath = path
	}
	// Tokens belong in the environment or the local store, not the
	// config file; the file value is a convenience fallback.
	if token := os.Getenv("MNEMO_TOKEN"); token != "" {
		c.Token = token
	}
}

func validate(c *models.Config) error {
	if c.APIBaseURL == "" {
		return ErrMissingAPIURL
	}
	if c.DatabasePath == "" {
		return ErrMissingDBPath
	}
	for _, q := range c.DiaryQuestions {
		if q.Key == "" {
			return models.ConfigError{Message: "diary question with empty key"}
		}
		if q.Kind != "scale" && q.Kind != "text" {
			return models.ConfigError{Message: "diary question " + q.Key + " has invalid kind (want scale or text)"}
		}
	}
	return nil
}

// DefaultDiaryQuestions mirrors the question set the diary wizard ships
// with.
func DefaultDiaryQuestions() []models.DiaryQuestion {
	return []models.DiaryQuestion{
		{Key: "headaches", Label: "Headaches (1-10)", Kind: "scale"},
		{Key: "energy", Label: "Energy (1-10)", Kind: "scale"},
		{Key: "hip_pain", Label: "Hip pain (1-10)", Kind: "scale"},
		{Key: "gut", Label: "Gut", Kind: "text"},
		{Key: "physical", Label: "Physical", Kind: "text"},
		{Key: "mental", Label: "Mental", Kind: "text"},
		{Key: "life", Label: "Life", Kind: "text"},
		{Key: "gratitude", Label: "Gratitude", Kind: "text"},
		{Key: "activity", Label: "Activity", Kind: "text"},
	}
}
