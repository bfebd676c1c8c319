package models

// ConfigError indicates an invalid or incomplete configuration.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

// DiaryQuestion is one configured diary question. Scale questions are
// answered with an integer on the device; text questions are answered
// in free text, which may be parsed server-side from a single raw blob.
type DiaryQuestion struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Kind  string `json:"kind"` // "scale" or "text"
}

// RetryConfig controls exponential backoff for local retries
// (store initialization, connectivity probes).
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// MonitorConfig controls the connectivity monitor in agent mode.
type MonitorConfig struct {
	PollIntervalSec int `json:"pollIntervalSec"`
}

// ServerConfig controls the local control endpoint in agent mode.
type ServerConfig struct {
	Port            int `json:"port"`
	ReadTimeoutSec  int `json:"readTimeoutSec"`
	WriteTimeoutSec int `json:"writeTimeoutSec"`
}

// TracingConfig mirrors the OpenTelemetry setup options.
type TracingConfig struct {
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"useStdout"`
}

// Config is the top-level client configuration, loaded from a JSON file
// with environment overrides.
type Config struct {
	APIBaseURL     string          `json:"apiBaseUrl"`
	DatabasePath   string          `json:"dbPath"`
	Token          string          `json:"token,omitempty"`
	LogLevel       string          `json:"logLevel"`
	HTTPTimeoutSec int             `json:"httpTimeoutSec"`
	Retry          RetryConfig     `json:"retry"`
	Monitor        MonitorConfig   `json:"monitor"`
	Server         ServerConfig    `json:"server"`
	Tracing        TracingConfig   `json:"tracing"`
	DiaryQuestions []DiaryQuestion `json:"diaryQuestions"`
}

// ScaleQuestions returns the configured scale questions.
func (c *Config) ScaleQuestions() []DiaryQuestion {
	return c.questionsOfKind("scale")
}

// TextQuestions returns the configured free-text questions.
func (c *Config) TextQuestions() []DiaryQuestion {
	return c.questionsOfKind("text")
}

func (c *Config) questionsOfKind(kind string) []DiaryQuestion {
	var out []DiaryQuestion
	for _, q := range c.DiaryQuestions {
		if q.Kind == kind {
			out = append(out, q)
		}
	}
	return out
}
