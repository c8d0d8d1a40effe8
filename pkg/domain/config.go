package domain

// RateLimits configures the sliding-window limiter. Zero values fall back
// to defaults at construction.
type RateLimits struct {
	RequestsPerMinute int                   `yaml:"requestsPerMinute" json:"requestsPerMinute"`
	RequestsPerHour   int                   `yaml:"requestsPerHour" json:"requestsPerHour"`
	RequestsPerDay    int                   `yaml:"requestsPerDay" json:"requestsPerDay"`
	APICallsPerMinute int                   `yaml:"apiCallsPerMinute" json:"apiCallsPerMinute"`
	APICallsPerHour   int                   `yaml:"apiCallsPerHour" json:"apiCallsPerHour"`
	ThrottleDelayMs   int                   `yaml:"throttleDelayMs" json:"throttleDelayMs"`
	PerAgent          map[string]RateLimits `yaml:"perAgent" json:"perAgent,omitempty"`
}

// RetrySettings configures the retry policy for retryable operation kinds.
type RetrySettings struct {
	MaxRetries     int     `yaml:"maxRetries" json:"maxRetries"`
	InitialDelayMs int     `yaml:"initialDelayMs" json:"initialDelayMs"`
	MaxDelayMs     int     `yaml:"maxDelayMs" json:"maxDelayMs"`
	BackoffBase    float64 `yaml:"backoffBase" json:"backoffBase"`
	Jitter         bool    `yaml:"jitter" json:"jitter"`
}

// CacheSettings configures the result cache.
type CacheSettings struct {
	Enabled       bool           `yaml:"enabled" json:"enabled"`
	DefaultTTLSec int            `yaml:"defaultTtlSec" json:"defaultTtlSec"`
	MaxSize       int            `yaml:"maxSize" json:"maxSize"`
	PerKindTTLSec map[string]int `yaml:"perKindTtlSec" json:"perKindTtlSec,omitempty"`
}

// Limits caps a single execution.
type Limits struct {
	MaxOperationsPerWorkflow int `yaml:"maxOperationsPerWorkflow" json:"maxOperationsPerWorkflow"`
	MaxWorkflowDurationMs    int `yaml:"maxWorkflowDurationMs" json:"maxWorkflowDurationMs"`
	MaxDataModelBytes        int `yaml:"maxDataModelBytes" json:"maxDataModelBytes"`
}

// ResponseShaping bounds the data projection in execution responses.
type ResponseShaping struct {
	MaxStringBytes int `yaml:"maxStringBytes" json:"maxStringBytes"`
	MaxArrayItems  int `yaml:"maxArrayItems" json:"maxArrayItems"`
}

// Config is the recognized configuration surface of the engine.
type Config struct {
	RateLimits RateLimits      `yaml:"rateLimits" json:"rateLimits"`
	Retry      RetrySettings   `yaml:"retry" json:"retry"`
	Cache      CacheSettings   `yaml:"cache" json:"cache"`
	Limits     Limits          `yaml:"limits" json:"limits"`
	Response   ResponseShaping `yaml:"response" json:"response"`
	// ContinueOnError is reserved. The engine always stops on the first
	// terminal failure regardless of this flag.
	ContinueOnError bool `yaml:"continueOnError" json:"continueOnError"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		RateLimits: RateLimits{
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			RequestsPerDay:    10000,
			APICallsPerMinute: 30,
			APICallsPerHour:   500,
			ThrottleDelayMs:   0,
		},
		Retry: RetrySettings{
			MaxRetries:     3,
			InitialDelayMs: 1000,
			MaxDelayMs:     60000,
			BackoffBase:    2.0,
			Jitter:         true,
		},
		Cache: CacheSettings{
			Enabled:       true,
			DefaultTTLSec: 300,
			MaxSize:       1000,
			PerKindTTLSec: map[string]int{
				"ApiCall":       300,
				"FilterData":    60,
				"TransformData": 60,
				"MergeData":     60,
			},
		},
		Limits: Limits{
			MaxOperationsPerWorkflow: 100,
			MaxWorkflowDurationMs:    30000,
			MaxDataModelBytes:        8 << 20,
		},
		Response: ResponseShaping{
			MaxStringBytes: 1024,
			MaxArrayItems:  50,
		},
	}
}
