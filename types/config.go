package types

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose bool          `mapstructure:"verbose"`
	Config  string        `mapstructure:"config"`
	Project ProjectConfig `mapstructure:"project" validate:"required"`
	Data    DataConfig    `mapstructure:"data" validate:"required"`
	Heal    HealConfig    `mapstructure:"heal"`
	Retry   RetryConfig   `mapstructure:"retry"`
}

// ProjectConfig holds project-related settings
type ProjectConfig struct {
	RootDir       string `mapstructure:"rootDir" validate:"required"`
	TasksDir      string `mapstructure:"tasksDir" validate:"required"`
	OutputLogPath string `mapstructure:"outputLogPath" validate:"required"`
}

// DataConfig holds data storage configuration
type DataConfig struct {
	IndexFile   string `mapstructure:"indexFile" validate:"required"`
	SessionFile string `mapstructure:"sessionFile" validate:"required"`
	Format      string `mapstructure:"format" validate:"required,oneof=json yaml"`
}

// HealConfig tunes the circuit breaker that guards automated repair.
type HealConfig struct {
	// FailureThreshold is how many consecutive failures open the breaker.
	FailureThreshold int `mapstructure:"failureThreshold" validate:"omitempty,min=1"`
	// TimeoutSeconds is how long the breaker stays open before a trial call.
	TimeoutSeconds int `mapstructure:"timeoutSeconds" validate:"omitempty,min=1"`
}

// RetryConfig tunes the retry executor that wraps persistence calls.
type RetryConfig struct {
	MaxAttempts       int     `mapstructure:"maxAttempts" validate:"omitempty,min=1"`
	InitialDelayMs    int     `mapstructure:"initialDelayMs" validate:"omitempty,min=1"`
	MaxDelayMs        int     `mapstructure:"maxDelayMs" validate:"omitempty,min=1"`
	BackoffMultiplier float64 `mapstructure:"backoffMultiplier" validate:"omitempty,min=1"`
}
