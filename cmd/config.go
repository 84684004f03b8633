package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/devloophq/devloop/internal/healing"
	"github.com/devloophq/devloop/internal/logging"
	"github.com/devloophq/devloop/internal/resilience"
	"github.com/devloophq/devloop/internal/taskflow"
	"github.com/devloophq/devloop/models"
	"github.com/devloophq/devloop/store"
	"github.com/devloophq/devloop/types"
)

const (
	configName = ".devloop"
	envPrefix  = "DEVLOOP"
)

// GlobalAppConfig holds the global application configuration instance.
var GlobalAppConfig types.AppConfig

// InitConfig reads in config file and ENV variables if set.
func InitConfig() {
	// Load .env file first if present; it's fine when it doesn't exist.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix) // e.g., DEVLOOP_VERBOSE
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfgFileFlag := viper.GetString("config")
	projectDir := viper.GetString("project.rootDir")
	if projectDir == "" {
		projectDir = ".devloop"
	}

	if cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else if _, err := os.Stat(projectDir); !os.IsNotExist(err) {
		viper.AddConfigPath(projectDir) // ./.devloop/.devloop.yaml
		viper.SetConfigName(configName)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home) // $HOME/.devloop.yaml
		viper.AddConfigPath(".")
		viper.SetConfigName(configName)
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		if cfgFileFlag != "" {
			fmt.Fprintln(os.Stderr, "Error: specified config file not found:", cfgFileFlag)
		} else if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
		}
	}

	viper.SetDefault("project.rootDir", ".devloop")
	viper.SetDefault("project.tasksDir", "tasks")
	viper.SetDefault("project.outputLogPath", "logs/devloop.log")
	viper.SetDefault("data.indexFile", "index.json")
	viper.SetDefault("data.sessionFile", "session.json")
	viper.SetDefault("data.format", "json")
	viper.SetDefault("heal.failureThreshold", resilience.DefaultFailureThreshold)
	viper.SetDefault("heal.timeoutSeconds", int(resilience.DefaultOpenTimeout/time.Second))
	viper.SetDefault("retry.maxAttempts", 3)
	viper.SetDefault("retry.initialDelayMs", 100)
	viper.SetDefault("retry.maxDelayMs", 5000)
	viper.SetDefault("retry.backoffMultiplier", 2.0)

	if err := viper.Unmarshal(&GlobalAppConfig); err != nil {
		HandleFatalError("Failed to load configuration.", err)
	}
	if err := models.ValidateStruct(&GlobalAppConfig); err != nil {
		HandleFatalError("Invalid configuration.", err)
	}
}

// GetConfig returns the loaded application configuration.
func GetConfig() *types.AppConfig {
	return &GlobalAppConfig
}

// rootDir returns the project state directory (default .devloop).
func rootDir() string {
	return GetConfig().Project.RootDir
}

// indexPath returns the full path to the index file.
func indexPath() string {
	cfg := GetConfig()
	return filepath.Join(cfg.Project.RootDir, cfg.Data.IndexFile)
}

// sessionPath returns the full path to the session-state record.
func sessionPath() string {
	cfg := GetConfig()
	return filepath.Join(cfg.Project.RootDir, cfg.Data.SessionFile)
}

// tasksDir returns the directory holding task documents.
func tasksDir() string {
	cfg := GetConfig()
	return filepath.Join(cfg.Project.RootDir, cfg.Project.TasksDir)
}

// auditLogPath returns the healing audit log location.
func auditLogPath() string {
	return filepath.Join(rootDir(), "logs", "healing-audit.log")
}

// GetFileSystem builds the retry-wrapped persistence layer.
func GetFileSystem() *store.FileSystem {
	cfg := GetConfig()
	retrier := resilience.NewRetrier(resilience.RetryPolicy{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialDelay:      time.Duration(cfg.Retry.InitialDelayMs) * time.Millisecond,
		MaxDelay:          time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	})
	return store.NewFileSystem(afero.NewOsFs(), retrier)
}

// GetIndexStore builds the index repository from configuration.
func GetIndexStore(fsys *store.FileSystem) (*store.IndexStore, error) {
	return store.NewIndexStore(fsys, indexPath(), GetConfig().Data.Format)
}

// GetSessionStore builds the session-state store from configuration.
func GetSessionStore(fsys *store.FileSystem) *store.SessionStore {
	return store.NewSessionStore(fsys, sessionPath())
}

// GetLogger opens the project log file.
func GetLogger() logging.Logger {
	cfg := GetConfig()
	path := filepath.Join(cfg.Project.RootDir, cfg.Project.OutputLogPath)
	log, err := logging.New(path, viper.GetBool("verbose"))
	if err != nil {
		// Commands still work without a log file.
		return logging.Nop()
	}
	return log
}

// GetService wires the task service over the configured stores.
func GetService() (*taskflow.Service, error) {
	fsys := GetFileSystem()
	idx, err := GetIndexStore(fsys)
	if err != nil {
		return nil, err
	}
	return taskflow.NewService(idx, fsys, tasksDir(), GetLogger()), nil
}

// GetHealingCoordinator wires the breaker, audit log and coordinator.
func GetHealingCoordinator(fsys *store.FileSystem) *healing.Coordinator {
	cfg := GetConfig()
	breaker := resilience.NewCircuitBreaker(
		cfg.Heal.FailureThreshold,
		time.Duration(cfg.Heal.TimeoutSeconds)*time.Second,
	)
	audit := healing.NewAuditLog(fsys, auditLogPath())
	return healing.NewCoordinator(breaker, audit, GetLogger())
}
