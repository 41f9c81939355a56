// Package conf loads, validates and persists the application configuration.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// DetectorSettings configures the defect detection collaborator, an external
// model-serving endpoint consuming pavement imagery.
type DetectorSettings struct {
	Endpoint            string        // base URL of the detection service
	ConfidenceThreshold float64       // minimum confidence for reported detections
	MetersPerPixel      float64       // ground resolution used to convert bbox areas to m2
	Timeout             time.Duration // per-request timeout for detect calls
	Debug               bool          // true to enable debug logging for detector calls
}

// LLMSettings configures the language model collaborator used for narrative
// analysis, query generation and answer composition.
type LLMSettings struct {
	Provider    string        // provider name, "gemini" is currently the only implementation
	APIKey      string        // api key for the provider
	Model       string        // model identifier
	Temperature float64       // sampling temperature
	TopP        float64       // nucleus sampling parameter
	MaxTokens   int           // maximum output tokens per request
	Timeout     time.Duration // per-request timeout
}

// ScoringSettings configures the condition scoring engine.
type ScoringSettings struct {
	TablesPath string // optional path to external scoring tables, empty uses embedded defaults
}

// ChatSettings configures the conversational query path.
type ChatSettings struct {
	MaxHistory    int           // session messages included in prompts
	QueryRowLimit int           // row cap applied to generated queries
	QueryTimeout  time.Duration // timeout for query execution
}

// WorkflowSettings configures pipeline execution.
type WorkflowSettings struct {
	MaxSteps int // node execution budget per pipeline run
}

// MQTTSettings configures publishing of completed assessments to a broker.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT publishing
	Broker   string // broker URL, e.g. tcp://localhost:1883
	Topic    string // topic to publish assessments to
	Username string // broker username
	Password string // broker password
	Retain   bool   // true to set the retained flag on published messages
}

// SentrySettings configures optional error telemetry. Disabled by default.
type SentrySettings struct {
	Enabled bool   // true to enable Sentry error reporting
	DSN     string // Sentry project DSN
}

// MainSettings holds node identity and base logging configuration.
type MainSettings struct {
	Name string    // name of this node, used to identify the source of assessments
	Log  LogConfig // main log configuration
}

// WebServerSettings holds the HTTP API configuration.
type WebServerSettings struct {
	Debug   bool      // true to enable debug mode
	Enabled bool      // true to enable the web server
	Port    string    // port for the web server
	Log     LogConfig // web server log configuration
}

// OutputSettings selects and configures the record store backend.
type OutputSettings struct {
	SQLite struct {
		Enabled bool   // true to enable sqlite output
		Path    string // path to sqlite database
	}

	MySQL struct {
		Enabled  bool   // true to enable mysql output
		Username string // username for mysql database
		Password string // password for mysql database
		Database string // database name for mysql database
		Host     string // host for mysql database
		Port     string // port for mysql database
	}
}

// IntegrationSettings groups outbound integrations.
type IntegrationSettings struct {
	MQTT MQTTSettings // MQTT broker settings
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main MainSettings // node identity and main log

	Detector DetectorSettings // detection collaborator
	LLM      LLMSettings      // language model collaborator
	Scoring  ScoringSettings  // condition scoring
	Chat     ChatSettings     // conversational queries
	Workflow WorkflowSettings // pipeline execution

	WebServer WebServerSettings // HTTP API

	Output OutputSettings // record store backends

	Integrations IntegrationSettings // outbound integrations

	Sentry SentrySettings // error telemetry
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled     bool         // true to enable this log
	Path        string       // Path to the log file
	Rotation    RotationType // Type of log rotation
	MaxSize     int64        // Max size in bytes for RotationSize
	RotationDay string       // Day of the week for RotationWeekly
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Defaults for every configuration parameter, defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveSettings saves the current settings to the configuration file using an
// atomic write.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	settingsCopy := *settingsInstance

	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write to a temporary file first for an atomic replace
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// Rename fails across filesystems, fall back to copy & delete
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}

// DSN assembles the MySQL connection string from the output settings.
func (s *Settings) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		s.Output.MySQL.Username,
		s.Output.MySQL.Password,
		s.Output.MySQL.Host,
		s.Output.MySQL.Port,
		s.Output.MySQL.Database,
	)
}
