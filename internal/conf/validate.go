// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateDetectorSettings(&settings.Detector); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateLLMSettings(&settings.LLM); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateChatSettings(&settings.Chat); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWorkflowSettings(&settings.Workflow); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMQTTSettings(&settings.Integrations.MQTT); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateDetectorSettings validates the detection collaborator settings
func validateDetectorSettings(settings *DetectorSettings) error {
	var errs []string

	if settings.Endpoint == "" {
		errs = append(errs, "Detector endpoint must not be empty")
	} else if u, err := url.Parse(settings.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, "Detector endpoint must be a valid http or https URL")
	}

	if settings.ConfidenceThreshold < 0 || settings.ConfidenceThreshold > 1 {
		errs = append(errs, "Detector confidence threshold must be between 0 and 1")
	}

	if settings.MetersPerPixel <= 0 {
		errs = append(errs, "Detector meters-per-pixel must be greater than 0")
	}

	if settings.Timeout <= 0 {
		errs = append(errs, "Detector timeout must be greater than 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("Detector settings errors: %v", errs)
	}

	return nil
}

// validateLLMSettings validates the language model collaborator settings
func validateLLMSettings(settings *LLMSettings) error {
	var errs []string

	switch strings.ToLower(settings.Provider) {
	case "gemini":
		// supported providers
	default:
		errs = append(errs, fmt.Sprintf("LLM provider '%s' is not supported", settings.Provider))
	}

	if settings.Model == "" {
		errs = append(errs, "LLM model must not be empty")
	}

	if settings.Temperature < 0 || settings.Temperature > 2 {
		errs = append(errs, "LLM temperature must be between 0 and 2")
	}

	if settings.TopP < 0 || settings.TopP > 1 {
		errs = append(errs, "LLM top-p must be between 0 and 1")
	}

	if settings.MaxTokens <= 0 {
		errs = append(errs, "LLM max tokens must be greater than 0")
	}

	if settings.Timeout <= 0 {
		errs = append(errs, "LLM timeout must be greater than 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("LLM settings errors: %v", errs)
	}

	return nil
}

// validateChatSettings validates the conversational query settings
func validateChatSettings(settings *ChatSettings) error {
	var errs []string

	if settings.MaxHistory < 0 {
		errs = append(errs, "Chat max history must be at least 0")
	}

	if settings.QueryRowLimit <= 0 {
		errs = append(errs, "Chat query row limit must be greater than 0")
	}

	if settings.QueryTimeout <= 0 {
		errs = append(errs, "Chat query timeout must be greater than 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("Chat settings errors: %v", errs)
	}

	return nil
}

// validateWorkflowSettings validates pipeline execution settings
func validateWorkflowSettings(settings *WorkflowSettings) error {
	if settings.MaxSteps <= 0 {
		return fmt.Errorf("Workflow settings errors: [Workflow max steps must be greater than 0]")
	}
	return nil
}

// validateWebServerSettings validates the WebServer-specific settings
func validateWebServerSettings(settings *WebServerSettings) error {
	if settings.Enabled {
		if settings.Port == "" {
			return fmt.Errorf("WebServer settings errors: [Port must not be empty]")
		}
		port, err := strconv.Atoi(settings.Port)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("WebServer settings errors: [Port must be a number between 1 and 65535]")
		}
	}
	return nil
}

// validateOutputSettings validates the record store settings
func validateOutputSettings(settings *OutputSettings) error {
	var errs []string

	if settings.SQLite.Enabled && settings.MySQL.Enabled {
		errs = append(errs, "Only one output database can be enabled at a time")
	}

	if settings.SQLite.Enabled && settings.SQLite.Path == "" {
		errs = append(errs, "SQLite path must not be empty when SQLite output is enabled")
	}

	if settings.MySQL.Enabled {
		if settings.MySQL.Host == "" {
			errs = append(errs, "MySQL host must not be empty when MySQL output is enabled")
		}
		if settings.MySQL.Database == "" {
			errs = append(errs, "MySQL database must not be empty when MySQL output is enabled")
		}
		if _, err := strconv.Atoi(settings.MySQL.Port); err != nil {
			errs = append(errs, "MySQL port must be a number")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("Output settings errors: %v", errs)
	}

	return nil
}

// validateMQTTSettings validates the MQTT integration settings
func validateMQTTSettings(settings *MQTTSettings) error {
	var errs []string

	if settings.Enabled {
		if settings.Broker == "" {
			errs = append(errs, "MQTT broker must not be empty when MQTT is enabled")
		}
		if settings.Topic == "" {
			errs = append(errs, "MQTT topic must not be empty when MQTT is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("MQTT settings errors: %v", errs)
	}

	return nil
}
