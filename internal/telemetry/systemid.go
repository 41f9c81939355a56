package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pavewatch/pavewatch-go/internal/privacy"
)

// systemIDFile is the well-known name under the config directory.
const systemIDFile = ".system_id"

// LoadOrCreateSystemID loads an existing system ID from the config directory
// or creates and persists a new one. The ID is an anonymous installation
// identifier; it carries no hardware or operator information.
func LoadOrCreateSystemID(configDir string) (string, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	idFile := filepath.Join(configDir, systemIDFile)

	if data, err := os.ReadFile(idFile); err == nil {
		id := strings.TrimSpace(string(data))
		if privacy.IsValidSystemID(id) {
			return id, nil
		}
	}

	id, err := privacy.GenerateSystemID()
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(idFile, []byte(id), 0o644); err != nil {
		return "", fmt.Errorf("failed to save system ID: %w", err)
	}

	return id, nil
}
