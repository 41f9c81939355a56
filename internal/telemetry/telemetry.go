// Package telemetry provides privacy-compliant error tracking. Reporting is
// strictly opt-in and scrubs identifying data before events leave the process.
package telemetry

import (
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/pavewatch/pavewatch-go/internal/buildinfo"
	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/pavewatch/pavewatch-go/internal/privacy"
)

// sentryInitialized tracks whether Sentry has been initialized
var sentryInitialized bool

// PlatformInfo holds privacy-safe platform information for telemetry
type PlatformInfo struct {
	OS           string `json:"os"`
	Architecture string `json:"arch"`
	Container    bool   `json:"container"`
	NumCPU       int    `json:"num_cpu"`
	GoVersion    string `json:"go_version"`
}

// collectPlatformInfo gathers privacy-safe platform information for telemetry
func collectPlatformInfo() PlatformInfo {
	return PlatformInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		Container:    conf.RunningInContainer(),
		NumCPU:       runtime.NumCPU(),
		GoVersion:    runtime.Version(),
	}
}

// InitSentry initializes the Sentry SDK and attaches the error-package
// reporter. It does nothing unless telemetry is explicitly enabled; the
// privacy scrubber is installed either way so enhanced-error messages are
// scrubbed consistently.
func InitSentry(settings *conf.Settings, build buildinfo.BuildInfo) error {
	errors.SetPrivacyScrubber(privacy.ScrubMessage)

	if build == nil {
		build = &buildinfo.Context{}
	}

	if !settings.Sentry.Enabled {
		log.Println("Sentry telemetry is disabled (opt-in required)")
		errors.SetTelemetryReporter(nil)
		return nil
	}

	if settings.Sentry.DSN == "" {
		return errors.Newf("sentry enabled but no DSN configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:        settings.Sentry.DSN,
		SampleRate: 1.0,
		Debug:      false,

		// Privacy-compliant settings
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "", // Explicitly clear server name to prevent hostname leakage

		Release: fmt.Sprintf("pavewatch-go@%s", build.GetVersion()),
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	configureSentryScope(build)

	// Route enhanced errors built anywhere in the process through Sentry
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	sentryInitialized = true
	log.Printf("Sentry telemetry initialized successfully (opt-in enabled, System ID: %s)", build.GetSystemID())
	return nil
}

// configureSentryScope sets global tags describing the deployment, nothing
// that identifies the operator.
func configureSentryScope(build buildinfo.BuildInfo) {
	platform := collectPlatformInfo()

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("system_id", build.GetSystemID())
		scope.SetTag("os", platform.OS)
		scope.SetTag("arch", platform.Architecture)
		scope.SetTag("container", fmt.Sprintf("%t", platform.Container))
		scope.SetTag("go_version", platform.GoVersion)
		scope.SetTag("build_date", build.GetBuildDate())
		scope.SetUser(sentry.User{ID: build.GetSystemID()})
		scope.SetContext("application", map[string]any{
			"name":      "PaveWatch-Go",
			"version":   build.GetVersion(),
			"system_id": build.GetSystemID(),
		})
		scope.SetContext("platform", map[string]any{
			"num_cpu": platform.NumCPU,
		})
	})
}

// CaptureError sends an error event tagged with the originating component.
func CaptureError(err error, component string) {
	if !sentryInitialized {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		sentry.CaptureException(err)
	})
}

// CaptureMessage sends a plain message event at the given level.
func CaptureMessage(message string, level sentry.Level, component string) {
	if !sentryInitialized {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetLevel(level)
		sentry.CaptureMessage(message)
	})
}

// Flush waits for buffered events to be delivered, bounded by timeout.
// Call during shutdown.
func Flush(timeout time.Duration) {
	if !sentryInitialized {
		return
	}
	sentry.Flush(timeout)
}
