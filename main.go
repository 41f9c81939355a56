package main

import (
	"log"
	"os"
	"time"

	"github.com/pavewatch/pavewatch-go/cmd"
	"github.com/pavewatch/pavewatch-go/internal/buildinfo"
	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/logging"
	"github.com/pavewatch/pavewatch-go/internal/telemetry"
)

// Version information, set via ldflags at build time.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	os.Exit(mainWithExitCode())
}

// mainWithExitCode wires configuration, telemetry and the command tree. It is
// separate from main so deferred cleanup runs before the process exits.
func mainWithExitCode() int {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		log.Printf("Error loading configuration: %v", err)
		return 1
	}
	settings.Version = version
	settings.BuildDate = buildDate

	build := &buildinfo.Context{Version: version, BuildDate: buildDate}
	if paths, err := conf.GetDefaultConfigPaths(); err == nil && len(paths) > 0 {
		// The system ID is an anonymous installation identifier; losing it
		// only degrades telemetry correlation, so failures are not fatal.
		if id, err := telemetry.LoadOrCreateSystemID(paths[0]); err == nil {
			build.SystemID = id
		}
	}

	if err := telemetry.InitSentry(settings, build); err != nil {
		log.Printf("Telemetry initialization failed: %v", err)
	}
	defer telemetry.Flush(3 * time.Second)

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		return 1
	}
	return 0
}
