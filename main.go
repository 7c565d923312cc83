// vcam is a remote virtual-camera control server: a mobile client drives
// a camera in a host 3D application over a binary TCP protocol and
// receives a live FFmpeg-encoded viewport stream. Run standalone it
// serves a simulated scene; embedded, the host supplies its own scene
// adapter.
package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/shycats/vcam/cmd"
	"github.com/shycats/vcam/internal/api"
	"github.com/shycats/vcam/internal/config"
	"github.com/shycats/vcam/internal/events"
	"github.com/shycats/vcam/internal/logging"
	"github.com/shycats/vcam/internal/metrics"
	"github.com/shycats/vcam/internal/scene/scenesim"
	"github.com/shycats/vcam/internal/scripts"
	"github.com/shycats/vcam/internal/server"
)

// Options for the CLI - flat structure with toml/env mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port     int    `help:"TCP control port" short:"p" default:"23354" toml:"server.port" env:"PORT"`
	Platform string `help:"Host application name advertised to clients" default:"Standalone" toml:"server.platform" env:"PLATFORM"`
	Announce bool   `help:"Announce the service over zeroconf" default:"true" toml:"announce.enabled" env:"ANNOUNCE"`

	// Streaming settings
	FFmpeg string `help:"FFmpeg binary for the streaming pipeline" default:"ffmpeg" toml:"streaming.ffmpeg" env:"FFMPEG"`

	// Scripts settings
	ScriptsFile string `help:"Custom scripts definition file" default:"scripts.toml" toml:"scripts.config_file" env:"SCRIPTS_FILE"`

	// Status API settings; empty disables the endpoint
	APIAddr string `help:"Status/metrics HTTP address (e.g. :8090), empty to disable" default:"" toml:"api.addr" env:"API_ADDR"`

	// Simulated scene settings (standalone mode)
	SimCameras []string `help:"Camera names for the simulated scene" default:"persp,shotCam" toml:"sim.cameras" env:"SIM_CAMERAS"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingServer    string `help:"Server logging level" default:"info" toml:"logging.server" env:"LOGGING_SERVER"`
	LoggingStreaming string `help:"Streaming logging level" default:"info" toml:"logging.streaming" env:"LOGGING_STREAMING"`
	LoggingFFmpeg    string `help:"FFmpeg output logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingAnnounce  string `help:"Announcer logging level" default:"info" toml:"logging.announce" env:"LOGGING_ANNOUNCE"`
	LoggingScripts   string `help:"Scripts logging level" default:"info" toml:"logging.scripts" env:"LOGGING_SCRIPTS"`
	LoggingAPI       string `help:"Status API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.Load(opts, nil); loadErr != nil {
			slog.Warn("failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"server":    opts.LoggingServer,
				"streaming": opts.LoggingStreaming,
				"ffmpeg":    opts.LoggingFFmpeg,
				"announce":  opts.LoggingAnnounce,
				"scripts":   opts.LoggingScripts,
				"api":       opts.LoggingAPI,
			},
		})
		logger := logging.GetLogger("main")

		bus := events.New()
		unbindMetrics := metrics.Bind(bus)

		// Scripts registry with hot reload.
		scriptEntries, err := scripts.Load(opts.ScriptsFile)
		if err != nil {
			logger.Warn("failed to load scripts, starting with none", "error", err)
		}
		runner := scripts.NewRunner(scriptEntries, logging.GetLogger("scripts"))

		var watcher *config.Watcher[[]scripts.Script]
		if _, statErr := os.Stat(opts.ScriptsFile); statErr == nil {
			watcher = config.NewWatcher(opts.ScriptsFile, scripts.Load, logging.GetLogger("scripts"))
			watcher.OnReload(func(entries []scripts.Script) {
				runner.Replace(entries)
				bus.Publish(events.ScriptsReloadedEvent{Labels: runner.Labels()})
			})
		}

		// Standalone mode serves the simulated scene. A host application
		// embedding this server constructs server.Options itself with its
		// own adapter and invoke function.
		srv := server.New(server.Options{
			Port:      opts.Port,
			Platform:  opts.Platform,
			FFmpegBin: opts.FFmpeg,
			Announce:  opts.Announce,
			Adapter:   scenesim.New(opts.SimCameras...),
			Scripts:   runner,
			Bus:       bus,
		})

		var statusAPI *api.Server
		if opts.APIAddr != "" {
			statusAPI = api.NewServer(srv)
		}

		hooks.OnStart(func() {
			if startErr := srv.Start(); startErr != nil {
				logger.Error("failed to start server", "error", startErr)
				os.Exit(1)
			}
			logger.Info("ready", "qr", srv.QRString())

			if watcher != nil {
				if watchErr := watcher.Start(); watchErr != nil {
					logger.Warn("failed to watch scripts file", "error", watchErr)
				}
			}

			if statusAPI != nil {
				go func() {
					if apiErr := statusAPI.Start(opts.APIAddr); apiErr != nil && !errors.Is(apiErr, http.ErrServerClosed) {
						logger.Error("status API failed", "error", apiErr)
					}
				}()
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")
			if statusAPI != nil {
				if stopErr := statusAPI.Stop(); stopErr != nil {
					logger.Error("error stopping status API", "error", stopErr)
				}
			}
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("error stopping scripts watcher", "error", stopErr)
				}
			}
			srv.Stop()
			unbindMetrics()
		})
	})

	cli.Root().Use = "vcam"
	cli.Root().AddCommand(cmd.ValidateCmd)

	cli.Run()
}
