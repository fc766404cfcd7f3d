// rpihome is the Raspberry Pi home-sensor agent.
//
// It connects a Raspberry Pi to Azure IoT Hub (directly with a device
// connection string, or through the Device Provisioning Service), streams
// sensor telemetry, answers direct methods and keeps the device twin in
// sync until the operator types Q or the process is signalled.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nerrad567/rpihome/internal/api"
	"github.com/nerrad567/rpihome/internal/component"
	"github.com/nerrad567/rpihome/internal/hub"
	"github.com/nerrad567/rpihome/internal/infrastructure/config"
	"github.com/nerrad567/rpihome/internal/infrastructure/database"
	"github.com/nerrad567/rpihome/internal/infrastructure/logging"
	"github.com/nerrad567/rpihome/internal/infrastructure/mqtt"
	"github.com/nerrad567/rpihome/internal/lifecycle"
	"github.com/nerrad567/rpihome/internal/operator"
	"github.com/nerrad567/rpihome/internal/provisioning"
	"github.com/nerrad567/rpihome/internal/state"
	"github.com/nerrad567/rpihome/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	showVersion bool
	noPrompt    bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	flags := pflag.NewFlagSet("rpihome", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (default $RPIHOME_CONFIG or "+defaultConfigPath+")")
	flags.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	flags.BoolVar(&opts.noPrompt, "no-prompt", false, "run without the interactive quit prompt")
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - args: Command-line arguments without the program name
//   - stdout: Destination for version output and logs when no prompt is active
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "rpihome %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logging.Default()
	log.Info("starting rpihome", "version", version, "commit", commit, "build_date", date)

	configPath, err := resolveConfigPath(opts.configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var (
		prompt *operator.Prompt
		out    = stdout
	)
	if !opts.noPrompt {
		prompt, err = operator.New()
		if err != nil {
			log.Warn("operator prompt unavailable, stop with a signal", "error", err)
		} else {
			defer prompt.Close() //nolint:errcheck // Terminal restore on exit
			out = prompt.Stdout()
		}
	}

	log = logging.NewWithWriter(cfg.Logging, version, out)
	mqtt.SetLibraryLogger(log.Logger)
	log.Info("configuration loaded",
		"path", configPath,
		"security_type", cfg.Hub.SecurityType,
		"components", len(cfg.Components),
	)

	// store stays a nil interface when state is disabled.
	var (
		store      lifecycle.Store
		stateStore *state.Store
		checks     = make(map[string]api.HealthChecker)
	)
	if cfg.State.Enabled {
		db, openErr := openState(ctx, cfg.State, log)
		if openErr != nil {
			return openErr
		}
		defer func() {
			log.Info("closing state store")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing state store", "error", closeErr)
			}
		}()
		stateStore = state.NewStore(db)
		store = stateStore
		checks["state"] = db
	}

	registry, err := component.Build(cfg, component.BuildOptions{})
	if err != nil {
		return fmt.Errorf("building components: %w", err)
	}
	if stateStore != nil {
		if err := component.Seed(ctx, registry, stateStore); err != nil {
			log.Warn("restoring last values failed", "error", err)
		}
	}
	log.Info("components ready", "names", registry.Names())

	deps := lifecycle.Deps{
		Registry:    registry,
		Dialer:      hub.NewDialer(cfg.Hub, cfg.Telemetry.ContentType, log.Component("hub")),
		Provisioner: provisioning.NewClient(cfg.Hub, log.Component("provisioning")),
		Store:       store,
		Logger:      log.Component("lifecycle"),
	}
	if prompt != nil {
		deps.Stop = prompt
	}
	coordinator := lifecycle.New(cfg, deps)
	checks["agent"] = coordinator

	if cfg.Status.Enabled {
		srv, err := api.New(api.Deps{
			Config:  cfg.Status,
			Logger:  log.Component("api"),
			Status:  coordinator,
			Version: version,
			Checks:  checks,
		})
		if err != nil {
			return fmt.Errorf("creating status server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting status server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	}

	if err := coordinator.Run(ctx); err != nil {
		return err
	}
	log.Info("rpihome stopped")
	return nil
}

// openState opens and migrates the SQLite state file.
func openState(ctx context.Context, cfg config.StateConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("state store ready", "path", db.Path())
	return db, nil
}

// resolveConfigPath picks the flag, then $RPIHOME_CONFIG, then the default
// path. A missing default file yields "" so the agent can run from the
// environment alone.
func resolveConfigPath(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	if path := os.Getenv("RPIHOME_CONFIG"); path != "" {
		return path, nil
	}
	if _, err := os.Stat(defaultConfigPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("checking %s: %w", defaultConfigPath, err)
	}
	return defaultConfigPath, nil
}
