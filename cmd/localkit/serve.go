package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/monaca/localkit/internal/adapters/primary/http"
	"github.com/monaca/localkit/internal/adapters/secondary/account"
	"github.com/monaca/localkit/internal/adapters/secondary/beacon"
	"github.com/monaca/localkit/internal/adapters/secondary/config"
	"github.com/monaca/localkit/internal/adapters/secondary/crypto"
	"github.com/monaca/localkit/internal/adapters/secondary/files"
	"github.com/monaca/localkit/internal/adapters/secondary/storage"
	"github.com/monaca/localkit/internal/adapters/secondary/watcher"
	"github.com/monaca/localkit/internal/domain/entities"
	"github.com/monaca/localkit/internal/domain/ports"
	"github.com/monaca/localkit/internal/domain/services"
)

var (
	// Serve command flags
	servePort     int
	serveHost     string
	serveNoBeacon bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve [project dir...]",
	Short: "Run the companion service for the given project directories",
	Long: `Start the companion service. Each argument is a project directory
containing the project marker subdirectory (www by default); the service
tracks each one, watches its content for changes, and pushes file events
to paired debugger clients.

Example:
  localkit serve ~/apps/myapp
  localkit serve ~/apps/one ~/apps/two --port 8080`,
	Args: cobra.ArbitraryArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Defaults come from config loading; flags override
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to serve on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().BoolVar(&serveNoBeacon, "no-beacon", false, "Disable the UDP discovery beacon")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cmd, cfg)

	app, err := buildApplication(cfg, logger)
	if err != nil {
		return err
	}
	defer app.registry.Close()

	if err := trackProjects(app.registry, args); err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := app.server.Start(ctx); err != nil {
		return err
	}
	logger.Info("serving",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", app.server.Port()),
		slog.Int("projects", len(args)),
	)

	if err := app.registry.SetWatching(true); err != nil {
		logger.Warn("starting watchers", slog.String("error", err.Error()))
	}

	// Pump file-change events to the push channel until the registry
	// closes its sink.
	go func() {
		for ev := range app.registry.Events() {
			app.server.Broadcaster().BroadcastFileEvent(ev)
		}
	}()

	if app.beacon != nil {
		app.beacon.Start()
	}

	<-ctx.Done()

	if app.beacon != nil {
		app.beacon.Stop()
	}
	if err := app.registry.SetWatching(false); err != nil {
		logger.Warn("stopping watchers", slog.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer cancel()
	return app.server.Stop(shutdownCtx)
}

// application bundles the wired components of one serve run.
type application struct {
	registry *services.ProjectRegistry
	server   *http.Server
	beacon   *beacon.Beacon
}

func buildApplication(cfg *entities.Config, logger *slog.Logger) (*application, error) {
	codec := crypto.NewCodec()

	persist := storage.NewPairingFile(storage.DefaultPath())
	pairings, err := services.NewPairingStore(account.NewLocalService(), persist, logger)
	if err != nil {
		return nil, fmt.Errorf("opening pairing store: %w", err)
	}

	newWatcher := func() ports.ProjectWatcher {
		return watcher.New(cfg.Watcher.GetDebounce(), logger)
	}
	registry := services.NewProjectRegistry(cfg.Projects.GetMarker(), newWatcher, logger)

	server := http.NewServer(http.Options{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Name:            cfg.Server.Name,
		ServerID:        serverID(),
		Version:         Version,
		CORSOrigins:     cfg.Server.CORSOrigins,
		ReadTimeout:     cfg.Server.GetReadTimeout(),
		ShutdownTimeout: cfg.Server.GetShutdownTimeout(),
		Keepalive:       cfg.Watcher.GetKeepalive(),
		Codec:           codec,
		Pairings:        pairings,
		OTP:             services.NewOTPManager(),
		Registry:        registry,
		Files:           files.NewProvider(cfg.Projects.GetIgnore()),
		ProjectInfo:     account.NewLocalProjectInfo(),
		Inspector:       account.NewNullInspector(),
		Logger:          logger,
	})

	app := &application{registry: registry, server: server}

	if cfg.Beacon.Enabled && !serveNoBeacon {
		app.beacon = beacon.New(beacon.Options{
			Interval:    cfg.Beacon.GetInterval(),
			DestPort:    cfg.Beacon.GetPort(),
			Name:        cfg.Server.Name,
			ServerID:    serverID(),
			UserHash:    userHash(),
			GatewayPort: server.Port,
			Logger:      logger,
		})
	}

	return app, nil
}

func trackProjects(registry *services.ProjectRegistry, paths []string) error {
	opts := make([]entities.ProjectOptions, len(paths))
	if err := registry.SetAll(paths, opts); err != nil {
		return fmt.Errorf("tracking projects: %w", err)
	}
	return nil
}

func loadServeConfig(cmd *cobra.Command) (*entities.Config, error) {
	loader := config.NewTOMLLoader()

	cfg := config.GetDefaultConfig()
	global, err := loader.LoadGlobal()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if global != nil {
		cfg = global
	}

	// CLI flags take highest precedence
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *entities.Config) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !cmd.Flags().Changed("verbose") {
		verbose = cfg.Logging.Verbose
	}

	level := slog.LevelInfo
	switch cfg.Logging.GetLevel() {
	case entities.LogLevelDebug:
		level = slog.LevelDebug
	case entities.LogLevelWarn:
		level = slog.LevelWarn
	case entities.LogLevelError:
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// serverID derives a stable identifier for this machine from its
// hostname, so clients recognize the server across restarts.
func serverID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = fmt.Sprintf("localkit-%d", time.Now().UnixNano())
	}
	sum := sha256.Sum256([]byte(hostname))
	return hex.EncodeToString(sum[:8])
}

// userHash identifies the logged-in OS account to discovery clients
// without exposing the account name itself.
func userHash() string {
	name := ""
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	if name == "" {
		name = os.Getenv("USER")
	}
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])
}
