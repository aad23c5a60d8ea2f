// internal/cli/app.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	_ "device-programmer/docs"
	"device-programmer/internal/config"
	"device-programmer/internal/device"
	"device-programmer/internal/discovery"
	"device-programmer/internal/discovery/serial"
	"device-programmer/internal/discovery/usb"
	"device-programmer/internal/driver"
	"device-programmer/internal/routes"
	"device-programmer/internal/service"
	"device-programmer/internal/utils"
)

// flagKeys maps command-line flags to configuration keys
var flagKeys = map[string]string{
	"tool":                 "session.tool",
	"device":               "session.device",
	"interface":            "session.interface",
	"port":                 "session.port",
	"serial":               "session.serial",
	"baud":                 "session.baud",
	"frequency":            "session.frequency",
	"skip-voltage-check":   "session.skip_voltage_check",
	"skip-signature-check": "session.skip_signature_check",
	"log-level":            "logging.level",
	"parts":                "devices.extra_parts_file",
	"host":                 "server.host",
	"listen":               "server.port",
}

// Application holds the components shared by every command
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	// Registries
	tools   *driver.Registry
	devices *device.Registry

	// Services
	scanners     *discovery.ScannerManager
	probeService *service.ProbeService
}

// loadApplication builds the application from cmd's flags, the config file
// and the environment, in increasing order of precedence for the flags.
func loadApplication(cmd *cobra.Command) (*Application, error) {
	v := viper.New()
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return nil, exitError(exitFailure, "%v", err)
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, exitError(exitUsage, "%v", err)
	}

	// one-shot commands keep stderr quiet unless a level was asked for
	if cmd.Name() != "serve" && !levelConfigured(cmd, v) {
		cfg.Logging.Level = "warn"
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return nil, exitError(exitFailure, "%v", err)
	}
	return app, nil
}

// bindFlags binds the flags present in flags to their configuration keys
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

func levelConfigured(cmd *cobra.Command, v *viper.Viper) bool {
	if cmd.Flags().Changed("log-level") || v.InConfig("logging.level") {
		return true
	}
	_, ok := os.LookupEnv(config.EnvPrefix + "_LOGGING_LEVEL")
	return ok
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeRegistries(); err != nil {
		return nil, fmt.Errorf("failed to initialize registries: %w", err)
	}

	app.initializeServices()
	return app, nil
}

// initializeRegistries sets up the tool and part registries
func (app *Application) initializeRegistries() error {
	app.tools = driver.NewRegistry(app.logger)
	if err := driver.RegisterDefaultTools(app.tools, app.logger); err != nil {
		return err
	}

	devices, err := device.NewRegistry(app.logger)
	if err != nil {
		return err
	}
	if path := app.config.Devices.ExtraPartsFile; path != "" {
		if err := devices.LoadFile(path); err != nil {
			return err
		}
	}
	app.devices = devices

	app.logger.Debug("Registries initialized",
		zap.Int("tools", len(app.tools.List())),
		zap.Int("devices", len(app.devices.List())),
	)
	return nil
}

// initializeServices creates service instances
func (app *Application) initializeServices() {
	app.scanners = discovery.NewScannerManager(app.logger)
	app.scanners.RegisterScanner(serial.NewScanner(app.tools, app.logger))
	app.scanners.RegisterScanner(usb.NewScanner(app.tools, app.logger))

	app.probeService = service.NewProbeService(app.tools, app.devices, app.config.Session, app.logger)
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.tools,
		app.devices,
		app.scanners,
		app.probeService,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized", zap.String("address", app.server.Addr))
}

// Serve runs the HTTP server until ctx is done or a shutdown signal arrives
func (app *Application) Serve(ctx context.Context) error {
	app.initializeServer()

	serviceLogger := utils.NewServiceLogger(app.logger, "gdp")
	serviceLogger.LogServiceStart(app.config.App.Version, app.config.Server)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		serviceLogger.LogServiceStop("shutdown signal received")
	}

	return app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	app.logger.Info("HTTP server stopped")
	return nil
}

// Close flushes the logger
func (app *Application) Close() {
	_ = utils.CloseLogger(app.logger)
}
