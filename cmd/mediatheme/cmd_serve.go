package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"net"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	_ "github.com/HerbHall/mediatheme/api/swagger"
	"github.com/HerbHall/mediatheme/internal/clientconfig"
	"github.com/HerbHall/mediatheme/internal/config"
	"github.com/HerbHall/mediatheme/internal/configstore"
	"github.com/HerbHall/mediatheme/internal/controller"
	"github.com/HerbHall/mediatheme/internal/dom"
	"github.com/HerbHall/mediatheme/internal/event"
	"github.com/HerbHall/mediatheme/internal/inject"
	"github.com/HerbHall/mediatheme/internal/server"
	"github.com/HerbHall/mediatheme/internal/theme"
	"github.com/HerbHall/mediatheme/internal/version"
	"github.com/HerbHall/mediatheme/internal/ws"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the add-on server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}
}

// services is the wired component graph behind the HTTP server.
type services struct {
	bus        *event.Bus
	store      *configstore.Store
	registry   *theme.Registry
	manager    *clientconfig.Manager
	controller *controller.Controller
	server     *server.Server
	cfg        server.Config
	closers    []func()
}

func (s *services) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildServices wires every component from cfg. It does not start anything
// that blocks.
func buildServices(cfg config.Config, logger *zap.Logger) (*services, error) {
	var srvCfg server.Config
	if err := cfg.UnmarshalKey("server", &srvCfg); err != nil {
		return nil, fmt.Errorf("reading server config: %w", err)
	}

	s := &services{cfg: srvCfg}

	s.bus = event.NewBus(logger.Named("event"))
	logger.Info("event bus created", zap.String("component", "event"))

	configDir := cfg.GetString("store.config_dir")
	store, err := configstore.New(configDir,
		configstore.WithMaxBackups(cfg.GetInt("store.max_backups")),
		configstore.WithPublisher(s.bus),
		configstore.WithLogger(logger.Named("configstore")),
	)
	if err != nil {
		return nil, fmt.Errorf("opening config store: %w", err)
	}
	s.store = store
	logger.Info("config store initialized",
		zap.String("component", "configstore"),
		zap.String("dir", store.Dir()),
	)

	s.registry = theme.NewRegistry(
		theme.WithDir(cfg.GetString("themes.dir")),
		theme.WithPublisher(s.bus),
		theme.WithLogger(logger.Named("theme")),
	)
	logger.Info("theme registry initialized",
		zap.String("component", "theme"),
		zap.Int("themes", len(s.registry.List())),
		zap.String("user_dir", s.registry.Dir()),
	)

	opts := []clientconfig.ManagerOption{
		clientconfig.WithValidators(clientconfig.DefaultValidators(s.registry.Has)),
		clientconfig.WithLogger(logger.Named("clientconfig")),
	}
	apiURL := cfg.GetString("client.api_url")
	if apiURL != "" {
		opts = append(opts, clientconfig.WithRemote(clientconfig.NewRemote(apiURL, cfg.GetDuration("client.timeout"))))
	} else {
		logger.Info("client config is local only", zap.String("component", "clientconfig"))
	}
	s.manager = clientconfig.NewManager(clientconfig.NewCache(cfg.GetString("client.cache_path")), opts...)

	ctrlOpts := []controller.Option{
		controller.WithPublisher(s.bus),
		controller.WithLogger(logger.Named("controller")),
	}
	if css := remoteStylesheets(apiURL, cfg.GetDuration("client.timeout")); css != nil {
		ctrlOpts = append(ctrlOpts, controller.WithCSSSource(css))
		logger.Info("stylesheets fetched from remote add-on",
			zap.String("component", "controller"),
			zap.String("base", css.Base()),
		)
	}
	s.controller = controller.New(dom.NewDocument(), s.registry, s.manager, ctrlOpts...)

	// A rewritten stylesheet is re-applied when it is the active one.
	s.closers = append(s.closers, s.bus.Subscribe(theme.TopicThemeReloaded, func(ctx context.Context, e event.Event) {
		reloaded, ok := e.Payload.(theme.ReloadedEvent)
		if !ok || s.controller.State() != controller.StateReady {
			return
		}
		current := s.controller.Config().CurrentTheme
		if !slices.Contains(reloaded.IDs, current) {
			return
		}
		go func() {
			if err := s.controller.ApplyTheme(context.WithoutCancel(ctx), current); err != nil {
				logger.Warn("re-applying reloaded theme failed", zap.String("theme", current), zap.Error(err))
			}
		}()
	}))

	base := srvCfg.Base()
	wsHandler := ws.NewHandler(s.bus, base, logger.Named("ws"),
		ws.WithSnapshot(func(context.Context) any { return s.controller.Status() }),
	)
	s.closers = append(s.closers, wsHandler.Close)

	routes := []server.RouteRegistrar{
		configstore.NewHandler(store, srvCfg.APIPath(), logger.Named("configstore")),
		theme.NewHandler(s.registry, base, logger.Named("theme")),
		controller.NewAPI(s.controller, base, logger.Named("controller")),
		wsHandler,
	}

	var fallback http.Handler
	if cfg.GetBool("proxy.enabled") {
		proxy, err := inject.NewProxy(cfg.GetString("proxy.upstream"), s.controller, logger.Named("inject"))
		if err != nil {
			return nil, fmt.Errorf("configuring page proxy: %w", err)
		}
		fallback = proxy
		logger.Info("page proxy enabled",
			zap.String("component", "inject"),
			zap.String("upstream", proxy.Target()),
		)
	}

	s.server = server.New(srvCfg, logger, store.CheckWritable, fallback, routes...)
	logger.Info("HTTP server configured",
		zap.String("component", "server"),
		zap.String("addr", srvCfg.Addr()),
		zap.String("base_path", base),
		zap.Bool("read_only", srvCfg.ReadOnly),
	)
	return s, nil
}

// remoteStylesheets returns a stylesheet source for a config API on another
// host, or nil when the API is served by this process's loopback address.
func remoteStylesheets(apiURL string, timeout time.Duration) *controller.RemoteCSS {
	if apiURL == "" {
		return nil
	}
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return nil
	}
	host := u.Hostname()
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	base := strings.TrimSuffix(strings.TrimSuffix(apiURL, "/"), "/api/config")
	return controller.NewRemoteCSS(base, timeout)
}

func (a *app) runServe(ctx context.Context) error {
	cfg := config.New(a.v)
	v := cfg.Viper()

	logger, err := config.NewLogger(v)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.GetBool("logging.plugin_log") {
		path := filepath.Join(cfg.GetString("store.config_dir"), config.PluginLogFile)
		teed, closeLog, err := config.WithPluginLog(logger, path)
		if err != nil {
			logger.Warn("plugin log disabled", zap.String("path", path), zap.Error(err))
		} else {
			logger = teed
			defer func() { _ = closeLog() }()
		}
	}

	logger.Info("mediatheme server starting", zap.String("version", version.Short()))
	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	svc, err := buildServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.GetBool("store.watch") {
		go func() {
			if err := svc.store.Watch(ctx); err != nil {
				logger.Warn("config watcher stopped", zap.Error(err))
			}
		}()
	}
	if cfg.GetBool("themes.watch") {
		go func() {
			if err := svc.registry.Watch(ctx); err != nil {
				logger.Warn("theme watcher stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.server.Start()
	}()

	// The controller may read its config back through this server.
	go svc.controller.Setup(ctx)

	logger.Info("mediatheme server ready", zap.String("addr", svc.cfg.Addr()))

	// Print human-readable banner for users watching docker logs.
	fmt.Fprintf(os.Stderr, "\n  mediatheme %s is ready!\n  Themes: http://localhost:%d%s/api/themes\n\n",
		version.Short(), svc.cfg.Port, svc.cfg.Base())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
		return errors.New("server stopped unexpectedly")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	cancel()
	svc.controller.Cleanup()
	if err := svc.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("mediatheme server stopped")
	return nil
}
