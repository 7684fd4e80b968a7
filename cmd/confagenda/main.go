package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"confagenda/internal/agenda"
	"confagenda/internal/capture"
	"confagenda/internal/clock"
	"confagenda/internal/config"
	"confagenda/internal/display"
	"confagenda/internal/kiosk"
	appLog "confagenda/internal/log"
	"confagenda/internal/render"
	"confagenda/internal/scheduler"
	"confagenda/internal/syncbus"
	"confagenda/internal/web"
)

const version = "0.3.0"

// flagConfig holds CLI flag values. Non-empty values override the config
// file.
type flagConfig struct {
	configPath string
	listen     string
	role       string
	logLevel   string
	capture    bool
	once       bool
	headless   bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		appLog.Error("confagenda failed", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	applyFlags(conf, flags)
	if err := conf.Validate(); err != nil {
		return err
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("confagenda starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"role", conf.Role,
		"timezone", conf.Timezone,
		"agenda_file", conf.Agenda.File,
		"agenda_url", conf.Agenda.URL,
		"sync_store", conf.Sync.Store,
		"capture_every", conf.Capture.Every,
		"once", flags.once,
		"headless", flags.headless,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loadCtx, cancelLoad := context.WithTimeout(ctx, 30*time.Second)
	store, err := agenda.Load(loadCtx, agenda.Source{
		File:     conf.Agenda.File,
		URL:      conf.Agenda.URL,
		CacheDir: conf.Agenda.CacheDir,
		Name:     conf.Conference.Name,
		Days:     conf.Days(),
		Location: conf.Location(),
	})
	cancelLoad()
	if err != nil {
		return err
	}
	appLog.Info("agenda loaded", "conference", store.Name(), "days", fmt.Sprint(store.Days()))

	bus, err := openSyncStore(conf)
	if err != nil {
		return err
	}
	defer bus.Close()

	views := make(map[display.Role]*render.Latest)
	var displays []*display.Controller
	roles := rolesFor(conf.Role)
	term := terminalRole(roles, flags.headless)
	for _, role := range roles {
		views[role] = render.NewLatest()
		renderers := render.Multi{views[role], render.LogRenderer{Name: string(role)}}
		if role == term {
			renderers = append(renderers, render.NewTermRenderer(os.Stdout, 0))
		}
		ctl, err := display.New(display.Options{
			Role:      role,
			Agenda:    store,
			Renderer:  renderers,
			Location:  conf.Location(),
			Timing:    timingFrom(conf),
			SyncStore: bus,
			SyncKey:   conf.Sync.Key,
		})
		if err != nil {
			return err
		}
		if err := ctl.Start(); err != nil {
			return fmt.Errorf("start %s display: %w", role, err)
		}
		defer ctl.Stop()
		displays = append(displays, ctl)
	}

	srv, err := web.NewServer(conf, web.Options{
		Displays: displays,
		Views:    views,
		Kiosk:    kiosk.DefaultReader(ctx),
	})
	if err != nil {
		return err
	}
	// Listen before serving so a capture right after start can connect.
	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", conf.Listen, err)
	}
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	defer shutdown(httpSrv)

	captureOpts, err := captureOptions(conf, displays[0].Role())
	if err != nil {
		return err
	}
	if flags.capture || flags.once {
		if err := capture.CapturePNG(ctx, captureOpts); err != nil {
			appLog.Error("capture failed", err, "url", captureOpts.URL)
			if flags.once {
				return err
			}
		} else {
			appLog.Info("display captured", "output", captureOpts.Output)
		}
	}
	if flags.once {
		return nil
	}

	if conf.Capture.Every != "" {
		jobs := scheduler.New(clock.Real())
		err := jobs.Cron("capture", conf.Capture.Every, func(time.Time) {
			if err := capture.CapturePNG(ctx, captureOpts); err != nil {
				appLog.Error("periodic capture failed", err, "url", captureOpts.URL)
				return
			}
			appLog.Debug("display captured", "output", captureOpts.Output)
		})
		if err != nil {
			return err
		}
		defer jobs.CancelAll()
	}

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
	}
	appLog.Info("confagenda exiting")
	return nil
}

func parseFlags(args []string) (flagConfig, error) {
	var cfg flagConfig

	fs := pflag.NewFlagSet("confagenda", pflag.ContinueOnError)
	fs.StringVarP(&cfg.configPath, "config", "c", "/etc/confagenda/config.yaml", "path to config file (created with defaults when missing)")
	fs.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config)")
	fs.StringVar(&cfg.role, "role", "", "display role: primary, secondary or both (overrides config)")
	fs.StringVar(&cfg.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	fs.BoolVar(&cfg.capture, "capture", false, "capture the display page to capture.output after start")
	fs.BoolVar(&cfg.once, "once", false, "start, capture the display once and exit")
	fs.BoolVar(&cfg.headless, "headless", false, "do not draw the terminal view")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return cfg, nil
}

func applyFlags(conf *config.Config, flags flagConfig) {
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.role != "" {
		conf.Role = flags.role
		// A single-process pair shares memory; split roles go through sqlite.
		if flags.role == config.RoleBoth {
			conf.Sync.Store = config.StoreMemory
		} else if conf.Sync.Store == config.StoreMemory {
			conf.Sync.Store = config.StoreSQLite
		}
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	conf.Normalize()
}

func rolesFor(role string) []display.Role {
	switch role {
	case config.RoleSecondary:
		return []display.Role{display.RoleSecondary}
	case config.RoleBoth:
		return []display.Role{display.RolePrimary, display.RoleSecondary}
	default:
		return []display.Role{display.RolePrimary}
	}
}

// terminalRole returns the one role that draws to stdout, or "" when
// headless. Two views on one terminal would interleave.
func terminalRole(roles []display.Role, headless bool) display.Role {
	if headless || len(roles) == 0 {
		return ""
	}
	return roles[0]
}

func timingFrom(conf *config.Config) display.Timing {
	return display.Timing{
		Tick:           conf.Timing.Tick,
		DayCheck:       conf.Timing.DayCheck,
		Highlight:      conf.Timing.Highlight,
		PreEventWindow: conf.Timing.PreEventWindow,
		Health:         conf.Timing.Health,
		ManualTimeout:  conf.Timing.ManualTimeout,
		Publish:        conf.Sync.PublishInterval,
		Poll:           conf.Sync.PollInterval,
		StaleAfter:     conf.Sync.StaleAfter,
	}
}

func openSyncStore(conf *config.Config) (syncbus.Store, error) {
	if conf.Sync.Store == config.StoreMemory {
		return syncbus.NewMemoryStore(), nil
	}
	s, err := syncbus.NewSQLiteStore(conf.Sync.Path)
	if err != nil {
		return nil, fmt.Errorf("open sync store: %w", err)
	}
	appLog.Info("sync store opened", "path", s.Path(), "key", conf.Sync.Key)
	return s, nil
}

func captureOptions(conf *config.Config, role display.Role) (capture.Options, error) {
	url := conf.Capture.URL
	if url == "" {
		u, err := capture.DisplayURL(conf.Listen, string(role))
		if err != nil {
			return capture.Options{}, err
		}
		url = u
	}
	return capture.Options{
		URL:    url,
		Output: conf.Capture.Output,
		Width:  conf.Capture.Width,
		Height: conf.Capture.Height,
	}, nil
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
}
