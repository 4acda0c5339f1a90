package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"

	"github.com/iedon/gameping-agent/monitor"
	"github.com/iedon/gameping-agent/probe"
	"github.com/iedon/gameping-agent/render"
	"github.com/iedon/gameping-agent/resolver"
)

const (
	SERVER_NAME    = "iEdon-GamePing-Agent"
	SERVER_VERSION = "1.0"
)

var SERVER_SIGNATURE = fmt.Sprintf("%s (%s; %s; %s)", SERVER_NAME+"/"+SERVER_VERSION, runtime.GOOS, runtime.GOARCH, runtime.Version())

// rootFlags are merged over the config file, only flags set on the command line win
type rootFlags struct {
	Config      string
	Process     string
	Interval    time.Duration
	Timeout     time.Duration
	Privileged  bool
	HistorySize int
	Output      string
	Listen      string
	GeoIP       string
	Debug       bool
}

func (flags *rootFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flags.Config, "config", "c", "",
		"Path to a JSON or YAML configuration file")
	cmd.Flags().StringVarP(&flags.Process, "process", "p", monitor.DefaultProcessName,
		"Case-insensitive substring of the game process name")
	cmd.Flags().DurationVarP(&flags.Interval, "interval", "i", monitor.DefaultInterval,
		"Time between two probes (e.g. 2s, 500ms)")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", probe.DefaultTimeout,
		"How long one echo request waits for its reply")
	cmd.Flags().BoolVar(&flags.Privileged, "privileged", probe.DefaultPrivileged,
		"Use raw ICMP sockets (root or CAP_NET_RAW, always on Windows)")
	cmd.Flags().IntVar(&flags.HistorySize, "history", 0,
		"Number of samples kept for the rolling average (default 1000)")
	cmd.Flags().StringVarP(&flags.Output, "output", "o", outputText,
		"Display format: text or json")
	cmd.Flags().StringVar(&flags.Listen, "listen", "",
		"Serve the latest report over HTTP on this address (e.g. 127.0.0.1:8787)")
	cmd.Flags().StringVar(&flags.GeoIP, "geoip", "",
		"Path to a MaxMind GeoLite2 Country database used to tag endpoints")
	cmd.Flags().BoolVar(&flags.Debug, "debug", false,
		"Log every probe result")
}

func (flags *rootFlags) apply(cmd *cobra.Command, cfg *config) {
	changed := cmd.Flags().Changed
	if changed("process") {
		cfg.Monitor.ProcessName = flags.Process
	}
	if changed("interval") {
		cfg.Monitor.Interval = int(flags.Interval / time.Millisecond)
	}
	if changed("timeout") {
		cfg.Probe.Timeout = int(flags.Timeout / time.Millisecond)
	}
	if changed("privileged") {
		cfg.Probe.Privileged = flags.Privileged
	}
	if changed("history") {
		cfg.Monitor.HistorySize = flags.HistorySize
	}
	if changed("output") {
		cfg.Display.Output = flags.Output
	}
	if changed("listen") {
		cfg.Server.Listen = flags.Listen
	}
	if changed("geoip") {
		cfg.GeoIP.MaxMindGeoLiteCountryMmdbPath = flags.GeoIP
	}
	if changed("debug") {
		cfg.Logger.Debug = flags.Debug
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "gameping",
		Short: "Track the latency to the server a game client is connected to",
		Long: `gameping finds the running game process, resolves the remote server it holds a
TCP connection to and pings that server on a fixed interval, showing the last,
average, maximum and minimum round trip along with the number of failed probes.

Statistics reset whenever the game switches to another server.`,
		Example: `  # Watch the default game with the default 2s interval
  gameping

  # Another client, faster polling, raw ICMP sockets
  sudo gameping --process wow --interval 1s --privileged

  # Machine readable output and a local status endpoint
  gameping -o json --listen 127.0.0.1:8787`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.Config)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			flags.apply(cmd, cfg)
			if err := cfg.validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}
	flags.AddFlags(cmd)
	return cmd
}

func run(ctx context.Context, cfg *config) error {
	initLogger(&cfg.Logger)
	defer logger.Close()

	kernel := getOsUname()
	log.Printf("Starting %s on %s", SERVER_SIGNATURE, kernel)

	prober, err := probe.New(cfg.probeOptions())
	if err != nil {
		log.Printf("[Probe] %v", err)
		return fmt.Errorf("failed to initialize probe: %w", err)
	}

	var opts []monitor.Option
	if path := cfg.GeoIP.MaxMindGeoLiteCountryMmdbPath; path != "" {
		geo, err := openGeoLocator(path)
		if err != nil {
			return fmt.Errorf("failed to load MaxMind GeoLiteCountry MMDB: %w", err)
		}
		defer geo.Close()
		opts = append(opts, monitor.WithLocator(geo))
	}

	var out monitor.Renderer
	switch cfg.Display.Output {
	case outputJSON:
		out = render.NewJSON(os.Stdout)
	default:
		out = render.NewTerminal(os.Stdout)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Listen != "" {
		recorder := render.NewRecorder()
		out = render.Multi(out, recorder)

		app, err := startStatusServer(cfg, &statusHandler{
			recorder: recorder,
			process:  cfg.Monitor.ProcessName,
			kernel:   kernel,
			started:  time.Now(),
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := app.ShutdownWithTimeout(3 * time.Second); err != nil {
				log.Printf("[Server] Shutdown: %v", err)
			}
		}()
	}

	res := resolver.New(resolver.SystemProcessTable{}, resolver.SystemSocketTable{})
	mon := monitor.New(cfg.monitorOptions(), res, prober, out, opts...)
	if err := mon.Run(ctx); err != nil {
		log.Printf("[Monitor] Fatal: %v", err)
		return err
	}
	return nil
}

func startStatusServer(cfg *config, h *statusHandler) (*fiber.App, error) {
	ln, err := createHTTPListener(cfg.Server.ListenerType, cfg.Server.Listen)
	if err != nil {
		return nil, err
	}

	app := newStatusApp(h)
	go func() {
		if err := app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			log.Printf("[Server] Status listener stopped: %v", err)
		}
	}()
	log.Printf("[Server] Serving status on %s %s", cfg.Server.ListenerType, cfg.Server.Listen)
	return app, nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
