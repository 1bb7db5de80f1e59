package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/formwizard/client"
	"github.com/gabrielmiguelok/formwizard/internal/config"
	"github.com/gabrielmiguelok/formwizard/internal/watch"
	"github.com/gabrielmiguelok/formwizard/pkg/health"
	"github.com/gabrielmiguelok/formwizard/pkg/limits"
	"github.com/gabrielmiguelok/formwizard/pkg/live"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/metrics"
	"github.com/gabrielmiguelok/formwizard/pkg/protocol"
	"github.com/gabrielmiguelok/formwizard/pkg/shutdown"
	"github.com/gabrielmiguelok/formwizard/pkg/transport"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the wizard page with a live websocket session",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("addr", "a", ":8080", "Listen address")
	f.String("codec", "json", "Live message codec: json or msgpack")
	f.Bool("insecure-dev-mode", false, "Accept websocket connections from any origin")
	f.BoolVarP(&serveWatch, "watch", "w", false, "Reload the template file when it changes")
	for key, flag := range map[string]string{
		"address":           "addr",
		"codec":             "codec",
		"insecure_dev_mode": "insecure-dev-mode",
	} {
		if err := v.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	template, err := loadTemplate(cfg)
	if err != nil {
		return err
	}
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}

	m := metrics.New()
	liveServer, err := live.NewServer(template,
		live.WithLogger(logger),
		live.WithMetrics(m),
		live.WithFormID(cfg.FormID),
		live.WithMaxErrors(cfg.MaxErrors),
		live.WithMaxSessions(cfg.MaxSessions),
		live.WithMessageRate(cfg.MessageRate, cfg.MessageBurst),
	)
	if err != nil {
		return err
	}

	var w *watch.File
	if serveWatch {
		if cfg.Template == "" {
			return errors.New("--watch needs a template file")
		}
		if w, err = watch.New(cfg.Template, watch.WithLogger(logger)); err != nil {
			return err
		}
		defer w.Close()
	}

	handler := newMux(cfg, liveServer, codec, m, logger)

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sh := shutdown.NewHandler(cfg.ShutdownTimeout, logger)
	sh.Register("http", shutdown.PriorityHTTP, httpServer.Shutdown)
	sh.Register("sessions", shutdown.PrioritySessions, func(context.Context) error {
		liveServer.Shutdown()
		return nil
	})

	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)

	if w != nil {
		go func() {
			_ = w.Run(ctx, func(data []byte) {
				if err := liveServer.Reload(data); err != nil {
					logger.Error("template reload rejected", logging.Err(err))
				}
			})
		}()
	}

	go func() {
		logger.Info("serving wizard",
			logging.String("address", ln.Addr().String()),
			logging.String("codec", codec.Name()),
		)
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			cancel(fmt.Errorf("http server: %w", err))
		}
	}()

	err = sh.Wait(ctx)
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return errors.Join(cause, err)
	}
	return err
}

// newMux wires the page, the live endpoint, the client script, the health
// probes and the metrics.
func newMux(cfg *config.Config, liveServer *live.Server, codec protocol.Codec, m *metrics.Metrics, logger logging.Logger) http.Handler {
	tcfg := transport.DefaultConfig()
	tcfg.ReadTimeout = cfg.ReadTimeout
	tcfg.WriteTimeout = cfg.WriteTimeout
	tcfg.PingInterval = cfg.PingInterval
	tcfg.AllowedOrigins = cfg.AllowedOrigins
	tcfg.InsecureDevMode = cfg.InsecureDevMode

	ws := transport.NewHandler(liveServer.Session,
		transport.WithConfig(tcfg),
		transport.WithCodec(codec),
		transport.WithLogger(logger),
	)
	limiter := limits.NewConnectionLimiter(cfg.MaxConnsPerIP, cfg.TrustProxy)

	checker := health.NewChecker(version)
	checker.AddCriticalCheck("accepting", health.DrainCheck(liveServer.Closed), time.Second)
	checker.AddCheck("sessions", health.CapacityCheck(liveServer.Count, cfg.MaxSessions), time.Second)

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", logging.RequestLogger(logger)(liveServer))
	mux.Handle("GET /live", limiter.Middleware()(ws))
	mux.Handle("GET /static/", http.StripPrefix("/static/", client.Handler()))
	mux.Handle("GET /healthz", checker.LivenessHandler())
	mux.Handle("GET /readyz", checker.ReadinessHandler())
	mux.Handle("GET /metrics", m.Handler())
	return mux
}
