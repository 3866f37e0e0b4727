package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "guardian",
		Usage:   "nickname enforcement daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "gateway-host",
			Usage:   "hostname and port of the chat gateway to subscribe to",
			Value:   "wss://gateway.chat.example",
			EnvVars: []string{"GUARDIAN_GATEWAY_HOST"},
		},
		&cli.StringFlag{
			Name:    "platform-host",
			Usage:   "base URL of the chat platform REST API",
			Value:   "https://api.chat.example",
			EnvVars: []string{"GUARDIAN_PLATFORM_HOST"},
		},
		&cli.IntFlag{
			Name:    "max-metadb-connections",
			EnvVars: []string{"MAX_METADB_CONNECTIONS"},
			Value:   40,
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "gateway-token",
			Usage:    "authentication token for the gateway and platform API",
			Required: true,
			EnvVars:  []string{"GUARDIAN_GATEWAY_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/guardian/guardian.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for stream cursor state (optional)",
			EnvVars: []string{"GUARDIAN_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3999",
			EnvVars: []string{"GUARDIAN_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3998",
			EnvVars: []string{"GUARDIAN_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "command-prefix",
			Usage:   "prefix marking chat messages as administrative commands",
			Value:   "!",
			EnvVars: []string{"GUARDIAN_COMMAND_PREFIX"},
		},
		&cli.StringFlag{
			Name:    "admin-role",
			Usage:   "role ID allowed to manage immune roles (empty allows everyone)",
			EnvVars: []string{"GUARDIAN_ADMIN_ROLE"},
		},
		&cli.IntFlag{
			Name:    "revert-rate-limit",
			Usage:   "max nickname mutations per second against the platform API",
			Value:   8,
			EnvVars: []string{"GUARDIAN_REVERT_RATE_LIMIT"},
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "number of parallel event workers",
			Value:   16,
			EnvVars: []string{"GUARDIAN_WORKERS"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Enable OTLP HTTP exporter
		// For relevant environment variables:
		// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
		// At a minimum, you need to set
		// OTEL_EXPORTER_OTLP_ENDPOINT=http://localhost:4318
		if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
			slog.Info("setting up trace exporter", "endpoint", ep)
			exp, err := otlptracehttp.New(ctx)
			if err != nil {
				log.Fatal("failed to create trace exporter", "error", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := exp.Shutdown(ctx); err != nil {
					slog.Error("failed to shutdown trace exporter", "error", err)
				}
			}()

			tp := tracesdk.NewTracerProvider(
				tracesdk.WithBatcher(exp),
				tracesdk.WithResource(resource.NewWithAttributes(
					semconv.SchemaURL,
					semconv.ServiceNameKey.String("guardian"),
					attribute.String("env", os.Getenv("ENVIRONMENT")),
					attribute.String("environment", os.Getenv("ENVIRONMENT")),
					attribute.Int64("ID", 1),
				)),
			)
			otel.SetTracerProvider(tp)
		}

		db, err := setupDatabase(cctx.String("database-url"), cctx.Int("max-metadb-connections"))
		if err != nil {
			return err
		}

		srv, err := NewServer(
			db,
			Config{
				GatewayHost:     cctx.String("gateway-host"),
				PlatformHost:    cctx.String("platform-host"),
				GatewayToken:    cctx.String("gateway-token"),
				RedisURL:        cctx.String("redis-url"),
				CommandPrefix:   cctx.String("command-prefix"),
				AdminRoleID:     cctx.String("admin-role"),
				RevertRateLimit: cctx.Int("revert-rate-limit"),
				Workers:         cctx.Int("workers"),
				Logger:          logger,
			},
		)
		if err != nil {
			return err
		}

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			return srv.RunMetrics(cctx.String("metrics-listen"))
		})
		eg.Go(func() error {
			return srv.RunAPI(cctx.String("bind"))
		})
		eg.Go(func() error {
			return srv.RunPersistCursor(ctx)
		})
		eg.Go(func() error {
			defer stop()
			return srv.RunConsumer(ctx)
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if err := eg.Wait(); err != nil && err != context.Canceled {
			return fmt.Errorf("failed to run enforcement service: %w", err)
		}
		return nil
	},
}
