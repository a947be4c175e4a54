// Command toy-supervisord is the supervisor daemon from spec.md §4.6:
// it owns a service registry, runs the control loop alongside the
// heartbeat/event-export/metrics-export loops, and serves the local
// status API. Configuration follows spec.md §6.5's TOY_* environment
// variables, bound through viper the way firestige-Otus wires its own
// daemon config, with cobra supplying the flag surface (mirroring the
// teacher's own cmd/rigd, generalized past its single flag.Parse call).
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"log/slog"

	"github.com/toy-run/toy/apiclient"
	"github.com/toy-run/toy/events"
	"github.com/toy-run/toy/metrics"
	"github.com/toy-run/toy/plugins/testkit"
	"github.com/toy-run/toy/supervisor"
	"github.com/toy-run/toy/supervisor/statusapi"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "toy-supervisord: %v\n", err)
		var cfgErr *configError
		if errors.As(err, &cfgErr) {
			return 1
		}
		return 2
	}
	return 0
}

// configError marks a failure in flag/env parsing or config validation,
// distinct from a runtime startup failure — spec.md §6.4 gives these
// different exit codes (1 vs 2).
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TOY")
	v.AutomaticEnv()
	v.SetDefault("listen", "127.0.0.1:7420")
	v.SetDefault("name", defaultSupervisorName())
	v.SetDefault("heartbeat_interval", 10*time.Second)
	v.SetDefault("event_export_interval", 10*time.Second)
	v.SetDefault("metrics_export_interval", 10*time.Second)
	v.SetDefault("watchdog_interval", 60*time.Second)
	v.SetDefault("shutdown_deadline", 30*time.Second)
	v.SetDefault("log_format", "text")
	v.SetDefault("events_backend", "")

	cmd := &cobra.Command{
		Use:           "toy-supervisord",
		Short:         "Run the toy supervisor daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), v)
		},
	}

	// listen and name are the only daemon-local knobs worth a flag; the
	// rest (api-root, credentials, events backend) are spec.md §6.5
	// TOY_* environment variables, since they name secrets/endpoints a
	// fleet's process manager sets once rather than per-invocation flags.
	flags := cmd.Flags()
	flags.String("listen", v.GetString("listen"), "local status API listen address")
	flags.String("name", v.GetString("name"), "supervisor name (sub claim / heartbeat identity)")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	v.BindEnv("api_root", "TOY_API_ROOT")
	v.BindEnv("events_backend", "TOY_EVENTS_BACKEND")

	return cmd
}

func defaultSupervisorName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "toy-supervisor"
	}
	return host
}

// setupTracing installs a real SDK TracerProvider — batching spans to an
// OTLP/HTTP collector — when TOY_OTEL_EXPORTER_OTLP_ENDPOINT is set, so
// the per-task spans task.Context carries actually go somewhere; with no
// endpoint configured it leaves otel's no-op global provider in place
// rather than failing the daemon over a missing collector. The returned
// func flushes and tears the provider down; call it on exit.
func setupTracing(ctx context.Context, supervisorName string) (func(), error) {
	endpoint := os.Getenv("TOY_OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return func() {}, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("new otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName("toy-supervisord"),
		semconv.ServiceInstanceID(supervisorName),
	))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	return func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tp.Shutdown(shCtx)
	}, nil
}

func runDaemon(ctx context.Context, v *viper.Viper) error {
	log := newLogger(v.GetString("log_format"))

	shutdownTracing, err := setupTracing(ctx, v.GetString("name"))
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer shutdownTracing()

	api, err := newAPIClient(v, log)
	if err != nil {
		return &configError{err}
	}

	evExp, err := newEventExporter(ctx, v)
	if err != nil {
		return &configError{err}
	}

	name := v.GetString("name")
	cfg := supervisor.DefaultConfig(name)
	cfg.HeartbeatInterval = v.GetDuration("heartbeat_interval")
	cfg.EventExportInterval = v.GetDuration("event_export_interval")
	cfg.MetricsExportInterval = v.GetDuration("metrics_export_interval")
	cfg.WatchdogInterval = v.GetDuration("watchdog_interval")
	cfg.ShutdownDeadline = v.GetDuration("shutdown_deadline")

	var metExp metrics.Exporter
	if api != nil {
		metExp = metrics.Func(func(ctx context.Context, snap metrics.Snapshot) error {
			return api.ExportMetrics(ctx, snap)
		})
	}

	services := testkit.ServiceSet()
	sup := supervisor.New(cfg, services, api, evExp, metExp, log)

	// taskStartCount reads the live task_start_count counter straight out
	// of the supervisor's own metrics registry (spec.md §6.3), the same
	// registry runTask increments and metricsExportLoop snapshots — so
	// GET /metrics always reflects what this process has actually run.
	taskStartCount := func() int64 {
		n, err := sup.MetricsRegistry().CounterTotal("task_start_count")
		if err != nil {
			log.Warn("read task_start_count", "error", err)
			return 0
		}
		return n
	}

	ln, err := net.Listen("tcp", v.GetString("listen"))
	if err != nil {
		return fmt.Errorf("listen %s: %w", v.GetString("listen"), err)
	}
	statusSrv := statusapi.New(sup, name, time.Now(), taskStartCount)
	httpSrv := &http.Server{Handler: statusSrv}

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpSrv.Serve(ln) }()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("toy-supervisord listening", "addr", ln.Addr().String(), "name", name)

	// The supervisor runs on its own context, not sigCtx, so its control
	// loop is still serving the inbox when Shutdown is sent below.
	supCtx, cancelSup := context.WithCancel(ctx)
	defer cancelSup()
	supDone := make(chan error, 1)
	go func() { supDone <- sup.Start(supCtx) }()

	select {
	case <-sigCtx.Done():
		log.Info("shutting down on signal")
	case err := <-serveErr:
		log.Error("status API server exited", "error", err)
	}

	sup.Shutdown(context.Background())
	cancelSup()

	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpSrv.Shutdown(shCtx)

	<-supDone
	return nil
}

func newLogger(format string) *slog.Logger {
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func newAPIClient(v *viper.Viper, log *slog.Logger) (apiclient.Client, error) {
	root := v.GetString("api_root")
	if root == "" {
		log.Warn("TOY_API_ROOT not set; running without a central API client")
		return nil, nil
	}

	credPath := os.Getenv("TOY_API_CLIENT_CREDENTIAL")
	if credPath == "" {
		return nil, fmt.Errorf("TOY_API_CLIENT_CREDENTIAL is required when TOY_API_ROOT is set")
	}
	pemBytes, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read TOY_API_CLIENT_CREDENTIAL: %w", err)
	}

	tokens, err := apiclient.NewTokenProvider(v.GetString("name"), os.Getenv("TOY_API_CLIENT_KID"), pemBytes)
	if err != nil {
		return nil, fmt.Errorf("load API client credential: %w", err)
	}

	return apiclient.NewHTTPClient(root, tokens), nil
}

func newEventExporter(ctx context.Context, v *viper.Viper) (events.Exporter, error) {
	switch strings.ToLower(v.GetString("events_backend")) {
	case "", "none":
		return nil, nil
	case "redis":
		addr := os.Getenv("TOY_EVENTS_REDIS_ADDR")
		if addr == "" {
			return nil, fmt.Errorf("TOY_EVENTS_REDIS_ADDR is required for events_backend=redis")
		}
		return &events.RedisExporter{Client: redis.NewClient(&redis.Options{Addr: addr}), MaxPerTask: 10000}, nil
	case "s3":
		bucket := os.Getenv("TOY_EVENTS_S3_BUCKET")
		region := os.Getenv("TOY_EVENTS_S3_REGION")
		if bucket == "" || region == "" {
			return nil, fmt.Errorf("TOY_EVENTS_S3_BUCKET and TOY_EVENTS_S3_REGION are required for events_backend=s3")
		}
		awsCfg := aws.Config{
			Region: region,
			Credentials: credentials.NewStaticCredentialsProvider(
				os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"), os.Getenv("AWS_SESSION_TOKEN"),
			),
		}
		return &events.S3Exporter{Client: s3.NewFromConfig(awsCfg), Bucket: bucket}, nil
	case "kafka":
		brokers := os.Getenv("TOY_EVENTS_KAFKA_BROKERS")
		topic := os.Getenv("TOY_EVENTS_KAFKA_TOPIC")
		if brokers == "" || topic == "" {
			return nil, fmt.Errorf("TOY_EVENTS_KAFKA_BROKERS and TOY_EVENTS_KAFKA_TOPIC are required for events_backend=kafka")
		}
		client, err := kgo.NewClient(kgo.SeedBrokers(strings.Split(brokers, ",")...))
		if err != nil {
			return nil, fmt.Errorf("new kafka client: %w", err)
		}
		return &events.KafkaExporter{Client: client, Topic: topic}, nil
	default:
		return nil, fmt.Errorf("unknown events_backend %q", v.GetString("events_backend"))
	}
}
