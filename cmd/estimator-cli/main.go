package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/brakes/brakes-estimator/internal/estimate/client"
	"github.com/brakes/brakes-estimator/internal/estimate/derive"
	"github.com/brakes/brakes-estimator/internal/estimate/events"
	"github.com/brakes/brakes-estimator/pkg/config"
	"github.com/brakes/brakes-estimator/pkg/errors"
	"github.com/brakes/brakes-estimator/pkg/logger"
	"github.com/brakes/brakes-estimator/pkg/messaging"
	"github.com/brakes/brakes-estimator/pkg/metrics"
	"github.com/brakes/brakes-estimator/pkg/resilience"
	"github.com/spf13/cobra"
)

const appName = "estimator-cli"

// app carries everything a command needs once configuration is loaded
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	client  *client.Client
	engine  *derive.Engine
	metrics *metrics.ClientMetrics
	out     io.Writer

	// set from persistent flags
	baseURL  string
	logLevel string
	asJSON   bool
}

func main() {
	a := &app{out: os.Stdout}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describe(err))
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Upload road safety audit reports and inspect cost estimates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "estimation service URL (overrides BRAKES_CLIENT_BASE_URL)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides BRAKES_APP_LOG_LEVEL)")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print raw JSON instead of tables")

	root.AddCommand(
		a.uploadCommand(),
		a.statusCommand(),
		a.healthCommand(),
		a.estimateCommand(),
		a.pricingCommand(),
		a.eventsCommand(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(appName)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.Client.BaseURL = a.baseURL
	}
	if err := cfg.Client.Validate(cfg.App.Environment); err != nil {
		return fmt.Errorf("client configuration error: %w", err)
	}
	level := cfg.App.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}

	a.cfg = cfg
	a.log = logger.New(appName, cfg.App.Environment).SetLevel(level)
	a.metrics = metrics.NewClientMetrics()

	exec := resilience.NewExecutor(resilience.FromConfig(cfg.Resilience), a.log)
	a.client, err = client.New(cfg.Client,
		client.WithExecutor(exec),
		client.WithMetrics(a.metrics),
		client.WithLogger(a.log),
	)
	if err != nil {
		return err
	}

	a.engine, err = derive.NewEngine(cfg.Derive, a.client)
	return err
}

// publisher connects to the broker when messaging is enabled. The returned
// close func is always safe to call.
func (a *app) publisher() (*events.Publisher, func()) {
	if !a.cfg.Messaging.Enabled {
		return events.NewPublisher(nil, a.log), func() {}
	}

	rmq, err := messaging.New(a.cfg.Messaging, a.log)
	if err != nil {
		a.log.Warn().Err(err).Msg("messaging unavailable, lifecycle events will not be published")
		return events.NewPublisher(nil, a.log), func() {}
	}
	p, err := messaging.NewPublisher(rmq, a.cfg.Messaging.Exchange, appName, a.log)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to create event publisher")
		rmq.Close()
		return events.NewPublisher(nil, a.log), func() {}
	}
	return events.NewPublisher(p, a.log), func() { rmq.Close() }
}

// describe renders an error for the terminal, including field details
func describe(err error) string {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	msg := appErr.Message
	// validation errors are raised locally, before any request is made
	if appErr.StatusCode != 0 && appErr.Kind != errors.KindValidation {
		msg = fmt.Sprintf("%s (%s, HTTP %d)", msg, appErr.Kind, appErr.StatusCode)
	} else {
		msg = fmt.Sprintf("%s (%s)", msg, appErr.Kind)
	}
	fields := make([]string, 0, len(appErr.Details))
	for field := range appErr.Details {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		msg += fmt.Sprintf("\n  %s: %s", field, appErr.Details[field])
	}
	return msg
}
