package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ownercal/internal/app/commands"
	availabilityapp "ownercal/internal/app/handlers/availability"
	"ownercal/internal/app/middleware"
	appoutbox "ownercal/internal/app/outbox"
	"ownercal/internal/app/queries"
	"ownercal/internal/domain/availability"
	"ownercal/internal/infra/broker/kafka"
	"ownercal/internal/infra/config"
	mongodb "ownercal/internal/infra/db/mongo"
	ginserver "ownercal/internal/infra/http/gin"
	"ownercal/internal/infra/obs"
	"ownercal/internal/infra/outbox"
	"ownercal/internal/infra/storage/memory"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Storage  string
	Fixtures string
}

// NewServeCommand creates the reference calendar server.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the calendar HTTP server",
		Long: `Serve the owner calendar API the console talks to. Calendars live in
memory (seeded from a fixtures file) or in MongoDB; changes are published
to Kafka when brokers are configured.

Example:
  ownercal serve --fixtures data/properties.json
  STORAGE_MODE=mongo MONGO_URI=mongodb://localhost:27017 ownercal serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (defaults to $HTTP_ADDR)")
	cmd.Flags().StringVar(&opts.Storage, "storage", "", "memory or mongo (defaults to $STORAGE_MODE)")
	cmd.Flags().StringVar(&opts.Fixtures, "fixtures", "", "property fixtures JSON (defaults to $PROPERTY_FIXTURES)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.HTTPAddr = opts.Addr
	}
	if opts.Storage != "" {
		cfg.StorageMode = opts.Storage
	}
	if opts.Fixtures != "" {
		cfg.PropertyFixtures = opts.Fixtures
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)

	app, err := buildBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close(logger)

	fixtures := cfg.PropertyFixtures
	if fixtures == "" {
		fixtures = defaultFixturesPath()
	}
	cals, err := loadFixtures(fixtures, time.Now())
	if err != nil {
		logger.Warn("property fixtures load failed", "error", err, "path", fixtures)
	}
	if n, err := seedCalendars(ctx, app.repo, cals, logger); err != nil {
		logger.Warn("property fixtures seed failed", "error", err)
	} else if n > 0 {
		logger.Info("property fixtures imported", "count", n, "path", fixtures)
	}

	for _, run := range app.background {
		go run(ctx)
	}

	server := ginserver.NewServer(
		ginserver.Options{Env: cfg.Env, Addr: cfg.HTTPAddr},
		obs.Middleware{Logger: logger},
		obs.HealthHandlers{Ready: app.ready},
		app.handlers,
	)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}

type backend struct {
	handlers   ginserver.Handlers
	repo       availability.Repository
	ready      func(ctx context.Context) error
	background []func(ctx context.Context)
	closers    []func(ctx context.Context) error
}

// buildBackend wires storage, the outbox and the buses behind the HTTP
// handlers. With Mongo the outbox is a collection drained by a worker;
// otherwise records are published on flush.
func buildBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backend, error) {
	app := &backend{}

	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		p, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		producer = p
		app.closers = append(app.closers, func(context.Context) error { return p.Close() })
	}

	var box appoutbox.Outbox
	switch cfg.StorageMode {
	case config.StorageMongo:
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			app.close(logger)
			return nil, fmt.Errorf("mongo: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		store, err := outbox.NewStore(ctx, client.DB)
		if err != nil {
			app.close(logger)
			return nil, fmt.Errorf("outbox store: %w", err)
		}
		app.repo = mongodb.NewCalendarRepository(client.DB)
		app.ready = client.Ping
		box = store
		if producer != nil {
			worker := &outbox.Worker{
				Store:       store,
				Producer:    producer,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
				Source:      outbox.DefaultSource,
				ID:          "outbox-" + uuid.NewString(),
				Backoff:     cfg.RetryBackoff,
				Logger:      logger,
			}
			app.background = append(app.background, func(ctx context.Context) {
				if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
					logger.Error("outbox worker stopped", "error", err)
				}
			})
		}
	default:
		app.repo = memory.NewCalendarRepository()
		var pub memory.Publisher
		if producer != nil {
			pub = outbox.BrokerPublisher{Producer: producer, TopicPrefix: cfg.KafkaTopicPrefix, Source: outbox.DefaultSource}
		}
		box = memory.NewOutbox(pub, logger)
	}

	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	availabilityapp.Register(commandBus, queryBus, availabilityapp.Deps{
		Repo:    app.repo,
		Outbox:  box,
		Encoder: appoutbox.JSONEventEncoder{},
		Now:     time.Now,
		Logger:  logger,
	})

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Logging(logger),
		middleware.Validation(),
		middleware.OutboxFlush(box),
	)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryLogging(logger),
		middleware.QueryValidation(),
	)

	app.handlers = ginserver.Handlers{
		Calendar: ginserver.CalendarHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
			Now:      time.Now,
			Logger:   logger,
		},
	}
	return app, nil
}

func (b *backend) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			logger.Warn("shutdown step failed", "error", err)
		}
	}
	b.closers = nil
}
