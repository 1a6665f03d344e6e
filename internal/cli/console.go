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

	"ownercal/internal/app/console"
	"ownercal/internal/domain/availability"
	"ownercal/internal/infra/api"
	"ownercal/internal/infra/broker/kafka"
	"ownercal/internal/infra/config"
	"ownercal/internal/infra/obs"
	"ownercal/internal/infra/outbox"
	"ownercal/internal/infra/terminal"
)

// ConsoleOptions holds flags for the console command.
type ConsoleOptions struct {
	*RootOptions
	PropertyID string
	APIBaseURL string
	Follow     bool
}

// NewConsoleCommand creates the interactive calendar console.
func NewConsoleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConsoleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Open the calendar console for a property",
		Long: `Open the owner calendar for one property. The console loads the current
month and the following ones, lets you select a date or a range and applies
block, unblock or price actions to it.

Example:
  ownercal console --property 42 --api http://localhost:8080
  ownercal console --property 42 --follow`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.PropertyID, "property", "p", "", "property id (defaults to $PROPERTY_ID)")
	cmd.Flags().StringVar(&opts.APIBaseURL, "api", "", "backend base URL (defaults to $API_BASE_URL)")
	cmd.Flags().BoolVar(&opts.Follow, "follow", false, "resync when calendar events arrive on Kafka")

	return cmd
}

func runConsole(cmd *cobra.Command, opts *ConsoleOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if opts.PropertyID != "" {
		cfg.PropertyID = opts.PropertyID
	}
	if opts.APIBaseURL != "" {
		cfg.APIBaseURL = opts.APIBaseURL
	}
	if err := cfg.ValidateConsole(opts.Follow); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	term := terminal.New(cmd.InOrStdin(), cmd.OutOrStdout())
	client := &api.Client{
		BaseURL: cfg.APIBaseURL,
		HTTP:    &http.Client{Timeout: cfg.APITimeout},
		Logger:  logger,
	}

	session, err := console.New(console.Options{
		PropertyID:        cfg.PropertyID,
		Backend:           client,
		Host:              term,
		Renderer:          term,
		PagesPerBatch:     cfg.PagesPerBatch,
		PrefetchThreshold: cfg.PrefetchThreshold,
		DefaultPrice:      cfg.DefaultPrice,
		Now:               time.Now,
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if opts.Follow {
		follower, err := startFollower(ctx, cfg, session, logger)
		if err != nil {
			return err
		}
		defer follower.Close()
	}

	if err := session.Start(ctx); err != nil {
		return err
	}
	term.Println(`type "help" for commands`)

	err = term.Run(ctx, session)
	if errors.Is(err, context.Canceled) || errors.Is(err, console.ErrClosed) {
		return nil
	}
	return err
}

// startFollower joins a consumer group of its own: every console watching a
// property has to see every change.
func startFollower(ctx context.Context, cfg config.Config, session *console.Session, logger *slog.Logger) (*kafka.Consumer, error) {
	follower := kafka.CalendarFollower{
		PropertyID: cfg.PropertyID,
		Resync: func(ctx context.Context) error {
			_, err := session.Resync(ctx)
			return err
		},
		Logger: logger,
	}
	groupID := fmt.Sprintf("%s-%s", cfg.KafkaGroupID, uuid.NewString())
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, groupID, nil, follower, logger)
	if err != nil {
		return nil, fmt.Errorf("start follower: %w", err)
	}
	topic := outbox.TopicFor(cfg.KafkaTopicPrefix, availability.EventDaysBlocked)
	go func() {
		if err := consumer.Run(ctx, []string{topic}); err != nil && ctx.Err() == nil {
			logger.Error("calendar follower stopped", "topic", topic, "error", err)
		}
	}()
	logger.Info("following calendar events", "topic", topic, "group", groupID)
	return consumer, nil
}
