package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fanpulse/livewire/internal/common"
	"github.com/fanpulse/livewire/internal/config"
	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/internal/domain/repo/deadletter"
	"github.com/fanpulse/livewire/internal/domain/repo/history"
	"github.com/fanpulse/livewire/internal/domain/repo/prefs"
	"github.com/fanpulse/livewire/internal/domain/repo/roster"
	"github.com/fanpulse/livewire/internal/factory"
	"github.com/fanpulse/livewire/internal/livecache"
	"github.com/fanpulse/livewire/internal/log"
	"github.com/fanpulse/livewire/internal/provider"
	"github.com/fanpulse/livewire/internal/router"
	"github.com/fanpulse/livewire/pkg/pipeline"
)

var conf *config.Config

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest provider feeds and deliver alerts",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := config.Parse(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to parse config %s: %w", cfgFile, err)
		}

		// Init logger
		err = log.Init(parsed.Logs)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}

		conf = parsed

		logger := log.Logger()

		// Dump generic information
		logger.Info("Starting livewire",
			"version", version.Info(),
			"buildContext", version.BuildContext(),
		)
		logger.Info("Using config", "config", fmt.Sprintf("%+v", conf))

		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.Logger()

		// Set max procs based on cpu limits
		err := common.SetMaxProcs()
		if err != nil {
			logger.Error(err, "failed to set max procs")

			return
		}

		// Set max memory
		err = common.SetMemLimit()
		if err != nil {
			logger.Error(err, "failed to set mem limit")

			return
		}

		// Listen to sigterm and interrupt signals
		ctx := common.SetupSignalHandler(context.Background())

		err = run(ctx)
		if err != nil {
			logger.Error(err, "Pipeline failed")

			return
		}

		logger.V(2).Info("Processing stopped")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// run builds the full pipeline and blocks until ctx is done or a component
// fails: providers feed the event channel, workers route events into the
// dispatcher, the delivery engine pushes alerts out through the channels.
func run(ctx context.Context) error {
	logger := log.Logger()
	clock := clockwork.NewRealClock()
	registry := prometheus.NewRegistry()

	closers := []common.CloseFunc{}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), conf.GracefulDuration)
		defer cancel()

		err := common.CloseAll(closeCtx, closers)
		if err != nil {
			logger.Error(err, "failed to close resources")
		}
	}()

	// Create storage clients
	valkeyClient, closeValkey, err := factory.CreateValkeyClient(ctx, conf.Valkey)
	if err != nil {
		return fmt.Errorf("failed to create valkey client: %w", err)
	}

	closers = append(closers, closeValkey)

	archiveClient, err := factory.CreateS3Client(ctx, conf.Archive)
	if err != nil {
		return fmt.Errorf("failed to create archive s3 client: %w", err)
	}

	deadLetterClient, err := factory.CreateS3Client(ctx, conf.DeadLetterQueue)
	if err != nil {
		return fmt.Errorf("failed to create dead letter s3 client: %w", err)
	}

	// Create repositories
	preferences := prefs.NewSnapshot(prefs.NewValkeyRepo(valkeyClient))

	warmed, err := preferences.Warm(ctx)
	if err != nil {
		logger.Error(err, "failed to warm preference snapshot, falling back to read-through")
	} else {
		logger.V(1).Info("Preference snapshot warmed", "users", warmed)
	}

	rosterRepo := roster.NewValkeyRepo(valkeyClient)

	alertHistory := history.NewParallelWriter(
		history.NewValkeyRepo(valkeyClient, clock, conf.History),
		history.NewS3Writer(archiveClient, clock, conf.Archive.Bucket, conf.Archive.KeyPrefix),
	)

	deadLetter := deadletter.NewS3Writer(deadLetterClient, clock, conf.DeadLetterQueue.Bucket, conf.DeadLetterQueue.KeyPrefix)

	// Create error pipeline
	errorProcessing, err := factory.DecorateErrorProcessing(factory.NewDeadLetterProcessing(deadLetter), registry)
	if err != nil {
		return fmt.Errorf("failed to create error processing: %w", err)
	}

	// Create delivery path
	cache := livecache.New(livecache.Config{Shards: conf.Cache.Shards, RingCapacity: conf.Cache.RingCapacity})

	channels, hub, err := factory.CreateChannelRegistry(conf.Channels, registry)
	if err != nil {
		return fmt.Errorf("failed to create channel registry: %w", err)
	}

	dispatcher, engine, err := factory.CreateDispatchPath(conf, channels, preferences, alertHistory, clock, registry)
	if err != nil {
		return fmt.Errorf("failed to create dispatch path: %w", err)
	}

	// Create routing pipeline
	alertRouter, err := router.New(conf.Router, cache, rosterRepo, clock, registry)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	alertRouter.WithLogger(logger)

	processing, err := factory.DecorateProcessing(router.NewProcessing(cache, alertRouter, dispatcher), registry)
	if err != nil {
		return fmt.Errorf("failed to create processing: %w", err)
	}

	events := make(chan entity.DomainEvent, conf.Pipeline.EventBuffer)
	runner := pipeline.NewRunner(events, conf.Pipeline.Workers, processing, errorProcessing).WithLogger(logger)

	// Create provider manager
	manager, closeProviders, err := factory.CreateProviderManager(conf, clock, errorProcessing, registry, events)
	if err != nil {
		return fmt.Errorf("failed to create provider manager: %w", err)
	}

	closers = append(closers, closeProviders)

	// Create http servers
	metricsServer := factory.CreatePrometheusServer(conf.Metrics, registry)
	websocketServer := factory.CreateWebsocketServer(conf.Channels.Websocket, hub)

	// Start everything
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return manager.Start(groupCtx)
	})
	group.Go(func() error {
		return runner.Start(groupCtx)
	})
	group.Go(func() error {
		return dispatcher.Start(groupCtx)
	})
	group.Go(func() error {
		return engine.Start(groupCtx)
	})
	group.Go(func() error {
		watchLifecycle(groupCtx, manager)

		return nil
	})
	group.Go(func() error {
		return serve(groupCtx, metricsServer, nil)
	})
	group.Go(func() error {
		return serve(groupCtx, websocketServer, hub.Close)
	})

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// serve runs an HTTP server until ctx is done, then drains it within the
// graceful window. teardown, if set, runs after the listener is drained.
func serve(ctx context.Context, server *http.Server, teardown func() error) error {
	errs := make(chan error, 1)

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("server %s failed: %w", server.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.GracefulDuration)
	defer cancel()

	err := server.Shutdown(shutdownCtx)

	if teardown != nil {
		teardownErr := teardown()
		if err == nil {
			err = teardownErr
		}
	}

	return err
}

// watchLifecycle logs provider connection transitions so operators can see
// reconnect churn without scraping metrics.
func watchLifecycle(ctx context.Context, manager *provider.Manager) {
	logger := log.Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-manager.Lifecycle():
			logger.Info("Provider lifecycle",
				"provider", event.Provider,
				"kind", event.Kind,
				"reason", event.Reason,
				"attempts", event.Attempts,
			)
		}
	}
}
