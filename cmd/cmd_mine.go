package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/alitto/pond/v2"
	"github.com/spf13/cobra"

	"github.com/dropstream/drops-miner/auth"
	"github.com/dropstream/drops-miner/catalog"
	"github.com/dropstream/drops-miner/client"
	"github.com/dropstream/drops-miner/config"
	"github.com/dropstream/drops-miner/discovery"
	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/events"
	"github.com/dropstream/drops-miner/logging"
	"github.com/dropstream/drops-miner/miner"
	"github.com/dropstream/drops-miner/observability"
	"github.com/dropstream/drops-miner/realtime"
	"github.com/dropstream/drops-miner/settings"
)

const (
	flagConfig   = "config"
	flagCampaign = "campaign"
	flagChannel  = "channel"

	// discoveryWorkers bounds concurrent liveness probes during
	// campaign discovery.
	discoveryWorkers = 8
)

// MineCmd returns the command that runs the mining engine.
func MineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "Start mining drops",
		Long: `Start the drop mining engine.

The engine discovers active reward campaigns, picks an eligible live
channel, and emits the periodic watch signal that accrues drop
progress. Progress is reconciled from the realtime push feed and the
inventory poll; completed drops are claimed automatically when
auto-claim is enabled.

Selection:
  --campaign: pin a specific campaign id (default: automatic)
  --channel:  pin a specific channel id within the campaign

Example:
  drops-miner mine --config /path/to/config.yaml
  drops-miner mine --config config.yaml --campaign 0a1b2c`,
		RunE: runMine,
	}

	cmd.Flags().String(flagConfig, "", "Path to config YAML file")
	cmd.Flags().String(flagCampaign, "", "Campaign id to mine (default: automatic selection)")
	cmd.Flags().String(flagChannel, "", "Channel id to watch (requires --campaign)")

	return cmd
}

func runMine(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("miner panic: %v", r)
		}
	}()

	configPath, _ := cmd.Flags().GetString(flagConfig)
	campaignID, _ := cmd.Flags().GetString(flagCampaign)
	channelID, _ := cmd.Flags().GetString(flagChannel)
	if channelID != "" && campaignID == "" {
		return fmt.Errorf("--channel requires --campaign")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewLoggerFromConfig(cfg.Logging)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled || cfg.Pprof.Enabled {
		obsServer := observability.NewServer(logger, observability.ServerConfig{
			MetricsEnabled: cfg.Metrics.Enabled,
			MetricsAddr:    cfg.Metrics.Addr,
			PprofEnabled:   cfg.Pprof.Enabled,
			PprofAddr:      cfg.Pprof.Addr,
		})
		if err := obsServer.Start(ctx); err != nil {
			return fmt.Errorf("starting observability server: %w", err)
		}
		defer func() { _ = obsServer.Stop() }()
	}

	tokens, err := auth.NewFileTokenProvider(logger, cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	defer func() { _ = tokens.Close() }()

	var settingsProvider settings.Provider
	if cfg.SettingsFile != "" {
		fp, err := settings.NewFileProvider(logger, cfg.SettingsFile)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		defer func() { _ = fp.Close() }()
		settingsProvider = fp
	} else {
		settingsProvider = settings.NewStatic(settings.Default())
	}

	gql, err := client.NewGQLClient(logger, cfg.Client, tokens)
	if err != nil {
		return fmt.Errorf("creating catalog client: %w", err)
	}

	bus := events.NewBus(logger)

	if cfg.Events.Enabled {
		publisher, err := events.NewRedisPublisher(logger, cfg.Events)
		if err != nil {
			return fmt.Errorf("creating redis event publisher: %w", err)
		}
		if err := publisher.Start(ctx, bus); err != nil {
			return fmt.Errorf("starting redis event publisher: %w", err)
		}
		defer func() { _ = publisher.Close() }()
	}

	progress := drops.NewProgressStore()
	cat := catalog.New(logger, gql, progress)

	pool := pond.NewPool(discoveryWorkers)
	defer pool.StopAndWait()
	discoverer := discovery.New(logger, gql, pool)

	var subscriberFactory miner.SubscriberFactory
	if cfg.Realtime.URL != "" {
		realtimeCfg := cfg.Realtime
		subscriberFactory = func(sink realtime.Sink) miner.PushSubscriber {
			return realtime.New(logger, realtimeCfg, sink)
		}
	}

	status := miner.NewStatusStore(bus)
	controller := miner.NewController(
		logger, gql, cat, discoverer, progress, status, bus,
		settingsProvider, subscriberFactory, cfg.Heartbeat,
	)

	if err := controller.Start(ctx, miner.Target{
		CampaignID: campaignID,
		ChannelID:  channelID,
	}); err != nil {
		return err
	}
	defer controller.Stop()

	logSessionEvents(ctx, logger, bus)
	return nil
}

// logSessionEvents blocks until shutdown or session end, echoing
// notable engine events to the log.
func logSessionEvents(ctx context.Context, logger logging.Logger, bus *events.Bus) {
	sub := bus.Subscribe(16)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case events.KindMiningComplete:
				logger.Info().
					Str(logging.FieldCampaign, ev.MiningComplete.CampaignName).
					Str(logging.FieldReason, ev.MiningComplete.Reason).
					Msg("campaign finished")
				return
			case events.KindMiningStoppedNoChannels:
				logger.Warn().
					Str(logging.FieldReason, ev.MiningStopped.Reason).
					Msg("mining stopped")
				return
			}
		}
	}
}
