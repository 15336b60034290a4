// Package di provides dependency injection for services.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/config"
	"github.com/aristath/riskgovernor/internal/dispatch"
	"github.com/aristath/riskgovernor/internal/engine"
	"github.com/aristath/riskgovernor/internal/events"
	"github.com/aristath/riskgovernor/internal/marketdata"
	"github.com/aristath/riskgovernor/internal/metrics"
	"github.com/aristath/riskgovernor/internal/modules/cases"
	"github.com/aristath/riskgovernor/internal/modules/decisions"
	"github.com/aristath/riskgovernor/internal/modules/overrides"
	"github.com/aristath/riskgovernor/internal/notify"
	"github.com/aristath/riskgovernor/internal/pipeline"
	"github.com/aristath/riskgovernor/internal/reliability"
	"github.com/aristath/riskgovernor/internal/skills"
)

// InitializeServices creates collaborators, the callable registry and every service
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.DB == nil {
		return fmt.Errorf("container database must be initialized first")
	}

	container.Bus = events.NewBus(log)
	container.Metrics = metrics.New()

	if container.Prices == nil {
		container.Prices = marketdata.NewSynthetic()
	}

	if err := initializeCollaborators(container, cfg, log); err != nil {
		return err
	}

	// Registry: decision stages first, then skills
	container.Registry = dispatch.NewRegistry(cfg.NodeID)
	pipeline.Register(container.Registry)
	skills.Register(container.Registry, skills.Deps{
		Prices:   container.Prices,
		Notifier: container.Notifier,
		Emitter:  container.Emitter,
		Log:      log,
	})

	container.Dispatcher = dispatch.NewDispatcher(container.Registry, log)
	container.Dispatcher.SetObserver(container.Metrics)

	limits := dispatch.Limits{
		MaxSteps:         cfg.Budget.MaxSteps,
		MaxReasonerCalls: cfg.Budget.MaxReasonerCalls,
		MaxSkillCalls:    cfg.Budget.MaxSkillCalls,
	}

	conn := container.DB.Conn()
	container.Engine = engine.New(conn, container.Dispatcher, limits, container.Bus, container.Metrics, log)
	container.CaseService = cases.NewService(conn, container.Bus, log)
	container.OverrideService = overrides.NewService(conn, container.Bus, log)
	container.DecisionRepo = decisions.NewRepository(conn, log)

	if cfg.Backup.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := reliability.NewS3Client(ctx, cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to initialize backup storage: %w", err)
		}
		container.BackupService = reliability.NewBackupService(container.DB, store, cfg.Backup.Prefix, cfg.Backup.RetentionDays, "", log)
	}

	log.Info().
		Int("callables", container.Registry.Count()).
		Str("node", container.Registry.Node()).
		Str("notifier", channelOf(container.Notifier)).
		Str("emitter", channelOf(container.Emitter)).
		Bool("backups", container.BackupService != nil).
		Msg("Services initialized")

	return nil
}

// initializeCollaborators picks the human and risk-event channels.
// Unconfigured channels fall back to structured logs.
func initializeCollaborators(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.Notifier == nil {
		if cfg.Telegram.Enabled() {
			tg, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
			if err != nil {
				return fmt.Errorf("failed to initialize telegram notifier: %w", err)
			}
			container.Notifier = tg
		} else {
			container.Notifier = notify.NewLogNotifier(log)
		}
	}

	if container.Emitter == nil {
		if cfg.Kafka.Enabled() {
			k, err := events.NewKafkaEmitter(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
			if err != nil {
				return fmt.Errorf("failed to initialize kafka emitter: %w", err)
			}
			container.Emitter = k
			container.addCloser(k.Close)
		} else {
			container.Emitter = events.NewLogEmitter(container.Bus, log)
		}
	}

	return nil
}

type channeler interface {
	Channel() string
}

func channelOf(c channeler) string {
	if c == nil {
		return "none"
	}
	return c.Channel()
}
