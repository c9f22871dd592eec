package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/telhawk-systems/mailtap/common/logging"
	"github.com/telhawk-systems/mailtap/common/messaging"
	"github.com/telhawk-systems/mailtap/common/messaging/nats"
	"github.com/telhawk-systems/mailtap/internal/config"
	"github.com/telhawk-systems/mailtap/internal/dedup"
	"github.com/telhawk-systems/mailtap/internal/provider"
	provideraws "github.com/telhawk-systems/mailtap/internal/provider/aws"
	"github.com/telhawk-systems/mailtap/internal/service"
)

// newService builds the service from configuration. Tests replace it.
var newService = func(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*service.Service, error) {
	clients, err := provideraws.New(ctx, provideraws.Options{
		Region:   cfg.AWS.Region,
		Endpoint: cfg.AWS.Endpoint,
	})
	if err != nil {
		return nil, err
	}

	deps := service.Deps{
		Rules:         clients.Rules(),
		Queues:        clients.Queues(),
		Notifications: clients.Notifications(),
		Objects:       clients.Objects(),
		Logger:        logger.Logger,
	}

	if cfg.Dedup.Enabled {
		store, err := dedup.NewRedisStore(cfg.Dedup.RedisURL, cfg.Dedup.TTL)
		if err != nil {
			// Delivery still works without the cache
			logger.Warn("delivery cache unavailable, continuing without it", logging.Error(err))
		} else {
			deps.Dedup = store
		}
	}

	if cfg.NATS.Enabled {
		publisher, err := newPublisher(cfg.NATS, logger)
		if err != nil {
			logger.Warn("event publishing unavailable, continuing without it", logging.Error(err))
		} else {
			deps.Publisher = publisher
		}
	}

	return service.New(ctx, deps, cfg.RuleSets)
}

func newPublisher(c config.NATSConfig, logger *logging.Logger) (messaging.Publisher, error) {
	natsCfg := nats.DefaultConfig()
	natsCfg.URL = c.URL
	natsCfg.MaxReconnects = c.MaxReconnects
	natsCfg.ReconnectWait = c.ReconnectWait
	natsCfg.Username = c.Username
	natsCfg.Password = c.Password
	natsCfg.Token = c.Token
	natsCfg.Logger = logger.Logger

	client, err := nats.NewClient(natsCfg)
	if err != nil {
		return nil, err
	}
	logger.Info("publishing delivery events",
		slog.String("url", c.URL),
		slog.Bool("connected", client.IsConnected()),
	)
	return client, nil
}

// loadService builds the service and tolerates partially loaded rule sets.
func loadService(ctx context.Context) (*service.Service, error) {
	svc, err := newService(ctx, cfg, logger)
	if err != nil {
		if svc != nil && errors.Is(err, provider.ErrDegraded) {
			logger.WarnContext(ctx, "some receipt rule sets could not be loaded", logging.Error(err))
			return svc, nil
		}
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return svc, nil
}
