// Package service exposes the mailbox monitor as a single handle: rules are
// loaded once, recipients are monitored and unmonitored, and callers wait for
// the next email to a monitored recipient.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/mailtap/common/logging"
	"github.com/telhawk-systems/mailtap/common/messaging"
	"github.com/telhawk-systems/mailtap/internal/dedup"
	"github.com/telhawk-systems/mailtap/internal/metrics"
	"github.com/telhawk-systems/mailtap/internal/monitor"
	"github.com/telhawk-systems/mailtap/internal/provider"
	"github.com/telhawk-systems/mailtap/internal/rules"
)

// Deps are the collaborators a Service is built from. Dedup, Publisher and
// Logger are optional.
type Deps struct {
	Rules         provider.RuleService
	Queues        provider.QueueService
	Notifications provider.NotificationService
	Objects       provider.ObjectStore

	Dedup      dedup.Store
	Publisher  messaging.Publisher
	Logger     *slog.Logger
	InstanceID string
}

// DeliveredEvent is published after an email is handed to a caller.
type DeliveredEvent struct {
	ID         string    `json:"id"`
	Recipient  string    `json:"recipient"`
	Bucket     string    `json:"bucket"`
	ObjectKey  string    `json:"object_key"`
	Size       int       `json:"size"`
	ReceivedAt time.Time `json:"received_at"`
}

type Service struct {
	mailboxes rules.Table
	manager   *monitor.Manager
	poller    *monitor.Poller
	seen      dedup.Store
	publisher messaging.Publisher
	logger    *slog.Logger
}

// New loads ruleSets and wires the monitor components. A rule set that could
// not be loaded does not fail construction: the Service is returned together
// with the load error, which matches provider.ErrDegraded.
func New(ctx context.Context, deps Deps, ruleSets []string) (*Service, error) {
	if deps.Rules == nil || deps.Queues == nil || deps.Notifications == nil || deps.Objects == nil {
		return nil, fmt.Errorf("service requires rule, queue, notification and object services")
	}
	if len(ruleSets) == 0 {
		ruleSets = []string{rules.DefaultRuleSet}
	}

	logger := logging.OrDefault(deps.Logger)
	if deps.Dedup == nil {
		deps.Dedup = dedup.NoOpStore{}
	}
	if deps.Publisher == nil {
		deps.Publisher = messaging.NoOpPublisher{}
	}

	mailboxes, loadErr := rules.NewDirectory(deps.Rules, logger).Load(ctx, ruleSets)

	registry := monitor.NewRegistry()
	managerOpts := []monitor.Option{monitor.WithLogger(logger)}
	if deps.InstanceID != "" {
		managerOpts = append(managerOpts, monitor.WithInstanceID(deps.InstanceID))
	}

	s := &Service{
		mailboxes: mailboxes,
		manager:   monitor.NewManager(mailboxes, registry, deps.Queues, deps.Notifications, managerOpts...),
		poller: monitor.NewPoller(mailboxes, registry, deps.Queues, deps.Objects,
			monitor.WithDedup(deps.Dedup),
			monitor.WithPollerLogger(logger),
		),
		seen:      deps.Dedup,
		publisher: deps.Publisher,
		logger:    logger,
	}

	logger.InfoContext(ctx, "mailbox table loaded",
		slog.Int("mailboxes", len(mailboxes)),
		slog.Any("rule_sets", ruleSets),
	)
	return s, loadErr
}

// Mailboxes returns a copy of the recipient table loaded at construction.
func (s *Service) Mailboxes() rules.Table {
	return s.mailboxes.Clone()
}

// Exists reports whether recipient has a mailbox.
func (s *Service) Exists(recipient string) bool {
	return s.mailboxes.Exists(recipient)
}

// Monitor starts monitoring recipient. See monitor.Manager.Start.
func (s *Service) Monitor(ctx context.Context, recipient string) error {
	_, err := s.manager.Start(ctx, recipient)
	return err
}

// Unmonitor stops monitoring recipient. See monitor.Manager.Stop.
func (s *Service) Unmonitor(ctx context.Context, recipient string) error {
	return s.manager.Stop(ctx, recipient)
}

// Monitored reports whether recipient has an active monitor.
func (s *Service) Monitored(recipient string) bool {
	for _, r := range s.manager.Active() {
		if r == rules.Normalize(recipient) {
			return true
		}
	}
	return false
}

// WaitForNext waits up to timeoutSeconds for the next email to recipient and
// returns its content. It returns "" with a nil error when nothing arrived.
func (s *Service) WaitForNext(ctx context.Context, recipient string, timeoutSeconds int) (string, error) {
	d, err := s.Next(ctx, recipient, timeoutSeconds)
	if err != nil || d == nil {
		return "", err
	}
	return d.Content, nil
}

// Next is WaitForNext returning the full delivery.
func (s *Service) Next(ctx context.Context, recipient string, timeoutSeconds int) (*monitor.Delivery, error) {
	d, err := s.poller.Next(ctx, recipient, timeoutSeconds)
	if err != nil || d == nil {
		return nil, err
	}
	s.publish(ctx, d)
	return d, nil
}

// publish announces a delivery. Failures are logged only.
func (s *Service) publish(ctx context.Context, d *monitor.Delivery) {
	event := DeliveredEvent{
		ID:         uuid.NewString(),
		Recipient:  d.Recipient,
		Bucket:     d.Bucket,
		ObjectKey:  d.ObjectKey,
		Size:       d.Size,
		ReceivedAt: d.ReceivedAt,
	}

	err := messaging.PublishJSON(ctx, s.publisher, messaging.MailDeliveredSubject(d.Recipient), event,
		messaging.WithHeader(messaging.HeaderEventID, event.ID),
	)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish delivery event",
			logging.Recipient(d.Recipient),
			logging.ObjectKey(d.ObjectKey),
			logging.Error(err),
		)
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
}

// Close stops every monitor and releases the publisher and dedup store.
// Pass a context that is still live; teardown calls use it.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if err := s.manager.StopAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if err := s.seen.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close dedup store: %w", err))
	}
	return errors.Join(errs...)
}
