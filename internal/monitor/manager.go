package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/telhawk-systems/mailtap/common/logging"
	"github.com/telhawk-systems/mailtap/internal/metrics"
	"github.com/telhawk-systems/mailtap/internal/provider"
	"github.com/telhawk-systems/mailtap/internal/rules"
)

// Provisioning and teardown steps, used in errors and metrics.
const (
	StepCreateQueue = "create_queue"
	StepQueueARN    = "get_queue_arn"
	StepSetPolicy   = "set_queue_policy"
	StepSubscribe   = "subscribe"
	StepUnsubscribe = "unsubscribe"
	StepDeleteQueue = "delete_queue"
)

// Manager provisions and tears down per-recipient notification channels.
type Manager struct {
	mailboxes     rules.Table
	registry      *Registry
	queues        provider.QueueService
	notifications provider.NotificationService
	logger        *slog.Logger
	instance      string
	nonce         func() string

	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock is a per-recipient mutex, dropped once no caller holds or waits on it.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Manager.
type Option func(*Manager)

// WithInstanceID overrides the process identity used in queue names.
func WithInstanceID(id string) Option {
	return func(m *Manager) {
		m.instance = id
	}
}

// WithNonce overrides the per-start queue name component.
func WithNonce(fn func() string) Option {
	return func(m *Manager) {
		m.nonce = fn
	}
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager over the given mailbox table and registry.
func NewManager(mailboxes rules.Table, registry *Registry, queues provider.QueueService, notifications provider.NotificationService, opts ...Option) *Manager {
	m := &Manager{
		mailboxes:     mailboxes,
		registry:      registry,
		queues:        queues,
		notifications: notifications,
		locks:         make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.instance == "" {
		m.instance = InstanceID()
	}
	if m.nonce == nil {
		m.nonce = Nonce
	}
	m.logger = logging.OrDefault(m.logger)
	return m
}

// lock serializes start and stop for one recipient.
func (m *Manager) lock(key string) func() {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// Start provisions a queue subscribed to the recipient's topic and registers
// it. Starting a monitored recipient returns the existing state. Failed steps
// are logged and skipped: the state is still registered with the identifiers
// that could be obtained, and the returned error matches provider.ErrDegraded.
func (m *Manager) Start(ctx context.Context, recipient string) (*State, error) {
	key := rules.Normalize(recipient)
	mbx, ok := m.mailboxes.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecipient, recipient)
	}

	unlock := m.lock(key)
	defer unlock()

	if st, ok := m.registry.Lookup(key); ok {
		m.logger.DebugContext(ctx, "recipient already monitored", logging.Recipient(key))
		return st, nil
	}

	st := &State{
		Mailbox:   mbx,
		QueueName: QueueName(mbx.Bucket, m.instance, key, m.nonce()),
	}
	log := m.logger.With(logging.Recipient(key), logging.Queue(st.QueueName))

	var errs []error
	fail := func(step string, err error) {
		log.ErrorContext(ctx, "monitor provisioning step failed", slog.String("step", step), logging.Error(err))
		metrics.ProvisionErrors.WithLabelValues(step).Inc()
		errs = append(errs, &provider.Error{Op: step, Recipient: key, Err: err})
	}

	if url, err := m.queues.CreateQueue(ctx, st.QueueName); err != nil {
		fail(StepCreateQueue, err)
	} else {
		st.QueueURL = url
	}

	if st.QueueURL != "" {
		if arn, err := m.queues.QueueARN(ctx, st.QueueURL); err != nil {
			fail(StepQueueARN, err)
		} else {
			st.QueueARN = arn
		}
	}

	if st.QueueARN != "" {
		policy, err := QueuePolicy(st.QueueARN, mbx.TopicARN)
		if err == nil {
			err = m.queues.SetPolicy(ctx, st.QueueURL, policy)
		}
		if err != nil {
			fail(StepSetPolicy, err)
		} else {
			st.PolicyAttached = true
		}

		if sub, err := m.notifications.Subscribe(ctx, mbx.TopicARN, provider.ProtocolQueue, st.QueueARN); err != nil {
			fail(StepSubscribe, err)
		} else {
			st.SubscriptionARN = sub
		}
	}

	m.registry.Insert(key, st)
	metrics.MonitorsActive.Set(float64(m.registry.Len()))

	log.InfoContext(ctx, "monitor started",
		logging.Topic(mbx.TopicARN),
		logging.QueueURL(st.QueueURL),
		logging.Subscription(st.SubscriptionARN),
		slog.Bool("established", st.Established()),
	)

	return st, errors.Join(errs...)
}

// Stop unsubscribes and deletes the recipient's queue, then removes it from
// the registry. Stopping a recipient without a monitor does nothing. Failed
// steps are logged and the teardown continues. Callers stopping after their
// context was cancelled should pass a fresh context.
func (m *Manager) Stop(ctx context.Context, recipient string) error {
	key := rules.Normalize(recipient)

	unlock := m.lock(key)
	defer unlock()

	st, ok := m.registry.Lookup(key)
	if !ok {
		return nil
	}
	log := m.logger.With(logging.Recipient(key), logging.Queue(st.QueueName))

	var errs []error
	fail := func(step string, err error) {
		log.ErrorContext(ctx, "monitor teardown step failed", slog.String("step", step), logging.Error(err))
		metrics.ProvisionErrors.WithLabelValues(step).Inc()
		errs = append(errs, &provider.Error{Op: step, Recipient: key, Err: err})
	}

	if st.SubscriptionARN != "" {
		if err := m.notifications.Unsubscribe(ctx, st.SubscriptionARN); err != nil {
			fail(StepUnsubscribe, err)
		}
	}

	if st.QueueURL != "" {
		if err := m.queues.DeleteQueue(ctx, st.QueueURL); err != nil {
			fail(StepDeleteQueue, err)
		}
	}

	m.registry.Erase(key)
	metrics.MonitorsActive.Set(float64(m.registry.Len()))

	log.InfoContext(ctx, "monitor stopped")
	return errors.Join(errs...)
}

// StopAll stops every active monitor.
func (m *Manager) StopAll(ctx context.Context) error {
	var errs []error
	for _, recipient := range m.registry.Recipients() {
		if err := m.Stop(ctx, recipient); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Active returns the monitored recipients in sorted order.
func (m *Manager) Active() []string {
	return m.registry.Recipients()
}
