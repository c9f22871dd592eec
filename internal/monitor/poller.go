package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/telhawk-systems/mailtap/common/logging"
	"github.com/telhawk-systems/mailtap/internal/dedup"
	"github.com/telhawk-systems/mailtap/internal/metrics"
	"github.com/telhawk-systems/mailtap/internal/provider"
	"github.com/telhawk-systems/mailtap/internal/rules"
)

// MaxWaitSeconds is the longest single long-poll window the queue accepts.
const MaxWaitSeconds = 20

// StepFetchObject names the object retrieval step in errors and logs.
const StepFetchObject = "fetch_object"

// Delivery is one email resolved from a queue notification.
type Delivery struct {
	Recipient  string
	Bucket     string
	ObjectKey  string
	MessageID  string
	Content    string
	Size       int
	ReceivedAt time.Time
}

// Poller waits on monitored queues and resolves notifications to content.
type Poller struct {
	mailboxes rules.Table
	registry  *Registry
	queues    provider.QueueService
	objects   provider.ObjectStore
	seen      dedup.Store
	logger    *slog.Logger
	now       func() time.Time
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithDedup skips objects the store has already seen.
func WithDedup(s dedup.Store) PollerOption {
	return func(p *Poller) {
		p.seen = s
	}
}

// WithPollerLogger sets the poller logger.
func WithPollerLogger(l *slog.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = l
	}
}

func NewPoller(mailboxes rules.Table, registry *Registry, queues provider.QueueService, objects provider.ObjectStore, opts ...PollerOption) *Poller {
	p := &Poller{
		mailboxes: mailboxes,
		registry:  registry,
		queues:    queues,
		objects:   objects,
		seen:      dedup.NoOpStore{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrDefault(p.logger)
	return p
}

// Next waits up to timeoutSeconds for the next email to recipient. The budget
// is spent in receive windows of at most MaxWaitSeconds, each charged in full
// whether or not it returned early. Next returns as soon as a notification
// resolves to stored content, and returns a nil Delivery when the budget runs
// out. Notifications that do not resolve to an object key are logged and
// skipped. A failed object fetch ends the wait with a nil Delivery and an
// error matching provider.ErrDegraded.
func (p *Poller) Next(ctx context.Context, recipient string, timeoutSeconds int) (*Delivery, error) {
	key := rules.Normalize(recipient)
	if !p.mailboxes.Exists(key) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecipient, recipient)
	}
	st, ok := p.registry.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotMonitored, recipient)
	}
	if st.QueueURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotEstablished, recipient)
	}

	log := p.logger.With(logging.Recipient(key), logging.Queue(st.QueueName))

	remaining := timeoutSeconds
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		window := min(remaining, MaxWaitSeconds)
		msgs, err := p.queues.Receive(ctx, st.QueueURL, window, 1)
		remaining -= window
		metrics.PollWaitSeconds.Add(float64(window))

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.ErrorContext(ctx, "failed waiting for next notification", logging.Wait(window), logging.Error(err))
			metrics.ReceiveCalls.WithLabelValues("error").Inc()
			continue
		}
		metrics.ReceiveCalls.WithLabelValues("ok").Inc()

		if len(msgs) == 0 {
			continue
		}
		if len(msgs) > 1 {
			log.WarnContext(ctx, "received more than one message, processing the first", slog.Int("count", len(msgs)))
		}

		delivery, done, err := p.resolve(ctx, log, key, st, msgs[0])
		if done {
			return delivery, err
		}
	}

	return nil, nil
}

// resolve turns a queue message into a delivery. done is false when the
// message was skipped and waiting should continue.
func (p *Poller) resolve(ctx context.Context, log *slog.Logger, recipient string, st *State, msg provider.QueueMessage) (*Delivery, bool, error) {
	log = log.With(logging.MessageID(msg.ID))
	bucket := st.Mailbox.Bucket

	objectKey, err := ObjectKey(msg.Body)
	if err != nil {
		log.WarnContext(ctx, "notification has no object key", logging.Error(err))
		metrics.DeliveriesTotal.WithLabelValues(metrics.ResultMalformed).Inc()
		p.ack(ctx, log, st, msg)
		return nil, false, nil
	}
	log = log.With(logging.Bucket(bucket), logging.ObjectKey(objectKey))

	seen, err := p.seen.Seen(ctx, bucket, objectKey)
	if err != nil {
		log.WarnContext(ctx, "delivery cache lookup failed", logging.Error(err))
	}
	if seen {
		log.DebugContext(ctx, "skipping already delivered email")
		metrics.DeliveriesTotal.WithLabelValues(metrics.ResultDuplicate).Inc()
		p.ack(ctx, log, st, msg)
		return nil, false, nil
	}

	start := p.now()
	content, err := p.fetch(ctx, bucket, objectKey)
	metrics.FetchDuration.Observe(p.now().Sub(start).Seconds())
	if err != nil {
		// Left on the queue so a later wait can retry after the visibility timeout.
		log.ErrorContext(ctx, "failed to download email", logging.Error(err))
		metrics.DeliveriesTotal.WithLabelValues(metrics.ResultFetchError).Inc()
		return nil, true, &provider.Error{Op: StepFetchObject, Recipient: recipient, Err: err}
	}

	metrics.DeliveriesTotal.WithLabelValues(metrics.ResultDelivered).Inc()
	metrics.ObjectBytesTotal.Add(float64(len(content)))

	if err := p.seen.Mark(ctx, bucket, objectKey); err != nil {
		log.WarnContext(ctx, "failed to record delivery", logging.Error(err))
	}
	p.ack(ctx, log, st, msg)

	log.InfoContext(ctx, "email delivered", slog.Int("bytes", len(content)))

	return &Delivery{
		Recipient:  recipient,
		Bucket:     bucket,
		ObjectKey:  objectKey,
		MessageID:  msg.ID,
		Content:    content,
		Size:       len(content),
		ReceivedAt: p.now().UTC(),
	}, true, nil
}

func (p *Poller) fetch(ctx context.Context, bucket, key string) (string, error) {
	body, err := p.objects.GetObject(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}
	return string(data), nil
}

// ack removes a consumed notification from the queue.
func (p *Poller) ack(ctx context.Context, log *slog.Logger, st *State, msg provider.QueueMessage) {
	if msg.ReceiptHandle == "" {
		return
	}
	if err := p.queues.DeleteMessage(ctx, st.QueueURL, msg.ReceiptHandle); err != nil {
		log.WarnContext(ctx, "failed to delete notification", logging.Error(err))
	}
}
