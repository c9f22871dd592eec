// Package provider defines the contracts mailtap consumes from the mail, queue,
// notification and object-storage services. The core packages only depend on
// these interfaces; concrete clients live in subpackages such as provider/aws.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ProtocolQueue is the subscription protocol used to deliver topic
// notifications into a queue.
const ProtocolQueue = "sqs"

// ErrDegraded marks a provider call failure that the caller survived.
// The surrounding operation continued with empty values.
var ErrDegraded = errors.New("degraded")

// Rule is one receipt rule of a rule set.
type Rule struct {
	Name       string
	Recipients []string
	Actions    []Action
}

// Action is one action attached to a receipt rule. Storage is the primary
// form (bucket plus optional topic); Notify is the secondary form that may
// carry the topic on its own.
type Action struct {
	Storage *StorageAction
	Notify  *NotifyAction
}

// StorageAction writes the message to a bucket and may notify a topic.
type StorageAction struct {
	Bucket   string
	TopicARN string
}

// NotifyAction publishes the message notification to a topic.
type NotifyAction struct {
	TopicARN string
}

// QueueMessage is one message received from a queue.
type QueueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// RuleService reads receipt rule sets from the mail-receiving service.
type RuleService interface {
	DescribeRuleSet(ctx context.Context, name string) ([]Rule, error)
}

// QueueService manages queues and receives messages from them.
type QueueService interface {
	CreateQueue(ctx context.Context, name string) (string, error)
	QueueARN(ctx context.Context, url string) (string, error)
	SetPolicy(ctx context.Context, url, policy string) error
	// Receive long-polls the queue for at most waitSeconds.
	Receive(ctx context.Context, url string, waitSeconds, maxMessages int) ([]QueueMessage, error)
	DeleteMessage(ctx context.Context, url, receiptHandle string) error
	DeleteQueue(ctx context.Context, url string) error
}

// NotificationService manages topic subscriptions.
type NotificationService interface {
	Subscribe(ctx context.Context, topicARN, protocol, endpoint string) (string, error)
	Unsubscribe(ctx context.Context, subscriptionARN string) error
}

// ObjectStore reads stored objects.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Error records a failed provider call. It reports itself as ErrDegraded so
// callers can tell survived failures from precondition violations.
type Error struct {
	Op        string
	Recipient string
	Err       error
}

func (e *Error) Error() string {
	if e.Recipient == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s for %s: %v", e.Op, e.Recipient, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports ErrDegraded as a match.
func (e *Error) Is(target error) bool {
	return target == ErrDegraded
}
