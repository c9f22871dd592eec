// Package providertest provides in-memory provider implementations that
// record every call. Receive never sleeps; it records the requested window.
package providertest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/telhawk-systems/mailtap/internal/provider"
)

// Rules serves rule sets from memory.
type Rules struct {
	Sets   map[string][]provider.Rule
	Errors map[string]error

	mu    sync.Mutex
	Calls []string
}

func (r *Rules) DescribeRuleSet(_ context.Context, name string) ([]provider.Rule, error) {
	r.mu.Lock()
	r.Calls = append(r.Calls, name)
	r.mu.Unlock()

	if err := r.Errors[name]; err != nil {
		return nil, err
	}
	rules, ok := r.Sets[name]
	if !ok {
		return nil, fmt.Errorf("rule set %s does not exist", name)
	}
	return rules, nil
}

// Queues is an in-memory queue service. Each Receive pops the next entry
// of Responses; when Responses is exhausted no messages are returned.
type Queues struct {
	CreateErr      error
	ARNErr         error
	PolicyErr      error
	ReceiveErr     error
	DeleteQueueErr error

	mu              sync.Mutex
	Responses       [][]provider.QueueMessage
	Created         []string
	Policies        map[string]string
	Waits           []int
	MaxMessages     []int
	DeletedMessages []string
	DeletedQueues   []string
}

// URL returns the queue URL the fake assigns to name.
func URL(name string) string {
	return "https://sqs.test.local/000000000000/" + name
}

// ARN returns the queue ARN the fake assigns to name.
func ARN(name string) string {
	return "arn:aws:sqs:eu-west-1:000000000000:" + name
}

func (q *Queues) CreateQueue(_ context.Context, name string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Created = append(q.Created, name)
	if q.CreateErr != nil {
		return "", q.CreateErr
	}
	return URL(name), nil
}

func (q *Queues) QueueARN(_ context.Context, url string) (string, error) {
	if q.ARNErr != nil {
		return "", q.ARNErr
	}
	return ARN(url[strings.LastIndex(url, "/")+1:]), nil
}

func (q *Queues) SetPolicy(_ context.Context, url, policy string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.PolicyErr != nil {
		return q.PolicyErr
	}
	if q.Policies == nil {
		q.Policies = make(map[string]string)
	}
	q.Policies[url] = policy
	return nil
}

func (q *Queues) Receive(_ context.Context, _ string, waitSeconds, maxMessages int) ([]provider.QueueMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Waits = append(q.Waits, waitSeconds)
	q.MaxMessages = append(q.MaxMessages, maxMessages)
	if q.ReceiveErr != nil {
		return nil, q.ReceiveErr
	}
	if len(q.Responses) == 0 {
		return nil, nil
	}
	msgs := q.Responses[0]
	q.Responses = q.Responses[1:]
	return msgs, nil
}

func (q *Queues) DeleteMessage(_ context.Context, _ string, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.DeletedMessages = append(q.DeletedMessages, receiptHandle)
	return nil
}

func (q *Queues) DeleteQueue(_ context.Context, url string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.DeletedQueues = append(q.DeletedQueues, url)
	return q.DeleteQueueErr
}

// TotalWait sums every requested receive window.
func (q *Queues) TotalWait() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := 0
	for _, w := range q.Waits {
		total += w
	}
	return total
}

// Subscription is one recorded topic subscription.
type Subscription struct {
	TopicARN string
	Protocol string
	Endpoint string
}

// Notifications is an in-memory notification service.
type Notifications struct {
	SubscribeErr   error
	UnsubscribeErr error

	mu           sync.Mutex
	Subscribed   []Subscription
	Unsubscribed []string
}

func (n *Notifications) Subscribe(_ context.Context, topicARN, protocol, endpoint string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.SubscribeErr != nil {
		return "", n.SubscribeErr
	}
	n.Subscribed = append(n.Subscribed, Subscription{TopicARN: topicARN, Protocol: protocol, Endpoint: endpoint})
	return fmt.Sprintf("%s:sub-%d", topicARN, len(n.Subscribed)), nil
}

func (n *Notifications) Unsubscribe(_ context.Context, subscriptionARN string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Unsubscribed = append(n.Unsubscribed, subscriptionARN)
	return n.UnsubscribeErr
}

// Objects serves objects from memory keyed by "bucket/key".
type Objects struct {
	Data map[string]string
	Err  error

	mu      sync.Mutex
	Fetched []string
}

func (o *Objects) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	o.mu.Lock()
	o.Fetched = append(o.Fetched, bucket+"/"+key)
	o.mu.Unlock()

	if o.Err != nil {
		return nil, o.Err
	}
	content, ok := o.Data[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("NoSuchKey: %s/%s", bucket, key)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

// Notification builds an SNS-over-SQS body whose SES payload points at
// objectKey, the shape produced by an S3 receipt action.
func Notification(objectKey string) string {
	return fmt.Sprintf(`{"Type":"Notification","MessageId":"n-1","TopicArn":"arn:aws:sns:eu-west-1:000000000000:mail","Message":%q}`,
		fmt.Sprintf(`{"notificationType":"Received","receipt":{"action":{"type":"S3","bucketName":"mail","objectKey":%q}}}`, objectKey))
}
