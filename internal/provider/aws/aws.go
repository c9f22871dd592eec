// Package aws binds the provider contracts to SES, SQS, SNS and S3 through
// aws-sdk-go-v2. Clients are built once by New and shared by every monitor.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/telhawk-systems/mailtap/internal/provider"
)

var (
	_ provider.RuleService         = (*RuleService)(nil)
	_ provider.QueueService        = (*QueueService)(nil)
	_ provider.NotificationService = (*NotificationService)(nil)
	_ provider.ObjectStore         = (*ObjectStore)(nil)
)

// Options selects the target region and an optional endpoint override.
type Options struct {
	Region string
	// Endpoint replaces the base endpoint of every service when set,
	// e.g. http://localhost:4566 for LocalStack.
	Endpoint string
}

// Clients holds one SDK client per service.
type Clients struct {
	rules         *RuleService
	queues        *QueueService
	notifications *NotificationService
	objects       *ObjectStore
}

// New loads the default credential chain and builds every service client.
func New(ctx context.Context, opts Options) (*Clients, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewFromConfig(cfg, opts.Endpoint), nil
}

// NewFromConfig builds the service clients from an existing aws.Config.
func NewFromConfig(cfg aws.Config, endpoint string) *Clients {
	sesClient := ses.NewFromConfig(cfg, func(o *ses.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	sqsClient := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	snsClient := sns.NewFromConfig(cfg, func(o *sns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Clients{
		rules:         NewRuleService(sesClient),
		queues:        NewQueueService(sqsClient),
		notifications: NewNotificationService(snsClient),
		objects:       NewObjectStore(s3Client),
	}
}

// Rules returns the SES receipt rule reader.
func (c *Clients) Rules() *RuleService { return c.rules }

// Queues returns the SQS client wrapper.
func (c *Clients) Queues() *QueueService { return c.queues }

// Notifications returns the SNS client wrapper.
func (c *Clients) Notifications() *NotificationService { return c.notifications }

// Objects returns the S3 client wrapper.
func (c *Clients) Objects() *ObjectStore { return c.objects }
