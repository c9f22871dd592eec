package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSAPI is the subset of the SNS client used by NotificationService.
type SNSAPI interface {
	Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	Unsubscribe(ctx context.Context, params *sns.UnsubscribeInput, optFns ...func(*sns.Options)) (*sns.UnsubscribeOutput, error)
}

// NotificationService implements provider.NotificationService on SNS.
type NotificationService struct {
	client SNSAPI
}

// NewNotificationService wraps an SNS client.
func NewNotificationService(client SNSAPI) *NotificationService {
	return &NotificationService{client: client}
}

// Subscribe subscribes endpoint to the topic. ReturnSubscriptionArn is set so
// the ARN is returned even while the subscription is pending confirmation.
func (n *NotificationService) Subscribe(ctx context.Context, topicARN, protocol, endpoint string) (string, error) {
	out, err := n.client.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn:              aws.String(topicARN),
		Protocol:              aws.String(protocol),
		Endpoint:              aws.String(endpoint),
		ReturnSubscriptionArn: true,
	})
	if err != nil {
		return "", fmt.Errorf("subscribe to %s: %w", topicARN, err)
	}
	return aws.ToString(out.SubscriptionArn), nil
}

func (n *NotificationService) Unsubscribe(ctx context.Context, subscriptionARN string) error {
	_, err := n.client.Unsubscribe(ctx, &sns.UnsubscribeInput{
		SubscriptionArn: aws.String(subscriptionARN),
	})
	if err != nil {
		return fmt.Errorf("unsubscribe %s: %w", subscriptionARN, err)
	}
	return nil
}
