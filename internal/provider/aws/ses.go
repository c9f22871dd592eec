package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/telhawk-systems/mailtap/internal/provider"
)

// SESAPI is the subset of the SES client used by RuleService.
type SESAPI interface {
	DescribeReceiptRuleSet(ctx context.Context, params *ses.DescribeReceiptRuleSetInput, optFns ...func(*ses.Options)) (*ses.DescribeReceiptRuleSetOutput, error)
}

// RuleService reads SES receipt rule sets.
type RuleService struct {
	client SESAPI
}

// NewRuleService wraps an SES client.
func NewRuleService(client SESAPI) *RuleService {
	return &RuleService{client: client}
}

// DescribeRuleSet returns the rules of the named receipt rule set.
func (s *RuleService) DescribeRuleSet(ctx context.Context, name string) ([]provider.Rule, error) {
	out, err := s.client.DescribeReceiptRuleSet(ctx, &ses.DescribeReceiptRuleSetInput{
		RuleSetName: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("describe receipt rule set %s: %w", name, err)
	}

	rules := make([]provider.Rule, 0, len(out.Rules))
	for _, r := range out.Rules {
		rules = append(rules, convertRule(r))
	}
	return rules, nil
}

func convertRule(r types.ReceiptRule) provider.Rule {
	rule := provider.Rule{
		Name:       aws.ToString(r.Name),
		Recipients: append([]string(nil), r.Recipients...),
		Actions:    make([]provider.Action, 0, len(r.Actions)),
	}

	for _, a := range r.Actions {
		var action provider.Action
		if a.S3Action != nil {
			action.Storage = &provider.StorageAction{
				Bucket:   aws.ToString(a.S3Action.BucketName),
				TopicARN: aws.ToString(a.S3Action.TopicArn),
			}
		}
		if a.SNSAction != nil {
			action.Notify = &provider.NotifyAction{
				TopicARN: aws.ToString(a.SNSAction.TopicArn),
			}
		}
		rule.Actions = append(rule.Actions, action)
	}

	return rule
}
