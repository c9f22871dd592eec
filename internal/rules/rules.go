// Package rules builds the recipient to mailbox table from receipt rule sets.
package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/telhawk-systems/mailtap/common/logging"
	"github.com/telhawk-systems/mailtap/internal/metrics"
	"github.com/telhawk-systems/mailtap/internal/provider"
)

// DefaultRuleSet is loaded when no rule sets are configured.
const DefaultRuleSet = "default-rule-set"

// Mailbox is the resolved bucket and topic binding for one recipient.
// It is never modified after Load returns.
type Mailbox struct {
	Address   string
	LocalPart string
	Domain    string
	Bucket    string
	TopicARN  string
}

// Table maps normalized recipient addresses to mailboxes.
type Table map[string]*Mailbox

// Normalize returns the table key for a recipient address.
func Normalize(recipient string) string {
	return strings.ToLower(strings.TrimSpace(recipient))
}

// Lookup returns the mailbox for recipient.
func (t Table) Lookup(recipient string) (*Mailbox, bool) {
	mbx, ok := t[Normalize(recipient)]
	return mbx, ok
}

// Exists reports whether recipient has a mailbox.
func (t Table) Exists(recipient string) bool {
	_, ok := t.Lookup(recipient)
	return ok
}

// Clone returns a copy of the table that shares nothing with t.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for k, mbx := range t {
		cp := *mbx
		out[k] = &cp
	}
	return out
}

// Recipients returns every recipient in sorted order.
func (t Table) Recipients() []string {
	out := make([]string, 0, len(t))
	for r := range t {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Directory loads mailboxes from a rule service.
type Directory struct {
	rules  provider.RuleService
	logger *slog.Logger
}

// NewDirectory creates a Directory. A nil logger uses slog.Default().
func NewDirectory(rules provider.RuleService, logger *slog.Logger) *Directory {
	return &Directory{
		rules:  rules,
		logger: logging.OrDefault(logger),
	}
}

// Load fetches each rule set in order and returns the mailbox table. A
// recipient defined by several rule sets takes the binding of the last one.
// A rule set that cannot be fetched is skipped; the partial table is
// returned together with the joined failures.
func (d *Directory) Load(ctx context.Context, ruleSets []string) (Table, error) {
	table := make(Table)
	var errs []error

	for _, name := range ruleSets {
		rules, err := d.rules.DescribeRuleSet(ctx, name)
		if err != nil {
			d.logger.ErrorContext(ctx, "failed to load receipt rule set",
				logging.RuleSet(name),
				logging.Error(err),
			)
			metrics.RuleSetErrors.Inc()
			errs = append(errs, &provider.Error{Op: fmt.Sprintf("describe rule set %s", name), Err: err})
			continue
		}

		admitted := 0
		for _, rule := range rules {
			admitted += d.addRule(ctx, table, name, rule)
		}

		d.logger.DebugContext(ctx, "loaded receipt rule set",
			logging.RuleSet(name),
			slog.Int("rules", len(rules)),
			slog.Int("mailboxes", admitted),
		)
	}

	metrics.MailboxesLoaded.Set(float64(len(table)))
	return table, errors.Join(errs...)
}

func (d *Directory) addRule(ctx context.Context, table Table, ruleSet string, rule provider.Rule) int {
	bucket, topic := resolveActions(rule.Actions)

	admitted := 0
	for _, recipient := range rule.Recipients {
		if bucket == "" || topic == "" {
			d.logger.DebugContext(ctx, "skipping recipient without bucket and topic",
				logging.RuleSet(ruleSet),
				logging.Recipient(recipient),
				logging.Bucket(bucket),
				logging.Topic(topic),
			)
			continue
		}

		local, domain := splitAddress(recipient)
		table[Normalize(recipient)] = &Mailbox{
			Address:   recipient,
			LocalPart: local,
			Domain:    domain,
			Bucket:    bucket,
			TopicARN:  topic,
		}
		admitted++
	}
	return admitted
}

// resolveActions reads the bucket and topic from the storage actions of a
// rule, falling back to a notify action for the topic.
func resolveActions(actions []provider.Action) (bucket, topic string) {
	for _, a := range actions {
		if a.Storage != nil {
			if a.Storage.Bucket != "" {
				bucket = a.Storage.Bucket
			}
			if a.Storage.TopicARN != "" {
				topic = a.Storage.TopicARN
			}
		}
		if topic == "" && a.Notify != nil {
			topic = a.Notify.TopicARN
		}
	}
	return bucket, topic
}

// splitAddress splits a recipient into local part and domain. A recipient
// without "@" is a whole-domain rule and has no local part.
func splitAddress(recipient string) (local, domain string) {
	i := strings.LastIndex(recipient, "@")
	if i < 0 {
		return "", recipient
	}
	return recipient[:i], recipient[i+1:]
}
