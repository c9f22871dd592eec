package logging

import "log/slog"

// Common field names for consistent logging across mailtap components.
const (
	FieldService      = "service"
	FieldWatchID      = "watch_id"
	FieldRecipient    = "recipient"
	FieldRuleSet      = "rule_set"
	FieldBucket       = "bucket"
	FieldTopic        = "topic_arn"
	FieldQueue        = "queue"
	FieldQueueURL     = "queue_url"
	FieldSubscription = "subscription_arn"
	FieldObjectKey    = "object_key"
	FieldMessageID    = "message_id"
	FieldWait         = "wait_seconds"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Recipient returns a slog attribute for a recipient address.
func Recipient(addr string) slog.Attr {
	return slog.String(FieldRecipient, addr)
}

// RuleSet returns a slog attribute for a receipt rule set name.
func RuleSet(name string) slog.Attr {
	return slog.String(FieldRuleSet, name)
}

// Bucket returns a slog attribute for a storage bucket.
func Bucket(name string) slog.Attr {
	return slog.String(FieldBucket, name)
}

// Topic returns a slog attribute for a notification topic ARN.
func Topic(arn string) slog.Attr {
	return slog.String(FieldTopic, arn)
}

// Queue returns a slog attribute for a queue name.
func Queue(name string) slog.Attr {
	return slog.String(FieldQueue, name)
}

// QueueURL returns a slog attribute for a queue URL.
func QueueURL(url string) slog.Attr {
	return slog.String(FieldQueueURL, url)
}

// Subscription returns a slog attribute for a subscription ARN.
func Subscription(arn string) slog.Attr {
	return slog.String(FieldSubscription, arn)
}

// ObjectKey returns a slog attribute for a stored object key.
func ObjectKey(key string) slog.Attr {
	return slog.String(FieldObjectKey, key)
}

// MessageID returns a slog attribute for a queue message ID.
func MessageID(id string) slog.Attr {
	return slog.String(FieldMessageID, id)
}

// Wait returns a slog attribute for a receive window in seconds.
func Wait(seconds int) slog.Attr {
	return slog.Int(FieldWait, seconds)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
