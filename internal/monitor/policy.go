package monitor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// maxQueueNameLen is the SQS queue name limit.
const maxQueueNameLen = 80

const policyVersion = "2012-10-17"

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string                       `json:"Sid"`
	Effect    string                       `json:"Effect"`
	Principal string                       `json:"Principal"`
	Action    string                       `json:"Action"`
	Resource  string                       `json:"Resource"`
	Condition map[string]map[string]string `json:"Condition"`
}

// QueuePolicy returns the access policy letting topicARN, and only it, send
// messages to the queue.
func QueuePolicy(queueARN, topicARN string) (string, error) {
	doc := policyDocument{
		Version: policyVersion,
		Statement: []policyStatement{
			{
				Sid:       "AllowTopicSendMessage",
				Effect:    "Allow",
				Principal: "*",
				Action:    "sqs:SendMessage",
				Resource:  queueARN,
				Condition: map[string]map[string]string{
					"ArnEquals": {"aws:SourceArn": topicARN},
				},
			},
		},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal queue policy: %w", err)
	}
	return string(data), nil
}

// InstanceID identifies this process on this host.
func InstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%d-%s", os.Getpid(), host)
}

// Nonce returns 8 random hex characters.
func Nonce() string {
	id := uuid.New()
	return hex.EncodeToString(id[:4])
}

// QueueName derives the queue name for recipient. The bucket and instance
// keep concurrent processes apart, the recipient hash keeps recipients that
// share a bucket apart, and nonce keeps a restart from reusing a queue name
// deleted less than 60 seconds ago. The result only uses characters SQS
// accepts and is at most 80 characters long.
func QueueName(bucket, instance, recipient, nonce string) string {
	sum := sha256.Sum256([]byte(recipient))
	suffix := "-" + hex.EncodeToString(sum[:4]) + "-" + sanitizeQueueName(nonce)

	base := sanitizeQueueName(bucket + "-" + instance)
	if limit := maxQueueNameLen - len(suffix); len(base) > limit {
		base = base[:limit]
	}
	return base + suffix
}

func sanitizeQueueName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
}
