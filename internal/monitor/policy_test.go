package monitor

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePolicy(t *testing.T) {
	queueARN := "arn:aws:sqs:eu-west-1:000000000000:q"
	topicARN := `arn:aws:sns:eu-west-1:000000000000:odd"topic`

	policy, err := QueuePolicy(queueARN, topicARN)
	require.NoError(t, err)

	var doc struct {
		Version   string
		Statement []struct {
			Effect    string
			Principal string
			Action    string
			Resource  string
			Condition map[string]map[string]string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(policy), &doc))

	assert.Equal(t, "2012-10-17", doc.Version)
	require.Len(t, doc.Statement, 1)
	stmt := doc.Statement[0]
	assert.Equal(t, "Allow", stmt.Effect)
	assert.Equal(t, "*", stmt.Principal)
	assert.Equal(t, "sqs:SendMessage", stmt.Action)
	assert.Equal(t, queueARN, stmt.Resource)
	assert.Equal(t, topicARN, stmt.Condition["ArnEquals"]["aws:SourceArn"])
}

var validQueueName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,80}$`)

func TestQueueName(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		instance string
	}{
		{name: "plain", bucket: "mail-bucket", instance: "1234-host"},
		{name: "dotted bucket and host", bucket: "mail.example.com", instance: "1234-host.local"},
		{name: "long inputs", bucket: strings.Repeat("b", 63), instance: "99999-" + strings.Repeat("h", 60)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := QueueName(tt.bucket, tt.instance, testRecipient, Nonce())
			assert.Regexp(t, validQueueName, name)
			assert.Equal(t, name, QueueName(tt.bucket, tt.instance, testRecipient, name[len(name)-8:]), "must be deterministic")
		})
	}
}

func TestQueueName_DistinctPerRecipient(t *testing.T) {
	a := QueueName(testBucket, testInstance, "a@example.com", "0000")
	b := QueueName(testBucket, testInstance, "b@example.com", "0000")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, testBucket+"-"+testInstance+"-"))
}

func TestQueueName_DistinctPerNonce(t *testing.T) {
	a := QueueName(testBucket, testInstance, testRecipient, Nonce())
	b := QueueName(testBucket, testInstance, testRecipient, Nonce())
	assert.NotEqual(t, a, b)
}

func TestNonce(t *testing.T) {
	assert.Regexp(t, `^[0-9a-f]{8}$`, Nonce())
}

func TestInstanceID(t *testing.T) {
	assert.Regexp(t, `^\d+-.+$`, InstanceID())
}
