package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/mailtap/internal/provider"
	"github.com/telhawk-systems/mailtap/internal/provider/providertest"
)

const (
	topicA = "arn:aws:sns:eu-west-1:000000000000:mail-a"
	topicB = "arn:aws:sns:eu-west-1:000000000000:mail-b"
)

func storage(bucket, topic string) provider.Action {
	return provider.Action{Storage: &provider.StorageAction{Bucket: bucket, TopicARN: topic}}
}

func notify(topic string) provider.Action {
	return provider.Action{Notify: &provider.NotifyAction{TopicARN: topic}}
}

func TestDirectory_Load(t *testing.T) {
	tests := []struct {
		name     string
		rules    []provider.Rule
		expected map[string]Mailbox
	}{
		{
			name: "storage action with topic",
			rules: []provider.Rule{
				{Recipients: []string{"feed1@example.com"}, Actions: []provider.Action{storage("bucket-a", topicA)}},
			},
			expected: map[string]Mailbox{
				"feed1@example.com": {Address: "feed1@example.com", LocalPart: "feed1", Domain: "example.com", Bucket: "bucket-a", TopicARN: topicA},
			},
		},
		{
			name: "topic from notify action fallback",
			rules: []provider.Rule{
				{Recipients: []string{"feed2@example.com"}, Actions: []provider.Action{storage("bucket-a", ""), notify(topicB)}},
			},
			expected: map[string]Mailbox{
				"feed2@example.com": {Address: "feed2@example.com", LocalPart: "feed2", Domain: "example.com", Bucket: "bucket-a", TopicARN: topicB},
			},
		},
		{
			name: "storage topic wins over notify action",
			rules: []provider.Rule{
				{Recipients: []string{"feed3@example.com"}, Actions: []provider.Action{storage("bucket-a", topicA), notify(topicB)}},
			},
			expected: map[string]Mailbox{
				"feed3@example.com": {Address: "feed3@example.com", LocalPart: "feed3", Domain: "example.com", Bucket: "bucket-a", TopicARN: topicA},
			},
		},
		{
			name: "missing topic drops recipient",
			rules: []provider.Rule{
				{Recipients: []string{"nobody@example.com"}, Actions: []provider.Action{storage("bucket-a", "")}},
			},
			expected: map[string]Mailbox{},
		},
		{
			name: "missing bucket drops recipient",
			rules: []provider.Rule{
				{Recipients: []string{"nobody@example.com"}, Actions: []provider.Action{notify(topicA)}},
			},
			expected: map[string]Mailbox{},
		},
		{
			name: "every recipient of a rule shares its binding",
			rules: []provider.Rule{
				{Recipients: []string{"a@example.com", "b@example.com"}, Actions: []provider.Action{storage("bucket-a", topicA)}},
			},
			expected: map[string]Mailbox{
				"a@example.com": {Address: "a@example.com", LocalPart: "a", Domain: "example.com", Bucket: "bucket-a", TopicARN: topicA},
				"b@example.com": {Address: "b@example.com", LocalPart: "b", Domain: "example.com", Bucket: "bucket-a", TopicARN: topicA},
			},
		},
		{
			name: "domain-only recipient",
			rules: []provider.Rule{
				{Recipients: []string{"example.org"}, Actions: []provider.Action{storage("bucket-a", topicA)}},
			},
			expected: map[string]Mailbox{
				"example.org": {Address: "example.org", LocalPart: "", Domain: "example.org", Bucket: "bucket-a", TopicARN: topicA},
			},
		},
		{
			name: "mixed case recipient is normalized",
			rules: []provider.Rule{
				{Recipients: []string{"Feed1@Example.com"}, Actions: []provider.Action{storage("bucket-a", topicA)}},
			},
			expected: map[string]Mailbox{
				"feed1@example.com": {Address: "Feed1@Example.com", LocalPart: "Feed1", Domain: "Example.com", Bucket: "bucket-a", TopicARN: topicA},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &providertest.Rules{Sets: map[string][]provider.Rule{"set": tt.rules}}

			table, err := NewDirectory(src, nil).Load(context.Background(), []string{"set"})
			require.NoError(t, err)
			require.Len(t, table, len(tt.expected))

			for key, want := range tt.expected {
				got, ok := table[key]
				require.True(t, ok, "expected %s in table", key)
				assert.Equal(t, want, *got)
			}
		})
	}
}

func TestDirectory_Load_LastWriteWins(t *testing.T) {
	src := &providertest.Rules{Sets: map[string][]provider.Rule{
		"A": {{Recipients: []string{"r@example.com"}, Actions: []provider.Action{storage("bucket-a", topicA)}}},
		"B": {{Recipients: []string{"r@example.com"}, Actions: []provider.Action{storage("bucket-b", topicB)}}},
	}}

	table, err := NewDirectory(src, nil).Load(context.Background(), []string{"A", "B"})
	require.NoError(t, err)

	mbx, ok := table.Lookup("r@example.com")
	require.True(t, ok)
	assert.Equal(t, "bucket-b", mbx.Bucket)
	assert.Equal(t, topicB, mbx.TopicARN)
	assert.Equal(t, []string{"A", "B"}, src.Calls)
}

func TestDirectory_Load_PartialFailure(t *testing.T) {
	src := &providertest.Rules{
		Sets: map[string][]provider.Rule{
			"good": {{Recipients: []string{"r@example.com"}, Actions: []provider.Action{storage("bucket-a", topicA)}}},
		},
		Errors: map[string]error{"broken": errors.New("AccessDenied")},
	}

	table, err := NewDirectory(src, nil).Load(context.Background(), []string{"broken", "good"})
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrDegraded)
	assert.Contains(t, err.Error(), "broken")

	assert.True(t, table.Exists("r@example.com"))
	assert.Equal(t, []string{"broken", "good"}, src.Calls)
}

func TestTable(t *testing.T) {
	table := Table{
		"b@example.com": {Address: "b@example.com"},
		"a@example.com": {Address: "a@example.com"},
	}

	assert.True(t, table.Exists("A@Example.com "))
	assert.False(t, table.Exists("c@example.com"))
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, table.Recipients())

	_, ok := table.Lookup("missing@example.com")
	assert.False(t, ok)
}

func TestSplitAddress(t *testing.T) {
	tests := []struct {
		input  string
		local  string
		domain string
	}{
		{input: "feed1@example.com", local: "feed1", domain: "example.com"},
		{input: "example.com", local: "", domain: "example.com"},
		{input: "a@b@example.com", local: "a@b", domain: "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			local, domain := splitAddress(tt.input)
			assert.Equal(t, tt.local, local)
			assert.Equal(t, tt.domain, domain)
		})
	}
}

func TestTable_Clone(t *testing.T) {
	table := Table{"a@example.com": {Address: "a@example.com", Bucket: "bucket-a"}}

	clone := table.Clone()
	clone["a@example.com"].Bucket = "changed"
	delete(clone, "a@example.com")
	clone["b@example.com"] = &Mailbox{}

	assert.Equal(t, "bucket-a", table["a@example.com"].Bucket)
	assert.Equal(t, []string{"a@example.com"}, table.Recipients())
}
