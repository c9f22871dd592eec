package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/mailtap/common/logging"
	"github.com/telhawk-systems/mailtap/internal/config"
	"github.com/telhawk-systems/mailtap/internal/provider"
	"github.com/telhawk-systems/mailtap/internal/provider/providertest"
	"github.com/telhawk-systems/mailtap/internal/service"
)

const (
	testRecipient = "feed1@example.com"
	testBucket    = "mail-bucket"
	testTopic     = "arn:aws:sns:eu-west-1:000000000000:mail"
)

type fakeProviders struct {
	rules         *providertest.Rules
	queues        *providertest.Queues
	notifications *providertest.Notifications
	objects       *providertest.Objects
}

// useFakes points the command tree at in-memory providers.
func useFakes(t *testing.T) *fakeProviders {
	t.Helper()
	t.Chdir(t.TempDir())

	f := &fakeProviders{
		rules: &providertest.Rules{Sets: map[string][]provider.Rule{
			"default-rule-set": {{
				Recipients: []string{testRecipient},
				Actions:    []provider.Action{{Storage: &provider.StorageAction{Bucket: testBucket, TopicARN: testTopic}}},
			}},
		}},
		queues:        &providertest.Queues{},
		notifications: &providertest.Notifications{},
		objects:       &providertest.Objects{Data: map[string]string{testBucket + "/k1": "hello"}},
	}

	orig := newService
	newService = func(ctx context.Context, c *config.Config, l *logging.Logger) (*service.Service, error) {
		return service.New(ctx, service.Deps{
			Rules:         f.rules,
			Queues:        f.queues,
			Notifications: f.notifications,
			Objects:       f.objects,
			Logger:        l.Logger,
		}, c.RuleSets)
	}
	t.Cleanup(func() {
		newService = orig
		resetFlags(rootCmd)
	})
	return f
}

// resetFlags restores flag defaults between executions of the shared tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func execute(args ...string) (string, error) {
	var err error
	out := captureStdout(func() {
		rootCmd.SetArgs(args)
		err = rootCmd.Execute()
	})
	return out, err
}

func TestCommandsRegistered(t *testing.T) {
	expected := map[string]bool{"mailboxes": false, "watch": false, "version": false}

	for _, cmd := range rootCmd.Commands() {
		if _, ok := expected[cmd.Name()]; ok {
			expected[cmd.Name()] = true
		}
	}

	for name, found := range expected {
		if !found {
			t.Errorf("expected command '%s' to be registered with root command", name)
		}
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "region", "endpoint", "rule-set", "output"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag --%s", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "mailtap "+version+"\n", buf.String())
}

func TestMailboxesCommand_JSON(t *testing.T) {
	useFakes(t)

	out, err := execute("mailboxes", "--output", "json")
	require.NoError(t, err)

	var rows []mailboxRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, mailboxRow{Recipient: testRecipient, Bucket: testBucket, TopicARN: testTopic}, rows[0])
}

func TestMailboxesCommand_RuleSetFlag(t *testing.T) {
	f := useFakes(t)
	f.rules.Sets["other"] = []provider.Rule{{
		Recipients: []string{"other@example.com"},
		Actions:    []provider.Action{{Storage: &provider.StorageAction{Bucket: "b2", TopicARN: testTopic}}},
	}}

	out, err := execute("mailboxes", "--rule-set", "other")
	require.NoError(t, err)
	assert.Contains(t, out, "other@example.com")
	assert.NotContains(t, out, testRecipient)
	assert.Equal(t, []string{"other"}, f.rules.Calls)
}

func TestWatchCommand_PrintsEmail(t *testing.T) {
	f := useFakes(t)
	f.queues.Responses = [][]provider.QueueMessage{{
		{ID: "m1", Body: providertest.Notification("k1"), ReceiptHandle: "rh-1"},
	}}

	out, err := execute("watch", testRecipient, "--timeout", "30")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	assert.Equal(t, []int{20}, f.queues.Waits)
	assert.Len(t, f.queues.DeletedQueues, 1, "queue is removed on exit")
	assert.Len(t, f.notifications.Unsubscribed, 1, "subscription is removed on exit")
}

func TestWatchCommand_ReportsTeardown(t *testing.T) {
	f := useFakes(t)
	f.queues.Responses = [][]provider.QueueMessage{{
		{ID: "m1", Body: providertest.Notification("k1"), ReceiptHandle: "rh-1"},
	}}

	var err error
	stderr := captureStderr(func() {
		_, err = execute("watch", testRecipient, "--timeout", "20")
	})
	require.NoError(t, err)
	assert.Contains(t, stderr, "Removed queue and subscription for "+testRecipient)
}

func TestWatchCommand_JSON(t *testing.T) {
	f := useFakes(t)
	f.queues.Responses = [][]provider.QueueMessage{{
		{ID: "m1", Body: providertest.Notification("k1"), ReceiptHandle: "rh-1"},
	}}

	out, err := execute("watch", testRecipient, "--timeout", "20", "--output", "json")
	require.NoError(t, err)

	var view deliveryView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "hello", view.Content)
	assert.Equal(t, "k1", view.ObjectKey)
	assert.Equal(t, "m1", view.MessageID)
}

func TestWatchCommand_NoEmail(t *testing.T) {
	f := useFakes(t)

	out, err := execute("watch", testRecipient, "--timeout", "45")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEmail)
	assert.Empty(t, out)

	assert.Equal(t, []int{20, 20, 5}, f.queues.Waits)
	assert.Len(t, f.queues.DeletedQueues, 1, "queue is removed after timeout")
}

func TestWatchCommand_UnknownRecipient(t *testing.T) {
	f := useFakes(t)

	_, err := execute("watch", "nobody@example.com", "--timeout", "20")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nobody@example.com")
	assert.Empty(t, f.queues.Created)
}

func TestWatchCommand_RequiresRecipient(t *testing.T) {
	useFakes(t)

	_, err := execute("watch")
	assert.Error(t, err)
}
