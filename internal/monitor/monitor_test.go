package monitor

import (
	"github.com/telhawk-systems/mailtap/internal/provider/providertest"
	"github.com/telhawk-systems/mailtap/internal/rules"
)

const (
	testRecipient = "feed1@example.com"
	testBucket    = "mail-bucket"
	testTopic     = "arn:aws:sns:eu-west-1:000000000000:mail"
	testInstance  = "1234-testhost"
)

func testMailboxes() rules.Table {
	return rules.Table{
		testRecipient: {
			Address:   testRecipient,
			LocalPart: "feed1",
			Domain:    "example.com",
			Bucket:    testBucket,
			TopicARN:  testTopic,
		},
		"feed2@example.com": {
			Address:   "feed2@example.com",
			LocalPart: "feed2",
			Domain:    "example.com",
			Bucket:    testBucket,
			TopicARN:  testTopic,
		},
	}
}

type fixture struct {
	mailboxes     rules.Table
	registry      *Registry
	queues        *providertest.Queues
	notifications *providertest.Notifications
	objects       *providertest.Objects
	manager       *Manager
}

func newFixture() *fixture {
	f := &fixture{
		mailboxes:     testMailboxes(),
		registry:      NewRegistry(),
		queues:        &providertest.Queues{},
		notifications: &providertest.Notifications{},
		objects:       &providertest.Objects{Data: map[string]string{}},
	}
	f.manager = NewManager(f.mailboxes, f.registry, f.queues, f.notifications, WithInstanceID(testInstance))
	return f
}

func (f *fixture) poller(opts ...PollerOption) *Poller {
	return NewPoller(f.mailboxes, f.registry, f.queues, f.objects, opts...)
}
