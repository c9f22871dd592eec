package messaging

import (
	"strings"
	"testing"
)

func TestSubjectConstants_FollowNamingConvention(t *testing.T) {
	parts := strings.Split(SubjectMailDelivered, ".")
	if len(parts) != 2 {
		t.Errorf("subject %q should have format domain.action", SubjectMailDelivered)
	}
	for _, part := range parts {
		if part == "" {
			t.Errorf("subject %q has empty part", SubjectMailDelivered)
		}
	}
}

func TestMailDeliveredSubject(t *testing.T) {
	tests := []struct {
		name      string
		recipient string
		expected  string
	}{
		{
			name:      "address",
			recipient: "feed1@example.com",
			expected:  "mail.delivered.feed1@example_com",
		},
		{
			name:      "domain only",
			recipient: "example.org",
			expected:  "mail.delivered.example_org",
		},
		{
			name:      "wildcards and whitespace",
			recipient: "a*b> c\td",
			expected:  "mail.delivered.a_b__c_d",
		},
		{
			name:      "empty recipient",
			recipient: "",
			expected:  "mail.delivered._",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MailDeliveredSubject(tt.recipient)
			if result != tt.expected {
				t.Errorf("MailDeliveredSubject(%q) = %q, want %q", tt.recipient, result, tt.expected)
			}
		})
	}
}

func TestMailDeliveredSubject_SingleToken(t *testing.T) {
	result := MailDeliveredSubject("a.b.c@d.e")
	suffix := strings.TrimPrefix(result, SubjectMailDelivered+".")

	if strings.ContainsAny(suffix, ".*> ") {
		t.Errorf("recipient token %q must not contain separators or wildcards", suffix)
	}
}
