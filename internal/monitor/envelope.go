package monitor

import (
	"encoding/json"
	"fmt"
)

// envelope is a queue message body. Topic deliveries wrap the mail
// notification in Message, usually as a JSON string; raw deliveries carry
// the receipt at the top level.
type envelope struct {
	Type      string          `json:"Type"`
	MessageID string          `json:"MessageId"`
	Message   json.RawMessage `json:"Message"`
	Receipt   *receipt        `json:"receipt"`
}

type notification struct {
	NotificationType string   `json:"notificationType"`
	Receipt          *receipt `json:"receipt"`
}

type receipt struct {
	Action *receiptAction `json:"action"`
}

type receiptAction struct {
	Type       string `json:"type"`
	BucketName string `json:"bucketName"`
	ObjectKey  string `json:"objectKey"`
}

// ObjectKey extracts message.receipt.action.objectKey from a queue message
// body. A missing level yields an error matching ErrMalformedEnvelope.
func ObjectKey(body string) (string, error) {
	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	var n notification
	switch {
	case len(env.Message) > 0:
		payload := []byte(env.Message)
		if payload[0] == '"' {
			var s string
			if err := json.Unmarshal(payload, &s); err != nil {
				return "", fmt.Errorf("%w: Message: %v", ErrMalformedEnvelope, err)
			}
			payload = []byte(s)
		}
		if err := json.Unmarshal(payload, &n); err != nil {
			return "", fmt.Errorf("%w: Message: %v", ErrMalformedEnvelope, err)
		}
	case env.Receipt != nil:
		n.Receipt = env.Receipt
	default:
		return "", fmt.Errorf("%w: missing Message", ErrMalformedEnvelope)
	}

	switch {
	case n.Receipt == nil:
		return "", fmt.Errorf("%w: missing receipt", ErrMalformedEnvelope)
	case n.Receipt.Action == nil:
		return "", fmt.Errorf("%w: missing receipt.action", ErrMalformedEnvelope)
	case n.Receipt.Action.ObjectKey == "":
		return "", fmt.Errorf("%w: missing receipt.action.objectKey", ErrMalformedEnvelope)
	}
	return n.Receipt.Action.ObjectKey, nil
}
