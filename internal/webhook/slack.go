package webhook

import (
	"context"
	"fmt"
)

// Message is a chat notification addressed to one recipient.
type Message struct {
	User string `json:"user"`
	Text string `json:"message"`
}

// TransformedImageMessage announces a stored transform result.
func TransformedImageMessage(user, objectKey, bucket string) Message {
	return Message{
		User: user,
		Text: fmt.Sprintf("You have a new transformed image %q in S3 bucket %q", objectKey, bucket),
	}
}

// SlackNotifier delivers messages to a Slack incoming webhook.
type SlackNotifier struct {
	client   *Client
	endpoint string
}

func NewSlackNotifier(client *Client, endpoint string) *SlackNotifier {
	return &SlackNotifier{client: client, endpoint: endpoint}
}

func (n *SlackNotifier) Notify(ctx context.Context, msg Message) error {
	if err := n.client.Send(ctx, n.endpoint, EventImageTransformed, msg); err != nil {
		return fmt.Errorf("notify %s: %w", msg.User, err)
	}
	return nil
}
