package notification

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/loanvault/document-consent-api/internal/models"
)

// Message is a single outbound notification
type Message struct {
	Type      models.NotificationType
	BatchID   string
	Recipient string
	Body      string
}

// Notifier delivers messages to the user
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier records messages through the application logger instead of
// contacting an SMS or email gateway.
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send implements Notifier
func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.logger.WithFields(logrus.Fields{
		"type":      msg.Type,
		"batchId":   msg.BatchID,
		"recipient": maskRecipient(msg.Recipient),
	}).Info(msg.Body)
	return nil
}

func maskRecipient(recipient string) string {
	if len(recipient) <= 4 {
		return recipient
	}
	masked := make([]byte, len(recipient))
	for i := range masked {
		if i < len(recipient)-4 {
			masked[i] = '*'
		} else {
			masked[i] = recipient[i]
		}
	}
	return string(masked)
}
