// Package notify announces finished grading runs over SNS and SES.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "student-grading/internal/common/errors"
	"student-grading/internal/common/logger"
	"student-grading/internal/common/metrics"
	"student-grading/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

const (
	ChannelSNS = "sns"
	ChannelSES = "ses"
)

// Config selects the channels. A nil client disables its channel.
type Config struct {
	SNS      SNSService
	TopicARN string

	SES       SESService
	FromEmail string
	To        []string
}

type Notifier struct {
	cfg    Config
	logger logger.Logger
}

func NewNotifier(cfg Config, log logger.Logger) *Notifier {
	return &Notifier{cfg: cfg, logger: log}
}

// Channels lists the enabled channels.
func (n *Notifier) Channels() []string {
	var out []string
	if n.cfg.SNS != nil && n.cfg.TopicARN != "" {
		out = append(out, ChannelSNS)
	}
	if n.cfg.SES != nil && len(n.cfg.To) > 0 {
		out = append(out, ChannelSES)
	}
	return out
}

// Subject is the email subject and SNS subject for a run.
func Subject(s models.RunSummary) string {
	return fmt.Sprintf("Grading run %s finished", s.RunID)
}

// Message is the body sent on every channel.
func Message(s models.RunSummary) string {
	return fmt.Sprintf("Wrote %s with %d rows (%d passed, %d failed).", s.OutputPath, s.Rows, s.Passed, s.Failed)
}

// Notify sends the run summary on every enabled channel and returns the
// joined NOTIFICATION_SEND_FAILED errors of those that failed.
func (n *Notifier) Notify(ctx context.Context, s models.RunSummary) error {
	var errs []error
	for _, channel := range n.Channels() {
		var err error
		switch channel {
		case ChannelSNS:
			err = n.publish(ctx, s)
		case ChannelSES:
			err = n.sendEmail(ctx, s)
		}
		if err != nil {
			metrics.NotificationFailures.WithLabelValues(channel).Inc()
			n.logger.Error("notification failed", map[string]interface{}{
				"channel": channel,
				"runId":   s.RunID,
				"error":   err,
			})
			errs = append(errs, apperrors.NewNotificationSendFailedError(channel, err))
			continue
		}
		n.logger.Info("notification sent", map[string]interface{}{
			"channel": channel,
			"runId":   s.RunID,
		})
	}
	return errors.Join(errs...)
}

func (n *Notifier) publish(ctx context.Context, s models.RunSummary) error {
	_, err := n.cfg.SNS.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.cfg.TopicARN),
		Subject:  aws.String(Subject(s)),
		Message:  aws.String(Message(s)),
	})
	return err
}

func (n *Notifier) sendEmail(ctx context.Context, s models.RunSummary) error {
	body := strings.Join([]string{
		Message(s),
		"",
		fmt.Sprintf("Run: %s", s.RunID),
		fmt.Sprintf("Input: %s", s.InputPath),
		fmt.Sprintf("Pass threshold: %.2f", s.PassThreshold),
		fmt.Sprintf("Grades counted as 0: %d", s.DefaultedGrades),
	}, "\n")

	_, err := n.cfg.SES.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(n.cfg.FromEmail),
		Destination: &types.Destination{
			ToAddresses: n.cfg.To,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(Subject(s))},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	})
	return err
}
