package notify

import (
	"context"
	"errors"
	"testing"

	apperrors "student-grading/internal/common/errors"
	"student-grading/internal/common/logger"
	"student-grading/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if m.SendEmailFunc == nil {
		return &ses.SendEmailOutput{}, nil
	}
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	if m.PublishFunc == nil {
		return &sns.PublishOutput{}, nil
	}
	return m.PublishFunc(ctx, params, optFns...)
}

func sampleSummary() models.RunSummary {
	return models.RunSummary{
		RunID:         "run-1",
		InputPath:     "/data/notas.csv",
		OutputPath:    "/data/notas_procesadas.csv",
		Rows:          2,
		Passed:        1,
		Failed:        1,
		PassThreshold: 71,
	}
}

// ==========================
// Tests
// ==========================

func TestMessage(t *testing.T) {
	assert.Equal(t, "Wrote /data/notas_procesadas.csv with 2 rows (1 passed, 1 failed).", Message(sampleSummary()))
	assert.Equal(t, "Grading run run-1 finished", Subject(sampleSummary()))
}

func TestNotifier_Notify_BothChannels(t *testing.T) {
	var published *sns.PublishInput
	var sent *ses.SendEmailInput

	n := NewNotifier(Config{
		SNS: &MockSNSService{PublishFunc: func(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			published = in
			return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
		}},
		TopicARN: "arn:aws:sns:us-east-1:123456789012:grading",
		SES: &MockSESService{SendEmailFunc: func(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			sent = in
			return &ses.SendEmailOutput{MessageId: aws.String("e-1")}, nil
		}},
		FromEmail: "grades@example.com",
		To:        []string{"registrar@example.com"},
	}, logger.NewTestLogger(t))

	require.NoError(t, n.Notify(context.Background(), sampleSummary()))
	assert.Equal(t, []string{ChannelSNS, ChannelSES}, n.Channels())

	require.NotNil(t, published)
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:grading", aws.ToString(published.TopicArn))
	assert.Equal(t, Message(sampleSummary()), aws.ToString(published.Message))

	require.NotNil(t, sent)
	assert.Equal(t, "grades@example.com", aws.ToString(sent.Source))
	assert.Equal(t, []string{"registrar@example.com"}, sent.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(sent.Message.Body.Text.Data), "Pass threshold: 71.00")
}

func TestNotifier_Notify_OneChannelFails(t *testing.T) {
	boom := errors.New("throttled")
	emailed := false

	n := NewNotifier(Config{
		SNS: &MockSNSService{PublishFunc: func(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, boom
		}},
		TopicARN: "arn:aws:sns:us-east-1:123456789012:grading",
		SES: &MockSESService{SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			emailed = true
			return &ses.SendEmailOutput{}, nil
		}},
		FromEmail: "grades@example.com",
		To:        []string{"registrar@example.com"},
	}, logger.NewNoOpLogger())

	err := n.Notify(context.Background(), sampleSummary())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotificationSendFailed))
	assert.True(t, emailed)
}

func TestNotifier_Channels(t *testing.T) {
	tests := []struct {
		name       string
		cfg        func(sent *int) Config
		want       []string
		wantEmails int
	}{
		{"nothing configured", func(*int) Config { return Config{} }, nil, 0},
		{"sns without topic", func(*int) Config { return Config{SNS: &MockSNSService{}} }, nil, 0},
		{"ses without recipients", func(sent *int) Config {
			return Config{SES: countingSES(sent), FromEmail: "a@b.c"}
		}, nil, 0},
		{"ses only", func(sent *int) Config {
			return Config{SES: countingSES(sent), To: []string{"x@y.z"}}
		}, []string{ChannelSES}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent int
			n := NewNotifier(tt.cfg(&sent), logger.NewNoOpLogger())
			assert.Equal(t, tt.want, n.Channels())
			assert.NoError(t, n.Notify(context.Background(), sampleSummary()))
			assert.Equal(t, tt.wantEmails, sent)
		})
	}
}

func TestMocks_ZeroOutputWithoutFunc(t *testing.T) {
	out, err := (&MockSESService{}).SendEmail(context.Background(), &ses.SendEmailInput{})
	require.NoError(t, err)
	assert.NotNil(t, out)

	pub, err := (&MockSNSService{}).Publish(context.Background(), &sns.PublishInput{})
	require.NoError(t, err)
	assert.NotNil(t, pub)
}

func countingSES(sent *int) *MockSESService {
	return &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			*sent++
			return &ses.SendEmailOutput{}, nil
		},
	}
}
