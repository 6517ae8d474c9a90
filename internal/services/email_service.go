package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/erpauth/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Mailer delivers a plain-text message. Delivery is best effort.
type Mailer interface {
	SendMessage(ctx context.Context, to, subject, body string) error
}

// sesSender is the subset of the SES client used here
type sesSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends emails using AWS SES
type SESMailer struct {
	client      sesSender
	fromAddress string
	logger      *slog.Logger
}

// NewSESMailer loads the default AWS configuration for region
func NewSESMailer(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newSESMailerWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

func newSESMailerWithClient(client sesSender, fromAddress string, logger *slog.Logger) *SESMailer {
	return &SESMailer{
		client:      client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// SendMessage sends a text email through SES
func (s *SESMailer) SendMessage(ctx context.Context, to, subject, body string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("email", logger.SanitizedEmail(to)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("email", logger.SanitizedEmail(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// LogMailer logs messages instead of sending them. The body is redacted in
// production since it may carry a reset link.
type LogMailer struct {
	logger *slog.Logger
	env    string
}

func NewLogMailer(log *slog.Logger, env string) *LogMailer {
	return &LogMailer{logger: log, env: env}
}

func (m *LogMailer) SendMessage(ctx context.Context, to, subject, body string) error {
	m.logger.InfoContext(ctx, "email delivery skipped (log provider)",
		slog.String("email", logger.SanitizedEmail(to)),
		slog.String("subject", subject),
		logger.RedactedAttr("body", body, m.env))
	return nil
}
