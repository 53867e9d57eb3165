package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"mintoons/internal/config"
	"mintoons/internal/metrics"
	"mintoons/internal/models"
)

// Mailer sends the transactional emails
type Mailer interface {
	SendWelcome(ctx context.Context, user *models.User) error
	SendPasswordReset(ctx context.Context, user *models.User, token string) error
	SendSubmissionReceived(ctx context.Context, user *models.User, comp *models.Competition, sub *models.CompetitionSubmission) error
	SendWinner(ctx context.Context, user *models.User, comp *models.Competition, sub *models.CompetitionSubmission) error
	SendQuotaReset(ctx context.Context, user *models.User, quota int) error
}

// SettingsReader supplies the current site settings
type SettingsReader interface {
	GetSiteSettings(ctx context.Context) (models.SiteSettings, error)
}

// sesAPI is the part of the SES client the service uses
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client     sesAPI
	fromEmail  string
	fromName   string
	appBaseURL string
	settings   SettingsReader
	enabled    bool
	debug      bool
	logger     *zap.Logger
}

var _ Mailer = (*EmailService)(nil)

// NewEmailService creates a new email service. With no from address the
// service is disabled and every send is skipped.
func NewEmailService(ctx context.Context, cfg config.EmailConfig, appBaseURL string, logger *zap.Logger) (*EmailService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("EmailService")

	if cfg.FromEmail == "" {
		logger.Info("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false, debug: cfg.Debug, logger: logger}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("Email service enabled", zap.String("from", cfg.FromEmail), zap.String("region", cfg.AWSRegion))
	return newEmailService(sesv2.NewFromConfig(awsCfg), cfg, appBaseURL, logger), nil
}

func newEmailService(client sesAPI, cfg config.EmailConfig, appBaseURL string, logger *zap.Logger) *EmailService {
	return &EmailService{
		client:     client,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		appBaseURL: strings.TrimSuffix(appBaseURL, "/"),
		enabled:    true,
		debug:      cfg.Debug,
		logger:     logger,
	}
}

// UseSettings makes emails carry the admin-configured site name
func (s *EmailService) UseSettings(settings SettingsReader) {
	s.settings = settings
}

// siteName falls back to the default name when settings can't be read
func (s *EmailService) siteName(ctx context.Context) string {
	name := models.DefaultSiteSettings().SiteName
	if s.settings == nil {
		return name
	}
	settings, err := s.settings.GetSiteSettings(ctx)
	if err != nil {
		s.logger.Warn("Failed to load site name for email", zap.Error(err))
		return name
	}
	if strings.TrimSpace(settings.SiteName) == "" {
		return name
	}
	return settings.SiteName
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendWelcome greets a newly registered user
func (s *EmailService) SendWelcome(ctx context.Context, user *models.User) error {
	site := s.siteName(ctx)
	subject := fmt.Sprintf("Welcome to %s!", site)
	body := []string{
		fmt.Sprintf("Hi %s,", user.Name),
		fmt.Sprintf("Thank you for joining %s! Your AI writing buddy is ready to help you create amazing stories.", site),
		fmt.Sprintf("Your pen name is %s. It is the name other readers will see on your published stories.", user.PenName),
	}
	return s.send(ctx, "welcome", user.Email, subject, subject, body, "Start writing", s.appBaseURL+"/dashboard")
}

// SendPasswordReset sends a reset link that expires in an hour
func (s *EmailService) SendPasswordReset(ctx context.Context, user *models.User, token string) error {
	site := s.siteName(ctx)
	resetLink := fmt.Sprintf("%s/auth/reset-password?token=%s", s.appBaseURL, token)
	body := []string{
		fmt.Sprintf("Hi %s,", user.Name),
		fmt.Sprintf("We received a request to reset the password for your %s account.", site),
		"This link will expire in 1 hour. If you didn't request a password reset, you can safely ignore this email.",
	}
	return s.send(ctx, "password_reset", user.Email, fmt.Sprintf("Reset Your %s Password", site), "Password Reset Request", body, "Reset Password", resetLink)
}

// SendSubmissionReceived confirms a competition entry
func (s *EmailService) SendSubmissionReceived(ctx context.Context, user *models.User, comp *models.Competition, sub *models.CompetitionSubmission) error {
	body := []string{
		fmt.Sprintf("Hi %s,", user.Name),
		fmt.Sprintf("Your story \"%s\" has been entered into the %s competition (%s).", sub.Title, comp.Title, comp.Month),
		"Judging starts when the submission period ends. Good luck!",
	}
	return s.send(ctx, "submission_received", user.Email, "Your competition entry is in!", "Entry received", body,
		"View competition", s.appBaseURL+"/competitions")
}

// SendWinner tells a user their entry placed on the podium
func (s *EmailService) SendWinner(ctx context.Context, user *models.User, comp *models.Competition, sub *models.CompetitionSubmission) error {
	place := "a winning"
	if sub.CompetitionRank != nil {
		place = ordinal(*sub.CompetitionRank)
	}
	body := []string{
		fmt.Sprintf("Congratulations %s!", user.Name),
		fmt.Sprintf("Your story \"%s\" won %s place in the %s competition.", sub.Title, place, comp.Title),
	}
	subject := fmt.Sprintf("You're a %s competition winner!", s.siteName(ctx))
	return s.send(ctx, "competition_winner", user.Email, subject, "We have a winner!", body,
		"See the results", s.appBaseURL+"/competitions")
}

// SendQuotaReset tells a user their monthly stories are available again
func (s *EmailService) SendQuotaReset(ctx context.Context, user *models.User, quota int) error {
	body := []string{
		fmt.Sprintf("Hi %s,", user.Name),
		fmt.Sprintf("A new month has started and you can write %d new stories.", quota),
	}
	return s.send(ctx, "quota_reset", user.Email, "Your new stories are ready", "New month, new stories!", body,
		"Write a story", s.appBaseURL+"/create-stories")
}

// send renders the shared layout and delivers it via SES
func (s *EmailService) send(ctx context.Context, template, toEmail, subject, heading string, paragraphs []string, buttonText, buttonURL string) error {
	log := s.logger.With(zap.String("template", template), zap.String("to", toEmail))

	site := s.siteName(ctx)
	htmlBody := renderHTML(site, heading, paragraphs, buttonText, buttonURL)
	textBody := renderText(site, paragraphs, buttonText, buttonURL)
	if s.debug {
		log.Info("Email content", zap.String("subject", subject), zap.String("text", textBody))
	}

	if !s.enabled {
		log.Debug("Skipping email send (service disabled)")
		metrics.EmailsTotal.WithLabelValues(template, "skipped").Inc()
		return nil
	}

	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	log.Debug("Calling SES SendEmail", zap.Int("html_bytes", len(htmlBody)), zap.Int("text_bytes", len(textBody)))
	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		metrics.EmailsTotal.WithLabelValues(template, "failed").Inc()
		log.Error("SES SendEmail failed", zap.Error(err))
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	metrics.EmailsTotal.WithLabelValues(template, "sent").Inc()
	log.Info("Email sent", zap.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

func renderHTML(site, heading string, paragraphs []string, buttonText, buttonURL string) string {
	var b strings.Builder
	for _, p := range paragraphs {
		fmt.Fprintf(&b, "\t\t\t<p>%s</p>\n", html.EscapeString(p))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #7c3aed; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.button { display: inline-block; padding: 12px 30px; background-color: #7c3aed; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>%s</h1>
		</div>
		<div class="content">
%s			<p style="text-align: center;">
				<a href="%s" class="button">%s</a>
			</p>
		</div>
		<div class="footer">
			<p>This is an automated email from %s. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, html.EscapeString(heading), b.String(), html.EscapeString(buttonURL), html.EscapeString(buttonText), html.EscapeString(site))
}

func renderText(site string, paragraphs []string, buttonText, buttonURL string) string {
	return fmt.Sprintf("%s\n\n%s: %s\n\n---\nThis is an automated email from %s. Please do not reply.\n",
		strings.Join(paragraphs, "\n\n"), buttonText, buttonURL, site)
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	}
	return fmt.Sprintf("%dth", n)
}
