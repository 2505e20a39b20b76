// Package mailer はライフサイクル通知メールの送信を提供する。
//
// SMTP設定がある場合はgomail経由で実際に送信し、
// 未設定の環境（開発・テスト）ではログ出力のみのNotifierに差し替える。
// 送信失敗は呼び出し側でログに記録されるだけで、状態遷移を巻き戻さない。
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// SMTPConfig はSMTP送信の設定を保持する。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer はgomailを使用した通知メール送信の実装。
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer はSMTPMailerを生成する。
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// SendVerification はメールアドレス確認メールを送信する。
func (m *SMTPMailer) SendVerification(ctx context.Context, email, contactPerson, organizationName, token, verifyLink string) error {
	body, err := renderTemplate(verificationTmpl, verificationData{
		ContactPerson:    contactPerson,
		OrganizationName: organizationName,
		VerifyLink:       verifyLink,
		Token:            token,
	})
	if err != nil {
		return err
	}

	return m.send(email, subjectVerification, body)
}

// SendApproval は承認通知メールを送信する。
func (m *SMTPMailer) SendApproval(ctx context.Context, email, contactPerson, organizationName string) error {
	body, err := renderTemplate(approvalTmpl, decisionData{
		ContactPerson:    contactPerson,
		OrganizationName: organizationName,
	})
	if err != nil {
		return err
	}

	return m.send(email, subjectApproval, body)
}

// SendRejection は却下通知メールを送信する。却下理由を本文に含める。
func (m *SMTPMailer) SendRejection(ctx context.Context, email, contactPerson, organizationName, reason string) error {
	body, err := renderTemplate(rejectionTmpl, decisionData{
		ContactPerson:    contactPerson,
		OrganizationName: organizationName,
		Reason:           reason,
	})
	if err != nil {
		return err
	}

	return m.send(email, subjectRejection, body)
}

// send は1通のメールを組み立てて送信する。
func (m *SMTPMailer) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	return nil
}

// LogNotifier はメールを送信せず、内容をログに出力するNotifier実装。
// SMTP未設定の環境で使用する。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier はLogNotifierを生成する。loggerがnilの場合はslog.Defaultを使用する。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendVerification は確認メールの内容をログに出力する。
func (n *LogNotifier) SendVerification(ctx context.Context, email, contactPerson, organizationName, token, verifyLink string) error {
	n.logger.Info("verification email (smtp disabled)",
		slog.String("to", email),
		slog.String("organization", organizationName),
		slog.String("verify_link", verifyLink),
	)
	return nil
}

// SendApproval は承認通知の内容をログに出力する。
func (n *LogNotifier) SendApproval(ctx context.Context, email, contactPerson, organizationName string) error {
	n.logger.Info("approval email (smtp disabled)",
		slog.String("to", email),
		slog.String("organization", organizationName),
	)
	return nil
}

// SendRejection は却下通知の内容をログに出力する。
func (n *LogNotifier) SendRejection(ctx context.Context, email, contactPerson, organizationName, reason string) error {
	n.logger.Info("rejection email (smtp disabled)",
		slog.String("to", email),
		slog.String("organization", organizationName),
		slog.String("reason", reason),
	)
	return nil
}
