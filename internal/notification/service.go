package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/metrics"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/storage"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariff"
)

// Service sends email notifications using the provider configured in
// storage (smtp, sendgrid or resend).
type Service struct {
	storage storage.Storage
	log     zerolog.Logger
}

func NewService(s storage.Storage, logger zerolog.Logger) *Service {
	return &Service{
		storage: s,
		log:     logger.With().Str("component", "notification").Logger(),
	}
}

func (s *Service) GetConfig(ctx context.Context) (*storage.EmailConfig, error) {
	return s.storage.GetEmailConfig(ctx)
}

func (s *Service) SaveConfig(ctx context.Context, cfg storage.EmailConfig) error {
	if cfg.ID == "" {
		cfg.ID = "default"
	}
	return s.storage.SaveEmailConfig(ctx, cfg)
}

// SendEmail delivers a single message using the stored configuration.
func (s *Service) SendEmail(ctx context.Context, to, subject, body string) error {
	cfg, err := s.storage.GetEmailConfig(ctx)
	if err != nil {
		return err
	}
	if cfg == nil || !cfg.Enabled {
		return errors.New("email not configured or disabled")
	}
	return s.dispatch(cfg, to, subject, body)
}

// TestConfig sends a test email using the provided (possibly unsaved)
// configuration.
func (s *Service) TestConfig(ctx context.Context, cfg storage.EmailConfig, to string) error {
	return s.dispatch(&cfg, to, "Test Email", "This is a test email from Smart Bill Predictor.")
}

// NotifyRateChange emails every recipient about a freshly published rate
// structure version. Intended as a catalog publish hook; delivery failures
// are logged per recipient and the first error is returned.
func (s *Service) NotifyRateChange(ctx context.Context, rs *tariff.RateStructure, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}

	cfg, err := s.storage.GetEmailConfig(ctx)
	if err != nil {
		return err
	}
	if cfg == nil || !cfg.Enabled {
		s.log.Debug().Str("plan", rs.PlanID).Msg("email not configured, skipping rate change notification")
		return nil
	}

	subject := fmt.Sprintf("Tariff update: %s version %d", rs.PlanID, rs.Version)
	body := buildRateChangeBody(rs)

	var firstErr error
	for _, to := range recipients {
		if err := s.dispatch(cfg, to, subject, body); err != nil {
			s.log.Error().Err(err).Str("to", to).Str("plan", rs.PlanID).Msg("rate change notification failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.log.Info().Str("to", to).Str("plan", rs.PlanID).Uint64("version", rs.Version).Msg("rate change notification sent")
	}
	return firstErr
}

func (s *Service) dispatch(cfg *storage.EmailConfig, to, subject, body string) error {
	var err error
	switch cfg.Provider {
	case "smtp":
		err = s.sendSMTP(cfg, to, subject, body)
	case "sendgrid":
		err = s.sendSendgrid(cfg, to, subject, body)
	case "resend":
		err = s.sendResend(cfg, to, subject, body)
	default:
		err = fmt.Errorf("unknown provider: %s", cfg.Provider)
	}

	status := "sent"
	if err != nil {
		status = "error"
	}
	metrics.NotificationsTotal.WithLabelValues(cfg.Provider, status).Inc()
	return err
}

func buildRateChangeBody(rs *tariff.RateStructure) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<h2>Rate plan %s updated</h2>", rs.PlanID))
	b.WriteString("<table border=\"0\" cellpadding=\"4\">")
	b.WriteString(fmt.Sprintf("<tr><td>Utility</td><td>%s</td></tr>", rs.UtilityID))
	b.WriteString(fmt.Sprintf("<tr><td>Version</td><td>%d</td></tr>", rs.Version))
	b.WriteString(fmt.Sprintf("<tr><td>Effective from</td><td>%s</td></tr>", rs.EffectiveFrom.Format("2006-01-02")))
	if rs.Currency != "" {
		b.WriteString(fmt.Sprintf("<tr><td>Currency</td><td>%s</td></tr>", rs.Currency))
	}
	b.WriteString(fmt.Sprintf("<tr><td>Fixed monthly fee</td><td>%s</td></tr>", rs.FixedMonthlyFee.String()))
	b.WriteString("</table>")

	if len(rs.Tiers) > 0 {
		b.WriteString("<h3>Slabs</h3><table border=\"1\" cellpadding=\"4\"><tr><th>From (kWh)</th><th>To (kWh)</th><th>Rate per kWh</th></tr>")
		for _, t := range rs.Tiers {
			upper := "&infin;"
			if t.UpperKWh != nil {
				upper = t.UpperKWh.String()
			}
			b.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td></tr>", t.LowerKWh.String(), upper, t.RatePerKWh.String()))
		}
		b.WriteString("</table>")
	} else {
		b.WriteString(fmt.Sprintf("<p>Flat rate: %s per kWh</p>", rs.BaseRatePerKWh.String()))
	}

	if len(rs.TOUWindows) > 0 {
		b.WriteString(fmt.Sprintf("<p>%d time-of-use window(s) apply.</p>", len(rs.TOUWindows)))
	}
	return b.String()
}

func (s *Service) sendSMTP(cfg *storage.EmailConfig, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=\"UTF-8\"\r\n"+
		"\r\n"+
		"%s\r\n", to, subject, body))

	if cfg.Encryption == "ssl" {
		// SSL/TLS (Implicit)
		tlsConfig := &tls.Config{
			InsecureSkipVerify: false,
			ServerName:         cfg.Host,
		}
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return err
		}
		defer conn.Close()

		c, err := smtp.NewClient(conn, cfg.Host)
		if err != nil {
			return err
		}
		defer c.Quit()

		if cfg.Username != "" && cfg.Password != "" {
			auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
			if err = c.Auth(auth); err != nil {
				return err
			}
		}

		if err = c.Mail(cfg.FromAddress); err != nil {
			return err
		}
		if err = c.Rcpt(to); err != nil {
			return err
		}
		w, err := c.Data()
		if err != nil {
			return err
		}
		_, err = w.Write(msg)
		if err != nil {
			return err
		}
		err = w.Close()
		if err != nil {
			return err
		}
		return nil
	} else if cfg.Encryption == "tls" {
		// STARTTLS (Explicit)
		c, err := smtp.Dial(addr)
		if err != nil {
			return err
		}
		defer c.Quit()

		if ok, _ := c.Extension("STARTTLS"); ok {
			config := &tls.Config{ServerName: cfg.Host}
			if err = c.StartTLS(config); err != nil {
				return err
			}
		}

		if cfg.Username != "" && cfg.Password != "" {
			auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
			if err = c.Auth(auth); err != nil {
				return err
			}
		}

		if err = c.Mail(cfg.FromAddress); err != nil {
			return err
		}
		if err = c.Rcpt(to); err != nil {
			return err
		}
		w, err := c.Data()
		if err != nil {
			return err
		}
		_, err = w.Write(msg)
		if err != nil {
			return err
		}
		err = w.Close()
		if err != nil {
			return err
		}
		return nil
	} else {
		// None / Plain
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		return smtp.SendMail(addr, auth, cfg.FromAddress, []string{to}, msg)
	}
}

func (s *Service) sendSendgrid(cfg *storage.EmailConfig, to, subject, body string) error {
	from := mail.NewEmail(cfg.FromName, cfg.FromAddress)
	toEmail := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, toEmail, body, body)
	client := sendgrid.NewSendClient(cfg.APIKey)
	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (s *Service) sendResend(cfg *storage.EmailConfig, to, subject, body string) error {
	url := "https://api.resend.com/emails"

	payload := map[string]string{
		"from":    fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress),
		"to":      to,
		"subject": subject,
		"html":    body,
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resend error: %d %s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}
