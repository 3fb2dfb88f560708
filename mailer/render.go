package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/carauth"
)

//go:embed templates/*.html
var templateFS embed.FS

// RenderConfig controls links and wording.
type RenderConfig struct {
	// BaseURL is the public address of the frontend, e.g. https://solidcar.example.
	BaseURL string
	// Brand is shown in greetings and signatures.
	Brand string

	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// Rendered is a message ready for delivery.
type Rendered struct {
	To      string
	Subject string
	HTML    string
	Text    string
	Link    string
}

type templateData struct {
	Brand  string
	Name   string
	Link   string
	Expiry string
}

var subjects = map[carauth.EmailKind]string{
	carauth.EmailVerification:  "Verify your email address",
	carauth.EmailPasswordReset: "Reset your password",
}

// Renderer fills the embedded templates.
type Renderer struct {
	cfg  RenderConfig
	tmpl *template.Template
}

// NewRenderer parses the templates and checks BaseURL.
func NewRenderer(cfg RenderConfig) (*Renderer, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("mailer: invalid base URL %q", cfg.BaseURL)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Brand == "" {
		cfg.Brand = "Solid Car"
	}
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("mailer: parse templates: %w", err)
	}
	return &Renderer{cfg: cfg, tmpl: tmpl}, nil
}

// Link returns the frontend URL that consumes the token of msg.
func (r *Renderer) Link(msg carauth.EmailMessage) (string, error) {
	switch msg.Kind {
	case carauth.EmailVerification:
		return r.cfg.BaseURL + "/verify-email/" + url.PathEscape(msg.Token), nil
	case carauth.EmailPasswordReset:
		return r.cfg.BaseURL + "/reset-password/" + url.PathEscape(msg.Token), nil
	default:
		return "", fmt.Errorf("mailer: unknown email kind %q", msg.Kind)
	}
}

// Render builds the message for msg.
func (r *Renderer) Render(msg carauth.EmailMessage) (Rendered, error) {
	link, err := r.Link(msg)
	if err != nil {
		return Rendered{}, err
	}

	ttl := r.cfg.VerificationTTL
	if msg.Kind == carauth.EmailPasswordReset {
		ttl = r.cfg.ResetTTL
	}
	data := templateData{
		Brand:  r.cfg.Brand,
		Name:   msg.Account.FullName,
		Link:   link,
		Expiry: humanDuration(ttl),
	}

	var html bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&html, string(msg.Kind), data); err != nil {
		return Rendered{}, fmt.Errorf("mailer: render %s: %w", msg.Kind, err)
	}

	text := fmt.Sprintf("Hi %s,\n\nOpen this link to continue: %s\nIt expires in %s.\n\nThe %s Team\n",
		data.Name, link, data.Expiry, data.Brand)

	return Rendered{
		To:      msg.Account.Email,
		Subject: subjects[msg.Kind],
		HTML:    html.String(),
		Text:    text,
		Link:    link,
	}, nil
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return plural(int(d/time.Hour), "hour")
	}
	return plural(int(d/time.Minute), "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
