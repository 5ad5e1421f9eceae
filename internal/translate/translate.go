package translate

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/angeloszaimis/cat-facts/internal/upstream"
)

const (
	sourceLanguage = "en"
	defaultTimeout = 8 * time.Second
)

// Getter is the part of the upstream client the translator needs.
type Getter interface {
	GetJSON(ctx context.Context, req upstream.Request, v any) error
}

type Translator struct {
	client  Getter
	url     string
	timeout time.Duration
	logger  *slog.Logger
}

func New(client Getter, endpoint string, timeout time.Duration, logger *slog.Logger) *Translator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Translator{
		client:  client,
		url:     endpoint,
		timeout: timeout,
		logger:  logger,
	}
}

// Translate returns text translated from English into target, or text itself
// when the call fails or yields nothing.
func (t *Translator) Translate(ctx context.Context, text, target string) string {
	if strings.TrimSpace(text) == "" || target == "" {
		return text
	}

	var body []any
	err := t.client.GetJSON(ctx, upstream.Request{
		URL: t.url,
		Query: url.Values{
			"client": {"gtx"},
			"sl":     {sourceLanguage},
			"tl":     {target},
			"dt":     {"t"},
			"q":      {text},
		},
		Timeout: t.timeout,
	}, &body)
	if err != nil {
		t.logger.Warn("Translation failed, keeping original text",
			slog.String("target", target),
			slog.Any("err", err))
		return text
	}

	translated := joinSegments(body)
	if translated == "" {
		t.logger.Warn("Translation returned no segments, keeping original text",
			slog.String("target", target))
		return text
	}

	return translated
}

// joinSegments concatenates the fragment at index 0 of every segment listed
// at index 0 of body. Anything not shaped that way is skipped.
func joinSegments(body []any) string {
	if len(body) == 0 {
		return ""
	}

	segments, ok := body[0].([]any)
	if !ok {
		return ""
	}

	var sb strings.Builder
	for _, raw := range segments {
		segment, ok := raw.([]any)
		if !ok || len(segment) == 0 {
			continue
		}
		fragment, ok := segment[0].(string)
		if !ok || fragment == "" {
			continue
		}
		sb.WriteString(fragment)
	}

	return sb.String()
}
