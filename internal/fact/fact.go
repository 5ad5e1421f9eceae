package fact

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/angeloszaimis/cat-facts/internal/metrics"
	"github.com/angeloszaimis/cat-facts/internal/upstream"
)

const (
	DefaultLanguage = "en"
	russian         = "ru"
	defaultTimeout  = 5 * time.Second
)

// FallbackTier is the tier name reported when the fallback sentence is used.
const FallbackTier = "fact-fallback"

var errEmptyFact = errors.New("provider returned an empty fact")

// Getter is the part of the upstream client the service needs.
type Getter interface {
	GetJSON(ctx context.Context, req upstream.Request, v any) error
}

// Translator is the best-effort translator used for Russian requests.
type Translator interface {
	Translate(ctx context.Context, text, target string) string
}

type Result struct {
	Text       string
	Translated bool
	Fallback   bool
}

type Options struct {
	Client     Getter
	Translator Translator
	URL        string
	Timeout    time.Duration
	Fallback   string
	Collector  *metrics.Collector
	Logger     *slog.Logger
}

type Service struct {
	client     Getter
	translator Translator
	url        string
	timeout    time.Duration
	fallback   string
	collector  *metrics.Collector
	logger     *slog.Logger
}

type factResponse struct {
	Fact   string `json:"fact"`
	Length int    `json:"length"`
}

func New(opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Service{
		client:     opts.Client,
		translator: opts.Translator,
		url:        opts.URL,
		timeout:    opts.Timeout,
		fallback:   opts.Fallback,
		collector:  opts.Collector,
		logger:     opts.Logger,
	}
}

// Get returns a fact, translated into Russian when lang asks for it.
func (s *Service) Get(ctx context.Context, lang string) Result {
	var result Result

	text, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("Fact provider unavailable, using fallback fact", slog.Any("err", err))
		s.collector.Emit(metrics.MetricEvent{
			Type: metrics.EventFallbackUsed,
			Tier: FallbackTier,
		})
		text = s.fallback
		result.Fallback = true
	}

	if WantsRussian(lang) && s.translator != nil {
		translated := s.translator.Translate(ctx, text, russian)
		result.Translated = translated != text
		text = translated
	}

	result.Text = text
	return result
}

func (s *Service) fetch(ctx context.Context) (string, error) {
	var resp factResponse
	if err := s.client.GetJSON(ctx, upstream.Request{URL: s.url, Timeout: s.timeout}, &resp); err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Fact)
	if text == "" {
		return "", errEmptyFact
	}

	return text, nil
}

// WantsRussian reports whether lang selects Russian. Any code starting with
// "ru", in any case, does.
func WantsRussian(lang string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), russian)
}
