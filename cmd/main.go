package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angeloszaimis/cat-facts/config"
	"github.com/angeloszaimis/cat-facts/internal/catimage"
	"github.com/angeloszaimis/cat-facts/internal/circuitbreaker"
	"github.com/angeloszaimis/cat-facts/internal/fact"
	"github.com/angeloszaimis/cat-facts/internal/handler"
	"github.com/angeloszaimis/cat-facts/internal/httpserver"
	"github.com/angeloszaimis/cat-facts/internal/metrics"
	"github.com/angeloszaimis/cat-facts/internal/sampler"
	"github.com/angeloszaimis/cat-facts/internal/translate"
	"github.com/angeloszaimis/cat-facts/internal/upstream"
	"github.com/angeloszaimis/cat-facts/pkg/logger"
)

const metricsBufferSize = 1000

// Breaker and metric names of the upstreams.
const (
	upstreamFact          = "fact"
	upstreamTranslate     = "translate"
	upstreamCatalog       = "catalog"
	upstreamSearch        = "search"
	upstreamImage         = "image"
	upstreamFallbackImage = "fallback-image"
)

type timeouts struct {
	fact      time.Duration
	translate time.Duration
	catalog   time.Duration
	search    time.Duration
	image     time.Duration
	breaker   time.Duration
	server    httpserver.Timeouts
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	durations, err := parseTimeouts(cfg)
	if err != nil {
		log.Error("Invalid timeout", slog.Any("err", err))
		os.Exit(1)
	}

	metricsCollector := metrics.NewCollector(metricsBufferSize, log)
	metricsCollector.Start(ctx)

	breakers := newBreakerRegistry(cfg.CircuitBreaker.Threshold, durations.breaker, metricsCollector, log)

	factHandler, imageHandler := buildHandlers(cfg, durations, breakers, metricsCollector, log)
	publishBreakerStates(breakers, metricsCollector)

	router := setupRouter(cfg, log, factHandler, imageHandler, metricsCollector)

	srv, err := httpserver.New(cfg.Server.Address, router, durations.server)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("Cat facts listening",
		slog.String("addr", srv.Addr()),
		slog.String("image_strategy", cfg.Image.Strategy),
		slog.String("image_delivery", cfg.Image.Delivery),
		slog.Any("cors_origins", cfg.CORS.AllowedOrigins))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func parseTimeouts(cfg *config.Config) (timeouts, error) {
	var t timeouts

	fields := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"server.read_timeout", cfg.Server.ReadTimeout, &t.server.Read},
		{"server.write_timeout", cfg.Server.WriteTimeout, &t.server.Write},
		{"server.idle_timeout", cfg.Server.IdleTimeout, &t.server.Idle},
		{"upstreams.fact.timeout", cfg.Upstreams.Fact.Timeout, &t.fact},
		{"upstreams.translate.timeout", cfg.Upstreams.Translate.Timeout, &t.translate},
		{"upstreams.catalog.timeout", cfg.Upstreams.Catalog.Timeout, &t.catalog},
		{"upstreams.search.timeout", cfg.Upstreams.Search.Timeout, &t.search},
		{"upstreams.image.timeout", cfg.Upstreams.Image.Timeout, &t.image},
		{"circuit_breaker.reset_timeout", cfg.CircuitBreaker.ResetTimeout, &t.breaker},
	}

	for _, f := range fields {
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return timeouts{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d
	}

	return t, nil
}

func newBreakerRegistry(threshold int, resetTimeout time.Duration, collector *metrics.Collector, log *slog.Logger) *circuitbreaker.Registry {
	registry := circuitbreaker.NewRegistry(threshold, resetTimeout)
	registry.OnStateChange(func(name string, from, to circuitbreaker.State) {
		log.Warn("Circuit breaker changed state",
			slog.String("upstream", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()))
		collector.Emit(metrics.MetricEvent{
			Type:     metrics.EventBreakerChanged,
			Upstream: name,
			Open:     to == circuitbreaker.StateOpen,
		})
	})
	return registry
}

// publishBreakerStates reports every breaker created during wiring, so
// upstreams that never changed state still show up in /metrics.
func publishBreakerStates(registry *circuitbreaker.Registry, collector *metrics.Collector) {
	for name, state := range registry.Stats() {
		collector.Emit(metrics.MetricEvent{
			Type:     metrics.EventBreakerChanged,
			Upstream: name,
			Open:     state == circuitbreaker.StateOpen,
		})
	}
}

func buildHandlers(cfg *config.Config, t timeouts, breakers *circuitbreaker.Registry, collector *metrics.Collector, log *slog.Logger) (*handler.FactHandler, *handler.ImageHandler) {
	httpClient := upstream.NewHTTPClient()

	newClient := func(name string, maxBytes int64) *upstream.Client {
		return upstream.New(upstream.Options{
			Name:       name,
			HTTPClient: httpClient,
			UserAgent:  cfg.Upstreams.UserAgent,
			MaxBytes:   maxBytes,
			Breaker:    breakers.GetBreaker(name),
			Collector:  collector,
			Logger:     log,
		})
	}

	translator := translate.New(newClient(upstreamTranslate, 0), cfg.Upstreams.Translate.URL, t.translate, log)

	facts := fact.New(fact.Options{
		Client:     newClient(upstreamFact, 0),
		Translator: translator,
		URL:        cfg.Upstreams.Fact.URL,
		Timeout:    t.fact,
		Fallback:   cfg.Fact.Fallback,
		Collector:  collector,
		Logger:     log,
	})

	plan := createImagePlan(log, cfg, t, func(name string) catimage.Fetcher {
		maxBytes := int64(0)
		if name == upstreamImage || name == upstreamFallbackImage {
			maxBytes = cfg.Image.MaxBytes
		}
		return newClient(name, maxBytes)
	}, sampler.NewRandom())

	total, reserve := imageBudget(t)
	resolver := catimage.NewResolver(plan, collector, log, catimage.WithBudget(total, reserve))

	return handler.NewFactHandler(facts, log),
		handler.NewImageHandler(resolver, cfg.Image.Delivery == config.DeliveryRedirect, log)
}

// imageBudget keeps image resolution inside the server write timeout, with
// a tenth of it left for writing the response, and holds one image fetch in
// reserve for the fallback picture.
func imageBudget(t timeouts) (total, reserve time.Duration) {
	total = t.server.Write - t.server.Write/10
	return total, t.image
}

func createImagePlan(logger *slog.Logger, cfg *config.Config, t timeouts, clientFor func(name string) catimage.Fetcher, s sampler.Sampler) catimage.Plan {
	image := catimage.ImageFetch{Client: clientFor(upstreamImage), Timeout: t.image}

	newCatalog := func() catimage.Plan {
		return catimage.NewCatalogPlan(catimage.CatalogOptions{
			Categories:  cfg.Image.Categories,
			API:         catimage.Endpoint{Client: clientFor(upstreamCatalog), URL: cfg.Upstreams.Catalog.URL, Timeout: t.catalog},
			Image:       image,
			Fallback:    catimage.ImageFetch{Client: clientFor(upstreamFallbackImage), Timeout: t.image},
			FallbackURL: cfg.Image.FallbackURL,
			ThumbWidth:  cfg.Image.ThumbWidth,
			MemberLimit: cfg.Image.MemberLimit,
			Sampler:     s,
		})
	}

	switch cfg.Image.Strategy {
	case config.StrategyCatalog:
		return newCatalog()
	case config.StrategySearch:
		return catimage.NewSearchPlan(
			catimage.Endpoint{Client: clientFor(upstreamSearch), URL: cfg.Upstreams.Search.URL, Timeout: t.search},
			image,
		)
	default:
		logger.Warn("Unknown image strategy, defaulting to catalog", slog.String("requested", cfg.Image.Strategy))
		return newCatalog()
	}
}
