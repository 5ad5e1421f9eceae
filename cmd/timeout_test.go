package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/cat-facts/config"
	"github.com/angeloszaimis/cat-facts/internal/metrics"
	"github.com/angeloszaimis/cat-facts/pkg/logger"
)

var fallbackPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

var _ = Describe("imageBudget", func() {
	It("should leave a tenth of the write timeout and reserve one image fetch", func() {
		t, err := parseTimeouts(testConfig())
		Expect(err).NotTo(HaveOccurred())

		total, reserve := imageBudget(t)
		Expect(total).To(Equal(54 * time.Second))
		Expect(reserve).To(Equal(time.Second))
	})
})

var _ = Describe("/catimg under slow upstreams", func() {
	var (
		upstreams *httptest.Server
		service   *httptest.Server
	)

	BeforeEach(func() {
		upstreams = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/w/api.php":
				category := strings.TrimPrefix(r.URL.Query().Get("gcmtitle"), "Category:")
				file := "/slow/" + strings.ReplaceAll(category, " ", "_") + ".png"
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{
					"query": map[string]any{"pages": map[string]any{
						"1": map[string]any{
							"title":     "File:" + category + ".png",
							"imageinfo": []any{map[string]any{"url": "http://" + r.Host + file, "mime": "image/png"}},
						},
					}},
				})
			case strings.HasPrefix(r.URL.Path, "/slow/"):
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			case r.URL.Path == "/Cat03.png":
				w.Header().Set("Content-Type", "image/png")
				w.Write(fallbackPNG)
			default:
				http.NotFound(w, r)
			}
		}))

		cfg := testConfig()
		cfg.Server.WriteTimeout = "600ms"
		cfg.Upstreams.Fact.Timeout = "100ms"
		cfg.Upstreams.Translate.Timeout = "100ms"
		cfg.Upstreams.Catalog = config.EndpointConfig{URL: upstreams.URL + "/w/api.php", Timeout: "100ms"}
		cfg.Upstreams.Image.Timeout = "150ms"
		cfg.Image.Categories = []string{"Kittens", "Sleeping cats", "Tabby cats", "Black cats", "Ginger cats"}
		cfg.Image.FallbackURL = upstreams.URL + "/Cat03.png"
		Expect(cfg.Validate()).To(Succeed())

		t, err := parseTimeouts(cfg)
		Expect(err).NotTo(HaveOccurred())

		log := logger.Discard()
		collector := metrics.NewCollector(100, log)
		breakers := newBreakerRegistry(cfg.CircuitBreaker.Threshold, t.breaker, collector, log)
		factHandler, imageHandler := buildHandlers(cfg, t, breakers, collector, log)

		service = httptest.NewUnstartedServer(setupRouter(cfg, log, factHandler, imageHandler, collector))
		service.Config.WriteTimeout = t.server.Write
		service.Start()
	})

	AfterEach(func() {
		service.Close()
		upstreams.Close()
	})

	It("should serve the fallback picture before the write timeout", func() {
		resp, err := http.Get(service.URL + "/catimg")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())

		Expect(resp.StatusCode).To(Equal(http.StatusOK), fmt.Sprintf("tier %q", resp.Header.Get("X-Image-Tier")))
		Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
		Expect(resp.Header.Get("X-Image-Tier")).To(Equal("fallback"))
		Expect(body).To(Equal(fallbackPNG))
	})
})

var _ = Describe("publishBreakerStates", func() {
	It("should list every wired upstream in the metrics snapshot", func() {
		cfg := testConfig()
		t, err := parseTimeouts(cfg)
		Expect(err).NotTo(HaveOccurred())

		log := logger.Discard()
		collector := metrics.NewCollector(100, log)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		collector.Start(ctx)

		breakers := newBreakerRegistry(cfg.CircuitBreaker.Threshold, t.breaker, collector, log)
		buildHandlers(cfg, t, breakers, collector, log)
		publishBreakerStates(breakers, collector)

		Eventually(func() []string {
			var names []string
			for name, um := range collector.Snapshot().Upstreams {
				if !um.BreakerOpen {
					names = append(names, name)
				}
			}
			return names
		}).Should(ConsistOf("fact", "translate", "catalog", "image", "fallback-image"))
	})
})
