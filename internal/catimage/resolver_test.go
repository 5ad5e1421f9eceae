package catimage_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/cat-facts/internal/catimage"
	"github.com/angeloszaimis/cat-facts/internal/metrics"
	"github.com/angeloszaimis/cat-facts/internal/sampler"
	"github.com/angeloszaimis/cat-facts/internal/upstream"
	"github.com/angeloszaimis/cat-facts/pkg/logger"
)

var _ = Describe("Resolver", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		collector *metrics.Collector
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(10, logger.Discard())
		collector.Start(ctx)
	})

	AfterEach(func() {
		cancel()
	})

	good := func(name string) *fakeSource {
		return &fakeSource{name: name, candidate: &catimage.Candidate{
			SourceURL:   "https://example.org/" + name,
			ContentType: "image/jpeg",
			Body:        jpegBytes,
		}}
	}

	It("should return the first valid candidate without touching later tiers", func() {
		first, second := good("a"), good("b")
		resolver := catimage.NewResolver(fixedPlan{sources: []catimage.Source{first, second}}, collector, logger.Discard())

		candidate, err := resolver.Resolve(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(candidate.Tier).To(Equal("a"))
		Expect(second.calls).To(BeZero())
	})

	It("should fall through failing and invalid tiers, trying each once", func() {
		failing := &fakeSource{name: "failing", err: catimage.ErrNoCandidates}
		invalid := &fakeSource{name: "invalid", candidate: &catimage.Candidate{ContentType: "text/html", Body: []byte("<html>")}}
		empty := &fakeSource{name: "empty", candidate: &catimage.Candidate{ContentType: "image/png"}}
		last := good("fallback")

		resolver := catimage.NewResolver(fixedPlan{sources: []catimage.Source{failing, invalid, empty, last}}, collector, logger.Discard())

		candidate, err := resolver.Resolve(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(candidate.Tier).To(Equal("fallback"))
		Expect(candidate.ContentType).To(HavePrefix("image/"))
		Expect([]int{failing.calls, invalid.calls, empty.calls, last.calls}).To(Equal([]int{1, 1, 1, 1}))

		Eventually(func() int64 {
			return collector.Snapshot().Fallbacks["fallback"]
		}).Should(Equal(int64(1)))
	})

	It("should return ErrNoImage when every tier fails", func() {
		resolver := catimage.NewResolver(fixedPlan{sources: []catimage.Source{
			&fakeSource{name: "a", err: errors.New("boom")},
			&fakeSource{name: "b", err: catimage.ErrNoCandidates},
		}}, collector, logger.Discard())

		_, err := resolver.Resolve(ctx)
		Expect(errors.Is(err, catimage.ErrNoImage)).To(BeTrue())

		Eventually(func() int64 {
			return collector.Snapshot().Fallbacks[catimage.NoImageTier]
		}).Should(Equal(int64(1)))
	})

	It("should stop once the caller is gone", func() {
		source := good("a")
		resolver := catimage.NewResolver(fixedPlan{sources: []catimage.Source{source}}, nil, logger.Discard())

		done, stop := context.WithCancel(context.Background())
		stop()

		_, err := resolver.Resolve(done)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(source.calls).To(BeZero())
	})

	Describe("with a time budget", func() {
		It("should cut slow tiers short and keep time for the final tier", func() {
			first := &slowSource{name: "slow-a"}
			second := &slowSource{name: "slow-b"}
			last := good("fallback")

			resolver := catimage.NewResolver(
				fixedPlan{sources: []catimage.Source{first, second, last}},
				collector, logger.Discard(),
				catimage.WithBudget(300*time.Millisecond, 100*time.Millisecond),
			)

			start := time.Now()
			candidate, err := resolver.Resolve(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(candidate.Tier).To(Equal("fallback"))
			Expect(time.Since(start)).To(BeNumerically("<", 300*time.Millisecond))
			Expect(first.calls).To(Equal(1))
			Expect(second.calls).To(BeZero())
			Expect(last.calls).To(Equal(1))
		})

		It("should return ErrNoImage once the budget is spent", func() {
			resolver := catimage.NewResolver(
				fixedPlan{sources: []catimage.Source{&slowSource{name: "a"}, &slowSource{name: "b"}}},
				collector, logger.Discard(),
				catimage.WithBudget(100*time.Millisecond, 40*time.Millisecond),
			)

			start := time.Now()
			_, err := resolver.Resolve(ctx)
			Expect(errors.Is(err, catimage.ErrNoImage)).To(BeTrue())
			Expect(time.Since(start)).To(BeNumerically("<", 500*time.Millisecond))
		})

		It("should ignore a reserve that does not fit the budget", func() {
			resolver := catimage.NewResolver(
				fixedPlan{sources: []catimage.Source{good("a")}},
				collector, logger.Discard(),
				catimage.WithBudget(50*time.Millisecond, time.Second),
			)

			candidate, err := resolver.Resolve(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(candidate.Tier).To(Equal("a"))
		})
	})

	Describe("with the catalog plan", func() {
		var commons *stubCommons

		BeforeEach(func() {
			commons = newStubCommons()
		})

		AfterEach(func() {
			commons.Close()
		})

		newResolver := func() *catimage.Resolver {
			client := upstream.New(upstream.Options{Name: "test", Logger: logger.Discard()})
			plan := catimage.NewCatalogPlan(catimage.CatalogOptions{
				Categories:  []string{"Empty cats", "Tabby cats"},
				API:         catimage.Endpoint{Client: client, URL: commons.URL(), Timeout: time.Second},
				Image:       catimage.ImageFetch{Client: client, Timeout: time.Second},
				FallbackURL: commons.server.URL + "/Cat03.jpg",
				ThumbWidth:  800,
				MemberLimit: 50,
				Sampler:     sampler.NewRoundRobin(),
			})
			return catimage.NewResolver(plan, collector, logger.Discard())
		}

		BeforeEach(func() {
			commons.files["/Cat03.jpg"] = serveImage("image/jpeg", jpegBytes)
		})

		It("should move on to the next category when one is empty", func() {
			commons.categories["Tabby cats"] = []fakeFile{
				{Title: "File:Tabby.png", Mime: "image/png", Path: "/tabby.png"},
			}
			commons.files["/tabby.png"] = serveImage("image/png", pngBytes)

			candidate, err := newResolver().Resolve(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(candidate.Tier).To(Equal("category:Tabby cats"))
			Expect(candidate.Body).To(Equal(pngBytes))
		})

		It("should serve the fixed fallback picture when every category is empty", func() {
			candidate, err := newResolver().Resolve(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(candidate.Tier).To(Equal(catimage.FallbackTier))
			Expect(candidate.Body).To(Equal(jpegBytes))
		})

		It("should skip a member whose bytes are not an image", func() {
			commons.categories["Tabby cats"] = []fakeFile{
				{Title: "File:Broken.jpg", Mime: "image/jpeg", Path: "/broken.jpg"},
			}
			commons.files["/broken.jpg"] = serveImage("text/html", []byte("<html>gone</html>"))

			candidate, err := newResolver().Resolve(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(candidate.Tier).To(Equal(catimage.FallbackTier))
		})

		It("should return ErrNoImage when the fallback picture is gone too", func() {
			delete(commons.files, "/Cat03.jpg")

			_, err := newResolver().Resolve(ctx)
			Expect(errors.Is(err, catimage.ErrNoImage)).To(BeTrue())
		})
	})
})
