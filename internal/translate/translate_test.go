package translate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/cat-facts/internal/translate"
	"github.com/angeloszaimis/cat-facts/internal/upstream"
	"github.com/angeloszaimis/cat-facts/pkg/logger"
)

var _ = Describe("Translator", func() {
	var (
		server     *httptest.Server
		handler    http.HandlerFunc
		calls      atomic.Int32
		lastQuery  atomic.Value
		translator *translate.Translator
		ctx        context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		calls.Store(0)
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[[["У кошек 32 мышцы ","Cats have 32 muscles ",null,null,10],["в каждом ухе.","in each ear.",null,null,10]],null,"en"]`))
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			lastQuery.Store(r.URL.Query())
			handler(w, r)
		}))

		client := upstream.New(upstream.Options{Name: "translate", Logger: logger.Discard()})
		translator = translate.New(client, server.URL, time.Second, logger.Discard())
	})

	AfterEach(func() {
		server.Close()
	})

	It("should concatenate the translated fragments in order", func() {
		Expect(translator.Translate(ctx, "Cats have 32 muscles in each ear.", "ru")).
			To(Equal("У кошек 32 мышцы в каждом ухе."))
	})

	It("should send the gtx query parameters", func() {
		translator.Translate(ctx, "Cats purr.", "ru")

		query := lastQuery.Load().(url.Values)
		Expect(query.Get("client")).To(Equal("gtx"))
		Expect(query.Get("sl")).To(Equal("en"))
		Expect(query.Get("tl")).To(Equal("ru"))
		Expect(query.Get("dt")).To(Equal("t"))
		Expect(query.Get("q")).To(Equal("Cats purr."))
	})

	It("should skip empty and malformed segments", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[[null,[],[42],["Кошки "],["",""],["мурлычут."]]]`))
		}

		Expect(translator.Translate(ctx, "Cats purr.", "ru")).To(Equal("Кошки мурлычут."))
	})

	It("should return empty input without calling the endpoint", func() {
		Expect(translator.Translate(ctx, "", "ru")).To(Equal(""))
		Expect(calls.Load()).To(BeZero())
	})

	DescribeTable("should return the original text when translation is unusable",
		func(respond http.HandlerFunc) {
			handler = respond
			Expect(translator.Translate(ctx, "Cats purr.", "ru")).To(Equal("Cats purr."))
		},
		Entry("non-200 status", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})),
		Entry("malformed body", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":"nope"}`))
		})),
		Entry("not json", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html></html>`))
		})),
		Entry("empty segment list", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[[],null,"en"]`))
		})),
		Entry("empty array", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		})),
	)

	It("should return the original text when the endpoint times out", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}
		translator = translate.New(
			upstream.New(upstream.Options{Name: "translate", Logger: logger.Discard()}),
			server.URL, 50*time.Millisecond, logger.Discard())

		Expect(translator.Translate(ctx, "Cats purr.", "ru")).To(Equal("Cats purr."))
	})

	It("should return the original text when the endpoint is unreachable", func() {
		server.Close()
		Expect(translator.Translate(ctx, "Cats purr.", "ru")).To(Equal("Cats purr."))
	})
})
