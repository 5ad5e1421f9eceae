// Stubupstream stands in for every third-party API the service calls, so
// the service can run offline.
//
// Usage:
//
//	go run ./scripts/stubupstream -port 9090
//	go run ./scripts/stubupstream -port 9090 -fail-rate 0.3 -latency 200ms
//
// Point the service at it with:
//
//	UPSTREAMS_FACT_URL=http://localhost:9090/fact
//	UPSTREAMS_TRANSLATE_URL=http://localhost:9090/translate_a/single
//	UPSTREAMS_CATALOG_URL=http://localhost:9090/w/api.php
//	UPSTREAMS_SEARCH_URL=http://localhost:9090/v1/images/search
//
// Every category except "Empty cats" lists a few generated PNG files, so the
// fallback chain can be watched by configuring that category first.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var facts = []string{
	"Cats have 32 muscles in each ear.",
	"A group of cats is called a clowder.",
	"Cats sleep for around 13 to 16 hours a day.",
	"A cat's nose print is unique, much like a human fingerprint.",
}

const filesPerCategory = 4

type stub struct {
	failRate float64
	latency  time.Duration
	baseURL  string
}

func main() {
	port := flag.Int("port", 9090, "port to listen on")
	failRate := flag.Float64("fail-rate", 0, "fraction of requests answered with 503")
	latency := flag.Duration("latency", 0, "delay added to every response")
	flag.Parse()

	s := &stub{
		failRate: *failRate,
		latency:  *latency,
		baseURL:  fmt.Sprintf("http://localhost:%d", *port),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/fact", s.wrap(s.fact))
	mux.HandleFunc("/translate_a/single", s.wrap(s.translate))
	mux.HandleFunc("/w/api.php", s.wrap(s.catalog))
	mux.HandleFunc("/v1/images/search", s.wrap(s.search))
	mux.HandleFunc("/files/", s.wrap(s.file))

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("starting stub upstreams on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func (s *stub) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("request: method=%s path=%s query=%s ua=%q", r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent())

		if s.latency > 0 {
			time.Sleep(s.latency)
		}
		if s.failRate > 0 && rand.Float64() < s.failRate {
			http.Error(w, "injected failure", http.StatusServiceUnavailable)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *stub) fact(w http.ResponseWriter, r *http.Request) {
	text := facts[rand.IntN(len(facts))]
	writeJSON(w, map[string]any{"fact": text, "length": len(text)})
}

// translate answers in the translate_a segment layout, one segment per
// sentence.
func (s *stub) translate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("tl")

	var segments []any
	for _, sentence := range strings.SplitAfter(q.Get("q"), ". ") {
		if sentence == "" {
			continue
		}
		segments = append(segments, []any{"[" + target + "] " + sentence, sentence, nil, nil, 10})
	}

	writeJSON(w, []any{segments, nil, q.Get("sl")})
}

func (s *stub) catalog(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimPrefix(r.URL.Query().Get("gcmtitle"), "Category:")
	if category == "" || category == "Empty cats" {
		writeJSON(w, map[string]any{"batchcomplete": ""})
		return
	}

	pages := make(map[string]any, filesPerCategory)
	for i := 0; i < filesPerCategory; i++ {
		name := fmt.Sprintf("%s-%d.png", strings.ReplaceAll(category, " ", "_"), i)
		fileURL := s.baseURL + "/files/" + name
		pages[fmt.Sprintf("-%d", i+1)] = map[string]any{
			"title": "File:" + name,
			"imageinfo": []any{map[string]any{
				"url":      fileURL,
				"thumburl": fileURL + "?thumb=1",
				"mime":     "image/png",
			}},
		}
	}

	writeJSON(w, map[string]any{
		"batchcomplete": "",
		"query":         map[string]any{"pages": pages},
	})
}

func (s *stub) search(w http.ResponseWriter, r *http.Request) {
	name := uuid.NewString() + ".png"
	writeJSON(w, []any{map[string]any{
		"id":     name,
		"url":    s.baseURL + "/files/" + name,
		"width":  64,
		"height": 64,
	}})
}

// file renders a small PNG whose colour depends on the file name.
func (s *stub) file(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/files/")

	var seed uint32
	for _, c := range name {
		seed = seed*31 + uint32(c)
	}
	fill := color.RGBA{R: uint8(seed), G: uint8(seed >> 8), B: uint8(seed >> 16), A: 255}

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Some real hosts send no useful type; exercise the sniffing path
	if r.URL.Query().Get("thumb") == "" {
		w.Header().Set("Content-Type", "application/octet-stream")
	} else {
		w.Header().Set("Content-Type", "image/png")
	}
	w.Write(buf.Bytes())
}
