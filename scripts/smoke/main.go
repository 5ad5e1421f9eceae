// Smoke drives a running cat-facts instance and checks the response
// contracts of /fact and /catimg under concurrency.
//
// Usage:
//
//	go run ./scripts/smoke -url http://localhost:8080 -concurrency 5 -requests 50
//	go run ./scripts/smoke -url http://localhost:8080 -lang ru -out summary.json
//
// It exits non-zero when any contract is violated: a non-200 or empty fact,
// a /catimg response without cache-disabling headers, or a non-empty
// /catimg body whose content type is not an image.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type summary struct {
	Requests       int            `json:"requests"`
	Duration       string         `json:"duration"`
	FactStatus     map[int]int    `json:"fact_status"`
	ImageStatus    map[int]int    `json:"image_status"`
	DistinctFacts  int            `json:"distinct_facts"`
	DistinctImages int            `json:"distinct_images"`
	ImageTiers     map[string]int `json:"image_tiers"`
	FactP50        string         `json:"fact_p50"`
	FactP95        string         `json:"fact_p95"`
	ImageP50       string         `json:"image_p50"`
	ImageP95       string         `json:"image_p95"`
	Violations     []string       `json:"violations"`
}

type recorder struct {
	mu           sync.Mutex
	sum          summary
	facts        map[string]bool
	images       map[string]bool
	factLatency  []time.Duration
	imageLatency []time.Duration
}

func (r *recorder) violation(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sum.Violations = append(r.sum.Violations, fmt.Sprintf(format, args...))
}

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "Service base URL")
		concurrency = flag.Int("concurrency", 5, "Number of concurrent workers")
		requests    = flag.Int("requests", 50, "Number of fact+image rounds")
		lang        = flag.String("lang", "en", "lang parameter for /fact")
		timeoutSec  = flag.Int("timeout", 30, "Per-request timeout in seconds")
		outJSON     = flag.String("out", "", "Write JSON summary to this file (optional)")
		verbose     = flag.Bool("v", false, "Verbose per-request logging to stdout")
	)
	flag.Parse()

	client := &http.Client{
		Timeout: time.Duration(*timeoutSec) * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	rec := &recorder{
		sum: summary{
			Requests:    *requests,
			FactStatus:  map[int]int{},
			ImageStatus: map[int]int{},
			ImageTiers:  map[string]int{},
		},
		facts:  map[string]bool{},
		images: map[string]bool{},
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				checkFact(client, rec, *baseURL, *lang, idx, *verbose)
				checkImage(client, rec, *baseURL, idx, *verbose)
			}
		}()
	}

	go func() {
		for i := 0; i < *requests; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	wg.Wait()

	rec.sum.Duration = time.Since(start).String()
	rec.sum.DistinctFacts = len(rec.facts)
	rec.sum.DistinctImages = len(rec.images)
	rec.sum.FactP50, rec.sum.FactP95 = percentiles(rec.factLatency)
	rec.sum.ImageP50, rec.sum.ImageP95 = percentiles(rec.imageLatency)

	out, _ := json.MarshalIndent(rec.sum, "", "  ")
	fmt.Println(string(out))

	if *outJSON != "" {
		if err := os.WriteFile(*outJSON, out, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write summary: %v\n", err)
			os.Exit(1)
		}
	}

	if len(rec.sum.Violations) > 0 {
		os.Exit(1)
	}
}

func get(client *http.Client, target string) (*http.Response, []byte, time.Duration, error) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, 0, err
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, time.Since(start), err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	return resp, body, time.Since(start), err
}

func checkFact(client *http.Client, rec *recorder, baseURL, lang string, idx int, verbose bool) {
	resp, body, dur, err := get(client, baseURL+"/fact?lang="+lang)
	if err != nil {
		rec.violation("fact %d: %v", idx, err)
		return
	}

	var payload struct {
		Fact string `json:"fact"`
	}
	if resp.StatusCode != http.StatusOK {
		rec.violation("fact %d: status %d", idx, resp.StatusCode)
	} else if err := json.Unmarshal(body, &payload); err != nil || payload.Fact == "" {
		rec.violation("fact %d: unusable body %q", idx, body)
	}

	rec.mu.Lock()
	rec.sum.FactStatus[resp.StatusCode]++
	rec.facts[payload.Fact] = true
	rec.factLatency = append(rec.factLatency, dur)
	rec.mu.Unlock()

	if verbose {
		fmt.Printf("fact idx=%d status=%d dur=%v fact=%q\n", idx, resp.StatusCode, dur, payload.Fact)
	}
}

func checkImage(client *http.Client, rec *recorder, baseURL string, idx int, verbose bool) {
	target := fmt.Sprintf("%s/catimg?ts=%d", baseURL, time.Now().UnixNano())
	resp, body, dur, err := get(client, target)
	if err != nil {
		rec.violation("catimg %d: %v", idx, err)
		return
	}

	if !strings.Contains(resp.Header.Get("Cache-Control"), "no-store") ||
		resp.Header.Get("Pragma") != "no-cache" ||
		resp.Header.Get("Expires") != "0" {
		rec.violation("catimg %d: missing cache-disabling headers", idx)
	}

	contentType := resp.Header.Get("Content-Type")
	if len(body) > 0 && resp.StatusCode == http.StatusOK && !strings.HasPrefix(contentType, "image/") {
		rec.violation("catimg %d: body with content type %q", idx, contentType)
	}

	key := resp.Header.Get("Location")
	if len(body) > 0 && resp.StatusCode == http.StatusOK {
		sum := sha256.Sum256(body)
		key = hex.EncodeToString(sum[:])
	}

	rec.mu.Lock()
	rec.sum.ImageStatus[resp.StatusCode]++
	if key != "" {
		rec.images[key] = true
	}
	if tier := resp.Header.Get("X-Image-Tier"); tier != "" {
		rec.sum.ImageTiers[tier]++
	}
	rec.imageLatency = append(rec.imageLatency, dur)
	rec.mu.Unlock()

	if verbose {
		fmt.Printf("catimg idx=%d status=%d type=%s bytes=%d dur=%v\n", idx, resp.StatusCode, contentType, len(body), dur)
	}
}

func percentiles(durations []time.Duration) (string, string) {
	if len(durations) == 0 {
		return "", ""
	}

	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	at := func(p float64) time.Duration {
		idx := int(float64(len(sorted)) * p)
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}

	return at(0.50).String(), at(0.95).String()
}
