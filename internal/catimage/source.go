package catimage

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/angeloszaimis/cat-facts/internal/sampler"
	"github.com/angeloszaimis/cat-facts/internal/upstream"
)

const (
	SearchTier   = "search"
	FallbackTier = "fallback"

	categoryPrefix = "Category:"
	imageAccept    = "image/*"
)

// Source is one tier of the fallback chain.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*Candidate, error)
}

// Endpoint is an upstream reached through a Fetcher.
type Endpoint struct {
	Client  Fetcher
	URL     string
	Timeout time.Duration
}

// ImageFetch downloads the chosen picture.
type ImageFetch struct {
	Client  Fetcher
	Timeout time.Duration
}

func (f ImageFetch) fetch(ctx context.Context, tier, src string) (*Candidate, error) {
	resp, err := f.Client.Get(ctx, upstream.Request{
		URL:     src,
		Timeout: f.Timeout,
		Accept:  imageAccept,
	})
	if err != nil {
		return nil, err
	}

	return &Candidate{
		SourceURL:   src,
		ContentType: resp.ContentType,
		Body:        resp.Body,
		Tier:        tier,
	}, nil
}

// CategorySource picks a random file from a Wikimedia Commons category.
type CategorySource struct {
	Category    string
	API         Endpoint
	Image       ImageFetch
	ThumbWidth  int
	MemberLimit int
	Sampler     sampler.Sampler
}

type commonsResponse struct {
	Query struct {
		Pages map[string]commonsPage `json:"pages"`
	} `json:"query"`
}

type commonsPage struct {
	Title     string             `json:"title"`
	ImageInfo []commonsImageInfo `json:"imageinfo"`
}

type commonsImageInfo struct {
	URL      string `json:"url"`
	ThumbURL string `json:"thumburl"`
	Mime     string `json:"mime"`
}

type member struct {
	title string
	url   string
}

func (s *CategorySource) Name() string {
	return "category:" + s.Category
}

func (s *CategorySource) Fetch(ctx context.Context) (*Candidate, error) {
	members, err := s.members(ctx)
	if err != nil {
		return nil, err
	}

	chosen, ok := sampler.Pick(s.Sampler, members)
	if !ok {
		return nil, fmt.Errorf("%s: %w", s.Name(), ErrNoCandidates)
	}

	return s.Image.fetch(ctx, s.Name(), chosen.url)
}

// members lists the image files of the category ordered by title.
func (s *CategorySource) members(ctx context.Context) ([]member, error) {
	query := url.Values{
		"action":     {"query"},
		"format":     {"json"},
		"generator":  {"categorymembers"},
		"gcmtitle":   {categoryPrefix + strings.TrimPrefix(s.Category, categoryPrefix)},
		"gcmtype":    {"file"},
		"gcmlimit":   {strconv.Itoa(s.MemberLimit)},
		"prop":       {"imageinfo"},
		"iiprop":     {"url|mime"},
		"iiurlwidth": {strconv.Itoa(s.ThumbWidth)},
	}

	var resp commonsResponse
	if err := s.API.Client.GetJSON(ctx, upstream.Request{
		URL:     s.API.URL,
		Query:   query,
		Timeout: s.API.Timeout,
	}, &resp); err != nil {
		return nil, err
	}

	members := make([]member, 0, len(resp.Query.Pages))
	for _, page := range resp.Query.Pages {
		if len(page.ImageInfo) == 0 {
			continue
		}
		info := page.ImageInfo[0]
		if !strings.HasPrefix(strings.ToLower(info.Mime), "image/") {
			continue
		}

		src := info.ThumbURL
		if src == "" {
			src = info.URL
		}
		if src == "" {
			continue
		}

		members = append(members, member{title: page.Title, url: src})
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].title < members[j].title
	})

	return members, nil
}

// SearchSource takes the first result of a keyless random image search.
type SearchSource struct {
	API   Endpoint
	Image ImageFetch
}

type searchResult struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (s *SearchSource) Name() string {
	return SearchTier
}

func (s *SearchSource) Fetch(ctx context.Context) (*Candidate, error) {
	var results []searchResult
	if err := s.API.Client.GetJSON(ctx, upstream.Request{
		URL:     s.API.URL,
		Timeout: s.API.Timeout,
	}, &results); err != nil {
		return nil, err
	}

	if len(results) == 0 || results[0].URL == "" {
		return nil, fmt.Errorf("%s: %w", s.Name(), ErrNoCandidates)
	}

	return s.Image.fetch(ctx, s.Name(), results[0].URL)
}

// StaticSource always serves the same picture.
type StaticSource struct {
	URL   string
	Image ImageFetch
}

func (s *StaticSource) Name() string {
	return FallbackTier
}

func (s *StaticSource) Fetch(ctx context.Context) (*Candidate, error) {
	return s.Image.fetch(ctx, s.Name(), s.URL)
}
