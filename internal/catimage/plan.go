package catimage

import (
	"github.com/angeloszaimis/cat-facts/internal/sampler"
)

// Plan builds the ordered list of sources for one request.
type Plan interface {
	Name() string
	Sources() []Source
}

// CatalogOptions configures the Commons category plan.
type CatalogOptions struct {
	Categories  []string
	API         Endpoint
	Image       ImageFetch
	Fallback    ImageFetch
	FallbackURL string
	ThumbWidth  int
	MemberLimit int
	Sampler     sampler.Sampler
}

type catalogPlan struct {
	opts CatalogOptions
}

// NewCatalogPlan returns a plan that tries the categories in a fresh random
// order on every request, then the fixed fallback picture.
func NewCatalogPlan(opts CatalogOptions) Plan {
	if opts.Sampler == nil {
		opts.Sampler = sampler.NewRandom()
	}
	if opts.Fallback.Client == nil {
		opts.Fallback = opts.Image
	}

	return &catalogPlan{opts: opts}
}

func (p *catalogPlan) Name() string {
	return "catalog"
}

func (p *catalogPlan) Sources() []Source {
	categories := sampler.Shuffled(p.opts.Sampler, p.opts.Categories)

	sources := make([]Source, 0, len(categories)+1)
	for _, category := range categories {
		sources = append(sources, &CategorySource{
			Category:    category,
			API:         p.opts.API,
			Image:       p.opts.Image,
			ThumbWidth:  p.opts.ThumbWidth,
			MemberLimit: p.opts.MemberLimit,
			Sampler:     p.opts.Sampler,
		})
	}

	if p.opts.FallbackURL != "" {
		sources = append(sources, &StaticSource{
			URL:   p.opts.FallbackURL,
			Image: p.opts.Fallback,
		})
	}

	return sources
}

type searchPlan struct {
	source *SearchSource
}

// NewSearchPlan returns a plan with the random search API as its only source.
func NewSearchPlan(api Endpoint, image ImageFetch) Plan {
	return &searchPlan{source: &SearchSource{API: api, Image: image}}
}

func (p *searchPlan) Name() string {
	return "search"
}

func (p *searchPlan) Sources() []Source {
	return []Source{p.source}
}
