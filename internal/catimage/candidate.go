package catimage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/angeloszaimis/cat-facts/internal/upstream"
)

var (
	// ErrNoCandidates is returned by a source whose listing came back empty.
	ErrNoCandidates = errors.New("no image candidates")
	// ErrInvalidImage is returned for an empty body or a non-image type.
	ErrInvalidImage = errors.New("invalid image")
	// ErrNoImage is returned by the resolver once every source has failed.
	ErrNoImage = errors.New("no image available")
)

const octetStream = "application/octet-stream"

// Candidate is an image fetched by one source.
type Candidate struct {
	SourceURL   string
	ContentType string
	Body        []byte
	Tier        string
}

// Fetcher is the part of the upstream client used by sources.
type Fetcher interface {
	Get(ctx context.Context, req upstream.Request) (*upstream.Response, error)
	GetJSON(ctx context.Context, req upstream.Request, v any) error
}

// Validate checks that c carries image bytes. A missing or generic content
// type is replaced by the type sniffed from the body.
func Validate(c *Candidate) error {
	if c == nil || len(c.Body) == 0 {
		return fmt.Errorf("%w: empty body", ErrInvalidImage)
	}

	mediaType := baseMediaType(c.ContentType)
	if mediaType == "" || mediaType == octetStream {
		c.ContentType = mimetype.Detect(c.Body).String()
		mediaType = baseMediaType(c.ContentType)
	}

	if !strings.HasPrefix(mediaType, "image/") {
		return fmt.Errorf("%w: content type %q", ErrInvalidImage, c.ContentType)
	}

	return nil
}

func baseMediaType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}
