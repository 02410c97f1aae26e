package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DevRickLin/channel-mirror/internal/biz/domain"
)

// ErrWriteForbidden is returned when the target refuses posts from this account
var ErrWriteForbidden = errors.New("write to target forbidden")

// RateLimitedError is returned when the chat service asks the caller to wait
// before repeating the request
type RateLimitedError struct {
	Wait time.Duration

	// Resume continues a send that was cut off after some parts were
	// delivered. When set, callers run it instead of repeating the request.
	Resume func(ctx context.Context) error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.Wait)
}

// WithResume attaches resume to err when it is a *RateLimitedError
func WithResume(err error, resume func(ctx context.Context) error) error {
	var rateLimited *RateLimitedError
	if errors.As(err, &rateLimited) {
		rateLimited.Resume = resume
	}
	return err
}

// Target identifies the destination chat on the target platform
type Target struct {
	ID   string
	Name string
}

// ChatRepo is the chat service interface used by the pipeline.
// Implementations return *RateLimitedError or ErrWriteForbidden where the
// service reports them; any other failure is a generic send failure.
type ChatRepo interface {
	// SendText sends a text-only message
	SendText(ctx context.Context, target Target, text string) error

	// SendMedia sends one media item with an optional caption
	SendMedia(ctx context.Context, target Target, media domain.MediaPayload, caption string) error

	// SendMediaGroup sends media items as one grouped post with a single caption
	SendMediaGroup(ctx context.Context, target Target, media []domain.MediaPayload, caption string) error
}

// MediaSource downloads the media carried by inbound messages.
// A nil slice with a nil error means the message has no downloadable media.
type MediaSource interface {
	DownloadMedia(ctx context.Context, msg *domain.InboundMessage) ([]byte, error)
}
