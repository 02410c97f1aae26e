package repo

import (
	"context"

	"github.com/DevRickLin/channel-mirror/internal/biz/domain"
)

// SourceChat is a resolved source channel
type SourceChat struct {
	ID    int64 // -100... form for channels
	Title string
}

// MessageHandler receives inbound messages from a source
type MessageHandler func(msg *domain.InboundMessage)

// SourceRepo delivers messages from the source platform
type SourceRepo interface {
	// ResolveChat looks up a source by @username, t.me link or numeric id
	ResolveChat(ctx context.Context, ref string) (SourceChat, error)

	// OnMessage sets the handler; it must be called before Start
	OnMessage(handler MessageHandler)

	// Start delivers messages until ctx is cancelled
	Start(ctx context.Context) error
}
