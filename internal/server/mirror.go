package server

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/DevRickLin/channel-mirror/internal/biz/domain"
	"github.com/DevRickLin/channel-mirror/internal/biz/repo"
	"github.com/DevRickLin/channel-mirror/internal/data"
	"github.com/DevRickLin/channel-mirror/internal/infra/feishu"
)

const seenTTL = 10 * time.Minute

// SourceClient receives messages from the source platform, either a bot or
// a user session
type SourceClient interface {
	ResolveChat(ctx context.Context, ref string) (repo.SourceChat, error)
	OnMessage(handler repo.MessageHandler)
	Start(ctx context.Context) error
}

// ChatResolver looks up Telegram chats through the bot that posts to the
// target
type ChatResolver interface {
	ResolveChat(ref string) (*tgbotapi.Chat, error)
}

// Dispatcher processes inbound messages
type Dispatcher interface {
	Start(ctx context.Context)
	Stop()
	HandleMessage(ctx context.Context, msg *domain.InboundMessage)
}

// MirrorServer feeds messages from the monitored source chats into the
// dispatcher
type MirrorServer struct {
	client   SourceClient
	dispatch Dispatcher
	log      zerolog.Logger

	ctx     context.Context
	sources map[int64]string // chat id -> title

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time
}

// NewMirrorServer creates a new mirror server
func NewMirrorServer(client SourceClient, dispatch Dispatcher, log zerolog.Logger) *MirrorServer {
	return &MirrorServer{
		client:   client,
		dispatch: dispatch,
		log:      log.With().Str("component", "server").Logger(),
		ctx:      context.Background(),
		sources:  make(map[int64]string),
		seenMsgs: make(map[string]time.Time),
	}
}

// ResolveSources resolves the configured source chats. Chats that fail to
// resolve are logged and left out; it is an error if none resolve.
func (s *MirrorServer) ResolveSources(ctx context.Context, refs []string) error {
	for _, ref := range refs {
		chat, err := s.client.ResolveChat(ctx, ref)
		if err != nil {
			s.log.Error().Err(err).Str("source", ref).Msg("Failed to resolve source channel")
			continue
		}
		s.sources[chat.ID] = chat.Title
		s.log.Info().Str("source", ref).Int64("chat_id", chat.ID).Msg("Monitoring source channel")
	}

	if len(s.sources) == 0 {
		return fmt.Errorf("no source channel could be resolved")
	}
	return nil
}

// SourceCount returns the number of monitored chats
func (s *MirrorServer) SourceCount() int {
	return len(s.sources)
}

// Start starts the server and blocks until ctx is cancelled
func (s *MirrorServer) Start(ctx context.Context) error {
	s.ctx = ctx
	s.dispatch.Start(ctx)

	s.client.OnMessage(s.handleMessage)
	s.log.Info().Int("sources", len(s.sources)).Msg("Mirror is running")
	return s.client.Start(ctx)
}

// Stop stops the server
func (s *MirrorServer) Stop() {
	s.dispatch.Stop()
	s.log.Info().Msg("Mirror stopped")
}

// handleMessage runs on the source's delivery goroutine
func (s *MirrorServer) handleMessage(in *domain.InboundMessage) {
	title, ok := s.sources[in.ChatID]
	if !ok {
		return
	}

	key := strconv.FormatInt(in.ChatID, 10) + ":" + strconv.Itoa(in.ID)
	if s.seen(key) {
		s.log.Debug().Str("key", key).Msg("Duplicate message ignored")
		return
	}

	s.log.Debug().
		Str("source", title).
		Int("msg_id", in.ID).
		Str("group", in.GroupID).
		Bool("media", in.HasMedia()).
		Msg("Received message")

	s.dispatch.HandleMessage(s.ctx, in)
}

// seen marks key as seen and reports whether it already was; check and mark
// happen under one lock
func (s *MirrorServer) seen(key string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	if _, ok := s.seenMsgs[key]; ok {
		return true
	}

	now := time.Now()
	s.seenMsgs[key] = now

	// Clean up expired entries
	for k, t := range s.seenMsgs {
		if now.Sub(t) > seenTTL {
			delete(s.seenMsgs, k)
		}
	}
	return false
}

// ResolveTelegramTarget resolves the target channel on Telegram
func ResolveTelegramTarget(client ChatResolver, ref string) (repo.Target, error) {
	chat, err := client.ResolveChat(ref)
	if err != nil {
		return repo.Target{}, fmt.Errorf("resolve target channel: %w", err)
	}
	return repo.Target{ID: strconv.FormatInt(chat.ID, 10), Name: data.ChatTitle(chat, ref)}, nil
}

// ResolveFeishuTarget checks the bot can see the Feishu target chat
func ResolveFeishuTarget(ctx context.Context, client *feishu.Client, chatID string) (repo.Target, error) {
	info, err := client.GetChatInfo(ctx, chatID)
	if err != nil {
		return repo.Target{}, fmt.Errorf("resolve target chat: %w", err)
	}
	name := info.Name
	if name == "" {
		name = chatID
	}
	return repo.Target{ID: chatID, Name: name}, nil
}
