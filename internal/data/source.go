package data

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/DevRickLin/channel-mirror/internal/biz/domain"
	"github.com/DevRickLin/channel-mirror/internal/biz/repo"
	"github.com/DevRickLin/channel-mirror/internal/infra/mtproto"
	"github.com/DevRickLin/channel-mirror/internal/infra/telegram"
)

// botSourceAPI is the part of the Bot API client the bot source uses
type botSourceAPI interface {
	ResolveChat(ref string) (*tgbotapi.Chat, error)
	IsAdmin(chatID int64) (bool, error)
	OnMessage(handler telegram.MessageHandler)
	Start(ctx context.Context) error
}

// BotSource reads channel posts through the Bot API. A bot only receives
// posts from channels it administers.
type BotSource struct {
	client botSourceAPI
	log    zerolog.Logger
}

// NewBotSource creates a new Bot API source
func NewBotSource(client botSourceAPI, log zerolog.Logger) *BotSource {
	return &BotSource{client: client, log: log.With().Str("component", "source").Logger()}
}

// ResolveChat resolves a source chat and warns when the bot cannot receive
// its posts
func (s *BotSource) ResolveChat(ctx context.Context, ref string) (repo.SourceChat, error) {
	chat, err := s.client.ResolveChat(ref)
	if err != nil {
		return repo.SourceChat{}, err
	}

	if chat.IsChannel() {
		admin, err := s.client.IsAdmin(chat.ID)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("source", ref).Msg("Could not check bot membership of source channel")
		case !admin:
			s.log.Error().
				Str("source", ref).
				Int64("chat_id", chat.ID).
				Msg("Bot is not an administrator of this channel and will receive no posts; add it as admin or use SOURCE_MODE=user")
		}
	}

	return repo.SourceChat{ID: chat.ID, Title: ChatTitle(chat, ref)}, nil
}

// OnMessage sets the handler; Bot API messages are converted before delivery
func (s *BotSource) OnMessage(handler repo.MessageHandler) {
	s.client.OnMessage(func(msg *tgbotapi.Message) {
		handler(ConvertMessage(msg))
	})
}

// Start polls until ctx is cancelled
func (s *BotSource) Start(ctx context.Context) error {
	return s.client.Start(ctx)
}

// userSourceAPI is the part of the user-session client the user source uses
type userSourceAPI interface {
	ResolveUsername(ctx context.Context, username string) (mtproto.Channel, error)
	ResolveChannelID(ctx context.Context, id int64) (mtproto.Channel, error)
	OnMessage(handler mtproto.MessageHandler)
	Start(ctx context.Context) error
	Download(ctx context.Context, location tg.InputFileLocationClass) ([]byte, error)
}

// UserSource reads channel posts through a user session, so any channel the
// account has joined can be mirrored. It is also the media source for those
// posts.
type UserSource struct {
	client userSourceAPI
}

// NewUserSource creates a new user-session source
func NewUserSource(client userSourceAPI) *UserSource {
	return &UserSource{client: client}
}

// ResolveChat resolves a channel by @username, t.me link or -100... id
func (s *UserSource) ResolveChat(ctx context.Context, ref string) (repo.SourceChat, error) {
	config, err := telegram.ParseChatRef(ref)
	if err != nil {
		return repo.SourceChat{}, err
	}

	var ch mtproto.Channel
	if config.ChatID != 0 {
		ch, err = s.client.ResolveChannelID(ctx, config.ChatID)
	} else {
		ch, err = s.client.ResolveUsername(ctx, strings.TrimPrefix(config.SuperGroupUsername, "@"))
	}
	if err != nil {
		return repo.SourceChat{}, err
	}

	title := ch.Title
	if title == "" && ch.Username != "" {
		title = "@" + ch.Username
	}
	if title == "" {
		title = ref
	}
	return repo.SourceChat{ID: ch.ID, Title: title}, nil
}

// OnMessage sets the handler; MTProto messages are converted before delivery
func (s *UserSource) OnMessage(handler repo.MessageHandler) {
	s.client.OnMessage(func(msg *tg.Message) {
		handler(ConvertChannelMessage(msg))
	})
}

// Start delivers updates until ctx is cancelled
func (s *UserSource) Start(ctx context.Context) error {
	return s.client.Start(ctx)
}

// DownloadMedia fetches the media of a message received over MTProto; nil
// without error when the message carries nothing downloadable
func (s *UserSource) DownloadMedia(ctx context.Context, msg *domain.InboundMessage) ([]byte, error) {
	if msg.Media == nil {
		return nil, nil
	}
	location, ok := msg.Media.Handle.(tg.InputFileLocationClass)
	if !ok || location == nil {
		return nil, nil
	}
	return s.client.Download(ctx, location)
}

// ConvertChannelMessage converts an MTProto channel message into an inbound
// message
func ConvertChannelMessage(msg *tg.Message) *domain.InboundMessage {
	in := &domain.InboundMessage{
		ID:   msg.ID,
		Text: msg.Message,
	}
	if peer, ok := msg.PeerID.(*tg.PeerChannel); ok {
		in.ChatID = mtproto.ChannelID(peer.ChannelID)
	}
	if groupID, ok := msg.GetGroupedID(); ok {
		in.GroupID = strconv.FormatInt(groupID, 10)
	}
	if _, ok := msg.GetFwdFrom(); ok {
		in.IsForwarded = true
	}

	switch media := msg.Media.(type) {
	case nil:
	case *tg.MessageMediaPhoto:
		photo, ok := media.Photo.(*tg.Photo)
		if !ok {
			in.Media = &domain.MediaRef{Kind: domain.MediaKindOther}
			break
		}
		in.Media = &domain.MediaRef{
			Kind: domain.MediaKindPhoto,
			Handle: &tg.InputPhotoFileLocation{
				ID:            photo.ID,
				AccessHash:    photo.AccessHash,
				FileReference: photo.FileReference,
				ThumbSize:     largestPhotoSize(photo.Sizes),
			},
		}
	case *tg.MessageMediaDocument:
		doc, ok := media.Document.(*tg.Document)
		if !ok {
			in.Media = &domain.MediaRef{Kind: domain.MediaKindOther}
			break
		}
		in.Media = convertDocument(doc)
	case *tg.MessageMediaWebPage:
		in.Media = &domain.MediaRef{Kind: domain.MediaKindWebPage}
	default:
		in.Media = &domain.MediaRef{Kind: domain.MediaKindOther}
	}

	return in
}

func convertDocument(doc *tg.Document) *domain.MediaRef {
	ref := &domain.MediaRef{
		Kind:     domain.MediaKindDocument,
		MimeType: doc.MimeType,
		Handle: &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		},
	}

	var animated, video, audio, sticker bool
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeFilename:
			ref.FileName = a.FileName
		case *tg.DocumentAttributeAnimated:
			animated = true
		case *tg.DocumentAttributeVideo:
			video = true
		case *tg.DocumentAttributeAudio:
			audio = true
			if a.Voice && ref.FileName == "" {
				ref.FileName = "voice.ogg"
			}
		case *tg.DocumentAttributeSticker:
			sticker = true
		}
	}

	switch {
	case sticker:
		return &domain.MediaRef{Kind: domain.MediaKindOther}
	case animated:
		ref.Kind = domain.MediaKindAnimation
	case video:
		ref.Kind = domain.MediaKindVideo
	case audio:
		ref.Kind = domain.MediaKindAudio
	}
	return ref
}

// largestPhotoSize returns the type letter of the biggest stored size
func largestPhotoSize(sizes []tg.PhotoSizeClass) string {
	best, bestBytes := "", -1
	for _, size := range sizes {
		switch s := size.(type) {
		case *tg.PhotoSize:
			if s.Size > bestBytes {
				best, bestBytes = s.Type, s.Size
			}
		case *tg.PhotoSizeProgressive:
			if n := len(s.Sizes); n > 0 && s.Sizes[n-1] > bestBytes {
				best, bestBytes = s.Type, s.Sizes[n-1]
			}
		}
	}
	return best
}

// ChatTitle returns a display name for a Bot API chat
func ChatTitle(chat *tgbotapi.Chat, ref string) string {
	if chat.Title != "" {
		return chat.Title
	}
	if chat.UserName != "" {
		return "@" + chat.UserName
	}
	return ref
}
