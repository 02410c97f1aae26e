package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/DevRickLin/channel-mirror/internal/biz/domain"
	"github.com/DevRickLin/channel-mirror/internal/biz/repo"
	"github.com/DevRickLin/channel-mirror/internal/infra/telegram"
)

// Bot API message limits, counted in characters
const (
	maxTextLength    = 4096
	maxCaptionLength = 1024
)

// telegramAPI is the part of the Telegram client the repository uses
type telegramAPI interface {
	SendText(chatID int64, text string) error
	SendMedia(chatID int64, item telegram.MediaItem, caption string) error
	SendMediaGroup(chatID int64, items []telegram.MediaItem, caption string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// TelegramRepo implements the chat repository and media source over the Bot API
type TelegramRepo struct {
	client telegramAPI
}

// NewTelegramRepo creates a new Telegram repository
func NewTelegramRepo(client telegramAPI) *TelegramRepo {
	return &TelegramRepo{client: client}
}

// SendText sends text, split into chunks the Bot API accepts
func (r *TelegramRepo) SendText(ctx context.Context, target repo.Target, text string) error {
	chatID, err := parseChatID(target)
	if err != nil {
		return err
	}
	return r.sendChunks(ctx, chatID, splitText(text, maxTextLength))
}

// SendMedia uploads one item; a caption over the limit follows as text
func (r *TelegramRepo) SendMedia(ctx context.Context, target repo.Target, media domain.MediaPayload, caption string) error {
	chatID, err := parseChatID(target)
	if err != nil {
		return err
	}

	inline, overflow := fitCaption(caption)
	if err := r.client.SendMedia(chatID, toMediaItem(media), inline); err != nil {
		return mapTelegramError(err)
	}
	return r.sendChunks(ctx, chatID, splitText(overflow, maxTextLength))
}

// SendMediaGroup sends items as albums. Items are split into groups the Bot
// API accepts together (photos with videos, audio, documents) and into
// chunks of at most ten; the caption goes on the first item sent.
func (r *TelegramRepo) SendMediaGroup(ctx context.Context, target repo.Target, media []domain.MediaPayload, caption string) error {
	chatID, err := parseChatID(target)
	if err != nil {
		return err
	}

	inline, overflow := fitCaption(caption)
	return r.sendGroupChunks(ctx, chatID, groupChunks(media), inline, overflow)
}

// sendChunks sends text chunks in order. A rate limit part way carries a
// resume that starts at the chunk that failed.
func (r *TelegramRepo) sendChunks(ctx context.Context, chatID int64, chunks []string) error {
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.client.SendText(chatID, chunk); err != nil {
			rest := chunks[i:]
			return repo.WithResume(mapTelegramError(err), func(ctx context.Context) error {
				return r.sendChunks(ctx, chatID, rest)
			})
		}
	}
	return nil
}

// sendGroupChunks sends media chunks in order with caption on the first one,
// then the overflow text
func (r *TelegramRepo) sendGroupChunks(ctx context.Context, chatID int64, chunks [][]telegram.MediaItem, caption, overflow string) error {
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunkCaption := ""
		if i == 0 {
			chunkCaption = caption
		}

		var err error
		if len(chunk) == 1 {
			err = r.client.SendMedia(chatID, chunk[0], chunkCaption)
		} else {
			err = r.client.SendMediaGroup(chatID, chunk, chunkCaption)
		}
		if err != nil {
			rest := chunks[i:]
			return repo.WithResume(mapTelegramError(err), func(ctx context.Context) error {
				return r.sendGroupChunks(ctx, chatID, rest, chunkCaption, overflow)
			})
		}
	}
	return r.sendChunks(ctx, chatID, splitText(overflow, maxTextLength))
}

// DownloadMedia fetches the media of a message; nil without error when the
// message carries nothing downloadable
func (r *TelegramRepo) DownloadMedia(ctx context.Context, msg *domain.InboundMessage) ([]byte, error) {
	if msg.Media == nil {
		return nil, nil
	}
	fileID, ok := msg.Media.Handle.(string)
	if !ok || fileID == "" {
		return nil, nil
	}
	return r.client.DownloadFile(ctx, fileID)
}

// ConvertMessage converts a Bot API message into an inbound message
func ConvertMessage(msg *tgbotapi.Message) *domain.InboundMessage {
	in := &domain.InboundMessage{
		ID:          msg.MessageID,
		GroupID:     msg.MediaGroupID,
		Text:        msg.Text,
		IsForwarded: isForwarded(msg),
	}
	if msg.Chat != nil {
		in.ChatID = msg.Chat.ID
	}
	if in.Text == "" {
		in.Text = msg.Caption
	}

	switch {
	case len(msg.Photo) > 0:
		// Sizes are ascending; the last one is full size
		largest := msg.Photo[len(msg.Photo)-1]
		in.Media = &domain.MediaRef{Kind: domain.MediaKindPhoto, Handle: largest.FileID}
	case msg.Animation != nil:
		in.Media = &domain.MediaRef{
			Kind:     domain.MediaKindAnimation,
			FileName: msg.Animation.FileName,
			MimeType: msg.Animation.MimeType,
			Handle:   msg.Animation.FileID,
		}
	case msg.Video != nil:
		in.Media = &domain.MediaRef{
			Kind:     domain.MediaKindVideo,
			FileName: msg.Video.FileName,
			MimeType: msg.Video.MimeType,
			Handle:   msg.Video.FileID,
		}
	case msg.Audio != nil:
		in.Media = &domain.MediaRef{
			Kind:     domain.MediaKindAudio,
			FileName: msg.Audio.FileName,
			MimeType: msg.Audio.MimeType,
			Handle:   msg.Audio.FileID,
		}
	case msg.Voice != nil:
		in.Media = &domain.MediaRef{
			Kind:     domain.MediaKindAudio,
			FileName: "voice.ogg",
			MimeType: msg.Voice.MimeType,
			Handle:   msg.Voice.FileID,
		}
	case msg.Document != nil:
		in.Media = &domain.MediaRef{
			Kind:     domain.MediaKindDocument,
			FileName: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
			Handle:   msg.Document.FileID,
		}
	case msg.Sticker != nil, msg.Poll != nil, msg.Location != nil, msg.Contact != nil:
		in.Media = &domain.MediaRef{Kind: domain.MediaKindOther}
	}

	return in
}

func isForwarded(msg *tgbotapi.Message) bool {
	return msg.ForwardFrom != nil ||
		msg.ForwardFromChat != nil ||
		msg.ForwardSenderName != "" ||
		msg.ForwardDate != 0
}

// mapTelegramError converts Bot API errors to repository errors
func mapTelegramError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("telegram send failed: %w", err)
	}

	switch {
	case apiErr.RetryAfter > 0:
		return &repo.RateLimitedError{Wait: time.Duration(apiErr.RetryAfter) * time.Second}
	case apiErr.Code == 429:
		return &repo.RateLimitedError{Wait: time.Second}
	case apiErr.Code == 403,
		apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Message), "not enough rights"):
		return fmt.Errorf("%w: %s", repo.ErrWriteForbidden, apiErr.Message)
	}
	return fmt.Errorf("telegram send failed (%d): %w", apiErr.Code, err)
}

func parseChatID(target repo.Target) (int64, error) {
	id, err := strconv.ParseInt(target.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", target.ID, err)
	}
	return id, nil
}

func toMediaItem(media domain.MediaPayload) telegram.MediaItem {
	kind := telegram.KindDocument
	switch media.Ref.Kind {
	case domain.MediaKindPhoto:
		kind = telegram.KindPhoto
	case domain.MediaKindVideo:
		kind = telegram.KindVideo
	case domain.MediaKindAudio:
		kind = telegram.KindAudio
	case domain.MediaKindAnimation:
		kind = telegram.KindAnimation
	}
	return telegram.MediaItem{Kind: kind, FileName: media.Ref.FileName, Data: media.Data}
}

// groupChunks splits items into album-compatible chunks, keeping the order in
// which each category first appears
func groupChunks(media []domain.MediaPayload) [][]telegram.MediaItem {
	var order []string
	buckets := make(map[string][]telegram.MediaItem)

	for _, m := range media {
		item := toMediaItem(m)
		category := telegram.KindDocument
		switch item.Kind {
		case telegram.KindPhoto, telegram.KindVideo:
			category = "visual"
		case telegram.KindAudio:
			category = telegram.KindAudio
		}
		if _, ok := buckets[category]; !ok {
			order = append(order, category)
		}
		buckets[category] = append(buckets[category], item)
	}

	var chunks [][]telegram.MediaItem
	for _, category := range order {
		items := buckets[category]
		for len(items) > 0 {
			n := telegram.MaxGroupSize
			if len(items) < n {
				n = len(items)
			}
			chunks = append(chunks, items[:n])
			items = items[n:]
		}
	}
	return chunks
}

// fitCaption returns the caption to attach and any text that must follow as
// a separate message
func fitCaption(caption string) (inline, overflow string) {
	if utf8.RuneCountInString(caption) <= maxCaptionLength {
		return caption, ""
	}
	return "", caption
}

// splitText splits text into chunks of at most limit characters, preferring
// line breaks
func splitText(text string, limit int) []string {
	if text == "" {
		return nil
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
