package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Media kinds accepted by the send helpers
const (
	KindPhoto     = "photo"
	KindVideo     = "video"
	KindAudio     = "audio"
	KindAnimation = "animation"
	KindDocument  = "document"
)

// MaxGroupSize is the largest media group the Bot API accepts
const MaxGroupSize = 10

// MediaItem is an upload for one of the send helpers
type MediaItem struct {
	Kind     string
	FileName string
	Data     []byte
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *tgbotapi.Message)

// Client is the Telegram Bot API client
type Client struct {
	token      string
	endpoint   string
	httpClient *http.Client
	bot        *tgbotapi.BotAPI
	onMessage  MessageHandler
	log        zerolog.Logger
}

// NewClient creates a new Telegram client. An empty endpoint uses the public
// Bot API.
func NewClient(token, endpoint string, log zerolog.Logger) *Client {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	log = log.With().Str("component", "telegram").Logger()
	_ = tgbotapi.SetLogger(botLogger{log: log})

	return &Client{
		token:      token,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		log:        log,
	}
}

// Connect authorizes the bot token
func (c *Client) Connect() error {
	bot, err := tgbotapi.NewBotAPIWithClient(c.token, c.endpoint, c.httpClient)
	if err != nil {
		return fmt.Errorf("authorize bot: %w", err)
	}
	c.bot = bot
	c.log.Info().Str("username", bot.Self.UserName).Msg("Authorized")
	return nil
}

// Username returns the bot's username once connected
func (c *Client) Username() string {
	if c.bot == nil {
		return ""
	}
	return c.bot.Self.UserName
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start long-polls for channel posts and messages until ctx is cancelled.
// The handler runs on the polling goroutine.
func (c *Client) Start(ctx context.Context) error {
	if c.bot == nil {
		return fmt.Errorf("client not connected")
	}

	config := tgbotapi.NewUpdate(0)
	config.Timeout = 30
	config.AllowedUpdates = []string{"channel_post", "message"}

	updates := c.bot.GetUpdatesChan(config)
	c.log.Info().Msg("Polling for updates")

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			c.log.Info().Msg("Stopped polling")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := update.ChannelPost
			if msg == nil {
				msg = update.Message
			}
			if msg == nil || msg.Chat == nil {
				continue
			}
			if c.onMessage != nil {
				c.onMessage(msg)
			}
		}
	}
}

// ResolveChat looks up a chat by @username, t.me link or numeric id
func (c *Client) ResolveChat(ref string) (*tgbotapi.Chat, error) {
	config, err := ParseChatRef(ref)
	if err != nil {
		return nil, err
	}

	chat, err := c.bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: config})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	return &chat, nil
}

// IsAdmin reports whether the bot administers the chat. Bots only receive
// channel posts from channels they administer.
func (c *Client) IsAdmin(chatID int64) (bool, error) {
	if c.bot == nil {
		return false, fmt.Errorf("client not connected")
	}
	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: c.bot.Self.ID},
	})
	if err != nil {
		return false, fmt.Errorf("get chat member: %w", err)
	}
	return member.IsAdministrator() || member.IsCreator(), nil
}

// ParseChatRef converts a configured chat reference to a lookup config
func ParseChatRef(ref string) (tgbotapi.ChatConfig, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return tgbotapi.ChatConfig{}, fmt.Errorf("empty chat reference")
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return tgbotapi.ChatConfig{ChatID: id}, nil
	}

	name := ref
	for _, prefix := range []string{"https://", "http://"} {
		name = strings.TrimPrefix(name, prefix)
	}
	for _, host := range []string{"t.me/", "telegram.me/", "www.t.me/"} {
		if strings.HasPrefix(name, host) {
			name = strings.TrimPrefix(name, host)
			break
		}
	}
	name = strings.TrimPrefix(name, "s/")
	name = strings.TrimSuffix(name, "/")
	if i := strings.IndexAny(name, "/?"); i >= 0 {
		name = name[:i]
	}

	if strings.HasPrefix(name, "+") || name == "joinchat" {
		return tgbotapi.ChatConfig{}, fmt.Errorf("invite links cannot be resolved by a bot: %s", ref)
	}

	name = strings.TrimPrefix(name, "@")
	if name == "" {
		return tgbotapi.ChatConfig{}, fmt.Errorf("invalid chat reference: %s", ref)
	}
	return tgbotapi.ChatConfig{SuperGroupUsername: "@" + name}, nil
}

// SendText sends a plain text message
func (c *Client) SendText(chatID int64, text string) error {
	_, err := c.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendMedia uploads one media item with an optional caption
func (c *Client) SendMedia(chatID int64, item MediaItem, caption string) error {
	file := tgbotapi.FileBytes{Name: fileName(item), Bytes: item.Data}

	var config tgbotapi.Chattable
	switch item.Kind {
	case KindPhoto:
		photo := tgbotapi.NewPhoto(chatID, file)
		photo.Caption = caption
		config = photo
	case KindVideo:
		video := tgbotapi.NewVideo(chatID, file)
		video.Caption = caption
		config = video
	case KindAudio:
		audio := tgbotapi.NewAudio(chatID, file)
		audio.Caption = caption
		config = audio
	case KindAnimation:
		animation := tgbotapi.NewAnimation(chatID, file)
		animation.Caption = caption
		config = animation
	default:
		doc := tgbotapi.NewDocument(chatID, file)
		doc.Caption = caption
		config = doc
	}

	_, err := c.bot.Send(config)
	return err
}

// SendMediaGroup uploads up to MaxGroupSize items as one album. The caption
// is attached to the first item. Items must share a group-compatible kind.
func (c *Client) SendMediaGroup(chatID int64, items []MediaItem, caption string) error {
	if len(items) == 0 {
		return nil
	}
	if len(items) > MaxGroupSize {
		return fmt.Errorf("media group of %d items exceeds %d", len(items), MaxGroupSize)
	}

	media := make([]interface{}, 0, len(items))
	for i, item := range items {
		file := tgbotapi.FileBytes{Name: fileName(item), Bytes: item.Data}
		itemCaption := ""
		if i == 0 {
			itemCaption = caption
		}

		switch item.Kind {
		case KindPhoto:
			m := tgbotapi.NewInputMediaPhoto(file)
			m.Caption = itemCaption
			media = append(media, m)
		case KindVideo:
			m := tgbotapi.NewInputMediaVideo(file)
			m.Caption = itemCaption
			media = append(media, m)
		case KindAudio:
			m := tgbotapi.NewInputMediaAudio(file)
			m.Caption = itemCaption
			media = append(media, m)
		default:
			m := tgbotapi.NewInputMediaDocument(file)
			m.Caption = itemCaption
			media = append(media, m)
		}
	}

	_, err := c.bot.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media))
	return err
}

// DownloadFile fetches a file's bytes by file id
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	c.log.Debug().Str("file_id", fileID).Int("bytes", len(data)).Msg("Downloaded file")
	return data, nil
}

func fileName(item MediaItem) string {
	if item.FileName != "" {
		return item.FileName
	}
	switch item.Kind {
	case KindPhoto:
		return "photo.jpg"
	case KindVideo:
		return "video.mp4"
	case KindAnimation:
		return "animation.mp4"
	case KindAudio:
		return "audio.mp3"
	}
	return "file"
}

// botLogger routes the SDK's log output into zerolog
type botLogger struct {
	log zerolog.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.log.Debug().Msg(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.log.Debug().Msg(strings.TrimSuffix(fmt.Sprintf(format, v...), "\n"))
}
