// Package mtproto is a Telegram user-session client. Unlike a bot, a user
// account receives posts from every channel it has joined.
package mtproto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
)

// channelIDOffset turns a raw channel id into the -100... form the Bot API
// and the rest of the pipeline use
const channelIDOffset = 1000000000000

// Config contains the user-session settings
type Config struct {
	AppID       int
	AppHash     string
	Phone       string // prompted for when empty
	Password    string // two-step verification password, if enabled
	SessionFile string
}

// Prompt asks the operator for a value during the first login
type Prompt func(ctx context.Context, label string) (string, error)

// MessageHandler is the callback for new channel messages
type MessageHandler func(msg *tg.Message)

// Channel is a resolved channel or supergroup
type Channel struct {
	ID       int64 // -100... form
	Title    string
	Username string
}

// Client wraps a gotd session. Connect logs in and keeps the session open;
// updates are only delivered once Start is called.
type Client struct {
	config Config
	prompt Prompt
	log    zerolog.Logger

	client *telegram.Client
	gaps   *updates.Manager
	api    *tg.Client
	peers  *peers.Manager

	onMessage MessageHandler

	started   chan struct{}
	startOnce sync.Once
	done      chan error
}

// NewClient creates a new user-session client
func NewClient(config Config, prompt Prompt, log zerolog.Logger) *Client {
	c := &Client{
		config:  config,
		prompt:  prompt,
		log:     log.With().Str("component", "mtproto").Logger(),
		started: make(chan struct{}),
		done:    make(chan error, 1),
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewChannelMessage(c.handleChannelMessage)
	c.gaps = updates.New(updates.Config{Handler: dispatcher})

	c.client = telegram.NewClient(config.AppID, config.AppHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: config.SessionFile},
		UpdateHandler:  c.gaps,
	})
	return c
}

// Connect opens the session and logs in, prompting for the phone number and
// login code on first use. The session stays open until ctx is cancelled.
func (c *Client) Connect(ctx context.Context) error {
	ready := make(chan error, 1)

	go func() {
		err := c.client.Run(ctx, func(ctx context.Context) error {
			if err := c.authorize(ctx); err != nil {
				return err
			}
			self, err := c.client.Self(ctx)
			if err != nil {
				return fmt.Errorf("get self: %w", err)
			}

			c.api = c.client.API()
			c.peers = peers.Options{}.Build(c.api)
			c.log.Info().Str("username", self.Username).Int64("user_id", self.ID).Msg("Logged in")
			ready <- nil

			select {
			case <-c.started:
			case <-ctx.Done():
				return ctx.Err()
			}
			return c.gaps.Run(ctx, c.api, self.ID, updates.AuthOptions{
				OnStart: func(ctx context.Context) {
					c.log.Info().Msg("Listening for channel updates")
				},
			})
		})
		if err == nil {
			err = errors.New("session closed")
		}
		select {
		case ready <- err:
		default:
		}
		c.done <- err
	}()

	select {
	case err := <-ready:
		if err != nil {
			return fmt.Errorf("connect user session: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start begins delivering updates and blocks until the session ends or ctx
// is cancelled
func (c *Client) Start(ctx context.Context) error {
	if c.api == nil {
		return fmt.Errorf("client not connected")
	}
	c.startOnce.Do(func() { close(c.started) })

	select {
	case err := <-c.done:
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		return nil
	}
}

// ResolveUsername looks up a public channel by username
func (c *Client) ResolveUsername(ctx context.Context, username string) (Channel, error) {
	if c.peers == nil {
		return Channel{}, fmt.Errorf("client not connected")
	}
	p, err := c.peers.ResolveDomain(ctx, username)
	if err != nil {
		return Channel{}, fmt.Errorf("resolve @%s: %w", username, err)
	}
	ch, ok := p.(peers.Channel)
	if !ok {
		return Channel{}, fmt.Errorf("@%s is not a channel", username)
	}
	return toChannel(ch), nil
}

// ResolveChannelID looks up a channel by its -100... id. The account must
// have seen the channel before, typically by being a member.
func (c *Client) ResolveChannelID(ctx context.Context, id int64) (Channel, error) {
	if c.peers == nil {
		return Channel{}, fmt.Errorf("client not connected")
	}
	raw, ok := RawChannelID(id)
	if !ok {
		return Channel{}, fmt.Errorf("%d is not a channel id", id)
	}
	ch, err := c.peers.ResolveChannelID(ctx, raw)
	if err != nil {
		return Channel{}, fmt.Errorf("resolve %d: %w", id, err)
	}
	return toChannel(ch), nil
}

// Download fetches a file into memory
func (c *Client) Download(ctx context.Context, location tg.InputFileLocationClass) ([]byte, error) {
	if c.api == nil {
		return nil, fmt.Errorf("client not connected")
	}
	var buf bytes.Buffer
	if _, err := downloader.NewDownloader().Download(c.api, location).Stream(ctx, &buf); err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	c.log.Debug().Int("bytes", buf.Len()).Msg("Downloaded file")
	return buf.Bytes(), nil
}

// ChannelID converts a raw channel id to the -100... form
func ChannelID(raw int64) int64 {
	return -(channelIDOffset + raw)
}

// RawChannelID converts a -100... id back to the raw channel id
func RawChannelID(id int64) (int64, bool) {
	if id >= -channelIDOffset {
		return 0, false
	}
	return -id - channelIDOffset, true
}

func (c *Client) authorize(ctx context.Context) error {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("auth status: %w", err)
	}
	if status.Authorized {
		return nil
	}
	if c.prompt == nil {
		return fmt.Errorf("login required, run interactively once to create %s", c.config.SessionFile)
	}

	phone := c.config.Phone
	if phone == "" {
		if phone, err = c.prompt(ctx, "Phone number (e.g. +8613812345678)"); err != nil {
			return err
		}
	}

	code := auth.CodeAuthenticatorFunc(func(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
		return c.prompt(ctx, "Login code")
	})
	flow := auth.NewFlow(auth.Constant(phone, c.config.Password, code), auth.SendCodeOptions{})
	if err := flow.Run(ctx, c.client.Auth()); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

// handleChannelMessage runs on the update manager's goroutines
func (c *Client) handleChannelMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
	msg, ok := u.Message.(*tg.Message)
	if !ok || c.onMessage == nil {
		return nil
	}
	c.onMessage(msg)
	return nil
}

func toChannel(ch peers.Channel) Channel {
	username, _ := ch.Username()
	return Channel{
		ID:       ChannelID(ch.ID()),
		Title:    ch.VisibleName(),
		Username: username,
	}
}
