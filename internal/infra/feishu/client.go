package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/rs/zerolog"
)

// APIError is a non-success response from the Feishu open platform
type APIError struct {
	Op   string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s error (%d): %s", e.Op, e.Code, e.Msg)
}

// ChatInfo represents information about a chat
type ChatInfo struct {
	ChatID string `json:"chat_id"`
	Name   string `json:"name"`
}

// Client is the Feishu API client, used as a post target
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	log       zerolog.Logger
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string, log zerolog.Logger) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		log:       log.With().Str("component", "feishu").Logger(),
	}
}

// GetChatInfo gets chat information; used to check the bot can see the chat
func (c *Client) GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	req := larkim.NewGetChatReqBuilder().
		ChatId(chatID).
		Build()

	resp, err := c.larkCli.Im.Chat.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get chat info failed: %w", err)
	}
	if !resp.Success() {
		return nil, &APIError{Op: "get chat info", Code: resp.Code, Msg: resp.Msg}
	}

	info := &ChatInfo{ChatID: chatID}
	if resp.Data != nil && resp.Data.Name != nil {
		info.Name = *resp.Data.Name
	}

	c.log.Debug().Str("chat_id", chatID).Str("name", info.Name).Msg("Got chat info")
	return info, nil
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	return c.createMessage(ctx, chatID, larkim.MsgTypeText, string(contentJSON))
}

// SendImage sends an uploaded image to a chat
func (c *Client) SendImage(ctx context.Context, chatID, imageKey string) error {
	content := map[string]string{"image_key": imageKey}
	contentJSON, _ := json.Marshal(content)

	return c.createMessage(ctx, chatID, "image", string(contentJSON))
}

// SendFile sends an uploaded file to a chat
func (c *Client) SendFile(ctx context.Context, chatID, fileKey string) error {
	content := map[string]string{"file_key": fileKey}
	contentJSON, _ := json.Marshal(content)

	return c.createMessage(ctx, chatID, "file", string(contentJSON))
}

// UploadImage uploads image bytes for sending and returns the image key
func (c *Client) UploadImage(ctx context.Context, data []byte) (string, error) {
	req := larkim.NewCreateImageReqBuilder().
		Body(larkim.NewCreateImageReqBodyBuilder().
			ImageType("message").
			Image(bytes.NewReader(data)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Image.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("upload image failed: %w", err)
	}
	if !resp.Success() {
		return "", &APIError{Op: "upload image", Code: resp.Code, Msg: resp.Msg}
	}
	if resp.Data == nil || resp.Data.ImageKey == nil {
		return "", fmt.Errorf("upload image: empty image key")
	}

	c.log.Debug().Int("bytes", len(data)).Msg("Uploaded image")
	return *resp.Data.ImageKey, nil
}

// UploadFile uploads file bytes for sending and returns the file key
func (c *Client) UploadFile(ctx context.Context, fileName string, data []byte) (string, error) {
	req := larkim.NewCreateFileReqBuilder().
		Body(larkim.NewCreateFileReqBodyBuilder().
			FileType("stream").
			FileName(fileName).
			File(bytes.NewReader(data)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.File.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("upload file failed: %w", err)
	}
	if !resp.Success() {
		return "", &APIError{Op: "upload file", Code: resp.Code, Msg: resp.Msg}
	}
	if resp.Data == nil || resp.Data.FileKey == nil {
		return "", fmt.Errorf("upload file: empty file key")
	}

	c.log.Debug().Str("file", fileName).Int("bytes", len(data)).Msg("Uploaded file")
	return *resp.Data.FileKey, nil
}

func (c *Client) createMessage(ctx context.Context, chatID, msgType, content string) error {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send %s message failed: %w", msgType, err)
	}
	if !resp.Success() {
		return &APIError{Op: "send " + msgType + " message", Code: resp.Code, Msg: resp.Msg}
	}

	c.log.Debug().Str("chat_id", chatID).Str("msg_type", msgType).Msg("Message sent")
	return nil
}
