package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DevRickLin/channel-mirror/internal/biz/domain"
	"github.com/DevRickLin/channel-mirror/internal/biz/repo"
	"github.com/DevRickLin/channel-mirror/internal/infra/feishu"
)

// Feishu open platform error codes
const (
	feishuCodeFrequencyLimit = 99991400
	feishuCodeMessageLimit   = 230020
	feishuCodeBotNotInChat   = 230002
	feishuCodeNoPermission   = 99991672
)

// feishuAPI is the part of the Feishu client the repository uses
type feishuAPI interface {
	SendText(ctx context.Context, chatID, text string) error
	SendImage(ctx context.Context, chatID, imageKey string) error
	SendFile(ctx context.Context, chatID, fileKey string) error
	UploadImage(ctx context.Context, data []byte) (string, error)
	UploadFile(ctx context.Context, fileName string, data []byte) (string, error)
}

// FeishuRepo implements the chat repository with a Feishu group as target.
// Feishu has no albums or captions: items are posted one by one and the
// caption follows as a text message.
type FeishuRepo struct {
	client feishuAPI
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client feishuAPI) *FeishuRepo {
	return &FeishuRepo{client: client}
}

// SendText sends a text message
func (r *FeishuRepo) SendText(ctx context.Context, target repo.Target, text string) error {
	return mapFeishuError(r.client.SendText(ctx, target.ID, text))
}

// SendMedia uploads and posts one item, then the caption
func (r *FeishuRepo) SendMedia(ctx context.Context, target repo.Target, media domain.MediaPayload, caption string) error {
	if err := r.sendItem(ctx, target, media); err != nil {
		return err
	}
	return r.sendCaption(ctx, target, caption)
}

// SendMediaGroup uploads and posts every item, then the caption. A rate
// limit part way carries a resume that starts at the item that failed.
func (r *FeishuRepo) SendMediaGroup(ctx context.Context, target repo.Target, media []domain.MediaPayload, caption string) error {
	for i, m := range media {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.sendItem(ctx, target, m); err != nil {
			rest := media[i:]
			return repo.WithResume(err, func(ctx context.Context) error {
				return r.SendMediaGroup(ctx, target, rest, caption)
			})
		}
	}
	return r.sendCaption(ctx, target, caption)
}

// sendCaption posts the caption once the media is out; retrying it never
// reposts media
func (r *FeishuRepo) sendCaption(ctx context.Context, target repo.Target, caption string) error {
	if caption == "" {
		return nil
	}
	err := r.SendText(ctx, target, caption)
	return repo.WithResume(err, func(ctx context.Context) error {
		return r.sendCaption(ctx, target, caption)
	})
}

func (r *FeishuRepo) sendItem(ctx context.Context, target repo.Target, media domain.MediaPayload) error {
	if media.Ref.Kind == domain.MediaKindPhoto {
		key, err := r.client.UploadImage(ctx, media.Data)
		if err != nil {
			return mapFeishuError(err)
		}
		return mapFeishuError(r.client.SendImage(ctx, target.ID, key))
	}

	name := media.Ref.FileName
	if name == "" {
		name = string(media.Ref.Kind)
	}
	key, err := r.client.UploadFile(ctx, name, media.Data)
	if err != nil {
		return mapFeishuError(err)
	}
	return mapFeishuError(r.client.SendFile(ctx, target.ID, key))
}

// mapFeishuError converts Feishu API errors to repository errors
func mapFeishuError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *feishu.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("feishu send failed: %w", err)
	}

	switch apiErr.Code {
	case feishuCodeFrequencyLimit, feishuCodeMessageLimit:
		return &repo.RateLimitedError{Wait: time.Second}
	case feishuCodeBotNotInChat, feishuCodeNoPermission:
		return fmt.Errorf("%w: %s", repo.ErrWriteForbidden, apiErr.Msg)
	}
	return fmt.Errorf("feishu send failed: %w", err)
}
