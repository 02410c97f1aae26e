package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/DevRickLin/channel-mirror/internal/biz/domain"
	"github.com/DevRickLin/channel-mirror/internal/biz/repo"
	"github.com/DevRickLin/channel-mirror/internal/biz/usecase"
)

// SenderService performs the send step against the target chat.
// Rate-limited sends are retried after the requested wait until they succeed
// or fail with another error; any other failure abandons the send. A send
// cut off part way resumes after the parts already delivered.
type SenderService struct {
	chatRepo repo.ChatRepo
	media    repo.MediaSource
	filterUC *usecase.FilterUsecase
	target   repo.Target
	log      zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewSenderService creates a new sender service
func NewSenderService(
	chatRepo repo.ChatRepo,
	media repo.MediaSource,
	filterUC *usecase.FilterUsecase,
	target repo.Target,
	log zerolog.Logger,
) *SenderService {
	return &SenderService{
		chatRepo: chatRepo,
		media:    media,
		filterUC: filterUC,
		target:   target,
		log:      log.With().Str("component", "sender").Str("target", target.Name).Logger(),
		sleep:    sleepContext,
	}
}

// SendSingle mirrors one message with the given caption
func (s *SenderService) SendSingle(ctx context.Context, msg *domain.InboundMessage, caption string) error {
	log := s.log.With().Int64("chat_id", msg.ChatID).Int("msg_id", msg.ID).Logger()

	if !msg.HasMedia() || msg.Media.Kind == domain.MediaKindWebPage {
		return s.sendText(ctx, log, caption)
	}

	if msg.IsDocument() && s.filterUC.ShouldSkipFile(msg.Media.FileName) {
		log.Info().Str("file", msg.Media.FileName).Msg("Skipping file with excluded extension")
		return nil
	}

	data, err := s.media.DownloadMedia(ctx, msg)
	if err != nil || data == nil {
		log.Warn().Err(err).Msg("Media unavailable, falling back to text")
		return s.sendText(ctx, log, caption)
	}

	payload := domain.MediaPayload{Ref: *msg.Media, Data: data}
	err = s.withRetry(ctx, log, func(ctx context.Context) error {
		return s.chatRepo.SendMedia(ctx, s.target, payload, caption)
	})
	if err != nil {
		s.logFailure(log, err)
		return err
	}

	log.Info().Str("kind", string(msg.Media.Kind)).Msg("Copied message")
	return nil
}

// SendGroup mirrors an album as one grouped post carrying the caption.
// Skipped documents and failed downloads are left out.
func (s *SenderService) SendGroup(ctx context.Context, msgs []*domain.InboundMessage, caption string) error {
	log := s.log.With().Int("items", len(msgs)).Logger()
	if len(msgs) > 0 {
		log = log.With().Int64("chat_id", msgs[0].ChatID).Logger()
	}

	payloads := make([]domain.MediaPayload, 0, len(msgs))
	for _, msg := range msgs {
		if !msg.HasMedia() || msg.Media.Kind == domain.MediaKindWebPage {
			continue
		}
		if msg.IsDocument() && s.filterUC.ShouldSkipFile(msg.Media.FileName) {
			log.Info().Int("msg_id", msg.ID).Str("file", msg.Media.FileName).Msg("Skipping file with excluded extension")
			continue
		}

		data, err := s.media.DownloadMedia(ctx, msg)
		if err != nil || data == nil {
			log.Warn().Err(err).Int("msg_id", msg.ID).Msg("Failed to download album item, leaving it out")
			continue
		}
		payloads = append(payloads, domain.MediaPayload{Ref: *msg.Media, Data: data})
	}

	if len(payloads) == 0 {
		return s.sendText(ctx, log, caption)
	}

	err := s.withRetry(ctx, log, func(ctx context.Context) error {
		return s.chatRepo.SendMediaGroup(ctx, s.target, payloads, caption)
	})
	if err != nil {
		s.logFailure(log, err)
		return err
	}

	log.Info().Int("sent", len(payloads)).Msg("Copied album")
	return nil
}

func (s *SenderService) sendText(ctx context.Context, log zerolog.Logger, text string) error {
	if text == "" {
		log.Debug().Msg("Nothing to send")
		return nil
	}

	err := s.withRetry(ctx, log, func(ctx context.Context) error {
		return s.chatRepo.SendText(ctx, s.target, text)
	})
	if err != nil {
		s.logFailure(log, err)
		return err
	}

	log.Info().Msg("Copied text message")
	return nil
}

func (s *SenderService) withRetry(ctx context.Context, log zerolog.Logger, send func(ctx context.Context) error) error {
	for {
		err := send(ctx)
		if err == nil {
			return nil
		}

		var rateLimited *repo.RateLimitedError
		if !errors.As(err, &rateLimited) {
			return err
		}

		log.Warn().
			Dur("wait", rateLimited.Wait).
			Bool("partial", rateLimited.Resume != nil).
			Msg("Rate limited, waiting before retry")
		if err := s.sleep(ctx, rateLimited.Wait); err != nil {
			return err
		}
		if rateLimited.Resume != nil {
			send = rateLimited.Resume
		}
	}
}

func (s *SenderService) logFailure(log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, repo.ErrWriteForbidden):
		log.Error().Err(err).Msg("Cannot post to target, check the bot's permissions")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Msg("Send aborted")
	default:
		log.Error().Err(err).Msg("Failed to send message")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
