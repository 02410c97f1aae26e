package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/DevRickLin/channel-mirror/internal/biz/domain"
	"github.com/DevRickLin/channel-mirror/internal/biz/usecase"
)

// DispatchService routes inbound messages through filter, transform and send.
// Grouped messages go through the album aggregator first.
type DispatchService struct {
	filterUC    *usecase.FilterUsecase
	transformUC *usecase.TransformUsecase
	albumUC     *usecase.AlbumUsecase
	sender      *SenderService
	log         zerolog.Logger

	// Settled albums are sent under this context
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatchService creates a new dispatch service and registers itself as
// the album settle handler
func NewDispatchService(
	filterUC *usecase.FilterUsecase,
	transformUC *usecase.TransformUsecase,
	albumUC *usecase.AlbumUsecase,
	sender *SenderService,
	log zerolog.Logger,
) *DispatchService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &DispatchService{
		filterUC:    filterUC,
		transformUC: transformUC,
		albumUC:     albumUC,
		sender:      sender,
		log:         log.With().Str("component", "dispatch").Logger(),
		ctx:         ctx,
		cancel:      cancel,
	}
	albumUC.SetSettleHandler(s.handleAlbum)
	return s
}

// Start binds album sends to the given context
func (s *DispatchService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)
}

// Stop drops albums still collecting, aborts in-flight album sends and waits
// for them to return
func (s *DispatchService) Stop() {
	s.albumUC.Stop()
	s.mu.RLock()
	s.cancel()
	s.mu.RUnlock()
	s.albumUC.Wait()
}

// HandleMessage processes one inbound message. It never returns an error;
// every outcome is logged.
func (s *DispatchService) HandleMessage(ctx context.Context, msg *domain.InboundMessage) {
	if msg.HasGroup() {
		s.albumUC.Add(msg)
		return
	}

	log := s.log.With().Int64("chat_id", msg.ChatID).Int("msg_id", msg.ID).Logger()

	decision := s.filterUC.Check(ctx, msg, msg.Text)
	if !decision.ShouldCopy {
		log.Debug().Str("reason", decision.Reason).Msg("Skipping message")
		return
	}

	caption := s.transformUC.Transform(msg.Text)
	log.Info().Bool("media", msg.HasMedia()).Msg("Copying message")

	_ = s.sender.SendSingle(ctx, msg, caption)
}

// handleAlbum runs on the settle timer goroutine
func (s *DispatchService) handleAlbum(album *domain.Album) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	log := s.log.With().
		Str("album", album.Key.String()).
		Str("batch_id", album.BatchID).
		Logger()

	rep := album.Representative()
	if rep == nil {
		return
	}

	decision := s.filterUC.Check(ctx, rep, rep.Text)
	if !decision.ShouldCopy {
		log.Debug().
			Str("reason", decision.Reason).
			Ints("msg_ids", album.IDs()).
			Msg("Skipping album")
		return
	}

	caption := s.transformUC.Transform(rep.Text)
	log.Info().Ints("msg_ids", album.IDs()).Msg("Copying album")

	_ = s.sender.SendGroup(ctx, album.Messages, caption)
}
