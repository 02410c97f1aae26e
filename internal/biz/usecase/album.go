package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/DevRickLin/channel-mirror/internal/biz/domain"
)

// AlbumConfig contains album aggregation configuration
type AlbumConfig struct {
	SettleDelay time.Duration // quiet period after the last item before an album settles
}

// DefaultAlbumConfig returns default album configuration
func DefaultAlbumConfig() AlbumConfig {
	return AlbumConfig{
		SettleDelay: 1 * time.Second,
	}
}

// Timer is a cancellable pending callback
type Timer interface {
	Stop() bool
}

// Scheduler runs a callback after a delay
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SettleHandler receives albums once they settle
type SettleHandler func(album *domain.Album)

type albumBuffer struct {
	messages   []*domain.InboundMessage
	timer      Timer
	generation uint64
}

// AlbumUsecase buffers grouped messages until no new item has arrived for
// the settle delay, then hands the whole album to the settle handler.
//
// Append and reschedule happen under one lock. A timer that fires after a
// newer item rescheduled it sees a stale generation and does nothing. Items
// arriving after an album was drained start a new album under the same key.
// A settle is counted in flight before the lock is released, so Wait after
// Stop covers every handler that can still run.
type AlbumUsecase struct {
	config    AlbumConfig
	scheduler Scheduler
	onSettle  SettleHandler
	log       zerolog.Logger

	mu      sync.Mutex
	buffers  map[domain.AlbumKey]*albumBuffer
	closed   bool
	inflight sync.WaitGroup
}

// NewAlbumUsecase creates a new album aggregator
func NewAlbumUsecase(config AlbumConfig, log zerolog.Logger) *AlbumUsecase {
	if config.SettleDelay <= 0 {
		config.SettleDelay = DefaultAlbumConfig().SettleDelay
	}
	return &AlbumUsecase{
		config:    config,
		scheduler: realScheduler{},
		log:       log.With().Str("component", "album").Logger(),
		buffers:   make(map[domain.AlbumKey]*albumBuffer),
	}
}

// SetSettleHandler sets the callback invoked for settled albums
func (uc *AlbumUsecase) SetSettleHandler(handler SettleHandler) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.onSettle = handler
}

// SetScheduler replaces the timer source
func (uc *AlbumUsecase) SetScheduler(s Scheduler) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.scheduler = s
}

// Add buffers a grouped message and restarts the album's settle timer
func (uc *AlbumUsecase) Add(msg *domain.InboundMessage) {
	key := domain.KeyOf(msg)

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.closed {
		uc.log.Debug().Str("album", key.String()).Int("msg_id", msg.ID).Msg("Aggregator stopped, dropping album item")
		return
	}

	buf, ok := uc.buffers[key]
	if !ok {
		buf = &albumBuffer{}
		uc.buffers[key] = buf
		uc.log.Debug().Str("album", key.String()).Msg("Collecting album")
	}

	buf.messages = append(buf.messages, msg)
	if buf.timer != nil {
		buf.timer.Stop()
	}
	buf.generation++
	gen := buf.generation
	buf.timer = uc.scheduler.AfterFunc(uc.config.SettleDelay, func() {
		uc.settle(key, buf, gen)
	})

	uc.log.Debug().
		Str("album", key.String()).
		Int("msg_id", msg.ID).
		Int("buffered", len(buf.messages)).
		Msg("Album item buffered")
}

// Pending returns the number of albums still collecting
func (uc *AlbumUsecase) Pending() int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return len(uc.buffers)
}

// Stop cancels every pending timer; albums still collecting are dropped.
// Handlers already running are not waited for, see Wait.
func (uc *AlbumUsecase) Stop() {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.closed = true
	for key, buf := range uc.buffers {
		if buf.timer != nil {
			buf.timer.Stop()
		}
		uc.log.Warn().
			Str("album", key.String()).
			Int("items", len(buf.messages)).
			Msg("Dropping unsettled album on shutdown")
	}
	uc.buffers = make(map[domain.AlbumKey]*albumBuffer)
}

// Wait blocks until every settle handler that started before Stop returns
func (uc *AlbumUsecase) Wait() {
	uc.inflight.Wait()
}

func (uc *AlbumUsecase) settle(key domain.AlbumKey, buf *albumBuffer, gen uint64) {
	uc.mu.Lock()
	current, ok := uc.buffers[key]
	if uc.closed || !ok || current != buf || buf.generation != gen {
		uc.mu.Unlock()
		return
	}
	delete(uc.buffers, key)
	messages := buf.messages
	handler := uc.onSettle
	uc.inflight.Add(1)
	uc.mu.Unlock()
	defer uc.inflight.Done()

	album := domain.NewAlbum(key, uuid.NewString(), messages)
	uc.log.Info().
		Str("album", key.String()).
		Str("batch_id", album.BatchID).
		Ints("msg_ids", album.IDs()).
		Msg("Album settled")

	if handler != nil {
		handler(album)
	}
}
