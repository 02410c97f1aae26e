package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/DevRickLin/channel-mirror/internal/biz/domain"
	"github.com/DevRickLin/channel-mirror/internal/biz/repo"
	"github.com/DevRickLin/channel-mirror/internal/biz/usecase"
)

// Mock implementations

type sentCall struct {
	kind    string // text, media, group
	text    string
	caption string
	items   int
}

type mockChatRepo struct {
	mu    sync.Mutex
	calls []sentCall
	// errs are returned by successive sends, then nil
	errs []error
}

func (m *mockChatRepo) next(call sentCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	if len(m.errs) == 0 {
		return nil
	}
	err := m.errs[0]
	m.errs = m.errs[1:]
	return err
}

func (m *mockChatRepo) SendText(ctx context.Context, target repo.Target, text string) error {
	return m.next(sentCall{kind: "text", text: text})
}

func (m *mockChatRepo) SendMedia(ctx context.Context, target repo.Target, media domain.MediaPayload, caption string) error {
	return m.next(sentCall{kind: "media", caption: caption, items: 1})
}

func (m *mockChatRepo) SendMediaGroup(ctx context.Context, target repo.Target, media []domain.MediaPayload, caption string) error {
	return m.next(sentCall{kind: "group", caption: caption, items: len(media)})
}

func (m *mockChatRepo) sent() []sentCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentCall, len(m.calls))
	copy(out, m.calls)
	return out
}

type mockMediaSource struct {
	failing map[int]bool
}

func (m *mockMediaSource) DownloadMedia(ctx context.Context, msg *domain.InboundMessage) ([]byte, error) {
	if m.failing[msg.ID] {
		return nil, fmt.Errorf("download %d failed", msg.ID)
	}
	return []byte("data"), nil
}

func newTestSender(chat *mockChatRepo, media *mockMediaSource) (*SenderService, *[]time.Duration) {
	filterUC := usecase.NewFilterUsecase(usecase.FilterConfig{SkipFileExtensions: []string{".rar", ".zip"}}, nil, zerolog.Nop())
	s := NewSenderService(chat, media, filterUC, repo.Target{ID: "-100", Name: "target"}, zerolog.Nop())

	var waits []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return s, &waits
}

func photoMsg(id int) *domain.InboundMessage {
	return &domain.InboundMessage{ID: id, ChatID: -1, Media: &domain.MediaRef{Kind: domain.MediaKindPhoto}}
}

func docMsg(id int, name string) *domain.InboundMessage {
	return &domain.InboundMessage{ID: id, ChatID: -1, Media: &domain.MediaRef{Kind: domain.MediaKindDocument, FileName: name}}
}

func TestSenderService_TextOnly(t *testing.T) {
	chat := &mockChatRepo{}
	s, _ := newTestSender(chat, &mockMediaSource{})

	if err := s.SendSingle(context.Background(), &domain.InboundMessage{ID: 1}, "hello"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	calls := chat.sent()
	if len(calls) != 1 || calls[0].kind != "text" || calls[0].text != "hello" {
		t.Errorf("Expected one text send, got %+v", calls)
	}
}

func TestSenderService_EmptyTextIsNoop(t *testing.T) {
	chat := &mockChatRepo{}
	s, _ := newTestSender(chat, &mockMediaSource{})

	s.SendSingle(context.Background(), &domain.InboundMessage{ID: 1}, "")

	if len(chat.sent()) != 0 {
		t.Errorf("Expected nothing sent, got %+v", chat.sent())
	}
}

func TestSenderService_WebPageSendsText(t *testing.T) {
	chat := &mockChatRepo{}
	s, _ := newTestSender(chat, &mockMediaSource{})

	msg := &domain.InboundMessage{ID: 1, Media: &domain.MediaRef{Kind: domain.MediaKindWebPage}}
	s.SendSingle(context.Background(), msg, "see https://example.com")

	calls := chat.sent()
	if len(calls) != 1 || calls[0].kind != "text" {
		t.Errorf("Expected text send for web page preview, got %+v", calls)
	}
}

func TestSenderService_SkipsExcludedDocument(t *testing.T) {
	chat := &mockChatRepo{}
	s, _ := newTestSender(chat, &mockMediaSource{})

	s.SendSingle(context.Background(), docMsg(1, "report.RAR"), "caption")

	if len(chat.sent()) != 0 {
		t.Errorf("Expected excluded document to be dropped, got %+v", chat.sent())
	}
}

func TestSenderService_MediaWithCaption(t *testing.T) {
	chat := &mockChatRepo{}
	s, _ := newTestSender(chat, &mockMediaSource{})

	s.SendSingle(context.Background(), photoMsg(1), "caption")

	calls := chat.sent()
	if len(calls) != 1 || calls[0].kind != "media" || calls[0].caption != "caption" {
		t.Errorf("Expected media send with caption, got %+v", calls)
	}
}

func TestSenderService_DownloadFailureFallsBackToText(t *testing.T) {
	chat := &mockChatRepo{}
	s, _ := newTestSender(chat, &mockMediaSource{failing: map[int]bool{1: true}})

	s.SendSingle(context.Background(), photoMsg(1), "caption")

	calls := chat.sent()
	if len(calls) != 1 || calls[0].kind != "text" || calls[0].text != "caption" {
		t.Errorf("Expected caption sent as text, got %+v", calls)
	}
}

func TestSenderService_RetriesOnRateLimit(t *testing.T) {
	chat := &mockChatRepo{errs: []error{
		&repo.RateLimitedError{Wait: 3 * time.Second},
		fmt.Errorf("wrapped: %w", &repo.RateLimitedError{Wait: time.Second}),
	}}
	s, waits := newTestSender(chat, &mockMediaSource{})

	if err := s.SendSingle(context.Background(), photoMsg(1), "caption"); err != nil {
		t.Fatalf("Expected eventual success, got %v", err)
	}

	calls := chat.sent()
	if len(calls) != 3 {
		t.Fatalf("Expected 3 attempts, got %d", len(calls))
	}
	for _, c := range calls {
		if c.kind != "media" || c.caption != "caption" {
			t.Errorf("Expected identical retries, got %+v", c)
		}
	}
	if len(*waits) != 2 || (*waits)[0] != 3*time.Second || (*waits)[1] != time.Second {
		t.Errorf("Expected waits [3s 1s], got %v", *waits)
	}
}

func TestSenderService_PermanentErrorNotRetried(t *testing.T) {
	chat := &mockChatRepo{errs: []error{repo.ErrWriteForbidden}}
	s, waits := newTestSender(chat, &mockMediaSource{})

	err := s.SendSingle(context.Background(), &domain.InboundMessage{ID: 1}, "hello")

	if !errors.Is(err, repo.ErrWriteForbidden) {
		t.Errorf("Expected ErrWriteForbidden, got %v", err)
	}
	if len(chat.sent()) != 1 || len(*waits) != 0 {
		t.Errorf("Expected a single attempt without waiting, got %d calls", len(chat.sent()))
	}
}

func TestSenderService_RetryAbortsOnCancel(t *testing.T) {
	chat := &mockChatRepo{errs: []error{&repo.RateLimitedError{Wait: time.Hour}}}
	s, _ := newTestSender(chat, &mockMediaSource{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.SendSingle(ctx, &domain.InboundMessage{ID: 1}, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSenderService_GroupExcludesSkippedAndFailed(t *testing.T) {
	chat := &mockChatRepo{}
	s, _ := newTestSender(chat, &mockMediaSource{failing: map[int]bool{3: true}})

	msgs := []*domain.InboundMessage{
		photoMsg(1),
		docMsg(2, "archive.zip"),
		photoMsg(3),
		photoMsg(4),
	}
	s.SendGroup(context.Background(), msgs, "caption")

	calls := chat.sent()
	if len(calls) != 1 || calls[0].kind != "group" {
		t.Fatalf("Expected one group send, got %+v", calls)
	}
	if calls[0].items != 2 || calls[0].caption != "caption" {
		t.Errorf("Expected 2 items with caption, got %+v", calls[0])
	}
}

func TestSenderService_GroupNothingLeftSendsCaption(t *testing.T) {
	chat := &mockChatRepo{}
	s, _ := newTestSender(chat, &mockMediaSource{})

	s.SendGroup(context.Background(), []*domain.InboundMessage{docMsg(1, "a.rar"), docMsg(2, "b.zip")}, "caption")

	calls := chat.sent()
	if len(calls) != 1 || calls[0].kind != "text" || calls[0].text != "caption" {
		t.Errorf("Expected caption as text, got %+v", calls)
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSenderService_RateLimitResumesPartialSend(t *testing.T) {
	resumed := 0
	chat := &mockChatRepo{errs: []error{&repo.RateLimitedError{
		Wait: 2 * time.Second,
		Resume: func(ctx context.Context) error {
			resumed++
			return nil
		},
	}}}
	s, waits := newTestSender(chat, &mockMediaSource{})

	if err := s.SendSingle(context.Background(), &domain.InboundMessage{ID: 1}, "long text"); err != nil {
		t.Fatalf("Expected eventual success, got %v", err)
	}

	if len(chat.sent()) != 1 {
		t.Errorf("Expected the original send not to be repeated, got %+v", chat.sent())
	}
	if resumed != 1 {
		t.Errorf("Expected resume to run once, ran %d times", resumed)
	}
	if len(*waits) != 1 || (*waits)[0] != 2*time.Second {
		t.Errorf("Expected one 2s wait, got %v", *waits)
	}
}
