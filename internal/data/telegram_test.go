package data

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/DevRickLin/channel-mirror/internal/biz/domain"
	"github.com/DevRickLin/channel-mirror/internal/biz/repo"
	"github.com/DevRickLin/channel-mirror/internal/infra/telegram"
)

type tgCall struct {
	method  string
	chatID  int64
	kinds   []string
	caption string
}

type mockTelegramAPI struct {
	calls []tgCall
	err   error
	// errAt fails the call with that index once
	errAt map[int]error
	files map[string][]byte
}

func (m *mockTelegramAPI) record(call tgCall) error {
	m.calls = append(m.calls, call)
	if err, ok := m.errAt[len(m.calls)-1]; ok {
		delete(m.errAt, len(m.calls)-1)
		return err
	}
	return m.err
}

func (m *mockTelegramAPI) SendText(chatID int64, text string) error {
	return m.record(tgCall{method: "text", chatID: chatID, caption: text})
}

func (m *mockTelegramAPI) SendMedia(chatID int64, item telegram.MediaItem, caption string) error {
	return m.record(tgCall{method: "media", chatID: chatID, kinds: []string{item.Kind}, caption: caption})
}

func (m *mockTelegramAPI) SendMediaGroup(chatID int64, items []telegram.MediaItem, caption string) error {
	var kinds []string
	for _, it := range items {
		kinds = append(kinds, it.Kind)
	}
	return m.record(tgCall{method: "group", chatID: chatID, kinds: kinds, caption: caption})
}

func (m *mockTelegramAPI) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	return m.files[fileID], nil
}

var testTarget = repo.Target{ID: "-1001", Name: "mirror"}

func payload(kind domain.MediaKind) domain.MediaPayload {
	return domain.MediaPayload{Ref: domain.MediaRef{Kind: kind}, Data: []byte("x")}
}

func TestTelegramRepo_SendText(t *testing.T) {
	api := &mockTelegramAPI{}
	r := NewTelegramRepo(api)

	if err := r.SendText(context.Background(), testTarget, "hello"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(api.calls) != 1 || api.calls[0].chatID != -1001 || api.calls[0].caption != "hello" {
		t.Errorf("Unexpected calls %+v", api.calls)
	}
}

func TestTelegramRepo_SendTextSplitsLongText(t *testing.T) {
	api := &mockTelegramAPI{}
	r := NewTelegramRepo(api)

	text := strings.Repeat("字", maxTextLength+10)
	r.SendText(context.Background(), testTarget, text)

	if len(api.calls) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(api.calls))
	}
	if got := len([]rune(api.calls[0].caption)); got != maxTextLength {
		t.Errorf("Expected first chunk of %d characters, got %d", maxTextLength, got)
	}
}

func TestTelegramRepo_InvalidTarget(t *testing.T) {
	r := NewTelegramRepo(&mockTelegramAPI{})

	if err := r.SendText(context.Background(), repo.Target{ID: "@name"}, "x"); err == nil {
		t.Error("Expected error for unresolved target id")
	}
}

func TestTelegramRepo_LongCaptionFollowsAsText(t *testing.T) {
	api := &mockTelegramAPI{}
	r := NewTelegramRepo(api)

	caption := strings.Repeat("a", maxCaptionLength+1)
	r.SendMedia(context.Background(), testTarget, payload(domain.MediaKindPhoto), caption)

	if len(api.calls) != 2 {
		t.Fatalf("Expected media then text, got %+v", api.calls)
	}
	if api.calls[0].method != "media" || api.calls[0].caption != "" {
		t.Errorf("Expected media without caption, got %+v", api.calls[0])
	}
	if api.calls[1].method != "text" || api.calls[1].caption != caption {
		t.Errorf("Expected caption as text, got %+v", api.calls[1])
	}
}

func TestTelegramRepo_SendMediaGroupChunks(t *testing.T) {
	api := &mockTelegramAPI{}
	r := NewTelegramRepo(api)

	var media []domain.MediaPayload
	for i := 0; i < 12; i++ {
		media = append(media, payload(domain.MediaKindPhoto))
	}
	media = append(media, payload(domain.MediaKindDocument))

	if err := r.SendMediaGroup(context.Background(), testTarget, media, "cap"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(api.calls) != 3 {
		t.Fatalf("Expected 3 sends, got %+v", api.calls)
	}
	if api.calls[0].method != "group" || len(api.calls[0].kinds) != 10 || api.calls[0].caption != "cap" {
		t.Errorf("Expected first group of 10 with caption, got %+v", api.calls[0])
	}
	if api.calls[1].method != "group" || len(api.calls[1].kinds) != 2 || api.calls[1].caption != "" {
		t.Errorf("Expected second group of 2 without caption, got %+v", api.calls[1])
	}
	if api.calls[2].method != "media" || api.calls[2].kinds[0] != telegram.KindDocument {
		t.Errorf("Expected lone document sent alone, got %+v", api.calls[2])
	}
}

func TestTelegramRepo_SendMediaGroupMixedVisual(t *testing.T) {
	api := &mockTelegramAPI{}
	r := NewTelegramRepo(api)

	media := []domain.MediaPayload{payload(domain.MediaKindPhoto), payload(domain.MediaKindVideo)}
	r.SendMediaGroup(context.Background(), testTarget, media, "cap")

	if len(api.calls) != 1 || api.calls[0].method != "group" {
		t.Fatalf("Expected photos and videos in one group, got %+v", api.calls)
	}
}

func TestTelegramRepo_DownloadMedia(t *testing.T) {
	api := &mockTelegramAPI{files: map[string][]byte{"f1": []byte("bytes")}}
	r := NewTelegramRepo(api)

	data, err := r.DownloadMedia(context.Background(), &domain.InboundMessage{
		Media: &domain.MediaRef{Kind: domain.MediaKindPhoto, Handle: "f1"},
	})
	if err != nil || string(data) != "bytes" {
		t.Errorf("Expected file bytes, got %q, %v", data, err)
	}

	data, err = r.DownloadMedia(context.Background(), &domain.InboundMessage{
		Media: &domain.MediaRef{Kind: domain.MediaKindOther},
	})
	if data != nil || err != nil {
		t.Errorf("Expected nothing for media without handle, got %q, %v", data, err)
	}
}

func TestMapTelegramError(t *testing.T) {
	t.Run("retry after", func(t *testing.T) {
		err := mapTelegramError(&tgbotapi.Error{Code: 429, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7}})
		var rl *repo.RateLimitedError
		if !errors.As(err, &rl) || rl.Wait != 7*time.Second {
			t.Errorf("Expected 7s rate limit, got %v", err)
		}
	})

	t.Run("forbidden", func(t *testing.T) {
		err := mapTelegramError(&tgbotapi.Error{Code: 403, Message: "Forbidden: bot is not a member"})
		if !errors.Is(err, repo.ErrWriteForbidden) {
			t.Errorf("Expected ErrWriteForbidden, got %v", err)
		}
	})

	t.Run("not enough rights", func(t *testing.T) {
		err := mapTelegramError(&tgbotapi.Error{Code: 400, Message: "Bad Request: not enough rights to send photos"})
		if !errors.Is(err, repo.ErrWriteForbidden) {
			t.Errorf("Expected ErrWriteForbidden, got %v", err)
		}
	})

	t.Run("generic", func(t *testing.T) {
		err := mapTelegramError(errors.New("connection reset"))
		var rl *repo.RateLimitedError
		if err == nil || errors.As(err, &rl) || errors.Is(err, repo.ErrWriteForbidden) {
			t.Errorf("Expected generic failure, got %v", err)
		}
	})
}

func TestConvertMessage(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID:    42,
		Chat:         &tgbotapi.Chat{ID: -100500},
		Caption:      "album caption",
		MediaGroupID: "g1",
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90},
			{FileID: "large", Width: 1280},
		},
	}

	in := ConvertMessage(msg)

	if in.ID != 42 || in.ChatID != -100500 || in.GroupID != "g1" {
		t.Errorf("Unexpected identity fields %+v", in)
	}
	if in.Text != "album caption" {
		t.Errorf("Expected caption as text, got %q", in.Text)
	}
	if in.Media == nil || in.Media.Kind != domain.MediaKindPhoto || in.Media.Handle != "large" {
		t.Errorf("Expected largest photo size, got %+v", in.Media)
	}
	if in.IsForwarded {
		t.Error("Expected message not to be forwarded")
	}
}

func TestConvertMessage_ForwardedDocument(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID:       1,
		Chat:            &tgbotapi.Chat{ID: -1},
		ForwardFromChat: &tgbotapi.Chat{ID: -2},
		Document:        &tgbotapi.Document{FileID: "doc", FileName: "report.RAR"},
	}

	in := ConvertMessage(msg)

	if !in.IsForwarded {
		t.Error("Expected forwarded flag")
	}
	if !in.IsDocument() || in.Media.FileName != "report.RAR" {
		t.Errorf("Expected document with file name, got %+v", in.Media)
	}
}

func TestSplitText(t *testing.T) {
	chunks := splitText("aaaa\nbbbb\ncc", 6)
	if len(chunks) != 3 || chunks[0] != "aaaa\n" || chunks[1] != "bbbb\n" || chunks[2] != "cc" {
		t.Errorf("Expected split at line breaks, got %q", chunks)
	}

	if splitText("", 10) != nil {
		t.Error("Expected no chunks for empty text")
	}
}

func rateLimitedAt(t *testing.T, err error) *repo.RateLimitedError {
	t.Helper()
	var rl *repo.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("Expected rate limit error, got %v", err)
	}
	if rl.Resume == nil {
		t.Fatal("Expected a resume for a partially delivered send")
	}
	return rl
}

func TestTelegramRepo_SendTextResumesAfterDeliveredChunks(t *testing.T) {
	api := &mockTelegramAPI{errAt: map[int]error{
		1: &tgbotapi.Error{Code: 429, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3}},
	}}
	r := NewTelegramRepo(api)

	text := strings.Repeat("a", maxTextLength) + strings.Repeat("b", maxTextLength) + "c"
	rl := rateLimitedAt(t, r.SendText(context.Background(), testTarget, text))
	if rl.Wait != 3*time.Second {
		t.Errorf("Expected 3s wait, got %s", rl.Wait)
	}

	if err := rl.Resume(context.Background()); err != nil {
		t.Fatalf("Unexpected resume error: %v", err)
	}

	// first chunk, failed second, then second and third again
	if len(api.calls) != 4 {
		t.Fatalf("Expected 4 text sends, got %d", len(api.calls))
	}
	if !strings.HasPrefix(api.calls[2].caption, "b") || api.calls[3].caption != "c" {
		t.Errorf("Expected resume to start at the failed chunk, got %q then %q", api.calls[2].caption[:1], api.calls[3].caption)
	}
	for _, c := range api.calls[1:] {
		if strings.HasPrefix(c.caption, "a") {
			t.Error("Expected the delivered chunk not to be sent again")
		}
	}
}

func TestTelegramRepo_SendMediaGroupResumesAfterDeliveredChunks(t *testing.T) {
	api := &mockTelegramAPI{errAt: map[int]error{
		1: &tgbotapi.Error{Code: 429},
	}}
	r := NewTelegramRepo(api)

	var media []domain.MediaPayload
	for i := 0; i < 12; i++ {
		media = append(media, payload(domain.MediaKindPhoto))
	}

	rl := rateLimitedAt(t, r.SendMediaGroup(context.Background(), testTarget, media, "cap"))
	if err := rl.Resume(context.Background()); err != nil {
		t.Fatalf("Unexpected resume error: %v", err)
	}

	if len(api.calls) != 3 {
		t.Fatalf("Expected 3 group sends, got %+v", api.calls)
	}
	last := api.calls[2]
	if len(last.kinds) != 2 || last.caption != "" {
		t.Errorf("Expected only the remaining 2 items without caption, got %+v", last)
	}
}

func TestTelegramRepo_OverflowCaptionResumesWithoutMedia(t *testing.T) {
	api := &mockTelegramAPI{errAt: map[int]error{
		1: &tgbotapi.Error{Code: 429},
	}}
	r := NewTelegramRepo(api)

	caption := strings.Repeat("a", maxCaptionLength+1)
	rl := rateLimitedAt(t, r.SendMedia(context.Background(), testTarget, payload(domain.MediaKindPhoto), caption))
	if err := rl.Resume(context.Background()); err != nil {
		t.Fatalf("Unexpected resume error: %v", err)
	}

	if len(api.calls) != 3 || api.calls[2].method != "text" {
		t.Errorf("Expected only the caption text to be retried, got %+v", api.calls)
	}
}

func TestTelegramRepo_FirstSendFailureHasNoResume(t *testing.T) {
	api := &mockTelegramAPI{errAt: map[int]error{
		0: &tgbotapi.Error{Code: 429},
	}}
	r := NewTelegramRepo(api)

	err := r.SendMedia(context.Background(), testTarget, payload(domain.MediaKindPhoto), "cap")
	var rl *repo.RateLimitedError
	if !errors.As(err, &rl) || rl.Resume != nil {
		t.Errorf("Expected a plain rate limit when nothing was delivered, got %+v", err)
	}
}
