package data

import (
	"github.com/rs/zerolog"

	"github.com/DevRickLin/channel-mirror/internal/biz/repo"
	"github.com/DevRickLin/channel-mirror/internal/infra/feishu"
	"github.com/DevRickLin/channel-mirror/internal/infra/moonshot"
	"github.com/DevRickLin/channel-mirror/internal/infra/mtproto"
	"github.com/DevRickLin/channel-mirror/internal/infra/telegram"
)

// Repositories contains all repositories
type Repositories struct {
	Source     repo.SourceRepo
	Chat       repo.ChatRepo
	Media      repo.MediaSource
	Classifier repo.ClassifierRepo
}

// NewRepositories creates all repositories. Messages and their media come
// from the user session when one is given, otherwise from the bot. Posts go
// to Feishu when a Feishu client is given, otherwise through the bot. A nil
// Moonshot client leaves the classifier unset.
func NewRepositories(
	telegramClient *telegram.Client,
	userClient *mtproto.Client,
	feishuClient *feishu.Client,
	moonshotClient *moonshot.Client,
	log zerolog.Logger,
) *Repositories {
	repos := &Repositories{
		Classifier: NewMoonshotRepo(moonshotClient),
	}

	if telegramClient != nil {
		telegramRepo := NewTelegramRepo(telegramClient)
		repos.Chat = telegramRepo
		repos.Source = NewBotSource(telegramClient, log)
		repos.Media = telegramRepo
	}
	if userClient != nil {
		userSource := NewUserSource(userClient)
		repos.Source = userSource
		repos.Media = userSource
	}
	if feishuClient != nil {
		repos.Chat = NewFeishuRepo(feishuClient)
	}

	return repos
}
