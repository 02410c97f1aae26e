package data

import (
	"context"
	"strings"

	"github.com/DevRickLin/channel-mirror/internal/biz/repo"
	"github.com/DevRickLin/channel-mirror/internal/infra/moonshot"
)

const advertisementPrompt = `You review posts from public news channels before they are republished.

Decide whether the post is primarily an advertisement: paid promotion, recruiting agents or resellers, gambling or investment schemes, "free gift" or red-packet bait, or links pushing the reader to sign up or buy.

News, commentary, announcements and ordinary discussion are NOT advertisements, even when they mention products or contain links.

Reply only YES or NO.`

// chatClient is the part of the Moonshot client the classifier uses
type chatClient interface {
	Chat(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// moonshotRepo implements the advertisement classifier with a chat model
type moonshotRepo struct {
	client chatClient
}

// NewMoonshotRepo creates a Moonshot classifier; nil when no client is configured
func NewMoonshotRepo(client *moonshot.Client) repo.ClassifierRepo {
	if client == nil {
		return nil
	}
	return &moonshotRepo{client: client}
}

// IsAdvertisement asks the model for a YES/NO verdict
func (r *moonshotRepo) IsAdvertisement(ctx context.Context, text string) (bool, error) {
	answer, err := r.client.Chat(ctx, advertisementPrompt, text)
	if err != nil {
		return false, err
	}
	return parseYesNo(answer), nil
}

func parseYesNo(answer string) bool {
	answer = strings.ToUpper(strings.TrimSpace(answer))
	answer = strings.Trim(answer, `"'.*`)
	return strings.HasPrefix(answer, "YES")
}
