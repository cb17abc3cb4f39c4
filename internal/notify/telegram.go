package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"replypilot/internal/pipeline"
)

// Notifier sends scan cycle summaries to the operator over Telegram. A
// nil Notifier is valid and does nothing, so callers never branch on
// whether notifications are configured.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// New creates a notifier, or returns nil when the token is empty.
func New(token string, chatID int64, logger *zap.Logger) (*Notifier, error) {
	if token == "" || chatID == 0 {
		logger.Info("Telegram notifications disabled (no token or chat id)")
		return nil, nil
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram notifier authorized", zap.String("username", api.Self.UserName))

	return &Notifier{api: api, chatID: chatID, logger: logger}, nil
}

// ScanCompleted reports the outcome of one scan cycle.
func (n *Notifier) ScanCompleted(res *pipeline.Result) {
	if n == nil {
		return
	}

	text := fmt.Sprintf(
		"Scan finished\nInfluencers checked: %d (failed: %d)\nNew posts: %d\nCandidates: %d\nDrafts generated: %d (failed: %d)",
		res.InfluencersChecked, res.InfluencersFailed,
		res.PostsSeen, res.Candidates,
		res.Generated, res.GenerationFailed,
	)

	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Error("Failed to send Telegram notification", zap.Error(err))
	}
}
