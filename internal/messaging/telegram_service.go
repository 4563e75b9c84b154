package messaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/BTreeMap/PolicyPipe/internal/models"
)

// Constants for TelegramService configuration.
const (
	// DefaultChannelBufferSize defines the buffer size for the events channel.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the timeout for non-blocking channel forwards.
	DefaultChannelTimeout = 1 * time.Second
	// DefaultUpdateTimeout is the long-polling timeout in seconds.
	DefaultUpdateTimeout = 30
)

// TelegramService implements Service using the Telegram Bot API with long
// polling. Incoming photos are downloaded to temp files before the event is
// forwarded, so handlers only ever see local paths.
type TelegramService struct {
	bot        *tgbotapi.BotAPI
	httpClient *http.Client
	events     chan models.Event
	done       chan struct{}
}

// NewTelegramService creates a TelegramService authenticated with the given
// bot token.
func NewTelegramService(token string) (*TelegramService, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token not set")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	slog.Info("TelegramService authorized", "username", bot.Self.UserName)
	return &TelegramService{
		bot:        bot,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		events:     make(chan models.Event, DefaultChannelBufferSize),
		done:       make(chan struct{}),
	}, nil
}

// Start begins long polling for updates in a background goroutine.
func (s *TelegramService) Start(ctx context.Context) error {
	slog.Debug("TelegramService Start invoked")
	u := tgbotapi.NewUpdate(0)
	u.Timeout = DefaultUpdateTimeout
	updates := s.bot.GetUpdatesChan(u)
	go s.handleUpdates(ctx, updates)
	slog.Debug("TelegramService update handler started")
	return nil
}

// Stop stops polling and closes the events channel.
func (s *TelegramService) Stop() error {
	slog.Info("TelegramService Stop invoked")
	s.bot.StopReceivingUpdates()
	close(s.done)
	close(s.events)
	slog.Info("TelegramService stopped and events channel closed")
	return nil
}

// SendMessage sends a plain text message to a chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID int64, body string) error {
	slog.Debug("TelegramService SendMessage invoked", "chatID", chatID, "body_length", len(body))
	msg := tgbotapi.NewMessage(chatID, body)
	if _, err := s.bot.Send(msg); err != nil {
		slog.Error("TelegramService SendMessage error", "error", err, "chatID", chatID)
		return err
	}
	return nil
}

// SendKeyboard sends a text message with a one-time reply keyboard.
func (s *TelegramService) SendKeyboard(ctx context.Context, chatID int64, body string, options []string) error {
	slog.Debug("TelegramService SendKeyboard invoked", "chatID", chatID, "options", options)
	buttons := make([]tgbotapi.KeyboardButton, 0, len(options))
	for _, opt := range options {
		buttons = append(buttons, tgbotapi.NewKeyboardButton(opt))
	}
	keyboard := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(buttons...))
	keyboard.OneTimeKeyboard = true

	msg := tgbotapi.NewMessage(chatID, body)
	msg.ReplyMarkup = keyboard
	if _, err := s.bot.Send(msg); err != nil {
		slog.Error("TelegramService SendKeyboard error", "error", err, "chatID", chatID)
		return err
	}
	return nil
}

// Events returns the channel of normalized inbound events.
func (s *TelegramService) Events() <-chan models.Event {
	return s.events
}

// handleUpdates converts Telegram updates into models.Event values and
// forwards them until the context is cancelled or the service stops.
func (s *TelegramService) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	slog.Debug("TelegramService handleUpdates starting")
	for {
		select {
		case <-ctx.Done():
			slog.Debug("TelegramService handleUpdates stopping due to context cancellation")
			return
		case <-s.done:
			slog.Debug("TelegramService handleUpdates stopping due to service stop")
			return
		case update, ok := <-updates:
			if !ok {
				slog.Debug("TelegramService updates channel closed")
				return
			}
			if update.Message == nil {
				continue
			}
			event, ok := s.normalizeMessage(ctx, update.Message)
			if !ok {
				continue
			}
			s.forward(event)
		}
	}
}

// normalizeMessage maps a Telegram message to an Event, downloading photo
// content to a local temp file when needed.
func (s *TelegramService) normalizeMessage(ctx context.Context, msg *tgbotapi.Message) (models.Event, bool) {
	chatID := msg.Chat.ID

	switch {
	case msg.IsCommand():
		return models.Event{
			ChatID: chatID,
			Kind:   models.EventCommand,
			Text:   msg.Command(),
			Time:   int64(msg.Date),
		}, true

	case len(msg.Photo) > 0:
		// The last PhotoSize is the largest rendition.
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		path, err := s.downloadPhoto(ctx, fileID)
		if err != nil {
			slog.Error("TelegramService photo download failed", "error", err, "chatID", chatID)
			return models.Event{}, false
		}
		return models.Event{
			ChatID:    chatID,
			Kind:      models.EventPhoto,
			PhotoPath: path,
			Time:      int64(msg.Date),
		}, true

	case msg.Text != "":
		return models.Event{
			ChatID: chatID,
			Kind:   models.EventText,
			Text:   strings.TrimSpace(msg.Text),
			Time:   int64(msg.Date),
		}, true

	default:
		slog.Debug("TelegramService ignoring unsupported message type", "chatID", chatID)
		return models.Event{}, false
	}
}

// downloadPhoto fetches the file behind fileID and writes it to a temp file,
// returning the local path. Temp files are write-once artifacts consumed by
// the extraction client; no cleanup is attempted.
func (s *TelegramService) downloadPhoto(ctx context.Context, fileID string) (string, error) {
	url, err := s.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve file URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("photo download returned status %d", resp.StatusCode)
	}

	f, err := os.CreateTemp("", "policypipe-*.jpg")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	slog.Debug("TelegramService photo downloaded", "path", f.Name())
	return f.Name(), nil
}

// forward pushes an event onto the events channel without blocking forever.
func (s *TelegramService) forward(event models.Event) {
	select {
	case s.events <- event:
		slog.Debug("TelegramService event forwarded", "chatID", event.ChatID, "kind", event.Kind)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TelegramService events channel blocked, dropping event", "chatID", event.ChatID, "kind", event.Kind, "timeout", DefaultChannelTimeout)
	}
}
