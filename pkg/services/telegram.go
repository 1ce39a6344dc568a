package services

import (
	"context"
	"io"

	"github.com/tgdrive/paperlink/internal/tgc"
)

// Telegram is the part of the Bot API the services call. *tgc.Client
// implements it.
type Telegram interface {
	SendMessage(ctx context.Context, chatID, text string, kb tgc.InlineKeyboard) (*tgc.Message, error)
	EditMessageText(ctx context.Context, chatID string, messageID int64, text string, kb tgc.InlineKeyboard) error
	AnswerCallbackQuery(ctx context.Context, queryID string) error
	ForwardMessage(ctx context.Context, chatID, fromChatID string, messageID int64) (*tgc.Message, error)
	SendDocument(ctx context.Context, chatID, fileName, mimeType string, r io.Reader) (*tgc.Message, error)
	GetFile(ctx context.Context, fileID string) (*tgc.File, error)
	OpenFile(ctx context.Context, filePath string) (*tgc.FileStream, error)
}

var _ Telegram = (*tgc.Client)(nil)
