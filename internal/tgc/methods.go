package tgc

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

func (c *Client) SendMessage(ctx context.Context, chatID, text string, kb InlineKeyboard) (*Message, error) {
	var m Message
	err := c.call(ctx, "sendMessage", func(e *jx.Encoder) {
		e.FieldStart("chat_id")
		e.Str(chatID)
		e.FieldStart("text")
		e.Str(text)
		e.FieldStart("disable_web_page_preview")
		e.Bool(true)
		if len(kb) > 0 {
			e.FieldStart("reply_markup")
			kb.Encode(e)
		}
	}, m.Decode)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// EditMessageText replaces the text of a sent message. A nil kb removes the
// buttons.
func (c *Client) EditMessageText(ctx context.Context, chatID string, messageID int64, text string, kb InlineKeyboard) error {
	return c.call(ctx, "editMessageText", func(e *jx.Encoder) {
		e.FieldStart("chat_id")
		e.Str(chatID)
		e.FieldStart("message_id")
		e.Int64(messageID)
		e.FieldStart("text")
		e.Str(text)
		e.FieldStart("disable_web_page_preview")
		e.Bool(true)
		if len(kb) > 0 {
			e.FieldStart("reply_markup")
			kb.Encode(e)
		}
	}, nil)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, queryID string) error {
	return c.call(ctx, "answerCallbackQuery", func(e *jx.Encoder) {
		e.FieldStart("callback_query_id")
		e.Str(queryID)
		e.FieldStart("show_alert")
		e.Bool(false)
	}, nil)
}

// ForwardMessage copies a message into chatID and returns the new message.
func (c *Client) ForwardMessage(ctx context.Context, chatID, fromChatID string, messageID int64) (*Message, error) {
	var m Message
	err := c.call(ctx, "forwardMessage", func(e *jx.Encoder) {
		e.FieldStart("chat_id")
		e.Str(chatID)
		e.FieldStart("from_chat_id")
		e.Str(fromChatID)
		e.FieldStart("message_id")
		e.Int64(messageID)
	}, m.Decode)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var f File
	err := c.call(ctx, "getFile", func(e *jx.Encoder) {
		e.FieldStart("file_id")
		e.Str(fileID)
	}, f.Decode)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) SetWebhook(ctx context.Context, webhookURL string) error {
	return c.call(ctx, "setWebhook", func(e *jx.Encoder) {
		e.FieldStart("url")
		e.Str(webhookURL)
		e.FieldStart("allowed_updates")
		e.ArrStart()
		e.Str("message")
		e.Str("edited_message")
		e.Str("callback_query")
		e.ArrEnd()
	}, nil)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// SendDocument uploads r as a document into chatID. The body is streamed
// through a pipe, r is never held in memory as a whole.
func (c *Client) SendDocument(ctx context.Context, chatID, fileName, mimeType string, r io.Reader) (*Message, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			if err := mw.WriteField("chat_id", chatID); err != nil {
				return err
			}
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", `form-data; name="document"; filename="`+quoteEscaper.Replace(fileName)+`"`)
			if mimeType == "" {
				mimeType = "application/octet-stream"
			}
			h.Set("Content-Type", mimeType)
			part, err := mw.CreatePart(h)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, r); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var m Message
	if err := c.do(req, "sendDocument", m.Decode); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return &m, nil
}

// FileStream is an open download from the Bot API file endpoint.
type FileStream struct {
	Body io.ReadCloser
	// Size is -1 when the upstream did not send Content-Length.
	Size int64
}

// OpenFile starts downloading filePath. The request is bound to ctx, so
// cancelling ctx aborts the transfer. The caller closes Body.
func (c *Client) OpenFile(ctx context.Context, filePath string) (*FileStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/file/bot"+c.token+"/"+filePath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(transportError(err), "telegram file")
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, &Error{Method: "file", Code: res.StatusCode, Description: res.Status}
	}
	return &FileStream{Body: res.Body, Size: res.ContentLength}, nil
}
