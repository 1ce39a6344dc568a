package tgc

import (
	"io"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Only the Bot API fields the relay reads are decoded, the rest is skipped.

type User struct {
	ID       int64
	Username string
}

func (u *User) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			u.ID, err = d.Int64()
		case "username":
			u.Username, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

type Chat struct {
	ID   int64
	Type string
}

// Ref is the chat id in the form Bot API methods accept.
func (c Chat) Ref() string {
	return strconv.FormatInt(c.ID, 10)
}

func (c *Chat) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = d.Int64()
		case "type":
			c.Type, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

// Document covers the document, video and audio objects.
type Document struct {
	FileID       string
	FileUniqueID string
	FileName     string
	MimeType     string
	FileSize     int64
}

func (f *Document) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "file_id":
			f.FileID, err = d.Str()
		case "file_unique_id":
			f.FileUniqueID, err = d.Str()
		case "file_name":
			f.FileName, err = d.Str()
		case "mime_type":
			f.MimeType, err = d.Str()
		case "file_size":
			f.FileSize, err = d.Int64()
		default:
			err = d.Skip()
		}
		return err
	})
}

type PhotoSize struct {
	FileID       string
	FileUniqueID string
	Width        int
	Height       int
	FileSize     int64
}

func (p *PhotoSize) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "file_id":
			p.FileID, err = d.Str()
		case "file_unique_id":
			p.FileUniqueID, err = d.Str()
		case "width":
			p.Width, err = d.Int()
		case "height":
			p.Height, err = d.Int()
		case "file_size":
			p.FileSize, err = d.Int64()
		default:
			err = d.Skip()
		}
		return err
	})
}

type Message struct {
	MessageID int64
	From      *User
	Chat      Chat
	Text      string
	Document  *Document
	Video     *Document
	Audio     *Document
	Photo     []PhotoSize
}

func (m *Message) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "message_id":
			m.MessageID, err = d.Int64()
		case "from":
			m.From = new(User)
			err = m.From.Decode(d)
		case "chat":
			err = m.Chat.Decode(d)
		case "text":
			m.Text, err = d.Str()
		case "document":
			m.Document = new(Document)
			err = m.Document.Decode(d)
		case "video":
			m.Video = new(Document)
			err = m.Video.Decode(d)
		case "audio":
			m.Audio = new(Document)
			err = m.Audio.Decode(d)
		case "photo":
			err = d.Arr(func(d *jx.Decoder) error {
				var p PhotoSize
				if err := p.Decode(d); err != nil {
					return err
				}
				m.Photo = append(m.Photo, p)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

type CallbackQuery struct {
	ID      string
	From    User
	Message *Message
	Data    string
}

func (q *CallbackQuery) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			q.ID, err = d.Str()
		case "from":
			err = q.From.Decode(d)
		case "message":
			q.Message = new(Message)
			err = q.Message.Decode(d)
		case "data":
			q.Data, err = d.Str()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

type Update struct {
	UpdateID      int64
	Message       *Message
	EditedMessage *Message
	CallbackQuery *CallbackQuery
}

func (u *Update) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "update_id":
			u.UpdateID, err = d.Int64()
		case "message":
			u.Message = new(Message)
			err = u.Message.Decode(d)
		case "edited_message":
			u.EditedMessage = new(Message)
			err = u.EditedMessage.Decode(d)
		case "callback_query":
			u.CallbackQuery = new(CallbackQuery)
			err = u.CallbackQuery.Decode(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

// DecodeUpdate reads one webhook payload.
func DecodeUpdate(r io.Reader) (*Update, error) {
	var u Update
	if err := u.Decode(jx.Decode(r, 4096)); err != nil {
		return nil, errors.Wrap(err, "decode update")
	}
	return &u, nil
}

// File is the getFile result. FilePath is valid for at least an hour.
type File struct {
	FileID       string
	FileUniqueID string
	FileSize     int64
	FilePath     string
}

func (f *File) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "file_id":
			f.FileID, err = d.Str()
		case "file_unique_id":
			f.FileUniqueID, err = d.Str()
		case "file_size":
			f.FileSize, err = d.Int64()
		case "file_path":
			f.FilePath, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

type InlineKeyboardButton struct {
	Text         string
	CallbackData string
}

// InlineKeyboard is a row-major button layout.
type InlineKeyboard [][]InlineKeyboardButton

func (k InlineKeyboard) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("inline_keyboard")
	e.ArrStart()
	for _, row := range k {
		e.ArrStart()
		for _, b := range row {
			e.ObjStart()
			e.FieldStart("text")
			e.Str(b.Text)
			e.FieldStart("callback_data")
			e.Str(b.CallbackData)
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
