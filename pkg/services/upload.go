package services

import (
	"context"
	"io"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/tgdrive/paperlink/internal/tgc"
	"github.com/tgdrive/paperlink/pkg/models"
)

// WebOwner owns every link created through the web form.
const WebOwner = "web"

const (
	defaultFileName = "file"
	defaultMimeType = "application/octet-stream"
)

// UploadService stores files in the storage chat and registers a link for each.
type UploadService struct {
	reg           *Registry
	tg            Telegram
	storageChatID string
}

func NewUploadService(reg *Registry, tg Telegram, storageChatID string) *UploadService {
	return &UploadService{reg: reg, tg: tg, storageChatID: storageChatID}
}

// pickIncomingFile returns the file carried by msg. For photos the largest
// size is used and named after its unique id.
func pickIncomingFile(msg *tgc.Message) (*tgc.Document, bool) {
	switch {
	case msg == nil:
		return nil, false
	case msg.Document != nil:
		return msg.Document, true
	case msg.Video != nil:
		return msg.Video, true
	case msg.Audio != nil:
		return msg.Audio, true
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		return &tgc.Document{
			FileID:       largest.FileID,
			FileUniqueID: largest.FileUniqueID,
			FileName:     "photo_" + largest.FileUniqueID + ".jpg",
			MimeType:     "image/jpeg",
			FileSize:     largest.FileSize,
		}, true
	}
	return nil, false
}

func ownerOf(u *tgc.User) string {
	if u == nil {
		return ""
	}
	return strconv.FormatInt(u.ID, 10)
}

// IngestMessage forwards a file message into the storage chat and creates
// its link. ok is false when msg carries no file.
func (s *UploadService) IngestMessage(ctx context.Context, msg *tgc.Message) (link *models.ShareLink, ok bool, err error) {
	file, ok := pickIncomingFile(msg)
	if !ok {
		return nil, false, nil
	}

	stored, err := s.tg.ForwardMessage(ctx, s.storageChatID, msg.Chat.Ref(), msg.MessageID)
	if err != nil {
		return nil, true, errors.Wrap(err, "forward to storage")
	}

	link, err = s.reg.Create(ctx, NewLink{
		ChatRef:       stored.Chat.Ref(),
		MessageRef:    stored.MessageID,
		FileRef:       file.FileID,
		FileUniqueRef: file.FileUniqueID,
		FileName:      orDefault(file.FileName, defaultFileName),
		MimeType:      orDefault(file.MimeType, defaultMimeType),
		FileSize:      file.FileSize,
		OwnerID:       ownerOf(msg.From),
	})
	if err != nil {
		return nil, true, err
	}
	return link, true, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	return n, err
}

// Upload sends r to the storage chat as a document owned by WebOwner. The
// stored size falls back to the bytes read when Telegram omits it.
func (s *UploadService) Upload(ctx context.Context, fileName, mimeType string, r io.Reader) (*models.ShareLink, error) {
	fileName = orDefault(fileName, defaultFileName)
	body := &countingReader{r: r}
	stored, err := s.tg.SendDocument(ctx, s.storageChatID, fileName, mimeType, body)
	if err != nil {
		return nil, errors.Wrap(err, "send document")
	}
	doc := stored.Document
	if doc == nil {
		return nil, errors.New("send document: no document in result")
	}

	fileSize := doc.FileSize
	if fileSize <= 0 {
		fileSize = body.n
	}
	return s.reg.Create(ctx, NewLink{
		ChatRef:       stored.Chat.Ref(),
		MessageRef:    stored.MessageID,
		FileRef:       doc.FileID,
		FileUniqueRef: doc.FileUniqueID,
		FileName:      orDefault(doc.FileName, fileName),
		MimeType:      orDefault(doc.MimeType, orDefault(mimeType, defaultMimeType)),
		FileSize:      fileSize,
		OwnerID:       WebOwner,
	})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
