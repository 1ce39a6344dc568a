package services

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tgdrive/paperlink/internal/cache"
	"github.com/tgdrive/paperlink/internal/config"
	"github.com/tgdrive/paperlink/internal/linkstore"
	"github.com/tgdrive/paperlink/internal/tgc"
)

const testStorageChat = "-100777"

type sentMessage struct {
	ChatID string
	Text   string
	KB     tgc.InlineKeyboard
}

type editedMessage struct {
	ChatID    string
	MessageID int64
	Text      string
	KB        tgc.InlineKeyboard
}

// fakeTelegram records outgoing calls and serves files from memory.
type fakeTelegram struct {
	mu        sync.Mutex
	sent      []sentMessage
	edited    []editedMessage
	answered  []string
	forwarded int64
	getFiles  int
	files     map[string]string
	uploaded  map[string]string
	failOpen  bool
	failGet   bool
	omitSize  bool
}

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{files: map[string]string{}, uploaded: map[string]string{}}
}

func (f *fakeTelegram) SendMessage(_ context.Context, chatID, text string, kb tgc.InlineKeyboard) (*tgc.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, KB: kb})
	return &tgc.Message{MessageID: int64(len(f.sent))}, nil
}

func (f *fakeTelegram) EditMessageText(_ context.Context, chatID string, messageID int64, text string, kb tgc.InlineKeyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, editedMessage{ChatID: chatID, MessageID: messageID, Text: text, KB: kb})
	return nil
}

func (f *fakeTelegram) AnswerCallbackQuery(_ context.Context, queryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, queryID)
	return nil
}

func (f *fakeTelegram) ForwardMessage(_ context.Context, chatID, _ string, _ int64) (*tgc.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwarded++
	id, _ := strconv.ParseInt(chatID, 10, 64)
	return &tgc.Message{MessageID: 1000 + f.forwarded, Chat: tgc.Chat{ID: id}}, nil
}

func (f *fakeTelegram) SendDocument(_ context.Context, chatID, fileName, mimeType string, r io.Reader) (*tgc.Message, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fileID := "doc-" + fileName
	docSize := int64(len(data))
	if f.omitSize {
		docSize = 0
	}
	f.uploaded[fileID] = string(data)
	f.files[fileID] = string(data)
	id, _ := strconv.ParseInt(chatID, 10, 64)
	return &tgc.Message{
		MessageID: 2000,
		Chat:      tgc.Chat{ID: id},
		Document: &tgc.Document{
			FileID:       fileID,
			FileUniqueID: "u-" + fileName,
			FileName:     fileName,
			MimeType:     mimeType,
			FileSize:     docSize,
		},
	}, nil
}

func (f *fakeTelegram) GetFile(_ context.Context, fileID string) (*tgc.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getFiles++
	if f.failGet {
		return nil, &tgc.Error{Method: "getFile", Code: 400, Description: "Bad Request: file is too big"}
	}
	return &tgc.File{FileID: fileID, FilePath: "documents/" + fileID}, nil
}

func (f *fakeTelegram) OpenFile(_ context.Context, filePath string) (*tgc.FileStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOpen {
		return nil, &tgc.Error{Method: "file", Code: 404, Description: "404 Not Found"}
	}
	data, ok := f.files[strings.TrimPrefix(filePath, "documents/")]
	if !ok {
		return nil, &tgc.Error{Method: "file", Code: 404, Description: "404 Not Found"}
	}
	return &tgc.FileStream{Body: io.NopCloser(strings.NewReader(data)), Size: int64(len(data))}, nil
}

func (f *fakeTelegram) lastSent() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTelegram) lastEdited() editedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edited) == 0 {
		return editedMessage{}
	}
	return f.edited[len(f.edited)-1]
}

type testEnv struct {
	cnf      *config.ServerCmdConfig
	store    linkstore.Storage
	reg      *Registry
	tg       *fakeTelegram
	uploads  *UploadService
	bot      *BotService
	download *DownloadService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cnf := &config.ServerCmdConfig{
		TG:    config.TGConfig{StorageChatID: testStorageChat},
		Links: config.LinksConfig{DefaultMaxDownloads: 20, DefaultTTL: 48 * time.Hour, ListLimit: 10},
	}
	cnf.Cache.FilePathTTL = 30 * time.Minute

	store := linkstore.NewMemoryStorage()
	reg := NewRegistry(store, &cnf.Links)
	tg := newFakeTelegram()
	uploads := NewUploadService(reg, tg, cnf.TG.StorageChatID)
	return &testEnv{
		cnf:      cnf,
		store:    store,
		reg:      reg,
		tg:       tg,
		uploads:  uploads,
		bot:      NewBotService(reg, uploads, tg, &cnf.Links),
		download: NewDownloadService(reg, tg, cache.NewMemoryCache(1<<20), cnf),
	}
}

// seed stores content under fileID and creates a link to it.
func (e *testEnv) seed(t *testing.T, fileID, content, owner string, opts ...CreateOption) string {
	t.Helper()
	e.tg.files[fileID] = content
	link, err := e.reg.Create(context.Background(), NewLink{
		ChatRef:    testStorageChat,
		MessageRef: 1,
		FileRef:    fileID,
		FileName:   fileID + ".bin",
		MimeType:   "application/pdf",
		FileSize:   int64(len(content)),
		OwnerID:    owner,
	}, opts...)
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	return link.ID
}
