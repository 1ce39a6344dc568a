package controller

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/require"
	"github.com/tgdrive/paperlink/internal/cache"
	"github.com/tgdrive/paperlink/internal/config"
	"github.com/tgdrive/paperlink/internal/linkstore"
	"github.com/tgdrive/paperlink/internal/middleware"
	"github.com/tgdrive/paperlink/internal/tgc"
	"github.com/tgdrive/paperlink/pkg/services"
)

const (
	testToken       = "T0K"
	testStorageChat = "-100777"
)

// fakeBotAPI serves the handful of Bot API methods the relay calls. Files
// live in memory keyed by file_id and are served under docs/<file_id>.
type fakeBotAPI struct {
	mu       sync.Mutex
	files    map[string]string
	sent     []string
	edited   []string
	answered []string
	nextID   int
	srv      *httptest.Server
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	t.Helper()
	f := &fakeBotAPI{files: map[string]string{}, nextID: 1000}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBotAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeBotAPI) editedTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.edited...)
}

func (f *fakeBotAPI) answeredQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.answered...)
}

func (f *fakeBotAPI) put(fileID, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[fileID] = content
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	if path, ok := strings.CutPrefix(r.URL.Path, "/file/bot"+testToken+"/docs/"); ok {
		f.mu.Lock()
		content, found := f.files[path]
		f.mu.Unlock()
		if !found {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		_, _ = io.WriteString(w, content)
		return
	}

	method := strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/")
	if method == "sendDocument" {
		f.sendDocument(w, r)
		return
	}

	fields, err := jsonFields(r.Body)
	if err != nil {
		reply(w, http.StatusBadRequest, nil)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	switch method {
	case "sendMessage":
		f.sent = append(f.sent, fields["text"])
		reply(w, http.StatusOK, messageResult(f.nextID, fields["chat_id"], nil))
	case "forwardMessage":
		reply(w, http.StatusOK, messageResult(f.nextID, fields["chat_id"], nil))
	case "getFile":
		id := fields["file_id"]
		if _, ok := f.files[id]; !ok {
			reply(w, http.StatusBadRequest, nil)
			return
		}
		reply(w, http.StatusOK, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("file_id")
			e.Str(id)
			e.FieldStart("file_path")
			e.Str("docs/" + id)
			e.ObjEnd()
		})
	case "editMessageText":
		f.edited = append(f.edited, fields["text"])
		reply(w, http.StatusOK, func(e *jx.Encoder) { e.Bool(true) })
	case "answerCallbackQuery":
		f.answered = append(f.answered, fields["callback_query_id"])
		reply(w, http.StatusOK, func(e *jx.Encoder) { e.Bool(true) })
	default:
		reply(w, http.StatusOK, func(e *jx.Encoder) { e.Bool(true) })
	}
}

func (f *fakeBotAPI) sendDocument(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		reply(w, http.StatusBadRequest, nil)
		return
	}
	var chatID, name, mimeType, content string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			reply(w, http.StatusBadRequest, nil)
			return
		}
		data, err := io.ReadAll(p)
		if err != nil {
			reply(w, http.StatusBadRequest, nil)
			return
		}
		switch p.FormName() {
		case "chat_id":
			chatID = string(data)
		case "document":
			name, mimeType, content = p.FileName(), p.Header.Get("Content-Type"), string(data)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	fileID := "up" + strconv.Itoa(f.nextID)
	f.files[fileID] = content
	reply(w, http.StatusOK, messageResult(f.nextID, chatID, func(e *jx.Encoder) {
		e.FieldStart("document")
		e.ObjStart()
		e.FieldStart("file_id")
		e.Str(fileID)
		e.FieldStart("file_unique_id")
		e.Str("u" + fileID)
		e.FieldStart("file_name")
		e.Str(name)
		e.FieldStart("mime_type")
		e.Str(mimeType)
		e.FieldStart("file_size")
		e.Int(len(content))
		e.ObjEnd()
	}))
}

func messageResult(id int, chatID string, extra func(e *jx.Encoder)) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		chat, _ := strconv.ParseInt(chatID, 10, 64)
		e.ObjStart()
		e.FieldStart("message_id")
		e.Int(id)
		e.FieldStart("chat")
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(chat)
		e.ObjEnd()
		if extra != nil {
			extra(e)
		}
		e.ObjEnd()
	}
}

func reply(w http.ResponseWriter, status int, result func(e *jx.Encoder)) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("ok")
	e.Bool(status == http.StatusOK)
	if result != nil {
		e.FieldStart("result")
		result(&e)
	} else {
		e.FieldStart("error_code")
		e.Int(status)
		e.FieldStart("description")
		e.Str("Bad Request")
	}
	e.ObjEnd()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// jsonFields flattens a request body into strings, numbers keep their
// literal form.
func jsonFields(r io.Reader) (map[string]string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{}
	err = jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch d.Next() {
		case jx.String:
			s, err := d.Str()
			fields[key] = s
			return err
		case jx.Number:
			n, err := d.Num()
			fields[key] = n.String()
			return err
		default:
			return d.Skip()
		}
	})
	return fields, err
}

type testServer struct {
	api    *fakeBotAPI
	reg    *services.Registry
	cnf    *config.ServerCmdConfig
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	api := newFakeBotAPI(t)
	cnf := &config.ServerCmdConfig{
		TG:     config.TGConfig{Token: testToken, StorageChatID: testStorageChat, APIURL: api.srv.URL},
		Links:  config.LinksConfig{DefaultMaxDownloads: 20, DefaultTTL: 48 * time.Hour, ListLimit: 10},
		Cache:  config.CacheConfig{FilePathTTL: time.Minute},
		Upload: config.UploadConfig{MaxSize: 1 << 20},
	}

	client, err := tgc.New(&cnf.TG)
	require.NoError(t, err)

	reg := services.NewRegistry(linkstore.NewMemoryStorage(), &cnf.Links)
	uploads := services.NewUploadService(reg, client, cnf.TG.StorageChatID)
	bot := services.NewBotService(reg, uploads, client, &cnf.Links)
	downloads := services.NewDownloadService(reg, client, cache.NewMemoryCache(1<<20), cnf)

	r := chi.NewRouter()
	r.Use(middleware.SkipBrowserWarning)
	NewController(bot, uploads, downloads, cnf).Routes(r)

	return &testServer{api: api, reg: reg, cnf: cnf, router: r}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	s.router.ServeHTTP(res, req)
	return res
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}
