package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-faster/errors"
	"github.com/tgdrive/paperlink/internal/config"
	"github.com/tgdrive/paperlink/internal/logging"
	"github.com/tgdrive/paperlink/internal/tgc"
	"github.com/tgdrive/paperlink/internal/utils"
	"github.com/tgdrive/paperlink/pkg/models"
	"go.uber.org/zap"
)

const (
	helpText = "Commands:\n/list - show your links\n(then tap buttons)\n\nPower user:\n/limit <id> <n|inf>\n/revoke <id>"

	noLinksText     = "📁 No links yet.\nSend me a file and I'll create a link."
	limitUsageText  = "Usage: /limit <shareId> <number|inf>\nExample: /limit abc123 5"
	revokeUsageText = "Usage: /revoke <shareId>\nTip: use /list and tap buttons."
	notFoundText    = "Not found."

	limitFailedText  = "Could not update (wrong id or not yours)."
	revokeFailedText = "Could not revoke (wrong id or not yours)."

	chooseLimitText   = "Choose a download limit:"
	confirmRevokeText = "Revoke this link? People won't be able to download it anymore."
	revokedText       = "🛑 Link revoked."
)

// Button actions, sent as "<action>:<id>" callback data.
const (
	actionOpen        = "o"
	actionLimitMenu   = "lm"
	actionLimit5      = "l5"
	actionLimit20     = "l20"
	actionLimitInf    = "linf"
	actionRevoke      = "rv"
	actionRevokeYes   = "rvy"
	actionBackSummary = "bk"
)

// BotService routes webhook updates: button taps, commands and file messages.
type BotService struct {
	reg     *Registry
	uploads *UploadService
	tg      Telegram
	cnf     *config.LinksConfig
}

func NewBotService(reg *Registry, uploads *UploadService, tg Telegram, cnf *config.LinksConfig) *BotService {
	return &BotService{reg: reg, uploads: uploads, tg: tg, cnf: cnf}
}

// HandleUpdate dispatches one update. baseURL prefixes the share links in
// replies.
func (s *BotService) HandleUpdate(ctx context.Context, u *tgc.Update, baseURL string) error {
	if u.CallbackQuery != nil {
		return s.handleCallback(ctx, u.CallbackQuery, baseURL)
	}

	msg := u.Message
	if msg == nil {
		msg = u.EditedMessage
	}
	if msg == nil {
		return nil
	}

	if strings.HasPrefix(strings.TrimSpace(msg.Text), "/") {
		return s.handleCommand(ctx, msg, baseURL)
	}

	link, ok, err := s.uploads.IngestMessage(ctx, msg)
	if err != nil || !ok {
		return err
	}
	logging.FromContext(ctx).Info("link created", zap.String("id", link.ID), zap.String("owner", link.OwnerID))
	_, err = s.tg.SendMessage(ctx, msg.Chat.Ref(), "✅ Saved!\n"+LinkURL(baseURL, link.ID), nil)
	return err
}

// parseCommand lower-cases the command word and drops a "@botname" suffix.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := fields[0]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}

func (s *BotService) handleCommand(ctx context.Context, msg *tgc.Message, baseURL string) error {
	cmd, args := parseCommand(msg.Text)
	owner := ownerOf(msg.From)
	chatID := msg.Chat.Ref()

	logging.FromContext(ctx).Debug("command", zap.String("cmd", cmd), zap.String("chat", chatID), zap.String("owner", owner))

	switch cmd {
	case "/list":
		return s.listLinks(ctx, chatID, owner, baseURL)

	case "/revoke":
		if len(args) < 1 {
			return s.reply(ctx, chatID, revokeUsageText)
		}
		ok, err := s.reg.Revoke(ctx, args[0], owner)
		if err != nil {
			return err
		}
		if !ok {
			return s.reply(ctx, chatID, revokeFailedText)
		}
		return s.reply(ctx, chatID, "🛑 Revoked "+args[0])

	case "/limit":
		if len(args) < 2 {
			return s.reply(ctx, chatID, limitUsageText)
		}
		limit, valid := parseLimit(args[1])
		if !valid {
			return s.reply(ctx, chatID, limitUsageText)
		}
		ok, err := s.reg.SetQuota(ctx, args[0], owner, limit)
		if err != nil {
			return err
		}
		if !ok {
			return s.reply(ctx, chatID, limitFailedText)
		}
		return s.reply(ctx, chatID, "✅ Limit updated: "+formatMax(limit))

	default:
		return s.reply(ctx, chatID, helpText)
	}
}

// parseLimit accepts "inf" for unlimited or an integer of at least 1.
func parseLimit(arg string) (*int64, bool) {
	if strings.EqualFold(arg, "inf") {
		return nil, true
	}
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || n < 1 {
		return nil, false
	}
	return &n, true
}

func (s *BotService) listLinks(ctx context.Context, chatID, owner, baseURL string) error {
	links, err := s.reg.ListByOwner(ctx, owner, s.listLimit())
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return s.reply(ctx, chatID, noLinksText)
	}
	if err := s.reply(ctx, chatID, fmt.Sprintf("📁 Your links (last %d)", s.listLimit())); err != nil {
		return err
	}
	for i := range links {
		link := &links[i]
		if _, err := s.tg.SendMessage(ctx, chatID, LinkSummary(link, baseURL), itemKeyboard(link.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (s *BotService) listLimit() int {
	if s.cnf.ListLimit > 0 {
		return s.cnf.ListLimit
	}
	return 10
}

func (s *BotService) handleCallback(ctx context.Context, q *tgc.CallbackQuery, baseURL string) error {
	if err := s.tg.AnswerCallbackQuery(ctx, q.ID); err != nil {
		return errors.Wrap(err, "answer callback")
	}
	if q.Message == nil || q.Message.MessageID == 0 {
		return nil
	}

	action, id, _ := strings.Cut(q.Data, ":")
	owner := ownerOf(&q.From)
	chatID := q.Message.Chat.Ref()
	msgID := q.Message.MessageID

	switch action {
	case actionOpen:
		if _, err := s.reg.Get(ctx, id); err != nil {
			if errors.Is(err, ErrLinkNotFound) {
				return s.reply(ctx, chatID, notFoundText)
			}
			return err
		}
		return s.reply(ctx, chatID, "🔗 "+LinkURL(baseURL, id))

	case actionLimitMenu:
		return s.tg.EditMessageText(ctx, chatID, msgID, chooseLimitText, limitKeyboard(id))

	case actionLimit5, actionLimit20, actionLimitInf:
		var limit *int64
		switch action {
		case actionLimit5:
			limit = utils.Int64Pointer(5)
		case actionLimit20:
			limit = utils.Int64Pointer(20)
		}
		ok, err := s.reg.SetQuota(ctx, id, owner, limit)
		if err != nil {
			return err
		}
		if !ok {
			return s.reply(ctx, chatID, limitFailedText)
		}
		return s.reply(ctx, chatID, "✅ Limit updated: "+formatMax(limit))

	case actionRevoke:
		return s.tg.EditMessageText(ctx, chatID, msgID, confirmRevokeText, revokeKeyboard(id))

	case actionRevokeYes:
		ok, err := s.reg.Revoke(ctx, id, owner)
		if err != nil {
			return err
		}
		if !ok {
			return s.reply(ctx, chatID, revokeFailedText)
		}
		return s.tg.EditMessageText(ctx, chatID, msgID, revokedText, nil)

	case actionBackSummary:
		link, err := s.reg.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrLinkNotFound) {
				return s.tg.EditMessageText(ctx, chatID, msgID, notFoundText, nil)
			}
			return err
		}
		return s.tg.EditMessageText(ctx, chatID, msgID, LinkSummary(link, baseURL), itemKeyboard(id))
	}
	return nil
}

func (s *BotService) reply(ctx context.Context, chatID, text string) error {
	_, err := s.tg.SendMessage(ctx, chatID, text, nil)
	return err
}

// LinkURL is the public short link for id.
func LinkURL(baseURL, id string) string {
	return strings.TrimSuffix(baseURL, "/") + "/s/" + id
}

// LinkSummary renders "<name> • <used>/<max> • <size>" above the link.
func LinkSummary(link *models.ShareLink, baseURL string) string {
	name := orDefault(link.FileName, defaultFileName)
	size := humanize.IBytes(uint64(max(link.FileSize, 0)))
	return fmt.Sprintf("%s • %d/%s • %s\n%s", name, link.DownloadCount, formatMax(link.MaxDownloads), size, LinkURL(baseURL, link.ID))
}

func formatMax(n *int64) string {
	if n == nil {
		return "∞"
	}
	return strconv.FormatInt(*n, 10)
}

func itemKeyboard(id string) tgc.InlineKeyboard {
	return tgc.InlineKeyboard{{
		{Text: "🔗 Open", CallbackData: actionOpen + ":" + id},
		{Text: "⚙️ Limit", CallbackData: actionLimitMenu + ":" + id},
		{Text: "🛑 Revoke", CallbackData: actionRevoke + ":" + id},
	}}
}

func limitKeyboard(id string) tgc.InlineKeyboard {
	return tgc.InlineKeyboard{
		{
			{Text: "5", CallbackData: actionLimit5 + ":" + id},
			{Text: "20", CallbackData: actionLimit20 + ":" + id},
			{Text: "∞", CallbackData: actionLimitInf + ":" + id},
		},
		{{Text: "⬅ Back", CallbackData: actionBackSummary + ":" + id}},
	}
}

func revokeKeyboard(id string) tgc.InlineKeyboard {
	return tgc.InlineKeyboard{{
		{Text: "✅ Yes revoke", CallbackData: actionRevokeYes + ":" + id},
		{Text: "Cancel", CallbackData: actionBackSummary + ":" + id},
	}}
}
