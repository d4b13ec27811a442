package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/pagflow/gatekeeper/internal/app/service/accessgate"
	"github.com/pagflow/gatekeeper/internal/platform/llm"
	"github.com/pagflow/gatekeeper/internal/platform/mercadopago"
	"github.com/pagflow/gatekeeper/pkg/config"
	"github.com/pagflow/gatekeeper/pkg/types"
)

const (
	welcomeText = "Bem-vindo! Escolha um plano para liberar o acesso:"
	deniedText  = "Seu acesso não está ativo. Escolha um plano para continuar:"
	chargeText  = "Clique no botão abaixo para concluir o pagamento:"
	buyButton   = "Clique e Adquira Agora!"
)

// Bot is the Telegram connector. Every inbound message passes the access
// gate before it may reach the assistant; denied users get the plan keyboard
// instead. The Telegram user id doubles as the ledger identity.
type Bot struct {
	api       *tgbotapi.BotAPI
	cfg       *config.Config
	gate      *accessgate.Gate
	completer llm.Completer
	payments  *mercadopago.Client
	log       *zap.SugaredLogger
}

// New returns a nil bot when no token is configured; the service then runs
// webhook-only and activation notices are skipped.
func New(cfg *config.Config, gate *accessgate.Gate, completer llm.Completer, payments *mercadopago.Client, log *zap.SugaredLogger) (*Bot, error) {
	if cfg.Telegram.Token == "" {
		log.Warnw("telegram token not configured, chat connector disabled")
		return nil, nil
	}
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	api.Debug = cfg.Telegram.Debug
	return &Bot{api: api, cfg: cfg, gate: gate, completer: completer, payments: payments, log: log}, nil
}

// Run consumes the long-poll update stream until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.log.Infow("telegram bot started", "username", b.api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// SendText pushes a plain message to a user by ledger identity. Satisfies
// the webhook receiver's Notifier.
func (b *Bot) SendText(_ context.Context, userIdentity, text string) error {
	chatID, err := strconv.ParseInt(userIdentity, 10, 64)
	if err != nil {
		return fmt.Errorf("identity %q is not a telegram chat id: %w", userIdentity, err)
	}
	_, err = b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handlePlanCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.handleChat(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendPlanKeyboard(msg.Chat.ID, welcomeText)
	default:
		b.reply(msg.Chat.ID, "Comando não reconhecido. Use /start.")
	}
}

// handleChat is the paid path: gate first, assistant second.
func (b *Bot) handleChat(ctx context.Context, msg *tgbotapi.Message) {
	identity := strconv.FormatInt(msg.From.ID, 10)

	dec := b.gate.CheckAccess(ctx, identity)
	if !dec.Granted {
		b.log.Infow("chat denied", "user_identity", identity, "reason", dec.Reason)
		if dec.Reason == types.AccessDenyReasonUnavailable {
			b.reply(msg.Chat.ID, "Estamos com instabilidade no momento. Tente novamente em instantes.")
			return
		}
		b.sendPlanKeyboard(msg.Chat.ID, deniedText)
		return
	}

	answer, err := b.completer.Complete(ctx, msg.Text)
	if err != nil {
		b.log.Errorw("assistant failed", "user_identity", identity, "error", err.Error())
		b.reply(msg.Chat.ID, "Não consegui responder agora. Tente novamente.")
		return
	}
	b.reply(msg.Chat.ID, answer)
}

func (b *Bot) handlePlanCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// Ack first so the client stops the spinner regardless of outcome.
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.log.Warnw("failed to ack callback", "error", err.Error())
	}

	identity := strconv.FormatInt(cq.From.ID, 10)
	chatID := callbackChatID(cq)

	plan, err := b.cfg.PlanByID(cq.Data)
	if err != nil {
		b.reply(chatID, "Plano não encontrado. Use /start para ver os planos.")
		return
	}

	email := fmt.Sprintf("tg%s@pagflow.local", identity)
	charge, err := b.payments.CreateCharge(ctx, plan, identity, email)
	if err != nil {
		b.log.Errorw("failed to create charge",
			"user_identity", identity, "plan_id", plan.ID, "error", err.Error())
		b.reply(chatID, "Erro ao gerar o link de pagamento. Tente novamente.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, chargeText)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(buyButton, charge.TicketURL),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Errorw("failed to send payment link", "user_identity", identity, "error", err.Error())
	}
}

// callbackChatID resolves where to answer a callback. Telegram omits the
// original message for buttons older than 48 hours; fall back to a direct
// chat with the tapping user.
func callbackChatID(cq *tgbotapi.CallbackQuery) int64 {
	if cq.Message != nil && cq.Message.Chat != nil {
		return cq.Message.Chat.ID
	}
	return cq.From.ID
}

func (b *Bot) sendPlanKeyboard(chatID int64, text string) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(b.cfg.Plans))
	for _, p := range b.cfg.Plans {
		label := fmt.Sprintf("%s (R$ %d,%02d)", p.DisplayName, p.PriceMinor/100, p.PriceMinor%100)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, p.ID),
		))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Errorw("failed to send plan keyboard", "chat_id", chatID, "error", err.Error())
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Errorw("failed to send message", "chat_id", chatID, "error", err.Error())
	}
}
