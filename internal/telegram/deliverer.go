package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"meal-mailer/internal/config"
	"meal-mailer/internal/notify"
)

// Sender sends one Telegram message; *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Deliverer posts the plan and the shopping list to every configured chat.
type Deliverer struct {
	token   string
	chatIDs []int64
	api     Sender
}

// NewDeliverer creates a Deliverer. The bot connects on first delivery.
func NewDeliverer(cfg config.TelegramConfig) *Deliverer {
	return &Deliverer{token: cfg.BotToken, chatIDs: cfg.ChatIDs}
}

// NewDelivererWith creates a Deliverer over an existing sender.
func NewDelivererWith(api Sender, chatIDs []int64) *Deliverer {
	return &Deliverer{api: api, chatIDs: chatIDs}
}

// Name implements notify.Deliverer.
func (d *Deliverer) Name() string { return "telegram" }

// Validate implements notify.Deliverer.
func (d *Deliverer) Validate() error {
	if d.api == nil && d.token == "" {
		return fmt.Errorf("telegram bot token is not set")
	}
	if len(d.chatIDs) == 0 {
		return fmt.Errorf("no telegram chat ids configured")
	}
	return nil
}

// Deliver implements notify.Deliverer.
func (d *Deliverer) Deliver(ctx context.Context, s notify.Summary) error {
	if d.api == nil {
		bot, err := tgbotapi.NewBotAPI(d.token)
		if err != nil {
			return fmt.Errorf("failed to init telegram api: %w", err)
		}
		log.Printf("[DEBUG] authorized on telegram account %s", bot.Self.UserName)
		d.api = bot
	}

	planText, shoppingText := formatPlanMarkdownParts(s)
	for _, chatID := range d.chatIDs {
		for _, text := range []string{planText, shoppingText} {
			if err := ctx.Err(); err != nil {
				return err
			}
			msg := tgbotapi.NewMessage(chatID, text)
			msg.ParseMode = tgbotapi.ModeMarkdown
			if _, err := d.api.Send(msg); err != nil {
				return fmt.Errorf("failed to send telegram message to chat %d: %w", chatID, err)
			}
		}
	}
	return nil
}

func formatPlanMarkdownParts(s notify.Summary) (string, string) {
	esc := func(text string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, text) }

	var pb strings.Builder
	pb.WriteString(fmt.Sprintf("📅 *Daily Meal Plan* - %s\n\n", s.DateLabel))
	for _, m := range s.Meals {
		if m.Name == "" {
			pb.WriteString(fmt.Sprintf("*%s*: _%s_\n", esc(m.Title), notify.NoMealMarker))
			continue
		}
		pb.WriteString(fmt.Sprintf("*%s*: %s\n", esc(m.Title), esc(m.Name)))
	}

	var sb strings.Builder
	sb.WriteString("🛒 *Ingredients to Stock Up for Tomorrow*\n\n")
	if len(s.Shopping) == 0 {
		sb.WriteString("_Nothing to buy_\n")
	}
	for _, item := range s.Shopping {
		sb.WriteString(fmt.Sprintf("• %s\n", esc(item)))
	}

	return pb.String(), sb.String()
}
