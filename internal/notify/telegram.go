package notify

import (
	"fmt"
	"strings"

	"agrirent/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of the Telegram bot API the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts booking lifecycle events to an ops chat.
type TelegramNotifier struct {
	sender Sender
	chatID int64
	logger zerolog.Logger
}

// NewTelegramBot connects to the Bot API with the given token.
func NewTelegramBot(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

func NewTelegramNotifier(sender Sender, chatID int64, logger *zerolog.Logger) *TelegramNotifier {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "notify").Logger()
	}
	return &TelegramNotifier{sender: sender, chatID: chatID, logger: l}
}

// Subscribe registers the notifier for every booking event on the bus.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.SubscribeMany(events.BookingEvents, n.HandleEvent)
}

func (n *TelegramNotifier) HandleEvent(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatBookingEvent(event.Type, &payload))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error().Err(err).Str("event", event.Type).Int64("booking_id", payload.BookingID).Msg("telegram send failed")
		return err
	}
	return nil
}

var eventTitles = map[string]string{
	events.EventBookingCreated:   "New booking",
	events.EventBookingConfirmed: "Booking confirmed",
	events.EventBookingFailed:    "Payment failed",
	events.EventBookingCancelled: "Booking cancelled",
	events.EventBookingCompleted: "Rental completed",
}

// FormatBookingEvent renders a Markdown message for an event.
func FormatBookingEvent(eventType string, p *events.BookingEventPayload) string {
	title, ok := eventTitles[eventType]
	if !ok {
		title = eventType
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s* `%s`\n", title, p.Reference)
	fmt.Fprintf(&b, "Equipment: %s (#%d)\n", escapeMarkdown(p.EquipmentTitle), p.EquipmentID)
	fmt.Fprintf(&b, "Renter: %s\n", escapeMarkdown(p.RenterName))
	fmt.Fprintf(&b, "Dates: %s to %s\n", p.StartDate, p.EndDate)
	fmt.Fprintf(&b, "Total: %.2f", p.TotalPrice)
	if p.PaymentMethod != "" {
		fmt.Fprintf(&b, " via %s", p.PaymentMethod)
	}
	if p.ChangedBy != "" {
		fmt.Fprintf(&b, "\nBy: %s", escapeMarkdown(p.ChangedBy))
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
