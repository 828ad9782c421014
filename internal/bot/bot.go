package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/sabr2007/Neural-Inbox1/internal/agent"
	"github.com/sabr2007/Neural-Inbox1/internal/models"
	"github.com/sabr2007/Neural-Inbox1/internal/storage"
)

type Bot struct {
	api     *tgbotapi.BotAPI
	agent   *agent.Agent
	storage storage.Storage
	logger  *zap.Logger
}

func New(token string, agnt *agent.Agent, store storage.Storage, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:     api,
		agent:   agnt,
		storage: store,
		logger:  logger,
	}, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		go b.handleMessage(update.Message)
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if content == "" {
		b.sendMessage(message.Chat.ID, "Send me text (or a caption) and I'll capture it.")
		return
	}

	result, err := b.agent.Process(ctx, message.From.ID, content, detectSource(message))
	if err != nil {
		b.logger.Error("Processing failed",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		if result == nil {
			b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't save your message. Please try again.")
			return
		}
		// Items were persisted despite the error (deadline elapsed late);
		// fall through and show them.
	}

	b.sendResult(message.Chat.ID, message.MessageID, result)
}

func detectSource(message *tgbotapi.Message) models.Source {
	switch {
	case message.ForwardDate != 0:
		return models.SourceForward
	case message.Voice != nil:
		return models.SourceVoice
	case message.Document != nil:
		return models.SourceDocument
	default:
		return models.SourceText
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "inbox":
		b.handleInbox(ctx, message)
	case "done":
		b.handleDone(ctx, message)
	case "related":
		b.handleRelated(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to Neural Inbox! 🧠
Send me anything — tasks, ideas, notes, links, contacts — and I'll split it into structured items, link related ones, and keep your inbox organized.

Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/inbox - Show your inbox items
/done <id> - Complete an item (recurring tasks roll forward)
/related <id> - Show related items

Send any message and I'll extract tasks, ideas, notes, resources and contacts from it.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleInbox(ctx context.Context, message *tgbotapi.Message) {
	items, err := b.storage.ListByStatus(ctx, message.From.ID, models.StatusInbox, 10)
	if err != nil {
		b.logger.Error("Failed to list inbox",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load your inbox.")
		return
	}

	if len(items) == 0 {
		b.sendMessage(message.Chat.ID, "Your inbox is empty.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your inbox:\n\n")
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("%s %s\n", typeEmoji(item.Type), item.Title))
		if item.DueAtRaw != "" {
			sb.WriteString(fmt.Sprintf("   ⏰ %s\n", item.DueAtRaw))
		}
		sb.WriteString(fmt.Sprintf("   id: %s\n", item.ID))
	}
	b.sendMessage(message.Chat.ID, sb.String())
}

func (b *Bot) handleDone(ctx context.Context, message *tgbotapi.Message) {
	itemID := strings.TrimSpace(message.CommandArguments())
	if itemID == "" {
		b.sendMessage(message.Chat.ID, "Usage: /done <item id>")
		return
	}

	result, err := b.agent.CompleteItem(ctx, itemID)
	if err != nil {
		b.logger.Error("Failed to complete item",
			zap.Error(err),
			zap.String("item_id", itemID))
		b.sendErrorMessage(message.Chat.ID, "Couldn't complete that item. Check the id and try again.")
		return
	}

	reply := fmt.Sprintf("✅ Done: %s", result.CompletedItem.Title)
	if result.NextOccurrence != nil {
		next := result.NextOccurrence
		reply += fmt.Sprintf("\n🔁 Next occurrence: %s", next.DueAt.Format("2006-01-02 15:04"))
	}
	b.sendMessage(message.Chat.ID, reply)
}

func (b *Bot) handleRelated(ctx context.Context, message *tgbotapi.Message) {
	itemID := strings.TrimSpace(message.CommandArguments())
	if itemID == "" {
		b.sendMessage(message.Chat.ID, "Usage: /related <item id>")
		return
	}

	related, err := b.agent.RelatedItems(ctx, itemID)
	if err != nil {
		b.logger.Error("Failed to get related items",
			zap.Error(err),
			zap.String("item_id", itemID))
		b.sendErrorMessage(message.Chat.ID, "Couldn't load related items.")
		return
	}

	if len(related.Inferred) == 0 && len(related.Explicit) == 0 {
		b.sendMessage(message.Chat.ID, "No related items found.")
		return
	}

	var sb strings.Builder
	if len(related.Inferred) > 0 {
		sb.WriteString("Similar:\n")
		for _, n := range related.Inferred {
			sb.WriteString(fmt.Sprintf("  %s %s (%.0f%%)\n", typeEmoji(n.Item.Type), n.Item.Title, n.Score*100))
		}
	}
	if len(related.Explicit) > 0 {
		sb.WriteString("Linked:\n")
		for _, link := range related.Explicit {
			other := link.RelatedItemID
			if other == itemID {
				other = link.ItemID
			}
			line := fmt.Sprintf("  🔗 %s", other)
			if item, err := b.storage.GetItem(ctx, other); err == nil {
				line = fmt.Sprintf("  🔗 %s", item.Title)
			}
			if link.Reason != "" {
				line += fmt.Sprintf(" — %s", link.Reason)
			}
			sb.WriteString(line + "\n")
		}
	}
	b.sendMessage(message.Chat.ID, sb.String())
}

func (b *Bot) sendResult(chatID int64, replyToID int, result *agent.AgentResult) {
	if result.Fallback {
		text := "⚠️ I couldn't process that automatically, so I saved it as a note in your inbox."
		b.sendReply(chatID, replyToID, text)
		return
	}

	if len(result.ItemsCreated) == 0 {
		if result.ChatResponse != "" {
			b.sendReply(chatID, replyToID, result.ChatResponse)
		} else {
			b.sendReply(chatID, replyToID, "Nothing to capture there.")
		}
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Captured %d item(s):\n", len(result.ItemsCreated)))
	for _, item := range result.ItemsCreated {
		sb.WriteString(fmt.Sprintf("%s %s", typeEmoji(item.Type), item.Title))
		if item.DueAtRaw != "" {
			sb.WriteString(fmt.Sprintf(" (⏰ %s)", item.DueAtRaw))
		}
		if len(item.Tags) > 0 {
			tags := make([]string, len(item.Tags))
			for i, tag := range item.Tags {
				tags[i] = "#" + strings.ReplaceAll(tag, " ", "_")
			}
			sb.WriteString(" " + strings.Join(tags, " "))
		}
		sb.WriteString("\n")
	}
	if len(result.LinksCreated) > 0 {
		sb.WriteString(fmt.Sprintf("🔗 Linked to %d existing item(s)\n", len(result.LinksCreated)))
	}
	if result.ChatResponse != "" {
		sb.WriteString("\n" + result.ChatResponse)
	}

	b.sendReply(chatID, replyToID, sb.String())
}

func typeEmoji(t models.ItemType) string {
	switch t {
	case models.TypeTask:
		return "☑️"
	case models.TypeIdea:
		return "💡"
	case models.TypeNote:
		return "📝"
	case models.TypeResource:
		return "🔖"
	case models.TypeContact:
		return "👤"
	default:
		return "•"
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendReply(chatID int64, replyToID int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyToID
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
