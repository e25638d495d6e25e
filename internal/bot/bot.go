package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"gameverify/internal/services"
)

const (
	commandName = "verify"

	completionKeyword = "DONE"

	replyDMSent = "I have sent you a DM with your personal verification link. Please check your messages!"
	replyDMClosed = "I could not send you a DM. Please enable \"Allow direct messages from server members\" " +
		"in your User Settings > Privacy & Safety, then try again."
	replyCommandFailed = "Something went wrong while starting verification. Please try again later."

	dmSuccess = "**Verification Successful!** You now have access to the server. Welcome!"
	dmRejoin  = "I could not find you in the server. Please make sure you have rejoined the server, then send `DONE` again."
	dmError   = "An unexpected error occurred. Please contact an administrator for help."
)

// Bot держит gateway-соединение и маппит события Discord на VerificationService:
// слэш-команда /verify начинает сессию, личное сообщение DONE завершает её.
type Bot struct {
	session *discordgo.Session
	svc     services.VerificationService
	chat    services.ChatClient
	guildID string
}

func New(session *discordgo.Session, svc services.VerificationService, chat services.ChatClient, guildID string) *Bot {
	return &Bot{session: session, svc: svc, chat: chat, guildID: guildID}
}

// Start открывает gateway и регистрирует команду для одного сервера.
func (b *Bot) Start() error {
	b.session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onMessageCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("bot gateway open: %w", err)
	}
	log.Printf("[BOT] logged in as %s", b.session.State.User.Username)

	_, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.guildID, &discordgo.ApplicationCommand{
		Name:        commandName,
		Description: "Starts the verification process to gain access to the server.",
	})
	if err != nil {
		return fmt.Errorf("bot register command: %w", err)
	}
	log.Printf("[BOT] registered /%s for guild %s", commandName, b.guildID)
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

// onInteractionCreate — Command Gateway: единственная точка входа в issued.
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand || i.ApplicationCommandData().Name != commandName {
		return
	}

	user := i.User
	if i.Member != nil {
		user = i.Member.User
	}
	if user == nil {
		return
	}
	log.Printf("[BOT] /%s from userID=%s (%s)", commandName, user.ID, user.Username)

	reply := replyDMSent
	switch err := b.svc.Begin(context.Background(), user.ID, user.Username); {
	case err == nil:
	case errors.Is(err, services.ErrDMUnavailable):
		reply = replyDMClosed
	default:
		log.Printf("[BOT][err] begin userID=%s: %v", user.ID, err)
		reply = replyCommandFailed
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: reply,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("[BOT][err] interaction respond userID=%s: %v", user.ID, err)
	}
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	b.handleDM(context.Background(), m.Author.ID, m.Author.Bot, m.GuildID, m.Content)
}

// handleDM — Reply Listener. Всё, что не "DONE" в личке от человека,
// молча игнорируется.
func (b *Bot) handleDM(ctx context.Context, userID string, fromBot bool, guildID, content string) {
	if fromBot {
		return
	}
	if guildID != "" {
		// сообщение из канала сервера, а не из лички
		return
	}
	if !isCompletionReply(content) {
		return
	}
	log.Printf("[BOT] received %q from userID=%s", completionKeyword, userID)

	var text string
	switch err := b.svc.Complete(ctx, userID); {
	case err == nil:
		text = dmSuccess
	case errors.Is(err, services.ErrNotInGuild):
		text = dmRejoin
	default:
		log.Printf("[BOT][err] complete userID=%s: %v", userID, err)
		text = dmError
	}

	if err := b.chat.SendDM(userID, text); err != nil {
		log.Printf("[BOT][err] outcome dm userID=%s: %v", userID, err)
	}
}

// isCompletionReply: обрезаем пробелы, сравниваем без учёта регистра.
// Точного совпадения достаточно — "done!" не считается.
func isCompletionReply(content string) bool {
	return strings.EqualFold(strings.TrimSpace(content), completionKeyword)
}
