package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

// ChatClient is the slice of the chat platform the verification flow needs.
// Guild and role identifiers are bound at construction; handlers pass only
// the user.
type ChatClient interface {
	SendDM(userID, text string) error
	KickFromGuild(userID, reason string) error
	AddVerifiedRole(userID string) error
	IsGuildMember(userID string) (bool, error)
}

type DiscordService struct {
	session *discordgo.Session
	guildID string
	roleID  string
}

func NewDiscordService(session *discordgo.Session, guildID, roleID string) *DiscordService {
	return &DiscordService{session: session, guildID: guildID, roleID: roleID}
}

func (d *DiscordService) SendDM(userID, text string) error {
	ch, err := d.session.UserChannelCreate(userID)
	if err != nil {
		log.Printf("[DISCORD][dm][err] open channel userID=%s: %v", userID, err)
		return fmt.Errorf("discord dm channel: %w", err)
	}
	if _, err := d.session.ChannelMessageSend(ch.ID, text); err != nil {
		log.Printf("[DISCORD][dm][err] send userID=%s: %v", userID, err)
		return fmt.Errorf("discord dm send: %w", err)
	}
	return nil
}

func (d *DiscordService) KickFromGuild(userID, reason string) error {
	if err := d.session.GuildMemberDeleteWithReason(d.guildID, userID, reason); err != nil {
		log.Printf("[DISCORD][kick][err] userID=%s: %v", userID, err)
		return fmt.Errorf("discord kick: %w", err)
	}
	log.Printf("[DISCORD][kick] userID=%s removed from guild %s", userID, d.guildID)
	return nil
}

func (d *DiscordService) AddVerifiedRole(userID string) error {
	if err := d.session.GuildMemberRoleAdd(d.guildID, userID, d.roleID); err != nil {
		log.Printf("[DISCORD][role][err] userID=%s: %v", userID, err)
		return fmt.Errorf("discord role add: %w", err)
	}
	return nil
}

// IsGuildMember различает "не участник" (false, nil) и сбой API (false, err).
func (d *DiscordService) IsGuildMember(userID string) (bool, error) {
	_, err := d.session.GuildMember(d.guildID, userID)
	if err == nil {
		return true, nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownMember {
		return false, nil
	}
	return false, fmt.Errorf("discord member fetch: %w", err)
}
