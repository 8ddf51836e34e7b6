package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/autovoice-bot/internal/domain"
)

// onVoiceStateUpdate traduce el evento crudo de discordgo a la vista mínima
// que entiende el manager: (canal anterior, canal nuevo, miembro, guild).
// BeforeUpdate viene nil cuando el usuario recién entra a voz.
func (r *Router) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.GuildID != r.guildID {
		return
	}
	prev := ""
	if vs.BeforeUpdate != nil {
		prev = vs.BeforeUpdate.ChannelID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	r.mgr.HandleVoiceEvent(ctx, domain.VoiceEvent{
		GuildID:       vs.GuildID,
		MemberID:      vs.UserID,
		PrevChannelID: prev,
		NewChannelID:  vs.ChannelID,
	})
}
