package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/autovoice-bot/internal/domain"
)

// Gateway adapta la sesión de discordgo al puerto que consume el manager.
// La lógica interna nunca ve tipos de discordgo: todo se traduce acá.
type Gateway struct {
	s *discordgo.Session
}

func NewGateway(s *discordgo.Session) *Gateway { return &Gateway{s: s} }

func (g *Gateway) CreateChannel(ctx context.Context, guildID string, p domain.CreateChannelParams) (string, error) {
	ch, err := g.s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 p.Name,
		Type:                 discordgo.ChannelTypeGuildVoice,
		UserLimit:            p.UserLimit,
		ParentID:             p.ParentID,
		PermissionOverwrites: toDiscordOverwrites(p.Permissions),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return ch.ID, nil
}

func (g *Gateway) MoveMember(ctx context.Context, guildID, memberID, channelID string) error {
	return g.s.GuildMemberMove(guildID, memberID, &channelID, discordgo.WithContext(ctx))
}

func (g *Gateway) DeleteChannel(ctx context.Context, channelID, reason string) error {
	_, err := g.s.ChannelDelete(channelID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return err
}

// FetchChannel intenta primero el state local y cae a REST si no está
// (mismo patrón que safeGetChannel).
func (g *Gateway) FetchChannel(ctx context.Context, channelID string) (domain.ChannelInfo, error) {
	ch, err := g.s.State.Channel(channelID)
	if err != nil || ch == nil {
		ch, err = g.s.Channel(channelID, discordgo.WithContext(ctx))
		if err != nil {
			return domain.ChannelInfo{}, err
		}
		_ = g.s.State.ChannelAdd(ch)
	}
	return domain.ChannelInfo{
		ID:          ch.ID,
		GuildID:     ch.GuildID,
		Name:        ch.Name,
		ParentID:    ch.ParentID,
		Permissions: fromDiscordOverwrites(ch.PermissionOverwrites),
	}, nil
}

func toDiscordOverwrites(in []domain.PermissionOverwrite) []*discordgo.PermissionOverwrite {
	if len(in) == 0 {
		return nil
	}
	out := make([]*discordgo.PermissionOverwrite, 0, len(in))
	for _, o := range in {
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    o.TargetID,
			Type:  discordgo.PermissionOverwriteType(o.Type),
			Allow: o.Allow,
			Deny:  o.Deny,
		})
	}
	return out
}

func fromDiscordOverwrites(in []*discordgo.PermissionOverwrite) []domain.PermissionOverwrite {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.PermissionOverwrite, 0, len(in))
	for _, o := range in {
		out = append(out, domain.PermissionOverwrite{
			TargetID: o.ID,
			Type:     int(o.Type),
			Allow:    o.Allow,
			Deny:     o.Deny,
		})
	}
	return out
}
