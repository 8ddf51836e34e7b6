package discord

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/autovoice-bot/internal/app/service"
	"github.com/jose-valero/autovoice-bot/internal/infra/storage"
)

type Router struct {
	s       *discordgo.Session
	guildID string

	mgr *service.AutoChannelService
	tpl *service.TemplateService

	adminRoleIDs   []string
	cleanupLimiter *userLimiter
}

func NewRouter(
	s *discordgo.Session,
	guildID string,
	mgr *service.AutoChannelService,
	tpl *service.TemplateService,
	adminRoleIDs []string,
) *Router {
	return &Router{
		s:              s,
		guildID:        guildID,
		mgr:            mgr,
		tpl:            tpl,
		adminRoleIDs:   adminRoleIDs,
		cleanupLimiter: newUserLimiter(10 * time.Second),
	}
}

func (r *Router) Register() error {
	appID := r.s.State.User.ID
	for _, cmd := range Commands {
		if _, err := r.s.ApplicationCommandCreate(appID, r.guildID, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) Handlers() {
	// Slash commands
	r.s.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		if data.Name != "autovoice" || len(data.Options) == 0 {
			return
		}
		sub := data.Options[0]
		log.Printf("slash: /autovoice %s by=%s guild=%s", sub.Name, ic.Member.User.ID, ic.GuildID)

		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic in slash /autovoice %s: %v", sub.Name, rec)
				ReplyEphemeral(s, ic, "⚠️ Ocurrió un error inesperado.")
			}
		}()

		_ = DeferEphemeral(s, ic)
		ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
		defer cancel()

		switch sub.Name {
		case "template_set":
			if !r.requireAdminOrRoles(s, ic) {
				return
			}
			t := storage.ChannelTemplate{GuildID: ic.GuildID, Enabled: true}
			for _, opt := range sub.Options {
				switch opt.Name {
				case "channel":
					t.TemplateChannelID = opt.ChannelValue(nil).ID
				case "name_pattern":
					t.NamePattern = opt.StringValue()
				case "max_channels":
					t.MaxChannels = int(opt.IntValue())
				case "empty_timeout_minutes":
					t.EmptyTimeoutMinutes = int(opt.IntValue())
				case "user_limit":
					t.UserLimit = int(opt.IntValue())
				case "enabled":
					t.Enabled = opt.BoolValue()
				}
			}
			msg, err := r.tpl.Set(ctx, t)
			if err != nil {
				msg = "⚠️ No pude guardar la plantilla: " + err.Error()
			}
			ReplyEphemeral(s, ic, msg)

		case "template_remove":
			if !r.requireAdminOrRoles(s, ic) {
				return
			}
			chID := sub.Options[0].ChannelValue(nil).ID
			msg, err := r.tpl.Remove(ctx, ic.GuildID, chID)
			if err != nil {
				msg = "⚠️ No pude eliminar la plantilla: " + err.Error()
			}
			ReplyEphemeral(s, ic, msg)

		case "templates":
			msg, err := r.tpl.List(ctx, ic.GuildID)
			if err != nil {
				msg = "⚠️ No pude listar las plantillas: " + err.Error()
			}
			ReplyEphemeral(s, ic, msg)

		case "stats":
			ReplyEphemeral(s, ic, formatStats(r.mgr))

		case "cleanup":
			if !r.requireAdminOrRoles(s, ic) {
				return
			}
			if !r.cleanupLimiter.Allow(ic.Member.User.ID) {
				ReplyEphemeral(s, ic, "⏳ Tranquilo, acabás de pedir una limpieza.")
				return
			}
			done := step("forceCleanup")
			n := r.mgr.ForceCleanup(ctx)
			done()
			ReplyEphemeral(s, ic, fmt.Sprintf("🧹 Limpieza forzada: **%d** canales eliminados.", n))

		case "reload":
			if !r.requireAdminOrRoles(s, ic) {
				return
			}
			if err := r.tpl.Reload(ctx); err != nil {
				ReplyEphemeral(s, ic, "⚠️ No pude recargar: "+err.Error())
				return
			}
			ReplyEphemeral(s, ic, "✅ Plantillas recargadas.")
		}
	})

	// VoiceStateUpdate → evento de membresía para el manager
	r.s.AddHandler(r.onVoiceStateUpdate)
}

func formatStats(mgr *service.AutoChannelService) string {
	st := mgr.Stats()
	out := fmt.Sprintf("📊 **AutoVoice**\n• canales activos: **%d**\n• en cola: **%d**\n", st.TotalChannels, st.QueueSize)
	if len(st.ChannelsByTemplate) == 0 {
		return out
	}
	tpls := make([]string, 0, len(st.ChannelsByTemplate))
	for tpl := range st.ChannelsByTemplate {
		tpls = append(tpls, tpl)
	}
	sort.Strings(tpls)
	for _, tpl := range tpls {
		out += fmt.Sprintf("  - <#%s>: %d\n", tpl, st.ChannelsByTemplate[tpl])
	}
	return out
}
