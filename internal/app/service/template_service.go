package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jose-valero/autovoice-bot/internal/domain"
	"github.com/jose-valero/autovoice-bot/internal/infra/storage"
)

// TemplateService administra las plantillas (CRUD contra DB) y recarga el
// registry del manager como snapshot completo después de cada cambio.
type TemplateService struct {
	repo TemplateRepo
	gw   Gateway
	mgr  *AutoChannelService
}

func NewTemplateService(repo TemplateRepo, gw Gateway, mgr *AutoChannelService) *TemplateService {
	return &TemplateService{repo: repo, gw: gw, mgr: mgr}
}

func (s *TemplateService) Set(ctx context.Context, t storage.ChannelTemplate) (string, error) {
	if t.NamePattern == "" {
		t.NamePattern = "Auto-{number}"
	}
	if t.MaxChannels < 0 || t.EmptyTimeoutMinutes < 0 || t.UserLimit < 0 {
		return "❌ max_channels, empty_timeout y user_limit no pueden ser negativos.", nil
	}
	if err := s.repo.Upsert(ctx, t); err != nil {
		return "", err
	}
	if err := s.Reload(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Plantilla <#%s> guardada: patrón `%s`, máx **%d**, timeout **%dm**.",
		t.TemplateChannelID, t.NamePattern, t.MaxChannels, t.EmptyTimeoutMinutes), nil
}

func (s *TemplateService) Remove(ctx context.Context, guildID, templateChannelID string) (string, error) {
	ok, err := s.repo.SoftDelete(ctx, guildID, templateChannelID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "ℹ️ Ese canal no era una plantilla.", nil
	}
	if err := s.Reload(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Plantilla <#%s> eliminada. Sus canales activos se limpian solos al vaciarse.", templateChannelID), nil
}

func (s *TemplateService) List(ctx context.Context, guildID string) (string, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return "", err
	}
	out := "📋 **Plantillas**\n"
	n := 0
	for _, t := range rows {
		if t.GuildID != guildID {
			continue
		}
		n++
		state := "on"
		if !t.Enabled {
			state = "off"
		}
		out += fmt.Sprintf("%d) <#%s> — `%s` · máx %d · timeout %dm · %s\n",
			n, t.TemplateChannelID, t.NamePattern, t.MaxChannels, t.EmptyTimeoutMinutes, state)
	}
	if n == 0 {
		return "ℹ️ No hay plantillas configuradas.", nil
	}
	return out, nil
}

// Reload arma el snapshot completo de configs y lo carga en el manager.
// El parent y los permission overwrites se leen del canal plantilla en vivo
// (el canal generado hereda la categoría y permisos de su plantilla); si el
// fetch falla cargamos la fila igual, sin parent ni overwrites.
func (s *TemplateService) Reload(ctx context.Context) error {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return err
	}

	configs := make([]domain.TemplateConfig, 0, len(rows))
	for _, t := range rows {
		cfg := domain.TemplateConfig{
			TemplateChannelID: t.TemplateChannelID,
			GuildID:           t.GuildID,
			NamePattern:       t.NamePattern,
			MaxChannels:       t.MaxChannels,
			EmptyTimeout:      time.Duration(t.EmptyTimeoutMinutes) * time.Minute,
			UserLimit:         t.UserLimit,
			Enabled:           t.Enabled,
		}
		if info, err := s.gw.FetchChannel(ctx, t.TemplateChannelID); err != nil {
			log.Printf("[tpl] fetch plantilla=%s: %v", t.TemplateChannelID, err)
		} else {
			cfg.ParentID = info.ParentID
			cfg.Permissions = info.Permissions
		}
		configs = append(configs, cfg)
	}

	s.mgr.LoadChannelConfigs(configs)
	return nil
}
