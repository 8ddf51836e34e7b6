package service

import (
	"context"

	"github.com/jose-valero/autovoice-bot/internal/domain"
	"github.com/jose-valero/autovoice-bot/internal/infra/storage"
)

// Lo implementa internal/adapters/discord.Gateway
type Gateway interface {
	CreateChannel(ctx context.Context, guildID string, p domain.CreateChannelParams) (string, error)
	MoveMember(ctx context.Context, guildID, memberID, channelID string) error
	DeleteChannel(ctx context.Context, channelID, reason string) error
	FetchChannel(ctx context.Context, channelID string) (domain.ChannelInfo, error)
}

// Lo implementa internal/infra/cache.Publisher
type CacheSync interface {
	SetAutoChannels(ctx context.Context, guildID string, channels []domain.ActiveAutoChannel) error
}

// Lo implementa internal/infra/storage.TemplateRepo
type TemplateRepo interface {
	Upsert(ctx context.Context, t storage.ChannelTemplate) error
	SoftDelete(ctx context.Context, guildID, templateChannelID string) (bool, error)
	ListActive(ctx context.Context) ([]storage.ChannelTemplate, error)
}
