package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/jose-valero/autovoice-bot/internal/domain"
)

// Publisher empuja el set de canales activos por guild a Valkey para los
// consumidores de lectura (dashboard, API). Es una proyección best-effort:
// la verdad vive en memoria del manager, acá sólo reflejamos.
type Publisher struct {
	client valkey.Client
	ttl    time.Duration
}

func NewPublisher(addr string, ttl time.Duration) (*Publisher, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping: %w", err)
	}
	return &Publisher{client: client, ttl: ttl}, nil
}

func (p *Publisher) key(guildID string) string {
	return "autovoice:channels:" + guildID
}

// SetAutoChannels reemplaza el snapshot del guild. El TTL hace de limpieza
// si el bot muere sin publicar más.
func (p *Publisher) SetAutoChannels(ctx context.Context, guildID string, channels []domain.ActiveAutoChannel) error {
	payload, err := json.Marshal(channels)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	cmd := p.client.B().Set().
		Key(p.key(guildID)).
		Value(string(payload)).
		Ex(p.ttl).
		Build()
	if err := p.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

// GetAutoChannels lee el snapshot publicado (lo usa el server HTTP admin).
func (p *Publisher) GetAutoChannels(ctx context.Context, guildID string) ([]domain.ActiveAutoChannel, error) {
	res, err := p.client.Do(ctx, p.client.B().Get().Key(p.key(guildID)).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []domain.ActiveAutoChannel
	if err := json.Unmarshal(res, &out); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return out, nil
}

func (p *Publisher) Close() { p.client.Close() }
