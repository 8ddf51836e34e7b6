package storage

import (
	"context"
	"database/sql"
	"errors"
)

type TemplateRepo struct{ db *sql.DB }

func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

var ErrNotFound = errors.New("not found")

// Upsert por (guild_id, template_channel_id); revive filas soft-deleted.
func (r *TemplateRepo) Upsert(ctx context.Context, t ChannelTemplate) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO channel_templates
  (template_channel_id, guild_id, name_pattern, max_channels, empty_timeout_minutes, user_limit, enabled, deleted_at)
VALUES
  ($1,$2,$3,$4,$5,$6,$7,NULL)
ON CONFLICT (guild_id, template_channel_id) DO UPDATE SET
  name_pattern          = EXCLUDED.name_pattern,
  max_channels          = EXCLUDED.max_channels,
  empty_timeout_minutes = EXCLUDED.empty_timeout_minutes,
  user_limit            = EXCLUDED.user_limit,
  enabled               = EXCLUDED.enabled,
  updated_at            = now(),
  deleted_at            = NULL
`, t.TemplateChannelID, t.GuildID, t.NamePattern, t.MaxChannels, t.EmptyTimeoutMinutes, t.UserLimit, t.Enabled)
	return err
}

func (r *TemplateRepo) Get(ctx context.Context, guildID, templateChannelID string) (ChannelTemplate, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT template_channel_id, guild_id, name_pattern, max_channels, empty_timeout_minutes, user_limit, enabled, created_at, updated_at
  FROM channel_templates
 WHERE guild_id = $1 AND template_channel_id = $2 AND deleted_at IS NULL
`, guildID, templateChannelID)
	var t ChannelTemplate
	err := row.Scan(&t.TemplateChannelID, &t.GuildID, &t.NamePattern, &t.MaxChannels,
		&t.EmptyTimeoutMinutes, &t.UserLimit, &t.Enabled, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return ChannelTemplate{}, ErrNotFound
	}
	return t, err
}

// ListActive devuelve todas las plantillas vivas (de todos los guilds);
// el snapshot del registry siempre se carga completo.
func (r *TemplateRepo) ListActive(ctx context.Context) ([]ChannelTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT template_channel_id, guild_id, name_pattern, max_channels, empty_timeout_minutes, user_limit, enabled, created_at, updated_at
  FROM channel_templates
 WHERE deleted_at IS NULL
 ORDER BY guild_id, created_at ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChannelTemplate
	for rows.Next() {
		var t ChannelTemplate
		if err := rows.Scan(&t.TemplateChannelID, &t.GuildID, &t.NamePattern, &t.MaxChannels,
			&t.EmptyTimeoutMinutes, &t.UserLimit, &t.Enabled, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TemplateRepo) SoftDelete(ctx context.Context, guildID, templateChannelID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE channel_templates
   SET deleted_at = now(), updated_at = now()
 WHERE guild_id = $1
   AND template_channel_id = $2
   AND deleted_at IS NULL
`, guildID, templateChannelID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
