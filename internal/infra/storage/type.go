package storage

import "time"

// ChannelTemplate es la fila persistida de una plantilla. El registry en
// memoria del manager se arma desde acá en cada reload.
type ChannelTemplate struct {
	TemplateChannelID   string
	GuildID             string
	NamePattern         string
	MaxChannels         int
	EmptyTimeoutMinutes int
	UserLimit           int
	Enabled             bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time
}
