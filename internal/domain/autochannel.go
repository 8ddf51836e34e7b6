package domain

import (
	"strconv"
	"strings"
	"time"
)

// VoiceEvent es la vista mínima de una notificación de voz del gateway:
// sólo los campos que el manager necesita, traducidos en el adapter.
type VoiceEvent struct {
	GuildID       string
	MemberID      string
	PrevChannelID string // "" = no estaba en voz
	NewChannelID  string // "" = salió de voz
}

// PermissionOverwrite se pasa tal cual al crear el canal generado.
type PermissionOverwrite struct {
	TargetID string
	Type     int
	Allow    int64
	Deny     int64
}

// TemplateConfig es la regla de generación de un canal plantilla.
// El registry se reemplaza completo en cada reload (snapshot, sin parches).
type TemplateConfig struct {
	TemplateChannelID string
	GuildID           string
	NamePattern       string // contiene "{number}", ej: "Auto-{number}"
	MaxChannels       int    // 0 = no genera canales
	EmptyTimeout      time.Duration
	UserLimit         int
	ParentID          string
	Permissions       []PermissionOverwrite
	Enabled           bool
}

// ActiveAutoChannel es un canal generado que el manager sigue trackeando.
// Se publica tal cual al cache, de ahí los tags.
type ActiveAutoChannel struct {
	ChannelID         string        `json:"channel_id"`
	TemplateChannelID string        `json:"template_channel_id"`
	GuildID           string        `json:"guild_id"`
	Name              string        `json:"name"`
	MemberCount       int           `json:"member_count"`
	EmptyAt           time.Time     `json:"empty_at,omitzero"`
	EmptyTimeout      time.Duration `json:"empty_timeout"`
	SequenceNumber    int           `json:"sequence_number"`
}

// ChannelInfo es el DTO mínimo de metadata de canal que leemos del gateway.
type ChannelInfo struct {
	ID          string
	GuildID     string
	Name        string
	ParentID    string
	Permissions []PermissionOverwrite
}

// CreateChannelParams viaja al gateway al crear un canal de voz generado.
type CreateChannelParams struct {
	Name        string
	ParentID    string
	UserLimit   int
	Permissions []PermissionOverwrite
}

// AutoChannelStats es el snapshot que devuelve Stats(); siempre recalculado.
type AutoChannelStats struct {
	TotalChannels      int            `json:"total_channels"`
	ChannelsByTemplate map[string]int `json:"channels_by_template"`
	QueueSize          int            `json:"queue_size"`
}

const numberPlaceholder = "{number}"

// RenderChannelName sustituye el placeholder numérico del patrón.
// Si el patrón no trae "{number}" apendeamos el número para no colisionar.
func RenderChannelName(pattern string, n int) string {
	if !strings.Contains(pattern, numberPlaceholder) {
		return pattern + " " + strconv.Itoa(n)
	}
	return strings.ReplaceAll(pattern, numberPlaceholder, strconv.Itoa(n))
}
