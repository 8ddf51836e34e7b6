package discord

import "github.com/bwmarrin/discordgo"

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "autovoice",
		Description: "Canales de voz autogenerados",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "template_set",
				Description: "Crear o actualizar una plantilla (admins)",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:         discordgo.ApplicationCommandOptionChannel,
						Name:         "channel",
						Description:  "Canal de voz plantilla",
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice},
						Required:     true,
					},
					{Type: discordgo.ApplicationCommandOptionString, Name: "name_pattern", Description: "Patrón del nombre, ej: Auto-{number}"},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "max_channels", Description: "Máximo de canales generados"},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "empty_timeout_minutes", Description: "Minutos vacío antes de borrar"},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "user_limit", Description: "Límite de usuarios del canal generado"},
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Habilitada (default true)"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "template_remove",
				Description: "Eliminar una plantilla (admins)",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:         discordgo.ApplicationCommandOptionChannel,
						Name:         "channel",
						Description:  "Canal plantilla a eliminar",
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice},
						Required:     true,
					},
				},
			},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "templates", Description: "Ver las plantillas configuradas"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "stats", Description: "Canales activos y cola de espera"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "cleanup", Description: "Forzar limpieza de canales vacíos (admins)"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "reload", Description: "Recargar plantillas desde la DB (admins)"},
		},
	},
}
