package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL  string
	DiscordToken string
	DiscordGuild string

	ValkeyAddr    string // opcional; vacío = sin cache sync
	CacheTTLSecs  int    // TTL del snapshot publicado
	HTTPAddr      string // opcional, default :8080
	AdminToken    string // secret del server HTTP admin; vacío = endpoints cerrados
	AdminRoleIDs  []string
	CleanupTickMS int // cadencia del sweep en ms
}

func Load() Config {
	get := func(k string, req bool) string {
		v := os.Getenv(k)
		if v == "" && req {
			log.Fatalf("faltante env %s", k)
		}
		return v
	}
	getInt := func(k string, def int) int {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("env %s inválida: %v", k, err)
		}
		return n
	}

	cfg := Config{
		DatabaseURL:   get("DATABASE_URL", true),
		DiscordToken:  get("DISCORD_BOT_TOKEN", true),
		DiscordGuild:  get("DISCORD_GUILD_ID", true),
		ValkeyAddr:    get("VALKEY_ADDR", false),
		CacheTTLSecs:  getInt("CACHE_TTL_SECONDS", 300),
		HTTPAddr:      get("HTTP_ADDR", false),
		AdminToken:    get("ADMIN_API_TOKEN", false),
		CleanupTickMS: getInt("CLEANUP_TICK_MS", 30000),
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if raw := get("ADMIN_ROLE_IDS", false); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.AdminRoleIDs = append(cfg.AdminRoleIDs, id)
			}
		}
	}
	return cfg
}
