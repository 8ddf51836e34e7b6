package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	discordrouter "github.com/jose-valero/autovoice-bot/internal/adapters/discord"
	"github.com/jose-valero/autovoice-bot/internal/adapters/httpadmin"
	"github.com/jose-valero/autovoice-bot/internal/app/service"
	"github.com/jose-valero/autovoice-bot/internal/infra/cache"
	"github.com/jose-valero/autovoice-bot/internal/infra/config"
	"github.com/jose-valero/autovoice-bot/internal/infra/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	_ = godotenv.Load()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.Load()

	// DB
	db, err := storage.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := storage.Migrate(db); err != nil {
		log.Fatal("migrate:", err)
	}
	log.Println("✅ DB lista y migrada")

	// Repos
	templatesRepo := storage.NewTemplateRepo(db)

	// Cache sync (opcional)
	var pub *cache.Publisher
	if cfg.ValkeyAddr != "" {
		pub, err = cache.NewPublisher(cfg.ValkeyAddr, time.Duration(cfg.CacheTTLSecs)*time.Second)
		if err != nil {
			// sin cache seguimos igual: es una proyección, no la verdad
			log.Printf("⚠️ valkey no disponible, sigo sin cache: %v", err)
			pub = nil
		} else {
			defer pub.Close()
		}
	}

	// Discord session
	auth := cfg.DiscordToken
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(auth)), "bot ") {
		auth = "Bot " + strings.TrimSpace(auth)
	}
	s, err := discordgo.New(auth)
	if err != nil {
		log.Fatal(err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	if err := s.Open(); err != nil {
		log.Fatal(err)
	}
	defer s.Close()
	log.Printf("✅ Conectado como %s (%s)", s.State.User.Username, s.State.User.ID)

	// Services
	gw := discordrouter.NewGateway(s)
	var cacheSync service.CacheSync
	if pub != nil {
		cacheSync = pub
	}
	mgr := service.NewAutoChannelService(gw, cacheSync)
	defer mgr.Stop()
	tplSvc := service.NewTemplateService(templatesRepo, gw, mgr)

	// Carga inicial del registry desde la DB
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := tplSvc.Reload(ctx); err != nil {
		log.Fatalf("cargando plantillas: %v", err)
	}
	cancel()

	// Sweep periódico de canales vacíos
	mgr.Start(time.Duration(cfg.CleanupTickMS) * time.Millisecond)

	// Server HTTP admin (stats / cleanup / snapshot)
	var snaps httpadmin.SnapshotReader
	if pub != nil {
		snaps = pub
	}
	web := httpadmin.New(cfg.AdminToken, mgr, snaps)
	go web.Start(cfg.HTTPAddr)

	// Router (slash commands + voice events)
	r := discordrouter.NewRouter(s, cfg.DiscordGuild, mgr, tplSvc, cfg.AdminRoleIDs)
	if err := r.Register(); err != nil {
		log.Fatalf("registrando comandos: %v", err)
	}
	r.Handlers()
	log.Printf("✅ comandos registrados en guild %s", cfg.DiscordGuild)

	// Esperar señal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-stop
}
