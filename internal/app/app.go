package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gameverify/internal/bot"
	"gameverify/internal/config"
	"gameverify/internal/handlers"
	"gameverify/internal/repositories"
	"gameverify/internal/routes"
	"gameverify/internal/services"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
)

func Run() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[APP] config: %v", err)
	}

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("[APP] db open: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("[APP] db close: %v", err)
		}
	}()

	startupCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := db.PingContext(startupCtx); err != nil {
		log.Fatalf("[APP] db ping: %v", err)
	}

	// === Repos ===
	userRepo := repositories.NewVerifiedUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)

	// Схема должна быть готова до того, как бот начнёт принимать события.
	if err := userRepo.EnsureSchema(startupCtx); err != nil {
		log.Fatalf("[APP] schema: %v", err)
	}
	if err := sessionRepo.EnsureSchema(startupCtx); err != nil {
		log.Fatalf("[APP] schema: %v", err)
	}
	log.Printf("[APP] database tables are ready")

	// === Discord ===
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		log.Fatalf("[APP] discord session: %v", err)
	}
	discordSvc := services.NewDiscordService(session, cfg.Discord.GuildID, cfg.Discord.VerifiedRoleID)

	// === Services ===
	var encoder services.LinkEncoder
	if cfg.Game.URL != "" {
		encoder = &services.QueryLinkEncoder{BaseURL: cfg.Game.URL}
	} else {
		encoder = &services.LaunchDataLinkEncoder{PlaceID: cfg.Game.PlaceID}
	}
	tickets := services.NewTicketIssuer(cfg.Webhook.TicketSecret)
	verifySvc := services.NewVerificationService(discordSvc, encoder, tickets, sessionRepo, userRepo)

	// === Bot ===
	b := bot.New(session, verifySvc, discordSvc, cfg.Discord.GuildID)
	if err := b.Start(); err != nil {
		log.Fatalf("[APP] bot start: %v", err)
	}
	defer func() {
		if err := b.Stop(); err != nil {
			log.Printf("[APP] bot stop: %v", err)
		}
	}()

	// === Gin ===
	router := gin.Default()
	routes.SetupRoutes(router, handlers.NewVerifyHandler(verifySvc))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[APP] verification web server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[APP] http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[APP] shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[APP] http shutdown: %v", err)
	}
}
