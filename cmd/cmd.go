package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"community-backend/internal/config"
	"community-backend/internal/events"
	"community-backend/internal/handlers"
	"community-backend/internal/mailer"
	"community-backend/internal/middleware"
	"community-backend/internal/notify"
	"community-backend/internal/repository"
	"community-backend/internal/services"
	"community-backend/internal/session"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Run starts the HTTP server and blocks until SIGINT or SIGTERM
func Run() {
	cfg := loadConfig()
	ctx := context.Background()

	db := openDatabase(ctx, cfg)
	defer db.Close()
	store := repository.NewStore(db)

	s3Client, err := newS3Client(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create S3 client")
	}
	files, local, err := newFileStore(cfg, s3Client)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create upload storage")
	}

	sessions := newSessionStore(ctx, cfg)
	publisher := newPublisher(cfg)
	defer publisher.Close()

	pusher, err := notify.New(cfg.APNs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load APNs certificate")
	}
	mail := mailer.New(cfg.SMTP)

	// Initialize services
	wsHub := services.NewWSHub()
	dispatcher := services.NewDispatcher(wsHub, store.Users, pusher, publisher)
	sessionTTL := time.Duration(cfg.Redis.SessionTTL) * time.Hour

	userService := services.NewUserService(store, files, sessions, dispatcher, cfg.JWT.Secret, sessionTTL)
	accountService := services.NewAccountService(store, files, mail, dispatcher)
	socialService := services.NewSocialService(store, dispatcher)
	conversationService := services.NewConversationService(store, files, dispatcher)
	moderationService := services.NewModerationService(store, dispatcher)
	feedService := services.NewFeedService(store)
	photoService := services.NewPhotoService(store, files)
	backups := newBackupService(cfg, db, s3Client)

	// Initialize handlers
	maxUpload := cfg.Storage.MaxUploadBytes()
	userHandler := handlers.NewUserHandler(userService, accountService, maxUpload)
	socialHandler := handlers.NewSocialHandler(socialService, sessions)
	chatHandler := handlers.NewChatHandler(conversationService, sessions, maxUpload)
	feedHandler := handlers.NewFeedHandler(feedService, moderationService, sessions)
	photoHandler := handlers.NewPhotoHandler(photoService, sessions, maxUpload)
	moderationHandler := handlers.NewModerationHandler(moderationService, sessions)
	adminHandler := handlers.NewAdminHandler(accountService, backups, sessions)
	healthHandler := handlers.NewHealthHandler(store)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService)

	// Setup router
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", healthHandler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.Register)
		r.Post("/sessions", userHandler.Login)
		r.Get("/health", healthHandler.Health)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))

			r.Delete("/sessions", userHandler.Logout)
			r.Get("/flash", userHandler.Flash)
			r.Get("/profile", userHandler.Me)
			r.Put("/profile", userHandler.UpdateProfile)
			r.Post("/profile/push-token", userHandler.RegisterPushToken)
			r.Post("/profile/delete", userHandler.DeleteProfile)
			r.Get("/users/{id}", userHandler.ViewUser)
			r.Get("/members", userHandler.Members)
			r.Get("/dashboard", feedHandler.Dashboard)

			r.Get("/connections", socialHandler.ListConnections)
			r.Post("/connections/{id}/request", socialHandler.SendRequest)
			r.Post("/connections/requests/{id}/accept", socialHandler.AcceptRequest)
			r.Post("/connections/requests/{id}/reject", socialHandler.RejectRequest)
			r.Delete("/connections/{id}", socialHandler.RemoveConnection)

			r.Get("/conversations", chatHandler.ListConversations)
			r.Get("/conversations/{id}", chatHandler.OpenConversation)
			r.Post("/conversations/direct/{userID}", chatHandler.StartDirect)
			r.Post("/conversations/groups", chatHandler.CreateGroup)
			r.Post("/conversations/{id}/messages", chatHandler.PostMessage)

			r.Get("/posts", feedHandler.ListPosts)
			r.Post("/posts", feedHandler.CreatePost)
			r.Post("/posts/{id}/like", feedHandler.ToggleLike)
			r.Post("/posts/{id}/comments", feedHandler.AddComment)
			r.Post("/posts/{id}/report", feedHandler.ReportPost)
			r.Post("/posts/{id}/delete", feedHandler.DeletePost)
			r.Post("/comments/{id}/report", feedHandler.ReportComment)

			r.Get("/photos", photoHandler.GetPhotos)
			r.Post("/photos", photoHandler.UploadPhoto)
			r.Post("/photos/{id}/like", photoHandler.ToggleLike)
			r.Post("/photos/{id}/comments", photoHandler.AddComment)
			r.Post("/photos/{id}/delete", photoHandler.DeletePhoto)

			r.Get("/moderation/reports", moderationHandler.ListReports)
			r.Post("/moderation/reports/{id}/resolve", moderationHandler.Resolve)
			r.Post("/moderation/reports/{id}/remove-target", moderationHandler.RemoveTarget)

			r.Get("/admin/registrations", adminHandler.Registrations)
			r.Post("/admin/users/{id}/role", adminHandler.ChangeRole)
			r.Post("/admin/users/{id}/approve", adminHandler.Approve)
			r.Post("/admin/users/{id}/reject", adminHandler.Reject)
			r.Get("/admin/backups", adminHandler.ListBackups)
			r.Post("/admin/backups", adminHandler.CreateBackup)
			r.Get("/admin/backups/{name}", adminHandler.DownloadBackup)
		})
	})

	// Uploaded files are served directly only from local storage
	if local != nil {
		r.Handle(cfg.Storage.PublicURL+"/*", http.StripPrefix(cfg.Storage.PublicURL, http.FileServer(http.Dir(local.Dir()))))
	}

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Int("online", wsHub.OnlineCount()).Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// newSessionStore connects to Redis, or keeps sessions in memory when no
// address is configured
func newSessionStore(ctx context.Context, cfg *config.Config) session.Store {
	ttl := time.Duration(cfg.Redis.SessionTTL) * time.Hour
	if cfg.Redis.Addr == "" {
		log.Warn().Msg("No Redis address configured; sessions are kept in memory")
		return session.NewMemoryStore(ttl)
	}

	client, err := session.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis session store connected")
	return session.NewRedisStore(client, ttl)
}

// newPublisher writes domain events to Kafka, or to the log without brokers
func newPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.LogPublisher{}
	}
	log.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Msg("Publishing events to Kafka")
	return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
