package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vetcare-backend/internal/appointments"
	"vetcare-backend/internal/auth"
	"vetcare-backend/internal/cache"
	"vetcare-backend/internal/config"
	"vetcare-backend/internal/db"
	"vetcare-backend/internal/media"
	"vetcare-backend/internal/messaging"
	"vetcare-backend/internal/middleware"
	"vetcare-backend/internal/notifications"
	"vetcare-backend/internal/pets"
	"vetcare-backend/internal/realtime"
	"vetcare-backend/internal/services"
	"vetcare-backend/internal/users"
	"vetcare-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// ownerDirectory adapts the users service to the lookups the appointment and
// messaging handlers need.
type ownerDirectory struct {
	users *users.Service
}

func (d ownerDirectory) OwnerByID(ctx context.Context, id string) (appointments.Owner, error) {
	u, err := d.users.GetByID(ctx, id)
	if err != nil {
		return appointments.Owner{}, err
	}
	return appointments.Owner{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

func (d ownerDirectory) DisplayName(ctx context.Context, id string) (string, error) {
	u, err := d.users.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Name, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected")
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cacheStore cache.Cache = cache.NewNoop()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		cacheStore = redisCache
	}

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = &auth.Manager{
			Secret:     []byte(cfg.JWTSecret),
			AccessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
			RefreshTTL: time.Duration(cfg.RefreshTTLMinutes) * time.Minute,
			Issuer:     "vetcare-backend",
		}
	} else {
		logger.Warn("JWT_SECRET not set, auth disabled")
	}

	mailer := notifications.NewBrevoClient(cfg.MailAPIKey, cfg.MailSenderEmail, cfg.MailSenderName, cfg.MailSandbox)
	if mailer == nil {
		logger.Info("mail relay disabled")
	} else {
		logger.Info("mail relay enabled", slog.String("sender", cfg.MailSenderEmail), slog.Bool("sandbox", cfg.MailSandbox))
	}

	mediaClient := media.NewCloudinaryClient(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	if mediaClient == nil {
		logger.Info("media storage disabled")
	} else {
		logger.Info("media storage enabled", slog.String("folder", cfg.CloudinaryFolder))
	}

	val := validation.New()
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second

	var resetMailer users.ResetMailer
	if mailer != nil {
		resetMailer = mailer
	}
	var userPhotos users.PhotoStore
	var petPhotos pets.PhotoStore
	if mediaClient != nil {
		userPhotos = mediaClient
		petPhotos = mediaClient
	}

	usersRepo := users.NewRepository(cols.Users, cols.PasswordResets)
	usersService := users.NewService(usersRepo, resetMailer, userPhotos, cfg.Timezone, time.Duration(cfg.OTPTTLMinutes)*time.Minute, logger)
	usersHandler := users.NewHandler(usersService, jwtManager, val, logger, cfg.CookieSecure, cfg.StaffSetupKey)

	directory := ownerDirectory{users: usersService}

	var notifier appointments.Notifier
	if mailer != nil {
		notifier = mailer
	}
	appointmentsRepo := appointments.NewRepository(cols.Appointments, cols.Medications, cols.ReservationBlocks)
	appointmentsService := appointments.NewService(appointmentsRepo, cfg.Timezone, notifier)
	appointmentsHandler := appointments.NewHandler(appointmentsService, directory, val, logger, cacheStore, cacheTTL)

	messagingRepo := messaging.NewRepository(cols.Threads, cols.Messages)
	messagingService := messaging.NewService(messagingRepo, cfg.Timezone)
	messagingHandler := messaging.NewHandler(messagingService, directory, val, logger)

	petsRepo := pets.NewRepository(cols.Pets)
	petsService := pets.NewService(petsRepo, petPhotos, cfg.Timezone, logger)
	petsHandler := pets.NewHandler(petsService, val, logger)

	catalog := services.NewCatalog(cols.Services, cfg.Timezone)
	servicesHandler := services.NewHandler(catalog, val, logger, cacheStore, cacheTTL)

	hub := realtime.NewHub()
	wsHandler := realtime.NewWSHandler(hub, logger, cfg.FrontendOrigin)
	watcherCtx, watcherCancel := context.WithCancel(context.Background())
	defer watcherCancel()
	realtime.NewWatcher(cols.Appointments, cols.Messages, cols.Threads, hub, cacheStore, logger).Run(watcherCtx)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigin))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	window := time.Duration(cfg.RateLimitWindowSec) * time.Second
	bookingLimiter := middleware.NewRateLimiter(cfg.RateLimitBookings, window)
	messageLimiter := middleware.NewRateLimiter(cfg.RateLimitMessages, window)
	otpLimiter := middleware.NewRateLimiter(cfg.RateLimitOTP, window)

	r.Route("/api", func(api chi.Router) {
		api.Get("/services", servicesHandler.List)
		api.Get("/availability", appointmentsHandler.Availability)

		api.Route("/auth", func(a chi.Router) {
			a.Post("/register", usersHandler.Register)
			a.Post("/login", usersHandler.Login)
			a.Post("/refresh", usersHandler.Refresh)
			a.Post("/logout", usersHandler.Logout)
			a.With(otpLimiter.Middleware).Post("/password-reset", usersHandler.RequestReset)
			a.Post("/password-reset/confirm", usersHandler.ConfirmReset)
			a.Post("/bootstrap", usersHandler.Bootstrap)
		})

		api.Group(func(protected chi.Router) {
			protected.Use(middleware.RequireUser(jwtManager))

			protected.Get("/me", usersHandler.Me)
			protected.Put("/me", usersHandler.UpdateProfile)
			protected.Put("/me/photo", usersHandler.SetPhoto)

			protected.Get("/pets", petsHandler.List)
			protected.Post("/pets", petsHandler.Create)
			protected.Get("/pets/{id}", petsHandler.Get)
			protected.Put("/pets/{id}", petsHandler.Update)
			protected.Put("/pets/{id}/photo", petsHandler.SetPhoto)
			protected.Delete("/pets/{id}", petsHandler.Delete)

			protected.With(bookingLimiter.Middleware).Post("/appointments", appointmentsHandler.Book)
			protected.Get("/appointments", appointmentsHandler.ListMine)
			protected.Get("/appointments/{id}", appointmentsHandler.Get)

			protected.With(messageLimiter.Middleware).Post("/messages", messagingHandler.Send)
			protected.Get("/messages", messagingHandler.History)
			protected.Post("/messages/seen", messagingHandler.MarkSeen)

			protected.Get("/subscribe", wsHandler.Subscribe)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(middleware.RequireStaff(cfg.StaffAPIKey, jwtManager))

			admin.Get("/appointments", appointmentsHandler.AdminList)
			admin.Get("/appointments/{id}", appointmentsHandler.Get)
			admin.Post("/appointments/{id}/approve", appointmentsHandler.AdminApprove)
			admin.Post("/appointments/{id}/decline", appointmentsHandler.AdminDecline)
			admin.Post("/appointments/{id}/followup", appointmentsHandler.AdminFollowUp)
			admin.Post("/appointments/{id}/medications", appointmentsHandler.AdminAddMedications)

			admin.Post("/blocks", appointmentsHandler.AdminCreateBlock)
			admin.Delete("/blocks/{id}", appointmentsHandler.AdminDeleteBlock)

			admin.Get("/threads", messagingHandler.AdminListThreads)
			admin.Get("/threads/{id}", messagingHandler.AdminThreadHistory)
			admin.Post("/threads/{id}/messages", messagingHandler.AdminReply)
			admin.Post("/threads/{id}/seen", messagingHandler.AdminMarkSeen)

			admin.Get("/users", usersHandler.AdminListUsers)
			admin.Post("/users", usersHandler.AdminCreateStaff)

			admin.Post("/services", servicesHandler.AdminCreate)
			admin.Put("/services/{slug}", servicesHandler.AdminUpdate)
			admin.Delete("/services/{slug}", servicesHandler.AdminDelete)

			admin.Get("/subscribe", wsHandler.Subscribe)
		})
	})

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: r,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	watcherCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
}
