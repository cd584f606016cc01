package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/studylog/studylog-api/internal/auth"
	"github.com/studylog/studylog-api/internal/cache"
	"github.com/studylog/studylog-api/internal/config"
	"github.com/studylog/studylog-api/internal/database"
	"github.com/studylog/studylog-api/internal/handler"
	"github.com/studylog/studylog-api/internal/httperr"
	"github.com/studylog/studylog-api/internal/mail"
	"github.com/studylog/studylog-api/internal/queue"
	"github.com/studylog/studylog-api/internal/repository"
	"github.com/studylog/studylog-api/internal/router"
	"github.com/studylog/studylog-api/internal/storage"
	"github.com/studylog/studylog-api/internal/store"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg := config.Load()

	db, err := database.Open(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("mysql connection failed")
	}
	defer func() { _ = db.Close() }()

	kv, err := store.NewRedisStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = kv.Close() }()

	members := repository.NewMemberRepo(db)
	stats := repository.NewStudyStatsRepo(db)

	mailer := mail.NewSMTPSender(cfg, log)
	codes := auth.NewCodeService(kv, mailer, cfg.BaseURL, cfg.AuthCodeTTLSecs, cfg.ResetTokenTTLMin)
	sessions := auth.NewManager(kv, cfg.JWTSecret, cfg.AccessTTLMin, cfg.RefreshTTLDays, log)
	cookies := auth.NewCookiePolicy(cfg)

	bootCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	google, err := auth.NewGoogleStrategy(bootCtx, cfg.Google, members)
	if err != nil {
		log.Fatal().Err(err).Msg("google oidc setup failed")
	}
	jwtStrat := auth.NewJWTStrategy(cfg.JWTSecret)
	strats := auth.NewRegistry(
		auth.NewLocalStrategy(members),
		jwtStrat,
		google,
		auth.NewNaverStrategy(cfg.Naver, members),
		auth.NewKakaoStrategy(cfg.Kakao, members),
	)

	images, err := storage.NewS3Store(bootCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("s3 setup failed")
	}

	ch := cache.New(kv, time.Duration(cfg.CacheTTLSecs)*time.Second)
	events := queue.NewPublisher(cfg.AMQPURL, log)

	authH := handler.NewAuthHandler(cfg, sessions, strats, codes, cookies, members)
	memberH := handler.NewMemberHandler(cfg, sessions, cookies, members, stats, ch, images, events)
	adminH := handler.NewAdminHandler(ch)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httperr.NewHTTPErrorHandler(log)
	router.Register(e, cfg, authH, memberH, adminH, jwtStrat, kv.Client())

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
