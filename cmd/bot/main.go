// Package main is the entry point for the Telegram dice-betting bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"telegram-dice-bot/internal/bot"
	"telegram-dice-bot/internal/config"
	"telegram-dice-bot/internal/game/dicebet"
	"telegram-dice-bot/internal/pkg/db"
	"telegram-dice-bot/internal/pkg/lock"
	"telegram-dice-bot/internal/repository"
	"telegram-dice-bot/internal/service"
	"telegram-dice-bot/internal/wallet"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load .env if present; plain environment variables work too
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize Redis for match history, idle counters and round sequences
	redisClient, err := db.NewRedis(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	walletRepo := repository.NewWalletRepository(dbPool.Pool)
	referralRepo := repository.NewReferralRepository(dbPool.Pool)
	historyRepo := repository.NewHistoryRepository(redisClient, cfg.Game.HistorySize)

	// Funding resolver and settlement engine
	resolver := wallet.NewResolver(walletRepo, wallet.Rules{
		MinMainForReferral: cfg.Game.MinMainForReferral,
		ReferralRatio:      cfg.Game.ReferralRatio,
	})
	rounds := dicebet.NewManager()
	engine := dicebet.NewEngine(walletRepo, historyRepo, dicebet.Multipliers{
		Big:   cfg.Game.BigMultiplier,
		Small: cfg.Game.SmallMultiplier,
		Lucky: cfg.Game.LuckyMultiplier,
	})

	chatLock := lock.NewChatLock()

	// Initialize services
	walletService := service.NewWalletService(
		userRepo,
		walletRepo,
		cfg.Bonus.Welcome,
		cfg.Bonus.Daily,
		cfg.Bonus.DailyCooldownHours,
	)
	referralService := service.NewReferralService(
		userRepo,
		referralRepo,
		cfg.Bonus.ReferralReward,
		cfg.Bonus.ReferredBonus,
	)
	bettingService := service.NewBettingService(
		resolver,
		rounds,
		chatLock,
		cfg.Game.MinBet,
		cfg.Game.MaxBet,
	)
	rankingService := service.NewRankingService(walletRepo)
	scheduler := service.NewScheduler(
		rounds,
		engine,
		historyRepo,
		chatLock,
		cfg.Game.BettingSeconds,
		cfg.Game.BreakSeconds,
		cfg.Game.IdleLimit,
	)

	// Create bot dependencies
	deps := &bot.Dependencies{
		Config:          cfg,
		WalletService:   walletService,
		BettingService:  bettingService,
		ReferralService: referralService,
		RankingService:  rankingService,
		Scheduler:       scheduler,
	}

	// Initialize bot
	telegramBot, err := bot.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Settle any in-flight rounds before stopping the poller so no charged
	// bet is left unresolved
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := scheduler.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Scheduler shutdown timed out")
	}

	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create users table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			telegram_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			first_name VARCHAR(255) NOT NULL DEFAULT '',
			referral_code VARCHAR(16) NOT NULL UNIQUE,
			referred_by BIGINT REFERENCES users(telegram_id),
			referral_points BIGINT NOT NULL DEFAULT 0 CHECK (referral_points >= 0),
			bonus_points BIGINT NOT NULL DEFAULT 0 CHECK (bonus_points >= 0),
			last_daily_claim BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: Create wallets table (one main score per chat and user)
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS wallets (
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			main_score BIGINT NOT NULL DEFAULT 0 CHECK (main_score >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (chat_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_wallets_chat_score ON wallets(chat_id, main_score DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: wallets table created")

	// Migration 3: Create referrals table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS referrals (
			id BIGSERIAL PRIMARY KEY,
			referrer_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			referred_id BIGINT NOT NULL UNIQUE REFERENCES users(telegram_id) ON DELETE CASCADE,
			reward BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals(referrer_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: referrals table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
