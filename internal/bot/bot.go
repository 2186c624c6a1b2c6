// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-dice-bot/internal/config"
	"telegram-dice-bot/internal/game/dicebet"
	"telegram-dice-bot/internal/handler"
	"telegram-dice-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	// Handlers
	accountHandler *handler.AccountHandler
	gameHandler    *handler.GameHandler
	adminHandler   *handler.AdminHandler
	rankingHandler *handler.RankingHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config          *config.Config
	WalletService   *service.WalletService
	BettingService  *service.BettingService
	ReferralService *service.ReferralService
	RankingService  *service.RankingService
	Scheduler       *service.Scheduler
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot: teleBot,
		cfg: deps.Config,
	}

	// Initialize handlers
	b.accountHandler = handler.NewAccountHandler(deps.Config, deps.WalletService, deps.ReferralService)
	b.gameHandler = handler.NewGameHandler(deps.Config, teleBot, deps.WalletService, deps.BettingService, deps.Scheduler)
	b.adminHandler = handler.NewAdminHandler(deps.WalletService)
	b.rankingHandler = handler.NewRankingHandler(deps.RankingService)

	// The game handler announces round events; bind it before any loop starts
	deps.Scheduler.SetNotifier(b.gameHandler)

	// Register middleware
	b.registerMiddleware()

	// Register handlers
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	// Recovery first so it wraps everything else
	b.bot.Use(RecoveryMiddleware())

	// Whitelist middleware - check if chat is allowed
	b.bot.Use(WhitelistMiddleware(b.cfg))

	// Logging middleware
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// Account handlers
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/daily", b.accountHandler.HandleDaily)
	b.bot.Handle("/ref", b.accountHandler.HandleRef)

	// Game handlers
	b.bot.Handle("/game", b.gameHandler.HandleGameStart)
	b.bot.Handle("/stopgame", b.gameHandler.HandleGameStop)
	b.bot.Handle("/bet", b.gameHandler.HandleBet)
	b.bot.Handle("/mybets", b.gameHandler.HandleMyBets)
	b.bot.Handle("/history", b.gameHandler.HandleHistory)

	// Ranking handler
	b.bot.Handle("/rank", b.rankingHandler.HandleRank)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/add", b.adminHandler.HandleAdd)
	adminGroup.Handle("/sub", b.adminHandler.HandleSub)
	adminGroup.Handle("/set", b.adminHandler.HandleSet)
	adminGroup.Handle("/gift_all", b.adminHandler.HandleGiftAll)

	// Generic callback handler for the betting panel buttons
	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes callbacks to the appropriate handlers.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	// Telebot v3 may add a \f prefix to callback data
	data := strings.TrimPrefix(callback.Data, "\f")

	if strings.HasPrefix(data, dicebet.CallbackPrefix) {
		return b.gameHandler.HandleCallback(c)
	}

	log.Debug().Str("data", data).Msg("Callback without a route")
	return nil
}

// Start starts the bot polling.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")

	// Start message cleaner for auto-deleting old bot messages
	b.gameHandler.StartMessageCleaner()
	log.Info().Msg("Message cleaner started (30 min interval)")

	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

// GetBot returns the underlying telebot instance.
func (b *Bot) GetBot() *tele.Bot {
	return b.bot
}
