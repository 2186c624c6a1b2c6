package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"telegram-dice-bot/internal/game/dicebet"
	"telegram-dice-bot/internal/pkg/lock"
)

// ErrGameRunning is returned when a chat already has a round loop running.
var ErrGameRunning = errors.New("game already running in this chat")

// Notifier delivers round lifecycle events to the chat. It is implemented by
// the handler layer, which keeps the scheduler free of telebot types.
type Notifier interface {
	// RoundOpened announces a new round and its betting panel.
	RoundOpened(ctx context.Context, round *dicebet.Round, bettingSeconds int)
	// BettingClosed announces that the round takes no more bets.
	BettingClosed(ctx context.Context, round *dicebet.Round)
	// RollDice produces the round's two dice. Implementations that roll via
	// Telegram dice animations report what the animation showed; invalid
	// values make the scheduler fall back to a local roll.
	RollDice(ctx context.Context, chatID int64) (int, int)
	// RoundSettled announces the settlement result.
	RoundSettled(ctx context.Context, result *dicebet.SettlementResult)
	// GameStopped announces the end of the round loop. idle is true when
	// the loop stopped because nobody bet for too many rounds in a row.
	GameStopped(ctx context.Context, chatID int64, idle bool)
}

// RoundSource allocates round ids and serves settled match history.
type RoundSource interface {
	NextRoundID(ctx context.Context, chatID int64) (int64, error)
	Recent(ctx context.Context, chatID int64, limit int) ([]dicebet.MatchRecord, error)
}

// Scheduler runs one betting round loop per chat: open a round, hold the
// betting window, close, roll, settle, pause, repeat. The loop stops on
// request or after too many consecutive rounds without a single bet. A stop
// request always settles the in-flight round first, so no charged bet is
// ever abandoned.
type Scheduler struct {
	rounds   *dicebet.Manager
	engine   *dicebet.Engine
	source   RoundSource
	chatLock *lock.ChatLock
	notifier Notifier

	bettingSeconds int
	breakSeconds   int
	idleLimit      int

	mu    sync.Mutex
	loops map[int64]*roundLoop
	wg    sync.WaitGroup
}

// roundLoop tracks one chat's running loop.
type roundLoop struct {
	stop     chan struct{}
	stopOnce sync.Once
	deadline time.Time // end of the current betting window, guarded by Scheduler.mu
}

// NewScheduler creates a new Scheduler instance. A Notifier must be bound
// with SetNotifier before the first Start.
func NewScheduler(
	rounds *dicebet.Manager,
	engine *dicebet.Engine,
	source RoundSource,
	chatLock *lock.ChatLock,
	bettingSeconds, breakSeconds, idleLimit int,
) *Scheduler {
	return &Scheduler{
		rounds:         rounds,
		engine:         engine,
		source:         source,
		chatLock:       chatLock,
		bettingSeconds: bettingSeconds,
		breakSeconds:   breakSeconds,
		idleLimit:      idleLimit,
		loops:          make(map[int64]*roundLoop),
	}
}

// SetNotifier binds the notifier that receives round lifecycle events. The
// handler layer implements the notifier but also holds the scheduler, so the
// bind happens after construction, before any loop starts.
func (s *Scheduler) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Start launches the round loop for a chat.
func (s *Scheduler) Start(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.notifier == nil {
		return errors.New("round notifier not bound")
	}
	if _, ok := s.loops[chatID]; ok {
		return ErrGameRunning
	}

	loop := &roundLoop{stop: make(chan struct{})}
	s.loops[chatID] = loop
	s.wg.Add(1)
	go s.run(chatID, loop)

	log.Info().Int64("chat_id", chatID).Msg("Round loop started")
	return nil
}

// Stop requests a graceful stop of a chat's round loop. The in-flight round
// is settled before the loop exits. Returns false when no loop is running.
func (s *Scheduler) Stop(chatID int64) bool {
	s.mu.Lock()
	loop, ok := s.loops[chatID]
	s.mu.Unlock()
	if !ok {
		return false
	}

	loop.stopOnce.Do(func() { close(loop.stop) })
	log.Info().Int64("chat_id", chatID).Msg("Round loop stop requested")
	return true
}

// Running reports whether a chat has a round loop.
func (s *Scheduler) Running(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loops[chatID]
	return ok
}

// TimeRemaining returns the whole seconds left in the chat's betting window,
// or 0 when no window is open.
func (s *Scheduler) TimeRemaining(chatID int64) int {
	s.mu.Lock()
	loop, ok := s.loops[chatID]
	var deadline time.Time
	if ok {
		deadline = loop.deadline
	}
	s.mu.Unlock()

	if deadline.IsZero() {
		return 0
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// RecentHistory returns the chat's latest settled rounds, newest first.
func (s *Scheduler) RecentHistory(ctx context.Context, chatID int64, limit int) ([]dicebet.MatchRecord, error) {
	return s.source.Recent(ctx, chatID, limit)
}

// Shutdown stops every chat loop and waits for in-flight rounds to settle.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, loop := range s.loops {
		loop.stopOnce.Do(func() { close(loop.stop) })
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the per-chat round loop goroutine.
func (s *Scheduler) run(chatID int64, loop *roundLoop) {
	defer s.wg.Done()
	defer s.removeLoop(chatID)

	ctx := context.Background()

	for {
		id, err := s.source.NextRoundID(ctx, chatID)
		if err != nil {
			// The manager falls back to a locally monotonic id.
			log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to allocate round id")
			id = 0
		}

		round, err := s.rounds.Open(chatID, id)
		if err != nil {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to open round")
			s.notifier.GameStopped(ctx, chatID, false)
			return
		}

		s.setDeadline(chatID, time.Now().Add(time.Duration(s.bettingSeconds)*time.Second))
		s.notifier.RoundOpened(ctx, round, s.bettingSeconds)

		// A stop request cuts the window short; the round still settles.
		stopping := s.wait(s.bettingSeconds, loop.stop)
		s.setDeadline(chatID, time.Time{})

		result := s.settleRound(ctx, chatID)
		if result != nil {
			s.notifier.RoundSettled(ctx, result)
		}

		if stopping {
			s.notifier.GameStopped(ctx, chatID, false)
			return
		}

		if result != nil && s.idleLimit > 0 && result.IdleRounds >= s.idleLimit {
			log.Info().
				Int64("chat_id", chatID).
				Int("idle_rounds", result.IdleRounds).
				Msg("Round loop stopped after idle rounds")
			s.notifier.GameStopped(ctx, chatID, true)
			return
		}

		if s.wait(s.breakSeconds, loop.stop) {
			s.notifier.GameStopped(ctx, chatID, false)
			return
		}
	}
}

// settleRound closes the chat's round, rolls the dice and settles, all under
// the chat lock so no bet placement interleaves. Returns nil when the round
// could not be settled; the loop skips it and carries on.
func (s *Scheduler) settleRound(ctx context.Context, chatID int64) *dicebet.SettlementResult {
	s.chatLock.Lock(chatID)
	defer s.chatLock.Unlock(chatID)
	defer s.rounds.Remove(chatID)

	round, err := s.rounds.Close(chatID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to close round")
		return nil
	}
	s.notifier.BettingClosed(ctx, round)

	d1, d2 := s.notifier.RollDice(ctx, chatID)
	if !dicebet.ValidDie(d1) || !dicebet.ValidDie(d2) {
		d1, d2 = dicebet.Roll()
	}
	if err := round.SetResult(d1, d2); err != nil {
		log.Error().Err(err).
			Int64("chat_id", chatID).
			Int64("round_id", round.ID).
			Msg("Failed to set round result")
		return nil
	}

	result, err := s.engine.Settle(ctx, round)
	if err != nil {
		log.Error().Err(err).
			Int64("chat_id", chatID).
			Int64("round_id", round.ID).
			Msg("Failed to settle round")
		return nil
	}
	return result
}

// wait sleeps for the given number of seconds, returning early with true
// when a stop is requested.
func (s *Scheduler) wait(seconds int, stop <-chan struct{}) bool {
	if seconds <= 0 {
		select {
		case <-stop:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(time.Duration(seconds) * time.Second)
	defer timer.Stop()

	select {
	case <-timer.C:
		return false
	case <-stop:
		return true
	}
}

func (s *Scheduler) setDeadline(chatID int64, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loop, ok := s.loops[chatID]; ok {
		loop.deadline = deadline
	}
}

func (s *Scheduler) removeLoop(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loops, chatID)
}
