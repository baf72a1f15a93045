package cleanup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/audit"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/config"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/repository"
	pkglog "github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
)

// SweepReport summarises one pass over the room index.
type SweepReport struct {
	Scanned   int
	Reclaimed int
	// Healed counts index entries whose room record was already gone.
	Healed int
	Failed int
}

// RoomArchiver snapshots a room before it is reclaimed.
type RoomArchiver interface {
	Archive(ctx context.Context, room *domain.Room, reason string) error
}

// Sweeper periodically reclaims rooms that ended long ago or were abandoned.
type Sweeper struct {
	rooms    repository.RoomStore
	registry repository.ParticipantRegistry
	archiver RoomArchiver
	cfg      config.CleanupConfig
	now      func() time.Time
	quit     chan struct{}
	doneCh   chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a new Sweeper.
func New(rooms repository.RoomStore, registry repository.ParticipantRegistry, cfg config.CleanupConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = config.DefaultCleanupInterval
	}
	if cfg.EndedRetention <= 0 {
		cfg.EndedRetention = config.DefaultEndedRetention
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = config.DefaultIdleTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Sweeper{
		rooms:    rooms,
		registry: registry,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		quit:     make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// SetArchiver makes the sweeper archive every room before removing it.
// A failed archive keeps the room for the next pass. Call before Start.
func (s *Sweeper) SetArchiver(a RoomArchiver) {
	s.archiver = a
}

// Start launches the sweeper in a background goroutine. It has no effect
// once the sweeper was started or stopped.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	go s.run(ctx)
}

// Stop signals the sweeper to stop and returns immediately. It is safe to
// call more than once. Call Done() to wait for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.quit)
	if !s.started {
		close(s.doneCh)
	}
}

// Done returns a channel that is closed when the sweeper has fully stopped.
func (s *Sweeper) Done() <-chan struct{} {
	return s.doneCh
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Failures on individual rooms are logged and counted;
// they never abort the pass.
func (s *Sweeper) Sweep(ctx context.Context) SweepReport {
	l := pkglog.L()

	ids, err := s.rooms.ListIDs(ctx)
	if err != nil {
		l.Error().Err(err).Msg("sweeper: failed to list rooms")
		return SweepReport{Failed: 1}
	}

	var reclaimed, healed, failed atomic.Int64
	now := s.now()

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			roomCtx := pkglog.WithRoom(ctx, id, "")
			outcome, err := s.sweepRoom(roomCtx, id, now)
			switch {
			case err != nil:
				failed.Add(1)
				rl := pkglog.Ctx(roomCtx)
				rl.Error().Err(err).Msg("sweeper: failed to process room")
			case outcome == outcomeReclaimed:
				reclaimed.Add(1)
			case outcome == outcomeHealed:
				healed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := SweepReport{
		Scanned:   len(ids),
		Reclaimed: int(reclaimed.Load()),
		Healed:    int(healed.Load()),
		Failed:    int(failed.Load()),
	}
	l.Info().
		Int("scanned", report.Scanned).
		Int("reclaimed", report.Reclaimed).
		Int("healed", report.Healed).
		Int("failed", report.Failed).
		Msg("sweeper: pass complete")
	return report
}

type outcome int

const (
	outcomeKept outcome = iota
	outcomeReclaimed
	outcomeHealed
)

func (s *Sweeper) sweepRoom(ctx context.Context, roomID string, now time.Time) (outcome, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if errors.Is(err, repository.ErrRoomNotFound) {
		if err := s.rooms.DropIndexEntry(ctx, roomID); err != nil {
			return outcomeKept, err
		}
		return outcomeHealed, nil
	}
	if err != nil {
		return outcomeKept, err
	}

	reason, err := s.expiry(ctx, room, now)
	if err != nil || reason == "" {
		return outcomeKept, err
	}

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, room, reason); err != nil {
			return outcomeKept, err
		}
	}
	if err := s.rooms.Remove(ctx, roomID); err != nil {
		return outcomeKept, err
	}
	audit.LogWithDetail(ctx, audit.ActionReclaimRoom, room.OwnerID, roomID, reason, "room reclaimed")
	return outcomeReclaimed, nil
}

// expiry returns why the room is due for removal, or "" to keep it.
func (s *Sweeper) expiry(ctx context.Context, room *domain.Room, now time.Time) (string, error) {
	if room.IsEnded() {
		if room.EndedAt != nil && now.Sub(*room.EndedAt) > s.cfg.EndedRetention {
			return "ended_retention_expired", nil
		}
		return "", nil
	}

	if now.Sub(room.UpdatedAt) <= s.cfg.IdleTimeout {
		return "", nil
	}
	size, err := s.registry.Size(ctx, room.ID)
	if err != nil {
		return "", err
	}
	if size > 0 {
		return "", nil
	}
	return "active_idle_expired", nil
}
