// Package scheduler computes unlock schedules for the configured accounts
// and keeps them fresh as the chain head advances.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"governance-unlocks/internal/cache"
	"governance-unlocks/internal/db"
	"governance-unlocks/internal/governance"
	"governance-unlocks/internal/logger"
	"governance-unlocks/internal/metrics"
	"governance-unlocks/internal/snapshot"
	"governance-unlocks/internal/tracks"
)

// historyKeep is how many stored schedules are kept per account.
const historyKeep = 20

// HeadSource reports the latest known block height.
type HeadSource interface {
	Height() (governance.BlockNumber, bool)
}

// Result is the outcome of one schedule computation.
type Result struct {
	Account    string                   `json:"account"`
	Head       governance.BlockNumber   `json:"head"`
	Schedule   governance.Schedule      `json:"schedule"`
	Claim      governance.ClaimSchedule `json:"claim"`
	ComputedAt time.Time                `json:"computed_at"`
	Stale      bool                     `json:"stale,omitempty"`
	Err        error                    `json:"-"`
}

type Options struct {
	Source          snapshot.Source
	Tracks          *tracks.Resolver
	Head            HeadSource
	Store           *db.Store
	Cache           *cache.Cache
	Metrics         *metrics.Metrics
	Log             *logger.Logger
	Accounts        []string
	RefreshInterval time.Duration
}

type Service struct {
	opts    Options
	calc    *governance.Calculator
	log     *logger.Logger
	trigger chan struct{}

	subMu sync.Mutex
	subs  []chan Result

	lastMu  sync.Mutex
	lastRun time.Time
}

func New(opts Options) *Service {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 30 * time.Second
	}
	return &Service{
		opts:    opts,
		calc:    governance.NewCalculator(),
		log:     opts.Log,
		trigger: make(chan struct{}, 1),
	}
}

// Accounts returns the accounts refreshed by Run.
func (s *Service) Accounts() []string {
	return append([]string(nil), s.opts.Accounts...)
}

// Subscribe returns a channel receiving every Result, including failures.
// Results are dropped for subscribers that fall behind.
func (s *Service) Subscribe() <-chan Result {
	ch := make(chan Result, 64)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

func (s *Service) publish(r Result) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- r:
		default:
		}
	}
}

// OnHead requests a refresh of every account. It never blocks.
func (s *Service) OnHead(governance.BlockNumber) {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Estimate returns the block at which vote stops locking funds.
func (s *Service) Estimate(
	ref governance.ReferendumInfo,
	vote governance.AccountVote,
	info governance.UnlockCalculationInfo,
) (governance.BlockNumber, bool, error) {
	s.opts.Tracks.Fill(&info)
	return s.calc.EstimateVoteLockingPeriod(ref, vote, info)
}

// Refresh loads the account's snapshot, computes its schedule and
// publishes the result.
func (s *Service) Refresh(ctx context.Context, account string) (Result, error) {
	start := time.Now()

	res, err := s.compute(ctx, account)
	if err != nil {
		s.opts.Metrics.Failure("load")
		s.log.Printf("refresh %s: %v", account, err)
		s.publish(Result{Account: account, ComputedAt: start, Err: err})
		return Result{}, err
	}

	if _, err := s.opts.Store.SaveSchedule(ctx, account, res.Head, res.Schedule); err != nil {
		s.opts.Metrics.Failure("store")
		s.log.Printf("refresh %s: %v", account, err)
	} else if _, err := s.opts.Store.Prune(ctx, account, historyKeep); err != nil {
		s.log.Printf("refresh %s: %v", account, err)
	}

	entry := cache.Entry{Account: account, Head: res.Head, Schedule: res.Schedule, ComputedAt: res.ComputedAt}
	if err := s.opts.Cache.Set(ctx, entry); err != nil {
		s.opts.Metrics.Failure("cache")
		s.log.Printf("refresh %s: %v", account, err)
	}

	s.opts.Metrics.ObserveRefresh(account, time.Since(start).Seconds(), len(res.Schedule.Items), uint32(res.Head))
	s.log.With("account", account, "head", res.Head).Debugf(
		"schedule has %d items, claimable %s", len(res.Schedule.Items), res.Claim.TotalClaimable())
	s.publish(res)
	return res, nil
}

func (s *Service) compute(ctx context.Context, account string) (Result, error) {
	if s.opts.Source == nil {
		return Result{}, errors.New("no snapshot source configured")
	}
	snap, err := s.opts.Source.Load(ctx, account)
	if err != nil {
		return Result{}, err
	}
	s.opts.Tracks.Fill(&snap.Info)

	schedule := s.calc.CreateUnlocksSchedule(snap.TracksVoting, snap.Referendums, snap.Info)
	head := s.head(snap.CurrentBlock)
	return Result{
		Account:    account,
		Head:       head,
		Schedule:   schedule,
		Claim:      schedule.ClaimSchedule(head),
		ComputedAt: time.Now().UTC(),
	}, nil
}

// head prefers the followed chain head over the snapshot's own block.
func (s *Service) head(fallback governance.BlockNumber) governance.BlockNumber {
	if s.opts.Head == nil {
		return fallback
	}
	if h, ok := s.opts.Head.Height(); ok && h > fallback {
		return h
	}
	return fallback
}

// Schedule returns the account's schedule from the cache, recomputing it
// on a miss. When the snapshot cannot be loaded the last stored schedule
// is returned marked stale.
func (s *Service) Schedule(ctx context.Context, account string) (Result, error) {
	entry, err := s.opts.Cache.Get(ctx, account)
	if err == nil {
		s.opts.Metrics.CacheHit()
		return s.fromStored(account, entry.Schedule, entry.Head, entry.ComputedAt, false), nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.Printf("schedule %s: %v", account, err)
	}
	s.opts.Metrics.CacheMiss()

	res, err := s.Refresh(ctx, account)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, snapshot.ErrNotFound) || ctx.Err() != nil {
		return Result{}, err
	}

	stored, head, serr := s.opts.Store.LatestSchedule(ctx, account)
	if serr != nil {
		return Result{}, err
	}
	return s.fromStored(account, stored, head, time.Time{}, true), nil
}

func (s *Service) fromStored(account string, schedule governance.Schedule, head governance.BlockNumber, at time.Time, stale bool) Result {
	head = s.head(head)
	return Result{
		Account:    account,
		Head:       head,
		Schedule:   schedule,
		Claim:      schedule.ClaimSchedule(head),
		ComputedAt: at,
		Stale:      stale,
	}
}

// RefreshAll refreshes every configured account and returns the number
// of failures.
func (s *Service) RefreshAll(ctx context.Context) int {
	s.lastMu.Lock()
	s.lastRun = time.Now()
	s.lastMu.Unlock()

	failed := 0
	for _, account := range s.opts.Accounts {
		if ctx.Err() != nil {
			return failed
		}
		if _, err := s.Refresh(ctx, account); err != nil {
			failed++
		}
	}
	return failed
}

func (s *Service) due() bool {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return time.Since(s.lastRun) >= s.opts.RefreshInterval
}

// Run refreshes all accounts at start, on every new head at most once per
// refresh interval, and at least once per interval.
func (s *Service) Run(ctx context.Context) error {
	if len(s.opts.Accounts) == 0 {
		return fmt.Errorf("no accounts configured")
	}
	s.log.Printf("scheduler: following %d accounts", len(s.opts.Accounts))
	s.RefreshAll(ctx)

	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.trigger:
			if s.due() {
				s.RefreshAll(ctx)
			}
		case <-ticker.C:
			if s.due() {
				s.RefreshAll(ctx)
			}
		}
	}
}
