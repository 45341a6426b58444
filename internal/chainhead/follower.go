// Package chainhead follows the chain head over the CometBFT RPC websocket.
package chainhead

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"governance-unlocks/internal/config"
	"governance-unlocks/internal/governance"
	"governance-unlocks/internal/logger"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	rpccoretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
)

const subscriber = "govunlocks"

var errClosed = errors.New("follower closed")

// Follower tracks the latest block height and notifies registered
// callbacks whenever the head advances.
type Follower struct {
	cfg      config.Config
	log      *logger.Logger
	watchdog time.Duration

	clientMu sync.Mutex
	client   *rpchttp.HTTP
	closed   bool
	done     chan struct{}

	mu            sync.RWMutex
	height        governance.BlockNumber
	lastBlockTime time.Time

	cbMu      sync.Mutex
	callbacks []func(governance.BlockNumber)
}

// NewFollower returns nil when no RPC endpoint is configured.
func NewFollower(cfg config.Config, log *logger.Logger) *Follower {
	if cfg.RPCURL == "" {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Follower{
		cfg:      cfg,
		log:      log,
		watchdog: 30 * time.Second,
		done:     make(chan struct{}),
	}
}

// OnHead registers fn to be called with every new head height.
func (f *Follower) OnHead(fn func(governance.BlockNumber)) {
	if f == nil || fn == nil {
		return
	}
	f.cbMu.Lock()
	f.callbacks = append(f.callbacks, fn)
	f.cbMu.Unlock()
}

// Height returns the latest observed head. ok is false until the first
// height is known.
func (f *Follower) Height() (governance.BlockNumber, bool) {
	if f == nil {
		return 0, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.height, f.height > 0
}

// Run follows the head until ctx is cancelled or Close is called,
// reconnecting on errors.
func (f *Follower) Run(ctx context.Context) error {
	for {
		if err := f.runLoop(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, errClosed) {
				return nil
			}
			if !strings.Contains(err.Error(), "reconnect:") {
				f.log.Printf("chainhead: %v, reconnecting...", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-f.done:
				return nil
			case <-time.After(3 * time.Second):
			}
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (f *Follower) runLoop(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-f.done:
			cancel()
		case <-loopCtx.Done():
		}
	}()

	f.cleanupClient(loopCtx)
	client, err := f.initClient()
	if err != nil {
		return err
	}

	status, err := client.Status(loopCtx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if h, ok := toBlockNumber(status.SyncInfo.LatestBlockHeight); ok {
		f.advance(h)
	}

	blockCh, err := client.Subscribe(loopCtx, subscriber, "tm.event = 'NewBlock'")
	if err != nil {
		return fmt.Errorf("subscribe NewBlock: %w", err)
	}
	f.log.Printf("chainhead: subscribed to NewBlock at %s", f.cfg.RPCURL)

	f.touch()
	go f.handleBlocks(loopCtx, blockCh)

	if err := f.watchdogLoop(loopCtx); err != nil {
		return err
	}
	if f.isClosed() {
		return errClosed
	}
	return nil
}

func (f *Follower) isClosed() bool {
	f.clientMu.Lock()
	defer f.clientMu.Unlock()
	return f.closed
}

func (f *Follower) cleanupClient(ctx context.Context) {
	f.clientMu.Lock()
	client := f.client
	f.client = nil
	f.clientMu.Unlock()
	if client == nil {
		return
	}
	unsubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_ = client.UnsubscribeAll(unsubCtx, subscriber)
	_ = client.Stop()
}

// initClient starts a fresh client. It fails with errClosed once Close has
// been called, stopping any client started concurrently with it.
func (f *Follower) initClient() (*rpchttp.HTTP, error) {
	if f.isClosed() {
		return nil, errClosed
	}
	client, err := rpchttp.New(f.cfg.RPCURL, f.cfg.WSURL())
	if err != nil {
		return nil, fmt.Errorf("create rpc client: %w", err)
	}
	if err := client.Start(); err != nil {
		return nil, fmt.Errorf("start rpc client: %w", err)
	}

	f.clientMu.Lock()
	defer f.clientMu.Unlock()
	if f.closed {
		_ = client.Stop()
		return nil, errClosed
	}
	f.client = client
	return client, nil
}

func (f *Follower) handleBlocks(ctx context.Context, ch <-chan rpccoretypes.ResultEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				f.log.Printf("chainhead: NewBlock channel closed")
				return
			}
			h, ok := heightFromEvent(ev)
			if !ok {
				f.log.Printf("chainhead: unexpected NewBlock data %T", ev.Data)
				continue
			}
			f.touch()
			f.advance(h)
		}
	}
}

func (f *Follower) watchdogLoop(ctx context.Context) error {
	ticker := time.NewTicker(f.watchdog)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if f.stale() {
				f.log.Printf("chainhead: no blocks for %s, reconnecting", f.watchdog)
				f.touch()
				return fmt.Errorf("reconnect: no blocks for %s", f.watchdog)
			}
		}
	}
}

func (f *Follower) touch() {
	f.mu.Lock()
	f.lastBlockTime = time.Now()
	f.mu.Unlock()
}

func (f *Follower) stale() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return time.Since(f.lastBlockTime) > f.watchdog
}

// advance records h and notifies callbacks. Heights at or below the
// current head are ignored.
func (f *Follower) advance(h governance.BlockNumber) {
	f.mu.Lock()
	if h <= f.height {
		f.mu.Unlock()
		return
	}
	f.height = h
	f.mu.Unlock()

	f.cbMu.Lock()
	callbacks := append(([]func(governance.BlockNumber))(nil), f.callbacks...)
	f.cbMu.Unlock()
	for _, fn := range callbacks {
		fn(h)
	}
}

// Close stops the RPC client and makes Run return. It is safe to call
// while Run is reconnecting and more than once.
func (f *Follower) Close() error {
	if f == nil {
		return nil
	}
	f.clientMu.Lock()
	if f.closed {
		f.clientMu.Unlock()
		return nil
	}
	f.closed = true
	close(f.done)
	client := f.client
	f.client = nil
	f.clientMu.Unlock()

	if client == nil {
		return nil
	}
	return client.Stop()
}

func heightFromEvent(ev rpccoretypes.ResultEvent) (governance.BlockNumber, bool) {
	var blk *cmttypes.Block
	switch data := ev.Data.(type) {
	case cmttypes.EventDataNewBlock:
		blk = data.Block
	case *cmttypes.EventDataNewBlock:
		if data != nil {
			blk = data.Block
		}
	}
	if blk == nil {
		return 0, false
	}
	return toBlockNumber(blk.Header.Height)
}

func toBlockNumber(h int64) (governance.BlockNumber, bool) {
	if h <= 0 || h > math.MaxUint32 {
		return 0, false
	}
	return governance.BlockNumber(h), true
}
