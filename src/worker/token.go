package worker

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
	"github.com/jiaming2012/tradable-embed/src/eventpubsub"
)

// TokenMonitor warns subscribers before the access token expires and once
// more when it has expired. Each token is reported at most once per state.
type TokenMonitor struct {
	wg        *sync.WaitGroup
	store     eventmodels.ITokenStore
	bus       *eventpubsub.EventBus
	threshold time.Duration
	interval  time.Duration
	now       func() time.Time

	mutex     sync.Mutex
	warned    string
	expired   string
	onExpired func()
	cancel    context.CancelFunc
}

func (m *TokenMonitor) SetExpiredHandler(fn func()) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.onExpired = fn
}

func (m *TokenMonitor) Check() {
	state, err := m.store.Get()
	if err != nil {
		log.Errorf("TokenMonitor.Check: failed to read token: %v", err)
		return
	}

	if state == nil || state.Token == "" || state.ExpiresAt.IsZero() {
		return
	}

	now := m.now()

	m.mutex.Lock()
	if state.IsExpired(now) {
		if m.expired == state.Token {
			m.mutex.Unlock()
			return
		}

		m.expired = state.Token
		onExpired := m.onExpired
		m.mutex.Unlock()

		log.Warnf("TokenMonitor.Check: access token expired at %v", state.ExpiresAt)

		if onExpired != nil {
			onExpired()
		}

		m.bus.Emit(eventmodels.TokenExpiredEvent)
		return
	}

	remaining := state.Remaining(now)
	if remaining > m.threshold || m.warned == state.Token {
		m.mutex.Unlock()
		return
	}

	m.warned = state.Token
	m.mutex.Unlock()

	log.Infof("TokenMonitor.Check: access token expires in %v", remaining)
	m.bus.Emit(eventmodels.TokenWillExpireEvent, remaining.Milliseconds())
}

func (m *TokenMonitor) Start(ctx context.Context) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.cancel != nil {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	timer := time.NewTicker(m.interval)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer timer.Stop()

		m.Check()
		for {
			select {
			case <-ctx.Done():
				log.Debug("stopping TokenMonitor")
				return
			case <-timer.C:
				m.Check()
			}
		}
	}()
}

func (m *TokenMonitor) Running() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.cancel != nil
}

func (m *TokenMonitor) Stop() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func NewTokenMonitor(wg *sync.WaitGroup, store eventmodels.ITokenStore, bus *eventpubsub.EventBus, threshold, interval time.Duration, now func() time.Time) *TokenMonitor {
	if now == nil {
		now = time.Now
	}

	return &TokenMonitor{
		wg:        wg,
		store:     store,
		bus:       bus,
		threshold: threshold,
		interval:  interval,
		now:       now,
	}
}
