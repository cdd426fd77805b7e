package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovativecoder/tradeaggregator/internal/domain"
)

// chanFeed emits whatever is sent on updates until ctx is done.
type chanFeed struct {
	calls   atomic.Int32
	updates chan domain.PriceUpdate
}

func newChanFeed() *chanFeed {
	return &chanFeed{updates: make(chan domain.PriceUpdate)}
}

func (f *chanFeed) StreamPrices(ctx context.Context, emit func(domain.PriceUpdate)) error {
	f.calls.Add(1)
	for {
		select {
		case u := <-f.updates:
			emit(u)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// scriptFeed delegates each connection attempt to script, numbered from 1.
type scriptFeed struct {
	calls  atomic.Int32
	script func(ctx context.Context, call int, emit func(domain.PriceUpdate)) error
}

func (f *scriptFeed) StreamPrices(ctx context.Context, emit func(domain.PriceUpdate)) error {
	return f.script(ctx, int(f.calls.Add(1)), emit)
}

func testOptions(retries int) Options {
	return Options{
		Retries:    retries,
		RetryDelay: time.Millisecond,
		Buffer:     1024,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func price(p int) domain.PriceUpdate {
	return domain.PriceUpdate{Ticker: "GOOGLE", Price: p}
}

// nextWithin calls sub.Next and fails the test if it does not return in time.
func nextWithin(t *testing.T, sub *Subscription, d time.Duration) (domain.PriceUpdate, error) {
	t.Helper()
	type result struct {
		u   domain.PriceUpdate
		err error
	}
	ch := make(chan result, 1)
	go func() {
		u, err := sub.Next()
		ch <- result{u, err}
	}()
	select {
	case r := <-ch:
		return r.u, r.err
	case <-time.After(d):
		t.Fatalf("Next did not return within %v", d)
		return domain.PriceUpdate{}, nil
	}
}

func newTestMultiplexer(t *testing.T, feed Feed, opt Options) (*Multiplexer, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, feed, opt), cancel
}

func TestMultiplexer_LazyConnect(t *testing.T) {
	feed := newChanFeed()
	m, _ := newTestMultiplexer(t, feed, testOptions(100))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), feed.calls.Load(), "upstream opened before first subscriber")

	m.Subscribe(context.Background())
	require.Eventually(t, func() bool { return feed.calls.Load() == 1 }, time.Second, time.Millisecond)
}

func TestMultiplexer_ConcurrentSubscribersOpenUpstreamOnce(t *testing.T) {
	feed := newChanFeed()
	m, _ := newTestMultiplexer(t, feed, testOptions(100))

	const n = 64
	var (
		wg    sync.WaitGroup
		ready = make(chan struct{})
		subs  = make([]*Subscription, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-ready
			subs[i] = m.Subscribe(context.Background())
		}(i)
	}
	close(ready)
	wg.Wait()

	require.Eventually(t, func() bool { return feed.calls.Load() == 1 }, time.Second, time.Millisecond)

	feed.updates <- price(101)
	for _, sub := range subs {
		u, err := nextWithin(t, sub, time.Second)
		require.NoError(t, err)
		assert.Equal(t, 101, u.Price)
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), feed.calls.Load())
}

func TestMultiplexer_ReplaysLastUpdateToLateSubscribers(t *testing.T) {
	feed := newChanFeed()
	m, _ := newTestMultiplexer(t, feed, testOptions(100))

	first := m.Subscribe(context.Background())
	feed.updates <- price(1)
	feed.updates <- price(2)
	for _, want := range []int{1, 2} {
		u, err := nextWithin(t, first, time.Second)
		require.NoError(t, err)
		require.Equal(t, want, u.Price)
	}

	// No further upstream emission: late subscribers must be served from the replay slot.
	const n = 32
	var wg sync.WaitGroup
	late := make([]*Subscription, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			late[i] = m.Subscribe(context.Background())
		}(i)
	}
	wg.Wait()

	for _, sub := range late {
		u, err := nextWithin(t, sub, time.Second)
		require.NoError(t, err)
		assert.Equal(t, 2, u.Price)
	}
	assert.Equal(t, int32(1), feed.calls.Load())
}

func TestMultiplexer_PreservesUpstreamOrder(t *testing.T) {
	const n = 500
	begin := make(chan struct{})
	done := make(chan struct{})
	feed := &scriptFeed{script: func(ctx context.Context, call int, emit func(domain.PriceUpdate)) error {
		<-begin
		for i := 1; i <= n; i++ {
			emit(price(i))
		}
		close(done)
		<-ctx.Done()
		return ctx.Err()
	}}
	m, _ := newTestMultiplexer(t, feed, testOptions(100))

	a := m.Subscribe(context.Background())
	b := m.Subscribe(context.Background())
	close(begin)
	<-done

	for _, sub := range []*Subscription{a, b} {
		for i := 1; i <= n; i++ {
			u, err := nextWithin(t, sub, time.Second)
			require.NoError(t, err)
			require.Equal(t, i, u.Price)
		}
	}
}

func TestMultiplexer_RetriesTransparently(t *testing.T) {
	for _, k := range []int{1, 5, 99} {
		k := k
		t.Run(fmt.Sprintf("fail_%d", k), func(t *testing.T) {
			feed := &scriptFeed{script: func(ctx context.Context, call int, emit func(domain.PriceUpdate)) error {
				if call <= k {
					return errors.New("connection refused")
				}
				emit(price(42))
				<-ctx.Done()
				return ctx.Err()
			}}
			m, _ := newTestMultiplexer(t, feed, testOptions(100))

			subs := []*Subscription{m.Subscribe(context.Background()), m.Subscribe(context.Background())}
			for _, sub := range subs {
				u, err := nextWithin(t, sub, 5*time.Second)
				require.NoError(t, err)
				assert.Equal(t, 42, u.Price)
			}
			assert.Equal(t, int32(k+1), feed.calls.Load())
		})
	}
}

func TestMultiplexer_RetryCountRestartsAfterReconnect(t *testing.T) {
	feed := &scriptFeed{script: func(ctx context.Context, call int, emit func(domain.PriceUpdate)) error {
		switch call {
		case 1, 2, 4:
			return errors.New("connection refused")
		case 3:
			emit(price(1))
			return errors.New("connection reset")
		}
		emit(price(2))
		<-ctx.Done()
		return ctx.Err()
	}}
	m, _ := newTestMultiplexer(t, feed, testOptions(2))

	sub := m.Subscribe(context.Background())
	for _, want := range []int{1, 2} {
		u, err := nextWithin(t, sub, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, u.Price)
	}
	assert.Equal(t, int32(5), feed.calls.Load())
}

func TestMultiplexer_ExhaustionIsPermanent(t *testing.T) {
	cause := errors.New("connection refused")
	feed := &scriptFeed{script: func(ctx context.Context, call int, emit func(domain.PriceUpdate)) error {
		return cause
	}}
	opt := testOptions(100)
	opt.RetryDelay = 0
	m, _ := newTestMultiplexer(t, feed, opt)

	current := m.Subscribe(context.Background())
	_, err := nextWithin(t, current, 5*time.Second)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 100, exhausted.Retries)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, int32(101), feed.calls.Load(), "initial attempt plus 100 retries")

	// Late joiners get the same terminal error at once and cause no new attempts.
	for i := 0; i < 3; i++ {
		late := m.Subscribe(context.Background())
		_, lateErr := nextWithin(t, late, time.Second)
		assert.Same(t, exhausted, errAsExhausted(t, lateErr))
	}

	_, err = nextWithin(t, current, time.Second)
	assert.ErrorAs(t, err, &exhausted)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(101), feed.calls.Load())
}

func errAsExhausted(t *testing.T, err error) *ExhaustedError {
	t.Helper()
	var e *ExhaustedError
	require.ErrorAs(t, err, &e)
	return e
}

func TestMultiplexer_TerminalErrorReplacesReplayedUpdate(t *testing.T) {
	feed := &scriptFeed{script: func(ctx context.Context, call int, emit func(domain.PriceUpdate)) error {
		if call == 1 {
			emit(price(7))
		}
		return errors.New("connection reset")
	}}
	m, _ := newTestMultiplexer(t, feed, testOptions(3))

	current := m.Subscribe(context.Background())
	u, err := nextWithin(t, current, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7, u.Price)

	_, err = nextWithin(t, current, 5*time.Second)
	errAsExhausted(t, err)

	late := m.Subscribe(context.Background())
	_, err = nextWithin(t, late, time.Second)
	errAsExhausted(t, err)
}

func TestMultiplexer_ZeroRetriesTerminatesOnFirstFailure(t *testing.T) {
	feed := &scriptFeed{script: func(ctx context.Context, call int, emit func(domain.PriceUpdate)) error {
		return nil
	}}
	m, _ := newTestMultiplexer(t, feed, testOptions(0))

	_, err := nextWithin(t, m.Subscribe(context.Background()), time.Second)
	e := errAsExhausted(t, err)
	assert.ErrorIs(t, e, errUpstreamEnded)
	assert.Equal(t, int32(1), feed.calls.Load())
}

func TestMultiplexer_SubscriberCloseLeavesOthersAndUpstream(t *testing.T) {
	feed := newChanFeed()
	m, _ := newTestMultiplexer(t, feed, testOptions(100))

	ctx, cancel := context.WithCancel(context.Background())
	leaving := m.Subscribe(ctx)
	closing := m.Subscribe(context.Background())
	staying := m.Subscribe(context.Background())

	cancel()
	_, err := nextWithin(t, leaving, time.Second)
	assert.ErrorIs(t, err, context.Canceled)

	closing.Close()
	_, err = nextWithin(t, closing, time.Second)
	assert.ErrorIs(t, err, ErrSubscriptionClosed)

	feed.updates <- price(5)
	u, err := nextWithin(t, staying, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5, u.Price)
	assert.Equal(t, int32(1), feed.calls.Load())

	m.mu.Lock()
	assert.Len(t, m.subs, 1)
	m.mu.Unlock()
}

func TestMultiplexer_SlowSubscriberDropsOldest(t *testing.T) {
	done := make(chan struct{})
	feed := &scriptFeed{script: func(ctx context.Context, call int, emit func(domain.PriceUpdate)) error {
		for i := 1; i <= 10; i++ {
			emit(price(i))
		}
		close(done)
		<-ctx.Done()
		return ctx.Err()
	}}
	opt := testOptions(100)
	opt.Buffer = 3
	m, _ := newTestMultiplexer(t, feed, opt)

	sub := m.Subscribe(context.Background())
	<-done
	for _, want := range []int{8, 9, 10} {
		u, err := nextWithin(t, sub, time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, u.Price)
	}
}

func TestMultiplexer_ShutdownEndsStream(t *testing.T) {
	feed := newChanFeed()
	m, cancel := newTestMultiplexer(t, feed, testOptions(100))

	sub := m.Subscribe(context.Background())
	require.Eventually(t, func() bool { return feed.calls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	_, err := nextWithin(t, sub, time.Second)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = nextWithin(t, m.Subscribe(context.Background()), time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExhaustedError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &ExhaustedError{Retries: 100, Cause: cause}
	assert.Equal(t, "price stream retries exhausted: 100/100: dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}
