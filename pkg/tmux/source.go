package tmux

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/b/tabsync/pkg/eventloop"
	"github.com/b/tabsync/pkg/logging"
	"github.com/b/tabsync/pkg/perf"
	"github.com/b/tabsync/pkg/tabsource"
)

// DefaultRefreshInterval is how often a push-mode source re-lists windows
// even without notifications. tmux has no notification for move-window or
// swap-window, so reorders are only seen this way.
const DefaultRefreshInterval = 2 * time.Second

// Attention selects which window flags mark a tab as needing attention.
type Attention struct {
	Activity bool
	Bell     bool
	Silence  bool
}

// DefaultAttention flags activity and bell.
func DefaultAttention() Attention { return Attention{Activity: true, Bell: true} }

func (a Attention) of(w Window) bool {
	return (a.Activity && w.Activity) || (a.Bell && w.Bell) || (a.Silence && w.Silence)
}

// Source exposes one tmux session's windows as a tab source. Without a
// control pipe it is pull-only; with one it also pushes ordered events.
//
// Every exported method except Start and Stop must be called on the loop
// that post feeds. Listing results produced by the watcher goroutine are
// posted back to that loop before being applied.
type Source struct {
	client    *Client
	post      eventloop.PostFunc
	attention Attention
	refresh   time.Duration
	log       *slog.Logger

	pipe   *ControlPipe
	cancel context.CancelFunc
	wg     sync.WaitGroup

	seq  atomic.Uint64
	gone atomic.Bool

	// loop-owned
	last      []Window
	hasLast   bool
	lastSeq   uint64
	nextToken tabsource.Token
	subs      []subscription
	watchers  map[tabsource.Token]titleWatch
}

type subscription struct {
	token tabsource.Token
	fn    func(tabsource.Event)
}

type titleWatch struct {
	id string
	fn func(string)
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithAttention picks the flags that count as attention.
func WithAttention(a Attention) SourceOption {
	return func(s *Source) { s.attention = a }
}

// WithRefreshInterval sets the push-mode safety re-list interval.
func WithRefreshInterval(d time.Duration) SourceOption {
	return func(s *Source) {
		if d > 0 {
			s.refresh = d
		}
	}
}

// NewSource creates a pull-only source. Call Start to add push delivery.
func NewSource(client *Client, post eventloop.PostFunc, opts ...SourceOption) *Source {
	s := &Source{
		client:    client,
		post:      post,
		attention: DefaultAttention(),
		refresh:   DefaultRefreshInterval,
		log:       logging.ForComponent(logging.CompTmux),
		watchers:  make(map[tabsource.Token]titleWatch),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start attaches a control-mode client so the source can push events. Call
// it before binding; on failure the source stays pull-only.
func (s *Source) Start(ctx context.Context) error {
	pipe, err := NewControlPipe(s.client.Session())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	s.pipe = pipe
	s.cancel = cancel
	s.wg.Add(1)
	go s.watch(ctx)
	return nil
}

// Stop ends push delivery and waits for the watcher goroutine.
func (s *Source) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.pipe != nil {
		s.pipe.Close()
	}
	s.wg.Wait()
}

func (s *Source) watch(ctx context.Context) {
	defer s.wg.Done()
	defer logging.RecoverAndLog(s.log, "tmux.watch")

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.pipe.Done():
			// Usually the session ended; one last listing confirms it.
			s.relist(ctx)
			return
		case n := <-s.pipe.Events():
			s.log.Debug("notification", slog.String("kind", n.Kind.String()), slog.String("window", n.Window))
			s.drainEvents()
			s.relist(ctx)
		case <-ticker.C:
			s.relist(ctx)
		}
	}
}

func (s *Source) drainEvents() {
	for {
		select {
		case <-s.pipe.Events():
		default:
			return
		}
	}
}

// relist fetches off the loop and posts the result to it.
func (s *Source) relist(ctx context.Context) {
	seq := s.seq.Add(1)
	var (
		wins []Window
		err  error
	)
	perf.Track("tmux.relist", func() { wins, err = s.client.ListWindows(ctx) })
	if ctx.Err() != nil {
		return
	}
	s.post(func() { s.apply(seq, wins, err) })
}

// apply diffs a listing against the last emitted one and notifies
// subscribers and title watchers. Older listings than the last applied one
// are dropped.
func (s *Source) apply(seq uint64, wins []Window, err error) {
	if seq <= s.lastSeq {
		return
	}
	s.lastSeq = seq
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			s.log.Warn("list_windows_failed", slog.String("error", err.Error()))
			return
		}
		s.markGone(true)
		wins = nil
	} else {
		s.markGone(false)
	}

	prevTabs, prevSel := s.tabs(s.last)
	nextTabs, nextSel := s.tabs(wins)
	events, titles := Diff(prevTabs, nextTabs, prevSel, nextSel)
	s.last, s.hasLast = wins, true

	for _, ev := range events {
		for _, sub := range append([]subscription(nil), s.subs...) {
			sub.fn(ev)
		}
	}
	for _, tc := range titles {
		for _, w := range s.watchers {
			if w.id == tc.ID {
				w.fn(tc.Title)
			}
		}
	}
}

func (s *Source) markGone(v bool) {
	if s.gone.Swap(v) != v {
		s.log.Info("session_availability", slog.String("session", s.client.Session()), slog.Bool("available", !v))
	}
}

func (s *Source) tabs(wins []Window) ([]tabsource.Tab, string) {
	out := make([]tabsource.Tab, len(wins))
	sel := ""
	for i, w := range wins {
		out[i] = tabsource.Tab{
			ID:             w.ID,
			Title:          w.Name,
			NeedsAttention: s.attention.of(w),
			Position:       i,
		}
		if w.Active {
			sel = w.ID
		}
	}
	return out, sel
}

// Capabilities implements tabsource.Source.
func (s *Source) Capabilities() tabsource.Capability {
	if s.pipe != nil && s.pipe.IsAlive() {
		return tabsource.CapPull | tabsource.CapPush
	}
	return tabsource.CapPull
}

// Available implements tabsource.Source.
func (s *Source) Available() bool { return !s.gone.Load() }

// Snapshot implements tabsource.Source. While subscribed it returns the state
// already delivered as events so that snapshot and event stream agree; without
// subscribers it lists the session synchronously.
func (s *Source) Snapshot() tabsource.Snapshot {
	if len(s.subs) > 0 && s.hasLast {
		tabs, sel := s.tabs(s.last)
		return tabsource.Snapshot{Tabs: tabs, Selected: sel}
	}
	wins, err := s.list()
	if err != nil {
		return tabsource.Snapshot{}
	}
	tabs, sel := s.tabs(wins)
	return tabsource.Snapshot{Tabs: tabs, Selected: sel}
}

func (s *Source) list() ([]Window, error) {
	wins, err := s.client.ListWindows(context.Background())
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			s.markGone(true)
		}
		s.log.Debug("list_failed", slog.String("error", err.Error()))
		return nil, err
	}
	s.markGone(false)
	return wins, nil
}

// prime records the baseline later listings are diffed against.
func (s *Source) prime() {
	seq := s.seq.Add(1)
	wins, _ := s.list()
	s.last, s.hasLast, s.lastSeq = wins, true, seq
}

// Select implements tabsource.Source.
func (s *Source) Select(id string) error {
	return s.client.SelectWindow(context.Background(), id)
}

// Close implements tabsource.Source.
func (s *Source) Close(id string) error {
	return s.client.KillWindow(context.Background(), id)
}

// CreateTab implements tabsource.Creator.
func (s *Source) CreateTab() error {
	return s.client.NewWindow(context.Background(), "")
}

// CloseContainer implements tabsource.ContainerCloser.
func (s *Source) CloseContainer() error {
	return s.client.KillSession(context.Background())
}

// Subscribe implements tabsource.Subscriber.
func (s *Source) Subscribe(fn func(tabsource.Event)) tabsource.Token {
	if len(s.subs) == 0 {
		s.prime()
	}
	s.nextToken++
	s.subs = append(s.subs, subscription{token: s.nextToken, fn: fn})
	return s.nextToken
}

// Unsubscribe implements tabsource.Subscriber.
func (s *Source) Unsubscribe(tok tabsource.Token) {
	for i, sub := range s.subs {
		if sub.token == tok {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			break
		}
	}
	if len(s.subs) == 0 {
		s.hasLast = false
		s.last = nil
	}
}

// WatchTitle implements tabsource.TitleWatcher.
func (s *Source) WatchTitle(id string, fn func(string)) tabsource.Token {
	s.nextToken++
	s.watchers[s.nextToken] = titleWatch{id: id, fn: fn}
	return s.nextToken
}

// UnwatchTitle implements tabsource.TitleWatcher.
func (s *Source) UnwatchTitle(tok tabsource.Token) {
	delete(s.watchers, tok)
}
