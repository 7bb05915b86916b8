package rmw

import (
	"context"
	"log/slog"
	"time"

	"github.com/jazi007/oxidros/errors"
	"github.com/jazi007/oxidros/message"
	"github.com/jazi007/oxidros/metric"
)

// selEndpoint is one registered event source inside a Selector.
type selEndpoint struct {
	gid        message.GID
	hasPending func() bool
	isClosed   func() bool
	dispatch   func() error
}

// selTimer is one registered timer. next is the absolute instant of
// the next firing; periodic timers re-arm, one-shots are removed.
type selTimer struct {
	id       uint64
	period   time.Duration
	periodic bool
	next     time.Time
	cb       func() error
}

// Selector is a cooperative event loop over subscribers, servers, and
// timers. Each Wait invokes exactly one handler: the earliest due timer
// wins over any ready endpoint, and endpoints are polled in
// registration order. A Selector must be driven from a single
// goroutine; handlers run on that goroutine.
type Selector struct {
	logger  *slog.Logger
	metrics *metric.Metrics

	endpoints   []*selEndpoint
	byGID       map[message.GID]*selEndpoint
	timers      map[uint64]*selTimer
	nextTimer   uint64
	paramServer bool

	wake chan struct{}
}

func newSelector(logger *slog.Logger, metrics *metric.Metrics) *Selector {
	return &Selector{
		logger:    logger.With("component", "selector"),
		metrics:   metrics,
		byGID:     make(map[message.GID]*selEndpoint),
		timers:    make(map[uint64]*selTimer),
		nextTimer: 1,
		wake:      make(chan struct{}, 1),
	}
}

// wakeup is called from transport goroutines when an endpoint becomes
// ready. It never blocks.
func (s *Selector) wakeup() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Selector) add(gid message.GID, hasPending, isClosed func() bool, dispatch func() error) bool {
	if _, dup := s.byGID[gid]; dup {
		return false
	}
	ep := &selEndpoint{gid: gid, hasPending: hasPending, isClosed: isClosed, dispatch: dispatch}
	s.byGID[gid] = ep
	s.endpoints = append(s.endpoints, ep)
	return true
}

// Remove unregisters an endpoint by gid. It reports whether the gid was
// registered.
func (s *Selector) Remove(gid message.GID) bool {
	ep, ok := s.byGID[gid]
	if !ok {
		return false
	}
	delete(s.byGID, gid)
	for i, e := range s.endpoints {
		if e == ep {
			s.endpoints = append(s.endpoints[:i], s.endpoints[i+1:]...)
			break
		}
	}
	return true
}

// AddSubscriber registers a subscriber with a per-message handler. It
// returns false if the subscriber's gid is already registered.
func AddSubscriber[T message.Message](s *Selector, sub *Subscriber[T], handler func(T, message.MessageInfo) error) bool {
	ok := s.add(sub.GID(), sub.hasPending, sub.isClosed, func() error {
		msg, info, got, err := sub.TryRecv()
		if err != nil || !got {
			return err
		}
		return handler(msg, info)
	})
	if ok {
		sub.setOnReady(s.wakeup)
	}
	return ok
}

// AddServer registers a service server with a per-request handler. It
// returns false if the server's gid is already registered.
func AddServer[Req, Res message.Message](s *Selector, srv *Server[Req, Res], handler func(*ServiceRequest[Req, Res]) error) bool {
	ok := s.add(srv.GID(), srv.hasPending, srv.isClosed, func() error {
		req, got, err := srv.TakeRequest()
		if err != nil || !got {
			return err
		}
		return handler(req)
	})
	if ok {
		srv.setOnReady(s.wakeup)
	}
	return ok
}

// AddParameterServer registers a parameter server's six services. A
// selector carries at most one parameter server; a second registration
// returns false.
func (s *Selector) AddParameterServer(ps *ParameterServer) bool {
	return ps.AddToSelector(s)
}

// AddTimer registers a one-shot timer firing once after the given
// delay. It returns the timer id used with RemoveTimer; the id is
// never reused within this Selector.
func (s *Selector) AddTimer(delay time.Duration, cb func() error) uint64 {
	return s.addTimer(delay, false, cb)
}

// AddWallTimer registers a periodic timer that first fires one period
// from now and re-arms itself after each firing. The name is carried
// for diagnostics only.
func (s *Selector) AddWallTimer(name string, period time.Duration, cb func() error) uint64 {
	_ = name
	return s.addTimer(period, true, cb)
}

func (s *Selector) addTimer(period time.Duration, periodic bool, cb func() error) uint64 {
	id := s.nextTimer
	s.nextTimer++
	s.timers[id] = &selTimer{
		id:       id,
		period:   period,
		periodic: periodic,
		next:     time.Now().Add(period),
		cb:       cb,
	}
	return id
}

// RemoveTimer cancels a timer. Removing an unknown id is a no-op.
func (s *Selector) RemoveTimer(id uint64) {
	delete(s.timers, id)
}

// pruneClosed drops endpoints whose entity has been destroyed, without
// invoking their handlers.
func (s *Selector) pruneClosed() {
	kept := s.endpoints[:0]
	for _, ep := range s.endpoints {
		if ep.isClosed != nil && ep.isClosed() {
			delete(s.byGID, ep.gid)
			continue
		}
		kept = append(kept, ep)
	}
	s.endpoints = kept
}

// earliestDue returns the due timer with the earliest deadline, or nil
// when none is due at now.
func (s *Selector) earliestDue(now time.Time) *selTimer {
	var due *selTimer
	for _, t := range s.timers {
		if t.next.After(now) {
			continue
		}
		if due == nil || t.next.Before(due.next) || (t.next.Equal(due.next) && t.id < due.id) {
			due = t
		}
	}
	return due
}

// nextDeadline returns the earliest timer deadline, if any timer exists.
func (s *Selector) nextDeadline() (time.Time, bool) {
	var deadline time.Time
	found := false
	for _, t := range s.timers {
		if !found || t.next.Before(deadline) {
			deadline = t.next
			found = true
		}
	}
	return deadline, found
}

// Wait blocks until exactly one handler has run, then returns that
// handler's error. Due timers take priority over ready endpoints, and
// among due timers the earliest deadline fires first. The context
// bounds the wait.
func (s *Selector) Wait(ctx context.Context) error {
	s.metrics.SelectorPolls.Inc()
	for {
		now := time.Now()
		if t := s.earliestDue(now); t != nil {
			if t.periodic {
				t.next = t.next.Add(t.period)
				if !t.next.After(now) {
					// Late by more than a period; skip the backlog.
					t.next = now.Add(t.period)
				}
			} else {
				delete(s.timers, t.id)
			}
			s.metrics.TimerFirings.Inc()
			return t.cb()
		}

		s.pruneClosed()
		for _, ep := range s.endpoints {
			if ep.hasPending() {
				return ep.dispatch()
			}
		}

		var timerC <-chan time.Time
		var tm *time.Timer
		if deadline, ok := s.nextDeadline(); ok {
			tm = time.NewTimer(time.Until(deadline))
			timerC = tm.C
		}
		select {
		case <-ctx.Done():
			if tm != nil {
				tm.Stop()
			}
			return errors.WrapTransient(errors.ErrTimeout, "Selector", "Wait", "wait for event")
		case <-s.wake:
		case <-timerC:
		}
		if tm != nil {
			tm.Stop()
		}
	}
}

// WaitTimeout is Wait with a fresh deadline.
func (s *Selector) WaitTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Wait(ctx)
}
