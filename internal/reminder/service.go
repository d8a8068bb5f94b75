package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"taskbot/internal/recurrence"
	logx "taskbot/pkg/logx"
)

const defaultTimeout = 2 * time.Minute

type entry struct {
	cadence recurrence.Cadence
	spec    string
	sched   cron.Schedule
	id      cron.EntryID
}

type Service struct {
	mu sync.Mutex

	log     logx.Logger
	cfg     Config
	handler Handler
	parser  cron.Parser
	now     func() time.Time

	c       *cron.Cron
	baseCtx context.Context
	entries []entry

	fired  atomic.Uint64
	failed atomic.Uint64
}

func New(cfg Config, h Handler, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg,
		handler: h,
		log:     log,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports the current config flag.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Start registers the enabled cadences and starts cron. It is a no-op when
// the service is disabled or already running. ctx bounds every handler run.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil || !s.cfg.Enabled {
		return nil
	}
	cl := cronLogger{log: s.log}
	s.baseCtx = ctx
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if err := s.registerLocked(); err != nil {
		s.c = nil
		return err
	}
	s.c.Start()
	s.log.Info("service started", logx.Int("entries", len(s.entries)))
	return nil
}

// Stop stops cron and waits for running handlers until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.entries = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("service stopped")
}

// Apply swaps the config. A running service re-registers its entries; a
// service that becomes disabled stops, one that becomes enabled starts.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	running := s.c != nil
	s.cfg = cfg
	if running && cfg.Enabled {
		for _, e := range s.entries {
			s.c.Remove(e.id)
		}
		s.entries = nil
		err := s.registerLocked()
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	switch {
	case running && !cfg.Enabled:
		s.Stop(ctx)
	case !running && cfg.Enabled:
		base := ctx
		s.mu.Lock()
		if s.baseCtx != nil {
			base = s.baseCtx
		}
		s.mu.Unlock()
		return s.Start(base)
	}
	return nil
}

func (s *Service) registerLocked() error {
	for _, c := range enabledCadences(s.cfg.Cadences) {
		spec, _ := Spec(c)
		sched, err := s.parser.Parse(spec)
		if err != nil {
			return fmt.Errorf("parse %s spec: %w", c, err)
		}
		c := c
		id := s.c.Schedule(sched, cron.FuncJob(func() { s.fire(c, sched) }))
		s.entries = append(s.entries, entry{cadence: c, spec: spec, sched: sched, id: id})
		s.log.Debug("reset registered", logx.String("cadence", c.String()), logx.String("spec", spec),
			logx.Time("next", sched.Next(s.now())))
	}
	return nil
}

func enabledCadences(list []recurrence.Cadence) []recurrence.Cadence {
	if len(list) == 0 {
		return recurrence.Cadences
	}
	out := make([]recurrence.Cadence, 0, len(list))
	for _, c := range recurrence.Cadences {
		for _, want := range list {
			if want == c {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// fire runs on cron's goroutine. The boundary is recovered from the schedule
// since cron does not pass the scheduled time; resets are at least a day
// apart so an hour of slack is enough.
func (s *Service) fire(c recurrence.Cadence, sched cron.Schedule) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	at := sched.Next(s.now().Add(-time.Hour))
	if err := s.Fire(ctx, c, at); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("reset handler failed", logx.String("cadence", c.String()), logx.Time("at", at), logx.Err(err))
	}
}

// Fire runs the handler for the reset of c at at, as cron would.
func (s *Service) Fire(ctx context.Context, c recurrence.Cadence, at time.Time) error {
	if !c.Valid() {
		return fmt.Errorf("unknown cadence %q", c)
	}
	s.mu.Lock()
	h := s.handler
	timeout := s.cfg.Timeout
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	s.fired.Add(1)
	err := h(cctx, Reset{Cadence: c, At: at.UTC()})
	if err != nil {
		s.failed.Add(1)
		return err
	}
	s.log.Info("reset handled", logx.String("cadence", c.String()), logx.Time("at", at), logx.Duration("took", time.Since(start)))
	return nil
}

// Next returns the next firing time of c's entry after t.
func (s *Service) Next(c recurrence.Cadence, t time.Time) (time.Time, error) {
	spec, ok := Spec(c)
	if !ok {
		return time.Time{}, fmt.Errorf("unknown cadence %q", c)
	}
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(t), nil
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	cfg := s.cfg
	c := s.c
	entries := make([]entry, len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	now := s.now()
	snap := Snapshot{Enabled: cfg.Enabled, Running: c != nil, Fired: s.fired.Load(), Failed: s.failed.Load()}
	for _, e := range entries {
		it := EntryInfo{Cadence: e.cadence, Spec: e.spec, Next: e.sched.Next(now)}
		if c != nil {
			it.Prev = c.Entry(e.id).Prev
		}
		snap.Entries = append(snap.Entries, it)
	}
	return snap
}

// cronLogger routes cron's chain messages (recovered panics, skipped runs)
// to logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug(msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error(msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
