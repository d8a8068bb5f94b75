// Package app wires the Telegram bot process together: config, logging,
// storage, backend sessions, reset reminders and the command router.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"taskbot/internal/backend"
	"taskbot/internal/bot"
	"taskbot/internal/config"
	"taskbot/internal/reminder"
	"taskbot/internal/runtime/supervisor"
	"taskbot/internal/session"
	"taskbot/internal/storage"
	kit "taskbot/internal/transport"
	telegram "taskbot/internal/transport/telegram/adapter"
	"taskbot/internal/transport/telegram/router"
	logx "taskbot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	adapter  *telegram.Adapter
	sessions *session.Registry
	bot      *bot.Bot
	rem      *reminder.Service
	router   *router.Router

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return nil, fmt.Errorf("telegram.token is required")
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	cmdTimeout, err := config.ParseDurationOrDefault("telegram.command_timeout", cfg.Telegram.CommandTimeout, 30*time.Second)
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").Component("telegram")
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, bootLog)
	if err != nil {
		return nil, err
	}

	// Telegram logging starts disabled so Apply does not warn about a missing
	// target before SetTelegramTarget runs.
	logCfg := mapLoggingConfig(cfg)
	boot := logCfg
	boot.Telegram.Enabled = false
	logSvc, log := logx.New(boot, ad)
	logSvc.SetTelegramTarget(logTarget(cfg), cfg.Logging.Telegram.ThreadID)
	logSvc.Apply(logCfg)
	log = log.Component("app")

	var store storage.Store
	if sc, enabled, err := MapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.Component("storage"))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	} else {
		log.Warn("storage disabled; logins are lost on restart")
	}

	bc, err := MapBackendConfig(cfg)
	if err != nil {
		return nil, err
	}
	api := backend.New(bc, log.Component("backend"))
	sessions := session.NewRegistry(api, store, log.Component("session"))

	b := bot.New(bot.Deps{
		Sessions: sessions,
		Sender:   ad,
		Store:    store,
		Log:      log.Component("bot"),
	})
	rc, err := mapReminderConfig(cfg)
	if err != nil {
		return nil, err
	}
	rem := reminder.New(rc, b.OnReset, log.Component("reminder"))
	b.SetReminder(rem)

	rt := router.New(log.Component("router"), ad, router.Options{DefaultTimeout: cmdTimeout})
	rt.SetOwners(cfg.Telegram.OwnerUserIDs)

	return &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		store:    store,
		adapter:  ad,
		sessions: sessions,
		bot:      b,
		rem:      rem,
		router:   rt,
		updates:  make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.Component("config"))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapReminderConfig(cfg); err != nil {
			return err
		}
		if _, _, err := MapStorageConfig(cfg); err != nil {
			return err
		}
		_, err := MapBackendConfig(cfg)
		return err
	})

	rctx, cancel := context.WithTimeout(a.sup.Context(), 30*time.Second)
	n, err := a.sessions.Restore(rctx, session.TelegramPrefix)
	cancel()
	if err != nil {
		a.log.Warn("session restore failed", logx.Err(err))
	} else {
		a.log.Info("sessions restored", logx.Int("count", n))
	}

	a.router.SetCommands(a.sup.Context(), a.bot.Commands(), a.bot.Callbacks())

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if err := a.rem.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("reminder: %w", err)
	}

	a.sup.Go("router", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started", logx.Bool("reminders", a.rem.Enabled()))
	return nil
}

// applyConfig hot-applies logging, owners, command timeout and reminders.
// Anything else is only logged as needing a restart.
func (a *App) applyConfig(ctx context.Context, old, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(old, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)
	if config.RequiresRestart(sections) {
		a.log.Warn("some config changes take effect after a restart", logx.Strings("sections", sections))
	}

	a.logs.SetTelegramTarget(logTarget(next), next.Logging.Telegram.ThreadID)
	a.logs.Apply(mapLoggingConfig(next))

	a.router.SetOwners(next.Telegram.OwnerUserIDs)
	if d, err := config.ParseDurationOrDefault("telegram.command_timeout", next.Telegram.CommandTimeout, 30*time.Second); err == nil {
		a.router.SetDefaultTimeout(d)
	}

	if rc, err := mapReminderConfig(next); err != nil {
		a.log.Warn("invalid reminder config; keeping previous", logx.Err(err))
	} else if err := a.rem.Apply(ctx, rc); err != nil {
		a.log.Warn("reminder reconfigure failed", logx.Err(err))
	}

	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.sup.Cancel()

	// step runs fn with an upper bound so one component cannot stall the stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max > 0 {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("reminder", 2*time.Second, func(c context.Context) error { a.rem.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
