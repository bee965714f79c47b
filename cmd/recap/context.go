package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"recap/internal/cache"
	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/notify"
	"recap/internal/orchestrator"
	"recap/internal/store"
	"recap/internal/tasks"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

// runtime bundles the service stack shared by the serving and one-shot
// commands.
type runtime struct {
	cfg      *config.Config
	store    *store.Store
	notifier *notify.Service
	runner   *tasks.Runner
	orch     *orchestrator.Orchestrator
	logger   *slog.Logger
}

func (c *commandContext) buildRuntime() (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.newLogger()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	var senders []notify.Sender
	if cfg.Notifications.Email.Enabled {
		senders = append(senders, notify.NewEmailSender(cfg.Notifications.Email))
	}
	if cfg.Notifications.Telegram.Enabled {
		senders = append(senders, notify.NewTelegramSender(cfg.Notifications.Telegram))
	}
	notifier := notify.NewService(st, senders, "", logger)

	runner := tasks.NewRunner(logger, 2*time.Minute)
	orch := orchestrator.NewFromConfig(cfg, st, cache.NewMemory(), notifier, runner, logger)

	return &runtime{
		cfg:      cfg,
		store:    st,
		notifier: notifier,
		runner:   runner,
		orch:     orch,
		logger:   logger,
	}, nil
}

func (r *runtime) close() {
	r.runner.Wait()
	_ = r.store.Close()
}
