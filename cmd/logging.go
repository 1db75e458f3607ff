package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-plans/config"
)

func configureLogging(cfg *config.Config) error {
	level := strings.TrimSpace(cfg.Log.Level)
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.Log.Level, err)
	}
	logrus.SetLevel(parsed)
	logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	logrus.AddHook(serviceNameHook(cfg.App.ServiceName))
	return nil
}

type serviceNameHook string

func (h serviceNameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h serviceNameHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = string(h)
	}
	return nil
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}
