package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"caseflow/internal/config"
	"caseflow/internal/engine"
	"caseflow/internal/logging"
	"caseflow/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	store *store.Store
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

// openEngine opens the database directly and wires a quiet engine for
// one-shot administrative commands.
func (c *commandContext) openEngine() (*engine.Engine, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if c.store == nil {
		st, err := store.Open(cfg)
		if err != nil {
			return nil, err
		}
		c.store = st
	}
	return engine.New(cfg, c.store, logging.NewNop())
}

func (c *commandContext) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func actorFlag(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("actor")
	if strings.TrimSpace(v) == "" {
		return "cli"
	}
	return strings.TrimSpace(v)
}
