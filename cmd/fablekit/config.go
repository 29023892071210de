package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/fablekit/fablekit/internal/store"
	"github.com/fablekit/fablekit/pkg/llm"
	"github.com/fablekit/fablekit/pkg/migrate"
	"github.com/fablekit/fablekit/pkg/session"
	"github.com/fablekit/fablekit/pkg/world"
)

// runtimeConfig holds CLI settings pulled from the environment.
type runtimeConfig struct {
	DB             string `env:"FABLEKIT_DB" envDefault:"fablekit.db"`
	TokenBudget    int    `env:"FABLEKIT_TOKEN_BUDGET" envDefault:"2048"`
	RecursionDepth int    `env:"FABLEKIT_RECURSION_DEPTH" envDefault:"2"`
	Provider       string `env:"FABLEKIT_PROVIDER" envDefault:"openrouter"`
	Model          string `env:"FABLEKIT_MODEL"`
	APIKey         string `env:"FABLEKIT_API_KEY"`
}

func loadConfig() (runtimeConfig, error) {
	var cfg runtimeConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func openStore(cfg runtimeConfig) (*store.SQLiteStore, error) {
	return store.NewSQLiteStoreWithDSN("file:" + cfg.DB)
}

// newProvider builds the generation provider, or nil when no key is set.
// Commands that do not generate work without one.
func newProvider(cfg runtimeConfig) llm.Provider {
	lc := llm.Config{Provider: cfg.Provider, Model: cfg.Model, APIKey: cfg.APIKey}
	if !lc.IsConfigured() {
		return nil
	}
	return llm.NewOpenRouter(lc)
}

func newSessionService(cfg runtimeConfig, st *store.SQLiteStore) *session.Service {
	return session.NewService(st, newProvider(cfg), session.Config{
		TokenBudget:    cfg.TokenBudget,
		RecursionDepth: cfg.RecursionDepth,
	})
}

// readWorldDocument reads a world file as raw JSON bytes, converting YAML
// documents along the way so the migration chain only ever sees JSON.
func readWorldDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml %s: %w", path, err)
		}
		return json.Marshal(doc)
	default:
		return data, nil
	}
}

func loadWorldFile(path string) (*world.WorldDefinition, error) {
	data, err := readWorldDocument(path)
	if err != nil {
		return nil, err
	}
	return migrate.Load(data)
}
