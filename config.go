package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"wildkeep/server/internal/guardian"
)

// ServerConfig is the process-level configuration snapshot taken from the
// environment at startup.
type ServerConfig struct {
	Addr          string   `env:"WILDKEEP_ADDR" envDefault:":8080"`
	DatabasePath  string   `env:"WILDKEEP_DB" envDefault:"wildkeep.db"`
	RulesPath     string   `env:"WILDKEEP_RULES"`
	BestiaryPath  string   `env:"WILDKEEP_BESTIARY"`
	AbilitiesPath string   `env:"WILDKEEP_ABILITIES"`
	LogSinks      []string `env:"WILDKEEP_LOG_SINKS" envSeparator:"," envDefault:"console"`
	LogJSONPath   string   `env:"WILDKEEP_LOG_JSON" envDefault:"wildkeep-events.ndjson"`
	TickHz        int      `env:"WILDKEEP_TICK_HZ" envDefault:"10"`
}

func loadServerConfig() (ServerConfig, error) {
	cfg, err := env.ParseAs[ServerConfig]()
	if err != nil {
		return ServerConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.TickHz < 1 || cfg.TickHz > 60 {
		cfg.TickHz = 10
	}
	return cfg, nil
}

// loadRules reads the YAML rules file over the shipped defaults. An empty
// path yields the defaults unchanged.
func loadRules(path string) (guardian.Rules, error) {
	rules := guardian.DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("decode rules file: %w", err)
	}
	return rules.Normalized(), nil
}

// watchRules reloads the rules file on write and hands each good snapshot to
// onChange. Runs until stop closes. Editors that replace the file are
// covered by watching the directory.
func watchRules(path string, stop <-chan struct{}, onChange func(guardian.Rules)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("rules watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()
		// Debounce: editors fire several events per save.
		var pending <-chan time.Time
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(250 * time.Millisecond)
			case <-pending:
				pending = nil
				rules, err := loadRules(path)
				if err != nil {
					log.Printf("rules reload failed, keeping previous snapshot: %v", err)
					continue
				}
				onChange(rules)
				log.Printf("rules reloaded from %s", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("rules watcher error: %v", err)
			}
		}
	}()
	return nil
}
