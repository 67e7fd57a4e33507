package main

import (
	"fmt"
	"sync"

	"github.com/elijahnyp/timer_programmer/component"
	"github.com/elijahnyp/timer_programmer/programmer"
	. "github.com/elijahnyp/timer_programmer/util"
)

var (
	model   Model
	modelMu sync.Mutex
)

var programmers *component.EntityComponent

func buildEntity(cfg EntityConfig) (programmer.Entity, error) {
	switch cfg.DriverName() {
	case DRIVER_VIRTUAL:
		return programmer.NewVirtual(cfg.Description(), cfg.Initial_value, cfg.Width), nil
	default:
		return nil, fmt.Errorf("entity %s: unknown driver %q", cfg.Key, cfg.Driver)
	}
}

func buildEntry(cfg EntryConfig) (component.Entry, error) {
	entry := component.Entry{ID: cfg.ID, Title: cfg.Title}
	for _, entityCfg := range cfg.Entities {
		e, err := buildEntity(entityCfg)
		if err != nil {
			return component.Entry{}, fmt.Errorf("entry %s: %w", cfg.ID, err)
		}
		entry.Entities = append(entry.Entities, e)
	}
	return entry, nil
}

// syncEntries unloads the entries that disappeared or changed between current
// and next, then sets up every entry of next that is not loaded.
func syncEntries(c *component.EntityComponent, current, next Model) {
	for _, entry := range current.Entries {
		if !next.Changed(entry) {
			continue
		}
		if err := c.UnloadEntry(entry.ID); err != nil {
			Logger.Debug().Msgf("entry %s was not loaded: %v", entry.ID, err)
		}
	}

	loaded := make(map[string]bool)
	for _, entry := range c.Entries() {
		loaded[entry.ID] = true
	}
	for _, cfg := range next.Entries {
		if loaded[cfg.ID] {
			continue
		}
		entry, err := buildEntry(cfg)
		if err != nil {
			Logger.Error().Err(err).Msg("unable to build config entry")
			continue
		}
		if err := c.SetupEntry(entry); err != nil {
			Logger.Error().Err(err).Msgf("unable to set up config entry %s", cfg.ID)
		}
	}
}

func reloadModel() {
	var next Model
	if err := next.BuildModel(); err != nil {
		Logger.Error().Msgf("Error building model: %v", err)
		return
	}
	modelMu.Lock()
	defer modelMu.Unlock()
	syncEntries(programmers, model, next)
	model = next
}

func descriptions() []programmer.Description {
	entities := programmers.Entities()
	descs := make([]programmer.Description, 0, len(entities))
	for _, e := range entities {
		descs = append(descs, e.Description())
	}
	return descs
}
