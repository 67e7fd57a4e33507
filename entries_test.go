package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/elijahnyp/timer_programmer/component"
	"github.com/elijahnyp/timer_programmer/programmer"
	. "github.com/elijahnyp/timer_programmer/util"
)

func heatingEntry(initial uint64) EntryConfig {
	return EntryConfig{
		ID:    "house",
		Title: "House",
		Entities: []EntityConfig{
			{Key: "heating", Name: "Heating", Initial_value: ptr(initial), Bits: []programmer.BitDescription{{Bit: 0, Name: "Morning"}}},
			{Key: "water", Driver: DRIVER_VIRTUAL, Width: 8},
		},
	}
}

func TestBuildEntity(t *testing.T) {
	e, err := buildEntity(EntityConfig{Key: "heating", Initial_value: ptr(6)})
	if err != nil {
		t.Fatalf("buildEntity failed: %v", err)
	}
	if e.EntityID() != "timer_programmer.heating" {
		t.Errorf("EntityID = %s", e.EntityID())
	}
	if v, ok := e.Value(); !ok || v != 6 {
		t.Errorf("Value = %d, %v, expected 6", v, ok)
	}
	if e.Description().Name != "heating" {
		t.Errorf("Name should default to the key, got %s", e.Description().Name)
	}

	if _, err := buildEntity(EntityConfig{Key: "oven", Driver: "serial"}); err == nil {
		t.Error("expected an error for an unknown driver")
	}
}

func TestBuildEntry(t *testing.T) {
	entry, err := buildEntry(heatingEntry(1))
	if err != nil {
		t.Fatalf("buildEntry failed: %v", err)
	}
	if entry.ID != "house" || len(entry.Entities) != 2 {
		t.Errorf("unexpected entry %+v", entry)
	}

	cfg := heatingEntry(1)
	cfg.Entities[1].Driver = "serial"
	if _, err := buildEntry(cfg); err == nil {
		t.Error("expected an error for an entry with an unknown driver")
	}
}

func TestSyncEntries(t *testing.T) {
	c := component.Setup(zerolog.Nop(), 0)
	garage := EntryConfig{ID: "garage", Entities: []EntityConfig{{Key: "lights"}}}

	first := Model{Entries: []EntryConfig{heatingEntry(1), garage}}
	syncEntries(c, Model{}, first)
	if len(c.Entries()) != 2 || len(c.Entities()) != 3 {
		t.Fatalf("expected 2 entries and 3 entities, got %d and %d", len(c.Entries()), len(c.Entities()))
	}

	// Changing state through a service must survive a reload of an unchanged entry.
	err := c.CallService(context.Background(), component.ServiceCall{
		Service:   programmer.ServiceSetValue,
		EntityIDs: []string{"timer_programmer.lights"},
		Data:      map[string]any{"value": 9},
	})
	if err != nil {
		t.Fatalf("set_value failed: %v", err)
	}

	second := Model{Entries: []EntryConfig{heatingEntry(4), garage}}
	syncEntries(c, first, second)
	heating, ok := c.Entity("timer_programmer.heating")
	if !ok {
		t.Fatal("heating should have been set up again")
	}
	if v, _ := heating.Value(); v != 4 {
		t.Errorf("heating value = %d, expected the new initial value 4", v)
	}
	lights, ok := c.Entity("timer_programmer.lights")
	if !ok {
		t.Fatal("lights should still be loaded")
	}
	if v, _ := lights.Value(); v != 9 {
		t.Errorf("unchanged entry was reloaded, lights value = %d", v)
	}

	third := Model{Entries: []EntryConfig{garage}}
	syncEntries(c, second, third)
	if _, ok := c.Entity("timer_programmer.heating"); ok {
		t.Error("heating should have been unloaded")
	}
	if len(c.Entries()) != 1 {
		t.Errorf("expected 1 entry, got %d", len(c.Entries()))
	}
}

func TestSyncEntriesSkipsBrokenEntry(t *testing.T) {
	c := component.Setup(zerolog.Nop(), 0)
	broken := EntryConfig{ID: "broken", Entities: []EntityConfig{{Key: "oven", Driver: "serial"}}}
	duplicate := EntryConfig{ID: "duplicate", Entities: []EntityConfig{{Key: "heating"}}}

	syncEntries(c, Model{}, Model{Entries: []EntryConfig{heatingEntry(0), broken, duplicate}})

	entries := c.Entries()
	if len(entries) != 1 || entries[0].ID != "house" {
		t.Errorf("only the house entry should be loaded, got %+v", entries)
	}
}

func TestReloadModel(t *testing.T) {
	setupTest(t)
	model = Model{}
	if err := programmers.UnloadEntry("house"); err != nil {
		t.Fatalf("UnloadEntry failed: %v", err)
	}

	Config.Set("model", map[string]any{
		"entries": []map[string]any{
			{
				"id":    "house",
				"title": "House",
				"entities": []map[string]any{
					{"key": "heating", "initial_value": 3, "bits": []map[string]any{{"bit": 1, "name": "Evening"}}},
				},
			},
		},
	})
	t.Cleanup(func() { Config.Set("model", nil) })

	reloadModel()

	heating, ok := programmers.Entity("timer_programmer.heating")
	if !ok {
		t.Fatal("heating should be loaded from the config")
	}
	if on, err := heating.IsOn(1); err != nil || !on {
		t.Errorf("IsOn(1) = %v, %v", on, err)
	}
	if len(model.Entries) != 1 {
		t.Errorf("model not stored, got %+v", model)
	}
	if descs := descriptions(); len(descs) != 1 || descs[0].Bits[0].Name != "Evening" {
		t.Errorf("descriptions = %+v", descs)
	}
}
