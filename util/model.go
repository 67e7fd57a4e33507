package util

import (
	"fmt"
	"reflect"

	"github.com/elijahnyp/timer_programmer/programmer"
)

const (
	DRIVER_VIRTUAL = "virtual"
)

// Model is the "model" section of the config: config entries and their entities.
type Model struct {
	Entries []EntryConfig `mapstructure:"entries"`
}

type EntryConfig struct {
	ID       string         `mapstructure:"id"`
	Title    string         `mapstructure:"title"`
	Entities []EntityConfig `mapstructure:"entities"`
}

type EntityConfig struct {
	Key           string                      `mapstructure:"key"`
	Name          string                      `mapstructure:"name"`
	Icon          string                      `mapstructure:"icon"`
	Driver        string                      `mapstructure:"driver"`
	Initial_value *uint64                     `mapstructure:"initial_value"`
	Width         int                         `mapstructure:"width"`
	Bits          []programmer.BitDescription `mapstructure:"bits"`
}

func (e EntityConfig) Description() programmer.Description {
	name := e.Name
	if name == "" {
		name = e.Key
	}
	return programmer.Description{
		Key:  e.Key,
		Name: name,
		Icon: e.Icon,
		Bits: e.Bits,
	}
}

func (e EntityConfig) DriverName() string {
	if e.Driver == "" {
		return DRIVER_VIRTUAL
	}
	return e.Driver
}

func (m *Model) BuildModel() error {
	*m = Model{}
	err := Config.UnmarshalKey("model", m)
	if err != nil {
		Logger.Error().Msgf("error unmarshaling model: %v", err)
		return fmt.Errorf("unmarshaling model: %w", err)
	}
	return nil
}

func (m Model) FindEntry(id string) (EntryConfig, bool) {
	for _, entry := range m.Entries {
		if entry.ID == id {
			return entry, true
		}
	}
	return EntryConfig{}, false
}

// FindEntity looks an entity up by its key across all entries.
func (m Model) FindEntity(key string) (EntityConfig, bool) {
	for _, entry := range m.Entries {
		for _, entity := range entry.Entities {
			if entity.Key == key {
				return entity, true
			}
		}
	}
	return EntityConfig{}, false
}

// Changed reports whether entry differs from the entry with the same id in m.
func (m Model) Changed(entry EntryConfig) bool {
	old, ok := m.FindEntry(entry.ID)
	if !ok {
		return true
	}
	return !reflect.DeepEqual(old, entry)
}
