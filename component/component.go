// Package component is the host side of the timer_programmer domain: it keeps
// the registered entities, routes service calls to them one call per entity at
// a time, sets up and unloads config entries and polls entities that refresh
// themselves.
package component

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elijahnyp/timer_programmer/programmer"
	"github.com/elijahnyp/timer_programmer/state"
)

// AttrEntityID is the service data key that targets specific entities.
const AttrEntityID = "entity_id"

// ServiceCall is a request to run a registered service against entities.
// An empty EntityIDs targets every entity of the component.
type ServiceCall struct {
	ID        string
	Service   string
	EntityIDs []string
	Data      map[string]any
}

// ServiceHandler runs a service against a single entity.
type ServiceHandler func(ctx context.Context, e programmer.Entity, data ServiceData) error

type service struct {
	schema  Schema
	handler ServiceHandler
}

// Entry is a config entry: a group of entities set up and unloaded together.
type Entry struct {
	ID       string
	Title    string
	Entities []programmer.Entity
}

type entityHandle struct {
	entity  programmer.Entity
	entryID string
	mu      sync.Mutex // one service call at a time
}

type EntityComponent struct {
	logger       atomic.Pointer[zerolog.Logger]
	scanInterval time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	entities map[string]*entityHandle
	entries  map[string]Entry
	services map[string]service
	lastScan time.Time

	listenerMu       sync.RWMutex
	listeners        []state.Listener
	removalListeners []func(programmer.Entity)
}

func New(logger zerolog.Logger, scanInterval time.Duration) *EntityComponent {
	if scanInterval <= 0 {
		scanInterval = programmer.ScanInterval
	}
	c := &EntityComponent{
		scanInterval: scanInterval,
		now:          time.Now,
		entities:     make(map[string]*entityHandle),
		entries:      make(map[string]Entry),
		services:     make(map[string]service),
	}
	c.SetLogger(logger)
	return c
}

// SetLogger replaces the logger, e.g. after the log level changed.
func (c *EntityComponent) SetLogger(logger zerolog.Logger) {
	l := logger.With().Str("domain", programmer.Domain).Logger()
	c.logger.Store(&l)
}

func (c *EntityComponent) log() *zerolog.Logger {
	return c.logger.Load()
}

// RegisterEntityService adds or replaces a service of the domain.
func (c *EntityComponent) RegisterEntityService(name string, schema Schema, handler ServiceHandler) {
	c.mu.Lock()
	c.services[name] = service{schema: schema, handler: handler}
	c.mu.Unlock()
	c.log().Debug().Msgf("registered service %s.%s", programmer.Domain, name)
}

func (c *EntityComponent) Services() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OnStateChange registers a listener called after every state change.
func (c *EntityComponent) OnStateChange(l state.Listener) {
	c.listenerMu.Lock()
	c.listeners = append(c.listeners, l)
	c.listenerMu.Unlock()
}

// OnEntityRemoved registers a listener called when an entity is unloaded.
func (c *EntityComponent) OnEntityRemoved(l func(programmer.Entity)) {
	c.listenerMu.Lock()
	c.removalListeners = append(c.removalListeners, l)
	c.listenerMu.Unlock()
}

func (c *EntityComponent) publish(e programmer.Entity) {
	s := programmer.Snapshot(e)
	c.listenerMu.RLock()
	listeners := c.listeners
	c.listenerMu.RUnlock()
	for _, l := range listeners {
		l(s)
	}
}

func (c *EntityComponent) Entity(entityID string) (programmer.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.entities[entityID]
	if !ok {
		return nil, false
	}
	return h.entity, true
}

// Entities returns the registered entities ordered by entity id.
func (c *EntityComponent) Entities() []programmer.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entities))
	for id := range c.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]programmer.Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.entities[id].entity)
	}
	return out
}

func (c *EntityComponent) States() []state.EntityState {
	entities := c.Entities()
	out := make([]state.EntityState, 0, len(entities))
	for _, e := range entities {
		out = append(out, programmer.Snapshot(e))
	}
	return out
}

// CallService validates call.Data against the service schema and runs the
// service on every targeted entity. Errors of individual entities are joined.
func (c *EntityComponent) CallService(ctx context.Context, call ServiceCall) error {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	c.mu.RLock()
	svc, ok := c.services[call.Service]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownService, programmer.Domain, call.Service)
	}

	data, err := svc.schema.Validate(call.Data)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", programmer.Domain, call.Service, err)
	}

	targets, err := c.resolveTargets(call)
	if err != nil {
		return err
	}

	log := c.log().With().Str("call", call.ID).Str("service", call.Service).Logger()
	var errs []error
	for _, h := range targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		id := h.entity.EntityID()
		log.Debug().Msgf("calling %s on %s with %v", call.Service, id, data)
		h.mu.Lock()
		err := svc.handler(ctx, h.entity, data)
		h.mu.Unlock()
		if err != nil {
			log.Warn().Err(err).Msgf("service %s failed on %s", call.Service, id)
			errs = append(errs, err)
			continue
		}
		c.publish(h.entity)
	}
	return errors.Join(errs...)
}

func (c *EntityComponent) resolveTargets(call ServiceCall) ([]*entityHandle, error) {
	ids := append([]string(nil), call.EntityIDs...)
	if raw, ok := call.Data[AttrEntityID]; ok {
		switch v := raw.(type) {
		case string:
			ids = append(ids, v)
		case []string:
			ids = append(ids, v...)
		case []any:
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: entity_id must be a string or a list of strings", ErrInvalidServiceData)
				}
				ids = append(ids, s)
			}
		default:
			return nil, fmt.Errorf("%w: entity_id must be a string or a list of strings", ErrInvalidServiceData)
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(ids) == 0 || (len(ids) == 1 && ids[0] == "all") {
		all := make([]string, 0, len(c.entities))
		for id := range c.entities {
			all = append(all, id)
		}
		ids = all
	}
	sort.Strings(ids)

	var targets []*entityHandle
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		h, ok := c.entities[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
		}
		targets = append(targets, h)
	}
	return targets, nil
}

// SetupEntry registers the entities of entry and publishes their initial state.
func (c *EntityComponent) SetupEntry(entry Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEntry)
	}
	if err := validateEntities(entry.Entities); err != nil {
		return fmt.Errorf("entry %s: %w", entry.ID, err)
	}

	c.mu.Lock()
	if _, ok := c.entries[entry.ID]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEntryExists, entry.ID)
	}
	for _, e := range entry.Entities {
		if _, ok := c.entities[e.EntityID()]; ok {
			c.mu.Unlock()
			return fmt.Errorf("entry %s: %w: %s", entry.ID, ErrEntityExists, e.EntityID())
		}
	}
	for _, e := range entry.Entities {
		c.entities[e.EntityID()] = &entityHandle{entity: e, entryID: entry.ID}
	}
	c.entries[entry.ID] = entry
	c.mu.Unlock()

	c.log().Info().Msgf("set up config entry %s with %d entities", entry.ID, len(entry.Entities))
	for _, e := range entry.Entities {
		c.publish(e)
	}
	return nil
}

func validateEntities(entities []programmer.Entity) error {
	seen := make(map[string]bool, len(entities))
	for _, e := range entities {
		desc := e.Description()
		if desc.Key == "" {
			return fmt.Errorf("%w: entity without key", ErrInvalidEntry)
		}
		if seen[e.EntityID()] {
			return fmt.Errorf("%w: %s", ErrEntityExists, e.EntityID())
		}
		seen[e.EntityID()] = true
		for _, b := range desc.Bits {
			if err := programmer.ValidateBit(b.Bit); err != nil {
				return fmt.Errorf("%s: %w", e.EntityID(), err)
			}
		}
	}
	return nil
}

// UnloadEntry removes the entities of the entry. Calls already running on them finish first.
func (c *EntityComponent) UnloadEntry(id string) error {
	c.mu.Lock()
	entry, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	var removed []*entityHandle
	for _, e := range entry.Entities {
		if h, ok := c.entities[e.EntityID()]; ok && h.entryID == id {
			removed = append(removed, h)
			delete(c.entities, e.EntityID())
		}
	}
	delete(c.entries, id)
	c.mu.Unlock()

	c.listenerMu.RLock()
	listeners := c.removalListeners
	c.listenerMu.RUnlock()
	for _, h := range removed {
		h.mu.Lock()
		h.mu.Unlock() //nolint:staticcheck // wait for an in-flight call
		for _, l := range listeners {
			l(h.entity)
		}
	}
	c.log().Info().Msgf("unloaded config entry %s", id)
	return nil
}

func (c *EntityComponent) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
