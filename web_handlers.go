package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/elijahnyp/timer_programmer/component"
	"github.com/elijahnyp/timer_programmer/programmer"
	"github.com/elijahnyp/timer_programmer/state"
	. "github.com/elijahnyp/timer_programmer/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Data interface{} `json:"data"`
	Type string      `json:"type"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn *websocket.Conn
	send chan WebSocketMessage
	hub  *WSHub
}

// WSHub maintains the set of active clients and broadcasts messages
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan WebSocketMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// APIError is the body of every non-2xx API response.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewHub creates a new WebSocket hub
func NewHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WebSocketMessage, 64),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the WebSocket hub
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			Logger.Info().Msg("Client connected to WebSocket")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				Logger.Info().Msg("Client disconnected from WebSocket")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastUpdate sends an update to all connected clients
func (h *WSHub) BroadcastUpdate(messageType string, data interface{}) {
	select {
	case h.broadcast <- WebSocketMessage{Type: messageType, Data: data}:
	default:
		Logger.Warn().Msgf("websocket broadcast queue full, dropping %s update", messageType)
	}
}

// BroadcastState is a state.Listener forwarding entity state to websocket clients.
func (h *WSHub) BroadcastState(s state.EntityState) {
	h.BroadcastUpdate("state", s)
}

// readPump pumps messages from the websocket connection to the hub
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			return
		}
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		Logger.Debug().Err(err).Msg("Error writing close message")
	}
}

type webAPI struct {
	programmers *component.EntityComponent
	hub         *WSHub
}

func registerRoutes(r chi.Router, api *webAPI) {
	r.Get("/health", api.health)
	r.Get("/ws", api.serveWebSocket)
	r.Route("/api/entities", func(r chi.Router) {
		r.Get("/", api.listEntities)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", api.getEntity)
			r.Get("/bits", api.getBits)
			r.Get("/topics", api.getTopics)
			r.Post("/services/{service}", api.callService)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			Logger.Error().Err(err).Msg("Error encoding response")
		}
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{Status: status, Code: code, Message: message})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, component.ErrUnknownService), errors.Is(err, component.ErrEntityNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, programmer.ErrNotImplemented):
		writeError(w, http.StatusNotImplemented, "not_implemented", err.Error())
	case errors.Is(err, component.ErrInvalidServiceData),
		errors.Is(err, programmer.ErrInvalidBit),
		errors.Is(err, programmer.ErrInvalidValue),
		errors.Is(err, programmer.ErrValueUnset):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (api *webAPI) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"entities": len(api.programmers.Entities()),
		"mqtt":     Client != nil && Client.IsConnected(),
	})
}

func (api *webAPI) listEntities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.programmers.States())
}

func (api *webAPI) getEntity(w http.ResponseWriter, r *http.Request) {
	e, ok := api.programmers.Entity(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, programmer.Snapshot(e))
}

// bitsResponse spells out the value of an entity bit by bit.
type bitsResponse struct {
	EntityID string `json:"entity_id"`
	Value    uint64 `json:"value"`
	Set      []int  `json:"set"`
	Binary   string `json:"binary"`
}

func (api *webAPI) getBits(w http.ResponseWriter, r *http.Request) {
	e, ok := api.programmers.Entity(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "entity not found")
		return
	}
	v, ok := e.Value()
	if !ok {
		writeServiceError(w, fmt.Errorf("%s: %w", e.EntityID(), programmer.ErrValueUnset))
		return
	}
	width := programmer.MaxBit + 1
	if virtual, ok := e.(*programmer.Virtual); ok && virtual.Width > 0 && virtual.Width < width {
		width = virtual.Width
	}
	set := programmer.Bits(v)
	if set == nil {
		set = []int{}
	}
	writeJSON(w, http.StatusOK, bitsResponse{
		EntityID: e.EntityID(),
		Value:    v,
		Set:      set,
		Binary:   programmer.FormatBits(v, width),
	})
}

type topicsResponse struct {
	EntityID string            `json:"entity_id"`
	Driver   string            `json:"driver,omitempty"`
	State    string            `json:"state"`
	Services map[string]string `json:"services"`
	Bits     []bitTopics       `json:"bits,omitempty"`
}

type bitTopics struct {
	Bit     int    `json:"bit"`
	State   string `json:"state"`
	Command string `json:"command"`
}

// getTopics lists the MQTT topics of an entity.
func (api *webAPI) getTopics(w http.ResponseWriter, r *http.Request) {
	e, ok := api.programmers.Entity(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "entity not found")
		return
	}
	key := e.Description().Key
	resp := topicsResponse{
		EntityID: e.EntityID(),
		State:    StateTopic(key),
		Services: make(map[string]string),
	}
	modelMu.Lock()
	if cfg, ok := model.FindEntity(key); ok {
		resp.Driver = cfg.DriverName()
	}
	modelMu.Unlock()
	for _, service := range api.programmers.Services() {
		resp.Services[service] = ServiceTopic(key, service)
	}
	for _, b := range e.Description().Bits {
		resp.Bits = append(resp.Bits, bitTopics{
			Bit:     b.Bit,
			State:   BitStateTopic(key, b.Bit),
			Command: BitCommandTopic(key, b.Bit),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (api *webAPI) callService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	data := map[string]any{}
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&data); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
			return
		}
	}
	delete(data, component.AttrEntityID)

	call := component.ServiceCall{
		Service:   chi.URLParam(r, "service"),
		EntityIDs: []string{id},
		Data:      data,
	}
	if err := api.programmers.CallService(r.Context(), call); err != nil {
		writeServiceError(w, err)
		return
	}

	e, ok := api.programmers.Entity(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, programmer.Snapshot(e))
}

// serveWebSocket upgrades the request and streams state changes, starting
// with a snapshot of every entity.
func (api *webAPI) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan WebSocketMessage, 256),
		hub:  api.hub,
	}
	client.send <- WebSocketMessage{Type: "snapshot", Data: api.programmers.States()}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
