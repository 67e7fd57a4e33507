package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/elijahnyp/timer_programmer/component"
	"github.com/elijahnyp/timer_programmer/programmer"
	"github.com/elijahnyp/timer_programmer/state"
	. "github.com/elijahnyp/timer_programmer/util"
)

var (
	command_subscription string
	subscriptionMu       sync.Mutex
)

func subscribeCommandTopics() {
	subscriptionMu.Lock()
	defer subscriptionMu.Unlock()
	topic := CommandSubscription()
	if command_subscription != "" && command_subscription != topic {
		RegisterMQTTSubscription(command_subscription, nil)
	}
	command_subscription = topic
	RegisterMQTTSubscription(topic, commandReceiver)
}

func entityKey(entityID string) string {
	return strings.TrimPrefix(entityID, programmer.Domain+".")
}

// commandToServiceCall turns a command topic and its payload into a service call.
// Service topics take a JSON object or a bare integer for the service's field;
// bit topics take ON, OFF or TOGGLE.
func commandToServiceCall(target TopicTarget, payload []byte) (component.ServiceCall, error) {
	call := component.ServiceCall{
		EntityIDs: []string{fmt.Sprintf(programmer.EntityIDFormat, target.Key)},
	}
	body := bytes.TrimSpace(payload)

	if target.Bit >= 0 {
		switch strings.ToUpper(string(body)) {
		case PAYLOAD_ON:
			call.Service = programmer.ServiceTurnOnBit
		case PAYLOAD_OFF:
			call.Service = programmer.ServiceTurnOffBit
		case PAYLOAD_TOGGLE:
			call.Service = programmer.ServiceToggleBit
		default:
			return call, fmt.Errorf("unsupported bit command %q", body)
		}
		call.Data = map[string]any{programmer.AttrBit: target.Bit}
		return call, nil
	}

	call.Service = target.Service
	if len(body) == 0 {
		return call, fmt.Errorf("empty payload for %s", target.Service)
	}
	if body[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&call.Data); err != nil {
			return call, fmt.Errorf("decoding %s payload: %w", target.Service, err)
		}
		// The topic names the target; a body cannot widen it.
		delete(call.Data, component.AttrEntityID)
		return call, nil
	}
	field := programmer.AttrBit
	if target.Service == programmer.ServiceSetValue {
		field = programmer.AttrValue
	}
	call.Data = map[string]any{field: string(body)}
	return call, nil
}

func commandReceiver(client MQTT.Client, message MQTT.Message) {
	target, ok := ParseCommandTopic(message.Topic())
	if !ok {
		Logger.Trace().Msgf("ignoring message on %s", message.Topic())
		return
	}
	call, err := commandToServiceCall(target, message.Payload())
	if err != nil {
		Logger.Warn().Err(err).Msgf("bad command on %s", message.Topic())
		return
	}
	Logger.Debug().Msgf("command %s for %s", call.Service, target.Key)
	if err := programmers.CallService(context.Background(), call); err != nil {
		Logger.Error().Err(err).Msgf("service %s on %s failed", call.Service, target.Key)
	}
}

func publishState(s state.EntityState) {
	key := entityKey(s.EntityID)
	if err := Publish(StateTopic(key), true, s.State()); err != nil {
		Logger.Debug().Msgf("state not published: %v", err)
		return
	}
	if s.Value == nil {
		return
	}
	for _, b := range s.Bits {
		payload := PAYLOAD_OFF
		if b.On {
			payload = PAYLOAD_ON
		}
		if err := Publish(BitStateTopic(key, b.Bit), true, payload); err != nil {
			Logger.Debug().Msgf("bit state not published: %v", err)
		}
	}
}

func withdrawEntity(e programmer.Entity) {
	if Client == nil || !Client.IsConnected() {
		return
	}
	Logger.Info().Msgf("withdrawing %s from Home Assistant", e.EntityID())
	WithdrawHA(e.Description(), Client)
}

func advertiseAll(client MQTT.Client) {
	AdvertiseHA(descriptions(), client)
	for _, s := range programmers.States() {
		publishState(s)
	}
}

func OnlinePinger(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := Publish(AvailabilityTopic(), true, "online"); err != nil {
				Logger.Debug().Msgf("Error publishing online message: %v", err)
			}
		}
	}
}

// HAAdvertiser re-advertises Home Assistant discovery messages every advertise_interval seconds.
func HAAdvertiser(ctx context.Context) {
	interval := time.Duration(Config.GetInt("advertise_interval")) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if Client != nil && Client.IsConnected() {
				Logger.Debug().Msg("Advertising Home Assistant discovery messages")
				AdvertiseHA(descriptions(), Client)
			}
		}
	}
}
