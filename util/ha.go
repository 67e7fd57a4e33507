package util

import (
	"encoding/json"
	"fmt"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/elijahnyp/timer_programmer/programmer"
)

type HAAvdvertisementAvailability struct {
	Topic               string `json:"topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
}

type HADeviceSpec struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"ids"`
	Manufacturer string   `json:"mf,omitempty"`
	Model        string   `json:"mdl,omitempty"`
}

type HAAdvertisement struct { //nolint:govet // struct layout optimized for JSON field order
	HAAvdvertisementAvailability []HAAvdvertisementAvailability `json:"availability"`
	Device                       HADeviceSpec                   `json:"device"`
	UniqueID                     string                         `json:"uniq_id"`
	Name                         string                         `json:"name"`
	StateTopic                   string                         `json:"state_topic"`
	CommandTopic                 string                         `json:"command_topic,omitempty"`
	PayloadOn                    string                         `json:"payload_on,omitempty"`
	PayloadOff                   string                         `json:"payload_off,omitempty"`
	Icon                         string                         `json:"icon,omitempty"`
	Platform                     string                         `json:"platform"`
	Qos                          int                            `json:"qos"`
	Retain                       bool                           `json:"retain,omitempty"`
}

func (ha HAAdvertisement) ToJson() string {
	data, err := json.Marshal(ha)
	if err != nil {
		Logger.Error().Msgf("Error marshalling HAAdvertisement: %v", err)
		return ""
	}
	return string(data)
}

func availability() []HAAvdvertisementAvailability {
	return []HAAvdvertisementAvailability{
		{
			Topic:               AvailabilityTopic(),
			PayloadAvailable:    "online",
			PayloadNotAvailable: "offline",
		},
	}
}

func deviceSpec(desc programmer.Description) HADeviceSpec {
	return HADeviceSpec{
		Name:         desc.Name,
		Identifiers:  []string{programmer.Domain + "_" + desc.Key},
		Manufacturer: "timer_programmer",
		Model:        "bitmask timer programmer",
	}
}

// ConstructValueAdvertisement advertises the whole bitmask as a sensor.
func ConstructValueAdvertisement(desc programmer.Description) HAAdvertisement {
	return HAAdvertisement{
		Name:                         desc.Name,
		StateTopic:                   StateTopic(desc.Key),
		HAAvdvertisementAvailability: availability(),
		Qos:                          0,
		UniqueID:                     programmer.Domain + "-" + desc.Key,
		Icon:                         desc.Icon,
		Platform:                     "sensor",
		Device:                       deviceSpec(desc),
	}
}

// ConstructBitAdvertisement advertises one named bit as a switch.
func ConstructBitAdvertisement(desc programmer.Description, bit programmer.BitDescription) HAAdvertisement {
	name := bit.Name
	if name == "" {
		name = fmt.Sprintf("bit %d", bit.Bit)
	}
	return HAAdvertisement{
		Name:                         name,
		StateTopic:                   BitStateTopic(desc.Key, bit.Bit),
		CommandTopic:                 BitCommandTopic(desc.Key, bit.Bit),
		PayloadOn:                    PAYLOAD_ON,
		PayloadOff:                   PAYLOAD_OFF,
		HAAvdvertisementAvailability: availability(),
		Qos:                          0,
		UniqueID:                     fmt.Sprintf("%s-%s-bit%d", programmer.Domain, desc.Key, bit.Bit),
		Platform:                     "switch",
		Device:                       deviceSpec(desc),
	}
}

func discoveryPrefix() string {
	return Config.GetString("discovery_prefix")
}

func ValueDiscoveryTopic(key string) string {
	return fmt.Sprintf("%s/sensor/%s_%s/value/config", discoveryPrefix(), programmer.Domain, key)
}

func BitDiscoveryTopic(key string, bit int) string {
	return fmt.Sprintf("%s/switch/%s_%s/bit%d/config", discoveryPrefix(), programmer.Domain, key, bit)
}

func publishDiscovery(client MQTT.Client, topic string, payload string) {
	if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		Logger.Error().Msgf("Error Publishing discovery to %s: %v", topic, token.Error())
	}
}

func AdvertiseHA(descs []programmer.Description, client MQTT.Client) {
	for _, desc := range descs {
		publishDiscovery(client, ValueDiscoveryTopic(desc.Key), ConstructValueAdvertisement(desc).ToJson())
		for _, bit := range desc.Bits {
			publishDiscovery(client, BitDiscoveryTopic(desc.Key, bit.Bit), ConstructBitAdvertisement(desc, bit).ToJson())
		}
	}
}

// WithdrawHA removes the discovery configs of an entity by publishing empty payloads.
func WithdrawHA(desc programmer.Description, client MQTT.Client) {
	publishDiscovery(client, ValueDiscoveryTopic(desc.Key), "")
	for _, bit := range desc.Bits {
		publishDiscovery(client, BitDiscoveryTopic(desc.Key, bit.Bit), "")
	}
}
