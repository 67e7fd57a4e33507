package util

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic layout, relative to the configured topic_base:
//
//	<base>/<key>/state              decimal value, retained
//	<base>/<key>/<service>          service call, JSON object or bare integer
//	<base>/<key>/bit/<n>/state      ON or OFF, retained
//	<base>/<key>/bit/<n>/set        ON, OFF or TOGGLE
const (
	PAYLOAD_ON     = "ON"
	PAYLOAD_OFF    = "OFF"
	PAYLOAD_TOGGLE = "TOGGLE"
)

func TopicBase() string {
	return strings.TrimSuffix(Config.GetString("topic_base"), "/")
}

func StateTopic(key string) string {
	return fmt.Sprintf("%s/%s/state", TopicBase(), key)
}

func ServiceTopic(key, service string) string {
	return fmt.Sprintf("%s/%s/%s", TopicBase(), key, service)
}

func BitStateTopic(key string, bit int) string {
	return fmt.Sprintf("%s/%s/bit/%d/state", TopicBase(), key, bit)
}

func BitCommandTopic(key string, bit int) string {
	return fmt.Sprintf("%s/%s/bit/%d/set", TopicBase(), key, bit)
}

// CommandSubscription is the wildcard covering every command topic.
func CommandSubscription() string {
	return TopicBase() + "/#"
}

// TopicTarget is a command topic split into its parts. Bit is -1 for service topics.
type TopicTarget struct {
	Key     string
	Service string
	Bit     int
}

// ParseCommandTopic recognises service and bit command topics. State topics
// and anything outside the topic base are rejected.
func ParseCommandTopic(topic string) (TopicTarget, bool) {
	rest, ok := strings.CutPrefix(topic, TopicBase()+"/")
	if !ok {
		return TopicTarget{}, false
	}
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 2 && parts[0] != "" && parts[1] != "state":
		return TopicTarget{Key: parts[0], Service: parts[1], Bit: -1}, true
	case len(parts) == 4 && parts[0] != "" && parts[1] == "bit" && parts[3] == "set":
		bit, err := strconv.Atoi(parts[2])
		if err != nil {
			return TopicTarget{}, false
		}
		return TopicTarget{Key: parts[0], Bit: bit}, true
	}
	return TopicTarget{}, false
}
