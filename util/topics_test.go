package util

import "testing"

func TestTopicBuilders(t *testing.T) {
	Config.Set("topic_base", "tp/")
	defer Config.Set("topic_base", "timer_programmer")

	tests := []struct {
		got      string
		expected string
	}{
		{StateTopic("heating"), "tp/heating/state"},
		{ServiceTopic("heating", "set_value"), "tp/heating/set_value"},
		{BitStateTopic("heating", 4), "tp/heating/bit/4/state"},
		{BitCommandTopic("heating", 4), "tp/heating/bit/4/set"},
		{CommandSubscription(), "tp/#"},
	}
	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("got %s, expected %s", tt.got, tt.expected)
		}
	}
}

func TestParseCommandTopic(t *testing.T) {
	Config.Set("topic_base", "timer_programmer")

	tests := []struct {
		name   string
		topic  string
		target TopicTarget
		ok     bool
	}{
		{"Service", "timer_programmer/heating/toggle_bit", TopicTarget{Key: "heating", Service: "toggle_bit", Bit: -1}, true},
		{"Bit command", "timer_programmer/heating/bit/3/set", TopicTarget{Key: "heating", Bit: 3}, true},
		{"State topic", "timer_programmer/heating/state", TopicTarget{}, false},
		{"Bit state topic", "timer_programmer/heating/bit/3/state", TopicTarget{}, false},
		{"Bad bit", "timer_programmer/heating/bit/x/set", TopicTarget{}, false},
		{"Other base", "hab/heating/set_value", TopicTarget{}, false},
		{"Too short", "timer_programmer/heating", TopicTarget{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, ok := ParseCommandTopic(tt.topic)
			if ok != tt.ok {
				t.Fatalf("ParseCommandTopic(%s) ok = %v, expected %v", tt.topic, ok, tt.ok)
			}
			if target != tt.target {
				t.Errorf("ParseCommandTopic(%s) = %+v, expected %+v", tt.topic, target, tt.target)
			}
		})
	}
}
