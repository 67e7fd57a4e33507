package util

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "TP"

var Config = viper.New()

var (
	config_listeners []func()
	listenersMu      sync.Mutex
)

func RegisterNewConfigListener(new_listener func()) {
	listenersMu.Lock()
	defer listenersMu.Unlock()
	for _, listener := range config_listeners {
		if reflect.ValueOf(new_listener).Pointer() == reflect.ValueOf(listener).Pointer() {
			Logger.Warn().Msg("config listener already registered")
			return
		}
	}
	config_listeners = append(config_listeners, new_listener)
}

// OnNewConfig runs every config listener in registration order.
func OnNewConfig() {
	listenersMu.Lock()
	listeners := append([]func(){}, config_listeners...)
	listenersMu.Unlock()
	for _, listener := range listeners {
		listener()
	}
}

func setDefaults() {
	Config.SetDefault("Broker_URI", "tcp://mqtt:1883")
	Config.SetDefault("Cleansess", false)
	Config.SetDefault("Id_base", "timer_programmer")
	Config.SetDefault("Username", "")
	Config.SetDefault("Password", "")
	Config.SetDefault("Log_level", "info")
	Config.SetDefault("Details_port", 8080)
	Config.SetDefault("Scan_interval", 30)
	Config.SetDefault("Topic_base", "timer_programmer")
	Config.SetDefault("Discovery_prefix", "homeassistant")
	Config.SetDefault("Availability_topic", "hab/online")
	Config.SetDefault("Advertise_interval", 300)
}

func SetupConfig() {
	Config.SetEnvPrefix(ENV_PREFIX)
	setDefaults()

	Config.SetConfigName("timer_programmer")
	Config.AddConfigPath("/")
	Config.AddConfigPath("./")
	Config.AddConfigPath("./config")
	Config.AddConfigPath("/etc")
	Config.AddConfigPath("/timer_programmer")
	Config.AddConfigPath("/timer_programmer/config")

	err := Config.ReadInConfig()
	if err != nil {
		Logger.Error().Msgf("unable to read config file: %v", fmt.Errorf("%v", err))
	}

	Config.AutomaticEnv()

	Config.WatchConfig()
	Config.OnConfigChange(func(e fsnotify.Event) {
		Logger.Info().Msgf("Config file changed: %v", e.Name)
		Logger.Debug().Msgf("Config Additional Info: %v", e.String())
		OnNewConfig()
	})
}
