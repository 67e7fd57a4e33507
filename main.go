package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elijahnyp/timer_programmer/component"
	. "github.com/elijahnyp/timer_programmer/util"
)

func main() {
	LogInit("trace")
	SetupConfig()

	programmers = component.Setup(Logger, time.Duration(Config.GetInt("scan_interval"))*time.Second)
	hub := NewHub()
	go hub.Run()

	programmers.OnStateChange(publishState)
	programmers.OnStateChange(hub.BroadcastState)
	programmers.OnEntityRemoved(withdrawEntity)

	RegisterNewConfigListener(func() {
		LogInit(Config.GetString("log_level"))
		programmers.SetLogger(Logger)
	})
	RegisterNewConfigListener(reloadModel)
	RegisterNewConfigListener(subscribeCommandTopics)
	RegisterMQTTConnectHook("haadvertise", advertiseAll)
	RegisterNewConfigListener(MqttInit)
	OnNewConfig()

	monitor := NewMonitorServer()
	registerRoutes(monitor.Router(), &webAPI{programmers: programmers, hub: hub})
	if err := monitor.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}
	RegisterNewConfigListener(monitor.Restart)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go programmers.Run(ctx)
	go OnlinePinger(ctx)
	go HAAdvertiser(ctx)
	Logger.Info().Msg("ready")

	<-ctx.Done()
	Logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	monitor.Stop(shutdownCtx)
	if Client != nil && Client.IsConnected() {
		if err := Publish(AvailabilityTopic(), true, "offline"); err != nil {
			Logger.Warn().Msgf("Error publishing offline message: %v", err)
		}
		Client.Disconnect(250)
	}
}
