package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const prefix = "LIVEWIRE"

var conf Config

// Parse reads the configuration file given as parameter.
func Parse(confFile string) (*Config, error) {
	setDefault()

	viper.SetEnvPrefix(prefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	if len(confFile) > 0 {
		viper.SetConfigFile(confFile)

		err := viper.ReadInConfig()
		if err != nil {
			return &conf, fmt.Errorf("failed to read config file %v: %w", confFile, err)
		}
	}

	err := viper.Unmarshal(&conf)
	if err != nil {
		return &conf, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	err = conf.Validate()
	if err != nil {
		return &conf, fmt.Errorf("invalid config: %w", err)
	}

	return &conf, nil
}

func setDefault() {
	viper.SetDefault("gracefulDuration", "15s")
	viper.SetDefault("logs.level", 4)
	viper.SetDefault("logs.encoder", EncoderTypeConsole)
	viper.SetDefault("metrics.port", 7777)

	viper.SetDefault("pipeline.workers", 8)
	viper.SetDefault("pipeline.eventBuffer", 1024)

	viper.SetDefault("connection.dialTimeout", "8s")
	viper.SetDefault("connection.backoffBaseDelay", "1s")
	viper.SetDefault("connection.backoffMaxDelay", "30s")
	viper.SetDefault("connection.maxConsecutiveFailures", 5)
	viper.SetDefault("connection.healthInterval", "5s")
	viper.SetDefault("connection.staleThreshold", "30s")

	viper.SetDefault("cache.shards", 16)
	viper.SetDefault("cache.ringCapacity", 100)

	viper.SetDefault("router.resolveTimeout", "5s")
	viper.SetDefault("router.minFantasyDelta", 1.0)
	viper.SetDefault("router.quoteMoveThreshold", 0.05)

	viper.SetDefault("dispatch.tickInterval", "1s")
	viper.SetDefault("dispatch.batchSize", 10)
	viper.SetDefault("dispatch.queueCapacity", 16384)
	viper.SetDefault("dispatch.maxAttempts", 3)

	viper.SetDefault("delivery.workers", 4)
	viper.SetDefault("delivery.batchFlushInterval", "60s")

	for _, channel := range []string{"websocket", "push", "sms", "email"} {
		viper.SetDefault(fmt.Sprintf("delivery.policies.%s.retryAttempts", channel), 3)
		viper.SetDefault(fmt.Sprintf("delivery.policies.%s.retryDelay", channel), "200ms")
	}

	viper.SetDefault("delivery.policies.websocket.maxPerMinute", 120)
	viper.SetDefault("delivery.policies.push.maxPerMinute", 30)
	viper.SetDefault("delivery.policies.push.maxPerHour", 300)
	viper.SetDefault("delivery.policies.push.batchable", true)
	viper.SetDefault("delivery.policies.sms.maxPerMinute", 2)
	viper.SetDefault("delivery.policies.sms.maxPerHour", 10)
	viper.SetDefault("delivery.policies.sms.maxPerDay", 30)
	viper.SetDefault("delivery.policies.email.maxPerHour", 20)
	viper.SetDefault("delivery.policies.email.maxPerDay", 100)
	viper.SetDefault("delivery.policies.email.batchable", true)

	viper.SetDefault("channels.websocket.port", 8080)

	viper.SetDefault("history.ttl", "24h")
	viper.SetDefault("history.keyPrefix", "history")
}
