package factory

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fanpulse/livewire/internal/common"
	"github.com/fanpulse/livewire/internal/config"
	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/internal/log"
	"github.com/fanpulse/livewire/internal/provider"
	"github.com/fanpulse/livewire/pkg/pipeline"
)

// CreateProviderManager builds the connection manager with every enabled
// provider registered. The returned close function releases the kafka
// consumer group when the statstream feed is enabled.
func CreateProviderManager(conf *config.Config, clock clockwork.Clock, errorProcessing pipeline.ErrorProcessing, registry prometheus.Registerer, out chan<- entity.DomainEvent) (*provider.Manager, common.CloseFunc, error) {
	manager, err := provider.NewManager(conf.Connection, clock, registry, out)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create provider manager: %w", err)
	}

	manager.WithLogger(log.Logger()).WithErrorProcessing(errorProcessing)

	websocketTransport := provider.NewWebsocketTransport()

	if conf.Providers.FanStats.Enabled {
		err := registerWebsocketProvider(manager, provider.FanStats, websocketTransport, conf.Providers.FanStats)
		if err != nil {
			return nil, nil, err
		}
	}

	if conf.Providers.OddsLine.Enabled {
		err := registerWebsocketProvider(manager, provider.OddsLine, websocketTransport, conf.Providers.OddsLine)
		if err != nil {
			return nil, nil, err
		}
	}

	shutdown := func(context.Context) error { return nil }

	if conf.Providers.StatStream.Enabled {
		group, err := CreateKafkaConsumer(conf.Kafka)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kafka consumer: %w", err)
		}

		shutdown = func(context.Context) error { return group.Close() }

		decoder, err := provider.NewDecoder(provider.StatStream)
		if err != nil {
			return nil, shutdown, err
		}

		transport := provider.NewKafkaTransport(group).WithLogger(log.Logger())

		err = manager.Register(provider.StatStream, transport, decoder, provider.Endpoint{
			Topics: []string{conf.Kafka.Consumer.Topic},
		})
		if err != nil {
			return nil, shutdown, err
		}
	}

	return manager, shutdown, nil
}

func registerWebsocketProvider(manager *provider.Manager, id entity.ProviderID, transport provider.Transport, conf config.WebsocketProvider) error {
	decoder, err := provider.NewDecoder(id)
	if err != nil {
		return err
	}

	return manager.Register(id, transport, decoder, provider.Endpoint{
		URL:    conf.URL,
		Topics: conf.Topics,
	})
}
