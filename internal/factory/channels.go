package factory

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fanpulse/livewire/internal/config"
	"github.com/fanpulse/livewire/internal/delivery/channel"
	"github.com/fanpulse/livewire/internal/log"
)

// CreateChannelRegistry builds the sender registry for all four delivery
// channels. The hub is returned separately so the caller can mount it on an
// HTTP server and close it on shutdown.
func CreateChannelRegistry(conf config.Channels, registry prometheus.Registerer) (*channel.Registry, *channel.Hub, error) {
	hub, err := channel.NewHub(registry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create websocket hub: %w", err)
	}

	hub.WithLogger(log.Logger())

	ret := channel.NewRegistry()
	ret.Register(hub)
	ret.Register(channel.NewPush(conf.Push))
	ret.Register(channel.NewSMS(conf.SMS))
	ret.Register(channel.NewEmail(conf.Email))

	return ret, hub, nil
}

// CreateWebsocketServer serves the session hub for browser connections on
// ws://<host>:<port>/ws?user=<id>.
func CreateWebsocketServer(conf config.WebsocketChannel, hub *channel.Hub) *http.Server {
	ret := &http.Server{Addr: fmt.Sprintf(":%v", conf.Port)}
	ret.SetKeepAlivesEnabled(true)
	ret.IdleTimeout = 5 * time.Second

	router := http.NewServeMux()
	router.Handle("/ws", hub)
	ret.Handler = router

	return ret
}
