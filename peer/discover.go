package peer

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"
)

// Broker is a broker found on the local network.
type Broker struct {
	Instance string
	Addr     string
}

// Discover browses the LAN for brokers advertising service for up to
// timeout. Cancelling ctx ends the query early.
func Discover(ctx context.Context, service string, timeout time.Duration) ([]Broker, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	var brokers []Broker
	done := make(chan struct{})

	go func() {
		defer close(done)
		seen := make(map[string]bool)
		for entry := range entries {
			if entry.AddrV4 == nil || seen[entry.Name] {
				continue
			}
			seen[entry.Name] = true
			brokers = append(brokers, Broker{
				Instance: entry.Name,
				Addr:     net.JoinHostPort(entry.AddrV4.String(), strconv.Itoa(entry.Port)),
			})
		}
	}()

	params := mdns.DefaultParams(service)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.QueryContext(ctx, params)
	close(entries)
	<-done
	return brokers, err
}
