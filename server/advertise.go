package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/hashicorp/mdns"
)

// Advertise publishes the broker listening on port as an mDNS service until
// ctx is done.
func Advertise(ctx context.Context, service string, port int) error {
	host, err := os.Hostname()
	if err != nil {
		return err
	}
	instance := fmt.Sprintf("%s-%d", host, os.Getpid())

	zone, err := mdns.NewMDNSService(
		instance, service, "local.", fmt.Sprintf("%s.local.", instance),
		port, localIPs(), []string{"port=" + strconv.Itoa(port)})
	if err != nil {
		return err
	}

	mdnsServer, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return err
	}
	log.Printf("Advertising %s as %s on port %d", service, instance, port)

	<-ctx.Done()
	return mdnsServer.Shutdown()
}

func localIPs() []net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}

	var ips []net.IP
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || ipNet.IP.To4() == nil {
			continue
		}
		ips = append(ips, ipNet.IP)
	}
	return ips
}
