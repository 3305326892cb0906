// ABOUTME: mDNS advertisement of the speaker's rendering service
// ABOUTME: Registers asynchronously and reports back; shuts the responder down on Stop
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/hashicorp/mdns"
)

// DefaultServiceType is the service type senders browse for
const DefaultServiceType = "_airplay._tcp"

// Service describes the record to publish
type Service struct {
	// Name is the instance name, already sanitized
	Name string

	// Type defaults to DefaultServiceType
	Type string

	// Port is the stream listen port
	Port int

	// Protected marks the record as requiring a password to join
	Protected bool

	// Model and Version fill the am and vs TXT records
	Model   string
	Version string

	// Interface restricts the advertised addresses to one network interface
	Interface string

	// IPs overrides address detection
	IPs []net.IP
}

// responder is the running mDNS server
type responder interface {
	Shutdown() error
}

func listenMDNS(config *mdns.Config) (responder, error) {
	return mdns.NewServer(config)
}

// Advertiser publishes one service record at a time
type Advertiser struct {
	listen func(*mdns.Config) (responder, error)

	mu     sync.Mutex
	server responder
	name   string
}

// NewAdvertiser creates an mDNS advertiser
func NewAdvertiser() *Advertiser {
	return &Advertiser{listen: listenMDNS}
}

// Start registers svc in the background and calls done exactly once with the
// outcome. Cancelling ctx before registration completes withdraws the record
// and reports ctx.Err().
func (a *Advertiser) Start(ctx context.Context, svc Service, done func(error)) {
	go func() {
		err := a.register(ctx, svc)
		if err != nil {
			log.Printf("mDNS registration of %q failed: %v", svc.Name, err)
		}
		if done != nil {
			done(err)
		}
	}()
}

func (a *Advertiser) register(ctx context.Context, svc Service) error {
	if svc.Name == "" {
		return errors.New("service name is required")
	}
	if svc.Port <= 0 || svc.Port > 65535 {
		return fmt.Errorf("invalid port %d", svc.Port)
	}
	if svc.Type == "" {
		svc.Type = DefaultServiceType
	}

	ips := svc.IPs
	var iface *net.Interface
	if svc.Interface != "" {
		var err error
		if iface, err = net.InterfaceByName(svc.Interface); err != nil {
			return fmt.Errorf("failed to find interface %s: %w", svc.Interface, err)
		}
	}
	if len(ips) == 0 {
		var err error
		if ips, err = getLocalIPs(iface); err != nil {
			return fmt.Errorf("failed to get local IPs: %w", err)
		}
		if len(ips) == 0 {
			return errors.New("no IPv4 address to advertise")
		}
	}

	zone, err := mdns.NewMDNSService(
		svc.Name,
		svc.Type,
		"",
		"",
		svc.Port,
		ips,
		TXTRecords(svc),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	server, err := a.listen(&mdns.Config{Zone: zone, Iface: iface})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	a.mu.Lock()
	if err := ctx.Err(); err != nil {
		a.mu.Unlock()
		server.Shutdown()
		return err
	}
	previous := a.server
	a.server = server
	a.name = svc.Name
	a.mu.Unlock()

	if previous != nil {
		previous.Shutdown()
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", svc.Name, svc.Port, svc.Type)
	return nil
}

// Stop withdraws the record. Safe to call when nothing is registered.
func (a *Advertiser) Stop() error {
	a.mu.Lock()
	server, name := a.server, a.name
	a.server = nil
	a.mu.Unlock()

	if server == nil {
		return nil
	}
	if err := server.Shutdown(); err != nil {
		return fmt.Errorf("shutdown mdns responder: %w", err)
	}
	log.Printf("mDNS service %s withdrawn", name)
	return nil
}

// getLocalIPs returns the IPv4 addresses of iface, or of every up
// non-loopback interface when iface is nil
func getLocalIPs(iface *net.Interface) ([]net.IP, error) {
	var ifaces []net.Interface
	if iface != nil {
		ifaces = []net.Interface{*iface}
	} else {
		var err error
		if ifaces, err = net.Interfaces(); err != nil {
			return nil, err
		}
	}

	var ips []net.IP
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
