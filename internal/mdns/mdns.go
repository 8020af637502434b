// Package mdns provides optional mDNS/Bonjour advertisement of the YAIL
// server, so clients on the LAN can find it without a typed-in address.
//
// The advertisement carries:
//   - Service type: _yail._tcp
//   - TXT records with the wire format version, host name and supported modes
package mdns

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/ironsheep/yail-server/internal/yail"
)

// ServiceType is the DNS-SD service type for YAIL servers.
const ServiceType = "_yail._tcp"

// Config holds configuration for mDNS advertisement.
type Config struct {
	// Port is the YAIL listener port.
	Port int

	// Name is the instance name. Defaults to the system hostname.
	Name string
}

// Advertiser manages the DNS-SD registration.
type Advertiser struct {
	config Config
	server *zeroconf.Server
	mu     sync.Mutex
}

// NewAdvertiser creates an advertiser with the given configuration.
func NewAdvertiser(cfg Config) *Advertiser {
	return &Advertiser{config: cfg}
}

// Start registers the service. Calling Start while running is a no-op.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}
	if a.config.Port <= 0 || a.config.Port > 65535 {
		return fmt.Errorf("mdns register: invalid port %d", a.config.Port)
	}

	name := instanceName(a.config.Name)
	server, err := zeroconf.Register(name, ServiceType, "local.", a.config.Port, TXTRecords(name), nil)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}

	a.server = server
	return nil
}

// Stop unregisters the service. Safe to call repeatedly or before Start.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// IsRunning reports whether the service is currently registered.
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// TXTRecords builds the TXT strings advertised for an instance.
func TXTRecords(name string) []string {
	return []string{
		"version=" + versionString(),
		"name=" + name,
		"modes=" + strings.Join([]string{yail.Mode8.String(), yail.Mode9.String(), yail.ModeVBXE.String()}, ","),
	}
}

func versionString() string {
	v := yail.Version
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

func instanceName(name string) string {
	if name != "" {
		return name
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "yail"
	}
	return hostname
}

// DiscoveredServer is a YAIL server found on the local network.
type DiscoveredServer struct {
	Name    string
	Host    string
	Port    int
	Version string
	Modes   []string
}

// Discover browses for YAIL servers until ctx is done.
func Discover(ctx context.Context) ([]DiscoveredServer, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	var (
		servers []DiscoveredServer
		wg      sync.WaitGroup
	)
	entries := make(chan *zeroconf.ServiceEntry)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			servers = append(servers, fromEntry(entry))
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	<-ctx.Done()
	wg.Wait()
	return servers, nil
}

func fromEntry(entry *zeroconf.ServiceEntry) DiscoveredServer {
	s := DiscoveredServer{Name: entry.Instance, Port: entry.Port}
	if len(entry.AddrIPv4) > 0 {
		s.Host = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		s.Host = entry.AddrIPv6[0].String()
	}
	for _, txt := range entry.Text {
		key, value, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		switch key {
		case "version":
			s.Version = value
		case "name":
			s.Name = value
		case "modes":
			s.Modes = strings.Split(value, ",")
		}
	}
	return s
}
