package discovery

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/system"
)

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface.
	// Empty string means all interfaces.
	Interface string

	// TTL of the published records. Zero keeps the zeroconf default.
	TTL time.Duration

	// Port is the advertised control port. Default: DefaultPort.
	Port int
}

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (shutdowner, error)

type shutdowner interface{ Shutdown() }

// Advertiser publishes cameras as ServiceType instances, one zeroconf
// server per MAC address.
type Advertiser struct {
	config   AdvertiserConfig
	register registerFunc

	mu      sync.Mutex
	servers map[string]shutdowner
}

// NewAdvertiser creates an mDNS advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	return &Advertiser{
		config: config,
		register: func(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (shutdowner, error) {
			return zeroconf.Register(instance, service, domain, port, text, ifaces, opts...)
		},
		servers: make(map[string]shutdowner),
	}
}

// getInterfaces returns the network interfaces to advertise on, nil
// meaning all of them.
func (a *Advertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise publishes info. A camera already advertised is re-published
// with the new records.
func (a *Advertiser) Advertise(info system.DeviceInfo) error {
	mac, err := system.NormalizeMAC(info.MACAddress)
	if err != nil {
		return err
	}
	info.MACAddress = mac
	instance := InstanceName(info)
	if err := ValidateInstanceName(instance); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if server, ok := a.servers[mac]; ok {
		server.Shutdown()
		delete(a.servers, mac)
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}
	server, err := a.register(instance, ServiceType, Domain, a.config.Port,
		TXTRecordsToStrings(EncodeDeviceTXT(info)), a.getInterfaces(), opts...)
	if err != nil {
		return fmt.Errorf("registering %s: %w", instance, err)
	}
	a.servers[mac] = server
	return nil
}

// Stop withdraws the camera with the given MAC address.
func (a *Advertiser) Stop(mac string) error {
	norm, err := system.NormalizeMAC(mac)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	server, ok := a.servers[norm]
	if !ok {
		return errkind.New(errkind.ErrNotFound, "Stop", "camera %s is not advertised", norm)
	}
	server.Shutdown()
	delete(a.servers, norm)
	return nil
}

// Advertised returns the number of published cameras.
func (a *Advertiser) Advertised() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.servers)
}

// StopAll withdraws every camera.
func (a *Advertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for mac, server := range a.servers {
		server.Shutdown()
		delete(a.servers, mac)
	}
}
