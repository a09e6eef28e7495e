package interactive

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/zacpullen/arena-api/pkg/callback"
	"github.com/zacpullen/arena-api/pkg/device"
	"github.com/zacpullen/arena-api/pkg/discovery"
	"github.com/zacpullen/arena-api/pkg/system"
)

// cmdDevices enumerates and lists devices. Created devices are marked.
func (s *Shell) cmdDevices(ctx context.Context) {
	infos, err := s.sys.DeviceInfos(ctx)
	if err != nil {
		s.printErr("Enumeration failed", err)
		return
	}
	s.mu.Lock()
	s.infos = infos
	cur := s.current
	s.mu.Unlock()

	if len(infos) == 0 {
		fmt.Fprintln(s.out, "No devices found")
		return
	}
	created := make(map[string]bool)
	for _, d := range s.sys.Devices() {
		if mac, ok := s.sys.MACAddress(d); ok {
			created[mac] = true
		}
	}
	curMAC := ""
	if cur != nil {
		curMAC, _ = s.sys.MACAddress(cur)
	}

	fmt.Fprintf(s.out, "\nDevices (%d):\n", len(infos))
	for i, info := range infos {
		mark := " "
		switch {
		case info.MACAddress == curMAC:
			mark = "*"
		case created[info.MACAddress]:
			mark = "+"
		}
		fmt.Fprintf(s.out, " %s%2d. %s  %s %s  serial %s  fw %s\n",
			mark, i, info.MACAddress, info.Vendor, info.Model, info.SerialNumber, info.Version)
		fmt.Fprintf(s.out, "       IP %s/%s gw %s  %s\n", info.IPAddress, info.SubnetMask, info.DefaultGateway, ipConfig(info))
		if info.UserDefinedName != "" {
			fmt.Fprintf(s.out, "       Name: %s\n", info.UserDefinedName)
		}
	}
}

func ipConfig(info system.DeviceInfo) string {
	var modes []string
	if info.PersistentIP {
		modes = append(modes, "persistent")
	}
	if info.DHCP {
		modes = append(modes, "dhcp")
	}
	if info.LLA {
		modes = append(modes, "lla")
	}
	if len(modes) == 0 {
		return "(no ip config)"
	}
	return "(" + strings.Join(modes, ",") + ")"
}

func (s *Shell) cmdInterfaces(ctx context.Context) {
	ifaces, err := s.sys.InterfaceInfos(ctx)
	if err != nil {
		s.printErr("Listing interfaces failed", err)
		return
	}
	for _, i := range ifaces {
		fmt.Fprintf(s.out, "  %-10s %s  %s/%s\n", i.Name, i.MACAddress, i.IPAddress, i.SubnetMask)
	}
}

// lookup resolves an index into the last enumeration or a MAC address in
// any notation.
func (s *Shell) lookup(ref string) (system.DeviceInfo, bool) {
	s.mu.Lock()
	infos := s.infos
	s.mu.Unlock()

	if i, err := strconv.Atoi(ref); err == nil {
		if i >= 0 && i < len(infos) {
			return infos[i], true
		}
		fmt.Fprintf(s.out, "No device %d (run 'devices')\n", i)
		return system.DeviceInfo{}, false
	}
	mac, err := system.NormalizeMAC(ref)
	if err != nil {
		s.printErr("Bad device reference", err)
		return system.DeviceInfo{}, false
	}
	for _, info := range infos {
		if info.MACAddress == mac {
			return info, true
		}
	}
	fmt.Fprintf(s.out, "Device %s not enumerated (run 'devices')\n", mac)
	return system.DeviceInfo{}, false
}

func (s *Shell) cmdCreate(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: create <mac|index>...")
		return
	}
	var infos []system.DeviceInfo
	for _, ref := range args {
		info, ok := s.lookup(ref)
		if !ok {
			return
		}
		infos = append(infos, info)
	}
	devs, err := s.sys.CreateDevice(ctx, infos...)
	if err != nil {
		s.printErr("Create failed", err)
		return
	}
	for i, d := range devs {
		fmt.Fprintf(s.out, "Created %s\n", d)
		s.remember(infos[i], d)
	}
	s.setCurrent(devs[len(devs)-1])
}

func (s *Shell) cmdUse(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: use <mac|index>")
		return
	}
	d := s.created(args[0])
	if d == nil {
		return
	}
	s.setCurrent(d)
	fmt.Fprintf(s.out, "Using %s\n", d)
}

// created finds a created device by reference.
func (s *Shell) created(ref string) *device.Device {
	info, ok := s.lookup(ref)
	if !ok {
		return nil
	}
	for _, d := range s.sys.Devices() {
		if mac, _ := s.sys.MACAddress(d); mac == info.MACAddress {
			return d
		}
	}
	fmt.Fprintf(s.out, "Device %s is not created\n", info.MACAddress)
	return nil
}

// setCurrent switches devices. Watches belong to the previous device and
// are dropped.
func (s *Shell) setCurrent(d *device.Device) {
	s.mu.Lock()
	prev := s.current
	watches := s.watches
	if prev == d {
		s.mu.Unlock()
		return
	}
	s.current = d
	s.watches = make(map[string]callback.Handle)
	s.mu.Unlock()

	if prev != nil && !prev.Destroyed() {
		for _, w := range watches {
			_ = prev.DeregisterCallback(w)
		}
	}
}

func (s *Shell) cmdDestroy(args []string) {
	var err error
	switch {
	case len(args) == 0:
		d := s.device()
		if d == nil {
			return
		}
		err = s.sys.DestroyDevice(d)
	case len(args) == 1 && args[0] == "all":
		err = s.sys.DestroyDevice()
	case len(args) == 1:
		d := s.created(args[0])
		if d == nil {
			return
		}
		err = s.sys.DestroyDevice(d)
	default:
		fmt.Fprintln(s.out, "Usage: destroy [mac|index|all]")
		return
	}
	if err != nil {
		s.printErr("Destroy failed", err)
		return
	}

	s.mu.Lock()
	if s.current != nil && s.current.Destroyed() {
		s.current = nil
		s.watches = make(map[string]callback.Handle)
	}
	s.mu.Unlock()
	fmt.Fprintln(s.out, "Destroyed")
}

func (s *Shell) cmdForceIP(ctx context.Context, args []string) {
	if len(args) < 3 || len(args) > 4 {
		fmt.Fprintln(s.out, "Usage: forceip <mac|index> <ip> <mask> [gateway]")
		return
	}
	info, ok := s.lookup(args[0])
	if !ok {
		return
	}
	addrs := make([]netip.Addr, 3)
	addrs[2] = netip.IPv4Unspecified()
	for i, a := range args[1:] {
		addr, err := netip.ParseAddr(a)
		if err != nil {
			s.printErr("Bad address", err)
			return
		}
		addrs[i] = addr
	}
	info.IPAddress, info.SubnetMask, info.DefaultGateway = addrs[0], addrs[1], addrs[2]
	if err := s.sys.ForceIP(ctx, info); err != nil {
		s.printErr("ForceIP failed", err)
		return
	}
	fmt.Fprintf(s.out, "Forced %s to %s/%s (run 'devices' to refresh)\n", info.MACAddress, info.IPAddress, info.SubnetMask)
}

func (s *Shell) cmdTimeout(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(s.out, "Discovery timeout: %s\n", s.sys.DiscoveryTimeout())
		return
	}
	ms, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintln(s.out, "Usage: timeout [ms]")
		return
	}
	if err := s.sys.SetDiscoveryTimeout(time.Duration(ms) * time.Millisecond); err != nil {
		s.printErr("Setting timeout failed", err)
		return
	}
	fmt.Fprintf(s.out, "Discovery timeout: %s\n", s.sys.DiscoveryTimeout())
}

// cmdDiscover browses mDNS for cameras published by an advertiser.
func (s *Shell) cmdDiscover(ctx context.Context) {
	if s.opts.Browser == nil {
		fmt.Fprintln(s.out, "mDNS discovery is disabled (start with -mdns)")
		return
	}
	fmt.Fprintln(s.out, "Browsing mDNS...")
	infos, err := s.opts.Browser.Enumerate(ctx)
	if err != nil {
		s.printErr("Discovery error", err)
		return
	}
	if len(infos) == 0 {
		fmt.Fprintln(s.out, "No cameras advertised")
		return
	}
	fmt.Fprintf(s.out, "Found %d camera(s):\n", len(infos))
	for i, info := range infos {
		fmt.Fprintf(s.out, "  %d. %s at %s\n", i+1, discovery.InstanceName(info), info)
	}
}

func (s *Shell) cmdAdvertise(ctx context.Context, args []string) {
	adv := s.opts.Advertiser
	if adv == nil {
		fmt.Fprintln(s.out, "mDNS advertising is disabled (start with -mdns)")
		return
	}
	if len(args) == 1 && args[0] == "stop" {
		adv.StopAll()
		fmt.Fprintln(s.out, "Stopped advertising")
		return
	}
	infos, err := s.sys.DeviceInfos(ctx)
	if err != nil {
		s.printErr("Enumeration failed", err)
		return
	}
	for _, info := range infos {
		if err := adv.Advertise(info); err != nil {
			s.printErr("Advertise "+info.MACAddress, err)
			continue
		}
		fmt.Fprintf(s.out, "  Advertising %s\n", discovery.InstanceName(info))
	}
	fmt.Fprintf(s.out, "%d camera(s) advertised as %s\n", adv.Advertised(), discovery.ServiceType)
}
