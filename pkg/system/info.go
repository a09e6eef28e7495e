package system

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/zacpullen/arena-api/pkg/errkind"
)

// DeviceInfo describes a discovered device. It is a snapshot taken at
// enumeration time.
type DeviceInfo struct {
	Model        string `yaml:"model"`
	Vendor       string `yaml:"vendor"`
	SerialNumber string `yaml:"serial"`
	Version      string `yaml:"version"`

	// MACAddress is in the canonical form returned by NormalizeMAC.
	MACAddress     string     `yaml:"mac"`
	IPAddress      netip.Addr `yaml:"ip"`
	SubnetMask     netip.Addr `yaml:"subnetMask"`
	DefaultGateway netip.Addr `yaml:"defaultGateway"`

	UserDefinedName string `yaml:"name"`

	// Current IP configuration.
	DHCP         bool `yaml:"dhcp"`
	PersistentIP bool `yaml:"persistentIP"`
	LLA          bool `yaml:"lla"`
}

func (i DeviceInfo) String() string {
	name := i.UserDefinedName
	if name == "" {
		name = "-"
	}
	return fmt.Sprintf("(%s, %s, %s, %s)", i.MACAddress, i.Model, name, i.IPAddress)
}

// InterfaceInfo describes a host network interface devices are found on.
type InterfaceInfo struct {
	Name       string     `yaml:"name"`
	MACAddress string     `yaml:"mac"`
	IPAddress  netip.Addr `yaml:"ip"`
	SubnetMask netip.Addr `yaml:"subnetMask"`
}

// NormalizeMAC accepts a MAC address with or without ':', '-', '.' or
// ' ' separators and returns it as lower-case colon separated hex.
func NormalizeMAC(s string) (string, error) {
	hex := strings.Map(func(r rune) rune {
		switch r {
		case ':', '-', '.', ' ':
			return -1
		}
		return r
	}, s)
	if len(hex) != 12 {
		return "", errkind.New(errkind.ErrInvalidValue, "NormalizeMAC", "%q is not a 48 bit MAC address", s)
	}
	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(hex[i : i+2])
	}
	hw, err := net.ParseMAC(b.String())
	if err != nil {
		return "", errkind.New(errkind.ErrInvalidValue, "NormalizeMAC", "%q is not a MAC address", s)
	}
	return hw.String(), nil
}

// MACToInt packs a MAC address into the integer representation used by
// GevDeviceMACAddress.
func MACToInt(mac string) (int64, error) {
	norm, err := NormalizeMAC(mac)
	if err != nil {
		return 0, err
	}
	hw, _ := net.ParseMAC(norm)
	var v int64
	for _, b := range hw {
		v = v<<8 | int64(b)
	}
	return v, nil
}

// IPToInt packs an IPv4 address into the integer representation used by
// the GevDeviceIPAddress family of nodes. Invalid addresses become 0.
func IPToInt(a netip.Addr) int64 {
	if !a.Is4() {
		return 0
	}
	b := a.As4()
	return int64(b[0])<<24 | int64(b[1])<<16 | int64(b[2])<<8 | int64(b[3])
}
