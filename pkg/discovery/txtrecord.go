package discovery

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/system"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeDeviceTXT creates the TXT records advertising info.
func EncodeDeviceTXT(info system.DeviceInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyMAC:   info.MACAddress,
		TXTKeyModel: info.Model,
	}
	optional := map[string]string{
		TXTKeyVendor:  info.Vendor,
		TXTKeySerial:  info.SerialNumber,
		TXTKeyVersion: info.Version,
		TXTKeyName:    info.UserDefinedName,
	}
	for k, v := range optional {
		if v != "" {
			txt[k] = v
		}
	}
	for k, a := range map[string]netip.Addr{TXTKeyIP: info.IPAddress, TXTKeyMask: info.SubnetMask, TXTKeyGateway: info.DefaultGateway} {
		if a.IsValid() {
			txt[k] = a.String()
		}
	}

	var cfg []string
	if info.DHCP {
		cfg = append(cfg, ipConfigDHCP)
	}
	if info.PersistentIP {
		cfg = append(cfg, ipConfigPersistentIP)
	}
	if info.LLA {
		cfg = append(cfg, ipConfigLLA)
	}
	if len(cfg) > 0 {
		txt[TXTKeyIPConfig] = strings.Join(cfg, ",")
	}
	return txt
}

// DecodeDeviceTXT parses advertised TXT records. The MAC address is
// returned normalized.
func DecodeDeviceTXT(txt TXTRecordMap) (system.DeviceInfo, error) {
	var info system.DeviceInfo

	mac, ok := txt[TXTKeyMAC]
	if !ok {
		return info, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyMAC)
	}
	mac, err := system.NormalizeMAC(mac)
	if err != nil {
		return info, err
	}
	info.MACAddress = mac

	if info.Model, ok = txt[TXTKeyModel]; !ok {
		return info, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyModel)
	}
	info.Vendor = txt[TXTKeyVendor]
	info.SerialNumber = txt[TXTKeySerial]
	info.Version = txt[TXTKeyVersion]
	info.UserDefinedName = txt[TXTKeyName]

	for k, dst := range map[string]*netip.Addr{TXTKeyIP: &info.IPAddress, TXTKeyMask: &info.SubnetMask, TXTKeyGateway: &info.DefaultGateway} {
		s, ok := txt[k]
		if !ok {
			continue
		}
		a, err := netip.ParseAddr(s)
		if err != nil || !a.Is4() {
			return info, fmt.Errorf("%w: %s=%q is not an IPv4 address", ErrInvalidTXTRecord, k, s)
		}
		*dst = a
	}

	if s := txt[TXTKeyIPConfig]; s != "" {
		for _, flag := range strings.Split(s, ",") {
			switch strings.TrimSpace(flag) {
			case ipConfigDHCP:
				info.DHCP = true
			case ipConfigPersistentIP:
				info.PersistentIP = true
			case ipConfigLLA:
				info.LLA = true
			default:
				return info, fmt.Errorf("%w: unknown %s flag %q", ErrInvalidTXTRecord, TXTKeyIPConfig, flag)
			}
		}
	}
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value"
// strings, the form mDNS libraries use.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	slices.Sort(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}

// InstanceName returns the DNS-SD instance name of a camera.
func InstanceName(info system.DeviceInfo) string {
	name := strings.NewReplacer(":", "", "-", "", ".", "").Replace(info.MACAddress)
	if info.Model != "" {
		name = info.Model + "-" + name
	}
	if len(name) > MaxInstanceNameLen {
		name = name[len(name)-MaxInstanceNameLen:]
	}
	return name
}

// ValidateInstanceName checks that name fits a DNS label.
func ValidateInstanceName(name string) error {
	if name == "" || len(name) > MaxInstanceNameLen {
		return errkind.New(errkind.ErrInvalidArgument, "ValidateInstanceName", "instance name must be 1 to %d bytes, got %d", MaxInstanceNameLen, len(name))
	}
	return nil
}
