package discovery

import (
	"errors"
	"net/netip"
	"strings"
	"testing"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/system"
)

func testInfo() system.DeviceInfo {
	return system.DeviceInfo{
		Model:           "TRI050S-M",
		Vendor:          "Lucid Vision Labs",
		SerialNumber:    "210000001",
		Version:         "1.80.0.0",
		MACAddress:      "1c:0f:af:00:00:01",
		IPAddress:       netip.MustParseAddr("169.254.0.1"),
		SubnetMask:      netip.MustParseAddr("255.255.0.0"),
		DefaultGateway:  netip.MustParseAddr("0.0.0.0"),
		UserDefinedName: "left",
		PersistentIP:    true,
		LLA:             true,
	}
}

func TestDeviceTXTRoundTrip(t *testing.T) {
	info := testInfo()
	txt := EncodeDeviceTXT(info)
	if txt[TXTKeyIPConfig] != "pip,lla" {
		t.Errorf("ipcfg = %q", txt[TXTKeyIPConfig])
	}

	got, err := DecodeDeviceTXT(StringsToTXTRecords(TXTRecordsToStrings(txt)))
	if err != nil {
		t.Fatalf("DecodeDeviceTXT: %v", err)
	}
	if got != info {
		t.Errorf("got %+v\nwant %+v", got, info)
	}
}

func TestEncodeDeviceTXTOmitsEmpty(t *testing.T) {
	txt := EncodeDeviceTXT(system.DeviceInfo{MACAddress: "1c:0f:af:00:00:02", Model: "PHX"})
	if len(txt) != 2 {
		t.Errorf("got %v, want mac and model only", txt)
	}
}

func TestDecodeDeviceTXTErrors(t *testing.T) {
	tests := []struct {
		name    string
		txt     TXTRecordMap
		wantErr error
	}{
		{"MissingMAC", TXTRecordMap{TXTKeyModel: "PHX"}, ErrMissingRequired},
		{"MissingModel", TXTRecordMap{TXTKeyMAC: "1c0faf000001"}, ErrMissingRequired},
		{"BadMAC", TXTRecordMap{TXTKeyMAC: "1c0f", TXTKeyModel: "PHX"}, errkind.ErrInvalidValue},
		{"BadIP", TXTRecordMap{TXTKeyMAC: "1c0faf000001", TXTKeyModel: "PHX", TXTKeyIP: "::1"}, ErrInvalidTXTRecord},
		{"BadFlag", TXTRecordMap{TXTKeyMAC: "1c0faf000001", TXTKeyModel: "PHX", TXTKeyIPConfig: "dhcp,static"}, ErrInvalidTXTRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDeviceTXT(tt.txt)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, errkind.ErrInvalidValue) {
				t.Errorf("error %v does not match ErrInvalidValue", err)
			}
		})
	}
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"a=1", "b=x=y", "flag", "", "=orphan"})
	want := TXTRecordMap{"a": "1", "b": "x=y", "flag": ""}
	if len(txt) != len(want) {
		t.Fatalf("got %v, want %v", txt, want)
	}
	for k, v := range want {
		if txt[k] != v {
			t.Errorf("%s = %q, want %q", k, txt[k], v)
		}
	}
}

func TestInstanceName(t *testing.T) {
	if got := InstanceName(testInfo()); got != "TRI050S-M-1c0faf000001" {
		t.Errorf("InstanceName = %q", got)
	}
	long := testInfo()
	long.Model = strings.Repeat("m", 80)
	got := InstanceName(long)
	if len(got) != MaxInstanceNameLen || !strings.HasSuffix(got, "1c0faf000001") {
		t.Errorf("long InstanceName = %q", got)
	}
	if err := ValidateInstanceName(""); !errors.Is(err, errkind.ErrInvalidArgument) {
		t.Errorf("ValidateInstanceName(\"\") = %v", err)
	}
}
