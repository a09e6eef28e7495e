package discovery

import (
	"fmt"
	"time"

	"github.com/zacpullen/arena-api/pkg/errkind"
)

const (
	// ServiceType is the DNS-SD service type cameras advertise.
	ServiceType = "_gvcp._udp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the GVCP control port.
	DefaultPort = 3956

	// BrowseTimeout bounds Enumerate when the context has no deadline.
	BrowseTimeout = 3 * time.Second

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	TXTKeyMAC      = "mac"
	TXTKeyModel    = "model"
	TXTKeyVendor   = "vendor"
	TXTKeySerial   = "serial"
	TXTKeyVersion  = "ver"
	TXTKeyName     = "name"
	TXTKeyIP       = "ip"
	TXTKeyMask     = "mask"
	TXTKeyGateway  = "gw"
	TXTKeyIPConfig = "ipcfg"
)

// IP configuration flags in the ipcfg record.
const (
	ipConfigDHCP         = "dhcp"
	ipConfigPersistentIP = "pip"
	ipConfigLLA          = "lla"
)

// Discovery errors. Both match errkind.ErrInvalidValue.
var (
	ErrInvalidTXTRecord = fmt.Errorf("%w: invalid TXT record", errkind.ErrInvalidValue)
	ErrMissingRequired  = fmt.Errorf("%w: missing required TXT field", errkind.ErrInvalidValue)
)
