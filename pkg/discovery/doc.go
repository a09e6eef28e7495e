// Package discovery finds and announces cameras over mDNS/DNS-SD.
//
// Cameras are advertised as _gvcp._udp services in the local domain. The
// instance name is "<model>-<mac without separators>" and the TXT records
// carry the rest of the device info:
//
//	mac     MAC address (required)
//	model   model name (required)
//	vendor  vendor name
//	serial  serial number
//	ver     firmware version
//	name    user defined name
//	ip      IPv4 address; falls back to the A record when missing
//	mask    subnet mask
//	gw      default gateway
//	ipcfg   comma separated subset of dhcp, pip, lla
//
// Enumerator implements system.Enumerator and system.InterfaceLister so a
// System can discover real cameras. Advertiser publishes cameras, which
// lets a simulated network be discovered from another host.
package discovery
