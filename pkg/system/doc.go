// Package system discovers devices and creates them.
//
// A System is built from an Enumerator and a Connector. Transports that
// can also report host interfaces or force an IP address implement
// InterfaceLister and IPForcer. The sim package provides a simulated
// network and discovery provides an mDNS enumerator.
//
//	net, _ := sim.NewNetwork(sim.Options{}, sim.Camera(1))
//	sys, _ := system.New(net, net, system.DefaultConfig())
//	defer sys.Close()
//	infos, _ := sys.DeviceInfos(ctx)
//	devs, _ := sys.CreateDevice(ctx, infos[0])
package system
