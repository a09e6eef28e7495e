package discovery

import (
	"errors"
	"net"
	"testing"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zacpullen/arena-api/pkg/errkind"
)

type fakeServer struct{ shutdown int }

func (s *fakeServer) Shutdown() { s.shutdown++ }

type registration struct {
	instance string
	port     int
	text     []string
	server   *fakeServer
}

func recordingAdvertiser(cfg AdvertiserConfig) (*Advertiser, *[]registration) {
	a := NewAdvertiser(cfg)
	var regs []registration
	a.register = func(instance, service, domain string, port int, text []string, _ []net.Interface, _ ...zeroconf.ServerOption) (shutdowner, error) {
		if service != ServiceType || domain != Domain {
			return nil, errors.New("unexpected service")
		}
		s := &fakeServer{}
		regs = append(regs, registration{instance, port, text, s})
		return s, nil
	}
	return a, &regs
}

func TestAdvertise(t *testing.T) {
	a, regs := recordingAdvertiser(AdvertiserConfig{})
	info := testInfo()
	info.MACAddress = "1C-0F-AF-00-00-01"

	require.NoError(t, a.Advertise(info))
	require.Len(t, *regs, 1)
	r := (*regs)[0]
	assert.Equal(t, "TRI050S-M-1c0faf000001", r.instance)
	assert.Equal(t, DefaultPort, r.port)
	assert.Contains(t, r.text, "mac=1c:0f:af:00:00:01")

	// Re-advertising replaces the server.
	info.UserDefinedName = "right"
	require.NoError(t, a.Advertise(info))
	assert.Equal(t, 1, r.server.shutdown)
	assert.Equal(t, 1, a.Advertised())
	assert.Contains(t, (*regs)[1].text, "name=right")

	require.NoError(t, a.Stop("1c:0f:af:00:00:01"))
	assert.Equal(t, 1, (*regs)[1].server.shutdown)
	assert.ErrorIs(t, a.Stop("1c:0f:af:00:00:01"), errkind.ErrNotFound)
}

func TestAdvertiseRejectsBadMAC(t *testing.T) {
	a, regs := recordingAdvertiser(AdvertiserConfig{Port: 4000})
	info := testInfo()
	info.MACAddress = "nope"
	assert.ErrorIs(t, a.Advertise(info), errkind.ErrInvalidValue)
	assert.Empty(t, *regs)
}

func TestStopAll(t *testing.T) {
	a, regs := recordingAdvertiser(AdvertiserConfig{Port: 4000})
	for _, mac := range []string{"1c:0f:af:00:00:01", "1c:0f:af:00:00:02"} {
		info := testInfo()
		info.MACAddress = mac
		require.NoError(t, a.Advertise(info))
	}
	assert.Equal(t, 4000, (*regs)[0].port)
	a.StopAll()
	assert.Zero(t, a.Advertised())
	for _, r := range *regs {
		assert.Equal(t, 1, r.server.shutdown)
	}
}
