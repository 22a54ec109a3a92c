package connectivity_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/benmeehan/link-failover/pkg/connectivity"
	"github.com/benmeehan/link-failover/pkg/shell"
	"github.com/rs/zerolog"
	psnet "github.com/shirou/gopsutil/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lister(ifaces ...psnet.InterfaceStat) connectivity.InterfaceLister {
	return func(context.Context) ([]psnet.InterfaceStat, error) { return ifaces, nil }
}

var (
	loopback = psnet.InterfaceStat{Name: "lo", Flags: []string{"up", "loopback"}}
	wlanDown = psnet.InterfaceStat{Name: "wlan0", Flags: []string{"broadcast", "multicast"}}
	ethUp    = psnet.InterfaceStat{Name: "eth0", Flags: []string{"up", "broadcast", "multicast"}}
)

func TestActiveInterface(t *testing.T) {
	assert.Equal(t, "", connectivity.ActiveInterface(nil))
	assert.Equal(t, "", connectivity.ActiveInterface([]psnet.InterfaceStat{loopback, wlanDown}))
	assert.Equal(t, "eth0", connectivity.ActiveInterface([]psnet.InterfaceStat{loopback, wlanDown, ethUp}))
}

// acceptLoop accepts on a local listener and reports each peer address.
func acceptLoop(t *testing.T) (net.Listener, <-chan net.Addr) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	peers := make(chan net.Addr, 8)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			select {
			case peers <- conn.RemoteAddr():
			default:
			}
			conn.Close()
		}
	}()
	return ln, peers
}

func TestNetProber_Reachable(t *testing.T) {
	ln, _ := acceptLoop(t)

	p := connectivity.NewNetProber(ln.Addr().String(), time.Second, connectivity.WithInterfaceLister(lister(loopback, ethUp)))
	assert.NoError(t, p.Probe(context.Background()))
}

func TestNetProber_PrimaryInterfaceSourcesFromItsAddress(t *testing.T) {
	ln, peers := acceptLoop(t)
	primary := psnet.InterfaceStat{
		Name:  "lo",
		Flags: []string{"up", "loopback"},
		Addrs: []psnet.InterfaceAddr{{Addr: "fe80::1/64"}, {Addr: "127.0.0.1/8"}},
	}

	p := connectivity.NewNetProber(ln.Addr().String(), time.Second,
		connectivity.WithInterfaceLister(lister(ethUp, primary)),
		connectivity.WithPrimaryInterface("lo"))
	require.NoError(t, p.Probe(context.Background()))

	peer := (<-peers).(*net.TCPAddr)
	assert.Equal(t, "127.0.0.1", peer.IP.String())
}

func TestNetProber_PrimaryInterfaceDown(t *testing.T) {
	ln, _ := acceptLoop(t)
	ethNoAddr := psnet.InterfaceStat{Name: "eth1", Flags: []string{"up"}, Addrs: []psnet.InterfaceAddr{{Addr: "fe80::2/64"}}}

	for _, primary := range []string{"wlan0", "eth1", "usb0"} {
		p := connectivity.NewNetProber(ln.Addr().String(), time.Second,
			connectivity.WithInterfaceLister(lister(ethUp, wlanDown, ethNoAddr)),
			connectivity.WithPrimaryInterface(primary))
		assert.ErrorIs(t, p.Probe(context.Background()), connectivity.ErrPrimaryDown, primary)
	}
}

func TestSourceAddress_PrefersIPv4(t *testing.T) {
	iface := psnet.InterfaceStat{
		Name:  "en0",
		Flags: []string{"up"},
		Addrs: []psnet.InterfaceAddr{{Addr: "2001:db8::5/64"}, {Addr: "192.168.1.20/24"}},
	}
	ip, err := connectivity.SourceAddress([]psnet.InterfaceStat{iface}, "en0")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", ip.String())

	iface.Addrs = iface.Addrs[:1]
	ip, err = connectivity.SourceAddress([]psnet.InterfaceStat{iface}, "en0")
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::5", ip.String())
}

func TestCommandLinkChecker(t *testing.T) {
	ctx := context.Background()
	runner := shell.NewRunner(5*time.Second, 0, zerolog.Nop())

	on, err := connectivity.NewCommandLinkChecker("true", runner).OnPrimary(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = connectivity.NewCommandLinkChecker("exit 3", runner).OnPrimary(ctx)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestNetProber_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	p := connectivity.NewNetProber(addr, time.Second, connectivity.WithInterfaceLister(lister(ethUp)))
	assert.Error(t, p.Probe(context.Background()))
}

func TestNetProber_NoInterface(t *testing.T) {
	p := connectivity.NewNetProber("127.0.0.1:1", time.Second, connectivity.WithInterfaceLister(lister(loopback)))
	assert.ErrorIs(t, p.Probe(context.Background()), connectivity.ErrNoInterface)
}

func TestNetProber_ListerError(t *testing.T) {
	boom := errors.New("boom")
	p := connectivity.NewNetProber("127.0.0.1:1", time.Second, connectivity.WithInterfaceLister(
		func(context.Context) ([]psnet.InterfaceStat, error) { return nil, boom }))
	assert.ErrorIs(t, p.Probe(context.Background()), boom)
}
