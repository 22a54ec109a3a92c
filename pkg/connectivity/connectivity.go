// Package connectivity checks whether the primary link reaches the public
// internet.
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"time"

	"github.com/benmeehan/link-failover/pkg/shell"
	psnet "github.com/shirou/gopsutil/net"
)

var (
	// ErrNoInterface means no interface besides loopback is up.
	ErrNoInterface = errors.New("no active network interface")
	// ErrPrimaryDown means the configured primary interface is missing, down
	// or has no usable address.
	ErrPrimaryDown = errors.New("primary interface is down")
)

// Prober checks reachability once.
type Prober interface {
	Probe(ctx context.Context) error
}

// InterfaceLister enumerates the host's network interfaces.
type InterfaceLister func(ctx context.Context) ([]psnet.InterfaceStat, error)

// NetProber requires an up, non-loopback interface and then a TCP connect to
// a well-known address within the timeout.
//
// With a primary interface configured the probe is sourced from that
// interface's address, so reaching the target over a backup link does not
// count.
type NetProber struct {
	address    string
	timeout    time.Duration
	primary    string
	interfaces InterfaceLister
}

// Option customises a NetProber.
type Option func(*NetProber)

// WithInterfaceLister replaces the gopsutil interface lookup.
func WithInterfaceLister(l InterfaceLister) Option {
	return func(p *NetProber) { p.interfaces = l }
}

// WithPrimaryInterface binds probes to the named interface.
func WithPrimaryInterface(name string) Option {
	return func(p *NetProber) { p.primary = name }
}

// NewNetProber creates a NetProber for address (host:port).
func NewNetProber(address string, timeout time.Duration, opts ...Option) *NetProber {
	p := &NetProber{
		address: address,
		timeout: timeout,
		interfaces: func(ctx context.Context) ([]psnet.InterfaceStat, error) {
			return psnet.InterfacesWithContext(ctx)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *NetProber) Probe(ctx context.Context) error {
	ifaces, err := p.interfaces(ctx)
	if err != nil {
		return fmt.Errorf("list interfaces: %w", err)
	}

	dialer := net.Dialer{Timeout: p.timeout}
	if p.primary != "" {
		local, err := SourceAddress(ifaces, p.primary)
		if err != nil {
			return err
		}
		dialer.LocalAddr = &net.TCPAddr{IP: local}
	} else if ActiveInterface(ifaces) == "" {
		return ErrNoInterface
	}

	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.address, err)
	}
	return conn.Close()
}

// ActiveInterface returns the name of the first interface that is up and not
// loopback, or "" when there is none.
func ActiveInterface(ifaces []psnet.InterfaceStat) string {
	for _, iface := range ifaces {
		if hasFlag(iface, "up") && !hasFlag(iface, "loopback") {
			return iface.Name
		}
	}
	return ""
}

// SourceAddress returns the address probes over the named interface are sent
// from, preferring IPv4. Link-local addresses are skipped.
func SourceAddress(ifaces []psnet.InterfaceStat, name string) (net.IP, error) {
	for _, iface := range ifaces {
		if iface.Name != name {
			continue
		}
		if !hasFlag(iface, "up") {
			return nil, fmt.Errorf("%w: %s is not up", ErrPrimaryDown, name)
		}
		var fallback net.IP
		for _, a := range iface.Addrs {
			ip, _, err := net.ParseCIDR(a.Addr)
			if err != nil {
				ip = net.ParseIP(a.Addr)
			}
			if ip == nil || ip.IsLinkLocalUnicast() {
				continue
			}
			if ip.To4() != nil {
				return ip, nil
			}
			if fallback == nil {
				fallback = ip
			}
		}
		if fallback != nil {
			return fallback, nil
		}
		return nil, fmt.Errorf("%w: %s has no usable address", ErrPrimaryDown, name)
	}
	return nil, fmt.Errorf("%w: %s not found", ErrPrimaryDown, name)
}

func hasFlag(iface psnet.InterfaceStat, flag string) bool {
	for _, f := range iface.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// LinkChecker reports whether the host is attached to its primary network.
type LinkChecker interface {
	OnPrimary(ctx context.Context) (bool, error)
}

// CommandLinkChecker runs an external check; exit status 0 means the host is
// on its primary network, any other exit status means it is not.
type CommandLinkChecker struct {
	command string
	runner  *shell.Runner
}

func NewCommandLinkChecker(command string, runner *shell.Runner) *CommandLinkChecker {
	return &CommandLinkChecker{command: command, runner: runner}
}

func (c *CommandLinkChecker) OnPrimary(ctx context.Context) (bool, error) {
	_, err := c.runner.Run(ctx, c.command)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}
