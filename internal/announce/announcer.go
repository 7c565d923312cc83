// Package announce publishes the server's zeroconf service record so
// clients on the local network can discover it without typing an
// address. The record is re-registered on a fixed interval until a
// client connects, then withdrawn for the rest of the serving run.
package announce

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/shycats/vcam/internal/metrics"
)

// ServiceType is fixed by the client application's browser.
const ServiceType = "_virtucamera._tcp"

// ReannounceInterval is how often the record is re-registered while no
// client is connected.
const ReannounceInterval = 10 * time.Second

// Announcer manages the mDNS registration lifecycle for one serving run.
// Once Stop is called the announcer is spent; a new serving run creates
// a new Announcer.
type Announcer struct {
	platform string
	version  string
	port     int
	logger   *slog.Logger

	mu      sync.Mutex
	server  *zeroconf.Server
	stopped bool
	stopCh  chan struct{}
	done    chan struct{}
}

// New creates an announcer for a server bound to port. platform names
// the host application and version is maj.min.patch, both published as
// TXT records.
func New(platform, version string, port int, logger *slog.Logger) *Announcer {
	return &Announcer{
		platform: platform,
		version:  version,
		port:     port,
		logger:   logger,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// InstanceName derives the advertised instance name from the machine
// hostname. Dots and underscores break mDNS instance parsing on some
// stacks, so they are replaced with dashes.
func InstanceName(hostname, platform string) string {
	sanitized := strings.NewReplacer(".", "-", "_", "-").Replace(hostname)
	return fmt.Sprintf("%s - %s", sanitized, platform)
}

// Start registers the record and begins the re-announcement loop.
func (a *Announcer) Start() {
	go a.loop()
}

// Stop withdraws the record permanently. Idempotent.
func (a *Announcer) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	close(a.stopCh)
	a.unregisterLocked()
	a.mu.Unlock()

	<-a.done
}

func (a *Announcer) loop() {
	defer close(a.done)

	a.register()
	ticker := time.NewTicker(ReannounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.register()
		}
	}
}

// register (re-)publishes the service record. Failures are logged and
// retried on the next tick.
func (a *Announcer) register() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return
	}
	a.unregisterLocked()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "vcam"
	}
	instance := InstanceName(hostname, a.platform)
	txt := []string{
		"platform=" + a.platform,
		"version=" + a.version,
	}

	server, err := zeroconf.Register(instance, ServiceType, "local.", a.port, txt, nil)
	if err != nil {
		a.logger.Warn("zeroconf registration failed", "error", err)
		return
	}
	a.server = server
	metrics.CountAnnouncement()
	a.logger.Debug("service announced", "instance", instance, "port", a.port)
}

func (a *Announcer) unregisterLocked() {
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// LocalIPv4s returns the machine's non-loopback IPv4 addresses, used for
// the connection QR payload.
func LocalIPv4s() []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	var ips []string
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			ips = append(ips, ip4.String())
		}
	}
	return ips
}
