package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"

	"tarun-kavipurapu/p2p-registry/pkg/logger"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType defines the mDNS service type for registry nodes
	ServiceType = "_p2p-registry._tcp"
	// Domain is the local domain for mDNS
	Domain = "local."
)

// ErrNotFound is returned by Discover when the context ends before any node answers.
var ErrNotFound = errors.New("no registry node discovered")

// ServiceInfo contains information about a discovered service
type ServiceInfo struct {
	InstanceName string
	HostName     string
	Port         int
	IPs          []string
	Meta         map[string]string
}

// Addr returns the first IP joined with the port.
func (s *ServiceInfo) Addr() string {
	if len(s.IPs) == 0 {
		return ""
	}
	return net.JoinHostPort(s.IPs[0], strconv.Itoa(s.Port))
}

// Advertiser handles service broadcasting
type Advertiser struct {
	server *zeroconf.Server
}

// Resolver handles service discovery
type Resolver struct {
	resolver *zeroconf.Resolver
}

// NewAdvertiser creates a new service advertiser
func NewAdvertiser() *Advertiser {
	return &Advertiser{}
}

// Start begins broadcasting the service
func (a *Advertiser) Start(instanceName string, port int, meta map[string]string) error {
	// If no instance name provided, use hostname
	if instanceName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			instanceName = "p2p-registry"
		} else {
			instanceName = fmt.Sprintf("p2p-registry-%s", hostname)
		}
	}

	// TXT records, sorted so repeated announcements are identical
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	txtRecords := make([]string, 0, len(keys))
	for _, k := range keys {
		txtRecords = append(txtRecords, fmt.Sprintf("%s=%s", k, meta[k]))
	}

	// Ifaces nil binds every multicast-capable interface
	server, err := zeroconf.Register(
		instanceName,
		ServiceType,
		Domain,
		port,
		txtRecords,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}

	a.server = server
	logger.Sugar.Infof("[Discovery] advertising: instance=%s port=%d", instanceName, port)
	return nil
}

// Stop stops broadcasting the service
func (a *Advertiser) Stop() {
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// NewResolver creates a new service resolver
func NewResolver() (*Resolver, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	return &Resolver{resolver: resolver}, nil
}

// Browse scans for services until the context is canceled
// It returns a channel that will receive discovered services
func (r *Resolver) Browse(ctx context.Context) (<-chan *ServiceInfo, error) {
	entries := make(chan *zeroconf.ServiceEntry)
	results := make(chan *ServiceInfo, 10)

	if err := r.resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse services: %w", err)
	}

	go func() {
		defer close(results)

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				info := toServiceInfo(entry)

				// Only send if we found valid IPs
				if len(info.IPs) > 0 {
					logger.Sugar.Infof("[Discovery] discovered service: instance=%s ips=%v port=%d", info.InstanceName, info.IPs, info.Port)
					select {
					case results <- info:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return results, nil
}

// Discover browses until the first registry node with an IPv4 address answers.
func Discover(ctx context.Context) (*ServiceInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resolver, err := NewResolver()
	if err != nil {
		return nil, err
	}
	ch, err := resolver.Browse(ctx)
	if err != nil {
		return nil, err
	}
	info, ok := <-ch
	if !ok {
		return nil, ErrNotFound
	}
	return info, nil
}

func toServiceInfo(entry *zeroconf.ServiceEntry) *ServiceInfo {
	info := &ServiceInfo{
		InstanceName: entry.Instance,
		HostName:     entry.HostName,
		Port:         entry.Port,
		IPs:          make([]string, 0, len(entry.AddrIPv4)),
		Meta:         parseTXT(entry.Text),
	}

	// Filter IPv4
	for _, ip := range entry.AddrIPv4 {
		info.IPs = append(info.IPs, ip.String())
	}
	return info
}

func parseTXT(records []string) map[string]string {
	meta := make(map[string]string, len(records))
	for _, record := range records {
		parts := strings.SplitN(record, "=", 2)
		if len(parts) == 2 {
			meta[parts[0]] = parts[1]
		}
	}
	return meta
}
