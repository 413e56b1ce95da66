package main

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
)

// guessIpAddress takes a base IP address and a partial address string,
// and fills in the missing octets from the base address.
func guessIpAddress(baseAddress net.IP, partialAddr string) (net.IP, error) {
	ip := make(net.IP, len(baseAddress))
	copy(ip, baseAddress)
	octets := strings.Split(partialAddr, ".")
	if len(octets) == 1 && octets[0] == "" {
		return ip, nil
	}
	for i := 0; i < len(octets); i++ {
		var octet byte
		_, err := fmt.Sscanf(octets[i], "%d", &octet)
		if err != nil {
			return net.IP{}, err
		}
		ip[len(ip)-len(octets)+i] = octet
	}
	return ip, nil
}

// subnetOfListener returns the IP network (CIDR) of the interface that contains
// the local address used by the provided TCP listener.
func subnetOfListener(l *net.TCPListener) (net.IPNet, error) {
	tcpAddr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return net.IPNet{}, fmt.Errorf("listener is not TCP")
	}
	ip := tcpAddr.IP
	if ip == nil || ip.IsUnspecified() {
		return net.IPNet{}, fmt.Errorf("listener has unspecified IP %v", ip)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return net.IPNet{}, err
	}
	for _, ifi := range ifaces {
		addrs, _ := ifi.Addrs()
		for _, a := range addrs {
			var ipnet *net.IPNet
			switch v := a.(type) {
			case *net.IPNet:
				ipnet = v
			case *net.IPAddr:
				ipnet = &net.IPNet{IP: v.IP, Mask: v.IP.DefaultMask()}
			default:
				continue
			}
			if ipnet == nil {
				continue
			}
			if ipnet.Contains(ip) || ipnet.IP.Equal(ip) {
				return *ipnet, nil
			}
		}
	}
	return net.IPNet{}, fmt.Errorf("no interface found for ip %v", ip)
}

// splitHostPort splits an address into host and port, using defaultPort if no port is specified.
func splitHostPort(addr string, defaultPort int) (string, string, error) {
	ipaddr, port, err := net.SplitHostPort(addr)
	if err != nil {
		addr = addr + ":" + strconv.Itoa(defaultPort)
		ipaddr, port, err = net.SplitHostPort(addr)
		if err != nil {
			return "", "", err
		}
	}
	return ipaddr, port, nil
}

// resolvePeers completes the peer addresses against the local one. Hosts
// may be given by their trailing octets only, a missing port defaults to
// the local port. The result includes local.
func resolvePeers(local string, peers []string) ([]string, error) {
	localHost, localPort, err := net.SplitHostPort(local)
	if err != nil {
		return nil, err
	}
	base := net.ParseIP(localHost)
	if base == nil {
		return nil, fmt.Errorf("local address %s is not an ip address", local)
	}
	defaultPort, err := strconv.Atoi(localPort)
	if err != nil {
		return nil, err
	}
	addresses := []string{local}
	for _, addr := range peers {
		host, port, err := splitHostPort(addr, defaultPort)
		if err != nil {
			return nil, fmt.Errorf("invalid address %s: %w", addr, err)
		}
		ip, err := guessIpAddress(base, host)
		if err != nil {
			return nil, fmt.Errorf("could not guess address for %s: %w", addr, err)
		}
		tcpAddr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(ip.String(), port))
		if err != nil {
			return nil, fmt.Errorf("invalid address %s: %w", addr, err)
		}
		addresses = append(addresses, tcpAddr.String())
	}
	return addresses, nil
}

// assignRanks sorts the addresses and ranks every peer by its position.
func assignRanks(addresses []string, local string) (int, map[int]string, error) {
	sorted := slices.Clone(addresses)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	if len(sorted) < 2 {
		return 0, nil, fmt.Errorf("at least 2 distinct peers are needed, got %d", len(sorted))
	}
	ranked := make(map[int]string, len(sorted))
	rank := -1
	for i, addr := range sorted {
		ranked[i] = addr
		if addr == local {
			rank = i
		}
	}
	if rank < 0 {
		return 0, nil, fmt.Errorf("local address %s is not among the peers", local)
	}
	return rank, ranked, nil
}
