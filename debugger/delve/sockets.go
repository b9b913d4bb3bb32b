package delve

import (
	"github.com/prometheus/procfs"
)

// TCP states as reported in /proc/net/tcp.
const (
	tcpEstablished = 0x01
	tcpListen      = 0x0A
)

// sockets inspects the TCP table of the current network namespace.
type sockets struct {
	fs procfs.FS
}

func newSockets(mountPoint string) (*sockets, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, err
	}
	return &sockets{fs: fs}, nil
}

// listening reports whether something listens on port.
func (s *sockets) listening(port int) (bool, error) {
	return s.any(port, tcpListen)
}

// connected reports whether a client connection to port is established.
func (s *sockets) connected(port int) (bool, error) {
	return s.any(port, tcpEstablished)
}

func (s *sockets) any(port int, state uint64) (bool, error) {
	v4, err := s.fs.NetTCP()
	if err != nil {
		return false, err
	}
	if match(v4, port, state) {
		return true, nil
	}

	// tcp6 is absent on hosts without IPv6.
	v6, err := s.fs.NetTCP6()
	if err != nil {
		return false, nil
	}
	return match(v6, port, state), nil
}

func match(lines procfs.NetTCP, port int, state uint64) bool {
	for _, line := range lines {
		if line.LocalPort == uint64(port) && line.St == state {
			return true
		}
	}
	return false
}
