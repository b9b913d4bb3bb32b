// Package debugger owns the UNARMED -> LISTENING transition of a remote
// debug session. The debug protocol itself is served by an Adapter.
package debugger

import "context"

// Adapter is a debug server that can be brought up on demand.
type Adapter interface {
	// Listen starts serving debug clients on addr ("host:port"). It returns
	// once the address accepts connections.
	Listen(ctx context.Context, addr string) error
	// WaitForClient blocks until a client is attached, or returns
	// immediately when one already is.
	WaitForClient(ctx context.Context) error
	// Breakpoint yields to the attached client at the caller's frame.
	Breakpoint()
}

// Closer is implemented by adapters holding resources beyond the process
// lifetime, such as a child debugger process.
type Closer interface {
	Close() error
}

// Descriptor is what a user needs to connect to a listening session.
type Descriptor struct {
	Hostname   string `json:"hostname" yaml:"hostname"`
	Port       int    `json:"port" yaml:"port"`
	RemotePath string `json:"remote_path" yaml:"remote_path"`
}
