package debugger

import (
	"context"
	"io"
	"os"

	"github.com/grovetools/rdebug/config"
	"github.com/grovetools/rdebug/pkg/netaddr"
	"github.com/grovetools/rdebug/pkg/tunnel"
	"github.com/sirupsen/logrus"
)

// Option configures a Session.
type Option func(*Session)

// WithConfig applies the debug section of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(s *Session) {
		if cfg == nil {
			return
		}
		s.preferredPort = cfg.Debug.PreferredPort
		s.localPort = cfg.Debug.LocalPort
		s.bindAddress = cfg.Debug.BindAddress
	}
}

// WithOutput sets where connection information is printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Session) { s.out = w }
}

// WithPreferredPort sets the port tried first.
func WithPreferredPort(port int) Option {
	return func(s *Session) { s.preferredPort = port }
}

// WithLocalPort sets the laptop-side port printed in the ssh command.
func WithLocalPort(port int) Option {
	return func(s *Session) { s.localPort = port }
}

// WithBindAddress sets the interface the adapter listens on.
func WithBindAddress(addr string) Option {
	return func(s *Session) { s.bindAddress = addr }
}

// WithRemotePath overrides the working directory reported to clients.
func WithRemotePath(path string) Option {
	return func(s *Session) {
		s.workdir = func() (string, error) { return path, nil }
	}
}

// WithHostname overrides local hostname discovery.
func WithHostname(name string) Option {
	return func(s *Session) {
		s.hostname = func() (string, error) { return name, nil }
	}
}

// WithIdentity fixes the ssh identity instead of reading the environment.
func WithIdentity(id tunnel.Identity) Option {
	return func(s *Session) {
		s.identity = func(context.Context) (tunnel.Identity, error) { return id, nil }
	}
}

// WithPortFinder replaces netaddr.FindFreePort.
func WithPortFinder(find func(preferred int) (int, error)) Option {
	return func(s *Session) { s.findPort = find }
}

// WithLogger sets the structured logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Session) { s.logger = logger }
}

func defaultIdentity(ctx context.Context) (tunnel.Identity, error) {
	return tunnel.IdentityFromEnv(ctx, os.Getenv, netaddr.NewResolver(nil))
}
