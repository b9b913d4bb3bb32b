// Package netaddr picks debugger ports and works out the host names a user
// needs to reach a compute node from a laptop.
package netaddr

import (
	"context"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/grovetools/rdebug/errors"
)

// FindFreePort returns preferred when it can be bound on all interfaces, or
// an OS-assigned port otherwise. The trial socket is closed before returning.
func FindFreePort(preferred int) (int, error) {
	if preferred > 0 {
		if l, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(preferred))); err == nil {
			l.Close()
			return preferred, nil
		}
	}

	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, errors.PortUnavailable(preferred, err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// LocalHostname returns the machine's network name.
func LocalHostname() (string, error) {
	return os.Hostname()
}

// Lookup is the subset of *net.Resolver used for FQDN resolution.
type Lookup interface {
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Resolver expands short host names to fully qualified ones.
type Resolver struct {
	lookup Lookup
}

// NewResolver wraps lookup. A nil lookup uses net.DefaultResolver.
func NewResolver(lookup Lookup) *Resolver {
	if lookup == nil {
		lookup = net.DefaultResolver
	}
	return &Resolver{lookup: lookup}
}

// ResolveSubmitHost returns the FQDN of short. When nothing better than the
// short name can be found it returns short and a RESOLVE_FAILED error, which
// callers treat as a warning.
func (r *Resolver) ResolveSubmitHost(ctx context.Context, short string) (string, error) {
	short = strings.TrimSuffix(strings.TrimSpace(short), ".")
	if short == "" {
		return "", errors.InvalidInput("host name cannot be empty")
	}
	if strings.Contains(short, ".") {
		return short, nil
	}

	if cname, err := r.lookup.LookupCNAME(ctx, short); err == nil {
		if fqdn := normalize(short, cname); fqdn != "" {
			return fqdn, nil
		}
	}

	addrs, err := r.lookup.LookupHost(ctx, short)
	if err != nil {
		return short, errors.ResolveFailed(short, err)
	}
	for _, addr := range addrs {
		names, err := r.lookup.LookupAddr(ctx, addr)
		if err != nil {
			continue
		}
		for _, name := range names {
			if fqdn := normalize(short, name); fqdn != "" {
				return fqdn, nil
			}
		}
	}

	return short, errors.ResolveFailed(short, nil)
}

// normalize trims the trailing dot, collapses a doubled short-name prefix
// ("login1.login1.cluster.org") and rejects names that are not qualified.
func normalize(short, name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	name = StripDoubledPrefix(short, name)
	if !strings.Contains(name, ".") {
		return ""
	}
	return name
}

// StripDoubledPrefix turns "short.short.rest" into "short.rest". Any other
// name is returned unchanged.
func StripDoubledPrefix(short, name string) string {
	doubled := short + "." + short + "."
	if short != "" && strings.HasPrefix(name, doubled) {
		return short + "." + strings.TrimPrefix(name, doubled)
	}
	return name
}
