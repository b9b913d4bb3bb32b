// Package tunnel formats the ssh port-forward command a user runs on their
// own machine to reach a debugger on a compute node.
package tunnel

import (
	"context"
	"fmt"
	"strings"
)

// Placeholder stands in for the ssh target when the login identity is unknown.
const Placeholder = "<user@login.hostname>"

// Identity is who to ssh as, and where.
type Identity struct {
	User      string
	LoginHost string
}

// Target returns "user@host", or Placeholder when either part is missing.
func (i Identity) Target() string {
	if i.User == "" || i.LoginHost == "" {
		return Placeholder
	}
	return i.User + "@" + i.LoginHost
}

// SSHCommand is BuildSSHCommand for this identity.
func (i Identity) SSHCommand(node string, remotePort, localPort int) string {
	return BuildSSHCommand(node, remotePort, localPort, i.User, i.LoginHost)
}

// BuildSSHCommand returns "ssh -N -L local:node:remote user@loginHost".
func BuildSSHCommand(node string, remotePort, localPort int, user, loginHost string) string {
	target := Identity{User: user, LoginHost: loginHost}.Target()
	return fmt.Sprintf("ssh -N -L %d:%s:%d %s", localPort, node, remotePort, target)
}

// HostResolver expands a short login host name.
type HostResolver interface {
	ResolveSubmitHost(ctx context.Context, short string) (string, error)
}

// IdentityFromEnv reads the job submission identity. The user comes from
// SLURM_JOB_USER, falling back to USER; the login host from
// SLURM_SUBMIT_HOST, expanded by resolver when one is given.
//
// Missing variables are not errors. A failed resolution returns the short
// host name together with the resolver's error so the caller can warn.
func IdentityFromEnv(ctx context.Context, getenv func(string) string, resolver HostResolver) (Identity, error) {
	id := Identity{
		User:      strings.TrimSpace(getenv("SLURM_JOB_USER")),
		LoginHost: strings.TrimSpace(getenv("SLURM_SUBMIT_HOST")),
	}
	if id.User == "" {
		id.User = strings.TrimSpace(getenv("USER"))
	}

	if id.LoginHost == "" || resolver == nil {
		return id, nil
	}

	fqdn, err := resolver.ResolveSubmitHost(ctx, id.LoginHost)
	if fqdn != "" {
		id.LoginHost = fqdn
	}
	return id, err
}
