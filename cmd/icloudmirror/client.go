package main

import (
	"errors"

	"github.com/ivoronin/icloudmirror/internal/remote"
	"github.com/ivoronin/icloudmirror/internal/resources"
)

// errNoAuthCollaborator is returned by newClient: the authentication and
// HTTP transport collaborator (remote.Client's concrete implementation)
// is explicitly out of scope for this engine (§1) — it is specified only
// as the remote.Client/remote.Validator contracts enginesync compiles
// and tests against, via remote.FakeClient. A real build wires a
// concrete client in here; this binary ships the contract, not the
// transport.
var errNoAuthCollaborator = errors.New(
	"icloudmirror: no authentication/transport collaborator wired; " +
		"remote.Client must be supplied by an external integration",
)

// newClient resolves the remote.Client and the primary/shared zone
// descriptors for cfg. It always fails in this build (see
// errNoAuthCollaborator); tests exercise the sync pipeline directly
// against remote.FakeClient instead.
func newClient(_ resources.Config) (remote.Client, resources.Zone, *resources.Zone, error) {
	return nil, resources.Zone{}, nil, errNoAuthCollaborator
}
