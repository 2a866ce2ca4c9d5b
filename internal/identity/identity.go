// Package identity defines the name-resolution backend the coordinator
// registers workers against and rewrites reputation/skill attributes on. It
// has two variants: onchain (an ENS-style resolver) and simulated
// (deterministic, in-memory, for tests).
package identity

import (
	"context"
	"errors"
)

var (
	ErrAlreadyRegistered = errors.New("handle already registered")
	ErrNotRegistered      = errors.New("handle is not registered")
	ErrBackendUnavailable = errors.New("identity backend unavailable")
	ErrNotFound           = errors.New("handle not found")
)

// Record is what Lookup returns.
type Record struct {
	NodeRef    string
	Wallet     string
	Attributes map[string]string
}

// Attribute keys written verbatim per the external interface; unknown keys
// supplied by callers are passed through unchanged.
const (
	AttrRole           = "role"
	AttrSkills         = "skills"
	AttrReputation     = "reputation"
	AttrTasksCompleted = "tasksCompleted"
	AttrTasksFailed    = "tasksFailed"
	AttrDescription    = "description"
)

// Adapter is the interface every identity backend variant implements.
//
//go:generate mockery --name=Adapter --case=underscore --structname=MockAdapter --filename=adapter_mock.go --inpackage
type Adapter interface {
	// Register is idempotent: if handle is already registered, it returns
	// the existing NodeRef with no effect.
	Register(ctx context.Context, handle, wallet string, initialAttributes map[string]string) (nodeRef string, err error)
	UpdateAttributes(ctx context.Context, nodeRef string, attrs map[string]string) error
	Lookup(ctx context.Context, handle string) (*Record, error)
}

// Backend names a deployment variant of Adapter.
type Backend string

const (
	BackendOnchain   Backend = "onchain"
	BackendSimulated Backend = "simulated"
)
