package system

import (
	"context"

	core "github.com/ayon178/bitgpt-backend-sub002/internal/app/core/service"
)

// Service represents a lifecycle-managed component. All application modules
// (the HTTP API, the auto-upgrade worker, the matrix recycle controller,
// the funds scheduler) implement this interface so the system manager can
// start and stop them deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// DescriptorProvider optionally advertises service metadata (layer,
// capabilities) for the /system/status introspection endpoint.
type DescriptorProvider interface {
	Descriptor() core.Descriptor
}
