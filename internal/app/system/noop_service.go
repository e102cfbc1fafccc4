package system

import "context"

// NoopService is a convenient Service implementation for modules that do
// not require background processing (catalog, ledger, tree store — pure
// read/write services with no goroutine of their own).
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string { return n.ServiceName }

func (NoopService) Start(context.Context) error { return nil }

func (NoopService) Stop(context.Context) error { return nil }
