package mocks

import (
	"context"

	"github.com/benmeehan/link-failover/internal/notify"
	"github.com/benmeehan/link-failover/pkg/identity"
	"github.com/stretchr/testify/mock"
)

// Actuator is a mock implementation of the actuator.Actuator interface
type Actuator struct {
	mock.Mock
}

func (m *Actuator) Enable(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Actuator) Disable(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// IdleDetector is a mock implementation of the idle.Detector interface
type IdleDetector struct {
	mock.Mock
}

func (m *IdleDetector) IsIdle(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// Prober is a mock implementation of the connectivity.Prober interface
type Prober struct {
	mock.Mock
}

func (m *Prober) Probe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// LinkChecker is a mock implementation of the connectivity.LinkChecker interface
type LinkChecker struct {
	mock.Mock
}

func (m *LinkChecker) OnPrimary(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// Notifier is a mock implementation of the notify.Notifier interface
type Notifier struct {
	mock.Mock
}

func (m *Notifier) Notify(ctx context.Context, event notify.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// SourceInfo is a mock implementation of the identity.SourceInfoInterface
type SourceInfo struct {
	mock.Mock
}

func (m *SourceInfo) LoadOrCreate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *SourceInfo) GetSourceID() string {
	args := m.Called()
	return args.String(0)
}

func (m *SourceInfo) GetIdentity() *identity.Identity {
	args := m.Called()
	id, _ := args.Get(0).(*identity.Identity)
	return id
}
