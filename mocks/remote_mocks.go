package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
)

// MockRemoteVMClient is a mock implementation of ports.RemoteVMClient
type MockRemoteVMClient struct {
	mock.Mock
	API string
}

func (m *MockRemoteVMClient) APIVersion() string {
	if m.API == "" {
		return "mock"
	}
	return m.API
}

func (m *MockRemoteVMClient) ListAllVirtualMachines(ctx context.Context) ([]domain.MachineRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MachineRecord), args.Error(1)
}

func (m *MockRemoteVMClient) GetVirtualMachineByName(ctx context.Context, name string) (*domain.MachineRecord, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MachineRecord), args.Error(1)
}

func (m *MockRemoteVMClient) CreateVirtualMachine(ctx context.Context, params domain.CreateParams) (*domain.MachineRecord, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MachineRecord), args.Error(1)
}

func (m *MockRemoteVMClient) DeleteVirtualMachine(ctx context.Context, handle domain.MachineRecord) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}

func (m *MockRemoteVMClient) StartVirtualMachine(ctx context.Context, handle domain.MachineRecord) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}

func (m *MockRemoteVMClient) StopVirtualMachine(ctx context.Context, handle domain.MachineRecord) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}

// MockManifestSource is a mock implementation of ports.ManifestSource
type MockManifestSource struct {
	mock.Mock
}

func (m *MockManifestSource) Type() string {
	return "mock"
}

func (m *MockManifestSource) Load(ctx context.Context) ([]domain.DesiredResource, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DesiredResource), args.Error(1)
}

// MockReporter is a mock implementation of ports.Reporter
type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Report(ctx context.Context, result domain.PassResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockReporter) ReportInventory(ctx context.Context, machines []domain.MachineDescriptor) error {
	args := m.Called(ctx, machines)
	return args.Error(0)
}

// MockMetricsRecorder is a mock implementation of ports.MetricsRecorder
type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) ObserveAction(action domain.Action, status domain.ActionStatus) {
	m.Called(action, status)
}

func (m *MockMetricsRecorder) ObservePass(failed bool) {
	m.Called(failed)
}
