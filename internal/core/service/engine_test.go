package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/errors"
	"github.com/olusolaa/vm-reconciler/internal/log"
	"github.com/olusolaa/vm-reconciler/mocks"
)

type EngineTestSuite struct {
	suite.Suite
	ctx      context.Context
	client   *mocks.MockRemoteVMClient
	manifest *mocks.MockManifestSource
	reporter *mocks.MockReporter
	metrics  *mocks.MockMetricsRecorder
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.client = new(mocks.MockRemoteVMClient)
	s.manifest = new(mocks.MockManifestSource)
	s.reporter = new(mocks.MockReporter)
	s.metrics = new(mocks.MockMetricsRecorder)
	s.metrics.On("ObserveAction", mock.Anything, mock.Anything).Maybe()
	s.metrics.On("ObservePass", mock.Anything).Maybe()
}

func (s *EngineTestSuite) TearDownTest() {
	s.client.AssertExpectations(s.T())
	s.manifest.AssertExpectations(s.T())
	s.reporter.AssertExpectations(s.T())
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) engine(opts EngineOptions) *ReconciliationEngine {
	provider := NewProvider(s.client, log.NewDiscard(), ReconcilerOptions{})
	engine, err := NewReconciliationEngine(provider, s.manifest, s.reporter, s.metrics, log.NewDiscard(), opts)
	s.Require().NoError(err)
	return engine
}

func (s *EngineTestSuite) TestNewReconciliationEngine_Validation() {
	provider := NewProvider(s.client, log.NewDiscard(), ReconcilerOptions{})

	_, err := NewReconciliationEngine(nil, s.manifest, s.reporter, nil, log.NewDiscard(), EngineOptions{})
	s.Error(err)
	_, err = NewReconciliationEngine(provider, nil, s.reporter, nil, log.NewDiscard(), EngineOptions{})
	s.Error(err)
	_, err = NewReconciliationEngine(provider, s.manifest, nil, nil, log.NewDiscard(), EngineOptions{})
	s.Error(err)
}

func (s *EngineTestSuite) TestRun_ScenarioFromPrefetch() {
	web := record("web-1", "Running")
	db := record("db-1", "Stopped")
	cache := record("cache-1", "Running")

	s.manifest.On("Load", mock.Anything).Return([]domain.DesiredResource{
		desired("web-1", domain.EnsureStopped),
		desired("db-1", domain.EnsureRunning),
		desired("cache-1", domain.EnsurePresent),
	}, nil).Once()
	s.client.On("ListAllVirtualMachines", mock.Anything).Return([]domain.MachineRecord{web, db}, nil).Once()
	s.client.On("StopVirtualMachine", s.ctx, web).Return(nil).Once()
	s.client.On("StartVirtualMachine", s.ctx, db).Return(nil).Once()
	s.client.On("GetVirtualMachineByName", s.ctx, "cache-1").Return(nil, nil).Once()
	s.client.On("CreateVirtualMachine", s.ctx, mock.Anything).Return(&cache, nil).Once()
	s.reporter.On("Report", s.ctx, mock.MatchedBy(func(r domain.PassResult) bool {
		return len(r.Results) == 3 && r.PassID != ""
	})).Return(nil).Once()

	result, err := s.engine(EngineOptions{}).Run(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(result.Results, 3)
	s.Equal([]domain.Action{domain.ActionStop}, result.Results[0].Actions)
	s.Equal(domain.EnsureStopped, result.Results[0].Final)
	s.Equal([]domain.Action{domain.ActionStart}, result.Results[1].Actions)
	s.Equal(domain.EnsureRunning, result.Results[1].Final)
	s.Equal([]domain.Action{domain.ActionCreate}, result.Results[2].Actions)
	s.Equal(domain.EnsureRunning, result.Results[2].Final)
	s.Equal("mock", result.APIVersion)
	s.metrics.AssertCalled(s.T(), "ObserveAction", domain.ActionCreate, domain.StatusApplied)
	s.metrics.AssertCalled(s.T(), "ObservePass", false)
}

func (s *EngineTestSuite) TestRun_PrefetchFailureAbortsPass() {
	s.manifest.On("Load", mock.Anything).Return([]domain.DesiredResource{desired("web-1", domain.EnsureAbsent)}, nil).Maybe()
	s.client.On("ListAllVirtualMachines", mock.Anything).Return(nil, assert.AnError).Once()

	result, err := s.engine(EngineOptions{}).Run(s.ctx)

	s.Require().Error(err)
	s.True(errors.Is(err, errors.CodeRemoteFetchError))
	s.Empty(result.Results)
	s.client.AssertNotCalled(s.T(), "DeleteVirtualMachine", mock.Anything, mock.Anything)
	s.reporter.AssertNotCalled(s.T(), "Report", mock.Anything, mock.Anything)
	s.metrics.AssertCalled(s.T(), "ObservePass", true)
}

func (s *EngineTestSuite) TestRun_ManifestFailureAbortsPass() {
	s.manifest.On("Load", mock.Anything).Return(nil, errors.New(errors.CodeManifestParseError, "bad syntax")).Once()
	s.client.On("ListAllVirtualMachines", mock.Anything).Return([]domain.MachineRecord{}, nil).Maybe()

	_, err := s.engine(EngineOptions{}).Run(s.ctx)

	s.True(errors.Is(err, errors.CodeManifestParseError))
}

func (s *EngineTestSuite) TestRun_InvalidManifest() {
	s.manifest.On("Load", mock.Anything).Return([]domain.DesiredResource{
		desired("web-1", domain.EnsureRunning),
		desired("web-1", domain.EnsureStopped),
		{Name: "", Ensure: domain.EnsurePresent},
		{Name: "odd", Ensure: domain.EnsureState("paused")},
	}, nil).Once()
	s.client.On("ListAllVirtualMachines", mock.Anything).Return([]domain.MachineRecord{}, nil).Once()

	_, err := s.engine(EngineOptions{}).Run(s.ctx)

	s.Require().Error(err)
	s.True(errors.Is(err, errors.CodeManifestInvalid))
	msg, _, _ := errors.GetUserFacingMessage(err)
	s.Contains(msg, `"web-1" is declared more than once`)
	s.Contains(msg, "'Name' failed on 'required'")
	s.Contains(msg, "'Ensure' failed on 'oneof'")
}

func (s *EngineTestSuite) TestRun_StopsAtFirstFailure() {
	web := record("web-1", "Running")
	s.manifest.On("Load", mock.Anything).Return([]domain.DesiredResource{
		desired("web-1", domain.EnsureStopped),
		desired("db-1", domain.EnsureAbsent),
	}, nil).Once()
	s.client.On("ListAllVirtualMachines", mock.Anything).Return([]domain.MachineRecord{web, record("db-1", "Running")}, nil).Once()
	s.client.On("StopVirtualMachine", s.ctx, web).Return(errors.New(errors.CodeInvalidState, "busy")).Once()
	s.reporter.On("Report", s.ctx, mock.Anything).Return(nil).Once()

	result, err := s.engine(EngineOptions{}).Run(s.ctx)

	s.True(errors.Is(err, errors.CodeInvalidState))
	s.Require().Len(result.Results, 2)
	s.Equal(domain.StatusError, result.Results[0].Status)
	s.Equal(domain.StatusSkipped, result.Results[1].Status)
	s.client.AssertNotCalled(s.T(), "DeleteVirtualMachine", mock.Anything, mock.Anything)
	s.metrics.AssertCalled(s.T(), "ObservePass", true)
}

func (s *EngineTestSuite) TestRun_ContinueOnError() {
	web := record("web-1", "Running")
	db := record("db-1", "Running")
	s.manifest.On("Load", mock.Anything).Return([]domain.DesiredResource{
		desired("web-1", domain.EnsureStopped),
		desired("db-1", domain.EnsureAbsent),
	}, nil).Once()
	s.client.On("ListAllVirtualMachines", mock.Anything).Return([]domain.MachineRecord{web, db}, nil).Once()
	s.client.On("StopVirtualMachine", s.ctx, web).Return(errors.New(errors.CodeInvalidState, "busy")).Once()
	s.client.On("DeleteVirtualMachine", s.ctx, db).Return(nil).Once()
	s.reporter.On("Report", s.ctx, mock.Anything).Return(nil).Once()

	result, err := s.engine(EngineOptions{ContinueOnError: true}).Run(s.ctx)

	s.True(errors.Is(err, errors.CodeReconcileFailed))
	s.True(errors.HasCode(err, errors.CodeInvalidState))
	s.Equal(1, result.Failed())
	s.Equal(domain.StatusApplied, result.Results[1].Status)
	s.Equal(domain.EnsureAbsent, result.Results[1].Final)
}

func (s *EngineTestSuite) TestRun_DryRunPlansOnly() {
	web := record("web-1", "Running")
	s.manifest.On("Load", mock.Anything).Return([]domain.DesiredResource{desired("web-1", domain.EnsureAbsent)}, nil).Once()
	s.client.On("ListAllVirtualMachines", mock.Anything).Return([]domain.MachineRecord{web}, nil).Once()
	s.reporter.On("Report", s.ctx, mock.MatchedBy(func(r domain.PassResult) bool { return r.DryRun })).Return(nil).Once()

	result, err := s.engine(EngineOptions{DryRun: true}).Run(s.ctx)

	s.Require().NoError(err)
	s.Equal(domain.StatusPlanned, result.Results[0].Status)
	s.Equal([]domain.Action{domain.ActionDestroy}, result.Results[0].Actions)
	s.Equal(domain.EnsureAbsent, result.Results[0].Final)
	s.client.AssertNotCalled(s.T(), "DeleteVirtualMachine", mock.Anything, mock.Anything)
}

func (s *EngineTestSuite) TestRun_InterruptedPassIsReported() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	web := record("web-1", "Running")
	db := record("db-1", "Running")
	s.manifest.On("Load", mock.Anything).Return([]domain.DesiredResource{
		desired("web-1", domain.EnsureStopped),
		desired("db-1", domain.EnsureAbsent),
	}, nil).Once()
	s.client.On("ListAllVirtualMachines", mock.Anything).Return([]domain.MachineRecord{web, db}, nil).Once()
	s.client.On("StopVirtualMachine", ctx, web).Run(func(mock.Arguments) { cancel() }).Return(nil).Once()
	s.reporter.On("Report", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }),
		mock.MatchedBy(func(r domain.PassResult) bool {
			return len(r.Results) == 2 && r.Results[1].Status == domain.StatusSkipped
		})).Return(nil).Once()

	result, err := s.engine(EngineOptions{}).Run(ctx)

	s.ErrorIs(err, context.Canceled)
	s.Require().Len(result.Results, 2)
	s.Equal(domain.StatusApplied, result.Results[0].Status)
	s.Equal(domain.StatusSkipped, result.Results[1].Status)
	s.client.AssertNotCalled(s.T(), "DeleteVirtualMachine", mock.Anything, mock.Anything)
	s.metrics.AssertCalled(s.T(), "ObservePass", true)
}
