package handler_test

import (
	"context"
	"net/http"
	"strings"

	"github.com/IANDYI/labour-care-service/internal/adapters/middleware"
	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockPatientService struct {
	mock.Mock
}

func (m *MockPatientService) RegisterPatient(ctx context.Context, req ports.RegisterPatientRequest, actor ports.Actor) (*domain.Patient, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Patient), args.Error(1)
}

func (m *MockPatientService) GetPatient(ctx context.Context, patientID uuid.UUID, actor ports.Actor) (*domain.Patient, error) {
	args := m.Called(ctx, patientID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Patient), args.Error(1)
}

type MockStageClockService struct {
	mock.Mock
}

func (m *MockStageClockService) clock(args mock.Arguments) (*domain.StageClock, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StageClock), args.Error(1)
}

func (m *MockStageClockService) GetStageClock(ctx context.Context, patientID uuid.UUID, actor ports.Actor) (*domain.StageClock, error) {
	return m.clock(m.Called(ctx, patientID, actor))
}

func (m *MockStageClockService) SetFirstStageStart(ctx context.Context, patientID uuid.UUID, t domain.ClockTime, actor ports.Actor) (*domain.StageClock, error) {
	return m.clock(m.Called(ctx, patientID, t, actor))
}

func (m *MockStageClockService) SetSecondStageStart(ctx context.Context, patientID uuid.UUID, t domain.ClockTime, actor ports.Actor) (*domain.StageClock, error) {
	return m.clock(m.Called(ctx, patientID, t, actor))
}

func (m *MockStageClockService) UnlockStage(ctx context.Context, patientID uuid.UUID, stage domain.Stage, actor ports.Actor, reason string) (*domain.StageClock, error) {
	return m.clock(m.Called(ctx, patientID, stage, actor, reason))
}

type MockObservationService struct {
	mock.Mock
}

func (m *MockObservationService) GetPartogram(ctx context.Context, patientID uuid.UUID, actor ports.Actor) (*domain.Partogram, error) {
	args := m.Called(ctx, patientID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Partogram), args.Error(1)
}

func (m *MockObservationService) SaveObservations(ctx context.Context, patientID uuid.UUID, values map[string]string, actor ports.Actor) (*domain.Partogram, error) {
	args := m.Called(ctx, patientID, values, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Partogram), args.Error(1)
}

func (m *MockObservationService) Evaluate(fieldKey, value string) domain.Alert {
	return m.Called(fieldKey, value).Get(0).(domain.Alert)
}

type MockStatusService struct {
	mock.Mock
}

func (m *MockStatusService) change(args mock.Arguments) (*domain.StatusChange, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusChange), args.Error(1)
}

func (m *MockStatusService) RecordMilestone(ctx context.Context, milestone domain.Milestone) (*domain.StatusChange, error) {
	return m.change(m.Called(ctx, milestone))
}

func (m *MockStatusService) RecordMilestoneAs(ctx context.Context, milestone domain.Milestone, actor ports.Actor) (*domain.StatusChange, error) {
	return m.change(m.Called(ctx, milestone, actor))
}

// newRequest builds a request carrying an authenticated identity
func newRequest(method, target, body string, actor ports.Actor) *http.Request {
	req, _ := http.NewRequest(method, target, strings.NewReader(body))
	ctx := middleware.WithIdentity(req.Context(), middleware.Identity{
		UserID: actor.UserID.String(),
		Role:   actor.Role,
		Name:   "Test User",
	})
	return req.WithContext(ctx)
}

func midwife() ports.Actor {
	return ports.Actor{UserID: uuid.New(), Role: domain.RoleMidwife}
}

func admin() ports.Actor {
	return ports.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}
}
