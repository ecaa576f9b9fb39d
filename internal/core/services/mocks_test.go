package services_test

import (
	"context"
	"time"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockPatientRepository is a mock implementation of ports.PatientRepository
type MockPatientRepository struct {
	mock.Mock
}

func (m *MockPatientRepository) CreatePatient(ctx context.Context, patient *domain.Patient) error {
	args := m.Called(ctx, patient)
	return args.Error(0)
}

func (m *MockPatientRepository) GetPatient(ctx context.Context, patientID uuid.UUID) (*domain.Patient, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Patient), args.Error(1)
}

func (m *MockPatientRepository) CompareAndSetStatus(ctx context.Context, patientID uuid.UUID, expected, next domain.PatientStatus, reason string, at time.Time) error {
	args := m.Called(ctx, patientID, expected, next, reason, at)
	return args.Error(0)
}

// MockStageClockRepository is a mock implementation of ports.StageClockRepository
type MockStageClockRepository struct {
	mock.Mock
}

func (m *MockStageClockRepository) GetStageClock(ctx context.Context, patientID uuid.UUID) (*domain.StageClock, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StageClock), args.Error(1)
}

func (m *MockStageClockRepository) SetStageClockField(ctx context.Context, patientID uuid.UUID, stage domain.Stage, t domain.ClockTime, updatedBy string) error {
	args := m.Called(ctx, patientID, stage, t, updatedBy)
	return args.Error(0)
}

func (m *MockStageClockRepository) ClearStageClockField(ctx context.Context, patientID uuid.UUID, stage domain.Stage, updatedBy string) error {
	args := m.Called(ctx, patientID, stage, updatedBy)
	return args.Error(0)
}

// MockObservationRepository is a mock implementation of ports.ObservationRepository
type MockObservationRepository struct {
	mock.Mock
}

func (m *MockObservationRepository) GetAggregatedRecord(ctx context.Context, patientID uuid.UUID) (*domain.ObservationRecord, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ObservationRecord), args.Error(1)
}

func (m *MockObservationRepository) SaveAggregatedRecord(ctx context.Context, record *domain.ObservationRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishAlerts(ctx context.Context, patientID uuid.UUID, alerts []domain.Alert) error {
	args := m.Called(ctx, patientID, alerts)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishStatusChange(ctx context.Context, change *domain.StatusChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

// MockStatusService is a mock implementation of ports.StatusService
type MockStatusService struct {
	mock.Mock
}

func (m *MockStatusService) RecordMilestone(ctx context.Context, milestone domain.Milestone) (*domain.StatusChange, error) {
	args := m.Called(ctx, milestone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusChange), args.Error(1)
}

func (m *MockStatusService) RecordMilestoneAs(ctx context.Context, milestone domain.Milestone, actor ports.Actor) (*domain.StatusChange, error) {
	args := m.Called(ctx, milestone, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusChange), args.Error(1)
}

// MockAuditLogger is a mock implementation of ports.AuditLogger
type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) Audit(userID, action, resource string, success bool, details map[string]interface{}) {
	m.Called(userID, action, resource, success, details)
}

func clockAt(s string) *domain.ClockTime {
	t, err := domain.ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return &t
}
