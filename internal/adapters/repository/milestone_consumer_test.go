package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/IANDYI/labour-care-service/internal/adapters/repository"
	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// fakeAcknowledger records how a delivery was settled
type fakeAcknowledger struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

type mockStatusService struct {
	mock.Mock
}

func (m *mockStatusService) RecordMilestone(ctx context.Context, milestone domain.Milestone) (*domain.StatusChange, error) {
	args := m.Called(ctx, milestone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusChange), args.Error(1)
}

func (m *mockStatusService) RecordMilestoneAs(ctx context.Context, milestone domain.Milestone, _ ports.Actor) (*domain.StatusChange, error) {
	return m.RecordMilestone(ctx, milestone)
}

func deliver(handle repository.MessageHandler, body string) *fakeAcknowledger {
	ack := &fakeAcknowledger{}
	msg := amqp091.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body)}
	repository.HandleDelivery(context.Background(), "labour.milestones", msg, handle, logger.Discard())
	return ack
}

func TestMilestoneHandler_AcksProcessedMilestone(t *testing.T) {
	status := new(mockStatusService)
	patientID := uuid.New()

	status.On("RecordMilestone", mock.Anything, mock.MatchedBy(func(m domain.Milestone) bool {
		return m.PatientID == patientID && m.Kind == domain.MilestoneTransfer && m.Transfer == domain.TransferLabour
	})).Return(&domain.StatusChange{Applied: true, To: domain.StatusLabourTransfer}, nil)

	ack := deliver(repository.NewMilestoneHandler(status, logger.Discard()),
		`{"patient_id":"`+patientID.String()+`","kind":"transfer_recorded","transfer_kind":"labour"}`)

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	status.AssertExpectations(t)
}

func TestMilestoneHandler_RejectsMalformedMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"invalid patient id", `{"patient_id":"abc","kind":"birth_recorded"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := new(mockStatusService)
			ack := deliver(repository.NewMilestoneHandler(status, logger.Discard()), tt.body)

			assert.True(t, ack.nacked)
			assert.False(t, ack.requeued)
			status.AssertNotCalled(t, "RecordMilestone", mock.Anything, mock.Anything)
		})
	}
}

func TestMilestoneHandler_RejectsUnknownPatientAndInvalidMilestone(t *testing.T) {
	for _, err := range []error{domain.ErrPatientNotFound, domain.NewValidationError("milestone", "unknown")} {
		status := new(mockStatusService)
		status.On("RecordMilestone", mock.Anything, mock.Anything).Return(nil, err)

		ack := deliver(repository.NewMilestoneHandler(status, logger.Discard()),
			`{"patient_id":"`+uuid.NewString()+`","kind":"birth_recorded"}`)

		assert.True(t, ack.nacked)
		assert.False(t, ack.requeued, "error %v", err)
	}
}

func TestMilestoneHandler_RequeuesTransientFailures(t *testing.T) {
	status := new(mockStatusService)
	status.On("RecordMilestone", mock.Anything, mock.Anything).Return(nil, errors.New("database unavailable"))

	ack := deliver(repository.NewMilestoneHandler(status, logger.Discard()),
		`{"patient_id":"`+uuid.NewString()+`","kind":"birth_recorded"}`)

	assert.True(t, ack.nacked)
	assert.True(t, ack.requeued)
}
