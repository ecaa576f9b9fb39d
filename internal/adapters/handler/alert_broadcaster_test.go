package handler_test

import (
	"context"
	"testing"

	"github.com/IANDYI/labour-care-service/internal/adapters/handler"
	"github.com/IANDYI/labour-care-service/internal/adapters/repository"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	messages [][]byte
}

func (h *recordingHub) BroadcastToClinicians(message []byte) int {
	h.messages = append(h.messages, message)
	return 2
}

func TestAlertBroadcaster_RelaysEvents(t *testing.T) {
	hub := &recordingHub{}
	handle := handler.NewAlertBroadcaster(hub, logger.Discard())

	alert := `{"type":"clinical_alert","patient_id":"p1","alerts":[{"field":"Baseline_FHR","key":"Baseline_FHR_06_15","value":"165","is_alert":true}],"severity":"warning"}`
	status := `{"type":"status_changed","patient_id":"p1","from":"antenatal_care","to":"in_labour"}`

	require.NoError(t, handle(context.Background(), []byte(alert)))
	require.NoError(t, handle(context.Background(), []byte(status)))

	require.Len(t, hub.messages, 2)
	assert.JSONEq(t, alert, string(hub.messages[0]))
	assert.JSONEq(t, status, string(hub.messages[1]))
}

func TestAlertBroadcaster_RejectsInvalidEvents(t *testing.T) {
	hub := &recordingHub{}
	handle := handler.NewAlertBroadcaster(hub, logger.Discard())

	for _, body := range []string{
		`not json`,
		`{"type":"something_else"}`,
		`{"type":"clinical_alert","alerts":[]}`,
		`{"type":"status_changed"}`,
	} {
		err := handle(context.Background(), []byte(body))
		assert.ErrorIs(t, err, repository.ErrRejectMessage, body)
	}
	assert.Empty(t, hub.messages)
}
