package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew_ParsesLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, logger.New("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, logger.New("not-a-level").GetLevel())
}

func TestAudit_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOutput("info", &buf)

	log.Audit("admin-1", "unlock_stage_clock", "patient/42", true, map[string]interface{}{"stage": "first"})

	entry := decodeLine(t, &buf)
	assert.Equal(t, "Audit event", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, true, entry["audit"])
	assert.Equal(t, "admin-1", entry["user_id"])
	assert.Equal(t, "unlock_stage_clock", entry["action"])
	assert.Contains(t, entry, "timestamp")
}

func TestAudit_FailureIsWarning(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOutput("info", &buf)

	log.Audit("admin-1", "unlock_stage_clock", "patient/42", false, nil)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "warning", entry["level"])
}

func TestWithContext_CarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOutput("info", &buf)

	ctx := logger.ContextWithRequestID(context.Background(), "req-7")
	log.WithContext(ctx).Info("hello")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-7", entry["request_id"])
	assert.Equal(t, "req-7", logger.RequestIDFromContext(ctx))
	assert.Empty(t, logger.RequestIDFromContext(context.Background()))
}
