package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, codes.OK, CodeOf(nil))
	assert.Equal(t, codes.InvalidArgument, CodeOf(InvalidInput("description is required")))
	assert.Equal(t, codes.NotFound, CodeOf(fmt.Errorf("lookup: %w", NotFound("job"))))
	assert.Equal(t, codes.Unavailable, CodeOf(ProviderUnavailable("embed", errors.New("timeout"))))
	assert.Equal(t, codes.Internal, CodeOf(InvariantViolation("confidence 1.2")))
	assert.Equal(t, codes.PermissionDenied, CodeOf(status.Error(codes.PermissionDenied, "no")))
	assert.Equal(t, codes.Internal, CodeOf(errors.New("boom")))
}

func TestProviderUnavailableKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ProviderUnavailable("openai embed", cause)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, cause)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, CodeProviderUnavailable, appErr.Code)
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("description", "  ", Required).
		Field("quantity", -1.0, NonNegative).
		Field("unit", "m2", MaxLength(16))
	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 2)

	err := ValidateAndReturnError(v)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "description")

	assert.NoError(t, ValidateAndReturnError(NewValidator().Field("owner", "abc", Required)))
}

func TestUUIDRule(t *testing.T) {
	assert.Nil(t, UUID("id", uuid.NewString()))
	assert.NotNil(t, UUID("id", "not-a-uuid"))
	assert.NotNil(t, UUID("id", 42))

	err := ValidateAndReturnError(NewValidator().Field("id", "123", UUID))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "must be a valid UUID")
}

func TestLoggerAddsContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json"}, &buf)

	ctx := WithJobID(WithOwnerID(WithRequestID(context.Background(), "req-1"), "owner-7"), "job-9")
	assert.Equal(t, "owner-7", OwnerIDFromContext(ctx))
	assert.Equal(t, "job-9", JobIDFromContext(ctx))
	logger.With("component", "test").InfoContext(ctx, "processor.job.start")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "req-1", rec["request_id"])
	assert.Equal(t, "owner-7", rec["owner_id"])
	assert.Equal(t, "job-9", rec["job_id"])
	assert.Equal(t, "test", rec["component"])

	buf.Reset()
	logger.Info("plain")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotContains(t, buf.String(), "job_id")
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("SCHEDULER_BATCH_SIZE", "10")
	t.Setenv("WRITER_MIN_SPACING", "250ms")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.Equal(t, 50, cfg.Writer.ChunkSize)
	assert.Equal(t, "250ms", cfg.Writer.MinSpacing.String())
	assert.Equal(t, 10000, cfg.Cache.EmbeddingSize)
}

func TestConfigValidateRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")
	err := LoadConfig().Validate()
	assert.ErrorIs(t, err, ErrInvalidInput)
}
