package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

// ===========================================================================
// Mock Implementation
// ===========================================================================

type mockCmdable struct {
	mock.Mock
}

func (m *mockCmdable) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	args := m.Called(ctx, key, values)
	return args.Get(0).(*redis.IntCmd)
}

func (m *mockCmdable) LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	args := m.Called(ctx, key, start, stop)
	return args.Get(0).(*redis.StringSliceCmd)
}

func (m *mockCmdable) LLen(ctx context.Context, key string) *redis.IntCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.IntCmd)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, expiration)
	return args.Get(0).(*redis.BoolCmd)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	args := m.Called(ctx)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *mockCmdable) Close() error {
	return m.Called().Error(0)
}

// ===========================================================================
// Command Result Helpers
// ===========================================================================

func newIntCmd(val int64, err error) *redis.IntCmd {
	cmd := redis.NewIntCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

func newBoolCmd(val bool, err error) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

func newStatusCmd(val string, err error) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

func newStringSliceCmd(val []string, err error) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

// ===========================================================================
// NewFromClient Tests
// ===========================================================================

func TestNewFromClient_NilConfig(t *testing.T) {
	t.Parallel()
	client := NewFromClient(new(mockCmdable), nil)
	require.NotNil(t, client.config)
	assert.NotNil(t, client.tracer)
}

// ===========================================================================
// Append Tests
// ===========================================================================

func TestClient_Append_PushesAndExpires(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("RPush", mock.Anything, "apitest:journal:run1", []interface{}{"a", "b"}).
		Return(newIntCmd(2, nil))
	m.On("Expire", mock.Anything, "apitest:journal:run1", time.Hour).
		Return(newBoolCmd(true, nil))

	n, err := NewFromClient(m, nil).Append(context.Background(), "apitest:journal:run1", time.Hour, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	m.AssertExpectations(t)
}

func TestClient_Append_NoTTL(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("RPush", mock.Anything, "k", []interface{}{"x"}).Return(newIntCmd(1, nil))

	_, err := NewFromClient(m, nil).Append(context.Background(), "k", 0, "x")
	require.NoError(t, err)
	m.AssertNotCalled(t, "Expire", mock.Anything, mock.Anything, mock.Anything)
}

func TestClient_Append_Error(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("RPush", mock.Anything, "k", []interface{}{"x"}).
		Return(newIntCmd(0, errors.New("READONLY You can't write against a read only replica")))

	_, err := NewFromClient(m, nil).Append(context.Background(), "k", time.Minute, "x")
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeInternalDatabase))
	m.AssertNotCalled(t, "Expire", mock.Anything, mock.Anything, mock.Anything)
}

// ===========================================================================
// Read Tests
// ===========================================================================

func TestClient_Range(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("LRange", mock.Anything, "k", int64(0), int64(-1)).
		Return(newStringSliceCmd([]string{"a", "b"}, nil))

	got, err := NewFromClient(m, nil).Range(context.Background(), "k", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestClient_Len_Timeout(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("LLen", mock.Anything, "k").Return(newIntCmd(0, context.DeadlineExceeded))

	_, err := NewFromClient(m, nil).Len(context.Background(), "k")
	assert.True(t, sserr.HasCode(err, sserr.CodeTimeoutDatabase))
	assert.True(t, sserr.IsRetryable(err))
}

func TestClient_Delete(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Del", mock.Anything, []string{"a", "b"}).Return(newIntCmd(1, nil))

	n, err := NewFromClient(m, nil).Delete(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// ===========================================================================
// Health / Close Tests
// ===========================================================================

func TestClient_Health(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Ping", mock.Anything).Return(newStatusCmd("PONG", nil)).Once()
	m.On("Ping", mock.Anything).Return(newStatusCmd("", errors.New("connection refused"))).Once()

	client := NewFromClient(m, nil)
	require.NoError(t, client.Health(context.Background()))

	err := client.Health(context.Background())
	assert.True(t, sserr.HasCode(err, sserr.CodeUnavailableDependency))
}

func TestClient_Close(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Close").Return(nil)
	require.NoError(t, NewFromClient(m, nil).Close())
	m.AssertExpectations(t)
}

// ===========================================================================
// Tracing Tests
// ===========================================================================

func TestClient_Append_RecordsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	m := new(mockCmdable)
	m.On("RPush", mock.Anything, "k", []interface{}{"x"}).Return(newIntCmd(1, nil))

	_, err := NewFromClient(m, &Config{DB: 2}).Append(context.Background(), "k", 0, "x")
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "redis.Append", spans[0].Name)
}

// ===========================================================================
// wrapError Tests
// ===========================================================================

func TestWrapError(t *testing.T) {
	t.Parallel()
	assert.Nil(t, wrapError(nil, "x"))
	assert.Equal(t, sserr.CodeTimeoutDatabase, wrapError(context.DeadlineExceeded, "x").Code)
	assert.Equal(t, sserr.CodeInternalDatabase, wrapError(context.Canceled, "x").Code)
}
