package circuitbreaker

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tiltakspenger-overgangsstonad/internal/common/errors"
	"tiltakspenger-overgangsstonad/internal/common/logging"
)

func TestGoBreakerAdapter(t *testing.T) {
	logger := logging.GetGlobalLogger()

	t.Run("basic operation", func(t *testing.T) {
		cb := NewGoBreaker("test-basic", Config{
			MaxFailures:           2,
			Timeout:               100 * time.Millisecond,
			MaxConcurrentRequests: 1,
		}, logger)

		assert.Equal(t, StateClosed, cb.State())
		assert.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, "test-basic", cb.Name())
	})

	t.Run("circuit opens after failures", func(t *testing.T) {
		cb := NewGoBreaker("test-failures", Config{
			MaxFailures:           3,
			Timeout:               time.Minute,
			MaxConcurrentRequests: 1,
		}, logger)

		for i := 0; i < 3; i++ {
			err := cb.Execute(context.Background(), func() error {
				return fmt.Errorf("failure %d", i)
			})
			assert.Error(t, err)
		}

		assert.Equal(t, StateOpen, cb.State())
		assert.True(t, cb.IsOpen())

		err := cb.Execute(context.Background(), func() error {
			t.Fatal("should not be called while open")
			return nil
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOpen)
		assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
	})

	t.Run("half-open after timeout then closes on success", func(t *testing.T) {
		cb := NewGoBreaker("test-recovery", Config{
			MaxFailures:           1,
			Timeout:               20 * time.Millisecond,
			MaxConcurrentRequests: 1,
		}, logger)

		_ = cb.Execute(context.Background(), func() error { return stderrors.New("down") })
		assert.Equal(t, StateOpen, cb.State())

		time.Sleep(40 * time.Millisecond)
		assert.Equal(t, StateHalfOpen, cb.State())

		assert.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("client errors do not trip the breaker", func(t *testing.T) {
		cb := NewGoBreaker("test-client-errors", Config{
			MaxFailures:           1,
			Timeout:               time.Minute,
			MaxConcurrentRequests: 1,
		}, logger)

		for i := 0; i < 3; i++ {
			err := cb.Execute(context.Background(), func() error {
				return errors.CaseAPIError(400, "bad request")
			})
			assert.Error(t, err)
		}
		_ = cb.Execute(context.Background(), func() error { return errors.UnknownStatusError("X") })

		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("server errors trip the breaker", func(t *testing.T) {
		cb := NewGoBreaker("test-server-errors", Config{
			MaxFailures:           2,
			Timeout:               time.Minute,
			MaxConcurrentRequests: 1,
		}, logger)

		for i := 0; i < 2; i++ {
			_ = cb.Execute(context.Background(), func() error {
				return errors.CaseAPIError(503, "")
			})
		}
		assert.Equal(t, StateOpen, cb.State())
	})

	t.Run("cancelled context is not executed", func(t *testing.T) {
		cb := NewGoBreaker("test-cancel", DefaultConfig(), logger)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := cb.Execute(ctx, func() error {
			t.Fatal("should not be called")
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("health follows the circuit", func(t *testing.T) {
		cb := NewGoBreaker("test-health", Config{
			MaxFailures:           1,
			Timeout:               time.Minute,
			MaxConcurrentRequests: 1,
		}, logger)
		require.NoError(t, cb.Health())

		_ = cb.Execute(context.Background(), func() error { return stderrors.New("down") })

		err := cb.Health()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOpen)
		assert.Contains(t, err.Error(), "test-health")
	})
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, CaseAPIConfig.Validate())
	assert.NoError(t, OAuthConfig.Validate())
	assert.Error(t, Config{Timeout: time.Second, MaxConcurrentRequests: 1}.Validate())
	assert.Error(t, Config{MaxFailures: 1, MaxConcurrentRequests: 1}.Validate())
	assert.Error(t, Config{MaxFailures: 1, Timeout: time.Second}.Validate())

	cb := NewGoBreaker("invalid", Config{}, nil)
	assert.Equal(t, StateClosed, cb.State())
}
