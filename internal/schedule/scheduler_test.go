package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/appointment-network/internal/run"
)

type stubStarter struct {
	runID string
	err   error
	calls int
}

func (s *stubStarter) Start(ctx context.Context) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.runID, nil
}

func TestNewRejectsInvalidExpression(t *testing.T) {
	_, err := New("every sunday", &stubStarter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid refresh cron expression")
}

func TestNewAcceptsStandardExpression(t *testing.T) {
	s, err := New("0 3 * * *", &stubStarter{})
	require.NoError(t, err)
	require.NotNil(t, s)
	s.Stop()
}

func TestFireStartsRun(t *testing.T) {
	stub := &stubStarter{runID: "run-1"}
	fire(stub)
	assert.Equal(t, 1, stub.calls)
}

func TestFireSkipsWhileRunActive(t *testing.T) {
	stub := &stubStarter{err: run.ErrRunActive}
	fire(stub)
	assert.Equal(t, 1, stub.calls)
}
