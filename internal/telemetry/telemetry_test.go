package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInit_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "", "kiseki", "test", false)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}

func TestMeter(t *testing.T) {
	m := Meter("kiseki/test")
	_, err := m.Int64Counter("test.counter")
	require.NoError(t, err)
}
