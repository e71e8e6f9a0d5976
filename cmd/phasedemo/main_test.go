package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCycles(t *testing.T) {
	opts := &options{
		cycles:     2,
		slots:      3,
		timeout:    20 * time.Millisecond,
		kvMax:      40 * time.Millisecond,
		bidLatency: 5 * time.Millisecond,
		failWrap:   true,
	}

	require.NoError(t, run(context.Background(), opts))
}

func TestRootCommandWithConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phasez.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: 30ms\nphase_timeouts:\n  BeforeTrigger: 50ms\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "--cycles", "1", "--slots", "2", "--kv-max", "10ms", "--bid-latency", "1ms"})
	require.NoError(t, cmd.Execute())
}

func TestRootCommandRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phasez.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unit_failure_policy: retry\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "--cycles", "1"})
	assert.Error(t, cmd.Execute())
}

func TestBidderCollectsUnits(t *testing.T) {
	b := &Bidder{}
	require.NoError(t, b.UnitCreated(Slot{ID: "a"}))
	require.NoError(t, b.UnitCreated(Slot{ID: "b"}))
	assert.Equal(t, []string{"a", "b"}, b.units)

	require.NoError(t, b.BeforeTeardown(context.Background()))
	assert.Empty(t, b.units)
}
