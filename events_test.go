package overseer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEventSeverity tests the severity of each event kind
func TestEventSeverity(t *testing.T) {
	assert.Equal(t, SeverityInfo, SupervisionEvent{Kind: ChildStarted}.Severity())
	assert.Equal(t, SeverityWarning, SupervisionEvent{Kind: ChildRestarted}.Severity())
	assert.Equal(t, SeverityError, SupervisionEvent{Kind: ChildFailed}.Severity())
	assert.Equal(t, SeverityCritical, SupervisionEvent{Kind: RestartLimitExceeded}.Severity())
	assert.Equal(t, SeverityInfo, SupervisionEvent{Kind: ChildStopped}.Severity())
	assert.Equal(t, SeverityWarning, SupervisionEvent{Kind: ChildStopped, Cause: ErrShutdownTimeout}.Severity())
}

// TestParseSeverity tests severity names from configuration
func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("Warning")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, sev)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}

// TestNoopMonitor tests that the noop monitor is not attached
func TestNoopMonitor(t *testing.T) {
	sup := New(OneForOne, WithMonitor(NoopMonitor{}), WithMonitor(nil))
	assert.Empty(t, sup.monitors)
}
