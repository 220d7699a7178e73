package gdbmi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dd86k/aliceserver/internal/debugger"
)

func TestStopReasonFromMI(t *testing.T) {
	assert.Equal(t, debugger.ReasonBreakpoint, stopReasonFromMI("breakpoint-hit"))
	assert.Equal(t, debugger.ReasonStep, stopReasonFromMI("end-stepping-range"))
	assert.Equal(t, debugger.ReasonStep, stopReasonFromMI("function-finished"))
	assert.Equal(t, debugger.ReasonException, stopReasonFromMI("signal-received"))
	assert.Equal(t, debugger.ReasonException, stopReasonFromMI("watchpoint-trigger"))
}

func TestParseMaybeOctal(t *testing.T) {
	n, err := parseMaybeOctal("07")
	assert.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = parseMaybeOctal("010")
	assert.NoError(t, err)
	assert.Equal(t, 8, n)

	n, err = parseMaybeOctal("0")
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFrameFromMI(t *testing.T) {
	frame := map[string]interface{}{
		"addr": "0x0000555555555149",
		"func": "main",
		"args": []interface{}{
			map[string]interface{}{"name": "argc", "value": "1"},
		},
	}
	f := frameFromMI(frame)
	assert.True(t, f.HasFunction)
	assert.Equal(t, "main", f.FunctionName)
	assert.Equal(t, uint64(0x0000555555555149), f.Address)
	assert.Len(t, f.Arguments, 1)
	assert.Equal(t, "argc", f.Arguments[0].Name)
}

func TestFrameFromMIUnknownFunction(t *testing.T) {
	f := frameFromMI(map[string]interface{}{"addr": "0x1", "func": "??"})
	assert.False(t, f.HasFunction)
}

func TestEventFromStoppedBreakpoint(t *testing.T) {
	d := &Debugger{}
	ev := d.eventFromStopped(map[string]interface{}{
		"reason":    "breakpoint-hit",
		"thread-id": "1",
		"frame": map[string]interface{}{
			"addr": "0x400000",
			"func": "foo",
		},
	})
	assert.Equal(t, debugger.EventStopped, ev.Kind)
	assert.Equal(t, debugger.ReasonBreakpoint, ev.Reason)
	assert.Equal(t, 1, ev.ThreadID)
	assert.True(t, ev.HasFrame)
	assert.Equal(t, "foo", ev.Frame.FunctionName)
}

func TestEventFromStoppedExitedNormally(t *testing.T) {
	d := &Debugger{}
	ev := d.eventFromStopped(map[string]interface{}{"reason": "exited-normally"})
	assert.Equal(t, debugger.EventExited, ev.Kind)
	assert.Equal(t, 0, ev.ExitCode)
}

func TestEventFromStoppedExitedWithCode(t *testing.T) {
	d := &Debugger{}
	ev := d.eventFromStopped(map[string]interface{}{"reason": "exited", "exit-code": "01"})
	assert.Equal(t, debugger.EventExited, ev.Kind)
	assert.Equal(t, 1, ev.ExitCode)
}

func TestThreadIDFromPayload(t *testing.T) {
	assert.Equal(t, 0, threadIDFromPayload(nil))
	assert.Equal(t, 3, threadIDFromPayload(map[string]interface{}{"thread-id": "3"}))
	assert.Equal(t, 0, threadIDFromPayload(map[string]interface{}{"thread-id": "not-a-number"}))
}

func TestHostArchitectureIsNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, hostArchitecture())
}

func TestOperationsRequireActiveDebuggee(t *testing.T) {
	d := &Debugger{}
	_, err := d.Threads()
	assert.Error(t, err)

	_, err = d.Frame(1)
	assert.Error(t, err)

	err = d.ContinueThread(1)
	assert.Error(t, err)

	err = d.Terminate()
	assert.Error(t, err)

	err = d.Detach()
	assert.Error(t, err)
}

func TestWaitOnClosedChannelErrors(t *testing.T) {
	notifications := make(chan map[string]interface{})
	close(notifications)
	d := &Debugger{notifications: notifications}
	_, err := d.Wait()
	assert.Error(t, err)
}
