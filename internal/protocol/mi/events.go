package mi

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/dd86k/aliceserver/internal/cstring"
	"github.com/dd86k/aliceserver/internal/debugger"
	"github.com/dd86k/aliceserver/internal/mivalue"
)

// SendEvent formats a normalized debugger event as an MI async or
// stream record, per spec §4.3's event-formatting table. Events never
// emit the prompt.
func (a *Adapter) SendEvent(ev debugger.Event) error {
	switch ev.Kind {
	case debugger.EventContinued:
		body := mivalue.Object()
		body.Set("thread-id", mivalue.String("all"))
		return a.writeRaw(mivalue.ToMessage("*running", body))

	case debugger.EventExited:
		body := mivalue.Object()
		if ev.ExitCode == 0 {
			body.Set("reason", mivalue.String("exited-normally"))
		} else {
			body.Set("reason", mivalue.String("exited"))
			body.Set("exit-code", mivalue.String(strconv.Itoa(ev.ExitCode)))
		}
		return a.writeRaw(mivalue.ToMessage("*stopped", body))

	case debugger.EventStopped:
		return a.sendStopped(ev)

	case debugger.EventOutput:
		return a.sendOutput(ev)
	}
	return nil
}

func (a *Adapter) sendStopped(ev debugger.Event) error {
	body := mivalue.Object()
	body.Set("reason", mivalue.String(reasonMIString(ev.Reason)))

	signalName, signalMeaning := "0", "Signal 0"
	if ev.HasExceptionKind {
		signalName = ev.ExceptionKind
		signalMeaning = ev.Description
		if signalMeaning == "" {
			signalMeaning = "Signal received"
		}
	}
	body.Set("signal-name", mivalue.String(signalName))
	body.Set("signal-meaning", mivalue.String(signalMeaning))

	body.Set("frame", frameValue(ev.Frame, ev.HasFrame))
	body.Set("thread-id", mivalue.String(strconv.Itoa(ev.ThreadID)))
	body.Set("stopped-threads", mivalue.String("all"))

	return a.writeRaw(mivalue.ToMessage("*stopped", body))
}

func (a *Adapter) sendOutput(ev debugger.Event) error {
	var prefix string
	switch ev.OutputCategory {
	case debugger.CategoryConsole, debugger.CategoryImportant:
		prefix = "~"
	case debugger.CategoryStdout, debugger.CategoryStderr:
		prefix = "@"
	default:
		return nil
	}
	return a.writeRaw(fmt.Sprintf("%s\"%s\"\n", prefix, cstring.Escape(ev.OutputText)))
}

// frameValue renders a Frame per spec §4.3's safe-default rule: when a
// frame is unavailable, addr/func/args/arch fall back to fixed values
// instead of the record failing.
func frameValue(f debugger.Frame, has bool) mivalue.Value {
	frame := mivalue.Object()
	if !has {
		frame.Set("addr", mivalue.String("0x0"))
		frame.Set("func", mivalue.String("??"))
		frame.Set("args", mivalue.Array())
		frame.Set("arch", mivalue.String(hostArchMIString()))
		return frame
	}

	frame.Set("addr", mivalue.String(fmt.Sprintf("0x%x", f.Address)))
	name := f.FunctionName
	if !f.HasFunction {
		name = "??"
	}
	frame.Set("func", mivalue.String(name))

	args := make([]mivalue.Value, len(f.Arguments))
	for i, arg := range f.Arguments {
		av := mivalue.Object()
		av.Set("name", mivalue.String(arg.Name))
		av.Set("value", mivalue.String(arg.Value))
		args[i] = av
	}
	frame.Set("args", mivalue.Array(args...))
	frame.Set("arch", mivalue.String(archMIString(f.Architecture)))
	return frame
}

// reasonMIString maps debugger.StopReason to the MI reason string from
// spec §4.3.
func reasonMIString(r debugger.StopReason) string {
	switch r {
	case debugger.ReasonStep:
		return "step"
	case debugger.ReasonBreakpoint:
		return "breakpoint-hit"
	case debugger.ReasonException:
		return "signal-received"
	default:
		return "unknown"
	}
}

// archMIString maps debugger.Architecture to GDB/MI's architecture
// token, falling back to the host architecture when f carries the
// zero value (paired with frameValue's has=false branch).
func archMIString(arch debugger.Architecture) string {
	switch arch {
	case debugger.ArchI386:
		return "i386"
	case debugger.ArchX86_64:
		return "i386:x86_64"
	case debugger.ArchAArch32:
		return "arm"
	case debugger.ArchAArch64:
		return "aarch64"
	default:
		return hostArchMIString()
	}
}

func hostArchMIString() string {
	switch runtime.GOARCH {
	case "386":
		return "i386"
	case "arm":
		return "arm"
	case "arm64":
		return "aarch64"
	default:
		return "i386:x86_64"
	}
}
