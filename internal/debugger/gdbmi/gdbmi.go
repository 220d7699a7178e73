// Package gdbmi is the concrete debugger.Debugger backend from
// spec §4.6: it drives a real `gdb --interpreter=mi` child process
// through github.com/cyrus-and/gdb and normalizes its MI notifications
// into debugger.Event.
package gdbmi

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/Masterminds/semver"
	"github.com/cyrus-and/gdb"
	"github.com/hashicorp/go-hclog"
	"github.com/kr/pty"

	"github.com/dd86k/aliceserver/internal/debugger"
)

// minGdbVersion is the lowest gdb release this backend has been
// validated against (MI3 support, reliable breakpoint-hit payloads).
var minGdbVersion = mustConstraint(">= 7.11.1")

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// Debugger drives one gdb child process for the lifetime of a single
// debuggee, per spec §4.6/§5 ("at most one debuggee at a time").
type Debugger struct {
	log hclog.Logger

	mu      sync.Mutex
	session *gdb.Gdb
	hasProc bool

	notifications chan map[string]interface{}
	inferiorTTY   *os.File
}

// New locates and version-checks the gdb executable, then starts it in
// MI mode. The returned Debugger has no active debuggee until Launch
// or Attach is called.
func New(log hclog.Logger) (*Debugger, error) {
	path, err := exec.LookPath("gdb")
	if err != nil {
		return nil, debugger.NewError(debugger.ErrNotFound, "gdb not found in PATH: %v", err)
	}
	if err := checkGdbVersion(path); err != nil {
		return nil, err
	}

	notifications := make(chan map[string]interface{}, 16)
	session, err := gdb.NewCmd([]string{path, "--interpreter=mi", "-q"}, func(n map[string]interface{}) {
		notifications <- n
	})
	if err != nil {
		return nil, debugger.NewError(debugger.ErrBackendError, "starting gdb: %v", err)
	}
	go io.Copy(io.Discard, session)

	return &Debugger{log: log, session: session, notifications: notifications}, nil
}

func checkGdbVersion(path string) error {
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return debugger.NewError(debugger.ErrBackendError, "gdb --version: %v", err)
	}
	firstLine := strings.SplitN(string(out), "\n", 2)[0]
	m := regexp.MustCompile(`(\d+\.\d+(\.\d+)?)`).FindString(firstLine)
	if m == "" {
		return debugger.NewError(debugger.ErrBackendError, "could not parse gdb version from %q", firstLine)
	}
	ver, err := semver.NewVersion(m)
	if err != nil {
		return debugger.NewError(debugger.ErrBackendError, "parsing gdb version %q: %v", m, err)
	}
	if !minGdbVersion.Check(ver) {
		return debugger.NewError(debugger.ErrBackendError, "gdb %s is too old, need %s", ver, minGdbVersion)
	}
	return nil
}

func (d *Debugger) send(command string, args ...string) (map[string]interface{}, error) {
	d.log.Debug("gdb <-", "command", command, "args", args)
	result, err := d.session.Send(command, args...)
	if err != nil {
		return nil, debugger.NewError(debugger.ErrBackendError, "gdb command %q failed: %v", command, err)
	}
	d.log.Debug("gdb ->", "class", result["class"])
	if class, _ := result["class"].(string); class == "error" {
		msg := errorPayloadMessage(result)
		return result, debugger.NewError(debugger.ErrBackendError, "%s", msg)
	}
	return result, nil
}

func errorPayloadMessage(result map[string]interface{}) string {
	payload, ok := result["payload"].(map[string]interface{})
	if !ok {
		return "gdb reported an error"
	}
	if msg, ok := payload["msg"].(string); ok {
		return msg
	}
	return "gdb reported an error"
}

// Launch spawns exec with args in cwd, via gdb's file-exec-and-symbols
// + exec-arguments + environment-cd + exec-run sequence (spec §4.6).
// The inferior's stdio is routed through a pty so its console output
// can be forwarded as Output events instead of disappearing into gdb's
// own controlling terminal.
func (d *Debugger) Launch(execPath string, args []string, cwd string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.send("file-exec-and-symbols", execPath); err != nil {
		return classifyLaunchError(err)
	}
	if len(args) > 0 {
		if _, err := d.send("exec-arguments", args...); err != nil {
			return classifyLaunchError(err)
		}
	}
	if cwd != "" {
		if _, err := d.send("environment-cd", cwd); err != nil {
			return classifyLaunchError(err)
		}
	}

	master, slave, err := pty.Open()
	if err == nil {
		d.inferiorTTY = master
		if _, setErr := d.send("inferior-tty-set", slave.Name()); setErr == nil {
			go d.pumpInferiorOutput(master)
		}
		_ = slave.Close()
	}

	if _, err := d.send("exec-run"); err != nil {
		return classifyLaunchError(err)
	}
	d.hasProc = true
	return nil
}

func classifyLaunchError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "No such file"):
		return debugger.NewError(debugger.ErrNotFound, "%s", msg)
	case strings.Contains(msg, "Permission denied"):
		return debugger.NewError(debugger.ErrPermissionDenied, "%s", msg)
	default:
		return err
	}
}

func (d *Debugger) pumpInferiorOutput(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			d.notifications <- map[string]interface{}{
				"class": "aliceserver-inferior-output",
				"text":  string(buf[:n]),
			}
		}
		if err != nil {
			return
		}
	}
}

// Attach attaches gdb to an already-running process, spec §4.6.
func (d *Debugger) Attach(pid int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.send("target-attach", strconv.Itoa(pid)); err != nil {
		msg := err.Error()
		if strings.Contains(msg, "No such process") {
			return debugger.NewError(debugger.ErrNoSuchProcess, "%s", msg)
		}
		if strings.Contains(msg, "Permission denied") || strings.Contains(msg, "ptrace") {
			return debugger.NewError(debugger.ErrPermissionDenied, "%s", msg)
		}
		return err
	}
	d.hasProc = true
	return nil
}

// ContinueThread resumes tid (0 means "whichever thread gdb currently
// has selected"), spec §4.6.
func (d *Debugger) ContinueThread(tid int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasProc {
		return debugger.NewError(debugger.ErrNotActive, "continue requires an active debuggee")
	}
	if tid > 0 {
		_, err := d.send("exec-continue", "--thread", strconv.Itoa(tid))
		return err
	}
	_, err := d.send("exec-continue")
	return err
}

// Terminate kills the debuggee and clears the process handle.
func (d *Debugger) Terminate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasProc {
		return debugger.NewError(debugger.ErrNotActive, "terminate requires an active debuggee")
	}
	_, err := d.send("exec-abort")
	d.hasProc = false
	d.closeInferiorTTY()
	return err
}

// Detach disconnects gdb from the debuggee without killing it.
func (d *Debugger) Detach() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasProc {
		return debugger.NewError(debugger.ErrNotActive, "detach requires an active debuggee")
	}
	_, err := d.send("target-detach")
	d.hasProc = false
	d.closeInferiorTTY()
	return err
}

func (d *Debugger) closeInferiorTTY() {
	if d.inferiorTTY != nil {
		_ = d.inferiorTTY.Close()
		d.inferiorTTY = nil
	}
}

// Wait blocks for the next gdb notification and normalizes it into a
// debugger.Event, per spec §4.6's lifecycle mapping: Exception/stopped
// → Stopped, exit → Exited, running → Continued.
func (d *Debugger) Wait() (debugger.Event, error) {
	n, ok := <-d.notifications
	if !ok {
		return debugger.Event{}, debugger.NewError(debugger.ErrBackendError, "gdb notification channel closed")
	}

	class, _ := n["class"].(string)
	payload, _ := n["payload"].(map[string]interface{})

	switch class {
	case "aliceserver-inferior-output":
		text, _ := n["text"].(string)
		return debugger.Event{
			Kind:           debugger.EventOutput,
			OutputCategory: debugger.CategoryStdout,
			OutputText:     text,
		}, nil

	case "running":
		return debugger.Event{Kind: debugger.EventContinued, ThreadID: threadIDFromPayload(payload)}, nil

	case "stopped":
		return d.eventFromStopped(payload), nil
	}

	// Anything else (e.g. plain console/log records not carrying a
	// lifecycle transition) is surfaced as low-priority output rather
	// than silently dropped.
	return debugger.Event{
		Kind:           debugger.EventOutput,
		OutputCategory: debugger.CategoryConsole,
		OutputText:     fmt.Sprintf("%v", n),
	}, nil
}

func threadIDFromPayload(payload map[string]interface{}) int {
	if payload == nil {
		return 0
	}
	if s, ok := payload["thread-id"].(string); ok {
		if tid, err := strconv.Atoi(s); err == nil {
			return tid
		}
	}
	return 0
}

func (d *Debugger) eventFromStopped(payload map[string]interface{}) debugger.Event {
	reason, _ := payload["reason"].(string)

	if reason == "exited-normally" {
		return debugger.Event{Kind: debugger.EventExited, ExitCode: 0}
	}
	if reason == "exited" {
		code := 0
		if s, ok := payload["exit-code"].(string); ok {
			code, _ = parseMaybeOctal(s)
		}
		return debugger.Event{Kind: debugger.EventExited, ExitCode: code}
	}

	ev := debugger.Event{
		Kind:     debugger.EventStopped,
		ThreadID: threadIDFromPayload(payload),
		Reason:   stopReasonFromMI(reason),
	}
	if name, ok := payload["signal-name"].(string); ok && name != "" {
		ev.HasExceptionKind = true
		ev.ExceptionKind = name
	}
	if meaning, ok := payload["signal-meaning"].(string); ok {
		ev.Description = meaning
	}
	if frame, ok := payload["frame"].(map[string]interface{}); ok {
		ev.Frame = frameFromMI(frame)
		ev.HasFrame = true
	}
	return ev
}

// parseMaybeOctal handles gdb's exit-code field, which it formats in
// octal (e.g. "07") for historical reasons.
func parseMaybeOctal(s string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimPrefix(s, "0"), 8, 32)
	if err != nil {
		return strconv.Atoi(s)
	}
	return int(n), nil
}

func stopReasonFromMI(reason string) debugger.StopReason {
	switch reason {
	case "breakpoint-hit":
		return debugger.ReasonBreakpoint
	case "end-stepping-range", "function-finished":
		return debugger.ReasonStep
	case "signal-received":
		return debugger.ReasonException
	default:
		return debugger.ReasonException
	}
}

func frameFromMI(frame map[string]interface{}) debugger.Frame {
	f := debugger.Frame{Architecture: hostArchitecture()}
	if addr, ok := frame["addr"].(string); ok {
		if v, err := strconv.ParseUint(strings.TrimPrefix(addr, "0x"), 16, 64); err == nil {
			f.Address = v
		}
	}
	if fn, ok := frame["func"].(string); ok && fn != "" && fn != "??" {
		f.FunctionName = fn
		f.HasFunction = true
	}
	if args, ok := frame["args"].([]interface{}); ok {
		for _, a := range args {
			am, ok := a.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := am["name"].(string)
			value, _ := am["value"].(string)
			f.Arguments = append(f.Arguments, debugger.Argument{Name: name, Value: value})
		}
	}
	return f
}

func hostArchitecture() debugger.Architecture {
	switch runtime.GOARCH {
	case "386":
		return debugger.ArchI386
	case "amd64":
		return debugger.ArchX86_64
	case "arm":
		return debugger.ArchAArch32
	case "arm64":
		return debugger.ArchAArch64
	default:
		return debugger.ArchX86_64
	}
}

// Threads returns the debuggee's thread ids via gdb's thread-info.
func (d *Debugger) Threads() ([]debugger.Thread, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasProc {
		return nil, debugger.NewError(debugger.ErrNotActive, "threads requires an active debuggee")
	}

	result, err := d.send("thread-info")
	if err != nil {
		return nil, err
	}
	payload, _ := result["payload"].(map[string]interface{})
	raw, _ := payload["threads"].([]interface{})

	threads := make([]debugger.Thread, 0, len(raw))
	for _, t := range raw {
		tm, ok := t.(map[string]interface{})
		if !ok {
			continue
		}
		idStr, _ := tm["id"].(string)
		id, _ := strconv.Atoi(idStr)
		name, _ := tm["target-id"].(string)
		threads = append(threads, debugger.Thread{ID: id, Name: name})
	}
	return threads, nil
}

// Frame returns frame 0 of tid via stack-list-frames + stack-list-arguments.
func (d *Debugger) Frame(tid int) (debugger.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasProc {
		return debugger.Frame{}, debugger.NewError(debugger.ErrNotActive, "frame requires an active debuggee")
	}

	result, err := d.send("stack-list-frames", "--thread", strconv.Itoa(tid), "0", "0")
	if err != nil {
		return debugger.Frame{}, debugger.NewError(debugger.ErrNoFrame, "stack-list-frames: %v", err)
	}
	payload, _ := result["payload"].(map[string]interface{})
	stack, _ := payload["stack"].([]interface{})
	if len(stack) == 0 {
		return debugger.Frame{}, debugger.NewError(debugger.ErrNoFrame, "no frames available for thread %d", tid)
	}
	entry, ok := stack[0].(map[string]interface{})
	if !ok {
		return debugger.Frame{}, debugger.NewError(debugger.ErrNoFrame, "malformed frame entry")
	}
	frameMap, ok := entry["frame"].(map[string]interface{})
	if !ok {
		frameMap = entry
	}

	f := frameFromMI(frameMap)

	argsResult, err := d.send("stack-list-arguments", "--thread", strconv.Itoa(tid), "1", "0", "0")
	if err == nil {
		if argsPayload, ok := argsResult["payload"].(map[string]interface{}); ok {
			if stackArgs, ok := argsPayload["stack-args"].([]interface{}); ok && len(stackArgs) > 0 {
				if frameArgs, ok := stackArgs[0].(map[string]interface{}); ok {
					if list, ok := frameArgs["args"].([]interface{}); ok {
						f.Arguments = nil
						for _, a := range list {
							am, ok := a.(map[string]interface{})
							if !ok {
								continue
							}
							name, _ := am["name"].(string)
							value, _ := am["value"].(string)
							f.Arguments = append(f.Arguments, debugger.Argument{Name: name, Value: value})
						}
					}
				}
			}
		}
	}

	return f, nil
}
