// Package session implements the lifecycle controller from spec §4.5:
// it owns the debugger, drives an adapter's request loop, runs a
// background event thread, and enforces the debuggee state machine.
package session

import (
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/dd86k/aliceserver/internal/debugger"
	"github.com/dd86k/aliceserver/internal/protocol"
	"github.com/dd86k/aliceserver/internal/targetconfig"
)

// Adapter is what the session engine drives: a protocol-specific
// front end that owns its own transport (spec §3 "Ownership"). It
// exposes just enough surface for the engine to stay protocol-agnostic.
type Adapter interface {
	// Name identifies the adapter for logging ("dap", "mi2", ...).
	Name() string
	// NextRequest blocks for the next inbound Request. A non-nil error
	// with ErrClosed means the transport closed cleanly (client hung up).
	NextRequest() (protocol.Request, error)
	// SendReply writes the correlated reply for req.
	SendReply(req protocol.Request, reply protocol.Reply) error
	// SendEvent forwards a normalized debugger event to the client.
	SendEvent(ev debugger.Event) error
}

// ErrClosed signals NextRequest observed a clean transport close.
var ErrClosed = &closedError{}

type closedError struct{}

func (*closedError) Error() string { return "session: transport closed" }

// Engine is the lifecycle controller: request loop + event loop +
// state machine, per spec §4.5.
type Engine struct {
	dbg    debugger.Debugger
	target *targetconfig.Target
	log    hclog.Logger

	mu    sync.Mutex
	state State
	// viaAttach remembers whether the current (or most recent) debuggee
	// came from Attach rather than Launch, since Running/Stopped don't
	// otherwise retain which branch of spec §4.5's diagram produced them.
	viaAttach bool

	eventWG   sync.WaitGroup
	eventOnce sync.Once
}

// New builds an Engine around dbg and the process-global target
// configuration, starting in Idle.
func New(dbg debugger.Debugger, target *targetconfig.Target, log hclog.Logger) *Engine {
	return &Engine{dbg: dbg, target: target, log: log, state: StateIdle}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Run drives adapter's request loop until a Close request (or a clean
// transport close) ends the session, then waits for the event thread
// to finish, per spec §5's "best-effort join" requirement.
func (e *Engine) Run(adapter Adapter) error {
	for {
		req, err := adapter.NextRequest()
		if err != nil {
			if err == ErrClosed {
				break
			}
			// Malformed frame or similar: the adapter already decided
			// this isn't recoverable as a correlated reply (it has no
			// request to correlate to), so the request loop ends.
			e.log.Error("adapter read failed, ending session", "adapter", adapter.Name(), "err", err)
			break
		}

		reply, shouldClose := e.dispatch(req)
		if sendErr := adapter.SendReply(req, reply); sendErr != nil {
			e.log.Error("failed to send reply", "adapter", adapter.Name(), "err", sendErr)
			break
		}

		if shouldClose {
			break
		}

		if (req.Kind == protocol.KindLaunch || req.Kind == protocol.KindRun) && req.Launch.AutoRun && reply.Success {
			e.startEventThread(adapter)
		}
		if req.Kind == protocol.KindAttach && reply.Success {
			e.startEventThread(adapter)
		}
	}

	e.eventWG.Wait()
	return nil
}

func (e *Engine) startEventThread(adapter Adapter) {
	e.eventOnce.Do(func() {
		e.eventWG.Add(1)
		go e.eventLoop(adapter)
	})
}

// eventLoop is the dedicated event-delivery thread from spec §4.5: it
// repeatedly calls Wait and forwards each event, terminating when an
// Exited event arrives or the backend errors.
func (e *Engine) eventLoop(adapter Adapter) {
	defer e.eventWG.Done()
	for {
		ev, err := e.dbg.Wait()
		if err != nil {
			_ = adapter.SendEvent(debugger.Event{
				Kind:           debugger.EventOutput,
				OutputCategory: debugger.CategoryImportant,
				OutputText:     err.Error(),
			})
			return
		}

		// Closed is final: an event that arrives after a Close (such as
		// the Exited produced by its terminate/detach) does not reopen it.
		e.mu.Lock()
		if e.state != StateClosed {
			switch ev.Kind {
			case debugger.EventContinued:
				e.state = StateRunning
			case debugger.EventStopped:
				e.state = StateStopped
			case debugger.EventExited:
				e.state = StateIdle
			}
		}
		e.mu.Unlock()

		if sendErr := adapter.SendEvent(ev); sendErr != nil {
			e.log.Error("failed to send event", "adapter", adapter.Name(), "err", sendErr)
			return
		}

		if ev.Kind == debugger.EventExited {
			return
		}
	}
}

// dispatch applies one Request to the state machine and the debugger,
// returning the Reply to send and whether the session loop should end.
func (e *Engine) dispatch(req protocol.Request) (protocol.Reply, bool) {
	switch req.Kind {
	case protocol.KindInitialize, protocol.KindConfigurationDone, protocol.KindListFeatures,
		protocol.KindShow, protocol.KindInfoGdbMiCommand:
		// Pure protocol commands: no state transition, no debugger
		// call. The adapter renders any wire-specific body itself.
		return protocol.Ok(), false

	case protocol.KindSetTarget:
		e.target.SetExecutable(req.SetTarget.Path)
		return protocol.Ok(), false

	case protocol.KindSetArgs:
		e.target.SetArguments(req.SetArgs.Args)
		return protocol.Ok(), false

	case protocol.KindCwdSet:
		e.target.SetWorkingDirectory(req.CwdSet.Dir)
		return protocol.Ok(), false

	case protocol.KindLaunch, protocol.KindRun:
		return e.dispatchLaunch(req), false

	case protocol.KindAttach:
		return e.dispatchAttach(req), false

	case protocol.KindContinue:
		return e.dispatchContinue(req), false

	case protocol.KindDetach:
		return e.dispatchDetach(), false

	case protocol.KindTerminate:
		return e.dispatchTerminate(), false

	case protocol.KindClose:
		return e.dispatchClose(req)

	default:
		return protocol.Errorf("unknown request"), false
	}
}

func (e *Engine) dispatchLaunch(req protocol.Request) protocol.Reply {
	execPath, args, cwd := "", []string(nil), ""

	if req.Launch.HasExecutable {
		execPath = req.Launch.Executable
		args = req.Launch.Args
		if req.Launch.HasCwd {
			cwd = req.Launch.Cwd
		}
		e.target.SetExecutable(execPath)
		e.target.SetArguments(args)
		if req.Launch.HasCwd {
			e.target.SetWorkingDirectory(cwd)
		}
	} else {
		snap := e.target.Read()
		if !snap.HasExecutable {
			return protocol.Errorf("no target executable configured")
		}
		execPath = snap.ExecutablePath
		args = snap.Arguments
		cwd = snap.WorkingDir
	}

	if err := e.dbg.Launch(execPath, args, cwd); err != nil {
		return protocol.Errorf(err.Error())
	}

	e.mu.Lock()
	e.viaAttach = false
	e.mu.Unlock()
	e.setState(StateLaunched)
	if req.Launch.AutoRun {
		return protocol.OkRunning()
	}
	return protocol.Ok()
}

func (e *Engine) dispatchAttach(req protocol.Request) protocol.Reply {
	if err := e.dbg.Attach(req.Attach.PID); err != nil {
		return protocol.Errorf(err.Error())
	}
	e.mu.Lock()
	e.viaAttach = true
	e.mu.Unlock()
	e.setState(StateAttached)
	return protocol.OkRunning()
}

func (e *Engine) dispatchContinue(req protocol.Request) protocol.Reply {
	if !e.State().hasActiveProcess() {
		return protocol.Errorf("continue requires an active debuggee")
	}
	tid := 0
	if req.Continue.HasThreadID {
		tid = req.Continue.ThreadID
	}
	if err := e.dbg.ContinueThread(tid); err != nil {
		return protocol.Errorf(err.Error())
	}
	e.setState(StateRunning)
	return protocol.OkRunning()
}

func (e *Engine) dispatchDetach() protocol.Reply {
	if !e.State().hasActiveProcess() {
		return protocol.Errorf("detach requires an active debuggee")
	}
	if err := e.dbg.Detach(); err != nil {
		return protocol.Errorf(err.Error())
	}
	e.setState(StateIdle)
	return protocol.Ok()
}

func (e *Engine) dispatchTerminate() protocol.Reply {
	if !e.State().hasActiveProcess() {
		return protocol.Errorf("terminate requires an active debuggee")
	}
	if err := e.dbg.Terminate(); err != nil {
		return protocol.Errorf(err.Error())
	}
	e.setState(StateIdle)
	return protocol.Ok()
}

// dispatchClose implements spec §4.5's close semantics: terminate from
// Launched, detach from Attached (unless the adapter explicitly asked
// to terminate), no-op from Idle.
func (e *Engine) dispatchClose(req protocol.Request) (protocol.Reply, bool) {
	e.mu.Lock()
	state := e.state
	viaAttach := e.viaAttach
	e.mu.Unlock()

	// A launched debuggee is always terminated; an attached one is only
	// terminated on an explicit request, whatever TerminateIfLaunched says.
	wantsTerminate := req.Close.HasExplicitTerminate && req.Close.ExplicitTerminate

	if state.hasActiveProcess() {
		if viaAttach && !wantsTerminate {
			_ = e.dbg.Detach()
		} else {
			_ = e.dbg.Terminate()
		}
	}

	e.setState(StateClosed)
	return protocol.Ok(), true
}
