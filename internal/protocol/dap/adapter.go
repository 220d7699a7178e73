// Package dap implements the Debug Adapter Protocol front end from
// spec §4.4: HTTP-framed JSON requests in, JSON responses/events out,
// dispatched through the protocol-independent session engine.
//
// Wire envelopes (ProtocolMessage/Response/Event) and the Capabilities
// body use github.com/google/go-dap, the same package the
// docker/buildx build-debug DAP monitor and the go-delve MCP DAP
// tooling in the reference pack use for their own DAP servers. Framing
// stays with this module's own transport.HTTP (see SPEC_FULL §4.4) so
// the Content-Length error taxonomy in spec §7 is enforced exactly as
// this module specifies it, rather than whatever go-dap's own reader
// does.
package dap

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	godap "github.com/google/go-dap"
	"github.com/hashicorp/go-hclog"

	"github.com/dd86k/aliceserver/internal/debugger"
	"github.com/dd86k/aliceserver/internal/protocol"
	"github.com/dd86k/aliceserver/internal/session"
	"github.com/dd86k/aliceserver/internal/transport"
)

type inMessage struct {
	Seq       int             `json:"seq"`
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments"`
}

type errorDetail struct {
	ID     int    `json:"id"`
	Format string `json:"format"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// Adapter is the DAP protocol adapter. It owns its transport, per
// spec §3's ownership rule.
type Adapter struct {
	tr  *transport.HTTP
	log hclog.Logger

	seq int32 // server-side monotonic seq, spec §4.4

	initialized bool
	pendingCmd  map[int]string // client seq -> command, for SendReply's envelope

	// Client identity recorded from initialize's arguments, spec §4.4.
	clientID   string
	clientName string
	adapterID  string
	locale     string
	pathFormat string // "path" or "uri"
}

// New builds a DAP adapter over tr.
func New(tr *transport.HTTP, log hclog.Logger) *Adapter {
	return &Adapter{tr: tr, log: log, pendingCmd: make(map[int]string)}
}

func (a *Adapter) Name() string { return "dap" }

func (a *Adapter) nextSeq() int {
	return int(atomic.AddInt32(&a.seq, 1))
}

// NextRequest reads DAP messages until it finds one that the session
// engine should dispatch, answering protocol-schema violations
// (uninitialized session, missing required fields, unknown commands)
// inline, since those never need the debugger or the state machine.
func (a *Adapter) NextRequest() (protocol.Request, error) {
	for {
		body, err := a.tr.ReadMessage()
		if err != nil {
			if terr, ok := err.(*transport.Error); ok && terr.Kind == transport.KindEOF {
				return protocol.Request{}, session.ErrClosed
			}
			return protocol.Request{}, err
		}

		var msg inMessage
		if jsonErr := json.Unmarshal(body, &msg); jsonErr != nil {
			a.log.Error("malformed DAP request JSON", "err", jsonErr)
			continue
		}

		if !a.initialized && msg.Command != "initialize" {
			a.sendError(msg.Seq, msg.Command, "session must be initialized before command %q", msg.Command)
			continue
		}

		req, handled, ok := a.decode(msg)
		if !ok {
			continue // already answered inline
		}
		if handled {
			a.pendingCmd[msg.Seq] = msg.Command
			return req, nil
		}
	}
}

// decode turns one inbound message into a protocol.Request. handled
// is false only when decode already sent a reply itself (schema error
// or unknown command) and NextRequest should just read the next message.
func (a *Adapter) decode(msg inMessage) (req protocol.Request, handled bool, ok bool) {
	req.ID = msg.Seq
	req.HasID = true

	switch msg.Command {
	case "initialize":
		var args struct {
			ClientID   string `json:"clientID"`
			ClientName string `json:"clientName"`
			AdapterID  string `json:"adapterID"`
			Locale     string `json:"locale"`
			PathFormat string `json:"pathFormat"`
		}
		_ = json.Unmarshal(msg.Arguments, &args)

		pathFormat := args.PathFormat
		if pathFormat == "" {
			pathFormat = "path"
		}
		if pathFormat != "path" && pathFormat != "uri" {
			a.sendError(msg.Seq, msg.Command, "unsupported pathFormat %q", args.PathFormat)
			return req, false, false
		}

		a.clientID = args.ClientID
		a.clientName = args.ClientName
		a.adapterID = args.AdapterID
		a.locale = args.Locale
		a.pathFormat = pathFormat
		a.log.Debug("client identity", "clientID", a.clientID, "clientName", a.clientName,
			"adapterID", a.adapterID, "locale", a.locale, "pathFormat", a.pathFormat)

		a.logClientCapabilities(msg.Arguments)
		req.Kind = protocol.KindInitialize
		a.initialized = true
		return req, true, true

	case "configurationDone":
		req.Kind = protocol.KindConfigurationDone
		return req, true, true

	case "launch":
		var args struct {
			Path string   `json:"path"`
			Args []string `json:"args"`
			Cwd  string   `json:"cwd"`
		}
		_ = json.Unmarshal(msg.Arguments, &args)
		if args.Path == "" {
			a.sendError(msg.Seq, msg.Command, "launch requires arguments.path")
			return req, false, false
		}
		req.Kind = protocol.KindLaunch
		req.Launch = protocol.LaunchPayload{
			AutoRun:       true,
			HasExecutable: true,
			Executable:    args.Path,
			Args:          args.Args,
			HasCwd:        args.Cwd != "",
			Cwd:           args.Cwd,
		}
		return req, true, true

	case "attach":
		var args struct {
			Pid int `json:"pid"`
		}
		_ = json.Unmarshal(msg.Arguments, &args)
		if args.Pid == 0 {
			a.sendError(msg.Seq, msg.Command, "attach requires arguments.pid")
			return req, false, false
		}
		req.Kind = protocol.KindAttach
		req.Attach = protocol.AttachPayload{PID: args.Pid}
		return req, true, true

	case "continue":
		var raw map[string]json.RawMessage
		_ = json.Unmarshal(msg.Arguments, &raw)
		threadIDRaw, present := raw["threadId"]
		if !present {
			a.sendError(msg.Seq, msg.Command, "continue requires arguments.threadId")
			return req, false, false
		}
		var threadID int
		_ = json.Unmarshal(threadIDRaw, &threadID)
		req.Kind = protocol.KindContinue
		req.Continue = protocol.ContinuePayload{ThreadID: threadID, HasThreadID: true}
		return req, true, true

	case "disconnect":
		var args struct {
			TerminateDebuggee *bool `json:"terminateDebuggee"`
		}
		_ = json.Unmarshal(msg.Arguments, &args)
		req.Kind = protocol.KindClose
		// TerminateIfLaunched stays false here: the session engine's
		// dispatchClose already terminates unconditionally when the
		// debuggee came from Launch, and defaults to Detach when it
		// came from Attach unless terminateDebuggee explicitly says
		// otherwise below.
		if args.TerminateDebuggee != nil {
			req.Close.HasExplicitTerminate = true
			req.Close.ExplicitTerminate = *args.TerminateDebuggee
		}
		return req, true, true

	case "terminate":
		req.Kind = protocol.KindTerminate
		return req, true, true

	default:
		a.sendError(msg.Seq, msg.Command, "unknown command %q", msg.Command)
		return req, false, false
	}
}

func (a *Adapter) logClientCapabilities(raw json.RawMessage) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return
	}
	names := make([]string, 0, len(fields))
	for k, v := range fields {
		if _, isBool := v.(bool); isBool && strings.HasPrefix(k, "supports") {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		a.log.Debug("client capability", "name", n, "value", fields[n])
	}
}

func (a *Adapter) sendError(requestSeq int, command string, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	resp := &godap.Response{
		ProtocolMessage: godap.ProtocolMessage{Seq: a.nextSeq(), Type: "response"},
		RequestSeq:      requestSeq,
		Success:         false,
		Command:         command,
		Message:         msg,
		Body:            errorBody{Error: errorDetail{ID: 1, Format: msg}},
	}
	_ = a.writeMessage(resp)
}

// SendReply writes the correlated response for req.
func (a *Adapter) SendReply(req protocol.Request, reply protocol.Reply) error {
	command := a.pendingCmd[req.ID]
	delete(a.pendingCmd, req.ID)

	resp := &godap.Response{
		ProtocolMessage: godap.ProtocolMessage{Seq: a.nextSeq(), Type: "response"},
		RequestSeq:      req.ID,
		Success:         reply.Success,
		Command:         command,
	}

	if !reply.Success {
		resp.Message = reply.ErrorMessage
		resp.Body = errorBody{Error: errorDetail{ID: 1, Format: reply.ErrorMessage}}
		return a.writeMessage(resp)
	}

	if command == "initialize" {
		resp.Body = buildCapabilities()
		if err := a.writeMessage(resp); err != nil {
			return err
		}
		return a.writeMessage(&godap.Event{
			ProtocolMessage: godap.ProtocolMessage{Seq: a.nextSeq(), Type: "event"},
			Event:           "initialized",
		})
	}

	return a.writeMessage(resp)
}

// SendEvent forwards a normalized debugger event as a DAP event, per
// the mappings in spec §4.4.
func (a *Adapter) SendEvent(ev debugger.Event) error {
	switch ev.Kind {
	case debugger.EventStopped:
		body := map[string]interface{}{
			"reason":   stoppedReasonString(ev.Reason),
			"threadId": ev.ThreadID,
		}
		if ev.Description != "" {
			body["description"] = ev.Description
		}
		return a.writeMessage(&godap.Event{
			ProtocolMessage: godap.ProtocolMessage{Seq: a.nextSeq(), Type: "event"},
			Event:           "stopped",
			Body:            body,
		})

	case debugger.EventContinued:
		return a.writeMessage(&godap.Event{
			ProtocolMessage: godap.ProtocolMessage{Seq: a.nextSeq(), Type: "event"},
			Event:           "continued",
			Body:            map[string]interface{}{"threadId": ev.ThreadID},
		})

	case debugger.EventExited:
		return a.writeMessage(&godap.Event{
			ProtocolMessage: godap.ProtocolMessage{Seq: a.nextSeq(), Type: "event"},
			Event:           "exited",
			Body:            map[string]interface{}{"exitCode": ev.ExitCode},
		})

	case debugger.EventOutput:
		return a.writeMessage(&godap.Event{
			ProtocolMessage: godap.ProtocolMessage{Seq: a.nextSeq(), Type: "event"},
			Event:           "output",
			Body: map[string]interface{}{
				"category": string(ev.OutputCategory),
				"output":   ev.OutputText,
			},
		})
	}
	return nil
}

// stoppedReasonString maps debugger.StopReason to the literal DAP
// strings from spec §4.4.
func stoppedReasonString(r debugger.StopReason) string {
	switch r {
	case debugger.ReasonStep:
		return "step"
	case debugger.ReasonBreakpoint:
		return "breakpoint"
	case debugger.ReasonException:
		return "exception"
	case debugger.ReasonPause:
		return "pause"
	case debugger.ReasonEntry:
		return "entry"
	case debugger.ReasonGoto:
		return "goto"
	case debugger.ReasonFunctionBreakpoint:
		return "function breakpoint"
	case debugger.ReasonDataBreakpoint:
		return "data breakpoint"
	case debugger.ReasonInstructionBreakpoint:
		return "instruction breakpoint"
	default:
		return "unknown"
	}
}

func (a *Adapter) writeMessage(v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return a.tr.SendMessage(body)
}
