// Package mi implements the GDB/MI front end from spec §4.3: a
// line-oriented command language parsed into the protocol-independent
// Request/Reply model and rendered back out using GDB/MI's record and
// prompt conventions.
package mi

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/go-hclog"

	"github.com/dd86k/aliceserver/internal/cstring"
	"github.com/dd86k/aliceserver/internal/mivalue"
	"github.com/dd86k/aliceserver/internal/protocol"
	"github.com/dd86k/aliceserver/internal/session"
	"github.com/dd86k/aliceserver/internal/transport"
)

// Version is one of the MI protocol versions this adapter answers to.
// Spec §4.3: "currently no behavioural difference beyond the name".
type Version int

const (
	Version2 Version = 2
	Version3 Version = 3
	Version4 Version = 4
)

// ParseVersion folds any value outside [2,4] — in particular version
// 1 — to the latest version, per spec §4.3.
func ParseVersion(v int) Version {
	if v < 2 || v > 4 {
		return Version4
	}
	return Version(v)
}

// Adapter is the GDB/MI protocol adapter. It owns its transport, per
// spec §3's ownership rule.
type Adapter struct {
	tr          *transport.Line
	version     Version
	versionText string
	log         hclog.Logger

	started bool
}

// New builds an MI adapter over tr. versionText is the text emitted by
// "show version".
func New(tr *transport.Line, version Version, versionText string, log hclog.Logger) *Adapter {
	return &Adapter{tr: tr, version: version, versionText: versionText, log: log}
}

func (a *Adapter) Name() string {
	switch a.version {
	case Version2:
		return "mi2"
	case Version3:
		return "mi3"
	default:
		return "mi4"
	}
}

// NextRequest reads MI command lines until it finds one the session
// engine should dispatch. Commands with no debugger-visible effect
// (the no-op forms, gdb-set, the exit family) are answered, or simply
// absorbed, entirely within this loop.
func (a *Adapter) NextRequest() (protocol.Request, error) {
	if !a.started {
		a.started = true
		if err := a.writePrompt(); err != nil {
			return protocol.Request{}, err
		}
	}

	for {
		lineBytes, err := a.tr.ReadLine()
		if err != nil {
			if terr, ok := err.(*transport.Error); ok && terr.Kind == transport.KindEOF {
				return protocol.Request{}, session.ErrClosed
			}
			return protocol.Request{}, err
		}

		p := parseLine(string(lineBytes))

		if p.shouldEcho() {
			if err := a.writeRaw(fmt.Sprintf("&\"%s\"\n", cstring.Escape(p.echoText))); err != nil {
				return protocol.Request{}, err
			}
		}

		if p.name == "" {
			if err := a.writeResult(p.hasID, p.id, "^done", mivalue.Value{}); err != nil {
				return protocol.Request{}, err
			}
			if err := a.writePrompt(); err != nil {
				return protocol.Request{}, err
			}
			continue
		}

		if gdbExitNames[p.name] {
			return protocol.Request{}, session.ErrClosed
		}

		if gdbSetNames[p.name] {
			continue
		}

		return a.decode(p), nil
	}
}

// decode turns one parsed line into a protocol.Request. It always
// succeeds: a name absent from the command table becomes KindUnknown,
// answered as an error by SendReply.
func (a *Adapter) decode(p parsedLine) protocol.Request {
	req := protocol.Request{ID: p.id, HasID: p.hasID}

	switch {
	case execRunNames[p.name]:
		req.Kind = protocol.KindRun
		req.Launch = protocol.LaunchPayload{AutoRun: true}

	case execContinueNames[p.name]:
		req.Kind = protocol.KindContinue
		if len(p.args) > 0 {
			if tid, convErr := strconv.Atoi(p.args[0]); convErr == nil {
				req.Continue = protocol.ContinuePayload{ThreadID: tid, HasThreadID: true}
			}
		}

	case execAbortNames[p.name]:
		req.Kind = protocol.KindTerminate

	case attachNames[p.name]:
		req.Kind = protocol.KindAttach
		if len(p.args) > 0 {
			pid, _ := strconv.Atoi(p.args[0])
			req.Attach = protocol.AttachPayload{PID: pid}
		}

	case detachNames[p.name]:
		req.Kind = protocol.KindDetach

	case fileExecNames[p.name]:
		req.Kind = protocol.KindSetTarget
		if len(p.args) > 0 {
			req.SetTarget = protocol.SetTargetPayload{Path: p.args[0]}
		}

	case execArgumentsNames[p.name]:
		req.Kind = protocol.KindSetArgs
		req.SetArgs = protocol.SetArgsPayload{Args: p.args}

	case environmentCdNames[p.name]:
		req.Kind = protocol.KindCwdSet
		if len(p.args) > 0 {
			req.CwdSet = protocol.CwdSetPayload{Dir: p.args[0]}
		}

	case p.name == "target":
		req.Kind = protocol.KindUnknown
		req.Unknown = protocol.UnknownPayload{Raw: p.echoText}
		if len(p.args) > 1 && toLower(p.args[0]) == "exec" {
			req.Kind = protocol.KindSetTarget
			req.SetTarget = protocol.SetTargetPayload{Path: p.args[1]}
		}

	case showNames[p.name]:
		req.Kind = protocol.KindShow
		if len(p.args) > 0 {
			req.Show = protocol.ShowPayload{Arg: p.args[0], HasArg: true}
		}

	case infoGdbMiNames[p.name]:
		req.Kind = protocol.KindInfoGdbMiCommand
		if len(p.args) > 0 {
			req.InfoGdbMiCommand = protocol.InfoGdbMiCommandPayload{Name: p.args[0]}
		}

	case listFeaturesNames[p.name]:
		req.Kind = protocol.KindListFeatures

	default:
		req.Kind = protocol.KindUnknown
		req.Unknown = protocol.UnknownPayload{Raw: p.echoText}
	}

	return req
}

// SendReply renders req/reply as an MI result or error record followed
// by the prompt, per spec §4.3.
func (a *Adapter) SendReply(req protocol.Request, reply protocol.Reply) error {
	defer a.writePrompt()

	if !reply.Success {
		msg := reply.ErrorMessage
		if req.Kind == protocol.KindUnknown {
			msg = fmt.Sprintf("Unknown request: %q", req.Unknown.Raw)
		}
		return a.writeError(req.HasID, req.ID, msg)
	}

	switch req.Kind {
	case protocol.KindRun, protocol.KindContinue, protocol.KindAttach:
		return a.writeResult(req.HasID, req.ID, "^running", mivalue.Value{})

	case protocol.KindShow:
		if req.Show.HasArg && toLower(req.Show.Arg) == "version" {
			if err := a.writeRaw(fmt.Sprintf("~\"%s\\n\"\n", cstring.Escape(a.versionText))); err != nil {
				return err
			}
		}
		return a.writeResult(req.HasID, req.ID, "^done", mivalue.Value{})

	case protocol.KindInfoGdbMiCommand:
		exists := knownCommands[toLower(req.InfoGdbMiCommand.Name)]
		command := mivalue.Object()
		command.Set("exists", mivalue.Bool(exists))
		body := mivalue.Object()
		body.Set("command", command)
		return a.writeResult(req.HasID, req.ID, "^done", body)

	case protocol.KindListFeatures:
		body := mivalue.Object()
		body.Set("features", mivalue.Array())
		return a.writeResult(req.HasID, req.ID, "^done", body)

	default:
		return a.writeResult(req.HasID, req.ID, "^done", mivalue.Value{})
	}
}

func (a *Adapter) idPrefix(hasID bool, id int) string {
	if hasID {
		return strconv.Itoa(id)
	}
	return ""
}

func (a *Adapter) writeResult(hasID bool, id int, tag string, body mivalue.Value) error {
	prefix := a.idPrefix(hasID, id) + tag
	if body.Kind() == mivalue.KindObject && len(body.Keys()) > 0 {
		return a.writeRaw(mivalue.ToMessage(prefix, body))
	}
	return a.writeRaw(prefix + "\n")
}

func (a *Adapter) writeError(hasID bool, id int, msg string) error {
	return a.writeRaw(fmt.Sprintf("%s^error,msg=\"%s\"\n", a.idPrefix(hasID, id), cstring.Escape(msg)))
}

func (a *Adapter) writePrompt() error {
	return a.writeRaw("(gdb)\n")
}

func (a *Adapter) writeRaw(s string) error {
	return a.tr.Send([]byte(s))
}
