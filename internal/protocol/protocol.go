// Package protocol holds the protocol-independent Request/Reply data
// model (spec §3) that both adapters translate their wire formats into
// and out of, and that the session engine dispatches on.
//
// Events are not duplicated here: the normalized debugger.Event from
// package debugger already is spec §3's protocol-independent Event
// record, so both adapters and the session engine share that single
// type instead of a second copy of the same tags.
package protocol

// Kind tags the variant held by a Request.
type Kind int

const (
	KindInitialize Kind = iota
	KindLaunch
	KindAttach
	KindRun
	KindContinue
	KindDetach
	KindTerminate
	KindClose
	KindCwdSet
	KindConfigurationDone
	KindSetArgs
	KindSetTarget
	KindListFeatures
	KindShow
	KindInfoGdbMiCommand
	KindUnknown
)

// LaunchPayload carries launch's arguments. AutoRun is true when the
// adapter wants execution to start immediately after Launch succeeds
// (always true for DAP; MI's "exec-run" folds Launch+Run into one
// request and also sets it true).
//
// DAP's launch supplies the executable, arguments and working
// directory inline in one request, unlike MI's file-exec-and-symbols /
// exec-arguments / environment-cd, which set them through the session
// engine's target configuration ahead of a separate exec-run. HasExecutable
// distinguishes the two shapes: when set, dispatchLaunch uses these
// fields directly (and writes them through to the target configuration
// for consistency) instead of reading a previously-configured target.
type LaunchPayload struct {
	AutoRun bool

	HasExecutable bool
	Executable    string
	Args          []string
	HasCwd        bool
	Cwd           string
}

// AttachPayload carries attach's arguments.
type AttachPayload struct {
	PID int
}

// ContinuePayload carries continue's arguments.
type ContinuePayload struct {
	ThreadID    int
	HasThreadID bool
}

// ClosePayload carries close's disposition arguments, spec §4.5's
// "terminate_if_launched" policy flag plus DAP's explicit override.
type ClosePayload struct {
	TerminateIfLaunched bool
	ExplicitTerminate   bool
	HasExplicitTerminate bool
}

// SetArgsPayload carries exec-arguments / SetArgs's argument list.
type SetArgsPayload struct {
	Args []string
}

// SetTargetPayload carries target exec / SetTarget's executable path.
type SetTargetPayload struct {
	Path string
}

// CwdSetPayload carries environment-cd / CwdSet's directory.
type CwdSetPayload struct {
	Dir string
}

// ShowPayload carries MI's "show" command argument, if any.
type ShowPayload struct {
	Arg    string
	HasArg bool
}

// InfoGdbMiCommandPayload carries MI's info-gdb-mi-command argument.
type InfoGdbMiCommandPayload struct {
	Name string
}

// UnknownPayload carries the raw, unrecognized command text.
type UnknownPayload struct {
	Raw string
}

// Request is the tagged record from spec §3: kind plus per-kind
// payload and a correlation id (HasID is false when the client did not
// supply one).
type Request struct {
	Kind Kind
	ID   int
	HasID bool

	Launch           LaunchPayload
	Attach           AttachPayload
	Continue         ContinuePayload
	Close            ClosePayload
	SetArgs          SetArgsPayload
	SetTarget        SetTargetPayload
	CwdSet           CwdSetPayload
	Show             ShowPayload
	InfoGdbMiCommand InfoGdbMiCommandPayload
	Unknown          UnknownPayload
}

// Reply is Success{Data} or Error{ErrorMessage}, correlated to the
// most recent Request by id when available (spec §3). Data is an
// optional adapter-specific payload; neither adapter reads it, and both
// render their own reply bodies from the Request kind.
type Reply struct {
	Success      bool
	Running      bool
	ErrorMessage string
	Data         interface{}
	HasData      bool
}

// Ok builds a successful Reply with no details.
func Ok() Reply { return Reply{Success: true} }

// OkRunning builds a successful "running" Reply (MI's ^running case).
func OkRunning() Reply { return Reply{Success: true, Running: true} }

// OkWithData builds a successful Reply carrying adapter-specific data.
func OkWithData(data interface{}) Reply {
	return Reply{Success: true, Data: data, HasData: true}
}

// Errorf builds an Error Reply.
func Errorf(msg string) Reply {
	return Reply{Success: false, ErrorMessage: msg}
}
