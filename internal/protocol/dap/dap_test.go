package dap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/dd86k/aliceserver/internal/protocol"
	"github.com/dd86k/aliceserver/internal/transport"
)

func newTestAdapter(input string) (*Adapter, *bytes.Buffer) {
	var out bytes.Buffer
	tr := transport.NewHTTP(strings.NewReader(input), &out)
	return New(tr, hclog.NewNullLogger()), &out
}

func frame(body string) string {
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

// decodeResponse reads only the first framed message from out, since a
// successful initialize reply is followed by a separate "initialized"
// event in the same buffer.
func decodeResponse(t *testing.T, out *bytes.Buffer) map[string]interface{} {
	t.Helper()
	raw := out.String()
	headerEnd := strings.Index(raw, "\r\n\r\n")
	require.GreaterOrEqual(t, headerEnd, 0)
	header := raw[:headerEnd]
	var length int
	_, err := fmt.Sscanf(header, "Content-Length: %d", &length)
	require.NoError(t, err)

	bodyStart := headerEnd + 4
	body := raw[bodyStart : bodyStart+length]
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &m))
	return m
}

// S1 — DAP initialize happy path.
func TestInitializeHappyPath(t *testing.T) {
	input := frame(`{"seq":1,"type":"request","command":"initialize","arguments":{"adapterId":"test"}}`)
	a, out := newTestAdapter(input)

	req, err := a.NextRequest()
	require.NoError(t, err)
	require.Equal(t, protocol.KindInitialize, req.Kind)
	require.Equal(t, 1, req.ID)

	require.NoError(t, a.SendReply(req, protocol.Ok()))

	resp := decodeResponse(t, out)
	require.Equal(t, float64(1), resp["request_seq"])
	require.Equal(t, true, resp["success"])
	require.Equal(t, "initialize", resp["command"])
	body, ok := resp["body"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, true, body["supportsConfigurationDoneRequest"])
	require.Equal(t, true, body["supportsTerminateRequest"])
	require.Equal(t, true, body["supportTerminateDebuggee"])
}

// S2 — DAP attach missing pid.
func TestAttachMissingPid(t *testing.T) {
	initInput := frame(`{"seq":1,"type":"request","command":"initialize","arguments":{}}`)
	attachInput := frame(`{"seq":2,"type":"request","command":"attach","arguments":{}}`)
	a, out := newTestAdapter(initInput + attachInput)

	req, err := a.NextRequest()
	require.NoError(t, err)
	require.NoError(t, a.SendReply(req, protocol.Ok()))
	out.Reset()

	_, err = a.NextRequest()
	require.Error(t, err) // the schema error was answered inline; no request follows

	resp := decodeResponse(t, out)
	require.Equal(t, false, resp["success"])
	require.Equal(t, float64(2), resp["request_seq"])
	errBody, ok := resp["body"].(map[string]interface{})
	require.True(t, ok)
	errDetail, ok := errBody["error"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, errDetail["format"], "pid")
}

// TestInitializeRecordsClientInfo confirms initialize parses and
// retains clientID/clientName/adapterID/locale, and defaults
// pathFormat to "path" when the client omits it.
func TestInitializeRecordsClientInfo(t *testing.T) {
	input := frame(`{"seq":1,"type":"request","command":"initialize","arguments":{
		"clientID":"vscode","clientName":"Visual Studio Code","adapterID":"test","locale":"en-US"
	}}`)
	a, _ := newTestAdapter(input)

	_, err := a.NextRequest()
	require.NoError(t, err)
	require.Equal(t, "vscode", a.clientID)
	require.Equal(t, "Visual Studio Code", a.clientName)
	require.Equal(t, "test", a.adapterID)
	require.Equal(t, "en-US", a.locale)
	require.Equal(t, "path", a.pathFormat)
}

func TestInitializeAcceptsUriPathFormat(t *testing.T) {
	input := frame(`{"seq":1,"type":"request","command":"initialize","arguments":{"pathFormat":"uri"}}`)
	a, _ := newTestAdapter(input)

	_, err := a.NextRequest()
	require.NoError(t, err)
	require.Equal(t, "uri", a.pathFormat)
}

func TestInitializeRejectsUnknownPathFormat(t *testing.T) {
	input := frame(`{"seq":1,"type":"request","command":"initialize","arguments":{"pathFormat":"bogus"}}`)
	a, out := newTestAdapter(input)

	_, err := a.NextRequest()
	require.Error(t, err) // answered inline; no request follows

	resp := decodeResponse(t, out)
	require.Equal(t, false, resp["success"])
	errBody, ok := resp["body"].(map[string]interface{})
	require.True(t, ok)
	errDetail, ok := errBody["error"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, errDetail["format"], "bogus")
}

// Disconnect must not default to terminate: the session engine decides
// terminate-vs-detach from whether the debuggee came from launch or
// attach, and only overrides that with an explicit terminateDebuggee.
func TestDisconnectDoesNotDefaultToTerminate(t *testing.T) {
	initInput := frame(`{"seq":1,"type":"request","command":"initialize","arguments":{}}`)
	disconnectInput := frame(`{"seq":2,"type":"request","command":"disconnect","arguments":{}}`)
	a, _ := newTestAdapter(initInput + disconnectInput)

	req, err := a.NextRequest()
	require.NoError(t, err)
	require.NoError(t, a.SendReply(req, protocol.Ok()))

	req, err = a.NextRequest()
	require.NoError(t, err)
	require.Equal(t, protocol.KindClose, req.Kind)
	require.False(t, req.Close.TerminateIfLaunched)
	require.False(t, req.Close.HasExplicitTerminate)
}

func TestDisconnectWithExplicitTerminateDebuggee(t *testing.T) {
	initInput := frame(`{"seq":1,"type":"request","command":"initialize","arguments":{}}`)
	disconnectInput := frame(`{"seq":2,"type":"request","command":"disconnect","arguments":{"terminateDebuggee":true}}`)
	a, _ := newTestAdapter(initInput + disconnectInput)

	req, err := a.NextRequest()
	require.NoError(t, err)
	require.NoError(t, a.SendReply(req, protocol.Ok()))

	req, err = a.NextRequest()
	require.NoError(t, err)
	require.True(t, req.Close.HasExplicitTerminate)
	require.True(t, req.Close.ExplicitTerminate)
}

func TestDisconnectWithExplicitFalseTerminateDebuggee(t *testing.T) {
	initInput := frame(`{"seq":1,"type":"request","command":"initialize","arguments":{}}`)
	disconnectInput := frame(`{"seq":2,"type":"request","command":"disconnect","arguments":{"terminateDebuggee":false}}`)
	a, _ := newTestAdapter(initInput + disconnectInput)

	req, err := a.NextRequest()
	require.NoError(t, err)
	require.NoError(t, a.SendReply(req, protocol.Ok()))

	req, err = a.NextRequest()
	require.NoError(t, err)
	require.True(t, req.Close.HasExplicitTerminate)
	require.False(t, req.Close.ExplicitTerminate)
}

func TestCommandBeforeInitializeIsRejected(t *testing.T) {
	input := frame(`{"seq":1,"type":"request","command":"launch","arguments":{"path":"/bin/true"}}`)
	a, out := newTestAdapter(input)

	_, err := a.NextRequest()
	require.Error(t, err) // no well-formed request follows; reader hits EOF after answering inline

	resp := decodeResponse(t, out)
	require.Equal(t, false, resp["success"])
}
