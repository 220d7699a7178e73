package transport

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReadLine(t *testing.T) {
	r := strings.NewReader("exec-run\nexec-continue\n")
	tr := NewLine(r, &bytes.Buffer{})

	line, err := tr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "exec-run\n", string(line))

	line, err = tr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "exec-continue\n", string(line))
}

func TestLineSendWritesAndFlushes(t *testing.T) {
	var buf bytes.Buffer
	tr := NewLine(strings.NewReader(""), &buf)
	require.NoError(t, tr.Send([]byte("(gdb)\n")))
	assert.Equal(t, "(gdb)\n", buf.String())
}

func TestHTTPSendMessageFramesWithContentLength(t *testing.T) {
	var buf bytes.Buffer
	tr := NewHTTP(strings.NewReader(""), &buf)
	body := []byte(`{"seq":1}`)
	require.NoError(t, tr.SendMessage(body))
	assert.Equal(t, "Content-Length: 9\r\n\r\n{\"seq\":1}", buf.String())
}

func TestHTTPReadMessageHappyPath(t *testing.T) {
	in := "Content-Length: 12\r\n\r\n{\"seq\":1}xxx"
	tr := NewHTTP(strings.NewReader(in), &bytes.Buffer{})
	body, err := tr.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"seq":1}xxx`, string(body))
}

func TestHTTPReadMessageMissingHeader(t *testing.T) {
	in := "\r\nbody"
	tr := NewHTTP(strings.NewReader(in), &bytes.Buffer{})
	_, err := tr.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, KindMissingHeader, err.(*Error).Kind)
}

func TestHTTPReadMessageMissingDelimiter(t *testing.T) {
	in := "Content-Length 13\r\n\r\nabc"
	tr := NewHTTP(strings.NewReader(in), &bytes.Buffer{})
	_, err := tr.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, KindMissingDelimiter, err.(*Error).Kind)
}

func TestHTTPReadMessageNonIntegerLength(t *testing.T) {
	in := "Content-Length: abc\r\n\r\nabc"
	tr := NewHTTP(strings.NewReader(in), &bytes.Buffer{})
	_, err := tr.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, KindNonIntegerLength, err.(*Error).Kind)
}

func TestHTTPReadMessageLengthTooShort(t *testing.T) {
	in := "Content-Length: 1\r\n\r\nx"
	tr := NewHTTP(strings.NewReader(in), &bytes.Buffer{})
	_, err := tr.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, KindLengthTooShort, err.(*Error).Kind)
}

func TestHTTPReadMessageLengthTooLarge(t *testing.T) {
	in := "Content-Length: 999999999999\r\n\r\n"
	tr := NewHTTP(strings.NewReader(in), &bytes.Buffer{})
	_, err := tr.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, KindLengthTooLarge, err.(*Error).Kind)
}

func TestHTTPReadMessageUnrecognizedHeaderRejected(t *testing.T) {
	in := "X-Custom: 1\r\n\r\nbody"
	tr := NewHTTP(strings.NewReader(in), &bytes.Buffer{})
	_, err := tr.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, KindMissingHeader, err.(*Error).Kind)
}
