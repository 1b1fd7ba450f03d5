package protocol

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	t.Run("object with event", func(t *testing.T) {
		frame, err := DecodeFrame([]byte(`  {"event":"OverlayCycle","action":"next"}` + "\n"))
		require.NoError(t, err)
		assert.Equal(t, EventOverlayCycle, frame.Event())
		assert.False(t, frame.IsAck())
		assert.Equal(t, `{"event":"OverlayCycle","action":"next"}`, string(frame.Raw))
	})

	t.Run("ack", func(t *testing.T) {
		frame, err := DecodeFrame([]byte(`{"status":"ok"}`))
		require.NoError(t, err)
		assert.True(t, frame.IsAck())
		assert.True(t, frame.Ack().OK())
		assert.NoError(t, frame.Ack().Err())
	})

	t.Run("object without event", func(t *testing.T) {
		frame, err := DecodeFrame([]byte(`{"id":"m1"}`))
		require.NoError(t, err)
		assert.Equal(t, "", frame.Event())
	})

	for name, line := range map[string]string{
		"empty":     "   \n",
		"not json":  "hello",
		"array":     `[1,2]`,
		"null":      `null`,
		"truncated": `{"event":`,
	} {
		t.Run("rejects "+name, func(t *testing.T) {
			_, err := DecodeFrame([]byte(line))
			assert.Error(t, err)
		})
	}
}

func TestAckError(t *testing.T) {
	err := Ack{Status: StatusError, Error: "bad payload"}.Err()
	require.Error(t, err)
	assert.Equal(t, `broadcaster returned status "error": bad payload`, err.Error())

	err = Ack{Status: "busy"}.Err()
	assert.Equal(t, `broadcaster returned status "busy"`, err.Error())
}

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Request{CLI: "legacy_overlay", Payload: map[string]any{"id": "a"}}))
	assert.Equal(t, `{"cli":"legacy_overlay","payload":{"id":"a"}}`+"\n", buf.String())
}

// scripted is an io.ReadWriter whose reads come from a fixed script.
type scripted struct {
	io.Reader
	written bytes.Buffer
}

func (s *scripted) Write(p []byte) (int, error) {
	return s.written.Write(p)
}

func newScripted(lines ...string) *scripted {
	return &scripted{Reader: strings.NewReader(strings.Join(lines, "\n") + "\n")}
}

func TestExchange(t *testing.T) {
	req := Request{CLI: "legacy_overlay", Payload: map[string]any{"id": "x"}}

	t.Run("skips broadcasts until ack", func(t *testing.T) {
		rw := newScripted(`{"event":"LegacyOverlay"}`, `garbage`, `{"status":"ok"}`)
		var seen []string
		ack, err := Exchange(rw, req, 0, func(f Frame) { seen = append(seen, f.Event()) })
		require.NoError(t, err)
		assert.True(t, ack.OK())
		assert.Equal(t, []string{EventLegacyOverlay}, seen)
		assert.Contains(t, rw.written.String(), `"cli":"legacy_overlay"`)
	})

	t.Run("gives up after the read budget", func(t *testing.T) {
		lines := make([]string, 0, 11)
		for i := 0; i < 10; i++ {
			lines = append(lines, fmt.Sprintf(`{"event":"LegacyOverlay","n":%d}`, i))
		}
		lines = append(lines, `{"status":"ok"}`)

		_, err := Exchange(newScripted(lines...), req, 10, nil)
		assert.ErrorIs(t, err, ErrNoAck)
	})

	t.Run("ack on the last attempt", func(t *testing.T) {
		lines := make([]string, 0, 10)
		for i := 0; i < 9; i++ {
			lines = append(lines, `{"event":"LegacyOverlay"}`)
		}
		lines = append(lines, `{"status":"ok"}`)

		_, err := Exchange(newScripted(lines...), req, 10, nil)
		assert.NoError(t, err)
	})

	t.Run("eof before ack", func(t *testing.T) {
		rw := &scripted{Reader: strings.NewReader("")}
		_, err := Exchange(rw, req, 10, nil)
		assert.ErrorIs(t, err, ErrNoAck)
	})

	t.Run("error ack", func(t *testing.T) {
		_, err := Exchange(newScripted(`{"status":"error","error":"nope"}`), req, 10, nil)
		var ackErr *AckError
		require.ErrorAs(t, err, &ackErr)
		assert.Equal(t, "nope", ackErr.Message)
	})
}

func TestSend(t *testing.T) {
	b := newFakeBroadcaster(t, func(line []byte, w io.Writer) {
		fmt.Fprintln(w, `{"event":"LegacyOverlay"}`)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	addr, err := ResolveAddress("", b.portFile)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	broadcasts := 0
	ack, err := Send(ctx, addr, Request{CLI: "legacy_overlay"}, 0, func(Frame) { broadcasts++ })
	require.NoError(t, err)
	assert.True(t, ack.OK())
	assert.Equal(t, 1, broadcasts)
}

func TestPortFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(dir, "ok.json")
		require.NoError(t, WritePortFile(path, 4242))

		port, err := ReadPortFile(path)
		require.NoError(t, err)
		assert.Equal(t, 4242, port)

		addr, err := ResolveAddress("", path)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:4242", addr)
	})

	cases := map[string]string{
		"no port":      `{"host":"x"}`,
		"out of range": `{"port":70000}`,
		"zero":         `{"port":0}`,
		"not json":     `port=80`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := ReadPortFile(path)
			assert.ErrorIs(t, err, ErrPortFile)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadPortFile(filepath.Join(dir, "absent.json"))
		assert.ErrorIs(t, err, ErrPortFile)
	})
}
