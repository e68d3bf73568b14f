package lazyload

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-lazyload/logger"
)

// logBuffer is an io.Writer safe for the reporter goroutine and the test to share.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// entries decodes every JSON line written so far.
func (b *logBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	data := append([]byte(nil), b.buf.Bytes()...)
	b.mu.Unlock()

	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

// messages returns the message field of every line.
func (b *logBuffer) messages(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, e := range b.entries(t) {
		if msg, ok := e["message"].(string); ok {
			out = append(out, msg)
		}
	}
	return out
}

func newTestLogger() (logger.Logger, *logBuffer) {
	buf := &logBuffer{}
	return logger.NewWithWriter("debug", false, buf), buf
}
