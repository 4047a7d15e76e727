package gemini

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OussamaSEBROU/the-senctuary/pkg/genai"

	"github.com/stretchr/testify/assert"
)

// trackedBody records whether the pump released the response body.
type trackedBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackedBody) Close() error {
	b.closed.Store(true)
	return nil
}

func sseChunk(text string) string {
	return `data: {"candidates":[{"content":{"parts":[{"text":"` + text + `"}]}}]}` + "\n\n"
}

func TestPumpSSEDeliversFragmentsInOrder(t *testing.T) {
	body := &trackedBody{Reader: strings.NewReader(sseChunk("Hello ") + sseChunk("world"))}
	fragments := make(chan genai.Fragment)
	p := NewProvider("key", "")

	go p.pumpSSE(context.Background(), body, fragments)

	var texts []string
	for f := range fragments {
		assert.NoError(t, f.Err)
		texts = append(texts, f.Text)
	}
	assert.Equal(t, []string{"Hello ", "world"}, texts)
	assert.True(t, body.closed.Load())
}

func TestPumpSSEExitsWhenConsumerAbandons(t *testing.T) {
	body := &trackedBody{Reader: strings.NewReader(sseChunk("first") + sseChunk("second") + sseChunk("third"))}
	ctx, cancel := context.WithCancel(context.Background())
	fragments := make(chan genai.Fragment)
	p := NewProvider("key", "")

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.pumpSSE(ctx, body, fragments)
	}()

	first := <-fragments
	assert.Equal(t, "first", first.Text)

	// Nobody reads the channel again; the pump must still unblock, exit
	// and release the body.
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump goroutine did not exit after the consumer went away")
	}
	assert.True(t, body.closed.Load())
}
