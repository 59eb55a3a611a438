package ws

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

// Send and Close never touch the wire, so these run without a connection.

func TestSendBuffersUntilFull(t *testing.T) {
	c := NewClient(nil, zerolog.Nop())

	for i := 0; i < sendBuffer; i++ {
		if err := c.Send([]byte(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	// Nothing draining the buffer: the next send must fail fast, not block.
	if err := c.Send([]byte("overflow")); !errors.Is(err, ErrSlowConsumer) {
		t.Errorf("expected ErrSlowConsumer, got %v", err)
	}
}

func TestSendAfterClose(t *testing.T) {
	c := NewClient(nil, zerolog.Nop())
	c.Close()

	if err := c.Send([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := NewClient(nil, zerolog.Nop())
	c.Close()
	c.Close()
}

func TestSendPreservesOrder(t *testing.T) {
	c := NewClient(nil, zerolog.Nop())

	if err := c.Send([]byte("m1")); err != nil {
		t.Fatal(err)
	}
	if err := c.Send([]byte("m2")); err != nil {
		t.Fatal(err)
	}

	if got := string(<-c.send); got != "m1" {
		t.Errorf("first = %q", got)
	}
	if got := string(<-c.send); got != "m2" {
		t.Errorf("second = %q", got)
	}
}
