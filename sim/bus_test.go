package sim

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReadsStayInRange(t *testing.T) {
	b := New(Options{Seed: 7, ValueMax: 1023, Step: 400})
	for i := 0; i < 1000; i++ {
		v, err := b.ReadAnalog(context.Background(), uint8(i%4))
		if err != nil {
			t.Fatal(err)
		}
		if v > 1023 {
			t.Fatalf("read %d above value max", v)
		}
	}
	if b.Reads() != 1000 {
		t.Errorf("Reads = %d", b.Reads())
	}
}

func TestSameSeedSameSequence(t *testing.T) {
	a, b := New(Options{Seed: 3}), New(Options{Seed: 3})
	for i := 0; i < 50; i++ {
		va, _ := a.ReadAnalog(context.Background(), 1)
		vb, _ := b.ReadAnalog(context.Background(), 1)
		if va != vb {
			t.Fatalf("read %d differs: %d vs %d", i, va, vb)
		}
	}
}

func TestFailPins(t *testing.T) {
	b := New(Options{FailPins: []uint8{2}})
	if _, err := b.ReadAnalog(context.Background(), 2); !errors.Is(err, ErrNoAck) {
		t.Errorf("pin 2 err = %v, want ErrNoAck", err)
	}
	b.SetFail(2, false)
	if _, err := b.ReadAnalog(context.Background(), 2); err != nil {
		t.Errorf("pin 2 after SetFail(false): %v", err)
	}
}

func TestButtonsStayWithinMask(t *testing.T) {
	mask := uint32(1<<5 | 1<<9)
	b := New(Options{Seed: 11, Press: 1})
	for i := 0; i < 100; i++ {
		bits, err := b.ReadDigitalBulk(context.Background(), mask)
		if err != nil {
			t.Fatal(err)
		}
		if bits&^mask != 0 {
			t.Fatalf("bits %#b outside mask %#b", bits, mask)
		}
	}
}

func TestLatencyHonoursContext(t *testing.T) {
	b := New(Options{Latency: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := b.ReadAnalog(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestButtonsStartReleased(t *testing.T) {
	mask := uint32(1<<5 | 1<<9 | 1<<13 | 1<<14)
	b := New(Options{Press: 1e-9})
	bits, err := b.ReadDigitalBulk(context.Background(), mask)
	if err != nil {
		t.Fatal(err)
	}
	if bits != mask {
		t.Errorf("first read = %#b, want every line high %#b", bits, mask)
	}
}
