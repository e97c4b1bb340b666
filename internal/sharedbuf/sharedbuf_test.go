package sharedbuf

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestCapacityFor(t *testing.T) {
	if got := CapacityFor(0); got != MinCapacity {
		t.Errorf("CapacityFor(0) = %d, want %d", got, MinCapacity)
	}
	big := 100 * 1024
	if got := CapacityFor(big); got != 2*big+4*1024 {
		t.Errorf("CapacityFor(%d) = %d, want %d", big, got, 2*big+4*1024)
	}
}

func TestWriteThenWait(t *testing.T) {
	b := New(CapacityFor(5))
	b.Write(StatusOK, []byte("hello"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	status, data, err := b.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != StatusOK {
		t.Errorf("status = %d, want StatusOK", status)
	}
	if string(data) != "hello" {
		t.Errorf("data = %q, want %q", data, "hello")
	}
}

func TestWaitBeforeWriteBlocksUntilSignalled(t *testing.T) {
	b := New(CapacityFor(5))
	resultCh := make(chan Status, 1)
	go func() {
		status, _, err := b.Wait(context.Background())
		if err != nil {
			t.Errorf("Wait: %v", err)
			return
		}
		resultCh <- status
	}()

	select {
	case <-resultCh:
		t.Fatal("Wait returned before Write was called")
	case <-time.After(20 * time.Millisecond):
	}

	b.Write(StatusOK, []byte("later"))
	select {
	case status := <-resultCh:
		if status != StatusOK {
			t.Errorf("status = %d, want StatusOK", status)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait never unblocked after Write")
	}
}

func TestWaitContextCancelled(t *testing.T) {
	b := New(CapacityFor(5))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := b.Wait(ctx)
	if err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestWriteOverflowProducesSyntheticError(t *testing.T) {
	b := New(MinCapacity)
	huge := strings.Repeat("x", MinCapacity+1)
	b.Write(StatusOK, []byte(huge))

	status, data, err := b.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != StatusError {
		t.Errorf("status = %d, want StatusError after overflow", status)
	}
	if !strings.Contains(string(data), "exceeded buffer capacity") {
		t.Errorf("data = %q, want overflow message", data)
	}
}

func TestCapacityReflectsMinimum(t *testing.T) {
	b := New(10)
	if b.Capacity() != MinCapacity {
		t.Errorf("Capacity() = %d, want MinCapacity when requested below minimum", b.Capacity())
	}
}
