//go:build linux

package fusion

import (
	"testing"

	"github.com/behrlich/govio"
	"github.com/behrlich/govio/internal/govlog"
)

func TestProbeIsDeterministic(t *testing.T) {
	cfg := govio.DriverConfig{Capacity: 32, ThreadPoolLimit: 4}
	b1, err := Probe(cfg, govlog.Default())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	b2, err := Probe(cfg, govlog.Default())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if b1 != b2 {
		t.Fatalf("Probe() returned %v then %v for identical config", b1, b2)
	}
}

func TestSelectReturnsUsableProactor(t *testing.T) {
	cfg := govio.DriverConfig{Capacity: 32, ThreadPoolLimit: 4}
	p, err := Select(cfg, govlog.Default())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	defer p.Close()

	if err := p.Attach(0); err != nil {
		t.Fatalf("Attach() on selected backend error = %v", err)
	}
}

func TestUnsatisfiableOpFlagsFallBackToPoll(t *testing.T) {
	cfg := govio.DriverConfig{Capacity: 32, ThreadPoolLimit: 4, OpFlags: []uint8{0xff}}
	b, err := Probe(cfg, govlog.Default())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if b != BackendPoll {
		t.Fatalf("Probe() with a bogus required opcode = %v, want %v", b, BackendPoll)
	}
}
