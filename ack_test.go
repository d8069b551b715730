package mqtt

import "testing"

func TestPendingAcksAllocIDNeverReusesInFlightID(t *testing.T) {
	p := newPendingAcks()

	id1, _, err := p.allocID()
	if err != nil {
		t.Fatalf("allocID: %v", err)
	}
	id2, _, err := p.allocID()
	if err != nil {
		t.Fatalf("allocID: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("allocID returned the same id twice while both in flight: %d", id1)
	}

	// Once id1's ack completes, its slot is freed and its id may be reused.
	p.complete(id1, ackResult{})
	id3, _, err := p.allocID()
	if err != nil {
		t.Fatalf("allocID: %v", err)
	}
	if id3 == id2 {
		t.Fatalf("allocID reused id2 while it was still in flight")
	}
}

func TestPendingAcksCompleteUnknownIDIsIgnored(t *testing.T) {
	p := newPendingAcks()
	// No waiter registered for id 99; complete must not panic or block.
	p.complete(99, ackResult{})
}

func TestPendingAcksFailAllDeliversToEveryWaiter(t *testing.T) {
	p := newPendingAcks()
	_, ch1, _ := p.allocID()
	_, ch2, _ := p.allocID()

	p.failAll(ErrTransportClosed)

	res1 := <-ch1
	res2 := <-ch2
	if res1.err != ErrTransportClosed || res2.err != ErrTransportClosed {
		t.Fatalf("failAll results = %v, %v, want both ErrTransportClosed", res1.err, res2.err)
	}
}

func TestPendingAcksReserveUsesFixedID(t *testing.T) {
	p := newPendingAcks()
	ch := p.reserve(0)
	p.complete(0, ackResult{pkt: "connack"})

	res := <-ch
	if res.pkt != "connack" {
		t.Fatalf("reserve(0) result = %v, want %q", res.pkt, "connack")
	}
}
