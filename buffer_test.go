package netsim

import (
	"bytes"
	"testing"
)

func TestSendBufferPointers(t *testing.T) {
	t.Run("base <= next <= last holds through Put/Get/Slide", func(t *testing.T) {
		b := NewSendBuffer()
		b.Put([]byte("hello world"))
		if b.BaseSeq() != 0 || b.NextSeq() != 0 || b.LastSeq() != 11 {
			t.Fatalf("got base=%d next=%d last=%d", b.BaseSeq(), b.NextSeq(), b.LastSeq())
		}

		data, seq := b.Get(5)
		if string(data) != "hello" || seq != 0 {
			t.Fatalf("got %q at %d", data, seq)
		}
		if b.NextSeq() != 5 {
			t.Fatalf("got NextSeq %d, want 5", b.NextSeq())
		}

		acked := b.Slide(3)
		if acked != 3 || b.BaseSeq() != 3 {
			t.Fatalf("got acked=%d base=%d", acked, b.BaseSeq())
		}
		if b.BaseSeq() > b.NextSeq() || b.NextSeq() > b.LastSeq() {
			t.Fatalf("invariant violated: base=%d next=%d last=%d", b.BaseSeq(), b.NextSeq(), b.LastSeq())
		}
	})

	t.Run("Get never returns past LastSeq", func(t *testing.T) {
		b := NewSendBuffer()
		b.Put([]byte("abc"))
		data, _ := b.Get(100)
		if string(data) != "abc" {
			t.Fatalf("got %q", data)
		}
		if b.NextSeq() != b.LastSeq() {
			t.Fatalf("got next=%d last=%d", b.NextSeq(), b.LastSeq())
		}
	})

	t.Run("Slide pulls a lagging NextSeq forward", func(t *testing.T) {
		b := NewSendBuffer()
		b.Put([]byte("0123456789"))
		b.Get(2) // next = 2
		b.Slide(5)
		if b.NextSeq() != 5 {
			t.Fatalf("got NextSeq %d, want 5", b.NextSeq())
		}
	})

	t.Run("Resend with reset rewinds NextSeq go-back-N style", func(t *testing.T) {
		b := NewSendBuffer()
		b.Put([]byte("0123456789"))
		b.Get(10)
		data, seq := b.Resend(4, true)
		if string(data) != "0123" || seq != 0 {
			t.Fatalf("got %q at %d", data, seq)
		}
		if b.NextSeq() != 4 {
			t.Fatalf("got NextSeq %d, want 4", b.NextSeq())
		}
	})

	t.Run("Available and Outstanding track the three pointers", func(t *testing.T) {
		b := NewSendBuffer()
		b.Put([]byte("0123456789"))
		b.Get(4)
		if b.Available() != 6 {
			t.Fatalf("got Available %d, want 6", b.Available())
		}
		if b.Outstanding() != 4 {
			t.Fatalf("got Outstanding %d, want 4", b.Outstanding())
		}
	})
}

func TestReceiveBufferInOrder(t *testing.T) {
	t.Run("single in-order Put is immediately retrievable", func(t *testing.T) {
		b := NewReceiveBuffer()
		b.Put([]byte("hello"), 0)
		data, seq := b.Get()
		if string(data) != "hello" || seq != 0 {
			t.Fatalf("got %q at %d", data, seq)
		}
		if b.BaseSeq() != 5 {
			t.Fatalf("got BaseSeq %d, want 5", b.BaseSeq())
		}
	})
}

func TestReceiveBufferOutOfOrder(t *testing.T) {
	t.Run("out-of-order chunk withheld until the gap fills", func(t *testing.T) {
		b := NewReceiveBuffer()
		b.Put([]byte("world"), 5)
		data, _ := b.Get()
		if data != nil {
			t.Fatalf("expected nothing deliverable yet, got %q", data)
		}
		b.Put([]byte("hello"), 0)
		data, seq := b.Get()
		if string(data) != "helloworld" || seq != 0 {
			t.Fatalf("got %q at %d", data, seq)
		}
	})
}

func TestReceiveBufferOverlap(t *testing.T) {
	t.Run("overlapping retransmission is trimmed, not duplicated", func(t *testing.T) {
		b := NewReceiveBuffer()
		b.Put([]byte("hello"), 0)
		b.Put([]byte("llo world"), 2) // overlaps bytes [2,5)
		data, _ := b.Get()
		if string(data) != "hello world" {
			t.Fatalf("got %q", data)
		}
	})

	t.Run("a longer chunk at the same sequence replaces a shorter one", func(t *testing.T) {
		b := NewReceiveBuffer()
		b.Put([]byte("he"), 0)
		b.Put([]byte("hello"), 0)
		data, _ := b.Get()
		if string(data) != "hello" {
			t.Fatalf("got %q", data)
		}
	})

	t.Run("a shorter chunk at the same sequence does not replace a longer one", func(t *testing.T) {
		b := NewReceiveBuffer()
		b.Put([]byte("hello"), 0)
		b.Put([]byte("he"), 0)
		data, _ := b.Get()
		if string(data) != "hello" {
			t.Fatalf("got %q", data)
		}
	})

	t.Run("duplicate retransmission below BaseSeq is ignored", func(t *testing.T) {
		b := NewReceiveBuffer()
		b.Put([]byte("hello"), 0)
		b.Get()
		b.Put([]byte("hello"), 0)
		data, _ := b.Get()
		if data != nil {
			t.Fatalf("expected no re-delivery of already-consumed bytes, got %q", data)
		}
	})
}

func TestReceiveBufferGetRanges(t *testing.T) {
	t.Run("reports merged disjoint coverage of buffered-but-undelivered chunks", func(t *testing.T) {
		b := NewReceiveBuffer()
		b.Put([]byte("abc"), 10)
		b.Put([]byte("xyz"), 20)
		ranges := b.GetRanges()
		if len(ranges) != 2 {
			t.Fatalf("got %+v", ranges)
		}
		if ranges[0] != (Range{10, 13}) || ranges[1] != (Range{20, 23}) {
			t.Fatalf("got %+v", ranges)
		}
	})
}

func TestChunkTrim(t *testing.T) {
	t.Run("trims the overlapping prefix against a preceding chunk", func(t *testing.T) {
		c := &Chunk{Data: []byte("llo"), Sequence: 2}
		c.trim(0, 5) // predecessor covers [0,5)
		if !bytes.Equal(c.Data, nil) {
			t.Fatalf("got %q, want fully consumed", c.Data)
		}
		if c.Sequence != 5 {
			t.Fatalf("got Sequence %d, want 5", c.Sequence)
		}
	})

	t.Run("no-op when there is no overlap", func(t *testing.T) {
		c := &Chunk{Data: []byte("world"), Sequence: 10}
		c.trim(0, 5)
		if string(c.Data) != "world" || c.Sequence != 10 {
			t.Fatalf("got %q at %d", c.Data, c.Sequence)
		}
	})
}
