package trace

import (
	"strings"
	"testing"
)

func TestWriterFlush(t *testing.T) {
	t.Run("an empty writer marshals just a header row", func(t *testing.T) {
		w := NewWriter()
		var sb strings.Builder
		if err := w.Flush(&sb); err != nil {
			t.Fatalf("Flush: %v", err)
		}
		lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
		if len(lines) != 1 {
			t.Fatalf("expected only a header row, got %d lines: %q", len(lines), sb.String())
		}
	})

	t.Run("added records round-trip through the CSV header and body", func(t *testing.T) {
		w := NewWriter()
		w.Add(Record{
			VirtualTime:       1.5,
			LinkAddress:       2,
			PacketIdent:       7,
			PacketLength:      128,
			QueueingDelay:     0.001,
			TransmissionDelay: 0.002,
			PropagationDelay:  0.003,
			Dropped:           false,
		})
		w.Add(Record{
			VirtualTime:  2.5,
			LinkAddress:  2,
			PacketIdent:  8,
			PacketLength: 64,
			Dropped:      true,
		})
		if got := w.Len(); got != 2 {
			t.Fatalf("Len() = %d, want 2", got)
		}

		var sb strings.Builder
		if err := w.Flush(&sb); err != nil {
			t.Fatalf("Flush: %v", err)
		}
		lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected a header row plus two records, got %d lines: %q", len(lines), sb.String())
		}
		if !strings.Contains(lines[0], "virtual_time") || !strings.Contains(lines[0], "dropped") {
			t.Fatalf("header row missing expected columns: %q", lines[0])
		}
		if !strings.Contains(lines[2], "true") {
			t.Fatalf("second record should report dropped=true: %q", lines[2])
		}
	})
}
