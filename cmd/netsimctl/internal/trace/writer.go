// Package trace writes per-packet delay records to CSV using gocsv,
// the same marshaling approach csvtool uses for its archive records.
package trace

import (
	"io"

	"github.com/gocarina/gocsv"
)

// Record is one packet-level observation emitted during a scenario
// run: which link carried it, and the delay breakdown the link
// computed for it.
type Record struct {
	VirtualTime      float64 `csv:"virtual_time"`
	LinkAddress      int     `csv:"link_address"`
	PacketIdent      int     `csv:"packet_ident"`
	PacketLength     int     `csv:"packet_length"`
	QueueingDelay    float64 `csv:"queueing_delay_s"`
	TransmissionDelay float64 `csv:"transmission_delay_s"`
	PropagationDelay float64 `csv:"propagation_delay_s"`
	Dropped          bool    `csv:"dropped"`
}

// Writer accumulates Records and marshals them to CSV on Flush.
type Writer struct {
	records []Record
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Add appends r to the set of records pending a Flush.
func (w *Writer) Add(r Record) {
	w.records = append(w.records, r)
}

// Len reports how many records are pending.
func (w *Writer) Len() int {
	return len(w.records)
}

// Flush marshals every pending record as CSV to out.
func (w *Writer) Flush(out io.Writer) error {
	return gocsv.Marshal(w.records, out)
}
