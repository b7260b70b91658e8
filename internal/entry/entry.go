// Package entry stands in for the specification's "ledger-entry decoder"
// collaborator: "binary deserialization of concatenated shred payloads
// into structured transactions ... treated as a pure function supplied by
// an external library." This package is that function's call boundary —
// a minimal length-prefixed record decoder, not a claim to implement the
// real ledger entry wire format, which the specification explicitly
// leaves external.
package entry

import (
	"encoding/binary"
	"fmt"
)

// Entry is one decoded record: an opaque transaction-shaped payload plus
// the number of "transactions" the decoder reports it as containing, the
// two fields downstream consumers of a deshredded segment actually need.
type Entry struct {
	NumTransactions uint64
	Data            []byte
}

// Decode parses a concatenated shred payload into a sequence of Entry
// records. The wire format is a repeated (num_transactions u64 LE,
// len u32 LE, data) record stream, terminated by end of input.
func Decode(payload []byte) ([]Entry, error) {
	var entries []Entry
	for len(payload) > 0 {
		if len(payload) < 12 {
			return nil, fmt.Errorf("entry: truncated record header (%d bytes left)", len(payload))
		}
		numTx := binary.LittleEndian.Uint64(payload[0:8])
		dataLen := binary.LittleEndian.Uint32(payload[8:12])
		payload = payload[12:]

		if uint64(len(payload)) < uint64(dataLen) {
			return nil, fmt.Errorf("entry: record claims %d bytes, %d remain", dataLen, len(payload))
		}
		data := make([]byte, dataLen)
		copy(data, payload[:dataLen])
		payload = payload[dataLen:]

		entries = append(entries, Entry{NumTransactions: numTx, Data: data})
	}
	return entries, nil
}
