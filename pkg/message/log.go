package message

import "time"

// Log is an ordered, append-only sequence of records. Appending returns a new
// Log; earlier values keep observing the sequence they were handed.
type Log struct {
	records []Record
}

func (l Log) AppendOutbound(p Payload, at time.Time) Log {
	return l.append(NewRecord(p, Outbound, at))
}

func (l Log) AppendInbound(p Payload, at time.Time) Log {
	return l.append(NewRecord(p, Inbound, at))
}

func (l Log) append(r Record) Log {
	next := make([]Record, len(l.records), len(l.records)+1)
	copy(next, l.records)
	return Log{records: append(next, r)}
}

func (l Log) Len() int { return len(l.records) }

// At returns the i-th record in arrival order.
func (l Log) At(i int) Record { return l.records[i] }

// Last returns the most recent record, if any.
func (l Log) Last() (Record, bool) {
	if len(l.records) == 0 {
		return Record{}, false
	}
	return l.records[len(l.records)-1], true
}

// Records returns a copy of the records in arrival order.
func (l Log) Records() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}
