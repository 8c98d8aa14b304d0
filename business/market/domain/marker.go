package domain

import "time"

// Marker is the consistency token carried by snapshots and diffs. Sequence
// venues fill First and Last with the update-id range of the message
// (First == Last for single-id venues). Timestamp venues store the event time
// in milliseconds in both fields.
type Marker struct {
	First int64
	Last  int64
}

// SequenceMarker builds a marker from an update-id range.
func SequenceMarker(first, last int64) Marker {
	return Marker{First: first, Last: last}
}

// TimestampMarker builds a marker from an event time.
func TimestampMarker(t time.Time) Marker {
	ms := t.UnixMilli()
	return Marker{First: ms, Last: ms}
}

// IsZero reports whether no marker was recorded.
func (m Marker) IsZero() bool {
	return m.First == 0 && m.Last == 0
}

// Less orders markers for buffer replay.
func (m Marker) Less(o Marker) bool {
	if m.First != o.First {
		return m.First < o.First
	}
	return m.Last < o.Last
}

// Verdict is the outcome of checking a diff against the current marker.
type Verdict int

const (
	// Apply means the diff is the next expected update.
	Apply Verdict = iota
	// Stale means the diff is already covered and is dropped.
	Stale
	// Gap means updates were lost and the book must be resynced.
	Gap
)

func (v Verdict) String() string {
	switch v {
	case Apply:
		return "apply"
	case Stale:
		return "stale"
	default:
		return "gap"
	}
}

// MarkerPolicy decides how a diff relates to the last applied marker.
// bridged is false until the first diff after a snapshot has been applied.
type MarkerPolicy interface {
	Check(current Marker, bridged bool, diff Marker) Verdict
	Name() string
}

// SequencePolicy is for venues with contiguous update ids. The first diff after
// a snapshot must straddle snapshot+1; every later diff must start exactly at
// previous last + 1.
type SequencePolicy struct{}

func (SequencePolicy) Name() string { return "sequence" }

func (SequencePolicy) Check(current Marker, bridged bool, diff Marker) Verdict {
	if diff.Last <= current.Last {
		return Stale
	}
	if !bridged {
		if diff.First <= current.Last+1 {
			return Apply
		}
		return Gap
	}
	if diff.First == current.Last+1 {
		return Apply
	}
	return Gap
}

// TimestampPolicy is for venues that stamp every update with an event time.
// Strict venues guarantee increasing times, so a non-increasing time after
// bridging is a gap. Non-strict venues are last-write-wins: older updates are
// dropped and equal times are applied.
type TimestampPolicy struct {
	Strict bool
}

func (p TimestampPolicy) Name() string {
	if p.Strict {
		return "timestamp_strict"
	}
	return "last_write_wins"
}

func (p TimestampPolicy) Check(current Marker, bridged bool, diff Marker) Verdict {
	if !p.Strict {
		if diff.Last < current.Last {
			return Stale
		}
		return Apply
	}
	if diff.Last > current.Last {
		return Apply
	}
	if !bridged {
		return Stale
	}
	return Gap
}

// LinkedMarker builds a marker from a venue that links each update to its
// predecessor. Snapshots carry a negative prev.
func LinkedMarker(prev, seq int64) Marker {
	return Marker{First: prev, Last: seq}
}

// LinkedPolicy is for venues where every update names the sequence it
// follows (First) and its own sequence (Last). An update applies only when
// First equals the last applied sequence. Updates with First == Last carry
// no book change and are stale when they match the current sequence. A
// First above Last is a sequence reset and always a gap.
//
// A snapshot without sequence ids (Last == 0) is unanchored: the first
// update is applied as the bridge and links are checked from then on.
type LinkedPolicy struct{}

func (LinkedPolicy) Name() string { return "linked_sequence" }

func (LinkedPolicy) Check(current Marker, bridged bool, diff Marker) Verdict {
	if diff.First > diff.Last {
		return Gap
	}
	if diff.Last < current.Last {
		return Stale
	}
	if diff.First == diff.Last {
		if current.Last == 0 || diff.Last == current.Last {
			return Stale
		}
		return Gap
	}
	if current.Last == 0 && !bridged {
		return Apply
	}
	if diff.Last == current.Last {
		return Stale
	}
	if diff.First == current.Last {
		return Apply
	}
	return Gap
}
