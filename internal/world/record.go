package world

// TurnRecord is the ordered list of mutations applied in one turn. It is the
// delta broadcast to clients; a discarded turn's record holds only the
// mutations applied at the turn boundary.
type TurnRecord struct {
	Turn      int        `json:"turn"`
	Mutations []Mutation `json:"mutations"`
}

// Ledger retains the current and immediately preceding turn records. Older
// records are dropped; the engine does not persist transcripts.
type Ledger struct {
	current  *TurnRecord
	previous *TurnRecord
}

// Record stores a completed turn, shifting the previous one out.
func (l *Ledger) Record(rec *TurnRecord) {
	l.previous = l.current
	l.current = rec
}

// Current returns the most recently recorded turn, or nil.
func (l *Ledger) Current() *TurnRecord {
	return l.current
}

// Previous returns the record before the current one, or nil.
func (l *Ledger) Previous() *TurnRecord {
	return l.previous
}
