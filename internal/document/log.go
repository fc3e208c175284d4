package document

// DefaultLogCapacity is the default number of committed transactions kept
// for catch-up queries.
const DefaultLogCapacity = 256

// commitLog keeps recent committed transactions in a ring buffer so a
// consumer that fell behind can request everything after a revision it
// already holds.
type commitLog struct {
	txns     []Txn
	head     int // index of the oldest entry
	count    int
	capacity int
}

func newCommitLog(capacity int) *commitLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &commitLog{
		txns:     make([]Txn, capacity),
		capacity: capacity,
	}
}

// record appends a committed transaction, evicting the oldest when full.
func (l *commitLog) record(txn Txn) {
	idx := (l.head + l.count) % l.capacity
	if l.count < l.capacity {
		l.count++
	} else {
		l.head = (l.head + 1) % l.capacity
	}
	l.txns[idx] = txn
}

// since returns clones of all transactions with a revision greater than
// rev, in commit order.
func (l *commitLog) since(rev uint64) []Txn {
	var result []Txn
	for i := 0; i < l.count; i++ {
		idx := (l.head + i) % l.capacity
		if l.txns[idx].Revision > rev {
			result = append(result, l.txns[idx].Clone())
		}
	}
	return result
}

// oldest returns the oldest logged revision, or 0 when empty. A consumer
// holding a revision older than this cannot catch up from the log alone.
func (l *commitLog) oldest() uint64 {
	if l.count == 0 {
		return 0
	}
	return l.txns[l.head].Revision
}

func (l *commitLog) len() int {
	return l.count
}
