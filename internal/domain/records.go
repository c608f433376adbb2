package domain

// RecordList is the ordered list of Mint, Burn or Swap ids of a transaction.
// The last element is the one a pending correlation step operates on.
type RecordList []string

// Len returns the number of ids.
func (l RecordList) Len() int { return len(l) }

// Last returns the most recent id.
func (l RecordList) Last() (string, bool) {
	if len(l) == 0 {
		return "", false
	}
	return l[len(l)-1], true
}

// Append returns the list with id added at the end.
func (l RecordList) Append(id string) RecordList {
	return append(l, id)
}

// ReplaceLast returns the list with its last element set to id.
// On an empty list id is appended.
func (l RecordList) ReplaceLast(id string) RecordList {
	if len(l) == 0 {
		return RecordList{id}
	}
	out := l.Clone()
	out[len(out)-1] = id
	return out
}

// Pop returns the list without its last element.
func (l RecordList) Pop() RecordList {
	if len(l) == 0 {
		return l
	}
	return l[:len(l)-1]
}

// NextID returns the id the next record of this list receives.
func (l RecordList) NextID(txID string) string {
	return RecordID(txID, len(l))
}

// Clone returns an independent copy.
func (l RecordList) Clone() RecordList {
	if l == nil {
		return nil
	}
	return append(RecordList(nil), l...)
}
