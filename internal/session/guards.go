package session

import (
	"fmt"
	"strconv"
	"strings"
)

// opState guards one long-running operation kind. "in flight" and "last
// completed signature" are tracked separately: the boolean blocks a second
// concurrent request, the signature memo suppresses an identical repeat,
// and the sequence number lets a late arrival for a superseded request be
// discarded instead of merged.
type opState struct {
	inFlight bool
	seq      uint64
	lastSig  string
}

var errDuplicateRequest = fmt.Errorf("duplicate request suppressed")

// beginOp claims the operation. It fails when a request of the same kind is
// already pending and reports errDuplicateRequest when the signature
// matches the last completed call.
func (s *Session) beginOp(op, sig string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.ops[op]
	if !ok {
		st = &opState{}
		s.ops[op] = st
	}
	if st.inFlight {
		return 0, fmt.Errorf("operation %s already in flight", op)
	}
	if sig != "" && sig == st.lastSig {
		return 0, errDuplicateRequest
	}
	st.inFlight = true
	st.seq++
	return st.seq, nil
}

// finishOp releases the operation. The loading flag resets on success and
// failure alike; the signature is remembered only for successful calls.
// The return value is false when this request was superseded by a newer
// sequence number, in which case its result must be discarded.
func (s *Session) finishOp(op string, seq uint64, sig string, success bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ops[op]
	if st == nil {
		return false
	}
	if seq == st.seq {
		st.inFlight = false
	}
	if !success {
		return seq == st.seq
	}
	if seq != st.seq {
		return false
	}
	st.lastSig = sig
	return true
}

// idSignature builds a stable key for a request from its sorted id list.
func idSignature(op string, ids []int) string {
	var b strings.Builder
	b.WriteString(op)
	for _, id := range ids {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(id))
	}
	return b.String()
}
