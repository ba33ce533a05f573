package service

import (
	"strconv"
	"sync"
	"time"
)

// idSequence hands out millisecond timestamps as decimal strings, bumping
// the value when two calls land in the same millisecond.
type idSequence struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func (s *idSequence) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.now().UnixMilli()
	if v <= s.last {
		v = s.last + 1
	}
	s.last = v
	return strconv.FormatInt(v, 10)
}
