package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

type ratio struct {
	keep, of uint64
}

// ratioSampler lets keep out of every `of` events through; a zero ratio lets everything through.
type ratioSampler struct {
	ratio atomic.Pointer[ratio]
	seen  atomic.Uint64
}

func newRatioSampler(keep, of int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(keep, of)
	return s
}

// Set replaces the ratio and restarts the count.
func (s *ratioSampler) Set(keep, of int) {
	r := &ratio{}
	if keep > 0 && of > 0 {
		r.keep, r.of = uint64(min(keep, of)), uint64(of)
	}
	s.ratio.Store(r)
	s.seen.Store(0)
}

// Allow reports whether the next event passes.
func (s *ratioSampler) Allow() bool {
	r := s.ratio.Load()
	if r == nil || r.of == 0 {
		return true
	}
	n := s.seen.Add(1) - 1
	return n%r.of < r.keep
}

// parseRatioSpec reads "1/50" or "50" (one in fifty); anything else disables sampling.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if num, den, ok := strings.Cut(spec, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 == nil && err2 == nil {
			return n, d
		}
		return 0, 0
	}
	if v, err := strconv.Atoi(spec); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}
