package speechseg

// frameRing keeps the most recent frames up to a fixed capacity.
type frameRing struct {
	buf   []Frame
	start int
	count int
}

func newFrameRing(capacity int) *frameRing {
	return &frameRing{buf: make([]Frame, capacity)}
}

// push appends f, evicting the oldest frame when full. A zero-capacity ring
// keeps nothing.
func (r *frameRing) push(f Frame) {
	n := len(r.buf)
	if n == 0 {
		return
	}
	if r.count < n {
		r.buf[(r.start+r.count)%n] = f
		r.count++
		return
	}
	r.buf[r.start] = f
	r.start = (r.start + 1) % n
}

// drainInto appends the buffered frames oldest-first to dst and empties the ring.
func (r *frameRing) drainInto(dst []Frame) []Frame {
	n := len(r.buf)
	for i := 0; i < r.count; i++ {
		dst = append(dst, r.buf[(r.start+i)%n])
	}
	r.clear()
	return dst
}

func (r *frameRing) size() int { return r.count }

func (r *frameRing) clear() {
	for i := range r.buf {
		r.buf[i] = nil
	}
	r.start = 0
	r.count = 0
}
