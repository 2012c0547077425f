package teletext

import "github.com/zsiec/ttx/internal/hamming"

// tripletReader reads fields LSB-first from the 18-bit data words of a
// run of Hamming 24/18 triplets, as X/28 and M/29 packets lay them out.
type tripletReader struct {
	words  []int
	bad    uint64
	bitPos int
}

// newTripletReader decodes n triplets from p. Words that fail decoding
// read as zero bits and are remembered so clean can report them.
func newTripletReader(p []byte, n int) *tripletReader {
	r := &tripletReader{words: make([]int, n)}
	for i := 0; i < n; i++ {
		v := hamming.Unham24(p[i*3:])
		if v < 0 {
			r.bad |= 1 << i
			v = 0
		}
		r.words[i] = v
	}
	return r
}

// clean reports whether every word read or skipped so far decoded.
func (r *tripletReader) clean() bool {
	n := min((r.bitPos+17)/18, len(r.words))
	return r.bad&(1<<n-1) == 0
}

func (r *tripletReader) bitsLeft() int {
	return len(r.words)*18 - r.bitPos
}

func (r *tripletReader) readBit() int {
	if r.bitPos >= len(r.words)*18 {
		return 0
	}
	w := r.words[r.bitPos/18]
	b := (w >> (r.bitPos % 18)) & 1
	r.bitPos++
	return b
}

func (r *tripletReader) read(n int) int {
	var v int
	for i := 0; i < n; i++ {
		v |= r.readBit() << i
	}
	return v
}

func (r *tripletReader) skip(n int) {
	r.bitPos += n
}
