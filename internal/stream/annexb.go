package stream

import (
	"bufio"
	"errors"
	"io"
)

var annexBStartCode = []byte{0x00, 0x00, 0x00, 0x01}

// maxAccessUnit bounds a single access unit; larger ones are flushed as is.
const maxAccessUnit = 1 << 20

const (
	nalSlice    = 1
	nalIDR      = 5
	nalSEI      = 6
	nalSPS      = 7
	nalPPS      = 8
	nalAUD      = 9
	nalTypeMask = 0x1f
)

// annexBReader splits an Annex-B H.264 byte stream into access units, each
// returned with 4-byte start codes in front of its NAL units.
type annexBReader struct {
	r       *bufio.Reader
	pending []byte // first NAL of the next access unit
}

func newAnnexBReader(r io.Reader) *annexBReader {
	return &annexBReader{r: bufio.NewReaderSize(r, 1<<20)}
}

// readAccessUnit returns the next complete access unit. A new unit starts at
// an AUD, SEI, SPS or PPS following a slice, or at a slice whose
// first_mb_in_slice is zero.
func (a *annexBReader) readAccessUnit() ([]byte, error) {
	var au []byte
	hasSlice := false
	for {
		nal := a.pending
		a.pending = nil
		if nal == nil {
			n, err := readNextAnnexBNAL(a.r)
			if err != nil {
				if errors.Is(err, io.EOF) && len(au) > 0 {
					return au, nil
				}
				return nil, err
			}
			nal = n
		}
		if len(nal) == 0 {
			continue
		}
		if hasSlice && startsAccessUnit(nal) {
			a.pending = nal
			return au, nil
		}
		if isSlice(nal) {
			hasSlice = true
		}
		au = append(au, annexBStartCode...)
		au = append(au, nal...)
		if len(au) > maxAccessUnit {
			return au, nil
		}
	}
}

func isSlice(nal []byte) bool {
	t := nal[0] & nalTypeMask
	return t == nalSlice || t == nalIDR
}

func startsAccessUnit(nal []byte) bool {
	switch nal[0] & nalTypeMask {
	case nalAUD, nalSEI, nalSPS, nalPPS:
		return true
	case nalSlice, nalIDR:
		// first_mb_in_slice is ue(v); a leading 1 bit encodes zero.
		return len(nal) > 1 && nal[1]&0x80 != 0
	}
	return false
}

// readNextAnnexBNAL returns the payload of the next NAL unit, without its
// start code or trailing zero bytes. The following start code is left in r.
func readNextAnnexBNAL(r *bufio.Reader) ([]byte, error) {
	zeros := 0
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == 0 {
			zeros++
			continue
		}
		if b == 1 && zeros >= 2 {
			break
		}
		zeros = 0
	}

	var nal []byte
	for {
		if next, err := r.Peek(3); err == nil && next[0] == 0 && next[1] == 0 && next[2] == 1 {
			return trimTrailingZeros(nal), nil
		}
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && len(nal) > 0 {
				return trimTrailingZeros(nal), nil
			}
			return nil, err
		}
		nal = append(nal, b)
	}
}

func trimTrailingZeros(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return b
}
