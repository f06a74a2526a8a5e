package decompress

type scanState uint8

const (
	scanStream scanState = iota
	scanBlockStart
	scanBlockHeader
	scanControl
	scanChunkHeader
	scanData
	scanPadding
	scanCheck
	scanDone
)

// xzScan walks the bytes of an xz stream in the order they are read and
// keeps track of where the next block header starts. It only knows about
// LZMA2 chunk framing; once it sees something else it stops following.
type xzScan struct {
	state scanState
	need  int64 // bytes left in the current field
	block int64 // bytes of the current block up to its padding
	check int64
	ctl   byte
	hdr   [5]byte
	hn    int
}

func (s *xzScan) reset() {
	*s = xzScan{state: scanStream, need: xzHeaderLen}
}

// atBlock reports whether the next byte is a block header size or the
// index indicator.
func (s *xzScan) atBlock() bool {
	return s.state == scanBlockStart
}

func (s *xzScan) feed(b []byte) {
	for len(b) > 0 && s.state != scanDone {
		if s.state == scanBlockStart {
			if b[0] == 0 {
				s.state = scanDone
				return
			}
			s.block = 0
			s.state, s.need = scanBlockHeader, (int64(b[0])+1)*4
		}
		k := int(min(s.need, int64(len(b))))
		switch s.state {
		case scanStream:
			// The check type is the low nibble of the second flags byte.
			if off := xzHeaderLen - s.need; off <= 7 && 7 < off+int64(k) {
				s.check = xzCheckSize(b[7-off])
			}
		case scanControl:
			s.ctl = b[0]
		case scanChunkHeader:
			s.hn += copy(s.hdr[s.hn:], b[:k])
		}
		switch s.state {
		case scanBlockHeader, scanControl, scanChunkHeader, scanData:
			s.block += int64(k)
		}
		s.need -= int64(k)
		b = b[k:]
		if s.need == 0 {
			s.next()
		}
	}
}

// next moves on once the current field has been read in full.
func (s *xzScan) next() {
	switch s.state {
	case scanStream:
		s.state = scanBlockStart
	case scanBlockHeader, scanData:
		s.state, s.need = scanControl, 1
	case scanControl:
		s.hn = 0
		switch c := s.ctl; {
		case c == 0:
			s.state, s.need = scanPadding, (4-s.block%4)%4
		case c == 1 || c == 2:
			s.state, s.need = scanChunkHeader, 2
		case c >= 0xC0:
			s.state, s.need = scanChunkHeader, 5
		case c >= 0x80:
			s.state, s.need = scanChunkHeader, 4
		default:
			s.state = scanDone
		}
	case scanChunkHeader:
		size := int64(s.hdr[0])<<8 | int64(s.hdr[1])
		if s.ctl >= 0x80 {
			size = int64(s.hdr[2])<<8 | int64(s.hdr[3])
		}
		s.state, s.need = scanData, size+1
	case scanPadding:
		s.state, s.need = scanCheck, s.check
	case scanCheck:
		s.state = scanBlockStart
	}
	if s.need == 0 && s.state != scanBlockStart && s.state != scanDone {
		s.next()
	}
}

// xzCheckSize is the size of the check field for a stream flags byte.
func xzCheckSize(flags byte) int64 {
	t := flags & 0x0F
	if t == 0 {
		return 0
	}
	return 4 << ((t - 1) / 3)
}
