// Package xztest builds small xz streams byte by byte, for tests that need
// control over the block headers no encoder gives.
package xztest

import (
	"encoding/binary"
	"hash/crc32"
)

// Block is one LZMA2 block stored as uncompressed chunks.
type Block struct {
	Dict byte // LZMA2 dictionary size property
	Data []byte
}

var magic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// Stream returns a single xz stream without checks holding blocks.
func Stream(blocks ...Block) []byte {
	flags := []byte{0, 0}
	out := append([]byte{}, magic...)
	out = append(out, flags...)
	out = binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(flags))

	index := []byte{0}
	index = binary.AppendUvarint(index, uint64(len(blocks)))
	for _, b := range blocks {
		start := len(out)
		out = append(out, blockHeader(b.Dict)...)
		for i, data := 0, b.Data; len(data) > 0; i++ {
			n := min(len(data), 1<<16)
			// 1 resets the dictionary, 2 keeps it.
			ctl := byte(2)
			if i == 0 {
				ctl = 1
			}
			out = append(out, ctl, byte((n-1)>>8), byte(n-1))
			out = append(out, data[:n]...)
			data = data[n:]
		}
		out = append(out, 0)
		unpadded := len(out) - start
		out = pad(out, unpadded)
		index = binary.AppendUvarint(index, uint64(unpadded))
		index = binary.AppendUvarint(index, uint64(len(b.Data)))
	}
	index = pad(index, len(index))
	index = binary.LittleEndian.AppendUint32(index, crc32.ChecksumIEEE(index))
	out = append(out, index...)

	footer := binary.LittleEndian.AppendUint32(nil, uint32(len(index)/4-1))
	footer = append(footer, flags...)
	out = binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(footer))
	out = append(out, footer...)
	return append(out, 'Y', 'Z')
}

// blockHeader has one LZMA2 filter and no size fields.
func blockHeader(dict byte) []byte {
	h := []byte{0, 0, 0x21, 1, dict}
	h = pad(h, len(h))
	h[0] = byte((len(h)+4)/4 - 1)
	return binary.LittleEndian.AppendUint32(h, crc32.ChecksumIEEE(h))
}

func pad(b []byte, n int) []byte {
	for ; n%4 != 0; n++ {
		b = append(b, 0)
	}
	return b
}
