// Package tinycompress produces zlib streams small enough to build on a
// microcontroller. Data is emitted as stored DEFLATE blocks, so any zlib
// reader can inflate it without the firmware carrying a compressor.
package tinycompress

import (
	"hash/adler32"
)

const (
	zlibCMF = 0x78 // deflate, 32K window
	zlibFLG = 0x01 // fastest, FCHECK makes CMF<<8|FLG a multiple of 31

	// maxStored is the largest payload of one stored block.
	maxStored = 0xFFFF

	headerSize      = 2
	blockHeaderSize = 5
	trailerSize     = 4
)

// Size returns the encoded length of n input bytes.
func Size(n int) int {
	blocks := (n + maxStored - 1) / maxStored
	if blocks == 0 {
		blocks = 1
	}
	return headerSize + blocks*blockHeaderSize + n + trailerSize
}

// AppendZlib appends the zlib encoding of src to dst.
func AppendZlib(dst, src []byte) []byte {
	dst = append(dst, zlibCMF, zlibFLG)
	rest := src
	for {
		n := len(rest)
		final := byte(1)
		if n > maxStored {
			n = maxStored
			final = 0
		}
		dst = append(dst, final,
			byte(n), byte(n>>8),
			^byte(n), ^byte(n>>8))
		dst = append(dst, rest[:n]...)
		rest = rest[n:]
		if final == 1 {
			break
		}
	}

	sum := adler32.Checksum(src)
	return append(dst, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}
