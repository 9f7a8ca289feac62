// Package protocol implements the framed command channel used to configure
// and query the sensing core: VLQ-encoded integers inside CRC16-checked frames.
package protocol

// Version is the command channel revision reported in the dictionary.
const Version = "1"

// Frame layout: len | seq | payload... | crc_hi | crc_lo | sync
const (
	FrameHeaderSize  = 2
	FrameTrailerSize = 3
	FrameMin         = FrameHeaderSize + FrameTrailerSize
	FrameMax         = 64

	FramePosLen = 0
	FramePosSeq = 1

	FrameSync = 0x7E
	FrameDest = 0x10

	FrameSeqMask = 0x0F

	// PayloadMax is the largest payload that fits a single frame.
	PayloadMax = FrameMax - FrameMin

	// ScratchSize bounds a batch of encoded frames held before a flush.
	ScratchSize = 512
)
