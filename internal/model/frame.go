package model

import "time"

// Encoding tags the pixel layout of a raw Frame.
type Encoding int

const (
	EncodingUnknown Encoding = iota
	EncodingRGB              // interleaved 8-bit RGB, one plane
	EncodingYUV420           // planar Y, U, V with independent strides
	EncodingJPEG             // compressed JPEG stream, one plane
)

func (e Encoding) String() string {
	switch e {
	case EncodingRGB:
		return "rgb"
	case EncodingYUV420:
		return "yuv420"
	case EncodingJPEG:
		return "jpeg"
	default:
		return "unknown"
	}
}

// Plane is one byte plane of a frame.
type Plane struct {
	Data        []byte
	RowStride   int
	PixelStride int
}

// Frame is one unit of raw camera output.
//
// Frames are immutable once produced: the producer must not touch Planes
// after handing the frame over, consumers must not modify them.
type Frame struct {
	Width     int
	Height    int
	Encoding  Encoding
	Planes    []Plane
	Timestamp time.Time

	// Seq is assigned by the live session, monotonically increasing.
	Seq uint64
}

// Bytes returns the first plane's data. For JPEG frames this is the whole stream.
func (f *Frame) Bytes() []byte {
	if f == nil || len(f.Planes) == 0 {
		return nil
	}
	return f.Planes[0].Data
}

// NewJPEGFrame wraps an encoded JPEG stream.
func NewJPEGFrame(width, height int, data []byte) *Frame {
	return &Frame{
		Width:     width,
		Height:    height,
		Encoding:  EncodingJPEG,
		Planes:    []Plane{{Data: data, RowStride: 0, PixelStride: 1}},
		Timestamp: time.Now(),
	}
}
