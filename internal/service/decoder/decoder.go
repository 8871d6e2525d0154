// Package decoder turns raw camera frames into RGBA bitmaps and back into JPEG.
package decoder

import (
	"fmt"
	"strings"

	"chitcam/internal/apperr"
	"chitcam/internal/config"
	"chitcam/internal/model"

	"gocv.io/x/gocv"
)

// ChromaOrder selects how the U and V planes are interleaved when a planar
// YUV frame is packed into a semi-planar buffer.
type ChromaOrder int

const (
	ChromaVU ChromaOrder = iota // NV21: V then U
	ChromaUV                    // NV12: U then V
)

func (o ChromaOrder) String() string {
	if o == ChromaUV {
		return "UV"
	}
	return "VU"
}

// ParseChromaOrder accepts "VU"/"NV21" and "UV"/"NV12".
func ParseChromaOrder(s string) (ChromaOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "VU", "NV21":
		return ChromaVU, nil
	case "UV", "NV12":
		return ChromaUV, nil
	default:
		return ChromaVU, fmt.Errorf("unknown chroma order %q", s)
	}
}

// DefaultIntermediateQuality is the JPEG quality used for the YUV round trip.
const DefaultIntermediateQuality = 100

// Decoder is stateless and safe for concurrent use.
type Decoder struct {
	chroma              ChromaOrder
	intermediateQuality int
}

// New creates a Decoder. A quality outside 1..100 falls back to the default.
func New(chroma ChromaOrder, intermediateQuality int) *Decoder {
	if intermediateQuality < 1 || intermediateQuality > 100 {
		intermediateQuality = DefaultIntermediateQuality
	}
	return &Decoder{chroma: chroma, intermediateQuality: intermediateQuality}
}

// NewFromConfig creates a Decoder from CHROMA_ORDER and INTERMEDIATE_JPEG_QUALITY.
func NewFromConfig(cfg *config.Config) (*Decoder, error) {
	order, err := ParseChromaOrder(cfg.ChromaOrder)
	if err != nil {
		return nil, err
	}
	return New(order, cfg.IntermediateJPEGQuality), nil
}

// ChromaOrder returns the configured interleave order.
func (d *Decoder) ChromaOrder() ChromaOrder {
	return d.chroma
}

// Decode converts a frame into a canonical RGBA bitmap.
func (d *Decoder) Decode(f *model.Frame) (*model.Bitmap, error) {
	if f == nil {
		return nil, apperr.Errorf(apperr.InvalidArgument, "decoder.Decode", "nil frame")
	}

	switch f.Encoding {
	case model.EncodingJPEG:
		return DecodeJPEG(f.Bytes())
	case model.EncodingYUV420:
		return d.decodeYUV(f)
	default:
		return nil, apperr.Errorf(apperr.UnsupportedEncoding, "decoder.Decode", "encoding %s", f.Encoding)
	}
}

func (d *Decoder) decodeYUV(f *model.Frame) (*model.Bitmap, error) {
	buf, err := packSemiPlanar(f, d.chroma)
	if err != nil {
		return nil, apperr.New(apperr.UnsupportedEncoding, "decoder.Decode", err)
	}

	yuv, err := gocv.NewMatFromBytes(f.Height*3/2, f.Width, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return nil, apperr.New(apperr.UnsupportedEncoding, "decoder.Decode", err)
	}
	defer yuv.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	if err := gocv.CvtColor(yuv, &bgr, gocv.ColorYUVToBGRNV21); err != nil {
		return nil, apperr.New(apperr.UnsupportedEncoding, "decoder.Decode", err)
	}

	// Same route as the platform: compress the semi-planar image to JPEG and decode it.
	jpeg, err := encodeMat(bgr, d.intermediateQuality)
	if err != nil {
		return nil, apperr.New(apperr.UnsupportedEncoding, "decoder.Decode", err)
	}
	return DecodeJPEG(jpeg)
}

// DecodeJPEG decodes a JPEG stream into a bitmap.
func DecodeJPEG(data []byte) (*model.Bitmap, error) {
	if len(data) == 0 {
		return nil, apperr.Errorf(apperr.UnsupportedEncoding, "decoder.DecodeJPEG", "empty image")
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, apperr.New(apperr.UnsupportedEncoding, "decoder.DecodeJPEG", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, apperr.Errorf(apperr.UnsupportedEncoding, "decoder.DecodeJPEG", "corrupt or unsupported image data")
	}

	return bitmapFromBGR(mat)
}

// EncodeJPEG compresses a bitmap. Alpha is discarded.
func EncodeJPEG(b *model.Bitmap, quality int) ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	pix := make([]byte, len(b.Pix))
	copy(pix, b.Pix)
	rgba, err := gocv.NewMatFromBytes(b.Height, b.Width, gocv.MatTypeCV8UC4, pix)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer rgba.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	if err := gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return encodeMat(bgr, quality)
}

func encodeMat(mat gocv.Mat, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = 95
	}
	buf, err := gocv.IMEncodeWithParams(".jpg", mat, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

func bitmapFromBGR(mat gocv.Mat) (*model.Bitmap, error) {
	rgba := gocv.NewMat()
	defer rgba.Close()
	if err := gocv.CvtColor(mat, &rgba, gocv.ColorBGRToRGBA); err != nil {
		return nil, apperr.New(apperr.UnsupportedEncoding, "decoder.DecodeJPEG", err)
	}

	b := &model.Bitmap{Width: rgba.Cols(), Height: rgba.Rows(), Pix: rgba.ToBytes()}
	if err := b.Validate(); err != nil {
		return nil, apperr.New(apperr.UnsupportedEncoding, "decoder.DecodeJPEG", err)
	}
	return b, nil
}

// Encode compresses a bitmap at the given quality.
func (d *Decoder) Encode(b *model.Bitmap, quality int) ([]byte, error) {
	return EncodeJPEG(b, quality)
}
