package camera

import (
	"fmt"
	"image"
	"time"

	"chitcam/internal/model"

	"gocv.io/x/gocv"
)

// i420Frame converts src into a planar YUV 4:2:0 frame (three planes, chroma
// pixel stride 1) the way mobile analysis pipelines deliver it. code selects
// the source layout, e.g. gocv.ColorBGRToYUVI420. Odd dimensions are cropped
// to the nearest even size.
func i420Frame(src gocv.Mat, code gocv.ColorConversionCode) (*model.Frame, error) {
	w, h := src.Cols()&^1, src.Rows()&^1
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("frame %dx%d is too small for YUV 4:2:0", src.Cols(), src.Rows())
	}

	even := src.Region(image.Rect(0, 0, w, h))
	defer even.Close()

	yuv := gocv.NewMat()
	defer yuv.Close()
	if err := gocv.CvtColor(even, &yuv, code); err != nil {
		return nil, fmt.Errorf("convert frame to YUV: %w", err)
	}

	// I420 is one (h*3/2) x w buffer: Y, then U, then V.
	data := yuv.ToBytes()
	ySize, cSize := w*h, (w/2)*(h/2)
	if len(data) < ySize+2*cSize {
		return nil, fmt.Errorf("YUV buffer is %d bytes, expected %d", len(data), ySize+2*cSize)
	}

	return &model.Frame{
		Width:    w,
		Height:   h,
		Encoding: model.EncodingYUV420,
		Planes: []model.Plane{
			{Data: data[:ySize:ySize], RowStride: w, PixelStride: 1},
			{Data: data[ySize : ySize+cSize : ySize+cSize], RowStride: w / 2, PixelStride: 1},
			{Data: data[ySize+cSize : ySize+2*cSize], RowStride: w / 2, PixelStride: 1},
		},
		Timestamp: time.Now(),
	}, nil
}

// bitmapMat wraps a copy of b's pixels as an RGBA Mat. The caller closes it.
func bitmapMat(b *model.Bitmap) (gocv.Mat, error) {
	pix := make([]byte, len(b.Pix))
	copy(pix, b.Pix)
	return gocv.NewMatFromBytes(b.Height, b.Width, gocv.MatTypeCV8UC4, pix)
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
