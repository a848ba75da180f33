package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// normalization is the per-channel (pixel - mean) / std applied before
// inference.
type normalization struct {
	mean, std float32
}

var (
	detectorNorm = normalization{mean: 127.5, std: 128.0}
	embedderNorm = normalization{mean: 127.5, std: 127.5}
)

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// resize scales img to exactly w x h with bilinear filtering.
func resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// toCHW resizes img and lays it out as normalized planar RGB.
func toCHW(img image.Image, w, h int, n normalization) []float32 {
	rgba := resize(img, w, h)
	plane := w * h
	out := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := rgba.PixOffset(x, y)
			i := y*w + x
			out[i] = (float32(rgba.Pix[off]) - n.mean) / n.std
			out[plane+i] = (float32(rgba.Pix[off+1]) - n.mean) / n.std
			out[2*plane+i] = (float32(rgba.Pix[off+2]) - n.mean) / n.std
		}
	}
	return out
}

// cropFace cuts the bounding box out of img with 10% padding on each side,
// clamped to the image. It returns nil for an empty box.
func cropFace(img image.Image, bbox [4]float32) image.Image {
	b := img.Bounds()
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]
	if w <= 0 || h <= 0 {
		return nil
	}
	padW, padH := w*0.1, h*0.1
	r := image.Rect(
		int(bbox[0]-padW), int(bbox[1]-padH),
		int(bbox[2]+padW), int(bbox[3]+padH),
	).Add(b.Min).Intersect(b)
	if r.Empty() {
		return nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(crop, image.Point{}, img, r, draw.Src, nil)
	return crop
}
