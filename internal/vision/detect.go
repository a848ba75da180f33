package vision

import (
	"fmt"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// Detection is one face found by the detector, in source image pixels.
type Detection struct {
	BBox       [4]float32 // x1, y1, x2, y2
	Confidence float32
}

func (d Detection) Area() float32 {
	w := d.BBox[2] - d.BBox[0]
	h := d.BBox[3] - d.BBox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// retinaHead names the det_10g output tensors for one feature map stride.
type retinaHead struct {
	stride int
	scores string
	boxes  string
}

var retinaHeads = []retinaHead{
	{stride: 8, scores: "448", boxes: "451"},
	{stride: 16, scores: "471", boxes: "474"},
	{stride: 32, scores: "494", boxes: "497"},
}

const (
	detInputSize     = 640
	anchorsPerCell   = 2
	nmsIoUThreshold  = 0.4
	detectorInput    = "input.1"
	boxValuesPerCell = 4
)

// Detector runs RetinaFace (det_10g) face detection.
type Detector struct {
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	scores    []*ort.Tensor[float32]
	boxes     []*ort.Tensor[float32]
	threshold float32
}

func NewDetector(modelPath string, threshold float32) (*Detector, error) {
	d := &Detector{threshold: threshold}

	var err error
	d.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, detInputSize, detInputSize))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	var names []string
	var outputs []ort.Value
	for _, h := range retinaHeads {
		anchors := int64((detInputSize / h.stride) * (detInputSize / h.stride) * anchorsPerCell)
		s, err := ort.NewEmptyTensor[float32](ort.NewShape(anchors, 1))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("create score tensor (stride %d): %w", h.stride, err)
		}
		d.scores = append(d.scores, s)
		b, err := ort.NewEmptyTensor[float32](ort.NewShape(anchors, boxValuesPerCell))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("create box tensor (stride %d): %w", h.stride, err)
		}
		d.boxes = append(d.boxes, b)
		names = append(names, h.scores, h.boxes)
		outputs = append(outputs, s, b)
	}

	d.session, err = ort.NewAdvancedSession(modelPath,
		[]string{detectorInput}, names,
		[]ort.Value{d.input}, outputs, nil)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create detector session: %w", err)
	}
	return d, nil
}

// Detect runs detection on a CHW tensor built by toCHW and returns
// NMS-filtered faces scaled to origW x origH.
func (d *Detector) Detect(chw []float32, origW, origH int) ([]Detection, error) {
	copy(d.input.GetData(), chw)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	scaleW := float32(origW) / detInputSize
	scaleH := float32(origH) / detInputSize

	var dets []Detection
	for i, h := range retinaHeads {
		dets = append(dets, decodeHead(h.stride, d.scores[i].GetData(), d.boxes[i].GetData(),
			d.threshold, scaleW, scaleH, float32(origW), float32(origH))...)
	}
	return nms(dets, nmsIoUThreshold), nil
}

// decodeHead turns anchor-relative distances at one stride into boxes.
func decodeHead(stride int, scores, boxes []float32, threshold, scaleW, scaleH, maxW, maxH float32) []Detection {
	var out []Detection
	cells := detInputSize / stride
	st := float32(stride)
	for idx, score := range scores {
		if score < threshold {
			continue
		}
		cell := idx / anchorsPerCell
		ax := float32(cell%cells) * st
		ay := float32(cell/cells) * st
		b := boxes[idx*boxValuesPerCell : idx*boxValuesPerCell+boxValuesPerCell]
		out = append(out, Detection{
			BBox: [4]float32{
				clampF((ax-b[0]*st)*scaleW, 0, maxW),
				clampF((ay-b[1]*st)*scaleH, 0, maxH),
				clampF((ax+b[2]*st)*scaleW, 0, maxW),
				clampF((ay+b[3]*st)*scaleH, 0, maxH),
			},
			Confidence: score,
		})
	}
	return out
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.input != nil {
		d.input.Destroy()
	}
	for _, t := range append(d.scores, d.boxes...) {
		t.Destroy()
	}
}

// nms keeps the highest-confidence box of each overlapping cluster.
func nms(dets []Detection, iouThreshold float32) []Detection {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})
	var kept []Detection
	for _, d := range dets {
		overlaps := false
		for _, k := range kept {
			if iou(d.BBox, k.BBox) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, d)
		}
	}
	return kept
}

func iou(a, b [4]float32) float32 {
	x1 := max(a[0], b[0])
	y1 := max(a[1], b[1])
	x2 := min(a[2], b[2])
	y2 := min(a[3], b[3])

	inter := max(0, x2-x1) * max(0, y2-y1)
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// primary returns the largest face, which is the one indexed for an image.
// Equal areas go to the higher confidence.
func primary(dets []Detection) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}
	best := dets[0]
	for _, d := range dets[1:] {
		if d.Area() > best.Area() || (d.Area() == best.Area() && d.Confidence > best.Confidence) {
			best = d
		}
	}
	return best, true
}

func clampF(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
