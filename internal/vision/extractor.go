package vision

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facegroup/internal/observability"
)

// Face is the signature of the primary face in an image.
type Face struct {
	Embedding  []float32
	Confidence float32
	BBox       [4]float32
}

// Extractor finds the primary face in an image and computes its signature.
// ONNX sessions share their tensors, so calls are serialized.
type Extractor struct {
	mu       sync.Mutex
	detector *Detector
	embedder *Embedder
}

// NewExtractor loads det_10g.onnx and w600k_r50.onnx from modelsDir. The
// ONNX runtime environment must already be initialized (see InitRuntime).
func NewExtractor(modelsDir string, detectionThreshold float64) (*Extractor, error) {
	detPath := filepath.Join(modelsDir, "det_10g.onnx")
	embPath := filepath.Join(modelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(detectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &Extractor{detector: det, embedder: emb}, nil
}

// Extract returns the primary face of the encoded image. found is false when
// no face clears the detection threshold.
func (x *Extractor) Extract(imageData []byte) (face Face, found bool, err error) {
	img, err := decodeImage(imageData)
	if err != nil {
		return Face{}, false, err
	}
	b := img.Bounds()

	x.mu.Lock()
	defer x.mu.Unlock()

	start := time.Now()
	dets, err := x.detector.Detect(toCHW(img, detInputSize, detInputSize, detectorNorm), b.Dx(), b.Dy())
	if err != nil {
		return Face{}, false, fmt.Errorf("detect: %w", err)
	}
	observability.StageDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	best, ok := primary(dets)
	if !ok {
		return Face{}, false, nil
	}
	crop := cropFace(img, best.BBox)
	if crop == nil {
		return Face{}, false, nil
	}

	start = time.Now()
	embedding, err := x.embedder.Extract(toCHW(crop, embedInputSize, embedInputSize, embedderNorm))
	if err != nil {
		return Face{}, false, fmt.Errorf("embed: %w", err)
	}
	observability.StageDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

	return Face{Embedding: embedding, Confidence: best.Confidence, BBox: best.BBox}, true, nil
}

func (x *Extractor) Close() {
	x.detector.Close()
	x.embedder.Close()
}

// InitRuntime loads the ONNX Runtime shared library. Pair with
// DestroyRuntime on shutdown.
func InitRuntime() error {
	ort.SetSharedLibraryPath(onnxLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx runtime: %w", err)
	}
	return nil
}

func DestroyRuntime() {
	if err := ort.DestroyEnvironment(); err != nil {
		slog.Warn("destroy onnx runtime", "error", err)
	}
}

func onnxLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
