package detector

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

func TestHandLandmarks_Features(t *testing.T) {
	t.Run("interleaves x and y in landmark order", func(t *testing.T) {
		var hand HandLandmarks
		for i := 0; i < NumLandmarks; i++ {
			hand.Points[i] = Point3D{
				X: float64(i) / 100.0,
				Y: 0.5 + float64(i)/100.0,
				Z: -1.0,
			}
		}

		features := hand.Features()

		if len(features) != FeatureDim {
			t.Fatalf("expected %d features, got %d", FeatureDim, len(features))
		}

		for i := 0; i < NumLandmarks; i++ {
			if features[2*i] != hand.Points[i].X {
				t.Errorf("feature[%d] = %f, want x%d = %f", 2*i, features[2*i], i, hand.Points[i].X)
			}
			if features[2*i+1] != hand.Points[i].Y {
				t.Errorf("feature[%d] = %f, want y%d = %f", 2*i+1, features[2*i+1], i, hand.Points[i].Y)
			}
		}
	})

	t.Run("ignores depth", func(t *testing.T) {
		a := OpenPalmLandmarks()
		b := OpenPalmLandmarks()
		for i := range b.Points {
			b.Points[i].Z += 10
		}

		fa, fb := a.Features(), b.Features()
		for i := range fa {
			if fa[i] != fb[i] {
				t.Fatalf("feature %d differs when only Z changed", i)
			}
		}
	})

	t.Run("feature dimension is twice the landmark count", func(t *testing.T) {
		if FeatureDim != 42 {
			t.Errorf("FeatureDim = %d, want 42", FeatureDim)
		}
	})
}

func TestHandConnections(t *testing.T) {
	if len(HandConnections) != 21 {
		t.Errorf("expected 21 connections, got %d", len(HandConnections))
	}

	seen := make(map[int]bool)
	for _, c := range HandConnections {
		if c.From < 0 || c.From >= NumLandmarks || c.To < 0 || c.To >= NumLandmarks {
			t.Errorf("connection %v references an invalid landmark", c)
		}
		seen[c.From] = true
		seen[c.To] = true
	}
	if len(seen) != NumLandmarks {
		t.Errorf("connections cover %d landmarks, want %d", len(seen), NumLandmarks)
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]HandLandmarks{FistLandmarks(), OpenPalmLandmarks()})

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
		if mock.Calls() != 1 {
			t.Errorf("expected 1 call, got %d", mock.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("Close marks detector closed", func(t *testing.T) {
		mock := NewMockDetector()

		if err := mock.Close(); err != nil {
			t.Errorf("expected Close to return nil, got %v", err)
		}
		if !mock.Closed() {
			t.Error("expected Closed() to be true")
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = DetectorFunc(nil)
		var _ Detector = (*Pool)(nil)
	})
}

func TestPresetLandmarks(t *testing.T) {
	t.Run("points lie inside the frame", func(t *testing.T) {
		for _, hand := range []HandLandmarks{FistLandmarks(), OpenPalmLandmarks()} {
			for i, p := range hand.Points {
				if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
					t.Errorf("landmark %d out of range: %+v", i, p)
				}
			}
		}
	})

	t.Run("open palm fingers are extended", func(t *testing.T) {
		palm := OpenPalmLandmarks()
		minExtension := 0.2

		for _, f := range [][2]int{{IndexMCP, IndexTip}, {MiddleMCP, MiddleTip}, {RingMCP, RingTip}, {PinkyMCP, PinkyTip}} {
			ext := palm.Points[f[0]].Y - palm.Points[f[1]].Y
			if ext < minExtension {
				t.Errorf("finger %d-%d not extended enough (extension: %f)", f[0], f[1], ext)
			}
		}
	})

	t.Run("fist fingers are curled", func(t *testing.T) {
		fist := FistLandmarks()

		for _, f := range [][2]int{{IndexMCP, IndexTip}, {MiddleMCP, MiddleTip}, {RingMCP, RingTip}, {PinkyMCP, PinkyTip}} {
			ext := fist.Points[f[0]].Y - fist.Points[f[1]].Y
			if ext > 0.15 {
				t.Errorf("finger %d-%d appears extended (extension: %f)", f[0], f[1], ext)
			}
		}
	})
}

func TestPool(t *testing.T) {
	t.Run("creates requested number of detectors", func(t *testing.T) {
		created := 0
		pool, err := NewPool(3, func() (Detector, error) {
			created++
			return NewMockDetector(), nil
		})
		if err != nil {
			t.Fatalf("NewPool() error = %v", err)
		}
		defer pool.Close()

		if created != 3 || pool.Size() != 3 {
			t.Errorf("created %d detectors, pool size %d, want 3", created, pool.Size())
		}
	})

	t.Run("closes created detectors on factory error", func(t *testing.T) {
		var mocks []*MockDetector
		_, err := NewPool(3, func() (Detector, error) {
			if len(mocks) == 2 {
				return nil, errors.New("no python")
			}
			m := NewMockDetector()
			mocks = append(mocks, m)
			return m, nil
		})
		if err == nil {
			t.Fatal("expected factory error")
		}
		for i, m := range mocks {
			if !m.Closed() {
				t.Errorf("detector %d was not closed", i)
			}
		}
	})

	t.Run("never runs one detector concurrently", func(t *testing.T) {
		var active, maxActive int32
		factory := func() (Detector, error) {
			var busy int32
			return DetectorFunc(func(frame *gocv.Mat) ([]HandLandmarks, error) {
				if !atomic.CompareAndSwapInt32(&busy, 0, 1) {
					return nil, errors.New("detector used concurrently")
				}
				defer atomic.StoreInt32(&busy, 0)

				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil, nil
			}), nil
		}

		pool, err := NewPool(2, factory)
		if err != nil {
			t.Fatalf("NewPool() error = %v", err)
		}
		defer pool.Close()

		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := pool.Detect(nil); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Error(err)
		}
		if maxActive > 2 {
			t.Errorf("max concurrent detections = %d, want <= 2", maxActive)
		}
	})

	t.Run("Close closes pooled detectors once", func(t *testing.T) {
		mock := NewMockDetector()
		pool, err := NewPool(1, func() (Detector, error) { return mock, nil })
		if err != nil {
			t.Fatalf("NewPool() error = %v", err)
		}

		if err := pool.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if !mock.Closed() {
			t.Error("expected pooled detector to be closed")
		}
		if err := pool.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})
}

func TestNewMediaPipeDetector(t *testing.T) {
	t.Run("missing script override is an error", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ScriptPath = "/nonexistent/mediapipe_service.py"

		if _, err := NewMediaPipeDetector(cfg, zap.NewNop()); err == nil {
			t.Error("expected error for missing script")
		}
	})

	t.Run("passes single hand still image flags", func(t *testing.T) {
		script := t.TempDir() + "/mediapipe_service.py"
		if err := writeFile(script); err != nil {
			t.Fatalf("write script: %v", err)
		}

		cfg := DefaultConfig()
		cfg.ScriptPath = script
		cfg.Python = "python3"

		d, err := NewMediaPipeDetector(cfg, zap.NewNop())
		if err != nil {
			t.Fatalf("NewMediaPipeDetector() error = %v", err)
		}
		defer d.Close()

		args := d.args()
		want := []string{script, "--max-hands", "1", "--min-detection-confidence", "0.5", "--static-image-mode"}
		if len(args) != len(want) {
			t.Fatalf("args = %v, want %v", args, want)
		}
		for i := range want {
			if args[i] != want[i] {
				t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
			}
		}
	})

	t.Run("rejects empty frame without starting the process", func(t *testing.T) {
		script := t.TempDir() + "/mediapipe_service.py"
		if err := writeFile(script); err != nil {
			t.Fatalf("write script: %v", err)
		}

		cfg := DefaultConfig()
		cfg.ScriptPath = script

		d, err := NewMediaPipeDetector(cfg, zap.NewNop())
		if err != nil {
			t.Fatalf("NewMediaPipeDetector() error = %v", err)
		}
		defer d.Close()

		empty := gocv.NewMat()
		defer empty.Close()

		if _, err := d.Detect(&empty); err == nil {
			t.Error("expected error for empty frame")
		}
		if d.started {
			t.Error("process should not start for an empty frame")
		}
	})
}

func writeFile(path string) error {
	return os.WriteFile(path, []byte("# placeholder\n"), 0644)
}
