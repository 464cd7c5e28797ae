package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/lisa/internal/config"
	"github.com/ayusman/lisa/internal/detector"
	"github.com/ayusman/lisa/internal/frame/frametest"
	"github.com/ayusman/lisa/internal/model"
	"github.com/ayusman/lisa/internal/recognizer"
	"github.com/ayusman/lisa/internal/server"
	"github.com/ayusman/lisa/internal/store"
)

// Frame widths select the pose the test detector reports.
const (
	emptyWidth = 64
	fistWidth  = 80
	palmWidth  = 96
)

// tipNetwork scores class 0 by the middle fingertip's y coordinate.
type tipNetwork struct{}

func (tipNetwork) Forward(input []float32) ([]float32, error) {
	tipY := input[2*detector.MiddleTip+1]
	return []float32{tipY, 1 - tipY}, nil
}

func (tipNetwork) Close() error { return nil }

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writeModelDir lays out metadata and scaler files the way the service expects them.
func writeModelDir(t *testing.T, base string) *config.Config {
	t.Helper()

	cfg := &config.Config{BaseDir: base, ModelName: config.DefaultModelName}
	if err := os.MkdirAll(cfg.ModelDir(), 0755); err != nil {
		t.Fatalf("create model dir: %v", err)
	}

	writeJSON(t, cfg.MetadataPath(), map[string]any{
		"input_dim":     detector.FeatureDim,
		"num_classes":   2,
		"label_encoder": []string{"0", "5"},
	})

	mean := make([]float64, detector.FeatureDim)
	scale := make([]float64, detector.FeatureDim)
	for i := range scale {
		scale[i] = 1
	}
	writeJSON(t, cfg.ScalerPath(), map[string]any{"mean": mean, "scale": scale})

	return cfg
}

func poseDetector() detector.Detector {
	return detector.DetectorFunc(func(img *gocv.Mat) ([]detector.HandLandmarks, error) {
		switch img.Cols() {
		case fistWidth:
			return []detector.HandLandmarks{detector.FistLandmarks()}, nil
		case palmWidth:
			return []detector.HandLandmarks{detector.OpenPalmLandmarks()}, nil
		}
		return nil, nil
	})
}

func frameBody(t *testing.T, width int) string {
	t.Helper()
	data, err := frametest.JPEG(width, 48)
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	body, _ := json.Marshal(server.ProcessRequest{Image: frametest.DataURI("image/jpeg", data)})
	return string(body)
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	cfg := writeModelDir(t, tmpDir)

	meta, err := model.LoadMetadata(cfg.MetadataPath())
	if err != nil {
		t.Fatalf("LoadMetadata() error = %v", err)
	}
	scaler, err := model.LoadScaler(cfg.ScalerPath())
	if err != nil {
		t.Fatalf("LoadScaler() error = %v", err)
	}
	bundle, err := model.NewBundle(meta, scaler, tipNetwork{}, detector.FeatureDim)
	if err != nil {
		t.Fatalf("NewBundle() error = %v", err)
	}
	defer bundle.Close()

	pool, err := detector.NewPool(2, func() (detector.Detector, error) { return poseDetector(), nil })
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer pool.Close()

	rec, err := recognizer.New(recognizer.Config{
		Detector:   pool,
		Scaler:     bundle.Scaler,
		Classifier: bundle.Classifier,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("recognizer.New() error = %v", err)
	}

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	srv := server.New(server.Config{
		Recognizer:   rec,
		Store:        s,
		ModelName:    bundle.Metadata.ModelName,
		ModelVersion: bundle.Metadata.Version,
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	t.Run("Info", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/info")
		if err != nil {
			t.Fatalf("GET /info error = %v", err)
		}
		defer resp.Body.Close()

		var info server.InfoResponse
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			t.Fatalf("decode info: %v", err)
		}
		if info.NumClasses != 2 || len(info.Classes) != 2 {
			t.Errorf("unexpected info %+v", info)
		}
		if info.Model != model.DefaultModelName || info.Version != model.DefaultVersion {
			t.Errorf("metadata defaults not applied: %+v", info)
		}
	})

	t.Run("IndexListsClasses", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/")
		if err != nil {
			t.Fatalf("GET / error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
	})

	cases := []struct {
		name    string
		width   int
		success bool
		label   string
	}{
		{"RecognizeFist", fistWidth, true, "0"},
		{"RecognizePalm", palmWidth, true, "5"},
		{"NoHand", emptyWidth, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := client.Post(ts.URL+"/processar_imagem", "application/json", strings.NewReader(frameBody(t, tc.width)))
			if err != nil {
				t.Fatalf("POST /processar_imagem error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
			}

			var result server.ProcessResponse
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if result.Success != tc.success || result.Label != tc.label {
				t.Errorf("response = %+v, want sucesso=%v classe=%q", result, tc.success, tc.label)
			}
		})
	}

	t.Run("StreamOverWebSocket", func(t *testing.T) {
		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial websocket: %v", err)
		}
		defer conn.Close()

		if err := conn.WriteMessage(websocket.TextMessage, []byte(frameBody(t, palmWidth))); err != nil {
			t.Fatalf("write frame: %v", err)
		}
		var result server.ProcessResponse
		if err := conn.ReadJSON(&result); err != nil {
			t.Fatalf("read reply: %v", err)
		}
		if !result.Success || result.Label != "5" {
			t.Errorf("reply = %+v", result)
		}
	})

	t.Run("PredictionLog", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/stats")
		if err != nil {
			t.Fatalf("GET /api/stats error = %v", err)
		}
		defer resp.Body.Close()

		var stats store.Stats
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			t.Fatalf("decode stats: %v", err)
		}
		if stats.Total != 4 {
			t.Errorf("Total = %d, want 4", stats.Total)
		}
		if stats.ByLabel["5"] != 2 || stats.ByLabel["0"] != 1 {
			t.Errorf("ByLabel = %v", stats.ByLabel)
		}
		if stats.ByStatus[store.StatusNoHand] != 1 {
			t.Errorf("ByStatus = %v", stats.ByStatus)
		}
	})
}

// TestE2E_ONNXModel exercises the real runtime against a shipped model
// directory when one is available.
func TestE2E_ONNXModel(t *testing.T) {
	lib := os.Getenv("ONNXRUNTIME_LIB")
	base := os.Getenv("LISA_BASE_DIR")
	if testing.Short() || lib == "" || base == "" {
		t.Skip("set ONNXRUNTIME_LIB and LISA_BASE_DIR to run against the exported model")
	}

	if err := model.InitRuntime(lib); err != nil {
		t.Fatalf("InitRuntime() error = %v", err)
	}
	t.Cleanup(func() { model.DestroyRuntime() })

	cfg := &config.Config{BaseDir: base, ModelName: config.DefaultModelName}
	bundle, err := model.Load(model.Paths{
		Model:    cfg.ModelPath(),
		Metadata: cfg.MetadataPath(),
		Scaler:   cfg.ScalerPath(),
	}, detector.FeatureDim)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer bundle.Close()

	hand := detector.OpenPalmLandmarks()
	features, err := bundle.Scaler.Transform(hand.Features())
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	first, err := bundle.Classifier.Predict(features)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	second, err := bundle.Classifier.Predict(features)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	if first != second {
		t.Errorf("predictions differ: %+v vs %+v", first, second)
	}
	if first.Confidence < 0 || first.Confidence > 1 {
		t.Errorf("confidence %f outside [0,1]", first.Confidence)
	}
}
