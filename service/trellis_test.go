package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Trellis3D-server/models"
)

func newTestClient(baseURL string) *TrellisClient {
	return &TrellisClient{
		APIToken:     "test-token",
		BaseURL:      baseURL,
		Version:      "v-test",
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  5 * time.Second,
	}
}

func TestGenerateSucceeded(t *testing.T) {
	var gotAuth string
	var gotInput map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/predictions":
			gotAuth = r.Header.Get("Authorization")
			var body map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode request failed: %v", err)
			}
			gotInput, _ = body["input"].(map[string]interface{})
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "p1", "status": "starting"})
		case r.Method == http.MethodGet && r.URL.Path == "/predictions/p1":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "p1",
				"status": "succeeded",
				"output": map[string]interface{}{"model_file": "m.glb"},
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	req := models.DefaultGenerate3DRequest()
	req.Images = []string{"http://a/img.png"}

	output, err := client.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if output["model_file"] != "m.glb" {
		t.Errorf("output = %v", output)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth = %q", gotAuth)
	}
	// 请求字段原样转发（含默认值）
	if gotInput["seed"] != float64(1337) {
		t.Errorf("input seed = %v", gotInput["seed"])
	}
	if gotInput["texture_size"] != float64(2048) {
		t.Errorf("input texture_size = %v", gotInput["texture_size"])
	}
	imgs, _ := gotInput["images"].([]interface{})
	if len(imgs) != 1 || imgs[0] != "http://a/img.png" {
		t.Errorf("input images = %v", gotInput["images"])
	}
}

// 提供方报错要把原因字符串带回来
func TestGenerateFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "p2", "status": "starting"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "p2",
			"status": "failed",
			"error":  "rate limited",
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Generate(context.Background(), models.DefaultGenerate3DRequest())
	if err == nil {
		t.Fatal("want error")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("err = %v, 应包含提供方原因", err)
	}
}

// 创建响应已经是终态时不再轮询
func TestGenerateTerminalOnCreate(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "p3",
				"status": "succeeded",
				"output": map[string]interface{}{"model_file": "m.glb"},
			})
			return
		}
		polls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	output, err := client.Generate(context.Background(), models.DefaultGenerate3DRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if output["model_file"] != "m.glb" {
		t.Errorf("output = %v", output)
	}
	if polls != 0 {
		t.Errorf("polls = %d, want 0", polls)
	}
}

func TestCreatePredictionRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{"detail": "authentication required"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Generate(context.Background(), models.DefaultGenerate3DRequest())
	if err == nil {
		t.Fatal("want error")
	}
	if !strings.Contains(err.Error(), "authentication required") {
		t.Errorf("err = %v", err)
	}
}

func TestGenerateCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "p4", "status": "starting"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "p4", "status": "processing"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, models.DefaultGenerate3DRequest())
	if err == nil {
		t.Fatal("want error")
	}
}
