package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/gif"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/descentviz/internal/optim"
	"github.com/cwbudde/descentviz/internal/store"
)

// waitForState polls until the job reaches a finished state.
func waitForState(t *testing.T, s *Server, id string) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := s.jobManager.GetJob(id)
		if ok && isFinished(job.State) {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Job %s did not finish", id)
	return Job{}
}

func postRun(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_CreateRun(t *testing.T) {
	s := NewServer(":8080", nil)
	defer s.Shutdown(context.Background())

	w := postRun(t, s.Handler(), `{"function":"Quadratic","optimizers":["SGD","adam"],"start":[5,5],"iterations":5}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if job.ID == "" {
		t.Fatal("Job ID should not be empty")
	}

	// Defaults fill what the request left out, names are canonical
	if job.Config.LearningRate != 0.01 || job.Config.Beta2 == nil || *job.Config.Beta2 != 0.999 {
		t.Errorf("Defaults not applied: %+v", job.Config)
	}
	if job.Config.Function != "quadratic" || job.Config.Optimizers[0] != "sgd" {
		t.Errorf("Names not canonicalized: %+v", job.Config)
	}

	done := waitForState(t, s, job.ID)
	if done.State != StateCompleted {
		t.Errorf("Expected completed, got %s (%s)", done.State, done.Error)
	}
}

func TestServer_CreateRun_ValidationErrors(t *testing.T) {
	s := NewServer(":8080", nil)
	h := s.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"function":`},
		{"missing function", `{"optimizers":["sgd"],"start":[1,1]}`},
		{"unknown function", `{"function":"himmelblau","optimizers":["sgd"],"start":[1,1]}`},
		{"no optimizers", `{"function":"booth","start":[1,1]}`},
		{"unknown optimizer", `{"function":"booth","optimizers":["foo"],"start":[1,1]}`},
		{"duplicate optimizer", `{"function":"booth","optimizers":["adam","ADAM"],"start":[1,1]}`},
		{"missing start", `{"function":"booth","optimizers":["sgd"]}`},
		{"non-finite start", `{"function":"booth","optimizers":["sgd"],"start":["NaN",1]}`},
		{"negative lr", `{"function":"booth","optimizers":["sgd"],"start":[1,1],"learningRate":-1}`},
		{"negative iterations", `{"function":"booth","optimizers":["sgd"],"start":[1,1],"iterations":-1}`},
		{"too many iterations", `{"function":"booth","optimizers":["sgd"],"start":[1,1],"iterations":1000000}`},
		{"beta out of range", `{"function":"booth","optimizers":["adam"],"start":[1,1],"beta1":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postRun(t, h, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	if len(s.jobManager.ListJobs()) != 0 {
		t.Error("Rejected requests should not create jobs")
	}
}

func TestServer_ZeroIterations(t *testing.T) {
	s := NewServer(":8080", nil)
	defer s.Shutdown(context.Background())

	w := postRun(t, s.Handler(), `{"function":"booth","optimizers":["radam"],"start":[0,0],"iterations":0}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}
	var job Job
	json.NewDecoder(w.Body).Decode(&job)

	waitForState(t, s, job.ID)
	result, ok := s.jobManager.Result(job.ID)
	if !ok || len(result.Paths[0].Points) != 1 {
		t.Fatal("Expected a single-point trajectory")
	}
}

func TestServer_GetRun(t *testing.T) {
	s := NewServer(":8080", nil)
	defer s.Shutdown(context.Background())
	h := s.Handler()

	job := s.submit(testConfig())
	waitForState(t, s, job.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+job.ID, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Job     Job     `json:"job"`
		Elapsed float64 `json:"elapsed"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Job.State != StateCompleted || len(response.Job.Summaries) != 2 {
		t.Errorf("Unexpected job: %+v", response.Job)
	}
}

func TestServer_GetRun_NotFound(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/nonexistent", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_StoredRuns(t *testing.T) {
	fs, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	// First server computes and persists
	s1 := NewServer(":8080", fs)
	job := s1.submit(testConfig())
	waitForState(t, s1, job.ID)
	s1.Shutdown(context.Background())

	// Second server only sees the store
	s2 := NewServer(":8080", fs)
	h := s2.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+job.ID, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected stored run, got %d", w.Code)
	}
	var response struct {
		Run store.Run `json:"run"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatal(err)
	}
	if len(response.Run.Paths) != 2 {
		t.Errorf("Expected 2 stored paths, got %d", len(response.Run.Paths))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var list struct {
		Jobs   []Job           `json:"jobs"`
		Stored []store.RunInfo `json:"stored"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Jobs) != 0 || len(list.Stored) != 1 {
		t.Errorf("Expected 0 jobs and 1 stored run, got %d and %d", len(list.Jobs), len(list.Stored))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+job.ID+"/plot.png", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected plot from stored run, got %d", w.Code)
	}
	if _, err := png.Decode(w.Body); err != nil {
		t.Errorf("Stored run plot is not a PNG: %v", err)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/runs/"+job.ID, nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 on delete, got %d", w.Code)
	}
	if _, err := fs.LoadRun(job.ID); err == nil {
		t.Error("Run should be removed from the store")
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/runs/"+job.ID, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", w.Code)
	}
}

func TestServer_Plots(t *testing.T) {
	s := NewServer(":8080", nil)
	defer s.Shutdown(context.Background())
	h := s.Handler()

	job := s.submit(testConfig())
	waitForState(t, s, job.ID)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+job.ID+path, nil))
		return w
	}

	w := get("/plot.png")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("plot.png: status %d, type %s", w.Code, w.Header().Get("Content-Type"))
	}
	if _, err := png.Decode(w.Body); err != nil {
		t.Errorf("plot.png is not a PNG: %v", err)
	}

	w = get("/plot.gif?optimizer=adam")
	if w.Code != http.StatusOK {
		t.Fatalf("plot.gif: status %d", w.Code)
	}
	anim, err := gif.DecodeAll(w.Body)
	if err != nil {
		t.Fatalf("plot.gif is not a GIF: %v", err)
	}
	if len(anim.Image) != 11 {
		t.Errorf("Expected 11 frames, got %d", len(anim.Image))
	}

	if w = get("/plot.gif?optimizer=rmsprop"); w.Code != http.StatusBadRequest {
		t.Errorf("Optimizer outside the run should be 400, got %d", w.Code)
	}

	w = get("/comparison.gif")
	if w.Code != http.StatusOK {
		t.Fatalf("comparison.gif: status %d: %s", w.Code, w.Body.String())
	}
	if _, err := gif.DecodeAll(w.Body); err != nil {
		t.Errorf("comparison.gif is not a GIF: %v", err)
	}

	if w = get("/unknown"); w.Code != http.StatusNotFound {
		t.Errorf("Unknown subpath should be 404, got %d", w.Code)
	}
}

func TestServer_PlotNotReady(t *testing.T) {
	s := NewServer(":8080", nil)
	job := s.jobManager.CreateJob(testConfig())

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+job.ID+"/plot.png", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for pending job, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/runs/"+job.ID, nil))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 deleting pending job, got %d", w.Code)
	}
}

func TestServer_Catalog(t *testing.T) {
	h := NewServer(":8080", nil).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/functions", nil))
	var functions []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&functions); err != nil {
		t.Fatal(err)
	}
	if len(functions) < 3 {
		t.Errorf("Expected at least 3 functions, got %d", len(functions))
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/optimizers", nil))
	var optimizers []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&optimizers); err != nil {
		t.Fatal(err)
	}
	if len(optimizers) != 10 {
		t.Errorf("Expected 10 optimizers, got %d", len(optimizers))
	}
}

func TestServer_Metrics(t *testing.T) {
	s := NewServer(":8080", nil)
	defer s.Shutdown(context.Background())
	h := s.Handler()

	job := s.submit(testConfig())
	waitForState(t, s, job.ID)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	for _, want := range []string{
		"descentviz_runs_started_total 1",
		"descentviz_runs_completed_total 1",
		`descentviz_optimizer_steps_total{optimizer="adam"} 10`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Metrics output missing %q", want)
		}
	}
}

func TestServer_Integration(t *testing.T) {
	s := NewServer("localhost:0", nil)
	defer s.Shutdown(context.Background())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/runs", "application/json",
		bytes.NewBufferString(`{"function":"beale","optimizers":["adam","nadam","radam"],"start":[1,1],"learningRate":0.05,"iterations":50}`))
	if err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}

	var job Job
	json.NewDecoder(resp.Body).Decode(&job)

	// CORS preflight
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/runs", nil)
	pre, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	pre.Body.Close()
	if pre.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Missing CORS header")
	}

	done := waitForState(t, s, job.ID)
	if done.State != StateCompleted {
		t.Fatalf("Expected completed, got %s", done.State)
	}

	plot, err := http.Get(srv.URL + "/api/v1/runs/" + job.ID + "/plot.png")
	if err != nil {
		t.Fatal(err)
	}
	defer plot.Body.Close()
	if plot.StatusCode != http.StatusOK {
		t.Errorf("Expected plot status 200, got %d", plot.StatusCode)
	}
}

func TestServer_JobStream_SSE(t *testing.T) {
	s := NewServer(":8080", nil)
	defer s.Shutdown(context.Background())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	// Subscribe before the job runs so every event is seen
	job := s.jobManager.CreateJob(testConfig())

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/runs/%s/stream", srv.URL, job.ID))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Error("Expected text/event-stream content type")
	}

	go s.runner.runJob(context.Background(), job.ID)

	var events []ProgressEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("Bad event %q: %v", line, err)
		}
		events = append(events, ev)
		if ev.Terminal() {
			break
		}
	}

	if len(events) < 2 {
		t.Fatalf("Expected several events, got %d", len(events))
	}
	last := events[len(events)-1]
	if last.State != StateCompleted || last.Completed != 2 {
		t.Errorf("Unexpected final event: %+v", last)
	}
}

func nonFinite(f optim.Float) bool {
	return math.IsNaN(float64(f)) || math.IsInf(float64(f), 0)
}

func TestServer_DivergedRun(t *testing.T) {
	runStore, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(":8080", runStore)
	defer s.Shutdown(context.Background())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	w := postRun(t, s.Handler(), `{"function":"rosenbrock","optimizers":["sgd"],"start":[1.5,1.5],"learningRate":10,"iterations":50}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatal(err)
	}
	waitForState(t, s, job.ID)

	// The stream replays the last progress event and the terminal state
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/runs/%s/stream", srv.URL, job.ID))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("Bad event %q: %v", line, err)
		}
		if ev.Terminal() {
			if ev.State != StateCompleted {
				t.Errorf("Expected completed state, got %s", ev.State)
			}
			break
		}
	}

	resp2, err := http.Get(fmt.Sprintf("%s/api/v1/runs/%s", srv.URL, job.ID))
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var got struct {
		Job Job `json:"job"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode job: %v", err)
	}
	if len(got.Job.Summaries) != 1 || !nonFinite(got.Job.Summaries[0].FinalValue) {
		t.Errorf("Expected a non-finite final value, got %+v", got.Job.Summaries)
	}

	run, err := runStore.LoadRun(job.ID)
	if err != nil {
		t.Fatalf("Diverged run was not stored: %v", err)
	}
	if !nonFinite(run.Paths[0].FinalValue) {
		t.Errorf("Expected stored final value to be non-finite, got %v", run.Paths[0].FinalValue)
	}
}

func TestServer_CreateRun_ZeroBeta(t *testing.T) {
	s := NewServer(":8080", nil)
	defer s.Shutdown(context.Background())

	w := postRun(t, s.Handler(), `{"function":"quadratic","optimizers":["adam"],"start":[5,5],"iterations":3,"beta1":0}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatal(err)
	}

	if job.Config.Beta1 == nil || *job.Config.Beta1 != 0 {
		t.Fatalf("Expected beta1=0, got %v", job.Config.Beta1)
	}
	if b, ok := job.Config.Options()[optim.OptBeta1]; !ok || b != 0 {
		t.Errorf("Expected beta1=0 in options, got %v", job.Config.Options())
	}
}

func TestServer_JobStream_NotFound(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/nonexistent/stream", nil)
	w := httptest.NewRecorder()

	s.handleJobStream(w, req, "nonexistent")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_JobStream_Finished(t *testing.T) {
	s := NewServer(":8080", nil)
	defer s.Shutdown(context.Background())

	job := s.submit(testConfig())
	waitForState(t, s, job.ID)

	// A finished job sends one event and closes
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+job.ID+"/stream", nil)
	w := httptest.NewRecorder()
	s.handleJobStream(w, req, job.ID)

	if strings.Count(w.Body.String(), "data: ") != 1 {
		t.Errorf("Expected exactly one event, got %q", w.Body.String())
	}
}

func TestEventBroadcaster(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("job1")
	defer eb.Unsubscribe("job1", ch)

	event := ProgressEvent{
		JobID:     "job1",
		State:     StateRunning,
		Completed: 1,
		Total:     3,
		Optimizer: "sgd",
		Timestamp: time.Now(),
	}
	eb.Broadcast(event)

	select {
	case received := <-ch:
		if received.JobID != "job1" {
			t.Errorf("Expected jobID job1, got %s", received.JobID)
		}
		if received.Completed != 1 {
			t.Errorf("Expected 1 completed, got %d", received.Completed)
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for event")
	}

	// Late subscribers get the last event replayed
	late := eb.Subscribe("job1")
	select {
	case replay := <-late:
		if replay.Optimizer != "sgd" {
			t.Errorf("Expected replay of sgd event, got %+v", replay)
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for replay")
	}
	eb.Unsubscribe("job1", late)

	eb.CleanupJob("job1")
}
