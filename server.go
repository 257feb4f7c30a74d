package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/openbench/labscan/camera"
	"github.com/openbench/labscan/catalog"
	"github.com/openbench/labscan/models"
	"github.com/openbench/labscan/scan"
)

// AppState is the server's shared wiring. The scheduler and camera may
// be nil when acquisition failed at startup; handlers degrade instead
// of failing.
type AppState struct {
	Config   Config
	Catalog  *catalog.Catalog
	Cam      camera.FrameSource
	Ctrl     *scan.Controller
	Sched    *scan.Scheduler
	ModelErr error
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type itemResponse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Class    string   `json:"class"`
	Location string   `json:"location"`
	Quantity int      `json:"quantity"`
	Tags     []string `json:"tags"`
	Notes    string   `json:"notes,omitempty"`
}

type detectionResponse struct {
	Class      string  `json:"class"`
	Confidence float32 `json:"confidence"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

type statusResponse struct {
	Camera      string              `json:"camera"`
	Model       string              `json:"model"`
	Mode        string              `json:"mode"`
	RemainingMS int64               `json:"remaining_ms"`
	Message     string              `json:"message"`
	Detections  []detectionResponse `json:"detections"`
	Matches     []itemResponse      `json:"matches"`
}

func (s *AppState) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleDashboard).Methods("GET")
	r.HandleFunc("/api/items", s.handleItems).Methods("GET")
	r.HandleFunc("/api/items/{id}", s.handleItem).Methods("GET")
	r.HandleFunc("/api/scan", s.handleScan).Methods("POST")
	r.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/stream", s.handleStream).Methods("GET")
	r.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	r.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	return r
}

func (s *AppState) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	page, err := dashboardHTML()
	if err != nil {
		sendErrorResponse(w, "internal_error", "dashboard unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *AppState) handleItems(w http.ResponseWriter, r *http.Request) {
	items := s.Catalog.Search(r.URL.Query().Get("q"))
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	writeJSON(w, out)
}

func (s *AppState) handleItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	item, ok := s.Catalog.Get(id)
	if !ok {
		sendErrorResponse(w, "not_found", fmt.Sprintf("no item %q", id), http.StatusNotFound)
		return
	}
	writeJSON(w, toItemResponse(item))
}

// handleScan is the manual trigger: it forces Idle -> Scanning, or
// extends the deadline when already scanning. With no model loaded the
// scan window still opens but produces no detections.
func (s *AppState) handleScan(w http.ResponseWriter, _ *http.Request) {
	if s.Cam == nil {
		sendErrorResponse(w, "no_camera", "no camera available", http.StatusServiceUnavailable)
		return
	}
	s.Ctrl.Trigger("manual")
	writeJSON(w, map[string]string{"mode": s.Ctrl.Mode().String()})
}

func (s *AppState) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Camera:     "ready",
		Model:      "ready",
		Mode:       s.Ctrl.Mode().String(),
		Detections: []detectionResponse{},
		Matches:    []itemResponse{},
	}
	if s.Cam == nil {
		resp.Camera = "unavailable"
	} else if !s.Cam.Ready() {
		resp.Camera = "starting"
	}
	if s.ModelErr != nil {
		resp.Model = "error: " + s.ModelErr.Error()
	}
	if deadline, ok := s.Ctrl.Deadline(); ok {
		resp.RemainingMS = time.Until(deadline).Milliseconds()
	}

	dets := s.Ctrl.Detections()
	seen := make(map[string]bool)
	for _, d := range dets {
		resp.Detections = append(resp.Detections, detectionResponse{
			Class:      d.ClassName,
			Confidence: d.Confidence,
			X:          d.Box.Min.X,
			Y:          d.Box.Min.Y,
			Width:      d.Box.Dx(),
			Height:     d.Box.Dy(),
		})
		if seen[d.ClassName] {
			continue
		}
		seen[d.ClassName] = true
		for _, item := range s.Catalog.ByClass(d.ClassName) {
			resp.Matches = append(resp.Matches, toItemResponse(item))
		}
	}
	resp.Message = scanMessage(s.Ctrl.Mode(), dets)

	writeJSON(w, resp)
}

// handleStream serves the live feed as multipart MJPEG. Each part is
// the most recently composed frame; slow clients simply miss frames.
func (s *AppState) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.Sched == nil {
		sendErrorResponse(w, "no_camera", "no camera available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		sendErrorResponse(w, "streaming_unsupported", "response writer cannot stream", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-store")

	var seq uint64
	for {
		frame, next, err := s.Sched.WaitFrame(r.Context(), seq)
		if err != nil {
			return
		}
		seq = next

		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
			return
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *AppState) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	if s.Sched == nil {
		writeJSON(w, scan.Snapshot{})
		return
	}
	writeJSON(w, s.Sched.Metrics().Snapshot())
}

func (s *AppState) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func scanMessage(mode scan.Mode, dets []models.Detection) string {
	switch {
	case mode == scan.ModeIdle:
		return "watching for motion"
	case len(dets) == 0:
		return "scanning, nothing recognized yet"
	case len(dets) == 1:
		return "1 object in view"
	default:
		return fmt.Sprintf("%d objects in view", len(dets))
	}
}

func toItemResponse(item catalog.Item) itemResponse {
	return itemResponse{
		ID:       item.ID,
		Name:     item.Name,
		Class:    item.Class,
		Location: item.Location,
		Quantity: item.Quantity,
		Tags:     item.Tags,
		Notes:    item.Notes,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func sendErrorResponse(w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}
