// Package fake is an in-process Fabrica API used by tests and by
// `fabrica mock` for working offline. It implements the full HTTP surface
// the client consumes, with jobs that advance one lifecycle step per poll.
package fake

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/fabrica/pkg/models"
)

// RunningPolls is how many status polls a job spends non-terminal before it
// succeeds.
const RunningPolls = 2

type jobState struct {
	rec   models.JobRecord
	doc   *models.SchemaDocument
	polls int
}

// Server holds the fake API state. Safe for concurrent use.
type Server struct {
	mu   sync.Mutex
	seq  int
	jobs map[string]*jobState

	// StreamGenerate makes /schema/generate answer as an event-stream when
	// the caller accepts one.
	StreamGenerate bool

	llm       models.LLMConfig
	templates []models.Template
}

// NewServer returns a fake with no jobs and a minimal template catalog.
func NewServer() *Server {
	return &Server{
		jobs: make(map[string]*jobState),
		llm:  models.LLMConfig{Provider: "openai", Model: "gpt-4o", APIKeySet: true},
		templates: []models.Template{
			{ID: "ecommerce", Name: "E-commerce starter", Description: "customers, orders, products"},
		},
	}
}

// JobIDs returns the IDs of all known jobs in submission order.
func (s *Server) JobIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for i := 1; i <= s.seq; i++ {
		id := fmt.Sprintf("job-%d", i)
		if _, ok := s.jobs[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Handler builds the HTTP surface.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(recovery)
	r.Use(requestLogger)

	r.Get("/", s.health)
	r.Post("/jobs", s.submitJob)
	r.Get("/jobs/completed", s.completedJobs)
	r.Get("/jobs/{jobID}", s.jobStatus)
	r.Delete("/jobs/{jobID}", s.deleteJob)
	r.Get("/jobs/{jobID}/download", s.downloadJob)
	r.Get("/jobs/{jobID}/data", s.jobData)
	r.Post("/schema/generate", s.generateSchema)
	r.Get("/config/llm", s.getLLMConfig)
	r.Put("/config/llm", s.putLLMConfig)
	r.Get("/templates", s.listTemplates)

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "fabrica"})
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SchemaConfig *models.SchemaDocument `json:"schema_config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SchemaConfig == nil {
		http.Error(w, "invalid schema_config", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("job-%d", s.seq)
	s.jobs[id] = &jobState{
		rec: models.JobRecord{JobID: id, Status: models.JobStatusPending},
		doc: body.SchemaConfig,
	}
	rec := s.jobs[id].rec
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	s.mu.Lock()
	job, ok := s.jobs[id]
	if ok {
		s.advance(job)
	}
	var rec models.JobRecord
	if ok {
		rec = job.rec
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// advance moves a job one lifecycle step per observation. Jobs submitted
// with no tables fail; everything else succeeds after RunningPolls polls.
func (s *Server) advance(job *jobState) {
	if job.rec.Terminal() {
		return
	}
	job.polls++

	if len(job.doc.Tables) == 0 {
		msg := "schema has no tables"
		job.rec.Status = models.JobStatusFailure
		job.rec.Error = &msg
		return
	}

	if job.polls <= RunningPolls {
		progress := float64(job.polls) * 100 / float64(RunningPolls+1)
		msg := "generating rows"
		job.rec.Status = models.JobStatusRunning
		job.rec.Progress = &progress
		job.rec.Message = &msg
		return
	}

	progress := 100.0
	job.rec.Status = models.JobStatusSuccess
	job.rec.Progress = &progress
	job.rec.Message = nil
	job.rec.Files = make(map[string]string)
	for _, tbl := range job.doc.Tables {
		name := tbl.Name + ".csv"
		job.rec.Files[name] = "/jobs/" + job.rec.JobID + "/files/" + name
	}
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	s.mu.Lock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()

	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, models.DeleteResult{Status: "deleted", JobID: id})
}

// downloadJob answers with a real zip: one CSV of header + synthetic rows
// per table.
func (s *Server) downloadJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, tbl := range job.doc.Tables {
		f, err := zw.Create(tbl.Name + ".csv")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(f, "id\n1\n2\n")
	}
	if err := zw.Close(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Write(buf.Bytes())
}

func (s *Server) jobData(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	data := models.JobData{JobID: id, Tables: make(map[string]models.TablePreview)}
	for _, tbl := range job.doc.Tables {
		total := models.DefaultRowCount
		if tbl.RowCount != nil {
			total = *tbl.RowCount
		}
		preview := limit
		if preview > total {
			preview = total
		}
		rows := make([]map[string]any, preview)
		for i := range rows {
			rows[i] = map[string]any{"id": i + 1}
		}
		data.Tables[tbl.Name] = models.TablePreview{
			Columns:     []string{"id"},
			Rows:        rows,
			TotalRows:   total,
			PreviewRows: preview,
		}
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) completedJobs(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	jobs := []models.JobSummary{}
	for i := s.seq; i >= 1; i-- {
		id := fmt.Sprintf("job-%d", i)
		if job, ok := s.jobs[id]; ok && job.rec.Terminal() {
			jobs = append(jobs, models.JobSummary{JobID: id, Status: job.rec.Status})
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// generateSchema drafts a two-table document regardless of the story; the
// point is the wire shape, not the content.
func (s *Server) generateSchema(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Story string `json:"story"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Story == "" {
		http.Error(w, "story is required", http.StatusBadRequest)
		return
	}

	doc := cannedSchema()
	raw, err := json.Marshal(doc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if s.StreamGenerate && canFlush {
		w.Header().Set("Content-Type", "text/event-stream")
		for len(raw) > 0 {
			n := 32
			if n > len(raw) {
				n = len(raw)
			}
			w.Write(raw[:n])
			flusher.Flush()
			raw = raw[n:]
			time.Sleep(2 * time.Millisecond) // simulate the model typing
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

func (s *Server) getLLMConfig(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	cfg := s.llm
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) putLLMConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.LLMConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid config", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.llm = cfg
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) listTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": s.templates})
}

func cannedSchema() *models.SchemaDocument {
	rows := 250
	return &models.SchemaDocument{
		Tables: []models.TableSpec{
			{Name: "customers", RowCount: &rows},
			{Name: "orders"},
		},
		Columns: map[string][]models.ColumnSpec{
			"customers": {
				{Name: "id", Type: "uuid"},
				{Name: "full_name", Type: "name"},
				{Name: "email", Type: "email"},
			},
			"orders": {
				{Name: "id", Type: "uuid"},
				{Name: "customer_id", Type: "uuid"},
				{Name: "total", Type: "float"},
			},
		},
		Relationships: []models.RelationshipSpec{
			{ParentTable: "customers", ChildTable: "orders", ParentKey: "id", ChildKey: "customer_id"},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
