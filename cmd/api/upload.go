package main

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"

	"verimail/internal/queue"
)

// UploadResponse acknowledges an accepted bulk job.
type UploadResponse struct {
	JobID     string `json:"job_id"`
	TotalRows int    `json:"total_rows"`
	Message   string `json:"message"`
}

// uploadHandler accepts a CSV of addresses (first column), creates a job
// and enqueues one task per address for the worker pool.
func (s *server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "File too large or malformed", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing 'file' parameter in form data", http.StatusBadRequest)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	var emails []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, "Invalid CSV format", http.StatusBadRequest)
			return
		}
		if len(record) > 0 && record[0] != "" {
			emails = append(emails, record[0])
		}
	}

	if len(emails) == 0 {
		http.Error(w, "CSV is empty", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	jobID := uuid.New().String()

	if err := s.store.CreateJob(ctx, jobID, len(emails)); err != nil {
		log.Printf("❌ Failed to create job: %v", err)
		http.Error(w, "Failed to create job", http.StatusInternalServerError)
		return
	}

	enqueued := 0
	for _, email := range emails {
		if err := s.queue.Enqueue(ctx, queue.Task{JobID: jobID, Email: email}); err != nil {
			log.Printf("❌ Failed to enqueue %s for job %s: %v", email, jobID, err)
			continue
		}
		enqueued++
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UploadResponse{
		JobID:     jobID,
		TotalRows: enqueued,
		Message:   "Job created. Processing started.",
	})
}
