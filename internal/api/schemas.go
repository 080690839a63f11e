package api

import (
	"time"

	"github.com/vrewcraft/backend/internal/engine"
	"github.com/vrewcraft/backend/internal/journal"
	"github.com/vrewcraft/backend/internal/media"
	"github.com/vrewcraft/backend/internal/store"
)

type HealthResponse struct {
	Status  string              `json:"status"`
	Service string              `json:"service"`
	Version string              `json:"version"`
	UptimeS int64               `json:"uptime_s"`
	Tools   *media.Capabilities `json:"tools,omitempty"`
}

type TrimRequest struct {
	Filename string  `json:"filename"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration,omitempty"`
	End      float64 `json:"end,omitempty"`
}

type SplitRequest struct {
	Filename   string  `json:"filename"`
	SplitPoint float64 `json:"splitPoint"`
}

type FileResponse struct {
	Filename string  `json:"filename"`
	URL      string  `json:"url"`
	Size     int64   `json:"size"`
	Duration float64 `json:"duration,omitempty"`
}

type OperationResponse struct {
	OperationID string         `json:"operationId"`
	Operation   string         `json:"operation"`
	Files       []FileResponse `json:"files"`
}

type MetadataResponse struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Codec    string  `json:"codec,omitempty"`
	Bitrate  int64   `json:"bitrate,omitempty"`
}

type HistoryEntryResponse struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Input     string         `json:"input"`
	Status    string         `json:"status"`
	Error     string         `json:"error,omitempty"`
	Artifacts []FileResponse `json:"artifacts"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

type HistoryResponse struct {
	Operations []HistoryEntryResponse `json:"operations"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func FileToResponse(f store.MediaFile) FileResponse {
	return FileResponse{
		Filename: f.Filename,
		URL:      f.URL,
		Size:     f.Size,
		Duration: f.Duration,
	}
}

func ResultToResponse(r *engine.Result) OperationResponse {
	resp := OperationResponse{
		OperationID: r.OperationID,
		Operation:   string(r.Operation),
		Files:       make([]FileResponse, len(r.Files)),
	}
	for i, f := range r.Files {
		resp.Files[i] = FileToResponse(f)
	}
	return resp
}

func OperationToHistoryEntry(op *journal.Operation) HistoryEntryResponse {
	entry := HistoryEntryResponse{
		ID:        op.ID,
		Kind:      op.Kind,
		Input:     op.Input,
		Status:    op.Status,
		Error:     op.Error,
		Artifacts: make([]FileResponse, len(op.Artifacts)),
		CreatedAt: op.CreatedAt.Format(time.RFC3339),
		UpdatedAt: op.UpdatedAt.Format(time.RFC3339),
	}
	for i, f := range op.Artifacts {
		entry.Artifacts[i] = FileToResponse(f)
	}
	return entry
}
