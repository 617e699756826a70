package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// WeekExportQuery selects a synchronous week grid export.
type WeekExportQuery struct {
	Format   string `form:"format" validate:"omitempty,oneof=csv pdf xlsx excel"`
	View     string `form:"view" validate:"omitempty,oneof=batch teacher"`
	TargetID string `form:"target_id"`
}

// ExportJobRequest enqueues an asynchronous week export.
type ExportJobRequest struct {
	Week     string `json:"week" validate:"required"`
	Format   string `json:"format" validate:"omitempty,oneof=csv pdf xlsx excel"`
	View     string `json:"view" validate:"omitempty,oneof=batch teacher"`
	TargetID string `json:"targetId"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
