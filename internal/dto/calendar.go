package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// HolidayRequest creates or renames a holiday.
type HolidayRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Name string `json:"name" validate:"required,max=128"`
}

// HolidayListQuery filters holiday listings.
type HolidayListQuery struct {
	From     string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To       string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=366"`
}

// ImportHolidaysRequest imports an iCalendar feed either inline or from a URL.
type ImportHolidaysRequest struct {
	URL      string `json:"url" validate:"required_without=Calendar,omitempty,url"`
	Calendar string `json:"calendar" validate:"required_without=URL"`
}

// ImportHolidaysResponse summarises an ICS import.
type ImportHolidaysResponse struct {
	Imported int              `json:"imported"`
	Skipped  int              `json:"skipped"`
	Holidays []models.Holiday `json:"holidays"`
}

// ExamPeriodRequest creates an exam period.
type ExamPeriodRequest struct {
	Name      string `json:"name" validate:"required,max=128"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
}
