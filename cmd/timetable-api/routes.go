package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

type routeHandlers struct {
	timetable   *handler.TimetableHandler
	structure   *handler.PeriodStructureHandler
	constraints *handler.TeacherConstraintHandler
	holidays    *handler.HolidayHandler
	exports     *handler.ExportHandler
	metrics     *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, h routeHandlers) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	structure := api.Group("/timetable/structure")
	structure.GET("", h.structure.Get)
	structure.PUT("", h.structure.Update)
	structure.POST("/breaks", h.structure.AddBreak)
	structure.DELETE("/breaks/:id", h.structure.RemoveBreak)
	structure.GET("/time-mapping", h.structure.TimeMapping)

	weeks := api.Group("/timetable/weeks/:week")
	weeks.GET("/entries", h.timetable.Entries)
	weeks.POST("/entries", h.timetable.Assign)
	weeks.PUT("/entries/:id", h.timetable.Replace)
	weeks.DELETE("/entries/:id", h.timetable.Remove)
	weeks.POST("/entries/:id/move", h.timetable.Move)
	weeks.POST("/entries/:id/substitute", h.timetable.Substitute)
	weeks.DELETE("/entries/:id/substitute", h.timetable.ClearSubstitution)
	weeks.POST("/import", h.timetable.Import)
	weeks.POST("/copy", h.timetable.CopyWeek)
	weeks.GET("/eligible-batches", h.timetable.EligibleBatches)
	weeks.GET("/eligible-teachers", h.timetable.EligibleTeachers)
	weeks.GET("/conflicts", h.timetable.Conflicts)
	weeks.GET("/loads", h.timetable.Loads)
	weeks.GET("/export", h.exports.ExportWeek)

	api.POST("/timetable/undo", h.timetable.Undo)
	api.POST("/timetable/redo", h.timetable.Redo)
	api.GET("/timetable/history", h.timetable.History)

	constraints := api.Group("/teachers/:id/constraints")
	constraints.GET("", h.constraints.Get)
	constraints.PUT("", h.constraints.Update)
	constraints.DELETE("", h.constraints.Reset)

	api.GET("/holidays", h.holidays.List)
	api.POST("/holidays", h.holidays.Create)
	api.POST("/holidays/import", h.holidays.Import)
	api.DELETE("/holidays/:id", h.holidays.Delete)
	api.GET("/exam-periods", h.holidays.ExamPeriods)
	api.POST("/exam-periods", h.holidays.CreateExamPeriod)

	api.POST("/exports", h.exports.CreateJob)
	api.GET("/exports/download", h.exports.Download)
	api.GET("/exports/:id", h.exports.JobStatus)
}
