package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/storage"
)

type weekSource interface {
	Week(ctx context.Context, week string) (*WeekView, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(format export.Format, data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       export.Format
	ExpiresAt    time.Time
}

// ExportFile is a rendered week grid ready to be sent as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders week grids and persists rendered files for download.
type ExportService struct {
	weeks    weekSource
	storage  fileStorage
	renderer datasetRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(weeks weekSource, files fileStorage, signer *storage.SignedURLSigner, renderer datasetRenderer, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if renderer == nil {
		renderer = export.NewRenderer()
	}
	return &ExportService{
		weeks:    weeks,
		storage:  files,
		renderer: renderer,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// RenderWeek renders a week grid synchronously.
func (s *ExportService) RenderWeek(ctx context.Context, week string, query dto.WeekExportQuery) (*ExportFile, error) {
	format, err := export.ParseFormat(query.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	view := parseExportView(query.View)
	payload, key, err := s.render(ctx, week, view, query.TargetID, format)
	if err != nil {
		return nil, err
	}
	return &ExportFile{
		Filename:    buildExportFilename(key, view, query.TargetID, format),
		ContentType: format.ContentType(),
		Body:        payload,
	}, nil
}

// Generate renders an export job and stores the file behind a signed token.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	format, err := export.ParseFormat(job.Params.Format)
	if err != nil {
		return nil, err
	}
	view := parseExportView(string(job.Params.View))
	payload, key, err := s.render(ctx, job.Params.Week, view, job.Params.TargetID, format)
	if err != nil {
		return nil, err
	}

	filename := job.ID + "/" + buildExportFilename(key, view, job.Params.TargetID, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download?token=%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *ExportService) render(ctx context.Context, week string, view models.ExportView, targetID string, format export.Format) ([]byte, string, error) {
	snapshot, err := s.weeks.Week(ctx, week)
	if err != nil {
		return nil, "", err
	}
	dataset, title := BuildWeekDataset(snapshot, view, targetID)
	payload, err := s.renderer.Render(format, dataset, title)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Debug("week rendered",
		zap.String("week", snapshot.WeekStart),
		zap.String("view", string(view)),
		zap.String("format", string(format)),
		zap.Int("rows", len(dataset.Rows)),
	)
	return payload, snapshot.WeekStart, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func parseExportView(raw string) models.ExportView {
	if models.ExportView(strings.ToLower(raw)) == models.ExportViewTeacher {
		return models.ExportViewTeacher
	}
	return models.ExportViewBatch
}

func buildExportFilename(week string, view models.ExportView, targetID string, format export.Format) string {
	parts := []string{"timetable", week, string(view)}
	if targetID != "" {
		parts = append(parts, sanitizeFilename(targetID))
	}
	return strings.Join(parts, "_") + "." + format.Extension()
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

type gridGroup struct {
	id    string
	name  string
	cells map[string][]string
}

func (g *gridGroup) add(day string, period int, label string) {
	key := gridKey(day, period)
	g.cells[key] = append(g.cells[key], label)
}

func gridKey(day string, period int) string {
	return day + "|" + strconv.Itoa(period)
}

// BuildWeekDataset pivots a week into a period × day grid. Without a target every
// batch (or teacher) gets its own block of rows, tagged in a leading column. Break
// rows follow the period they come after.
func BuildWeekDataset(week *WeekView, view models.ExportView, targetID string) (export.Dataset, string) {
	groups := groupWeekEntries(week, view)
	label := "Batch"
	if view == models.ExportViewTeacher {
		label = "Teacher"
	}

	single := targetID != ""
	if single {
		var target *gridGroup
		for _, g := range groups {
			if g.id == targetID {
				target = g
				break
			}
		}
		if target == nil {
			target = &gridGroup{id: targetID, name: lookupGroupName(week, view, targetID), cells: map[string][]string{}}
		}
		groups = []*gridGroup{target}
	}

	days := week.Structure.WorkingDays
	headers := make([]string, 0, len(days)+3)
	if !single {
		headers = append(headers, label)
	}
	headers = append(headers, "Period", "Time")
	headers = append(headers, days...)

	breaks := make(map[int]models.Break, len(week.Structure.Breaks))
	for _, b := range week.Structure.Breaks {
		breaks[b.AfterPeriod] = b
	}

	rows := make([]map[string]string, 0, len(groups)*week.Structure.PeriodsPerDay)
	for _, g := range groups {
		for p := 1; p <= week.Structure.PeriodsPerDay; p++ {
			row := map[string]string{
				"Period": strconv.Itoa(p),
				"Time":   periodWindow(week.TimeMapping, p),
			}
			if !single {
				row[label] = g.name
			}
			for _, day := range days {
				row[day] = strings.Join(g.cells[gridKey(day, p)], "\n")
			}
			rows = append(rows, row)

			if b, ok := breaks[p]; ok && p < week.Structure.PeriodsPerDay {
				breakRow := map[string]string{"Period": b.Name, "Time": breakWindow(week.TimeMapping, p)}
				if !single {
					breakRow[label] = g.name
				}
				rows = append(rows, breakRow)
			}
		}
	}

	title := fmt.Sprintf("Timetable, week of %s", week.WeekStart)
	if single {
		title = fmt.Sprintf("Timetable %s, week of %s", groups[0].name, week.WeekStart)
	}
	return export.Dataset{Headers: headers, Rows: rows}, title
}

func groupWeekEntries(week *WeekView, view models.ExportView) []*gridGroup {
	index := make(map[string]*gridGroup)
	order := make([]*gridGroup, 0)
	get := func(id, name string) *gridGroup {
		if g, ok := index[id]; ok {
			return g
		}
		g := &gridGroup{id: id, name: name, cells: map[string][]string{}}
		index[id] = g
		order = append(order, g)
		return g
	}

	if view == models.ExportViewTeacher {
		for _, load := range week.Roster {
			get(load.TeacherID, nameOr(load.TeacherName, load.TeacherID))
		}
	}

	for _, e := range week.Entries {
		subject := nameOr(e.SubjectName, e.SubjectID)
		teacher := nameOr(e.TeacherName, e.TeacherID)
		var substitute string
		if e.IsSubstituted && e.SubstituteTeacherID != nil {
			substitute = *e.SubstituteTeacherID
			if e.SubstituteTeacherName != nil && *e.SubstituteTeacherName != "" {
				substitute = *e.SubstituteTeacherName
			}
		}

		if view == models.ExportViewTeacher {
			cell := subject + "\n" + nameOr(e.BatchName, e.BatchID)
			if substitute != "" {
				get(e.TeacherID, teacher).add(e.Day, e.PeriodNumber, cell+"\ncovered by "+substitute)
				get(*e.SubstituteTeacherID, substitute).add(e.Day, e.PeriodNumber, cell+"\nsubstituting "+teacher)
				continue
			}
			get(e.TeacherID, teacher).add(e.Day, e.PeriodNumber, cell)
			continue
		}

		cell := subject + "\n" + teacher
		if substitute != "" {
			cell = subject + "\n" + substitute + " (sub)"
		}
		if e.FacilityName != nil && *e.FacilityName != "" {
			cell += "\n" + *e.FacilityName
		}
		get(e.BatchID, nameOr(e.BatchName, e.BatchID)).add(e.Day, e.PeriodNumber, cell)
	}

	if view != models.ExportViewTeacher {
		sort.SliceStable(order, func(i, j int) bool {
			if order[i].name != order[j].name {
				return order[i].name < order[j].name
			}
			return order[i].id < order[j].id
		})
	}
	return order
}

func lookupGroupName(week *WeekView, view models.ExportView, id string) string {
	for _, load := range week.Roster {
		if view == models.ExportViewTeacher && load.TeacherID == id {
			return nameOr(load.TeacherName, id)
		}
		if view != models.ExportViewTeacher {
			for _, ab := range load.AllowedBatches {
				if ab.BatchID == id {
					return nameOr(ab.BatchName, id)
				}
			}
		}
	}
	return id
}

func periodWindow(mapping map[int]models.PeriodTime, period int) string {
	t, ok := mapping[period]
	if !ok {
		return ""
	}
	return t.StartTime + "-" + t.EndTime
}

func breakWindow(mapping map[int]models.PeriodTime, after int) string {
	before, ok := mapping[after]
	next, nextOK := mapping[after+1]
	if !ok || !nextOK {
		return ""
	}
	return before.EndTime + "-" + next.StartTime
}

func nameOr(name, id string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return id
}
