package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"

	"github.com/ensayo-paes/practice-service/internal/models"
	"github.com/ensayo-paes/practice-service/internal/repositories"
	"github.com/ensayo-paes/practice-service/internal/validator"
)

const (
	questionSheet    = "Preguntas"
	readingTextSheet = "Textos"

	importBatchSize = 500
)

type questionService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator) QuestionService {
	return &questionService{
		repo:      repo,
		logger:    logger,
		validator: v,
	}
}

func (s *questionService) List(ctx context.Context, filters repositories.QuestionFilters) (*QuestionListResponse, error) {
	questions, total, err := s.repo.Question().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	page := 1
	size := len(questions)
	if filters.Limit > 0 {
		size = filters.Limit
		page = filters.Offset/filters.Limit + 1
	}

	return &QuestionListResponse{
		Questions: questions,
		Total:     total,
		Page:      page,
		Size:      size,
	}, nil
}

// ImportXLSX loads questions (and optionally reading texts) from a
// workbook. Invalid rows are skipped and reported, valid rows are
// inserted; a workbook with no usable rows is an error.
func (s *questionService) ImportXLSX(ctx context.Context, file io.Reader, importerID string) (*ImportResult, error) {
	start := time.Now()

	workbook, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportInvalidFormat, err)
	}
	defer workbook.Close()

	result := &ImportResult{}

	questions, err := s.parseQuestionSheet(workbook, result)
	if err != nil {
		return nil, err
	}
	texts := s.parseReadingTextSheet(workbook, result)

	if len(questions) == 0 {
		return nil, ErrImportEmptyFile
	}

	for _, text := range texts {
		if err := s.repo.ReadingText().Create(ctx, &text); err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("reading text %s: %v", text.ID, err))
			continue
		}
		result.TextsImported++
	}

	for offset := 0; offset < len(questions); offset += importBatchSize {
		end := offset + importBatchSize
		if end > len(questions) {
			end = len(questions)
		}
		if err := s.repo.Question().CreateBatch(ctx, questions[offset:end]); err != nil {
			return nil, fmt.Errorf("failed to insert question batch: %w", err)
		}
		result.QuestionsImported += end - offset
	}

	result.Duration = time.Since(start).String()

	s.logger.Info("Question import completed",
		"importer_id", importerID,
		"questions", result.QuestionsImported,
		"texts", result.TextsImported,
		"skipped", len(result.SkippedRows),
		"duration", result.Duration)

	return result, nil
}

func (s *questionService) parseQuestionSheet(workbook *excelize.File, result *ImportResult) ([]models.Question, error) {
	sheet := questionSheet
	if idx, _ := workbook.GetSheetIndex(sheet); idx < 0 {
		// Fall back to the first sheet when the canonical name is absent.
		sheet = workbook.GetSheetName(0)
	}

	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportInvalidFormat, err)
	}
	if len(rows) < 2 {
		return nil, ErrImportEmptyFile
	}

	cols := columnIndex(rows[0])
	for _, required := range []string{"id", "subject", "content", "option_a", "option_b", "correct_answer"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrImportInvalidFormat, required)
		}
	}

	var questions []models.Question
	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header
		q, problem := parseQuestionRow(row, cols)
		if problem != "" {
			result.SkippedRows = append(result.SkippedRows, rowNum)
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: %s", rowNum, problem))
			continue
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func parseQuestionRow(row []string, cols map[string]int) (models.Question, string) {
	get := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	q := models.Question{
		ID:      get("id"),
		Subject: models.Subject(strings.ToLower(get("subject"))),
		Content: get("content"),
	}
	if q.ID == "" {
		return q, "empty id"
	}
	if q.Content == "" {
		return q, "empty content"
	}
	switch q.Subject {
	case models.SubjectLenguaje, models.SubjectMatematica, models.SubjectHistoria, models.SubjectCiencias:
	default:
		return q, fmt.Sprintf("unknown subject %q", q.Subject)
	}

	options := make(map[string]string)
	for _, letter := range []string{"a", "b", "c", "d", "e"} {
		if text := get("option_" + letter); text != "" {
			options[strings.ToUpper(letter)] = text
		}
	}
	if len(options) < 2 {
		return q, "fewer than two options"
	}
	q.Options = datatypes.NewJSONType(options)

	q.CorrectAnswer = strings.ToUpper(get("correct_answer"))
	if _, ok := options[q.CorrectAnswer]; !ok {
		return q, fmt.Sprintf("correct answer %q is not an option", q.CorrectAnswer)
	}

	if v := get("explanation"); v != "" {
		q.Explanation = &v
	}
	if v := get("reading_text_id"); v != "" {
		q.ReadingTextID = &v
	}
	if v := get("question_number"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Sprintf("bad question_number %q", v)
		}
		q.QuestionNumber = n
	}
	if v := get("area_tematica"); v != "" {
		q.AreaTematica = &v
	}
	if v := get("tema"); v != "" {
		q.Tema = &v
	}
	if v := get("subtema"); v != "" {
		q.Subtema = &v
	}

	return q, ""
}

// parseReadingTextSheet is lenient: the sheet is optional and a bad row
// only produces a warning.
func (s *questionService) parseReadingTextSheet(workbook *excelize.File, result *ImportResult) []models.ReadingText {
	if idx, _ := workbook.GetSheetIndex(readingTextSheet); idx < 0 {
		return nil
	}

	rows, err := workbook.GetRows(readingTextSheet)
	if err != nil || len(rows) < 2 {
		return nil
	}

	cols := columnIndex(rows[0])
	var texts []models.ReadingText
	for i, row := range rows[1:] {
		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		text := models.ReadingText{
			ID:       get("id"),
			Title:    get("title"),
			Document: get("document"),
		}
		if text.ID == "" || text.Title == "" || text.Document == "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s row %d: incomplete reading text", readingTextSheet, i+2))
			continue
		}
		if v := get("source"); v != "" {
			text.Source = &v
		}
		text.PageStart, _ = strconv.Atoi(get("page_start"))
		text.PageEnd, _ = strconv.Atoi(get("page_end"))
		texts = append(texts, text)
	}
	return texts
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}
