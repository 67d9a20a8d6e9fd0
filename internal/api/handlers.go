package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JustJay7/courtlight/internal/cache"
	"github.com/JustJay7/courtlight/internal/database"
	"github.com/JustJay7/courtlight/internal/scraper"
	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	exportBatchSize = 500
)

// Handlers serves the read-only admin view of the store.
type Handlers struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *logger.Logger
}

func NewHandlers(db *gorm.DB, cache cache.Cache, logger *logger.Logger) *Handlers {
	return &Handlers{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// judgementFilter is the set of list/export filters taken from the query
// string. Text filters are substring matches.
type judgementFilter struct {
	From       *time.Time
	To         *time.Time
	Judge      string
	CaseNumber string
	Party      string
	Query      string
}

func parseFilter(c *gin.Context) (judgementFilter, error) {
	f := judgementFilter{
		Judge:      strings.TrimSpace(c.Query("judge")),
		CaseNumber: strings.TrimSpace(c.Query("case_number")),
		Party:      strings.TrimSpace(c.Query("party")),
		Query:      strings.TrimSpace(c.Query("q")),
	}
	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		t, err := time.Parse(scraper.DateLayout, raw)
		if err != nil {
			return f, fmt.Errorf("invalid %s date %q, expected dd/mm/yyyy", key, raw)
		}
		*dst = &t
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return f, errors.New("from date is after to date")
	}
	return f, nil
}

func like(s string) string {
	return "%" + s + "%"
}

func (h *Handlers) filtered(f judgementFilter) *gorm.DB {
	q := h.db.Model(&database.Judgement{})
	if f.From != nil {
		q = q.Where("judgements.date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("judgements.date < ?", f.To.AddDate(0, 0, 1))
	}
	if f.Judge != "" {
		q = q.Where("judgements.id IN (?)", h.db.Table("judgement_authorship").
			Select("judgement_authorship.judgement_id").
			Joins("JOIN judges ON judges.id = judgement_authorship.judge_id").
			Where("judges.name LIKE ?", like(f.Judge)))
	}
	if f.CaseNumber != "" {
		q = q.Where("judgements.id IN (?)", h.db.Model(&database.Case{}).
			Select("judgement_id").
			Where("case_number LIKE ?", like(f.CaseNumber)))
	}
	if f.Party != "" {
		q = q.Where("judgements.id IN (?)", h.db.Model(&database.Case{}).
			Select("judgement_id").
			Where("party LIKE ?", like(f.Party)))
	}
	if f.Query != "" {
		q = q.Where("judgements.text_content LIKE ?", like(f.Query))
	}
	return q
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func (h *Handlers) serverError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "error", err, "path", c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   msg,
	})
}

// ListJudgements returns one page of judgements, newest first, without
// their text.
func (h *Handlers) ListJudgements(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	var total int64
	if err := h.filtered(f).Count(&total).Error; err != nil {
		h.serverError(c, "Failed to count judgements", err)
		return
	}

	var judgements []database.Judgement
	if err := h.filtered(f).
		Omit("text_content").
		Preload("Judges").
		Preload("Cases").
		Order("judgements.date DESC, judgements.id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&judgements).Error; err != nil {
		h.serverError(c, "Failed to list judgements", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    judgements,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetJudgement returns one judgement with its text, authors and cases.
func (h *Handlers) GetJudgement(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		badRequest(c, errors.New("invalid judgement id"))
		return
	}

	key := cache.JudgementKey(uint(id))
	if j, found := h.cache.Get(key); found {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"data":      j,
			"fromCache": true,
		})
		return
	}

	var j database.Judgement
	err = h.db.Preload("Judges").Preload("Cases").First(&j, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Judgement not found",
		})
		return
	}
	if err != nil {
		h.serverError(c, "Failed to load judgement", err)
		return
	}

	h.cache.Set(key, &j)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"data":      &j,
		"fromCache": false,
	})
}

// ExportJudgements streams every matching judgement as CSV.
func (h *Handlers) ExportJudgements(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="judgements.csv"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"date", "pdf_link", "judges", "case_numbers", "parties", "text_content_hash"})

	var batch []database.Judgement
	err = h.filtered(f).
		Omit("text_content").
		Preload("Judges").
		Preload("Cases").
		FindInBatches(&batch, exportBatchSize, func(tx *gorm.DB, _ int) error {
			for _, j := range batch {
				if err := w.Write(exportRow(&j)); err != nil {
					return err
				}
			}
			w.Flush()
			return w.Error()
		}).Error
	w.Flush()
	if err != nil {
		// Headers are gone; the truncated body is all the client gets.
		h.logger.Error("Failed to export judgements", "error", err)
	}
}

func exportRow(j *database.Judgement) []string {
	var judges, numbers, parties []string
	for _, judge := range j.Judges {
		judges = append(judges, judge.Name)
	}
	for _, c := range j.Cases {
		numbers = append(numbers, c.CaseNumber)
		parties = append(parties, c.Party)
	}
	hash := ""
	if j.TextContentHash != nil {
		hash = *j.TextContentHash
	}
	return []string{
		j.Date.Format(scraper.DateLayout),
		j.PDFLink,
		strings.Join(judges, "; "),
		strings.Join(numbers, "; "),
		strings.Join(parties, "; "),
		hash,
	}
}

type judgeCount struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	Judgements int64  `json:"judgements"`
}

// ListJudges returns every judge with the number of judgements they authored.
func (h *Handlers) ListJudges(c *gin.Context) {
	var judges []judgeCount
	if err := h.db.Table("judges").
		Select("judges.id, judges.name, COUNT(judgement_authorship.judgement_id) AS judgements").
		Joins("LEFT JOIN judgement_authorship ON judgement_authorship.judge_id = judges.id").
		Group("judges.id, judges.name").
		Order("judges.name ASC").
		Scan(&judges).Error; err != nil {
		h.serverError(c, "Failed to list judges", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    judges,
	})
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	dbHealthy := false
	if sqlDB, err := h.db.DB(); err == nil {
		dbHealthy = sqlDB.PingContext(c.Request.Context()) == nil
	}

	var pending int64
	h.db.Model(&database.Judgement{}).Where("text_content IS NULL").Count(&pending)

	var lastRun database.ScrapeRun
	lastRunAt := ""
	if err := h.db.Order("started_at DESC").Limit(1).Find(&lastRun).Error; err == nil && lastRun.ID != 0 {
		lastRunAt = lastRun.FinishedAt.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"database":        dbHealthy,
		"pending_content": pending,
		"last_run":        lastRunAt,
		"cache":           h.cache.Stats(),
		"time":            time.Now().Unix(),
	})
}

// CacheStats returns cache statistics
func (h *Handlers) CacheStats(c *gin.Context) {
	stats := h.cache.Stats()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}
