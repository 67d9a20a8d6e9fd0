package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/JustJay7/courtlight/pkg/logger"
	"gorm.io/gorm"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

const authorshipTable = "judgement_authorship"

// Content is what the content pass learns about one judgement.
type Content struct {
	Text         string
	TextHash     string
	DocumentHash string
}

// Repository is a unit of work over the store. Nothing it writes is visible
// to other connections until Commit.
type Repository interface {
	FindJudgeByName(ctx context.Context, name string) (*Judge, error)
	CreateJudge(ctx context.Context, judge *Judge) error

	FindJudgementByReferenceURL(ctx context.Context, referenceURL string) (*Judgement, error)
	FindJudgementByTextHash(ctx context.Context, hash string) (*Judgement, error)
	CreateJudgement(ctx context.Context, judgement *Judgement) error
	// AppendAuthor adds judge to the judgement's authors and reports whether
	// an edge was created. Existing edges are left alone.
	AppendAuthor(ctx context.Context, judgement *Judgement, judge *Judge) (bool, error)
	SetJudgementContent(ctx context.Context, judgementID uint, content Content) error
	DeleteJudgement(ctx context.Context, judgementID uint) error

	FindCaseByNumber(ctx context.Context, caseNumber string) (*Case, error)
	CasesOfJudgement(ctx context.Context, judgementID uint) ([]Case, error)
	CreateCase(ctx context.Context, c *Case) error
	ReassignCase(ctx context.Context, caseID, judgementID uint) error

	Commit() error
	Rollback() error
}

// Store owns the database handle and opens units of work on it.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStore(db *gorm.DB, baseLog *logger.Logger) *Store {
	return &Store{db: db, log: baseLog.With("component", "store")}
}

// DB exposes the handle for read-only consumers such as the admin API.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Begin opens a unit of work backed by a database transaction.
func (s *Store) Begin(ctx context.Context) (Repository, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	return &unitOfWork{tx: tx, log: s.log}, nil
}

// JudgementsMissingContent lists judgements the content pass has not reached,
// oldest decision first.
func (s *Store) JudgementsMissingContent(ctx context.Context) ([]Judgement, error) {
	var judgements []Judgement
	if err := s.db.WithContext(ctx).
		Where("text_content IS NULL").
		Order("date ASC, id ASC").
		Find(&judgements).Error; err != nil {
		return nil, fmt.Errorf("list judgements missing content: %w", err)
	}
	return judgements, nil
}

// RecordRun stores the audit row of a finished run.
func (s *Store) RecordRun(ctx context.Context, run *ScrapeRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	return nil
}

type unitOfWork struct {
	tx   *gorm.DB
	log  *logger.Logger
	done bool
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (u *unitOfWork) FindJudgeByName(ctx context.Context, name string) (*Judge, error) {
	var judge Judge
	if err := u.tx.WithContext(ctx).Where("name = ?", name).First(&judge).Error; err != nil {
		return nil, notFound(err)
	}
	return &judge, nil
}

func (u *unitOfWork) CreateJudge(ctx context.Context, judge *Judge) error {
	if err := u.tx.WithContext(ctx).Create(judge).Error; err != nil {
		return fmt.Errorf("create judge %q: %w", judge.Name, err)
	}
	return nil
}

func (u *unitOfWork) FindJudgementByReferenceURL(ctx context.Context, referenceURL string) (*Judgement, error) {
	var judgement Judgement
	if err := u.tx.WithContext(ctx).
		Preload("Judges").
		Where("pdf_link = ?", referenceURL).
		First(&judgement).Error; err != nil {
		return nil, notFound(err)
	}
	return &judgement, nil
}

func (u *unitOfWork) FindJudgementByTextHash(ctx context.Context, hash string) (*Judgement, error) {
	var judgement Judgement
	if err := u.tx.WithContext(ctx).
		Where("text_content_hash = ?", hash).
		Order("id ASC").
		First(&judgement).Error; err != nil {
		return nil, notFound(err)
	}
	return &judgement, nil
}

func (u *unitOfWork) CreateJudgement(ctx context.Context, judgement *Judgement) error {
	// Authors are existing rows; only the join entries are written.
	if err := u.tx.WithContext(ctx).Omit("Judges.*").Create(judgement).Error; err != nil {
		return fmt.Errorf("create judgement %s: %w", judgement.PDFLink, err)
	}
	return nil
}

func (u *unitOfWork) AppendAuthor(ctx context.Context, judgement *Judgement, judge *Judge) (bool, error) {
	var n int64
	if err := u.tx.WithContext(ctx).
		Table(authorshipTable).
		Where("judgement_id = ? AND judge_id = ?", judgement.ID, judge.ID).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("check authorship: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	if err := u.tx.WithContext(ctx).Table(authorshipTable).Create(map[string]interface{}{
		"judgement_id": judgement.ID,
		"judge_id":     judge.ID,
	}).Error; err != nil {
		return false, fmt.Errorf("append author %q to judgement %d: %w", judge.Name, judgement.ID, err)
	}
	judgement.Judges = append(judgement.Judges, judge)
	return true, nil
}

func (u *unitOfWork) SetJudgementContent(ctx context.Context, judgementID uint, content Content) error {
	updates := map[string]interface{}{
		"text_content":      content.Text,
		"text_content_hash": content.TextHash,
	}
	if content.DocumentHash != "" {
		updates["document_hash"] = content.DocumentHash
	}

	res := u.tx.WithContext(ctx).Model(&Judgement{}).Where("id = ?", judgementID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("set content of judgement %d: %w", judgementID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("set content of judgement %d: %w", judgementID, ErrNotFound)
	}
	return nil
}

// DeleteJudgement removes a judgement and its authorship edges. The judgement
// must no longer own any case.
func (u *unitOfWork) DeleteJudgement(ctx context.Context, judgementID uint) error {
	var owned int64
	if err := u.tx.WithContext(ctx).Model(&Case{}).Where("judgement_id = ?", judgementID).Count(&owned).Error; err != nil {
		return fmt.Errorf("count cases of judgement %d: %w", judgementID, err)
	}
	if owned > 0 {
		return fmt.Errorf("delete judgement %d: still owns %d cases", judgementID, owned)
	}

	if err := u.tx.WithContext(ctx).Exec("DELETE FROM "+authorshipTable+" WHERE judgement_id = ?", judgementID).Error; err != nil {
		return fmt.Errorf("delete authorship of judgement %d: %w", judgementID, err)
	}

	res := u.tx.WithContext(ctx).Delete(&Judgement{}, judgementID)
	if res.Error != nil {
		return fmt.Errorf("delete judgement %d: %w", judgementID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete judgement %d: %w", judgementID, ErrNotFound)
	}
	return nil
}

func (u *unitOfWork) FindCaseByNumber(ctx context.Context, caseNumber string) (*Case, error) {
	var c Case
	if err := u.tx.WithContext(ctx).Where("case_number = ?", caseNumber).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (u *unitOfWork) CasesOfJudgement(ctx context.Context, judgementID uint) ([]Case, error) {
	var cases []Case
	if err := u.tx.WithContext(ctx).
		Where("judgement_id = ?", judgementID).
		Order("id ASC").
		Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("list cases of judgement %d: %w", judgementID, err)
	}
	return cases, nil
}

func (u *unitOfWork) CreateCase(ctx context.Context, c *Case) error {
	if err := u.tx.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create case %s: %w", c.CaseNumber, err)
	}
	return nil
}

func (u *unitOfWork) ReassignCase(ctx context.Context, caseID, judgementID uint) error {
	var target int64
	if err := u.tx.WithContext(ctx).Model(&Judgement{}).Where("id = ?", judgementID).Count(&target).Error; err != nil {
		return fmt.Errorf("reassign case %d: %w", caseID, err)
	}
	if target == 0 {
		return fmt.Errorf("reassign case %d: target judgement %d: %w", caseID, judgementID, ErrNotFound)
	}

	res := u.tx.WithContext(ctx).Model(&Case{}).Where("id = ?", caseID).Update("judgement_id", judgementID)
	if res.Error != nil {
		return fmt.Errorf("reassign case %d: %w", caseID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("reassign case %d: %w", caseID, ErrNotFound)
	}
	return nil
}

func (u *unitOfWork) Commit() error {
	if u.done {
		return errors.New("unit of work already finished")
	}
	u.done = true
	if err := u.tx.Commit().Error; err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the unit. It is a no-op after Commit so it can be deferred.
func (u *unitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback().Error; err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
