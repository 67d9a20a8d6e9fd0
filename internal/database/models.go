package database

import (
	"time"
)

// Judge is the author of judgements and the unit of crawl isolation.
type Judge struct {
	ID         uint         `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time    `json:"created_at"`
	Name       string       `json:"name" gorm:"uniqueIndex;not null"`
	Judgements []*Judgement `json:"-" gorm:"many2many:judgement_authorship;"`
}

// Judgement is a document published by the portal, keyed by its reference URL.
// TextContent and TextContentHash stay nil until the content pass has run.
type Judgement struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	PDFLink         string    `json:"pdf_link" gorm:"column:pdf_link;uniqueIndex;not null"`
	Date            time.Time `json:"date" gorm:"index"`
	TextContent     *string   `json:"text_content,omitempty" gorm:"type:text"`
	TextContentHash *string   `json:"text_content_hash,omitempty" gorm:"index"`
	DocumentHash    *string   `json:"document_hash,omitempty"`
	Judges          []*Judge  `json:"judges,omitempty" gorm:"many2many:judgement_authorship;"`
	Cases           []Case    `json:"cases,omitempty" gorm:"foreignKey:JudgementID"`
}

// HasContent reports whether the content pass has populated this judgement.
func (j *Judgement) HasContent() bool {
	return j.TextContent != nil
}

// Case is a portal case number attached to exactly one judgement.
type Case struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CaseNumber  string    `json:"case_number" gorm:"uniqueIndex;not null"`
	Party       string    `json:"party"`
	JudgementID uint      `json:"judgement_id" gorm:"index;not null"`
}

// ScrapeRun is the audit record of one CLI run, written after its final commit
// or rollback.
type ScrapeRun struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	RunID        string    `json:"run_id" gorm:"uniqueIndex"`
	Kind         string    `json:"kind" gorm:"index"`
	FromDate     string    `json:"from_date"`
	ToDate       string    `json:"to_date"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Entities     int       `json:"entities"`
	Records      int       `json:"records"`
	Documents    int       `json:"documents"`
	Duplicates   int       `json:"duplicates"`
	Failures     int       `json:"failures"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message"`
}

const (
	RunKindScrapeCases      = "scrape-cases"
	RunKindPopulateContents = "populate-contents"
)

func (Judge) TableName() string {
	return "judges"
}

func (Judgement) TableName() string {
	return "judgements"
}

func (Case) TableName() string {
	return "cases"
}

func (ScrapeRun) TableName() string {
	return "scrape_runs"
}
