package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/JustJay7/courtlight/internal/database"
	"github.com/JustJay7/courtlight/pkg/logger"
)

// Outcome is what Resolve did with a document.
type Outcome int

const (
	// Stored means the judgement received the document's text.
	Stored Outcome = iota
	// Merged means the judgement duplicated another one and was folded into it.
	Merged
)

func (o Outcome) String() string {
	if o == Merged {
		return "merged"
	}
	return "stored"
}

// Deduplicator keeps at most one judgement per text hash. Calls must be
// serialized, since two duplicates of the same survivor would otherwise race
// on its cases.
type Deduplicator struct {
	logger *logger.Logger
}

func NewDeduplicator(log *logger.Logger) *Deduplicator {
	return &Deduplicator{logger: log.With("component", "dedup")}
}

// Resolve stores doc on the judgement, or, when another judgement already
// carries the same text hash, moves the judgement's authors and cases onto
// that survivor and deletes it. Everything happens inside repo.
func (d *Deduplicator) Resolve(ctx context.Context, repo database.Repository, judgement *database.Judgement, doc *Document) (Outcome, error) {
	survivor, err := repo.FindJudgementByTextHash(ctx, doc.TextHash)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return Stored, repo.SetJudgementContent(ctx, judgement.ID, database.Content{
			Text:         doc.Text,
			TextHash:     doc.TextHash,
			DocumentHash: doc.DocumentHash,
		})
	case err != nil:
		return Stored, fmt.Errorf("look up text hash: %w", err)
	}

	if survivor.ID == judgement.ID {
		return Stored, nil
	}

	if err := d.merge(ctx, repo, judgement, survivor); err != nil {
		return Merged, err
	}
	d.logger.Info("Merged duplicate judgement",
		"duplicate", judgement.PDFLink,
		"survivor", survivor.PDFLink,
		"text_hash", doc.TextHash,
	)
	return Merged, nil
}

func (d *Deduplicator) merge(ctx context.Context, repo database.Repository, dup, survivor *database.Judgement) error {
	withAuthors, err := repo.FindJudgementByReferenceURL(ctx, dup.PDFLink)
	if err != nil {
		return fmt.Errorf("load duplicate %d: %w", dup.ID, err)
	}
	for _, judge := range withAuthors.Judges {
		if _, err := repo.AppendAuthor(ctx, survivor, judge); err != nil {
			return err
		}
	}

	cases, err := repo.CasesOfJudgement(ctx, dup.ID)
	if err != nil {
		return err
	}
	for _, c := range cases {
		if err := repo.ReassignCase(ctx, c.ID, survivor.ID); err != nil {
			return err
		}
		d.logger.Debug("Reassigned case", "case", c.CaseNumber, "from", dup.ID, "to", survivor.ID)
	}

	return repo.DeleteJudgement(ctx, dup.ID)
}
