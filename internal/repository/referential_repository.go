package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/masedocs/mase-audit-api/internal/models"
)

// ReferentialRepository reads the seeded MASE referential tables. The
// referential is reference data; nothing here writes.
type ReferentialRepository struct {
	db *sqlx.DB
}

// NewReferentialRepository creates a referential repository.
func NewReferentialRepository(db *sqlx.DB) *ReferentialRepository {
	return &ReferentialRepository{db: db}
}

// ListChapters returns every chapter ordered by number.
func (r *ReferentialRepository) ListChapters(ctx context.Context) ([]models.MaseChapter, error) {
	const query = `SELECT id, axis_label, number, title FROM chapitres_mase ORDER BY number ASC`
	chapters := []models.MaseChapter{}
	if err := r.db.SelectContext(ctx, &chapters, query); err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return chapters, nil
}

// ListCriteria returns the criteria of one chapter.
func (r *ReferentialRepository) ListCriteria(ctx context.Context, chapterID string) ([]models.MaseCriterion, error) {
	const query = `SELECT id, chapter_id, description, max_points FROM criteres_mase WHERE chapter_id = $1 ORDER BY id ASC`
	criteria := []models.MaseCriterion{}
	if err := r.db.SelectContext(ctx, &criteria, query, chapterID); err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	return criteria, nil
}

// ListKeyDocuments returns the key documents, optionally filtered by axis.
func (r *ReferentialRepository) ListKeyDocuments(ctx context.Context, axisLabel string) ([]models.KeyDocument, error) {
	docs := []models.KeyDocument{}
	if axisLabel == "" {
		const query = `SELECT id, axis_label, name, mandatory FROM documents_cles ORDER BY axis_label ASC, name ASC`
		if err := r.db.SelectContext(ctx, &docs, query); err != nil {
			return nil, fmt.Errorf("list key documents: %w", err)
		}
		return docs, nil
	}

	const query = `SELECT id, axis_label, name, mandatory FROM documents_cles WHERE axis_label = $1 ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &docs, query, axisLabel); err != nil {
		return nil, fmt.Errorf("list key documents by axis: %w", err)
	}
	return docs, nil
}

// ListKeyDocumentContent returns the template sections of one key document
// in position order.
func (r *ReferentialRepository) ListKeyDocumentContent(ctx context.Context, keyDocumentID string) ([]models.KeyDocumentContent, error) {
	const query = `SELECT id, key_document_id, section, content, position FROM contenu_documents_cles WHERE key_document_id = $1 ORDER BY position ASC`
	sections := []models.KeyDocumentContent{}
	if err := r.db.SelectContext(ctx, &sections, query, keyDocumentID); err != nil {
		return nil, fmt.Errorf("list key document content: %w", err)
	}
	return sections, nil
}
