package models

// MaseChapter is one chapter of the MASE referential (read-only).
type MaseChapter struct {
	ID        string `db:"id" json:"id"`
	AxisLabel string `db:"axis_label" json:"axis_label"`
	Number    string `db:"number" json:"number"`
	Title     string `db:"title" json:"title"`
}

// MaseCriterion is one scoring criterion within a chapter.
type MaseCriterion struct {
	ID          string `db:"id" json:"id"`
	ChapterID   string `db:"chapter_id" json:"chapter_id"`
	Description string `db:"description" json:"description"`
	MaxPoints   int    `db:"max_points" json:"max_points"`
}

// KeyDocument is a document the referential requires for an axis.
type KeyDocument struct {
	ID        string `db:"id" json:"id"`
	AxisLabel string `db:"axis_label" json:"axis_label"`
	Name      string `db:"name" json:"name"`
	Mandatory bool   `db:"mandatory" json:"mandatory"`
}

// KeyDocumentContent is the template content backing a key document.
type KeyDocumentContent struct {
	ID            string `db:"id" json:"id"`
	KeyDocumentID string `db:"key_document_id" json:"key_document_id"`
	Section       string `db:"section" json:"section"`
	Content       string `db:"content" json:"content"`
	Position      int    `db:"position" json:"position"`
}
