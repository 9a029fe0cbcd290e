package artifacts

import "github.com/alejandroruanova/phoneclean-service/internal/core/domain"

// Content types of rendered artifacts
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeText = "text/plain; charset=utf-8"
)

// SheetName is the worksheet written to cleaned workbooks
const SheetName = "Cleaned"

// ReportFilename is the download name of the text report
const ReportFilename = "cleaning_report.txt"

// Artifact is a rendered, downloadable file
type Artifact struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Size returns the artifact size in bytes
func (a *Artifact) Size() int {
	return len(a.Data)
}

// Renderer defines the interface for artifact generation
type Renderer interface {
	// RenderFile renders the cleaned table in the session's source format
	RenderFile(result *domain.CleaningResult) (*Artifact, error)

	// RenderReport renders the plain-text cleaning summary
	RenderReport(result *domain.CleaningResult) (*Artifact, error)
}
