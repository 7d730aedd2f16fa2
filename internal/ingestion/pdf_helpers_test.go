package ingestion

import "github.com/jonathan/cv-ingest/internal/ingestion/pdftest"

func buildTestPDF(pages ...string) []byte {
	return pdftest.Build(pages...)
}
