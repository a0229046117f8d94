package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docguard/internal/rag"
	"docguard/internal/risk"
)

const loanText = "The Lender may accelerate this loan and declare the entire balance immediately due and payable upon default."

func TestRiskService_ScanText(t *testing.T) {
	gen := &stubGenerator{answer: `{"found": true, "clause_text": "declare the entire balance immediately due", "analysis": "one miss and it is all due"}`}
	svc := NewRiskService(risk.NewKnowledgeBase("", nil), risk.NewScanner(gen, 0, 2, nil), nil, nil)

	report, err := svc.ScanText(context.Background(), loanText)
	require.NoError(t, err)
	require.NotEmpty(t, report)
	assert.Equal(t, "Acceleration Clause", report[0].RiskName)
	assert.True(t, report[0].Found)
	assert.NotEmpty(t, gen.prompts)

	_, err = svc.ScanText(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrTextEmpty)
}

func TestRiskService_KnowledgeBaseUnavailable(t *testing.T) {
	kb := risk.NewKnowledgeBase(filepath.Join(t.TempDir(), "missing.md"), nil)
	svc := NewRiskService(kb, risk.NewScanner(&stubGenerator{}, 0, 1, nil), nil, nil)

	_, err := svc.ScanText(context.Background(), loanText)
	assert.ErrorIs(t, err, ErrKnowledgeBaseUnavailable)
}

func TestRiskService_ScanDocument(t *testing.T) {
	f := newFixture(t, nil, nil)
	gen := &stubGenerator{answer: `{"found": false}`}
	svc := NewRiskService(risk.NewKnowledgeBase("", nil), risk.NewScanner(gen, 0, 1, nil), f.docs, nil)

	doc := f.upload(t, "loan.txt", loanText)
	report, err := svc.ScanDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	for _, finding := range report {
		assert.False(t, finding.Found)
		assert.Empty(t, finding.Error)
	}

	_, err = svc.ScanDocument(context.Background(), 4242)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	// stored file emptied after upload
	require.NoError(t, os.WriteFile(doc.FilePath, []byte(strings.Repeat(" ", 10)), 0o644))
	_, err = svc.ScanDocument(context.Background(), doc.ID)
	assert.ErrorIs(t, err, rag.ErrEmptyDocument)
}
