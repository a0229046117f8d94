package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"docguard/internal/rag"
	"docguard/internal/risk"
)

// DocumentTexts resolves a stored document to its plain text.
type DocumentTexts interface {
	ExtractText(id uint) (string, error)
}

type RiskService struct {
	kb      *risk.KnowledgeBase
	scanner *risk.Scanner
	docs    DocumentTexts
	log     *zap.Logger
}

func NewRiskService(kb *risk.KnowledgeBase, scanner *risk.Scanner, docs DocumentTexts, log *zap.Logger) *RiskService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RiskService{kb: kb, scanner: scanner, docs: docs, log: log}
}

// ScanText checks raw text against every known risk.
func (s *RiskService) ScanText(ctx context.Context, text string) ([]risk.Finding, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrTextEmpty
	}
	return s.scan(ctx, text)
}

// ScanDocument extracts the stored document's text and scans it.
func (s *RiskService) ScanDocument(ctx context.Context, documentID uint) ([]risk.Finding, error) {
	text, err := s.docs.ExtractText(documentID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, rag.ErrEmptyDocument
	}
	return s.scan(ctx, text)
}

func (s *RiskService) scan(ctx context.Context, text string) ([]risk.Finding, error) {
	defs := s.kb.Definitions()
	if len(defs) == 0 {
		return nil, ErrKnowledgeBaseUnavailable
	}

	report := s.scanner.Scan(ctx, text, defs)
	found := 0
	for _, f := range report {
		if f.Found {
			found++
		}
	}
	s.log.Info("risk scan finished", zap.Int("definitions", len(defs)), zap.Int("found", found))
	return report, nil
}
