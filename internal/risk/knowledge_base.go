package risk

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
)

//go:embed risks.md
var defaultCorpus string

const (
	labelDescription = "- **Description:**"
	labelHarm        = "- **Why it's harmful:**"
	labelKeywords    = "- **Keywords to find:**"
)

var blockSplitter = regexp.MustCompile(`\n# Risk:\s*`)

// Definition is one named risk pattern from the corpus.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Harm        string `json:"harm"`
	RawKeywords string `json:"raw_keywords"`
}

// Parse reads risk blocks out of a markdown corpus. Text before the first
// "# Risk:" heading is ignored, as are blocks without a name or description.
// Keywords are kept raw; see ParseKeywords.
func Parse(content string) []Definition {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	blocks := blockSplitter.Split("\n"+content, -1)

	defs := make([]Definition, 0, len(blocks))
	for _, block := range blocks[1:] {
		lines := strings.Split(block, "\n")
		def := Definition{Name: strings.TrimSpace(lines[0])}
		for _, line := range lines[1:] {
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, labelDescription):
				def.Description = strings.TrimSpace(strings.TrimPrefix(line, labelDescription))
			case strings.HasPrefix(line, labelHarm):
				def.Harm = strings.TrimSpace(strings.TrimPrefix(line, labelHarm))
			case strings.HasPrefix(line, labelKeywords):
				def.RawKeywords = strings.TrimSpace(strings.TrimPrefix(line, labelKeywords))
			}
		}
		if def.Name == "" || def.Description == "" {
			continue
		}
		defs = append(defs, def)
	}
	return defs
}

// ParseKeywords splits a comma separated keyword line into lowercase terms.
func ParseKeywords(raw string) []string {
	raw = strings.NewReplacer(`"`, "", "“", "", "”", "").Replace(raw)
	var out []string
	for _, kw := range strings.Split(raw, ",") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// KnowledgeBase loads the corpus on first use and serves the parsed
// definitions afterwards. An empty path selects the built-in corpus.
type KnowledgeBase struct {
	path string
	log  *zap.Logger

	once sync.Once
	defs []Definition
	err  error
}

func NewKnowledgeBase(path string, log *zap.Logger) *KnowledgeBase {
	if log == nil {
		log = zap.NewNop()
	}
	return &KnowledgeBase{path: path, log: log}
}

// Definitions returns the parsed corpus. A missing or unreadable source
// yields an empty list; the cause is logged once and kept in Err.
func (kb *KnowledgeBase) Definitions() []Definition {
	kb.once.Do(kb.load)
	return kb.defs
}

func (kb *KnowledgeBase) Err() error {
	kb.once.Do(kb.load)
	return kb.err
}

func (kb *KnowledgeBase) load() {
	content := defaultCorpus
	source := "embedded"
	if kb.path != "" {
		source = kb.path
		data, err := os.ReadFile(kb.path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = ErrNoCorpus
			}
			kb.err = fmt.Errorf("load risk corpus %s failed: %w", kb.path, err)
			kb.log.Error("risk knowledge base unavailable", zap.String("source", source), zap.Error(kb.err))
			return
		}
		content = string(data)
	}

	kb.defs = Parse(content)
	kb.log.Info("risk knowledge base loaded", zap.String("source", source), zap.Int("definitions", len(kb.defs)))
}
