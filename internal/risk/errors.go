package risk

import "errors"

var (
	ErrParse    = errors.New("AI response was not valid JSON")
	ErrNoCorpus = errors.New("risk corpus not found")
)
