package prompt

import (
	_ "embed"
	"strings"
)

//go:embed template/fallback.txt
var fallbackRaw string

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Fallback string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Fallback: strings.TrimSpace(fallbackRaw),
	}
}
