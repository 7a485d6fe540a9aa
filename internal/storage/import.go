package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/EshelEyni/Chirper-sub001/internal/botgen"
)

// PromptFile is the on-disk format for bulk prompt seeding. JSON is accepted
// too since it is valid YAML.
//
//	prompts:
//	  - bot_id: bot-1
//	    type: poll
//	    prompt: weekend plans
type PromptFile struct {
	Prompts []PromptEntry `yaml:"prompts"`
}

type PromptEntry struct {
	BotID  string `yaml:"bot_id"`
	Type   string `yaml:"type"`
	Prompt string `yaml:"prompt"`
}

// ImportReport summarizes an import run.
type ImportReport struct {
	Added      int
	Duplicates int
}

// ImportPromptsFile reads path and adds its prompts to st.
func ImportPromptsFile(ctx context.Context, st Store, path string) (ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportReport{}, err
	}
	defer f.Close()
	return ImportPrompts(ctx, st, f)
}

// ImportPrompts adds every entry of a prompt file. Duplicates of an existing
// (bot, prompt) pair are counted and skipped; any other error stops the import.
func ImportPrompts(ctx context.Context, st Store, r io.Reader) (ImportReport, error) {
	var pf PromptFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		if errors.Is(err, io.EOF) {
			return ImportReport{}, nil
		}
		return ImportReport{}, fmt.Errorf("decode prompt file: %w", err)
	}

	var rep ImportReport
	for i, e := range pf.Prompts {
		t, err := botgen.ParsePostType(e.Type)
		if err != nil {
			return rep, fmt.Errorf("prompts[%d]: %w", i, err)
		}
		_, err = st.AddPrompt(ctx, botgen.PromptRecord{BotID: e.BotID, PromptText: e.Prompt, ContentType: t})
		switch {
		case errors.Is(err, ErrDuplicatePrompt):
			rep.Duplicates++
		case err != nil:
			return rep, fmt.Errorf("prompts[%d]: %w", i, err)
		default:
			rep.Added++
		}
	}
	return rep, nil
}
