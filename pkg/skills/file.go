package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/skaldhq/skald/pkg/contexts"
	"github.com/skaldhq/skald/pkg/governance"
	"github.com/skaldhq/skald/pkg/playbook"
)

// FileSkill moves text between the filesystem and the selected context.
// --load reads a file into context as an agent message; --save writes the
// most recent assistant reply to a file.
//
//	@file --load notes/incident.md
//	@file --save out/summary.md
type FileSkill struct{}

func (s *FileSkill) Validate(block *playbook.Block) ValidationResult {
	_, hasLoad := block.FlagValue("load")
	_, hasSave := block.FlagValue("save")
	if !hasLoad && !hasSave {
		return invalid("file requires --load or --save")
	}
	return valid()
}

func (s *FileSkill) Execute(ctx context.Context, api API, block *playbook.Block) (*Result, error) {
	result := &Result{}

	for _, f := range block.Flags {
		switch f.Name {
		case "load":
			for _, path := range f.Value {
				path = expandVars(path, api)
				data, err := os.ReadFile(path)
				if err != nil {
					return nil, fmt.Errorf("file at line %d: load %s: %w", block.Line, path, err)
				}
				content := governance.Redact(string(data), api.Redactions())
				result.Messages = append(result.Messages, contexts.Message{
					Role:    contexts.RoleAgent,
					Content: content,
				})
			}
		case "save":
			for _, path := range f.Value {
				path = expandVars(path, api)
				reply, ok := lastAssistantReply(api.ContextMessages())
				if !ok {
					return nil, fmt.Errorf("file at line %d: save %s: no assistant reply in context", block.Line, path)
				}
				if dir := filepath.Dir(path); dir != "." {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						return nil, fmt.Errorf("file at line %d: save %s: %w", block.Line, path, err)
					}
				}
				if err := os.WriteFile(path, []byte(reply), 0o644); err != nil {
					return nil, fmt.Errorf("file at line %d: save %s: %w", block.Line, path, err)
				}
			}
		}
	}

	return result, nil
}

func lastAssistantReply(msgs []contexts.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == contexts.RoleAssistant {
			return msgs[i].Content, true
		}
	}
	return "", false
}
