package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// Describer writes a generated description into pull requests that still
// carry the placeholder body.
type Describer struct {
	writer driven.GitHubWriter
	llm    driven.Completer
	llmCfg LLMSettings
}

// NewDescriber creates a Describer.
func NewDescriber(writer driven.GitHubWriter, llm driven.Completer, llmCfg LLMSettings) *Describer {
	return &Describer{writer: writer, llm: llm, llmCfg: llmCfg}
}

// Handle generates and stores the description for one needs_description event.
func (d *Describer) Handle(ctx context.Context, ev model.Event) model.Outcome {
	snap := ev.Snapshot

	generated, err := complete(ctx, d.llm, d.llmCfg, "", buildDescribePrompt(snap))
	if err != nil {
		return failure(fmt.Errorf("generate description: %w", err))
	}

	// The placeholder must not survive, or the PR would be flagged again.
	generated = strings.TrimSpace(strings.ReplaceAll(generated, model.DescriptionPlaceholder, ""))
	if generated == "" {
		return failure(fmt.Errorf("generate description: %w", errEmptyCompletion))
	}

	if missing := MissingSections(generated, describeSections); len(missing) > 0 {
		clog.FromContext(ctx).Warn("description missing sections", "missing", missing)
	}

	body := model.DescriptionMarker + "\n\n" + generated
	if err := d.writer.UpdatePRBody(ctx, snap.Number, body); err != nil {
		return failure(fmt.Errorf("update PR body: %w", err))
	}

	clog.FromContext(ctx).Info("pr description generated")
	return model.Completed{Did: model.ActionDescriptionGenerated}
}

// MissingSections returns the entries of want that do not appear as level-2
// headings in the markdown document.
func MissingSections(markdown string, want []string) []string {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	found := make(map[string]bool)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			if h.Level == 2 {
				found[strings.ToLower(strings.TrimSpace(string(h.Text(src))))] = true
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	var missing []string
	for _, w := range want {
		if !found[strings.ToLower(w)] {
			missing = append(missing, w)
		}
	}
	return missing
}
