package application_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/elvagent/internal/application"
	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

const describedReply = "## Summary\nAdds x.\n\n## Changes\n- x\n\n## Testing\nUnit tests."

func needsDescription() model.Event {
	snap := snapshotWith(5, "abc123", passed(1, "build"))
	snap.Body = model.DescriptionPlaceholder
	return model.NewEvent(snap, model.EventNeedsDescription)
}

func TestDescriber_WritesMarkedBody(t *testing.T) {
	writer := newMockWriter()
	llm := &mockCompleter{reply: "  " + describedReply + "\n"}
	d := application.NewDescriber(writer, llm, application.LLMSettings{Model: "m", MaxTokens: 800})

	out := d.Handle(context.Background(), needsDescription())

	assert.Equal(t, model.Completed{Did: model.ActionDescriptionGenerated}, out)
	body := writer.bodies[5]
	assert.True(t, strings.HasPrefix(body, model.DescriptionMarker+"\n\n"))
	assert.Contains(t, body, "## Summary")

	require.Len(t, llm.requests, 1)
	assert.Equal(t, "m", llm.requests[0].Model)
	assert.Equal(t, 800, llm.requests[0].MaxTokens)
	assert.Contains(t, llm.requests[0].Prompt, "Add feature")
	assert.Contains(t, llm.requests[0].Prompt, "feature/x")
}

func TestDescriber_StripsPlaceholderFromReply(t *testing.T) {
	writer := newMockWriter()
	llm := &mockCompleter{reply: model.DescriptionPlaceholder + "\n" + describedReply}
	d := application.NewDescriber(writer, llm, application.LLMSettings{})

	out := d.Handle(context.Background(), needsDescription())

	assert.Equal(t, model.ActionDescriptionGenerated, out.Action())
	assert.NotContains(t, writer.bodies[5], model.DescriptionPlaceholder)
}

func TestDescriber_Failures(t *testing.T) {
	tests := []struct {
		name    string
		llm     *mockCompleter
		bodyErr error
	}{
		{name: "completion error", llm: &mockCompleter{err: errors.New("overloaded")}},
		{name: "empty reply", llm: &mockCompleter{reply: "   "}},
		{name: "placeholder only", llm: &mockCompleter{reply: model.DescriptionPlaceholder}},
		{name: "update rejected", llm: &mockCompleter{reply: describedReply}, bodyErr: errors.New("403")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := newMockWriter()
			writer.bodyErr = tt.bodyErr
			d := application.NewDescriber(writer, tt.llm, application.LLMSettings{})

			out := d.Handle(context.Background(), needsDescription())

			failedOut, ok := out.(model.Failed)
			require.True(t, ok, "expected Failed, got %T", out)
			assert.Equal(t, model.ActionFailed, failedOut.Did)
			assert.Error(t, failedOut.Err)
			assert.Empty(t, writer.bodies)
		})
	}
}

func TestMissingSections(t *testing.T) {
	want := []string{"Summary", "Changes", "Testing"}

	tests := []struct {
		name     string
		markdown string
		expected []string
	}{
		{name: "all present", markdown: describedReply},
		{name: "case insensitive", markdown: "## summary\n\n## CHANGES\n\n## Testing\n"},
		{name: "wrong level", markdown: "# Summary\n\n## Changes\n\n### Testing\n", expected: []string{"Summary", "Testing"}},
		{name: "mentioned in prose only", markdown: "Summary: Changes and Testing", expected: want},
		{name: "inside code block", markdown: "```\n## Summary\n```\n## Changes\n## Testing\n", expected: []string{"Summary"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, application.MissingSections(tt.markdown, want))
		})
	}
}
