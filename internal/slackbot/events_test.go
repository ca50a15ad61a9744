package slackbot

import (
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHomeTabBlocks(t *testing.T) {
	blocks := homeTabBlocks().BlockSet
	require.Len(t, blocks, 4)

	header, ok := blocks[0].(*slack.HeaderBlock)
	require.True(t, ok)
	assert.Equal(t, "👋 Welcome to Docent!", header.Text.Text)

	intro, ok := blocks[1].(*slack.SectionBlock)
	require.True(t, ok)
	assert.Contains(t, intro.Text.Text, "*To get started:*")
	assert.Contains(t, intro.Text.Text, "`configure`")

	_, ok = blocks[2].(*slack.DividerBlock)
	assert.True(t, ok)

	tip, ok := blocks[3].(*slack.ContextBlock)
	require.True(t, ok)
	require.Len(t, tip.ContextElements.Elements, 1)
}
