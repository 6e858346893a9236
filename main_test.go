package main

import (
	"bytes"
	"strings"
	"testing"

	"confique/client"
	"confique/models"

	"github.com/stretchr/testify/assert"
)

func TestRootCommand_Subcommands(t *testing.T) {
	var names []string
	for _, c := range newRootCommand().Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "purge-notifications", "feed", "vapid-keys"}, names)
}

func TestHeadline(t *testing.T) {
	assert.Equal(t, "Hack Night", headline(client.Post{Title: "Hack Night", Content: "ignored"}))
	assert.Equal(t, "multi line confession", headline(client.Post{Content: "multi\nline   confession"}))

	long := headline(client.Post{Content: strings.Repeat("é", 60)})
	assert.Equal(t, 48, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "…"))
}

func TestFeed_RejectsUnknownType(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"feed", "--type", "gossip", "--api", "http://127.0.0.1:0"})
	err := cmd.Execute()
	assert.ErrorContains(t, err, `unknown post type "gossip"`)
}

func TestPrintSection_Empty(t *testing.T) {
	var out bytes.Buffer
	printSection(&out, client.NewState(client.New("http://127.0.0.1:0", nil)), models.PostNews, nil)
	assert.Equal(t, "== news (0)\n\n", out.String())
}
