package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"confique/client"
	"confique/models"

	"github.com/spf13/cobra"
)

type feedOptions struct {
	API    string
	Token  string
	Search string
	Type   string
	Top    int
}

func newFeedCommand() *cobra.Command {
	opts := &feedOptions{}

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print the board sections from a running API",
		Long: `Fetch the board through the API client and print one table per post type.

Example:
  confique feed --api http://localhost:8080 --search hackathon
  confique feed --type showcase --top 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFeed(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.API, "api", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&opts.Token, "token", os.Getenv("CONFIQUE_TOKEN"), "bearer token (defaults to $CONFIQUE_TOKEN)")
	cmd.Flags().StringVar(&opts.Search, "search", "", "only show posts whose title, content or location match")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only show one post type")
	cmd.Flags().IntVar(&opts.Top, "top", 0, "rank the top N posts by likes (upvotes for showcase)")
	return cmd
}

func runFeed(cmd *cobra.Command, opts *feedOptions) error {
	types := models.PostTypes
	if opts.Type != "" {
		t := models.PostType(opts.Type)
		if !t.Valid() {
			return fmt.Errorf("unknown post type %q", opts.Type)
		}
		types = []models.PostType{t}
	}

	api := client.New(opts.API, nil)
	api.SetToken(opts.Token)
	api.OnUnauthorized = func() {
		fmt.Fprintln(cmd.ErrOrStderr(), "token rejected, continuing anonymously")
	}
	state := client.NewState(api)
	if err := state.Refresh(cmd.Context()); err != nil {
		return err
	}
	state.SetSearch(opts.Search)

	out := cmd.OutOrStdout()
	for _, t := range types {
		posts := state.Section(t)
		if opts.Top > 0 {
			posts = state.Top(t, opts.Top)
		}
		printSection(out, state, t, posts)
	}
	if _, unread := state.Notifications(); api.Authenticated() {
		fmt.Fprintf(out, "%d unread notifications\n", unread)
	}
	return nil
}

func printSection(out io.Writer, state *client.State, t models.PostType, posts []client.Post) {
	fmt.Fprintf(out, "== %s (%d)\n", t, len(posts))
	if len(posts) == 0 {
		fmt.Fprintln(out)
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	score := "LIKES"
	if t == models.PostShowcase {
		score = "UPVOTES"
	}
	fmt.Fprintf(tw, "ID\tTITLE\t%s\tCOMMENTS\tEXTRA\n", score)
	for _, p := range posts {
		n := p.Likes
		if t == models.PostShowcase {
			n = p.Upvotes
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", p.ID, headline(p), n, p.CommentCount, extra(state, p))
	}
	_ = tw.Flush()
	fmt.Fprintln(out)
}

func headline(p client.Post) string {
	text := p.Title
	if text == "" {
		text = p.Content
	}
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > 48 {
		text = string(r[:47]) + "…"
	}
	return text
}

func extra(state *client.State, p client.Post) string {
	var parts []string
	if p.Type.IsEvent() {
		parts = append(parts, fmt.Sprintf("%d registered", state.RegistrationCount(p.ID)))
		if state.Registered(p.ID) {
			parts = append(parts, "you're in")
		}
	}
	if p.Type == models.PostShowcase {
		parts = append(parts, fmt.Sprintf("%d views", p.Views))
	}
	if state.Liked(p.ID) {
		parts = append(parts, "liked")
	}
	return strings.Join(parts, ", ")
}
