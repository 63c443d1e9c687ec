package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sjohnston82/twitter-t3-clone/internal/domain"
)

// Execute runs the postctl command tree.
func Execute(ctx context.Context) error {
	var serverURL, token string

	root := &cobra.Command{
		Use:           "postctl",
		Short:         "Client for the micro-post API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server",
		envOrDefault("MICROPOST_SERVER", "http://localhost:3000"), "base URL of the micro-post server")
	root.PersistentFlags().StringVar(&token, "token",
		os.Getenv("MICROPOST_TOKEN"), "session token for authenticated commands")

	client := func() *apiClient { return newAPIClient(serverURL, token) }

	root.AddCommand(feedCmd(client))
	root.AddCommand(postCmd(client))
	root.AddCommand(profileCmd(client))

	return root.ExecuteContext(ctx)
}

func feedCmd(client func() *apiClient) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show the most recent posts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := client().listFeed(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printFeed(items)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 25, "maximum number of posts to fetch")
	return cmd
}

func postCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "post <content>",
		Short: "Create a new emoji post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := args[0]
			// Same pre-check the web client does; the server revalidates.
			if strings.TrimSpace(content) == "" {
				return fmt.Errorf("content must not be empty")
			}

			post, err := client().createPost(cmd.Context(), content)
			if err != nil {
				return err
			}
			fmt.Printf("posted %s at %s\n", post.ID, post.CreatedAt.Local().Format(time.Kitchen))
			return nil
		},
	}
}

func profileCmd(client func() *apiClient) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "profile <handle>",
		Short: "Show a user's profile and their recent posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle := strings.TrimPrefix(args[0], "@")

			c := client()
			author, err := c.getProfile(cmd.Context(), handle)
			if err != nil {
				return err
			}
			items, err := c.listAuthorFeed(cmd.Context(), handle, limit)
			if err != nil {
				return err
			}

			fmt.Printf("@%s (%s)\n\n", author.Handle, author.ID)
			printFeed(items)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 25, "maximum number of posts to fetch")
	return cmd
}

func printFeed(items []domain.FeedItem) {
	if len(items) == 0 {
		fmt.Println("no posts yet")
		return
	}
	for _, item := range items {
		fmt.Printf("@%-16s %s  %s\n",
			item.Author.Handle,
			item.Post.Content,
			item.Post.CreatedAt.Local().Format("Jan 2 15:04"),
		)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
