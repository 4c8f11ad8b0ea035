package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"proveit/app"
	"proveit/services"
)

type demoUser struct {
	id, name, goal, due string
}

var demoUsers = []demoUser{
	{"demo-alice", "Alice Johnson", "Morning run", "8:00 AM"},
	{"demo-bob", "Bob Smith", "Read 20 pages", "9:00 PM"},
	{"demo-carol", "Carol Diaz", "Practice guitar", "7:30 PM"},
}

// seedCmd creates demo users who are all friends with each other, each with
// one goal. Users that already have goals are left alone.
func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create demo users, friendships and goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return seed(ctx, a, cmd)
			})
		},
	}
}

func seed(ctx context.Context, a *app.App, cmd *cobra.Command) error {
	for _, u := range demoUsers {
		if _, err := a.Users.Ensure(ctx, services.EnsureRequest{
			UserID:      u.id,
			DisplayName: u.name,
			Email:       strings.TrimPrefix(u.id, "demo-") + "@example.com",
		}); err != nil {
			return fmt.Errorf("seed %s: %w", u.id, err)
		}
	}
	for i, u := range demoUsers {
		for _, other := range demoUsers[i+1:] {
			if err := a.Friends.Add(ctx, u.id, other.id); err != nil {
				return fmt.Errorf("befriend %s and %s: %w", u.id, other.id, err)
			}
		}
		existing, err := a.Goals.List(ctx, u.id)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			continue
		}
		if _, err := a.Goals.Create(ctx, u.id, services.CreateGoalRequest{Title: u.goal, DueTime: u.due}); err != nil {
			return fmt.Errorf("seed goal for %s: %w", u.id, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d demo users\n", len(demoUsers))
	return nil
}
