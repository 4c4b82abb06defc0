package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kindredwell/kindred/internal/storage"
)

// NewMCPServer exposes the profile and challenge surface to coach assistants
// over MCP. It shares Deps with the HTTP layer.
func NewMCPServer(deps Deps) *server.MCPServer {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := server.NewMCPServer(
		"kindred",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("Kindred wellness backend: read user profiles and daily challenges, and log coaching observations as profile notes."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Fetch a user's rolling profile summary and recent notes."),
			mcp.WithString("user_id", mcp.Description("User ID"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("add_note",
			mcp.WithDescription("Append an observation to a user's profile log and refresh the summary."),
			mcp.WithString("user_id", mcp.Description("User ID"), mcp.Required()),
			mcp.WithString("note", mcp.Description("The observation text"), mcp.Required()),
			mcp.WithString("source", mcp.Description("Note source label (default: assistant)")),
		),
		mcpAddNote(deps),
	)

	s.AddTool(
		mcp.NewTool("get_daily_challenge",
			mcp.WithDescription("Fetch (or generate) the user's daily challenge for a date."),
			mcp.WithString("user_id", mcp.Description("User ID"), mcp.Required()),
			mcp.WithString("date", mcp.Description("Challenge date YYYY-MM-DD (default: today UTC)")),
		),
		mcpGetDailyChallenge(deps),
	)

	s.AddTool(
		mcp.NewTool("get_streak",
			mcp.WithDescription("Fetch the user's current and longest completion streak."),
			mcp.WithString("user_id", mcp.Description("User ID"), mcp.Required()),
		),
		mcpGetStreak(deps),
	)

	return s
}

func mcpGetProfile(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		summaryText := ""
		if sum, err := deps.Store.GetSummary(userID); err == nil {
			summaryText = sum.Text
		} else if !errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("loading summary: %v", err)), nil
		}

		notes, err := deps.Store.RecentNotes(userID, profileNoteLimit)
		if err != nil {
			return mcpError(fmt.Sprintf("loading notes: %v", err)), nil
		}
		if notes == nil {
			notes = []storage.Note{}
		}

		b, err := json.Marshal(map[string]any{"summary": summaryText, "notes": notes})
		if err != nil {
			return mcpError(fmt.Sprintf("marshalling profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddNote(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		text, err := req.RequireString("note")
		if err != nil {
			return mcpError("note is required"), nil
		}
		source := req.GetString("source", "assistant")

		if _, err := deps.Store.GetUser(userID); errors.Is(err, storage.ErrNotFound) {
			return mcpError("user not found"), nil
		} else if err != nil {
			return mcpError(fmt.Sprintf("loading user: %v", err)), nil
		}

		_, preview, err := deps.Profile.AddNote(ctx, storage.Note{
			UserID: userID,
			Source: source,
			Text:   text,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("storing note: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Stored. Summary now: %s", preview)), nil
	}
}

func mcpGetDailyChallenge(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		date := req.GetString("date", "")
		if date == "" {
			date = today(deps)
		}

		// This tool writes a challenge row on first call; never for a user
		// that does not exist.
		if _, err := deps.Store.GetUser(userID); errors.Is(err, storage.ErrNotFound) {
			return mcpError("user not found"), nil
		} else if err != nil {
			return mcpError(fmt.Sprintf("loading user: %v", err)), nil
		}

		c, err := deps.Generator.ChallengeFor(ctx, userID, date)
		if err != nil {
			return mcpError(fmt.Sprintf("generating challenge: %v", err)), nil
		}
		b, err := json.Marshal(c)
		if err != nil {
			return mcpError(fmt.Sprintf("marshalling challenge: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetStreak(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		current, longest := 0, 0
		if st, err := deps.Store.GetStreak(userID); err == nil {
			current, longest = st.Current, st.Longest
		} else if !errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("loading streak: %v", err)), nil
		}

		b, err := json.Marshal(map[string]int{"current_streak": current, "longest_streak": longest})
		if err != nil {
			return mcpError(fmt.Sprintf("marshalling streak: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
