// Package mcpserver exposes the scene engine as Model Context Protocol tools
// so an MCP client (an editor, an agent runtime) can drive a scene over
// stdio.
//
// Three tools are registered:
//
//   - scene_turn runs one user turn at a location.
//   - react records an emoji reaction to a character's reply.
//   - get_relationship reads the stored relationship between a user and a
//     character.
//
// Every tool answers with the JSON encoding of the corresponding chat
// response as a single text content block. Domain failures are reported as
// tool errors (IsError) rather than protocol errors.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/synk-web/synk/internal/chat"
	"github.com/synk-web/synk/internal/observe"
	"github.com/synk-web/synk/pkg/memory"
)

// Service is the part of the chat service the tools call.
type Service interface {
	Turn(ctx context.Context, req chat.TurnRequest) (*chat.TurnResponse, error)
	React(ctx context.Context, req chat.ReactionRequest) (*chat.ReactionResponse, error)
	Relationship(ctx context.Context, userID, characterID string) (*memory.RelationshipData, error)
}

var _ Service = (*chat.Service)(nil)

// Version is reported to clients in the server implementation info.
const Version = "1.0.0"

// TurnInput is the scene_turn argument object.
type TurnInput struct {
	UserID     string `json:"user_id" jsonschema:"stable id of the user speaking"`
	LocationID string `json:"location_id" jsonschema:"location whose characters take part"`
	Message    string `json:"message" jsonschema:"what the user says"`
	SessionID  string `json:"session_id,omitempty" jsonschema:"session to continue; omit to start a new one"`
}

// ReactInput is the react argument object.
type ReactInput struct {
	UserID            string `json:"user_id" jsonschema:"stable id of the user reacting"`
	CharacterID       string `json:"character_id" jsonschema:"character whose reply is reacted to"`
	TurnID            string `json:"turn_id" jsonschema:"turn the reply belongs to"`
	Emoji             string `json:"emoji" jsonschema:"one of ❤️ 💢 🔥 ⭐"`
	UserMessage       string `json:"user_message,omitempty" jsonschema:"the user's message in that turn"`
	CharacterResponse string `json:"character_response,omitempty" jsonschema:"the character's reply in that turn"`
}

// RelationshipInput is the get_relationship argument object.
type RelationshipInput struct {
	UserID      string `json:"user_id" jsonschema:"stable id of the user"`
	CharacterID string `json:"character_id" jsonschema:"character id"`
}

// New builds an MCP server with the scene tools registered against svc.
func New(svc Service) *mcpsdk.Server {
	s := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "synk", Version: Version}, nil)

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "scene_turn",
		Description: "Send a user message into a multi-character scene and get every character's reaction.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in TurnInput) (*mcpsdk.CallToolResult, any, error) {
		resp, err := svc.Turn(ctx, chat.TurnRequest{
			UserID:     in.UserID,
			LocationID: in.LocationID,
			Message:    in.Message,
			SessionID:  in.SessionID,
		})
		return result(ctx, "scene_turn", resp, err), nil, nil
	})

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "react",
		Description: "React to a character's reply with an emoji; updates the relationship.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in ReactInput) (*mcpsdk.CallToolResult, any, error) {
		resp, err := svc.React(ctx, chat.ReactionRequest(in))
		return result(ctx, "react", resp, err), nil, nil
	})

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "get_relationship",
		Description: "Read how a character currently feels about a user.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in RelationshipInput) (*mcpsdk.CallToolResult, any, error) {
		rel, err := svc.Relationship(ctx, in.UserID, in.CharacterID)
		return result(ctx, "get_relationship", rel, err), nil, nil
	})

	return s
}

// Serve runs the server over stdin/stdout until ctx is cancelled or the
// client disconnects.
func Serve(ctx context.Context, svc Service) error {
	if err := New(svc).Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("mcpserver: %w", err)
	}
	return nil
}

func result(ctx context.Context, tool string, v any, err error) *mcpsdk.CallToolResult {
	if err != nil {
		observe.Logger(ctx).Warn("mcpserver: tool failed", "tool", tool, "err", err)
		return errorResult(err.Error())
	}
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(fmt.Sprintf("encode %s result: %v", tool, err))
	}
	return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}}}
}

func errorResult(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
	}
}
