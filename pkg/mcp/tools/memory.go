// Package tools provides MCP tool implementations for memoir-engine.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/memoirhq/memoir-engine/pkg/models"
	"github.com/memoirhq/memoir-engine/pkg/repositories"
	"github.com/memoirhq/memoir-engine/pkg/services"
)

// MemoryToolDeps contains dependencies for memory MCP tools.
type MemoryToolDeps struct {
	ContextService services.ContextService
	GraphService   services.GraphService
	EntityRepo     repositories.EntityRepository
	Logger         *zap.Logger
}

// RegisterMemoryTools registers the memory graph tools.
func RegisterMemoryTools(s *server.MCPServer, deps *MemoryToolDeps) {
	registerMemoryContextTool(s, deps)
	registerMemoryConnectionsTool(s, deps)
	registerMemoryEntitiesTool(s, deps)
}

// registerMemoryContextTool adds the memory_context tool, which renders the
// bounded prompt-ready summary of a user's graph.
func registerMemoryContextTool(s *server.MCPServer, deps *MemoryToolDeps) {
	tool := mcp.NewTool(
		"memory_context",
		mcp.WithDescription(
			"Build a bounded text summary of everything known about a user's life story: "+
				"people, places, events, time periods, and emotions ranked by how often they "+
				"are mentioned, plus relationships between them. Use this to ground follow-up "+
				"questions or generated prose in what the user has already shared.",
		),
		mcp.WithString(
			"user_id",
			mcp.Required(),
			mcp.Description("UUID of the user whose memory graph to summarize. Required."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, errResult := requireUserID(req)
		if errResult != nil {
			return errResult, nil
		}

		memoryContext, err := deps.ContextService.BuildContext(ctx, userID)
		if err != nil {
			deps.Logger.Error("memory_context tool failed",
				zap.String("user_id", userID.String()),
				zap.Error(err))
			return nil, fmt.Errorf("failed to build memory context: %w", err)
		}

		jsonResult, err := json.Marshal(memoryContext)
		if err != nil {
			return nil, fmt.Errorf("failed to encode memory context: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

// registerMemoryConnectionsTool adds the memory_connections tool, the 1-hop
// neighborhood lookup around a fuzzy-matched entity name.
func registerMemoryConnectionsTool(s *server.MCPServer, deps *MemoryToolDeps) {
	tool := mcp.NewTool(
		"memory_connections",
		mcp.WithDescription(
			"Look up a person, place, event, time period, or emotion in a user's memory "+
				"graph by name (partial matches allowed) and return its relationships and "+
				"recent mentions. Returns {found: false} when nothing matches. "+
				"Example: memory_connections(user_id='...', name='grandmother')",
		),
		mcp.WithString(
			"user_id",
			mcp.Required(),
			mcp.Description("UUID of the user whose memory graph to search. Required."),
		),
		mcp.WithString(
			"name",
			mcp.Required(),
			mcp.Description("Entity name to look up. Case-insensitive, partial matches allowed."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, errResult := requireUserID(req)
		if errResult != nil {
			return errResult, nil
		}

		name, err := req.RequireString("name")
		if err != nil {
			return nil, err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return NewErrorResult("invalid_parameters", "parameter 'name' cannot be empty"), nil
		}

		connections, err := deps.GraphService.ConnectionsFor(ctx, userID, name)
		if err != nil {
			deps.Logger.Error("memory_connections tool failed",
				zap.String("user_id", userID.String()),
				zap.String("name", name),
				zap.Error(err))
			return nil, fmt.Errorf("failed to look up connections: %w", err)
		}

		jsonResult, err := json.Marshal(connections)
		if err != nil {
			return nil, fmt.Errorf("failed to encode connections: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

// registerMemoryEntitiesTool adds the memory_entities listing tool.
func registerMemoryEntitiesTool(s *server.MCPServer, deps *MemoryToolDeps) {
	tool := mcp.NewTool(
		"memory_entities",
		mcp.WithDescription(
			"List the entities in a user's memory graph, most-mentioned first. "+
				"Optionally filter by type: person, place, event, time_period, or emotion.",
		),
		mcp.WithString(
			"user_id",
			mcp.Required(),
			mcp.Description("UUID of the user whose entities to list. Required."),
		),
		mcp.WithString(
			"type",
			mcp.Description("Optional - entity type filter: person, place, event, time_period, emotion"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, errResult := requireUserID(req)
		if errResult != nil {
			return errResult, nil
		}

		var (
			entities []*models.Entity
			err      error
		)
		if raw := getOptionalString(req, "type"); raw != "" {
			entityType, ok := models.ParseEntityType(raw)
			if !ok {
				return NewErrorResult("invalid_parameters",
					fmt.Sprintf("unknown entity type %q", raw)), nil
			}
			entities, err = deps.EntityRepo.ListByType(ctx, userID, entityType)
		} else {
			entities, err = deps.EntityRepo.ListByUser(ctx, userID)
		}
		if err != nil {
			deps.Logger.Error("memory_entities tool failed",
				zap.String("user_id", userID.String()),
				zap.Error(err))
			return nil, fmt.Errorf("failed to list entities: %w", err)
		}

		jsonResult, err := json.Marshal(map[string]any{
			"entities": entities,
			"total":    len(entities),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode entities: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

// requireUserID parses the user_id parameter shared by all memory tools.
func requireUserID(req mcp.CallToolRequest) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString("user_id")
	if err != nil {
		return uuid.Nil, NewErrorResult("invalid_parameters", "parameter 'user_id' is required")
	}

	userID, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, NewErrorResult("invalid_parameters",
			fmt.Sprintf("parameter 'user_id' is not a valid UUID: %s", raw))
	}
	return userID, nil
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, ok := args[key].(string)
	if !ok {
		return ""
	}
	return val
}
