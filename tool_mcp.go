package agentlink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolFromMCP adapts an MCP tool and handler from the official MCP SDK into a
// ToolDefinition, so existing MCP servers' tools can be offered to agent
// sessions without rewriting them.
//
// The invocation arguments are marshalled into the MCP request; the
// CallToolResult's text content becomes the result text, and IsError maps to
// a failure result.
//
// Example:
//
//	weather := &mcp.Tool{
//	    Name:        "weather",
//	    Description: "Look up the weather",
//	    InputSchema: agentlink.SimpleSchema(map[string]string{"city": "string"}),
//	}
//
//	def := agentlink.ToolFromMCP(weather, weatherHandler)
//	sess, err := client.CreateSession(ctx, agentlink.SessionConfig{
//	    Tools: []agentlink.ToolDefinition{def},
//	})
func ToolFromMCP(tool *mcp.Tool, handler mcp.ToolHandler) ToolDefinition {
	return ToolDefinition{
		Name:        tool.Name,
		Description: tool.Description,
		Parameters:  tool.InputSchema.(*jsonschema.Schema),
		Handler: func(ctx context.Context, inv *ToolInvocation) (any, error) {
			args, err := json.Marshal(inv.Arguments)
			if err != nil {
				return nil, fmt.Errorf("marshal arguments: %w", err)
			}

			req := &mcp.CallToolRequest{
				Params: &mcp.CallToolParamsRaw{
					Name:      inv.ToolName,
					Arguments: args,
				},
			}

			result, err := handler(ctx, req)
			if err != nil {
				return nil, err
			}

			return convertMCPResult(result), nil
		},
	}
}

// convertMCPResult flattens an MCP CallToolResult into a ToolResult.
func convertMCPResult(result *mcp.CallToolResult) *ToolResult {
	if result == nil {
		return FailureResult("tool produced no result")
	}

	var texts []string

	for _, c := range result.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			texts = append(texts, text.Text)
		}
	}

	text := strings.Join(texts, "\n")

	if result.IsError {
		return FailureResult(text)
	}

	return TextResult(text)
}
