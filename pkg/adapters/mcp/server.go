package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vizpipe/vizpipe"
	httpadapter "github.com/vizpipe/vizpipe/pkg/adapters/http"
	"github.com/vizpipe/vizpipe/pkg/adapters/memory"
	"github.com/vizpipe/vizpipe/pkg/ast"
	"github.com/vizpipe/vizpipe/pkg/compose"
)

// ComposeResult is the structured reply of the compose_expression tool,
// aligned with the HTTP adapter's response shape.
type ComposeResult struct {
	Expression *ast.Expression `json:"expression" jsonschema_description:"Composed tree in engine wire form, null when composition collapsed"`
	Text       string          `json:"text,omitempty" jsonschema_description:"Canonical textual pipeline form"`
}

// Engine defines the composer surface the MCP server exposes.
type Engine interface {
	httpadapter.Engine
}

// Server wraps the composer Engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server instance over the engine.
func NewServer(engine Engine) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("vizpipe-mcp", strings.TrimSpace(vizpipe.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	// TOOL: compose_expression
	composeTool := mcp.NewTool("compose_expression",
		mcp.WithDescription("Compose a full visualization expression from a visualization chain and per-layer data-fetch expressions."),
		mcp.WithString("visualization", mcp.Required(), mcp.Description("Textual expression chain of the visualization")),
		mcp.WithString("layers", mcp.Description("JSON array of {layerId, datasourceId, expression} objects")),
		mcp.WithString("context", mcp.Description("JSON object with optional timeRange, query and filters")),
		mcp.WithOutputSchema[ComposeResult](),
	)
	s.mcpServer.AddTool(composeTool, mcp.NewStructuredToolHandler(s.handleCompose))

	// TOOL: validate_expression
	validateTool := mcp.NewTool("validate_expression",
		mcp.WithDescription("Validate a textual expression against the function registry."),
		mcp.WithString("expression", mcp.Required(), mcp.Description("Textual expression chain")),
		mcp.WithBoolean("strict", mcp.Description("Also reject calls to unknown functions")),
	)
	s.mcpServer.AddTool(validateTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := request.RequireString("expression")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		expr, err := ast.Parse(text)
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("invalid: %v", err)), nil
		}

		reg := s.engine.Registry()
		if request.GetBool("strict", false) {
			err = reg.ValidateStrict(expr)
		} else {
			err = reg.Validate(expr)
		}
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("invalid: %v", err)), nil
		}
		return mcp.NewToolResultText("valid"), nil
	})

	// TOOL: list_functions
	s.mcpServer.AddTool(mcp.NewTool("list_functions",
		mcp.WithDescription("List the expression functions known to the registry."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reg := s.engine.Registry()
		type fnInfo struct {
			Name string `json:"name"`
			Help string `json:"help,omitempty"`
		}
		infos := make([]fnInfo, 0)
		for _, name := range reg.Names() {
			def, _ := reg.Lookup(name)
			infos = append(infos, fnInfo{Name: def.Name, Help: def.Help})
		}
		jsonBytes, _ := json.Marshal(infos)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleCompose(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ComposeResult, error) {
	visualization, _ := args["visualization"].(string)

	var layers []httpadapter.Layer
	if layersStr, ok := args["layers"].(string); ok && layersStr != "" {
		if err := json.Unmarshal([]byte(layersStr), &layers); err != nil {
			return ComposeResult{}, fmt.Errorf("bad layers argument: %w", err)
		}
	}

	var params *compose.ContextParams
	if ctxStr, ok := args["context"].(string); ok && ctxStr != "" {
		params = &compose.ContextParams{}
		if err := json.Unmarshal([]byte(ctxStr), params); err != nil {
			return ComposeResult{}, fmt.Errorf("bad context argument: %w", err)
		}
	}

	req := buildRequest(visualization, layers)

	var (
		expr *ast.Expression
		err  error
	)
	if params != nil {
		expr, err = s.engine.ComposeWithContext(ctx, req, *params)
	} else {
		expr, err = s.engine.Compose(ctx, req)
	}
	if err != nil {
		return ComposeResult{}, fmt.Errorf("compose failed: %w", err)
	}

	result := ComposeResult{Expression: expr}
	if expr != nil {
		result.Text = expr.String()
	}
	return result, nil
}

// buildRequest groups layers by datasource in first-seen order, mirroring the
// HTTP adapter.
func buildRequest(visualization string, layers []httpadapter.Layer) compose.BuildRequest {
	datasources := compose.NewDatasourceMap()
	grouped := make(map[string][]memory.LayerDef)
	var order []string

	for _, layer := range layers {
		dsID := layer.DatasourceID
		if dsID == "" {
			dsID = "default"
		}
		if _, seen := grouped[dsID]; !seen {
			order = append(order, dsID)
		}
		grouped[dsID] = append(grouped[dsID], memory.LayerDef{
			ID:         layer.LayerID,
			Expression: layer.Expression,
		})
	}
	for _, dsID := range order {
		datasources.Set(dsID, memory.NewStaticDatasource(grouped[dsID]))
	}

	return compose.BuildRequest{
		Visualization: memory.NewStaticVisualization(visualization),
		Datasources:   datasources,
	}
}

func (s *Server) registerResources() {
	// EXPOSE: vizpipe://functions
	s.mcpServer.AddResource(mcp.NewResource("vizpipe://functions", "Expression Function Reference",
		mcp.WithMIMEType("text/markdown"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "vizpipe://functions",
				MIMEType: "text/markdown",
				Text:     s.engine.Registry().Markdown(),
			},
		}, nil
	})
}
