// Package server exposes the publish flows as MCP tools over stdio or SSE.
// The server is a thin shell: argument validation happens here, everything
// behind the tool boundary is the engine's job, and engine errors never
// escape to the transport as protocol errors.
package server

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/zhihuops/zhihu-mcp/pkg/logging"
	"github.com/zhihuops/zhihu-mcp/pkg/publisher"
)

// Version is the advertised server version.
const Version = "0.1.0"

const shutdownGrace = 5 * time.Second

// Engine runs the publish flows. Satisfied by *publisher.Publisher.
type Engine interface {
	PublishIdea(ctx context.Context, req publisher.Request) (publisher.Result, error)
	PublishArticle(ctx context.Context, req publisher.Request) (publisher.Result, error)
}

// Server wires the two publish tools into an MCP server. Tool calls are
// serialized: the engine drives one shared browser, and interleaved flows
// would race over the same pages.
type Server struct {
	engine Engine
	log    *logging.Logger
	mcp    *mcpserver.MCPServer

	mu sync.Mutex
}

// New builds the MCP server shell around engine.
func New(engine Engine, log *logging.Logger) *Server {
	s := &Server{engine: engine, log: log}

	m := mcpserver.NewMCPServer("zhihu-mcp", Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)

	m.AddTool(mcp.NewTool("publish_idea",
		mcp.WithDescription("Publish a short idea post to Zhihu through an already-running, logged-in browser."),
		mcp.WithString("title",
			mcp.Description("Optional idea title. The site caps it at 50 characters."),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Idea body text."),
		),
	), s.handlePublishIdea)

	m.AddTool(mcp.NewTool("publish_article",
		mcp.WithDescription("Publish a long-form article to Zhihu through an already-running, logged-in browser."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Article title."),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Article body text."),
		),
	), s.handlePublishArticle)

	s.mcp = m
	return s
}

func (s *Server) handlePublishIdea(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	content := req.GetString("content", "")

	if strings.TrimSpace(content) == "" {
		return errorResult("Content cannot be empty"), nil
	}

	return s.publish(ctx, "publish_idea", s.engine.PublishIdea, publisher.Request{
		Title:   title,
		Content: content,
	})
}

func (s *Server) handlePublishArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	content := req.GetString("content", "")

	if strings.TrimSpace(title) == "" {
		return errorResult("Title cannot be empty"), nil
	}
	if strings.TrimSpace(content) == "" {
		return errorResult("Content cannot be empty"), nil
	}

	return s.publish(ctx, "publish_article", s.engine.PublishArticle, publisher.Request{
		Title:   title,
		Content: content,
	})
}

// publish runs one flow under the single-slot lock and folds the outcome,
// error or result, into a tool text payload.
func (s *Server) publish(
	ctx context.Context,
	tool string,
	run func(context.Context, publisher.Request) (publisher.Result, error),
	req publisher.Request,
) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Infof("%s: call started", tool)
	result, err := run(ctx, req)
	if err != nil {
		s.log.Errorf("%s: %v", tool, err)
		return errorResult(err.Error()), nil
	}

	s.log.Infof("%s: %s", tool, result.Message)
	return textResult(result), nil
}

type errorPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func errorResult(message string) *mcp.CallToolResult {
	raw, err := json.Marshal(errorPayload{Error: message})
	if err != nil {
		return mcp.NewToolResultText(`{"success":false,"error":"internal encoding failure"}`)
	}
	return mcp.NewToolResultText(string(raw))
}

func textResult(result publisher.Result) *mcp.CallToolResult {
	raw, err := json.Marshal(result)
	if err != nil {
		return errorResult("failed to encode result")
	}
	return mcp.NewToolResultText(string(raw))
}

// ServeStdio serves the MCP protocol over stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	s.log.Infof("serving MCP over stdio")
	return mcpserver.ServeStdio(s.mcp)
}

// ServeSSE serves the MCP protocol over SSE on addr until ctx is
// cancelled, then shuts the HTTP listener down gracefully.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sse := mcpserver.NewSSEServer(s.mcp)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sse.Start(addr)
	}()
	s.log.Infof("serving MCP over SSE on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return sse.Shutdown(shutdownCtx)
	}
}
