package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/internal/presentation/graph"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
)

const (
	graphURI   = "triage://graph"
	historyURI = "triage://history"
)

// StepResponse is the structured result of the session tools.
type StepResponse struct {
	View     *triage.View `json:"view" jsonschema_description:"The session and the step it is waiting on"`
	Rejected string       `json:"rejected,omitempty" jsonschema_description:"Why the last answer was not accepted"`
}

// SessionArgs names a session.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// StartArgs selects the prompt variant of a new session.
type StartArgs struct {
	Variant string `json:"variant"`
}

// AnswerArgs answers the current step.
type AnswerArgs struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

// RecordArgs stores a value outside the flow steps.
type RecordArgs struct {
	SessionID string `json:"session_id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

// Server exposes a Wizard as an MCP server.
type Server struct {
	wizard    *triage.Wizard
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(w *triage.Wizard, opts ...Option) *Server {
	s := &Server{
		wizard:    w,
		mcpServer: server.NewMCPServer("triage-mcp", strings.TrimSpace(triage.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "address", addr)
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

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	sessionID := mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id returned by start_session"))

	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a new triage questionnaire and return its first step."),
		mcp.WithString("variant", mcp.Description("Prompt variant: bilingual (default) or plain")),
		mcp.WithOutputSchema[StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Show the step a session is waiting on."),
		sessionID,
		mcp.WithOutputSchema[StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleGet))

	s.mcpServer.AddTool(mcp.NewTool("answer",
		mcp.WithDescription("Answer the current step. Choices accept their value, label or 0-based index; optional steps accept an empty answer; symptom pickers take a comma separated list."),
		sessionID,
		mcp.WithString("answer", mcp.Description("The answer text")),
		mcp.WithOutputSchema[StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleAnswer))

	s.mcpServer.AddTool(mcp.NewTool("go_back",
		mcp.WithDescription("Return to the previous step, keeping the recorded answers."),
		sessionID,
		mcp.WithOutputSchema[StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleBack))

	s.mcpServer.AddTool(mcp.NewTool("reset_session",
		mcp.WithDescription("Discard the answers and start the questionnaire over."),
		sessionID,
		mcp.WithOutputSchema[StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleReset))

	s.mcpServer.AddTool(mcp.NewTool("record_answer",
		mcp.WithDescription("Record a self assessment field such as severity or feeling."),
		sessionID,
		mcp.WithString("key", mcp.Required(), mcp.Description("Answer key, e.g. severity")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Answer value")),
		mcp.WithOutputSchema[StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleRecord))

	s.mcpServer.AddTool(mcp.NewTool("submit",
		mcp.WithDescription("Submit the session to the triage service and return the report."),
		sessionID,
		mcp.WithOutputSchema[domain.SubmissionRecord](),
	), mcp.NewStructuredToolHandler(s.handleSubmit))

	s.mcpServer.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("List the submitted reports, newest first."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		records, err := s.wizard.History(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("history failed: %v", err)), nil
		}
		data, _ := json.Marshal(records)
		return mcp.NewToolResultText(string(data)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the questionnaire flow as a Mermaid chart."),
		mcp.WithString("variant", mcp.Description("Prompt variant: bilingual (default) or plain")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		chart, err := s.mermaid(request.GetString("variant", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(chart), nil
	})
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args StartArgs) (StepResponse, error) {
	v, err := flow.ParseVariant(args.Variant)
	if err != nil {
		return StepResponse{}, err
	}
	sess, err := s.wizard.Start(ctx, v)
	if err != nil {
		return StepResponse{}, fmt.Errorf("start failed: %w", err)
	}
	return s.respond(ctx, sess.ID, nil)
}

func (s *Server) handleGet(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (StepResponse, error) {
	return s.respond(ctx, args.SessionID, nil)
}

func (s *Server) handleAnswer(ctx context.Context, _ mcp.CallToolRequest, args AnswerArgs) (StepResponse, error) {
	_, err := s.wizard.Advance(ctx, args.SessionID, args.Answer)
	return s.respond(ctx, args.SessionID, err)
}

func (s *Server) handleBack(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (StepResponse, error) {
	_, err := s.wizard.Back(ctx, args.SessionID)
	return s.respond(ctx, args.SessionID, err)
}

func (s *Server) handleReset(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (StepResponse, error) {
	_, err := s.wizard.Reset(ctx, args.SessionID)
	return s.respond(ctx, args.SessionID, err)
}

func (s *Server) handleRecord(ctx context.Context, _ mcp.CallToolRequest, args RecordArgs) (StepResponse, error) {
	_, err := s.wizard.RecordAnswer(ctx, args.SessionID, args.Key, args.Value)
	return s.respond(ctx, args.SessionID, err)
}

func (s *Server) handleSubmit(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (domain.SubmissionRecord, error) {
	rec, err := s.wizard.Submit(ctx, args.SessionID)
	if err != nil {
		s.logger.Warn("mcp submit failed", "session_id", args.SessionID, "err", err)
		return domain.SubmissionRecord{}, fmt.Errorf("submit failed: %w", err)
	}
	return *rec, nil
}

// respond renders the session view. Answer rejections are reported in
// the response so the client can retry; other errors fail the call.
func (s *Server) respond(ctx context.Context, id string, opErr error) (StepResponse, error) {
	if opErr != nil && !rejection(opErr) {
		return StepResponse{}, opErr
	}
	v, err := s.wizard.View(ctx, id)
	if err != nil {
		return StepResponse{}, err
	}
	resp := StepResponse{View: v}
	if opErr != nil {
		resp.Rejected = opErr.Error()
	}
	return resp, nil
}

func rejection(err error) bool {
	var (
		ve   *domain.ValidationError
		ice  *domain.InvalidChoiceError
		term *domain.SessionTerminatedError
	)
	return errors.As(err, &ve) || errors.As(err, &ice) || errors.As(err, &term) ||
		errors.Is(err, domain.ErrNoPreviousStep)
}

func (s *Server) mermaid(variant string) (string, error) {
	v, err := flow.ParseVariant(variant)
	if err != nil {
		return "", err
	}
	g, err := s.wizard.Graph(v)
	if err != nil {
		return "", err
	}
	return graph.GenerateMermaid(g, nil), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(graphURI, "Questionnaire Flow",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		chart, err := s.mermaid("")
		if err != nil {
			return nil, fmt.Errorf("failed to render graph: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: graphURI, MIMEType: "text/plain", Text: chart},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource(historyURI, "Submission History",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := s.wizard.History(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
		data, _ := json.Marshal(records)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: historyURI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
