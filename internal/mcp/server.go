package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"inkwell/backend/internal/services"
	"inkwell/backend/internal/workflows"
	"inkwell/backend/pkg/models"
)

// Server exposes the workflow engine as MCP tools so agent hosts can
// drive workflows over the same service layer as the HTTP API.
type Server struct {
	mcpServer    *server.MCPServer
	workflowSvc  *services.WorkflowService
	orchestrator *services.Orchestrator
}

func NewServer(workflowSvc *services.WorkflowService, orchestrator *services.Orchestrator) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Inkwell Workflows",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		workflowSvc:  workflowSvc,
		orchestrator: orchestrator,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_workflow",
			mcp.WithDescription("Create a new multi-step workflow"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Human-readable workflow name")),
			mcp.WithString("goal", mcp.Required(), mcp.Description("The overall goal the workflow works toward")),
			mcp.WithString("description", mcp.Description("Optional longer description")),
		),
		s.handleCreateWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"add_step",
			mcp.WithDescription("Add a step to a pending workflow"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The workflow to add the step to")),
			mcp.WithNumber("step_index", mcp.Required(), mcp.Description("Zero-based position of the step")),
			mcp.WithString("step_type", mcp.Required(), mcp.Description("One of: plan, draft, verify, humanize, integrity_check, ai_detection, custom")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Step name")),
			mcp.WithString("model", mcp.Description("Model to use for generation steps")),
			mcp.WithBoolean("requires_approval", mcp.Description("Pause for approval after this step")),
		),
		s.handleAddStep,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"execute_workflow",
			mcp.WithDescription("Run a workflow until it pauses, completes, or fails"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The workflow to execute")),
		),
		s.handleExecuteWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"approve_step",
			mcp.WithDescription("Approve or reject a step that is waiting for approval"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The workflow the step belongs to")),
			mcp.WithNumber("step_index", mcp.Required(), mcp.Description("Index of the step awaiting approval")),
			mcp.WithBoolean("approved", mcp.Required(), mcp.Description("true to approve and resume, false to reject")),
			mcp.WithString("feedback", mcp.Description("Reviewer feedback, required on rejection")),
		),
		s.handleApproveStep,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_workflow",
			mcp.WithDescription("Get a workflow with all of its steps"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The workflow to fetch")),
		),
		s.handleGetWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List workflows, optionally filtered by status"),
			mcp.WithString("status", mcp.Description("Filter by workflow status")),
		),
		s.handleListWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_essay_workflow",
			mcp.WithDescription("Create a workflow from the essay writer template"),
			mcp.WithString("goal", mcp.Required(), mcp.Description("The essay assignment")),
		),
		s.handleCreateEssayWorkflow,
	)
}

func (s *Server) handleCreateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return mcp.NewToolResultError("Missing required parameter: name"), nil
	}
	goal, ok := args["goal"].(string)
	if !ok || goal == "" {
		return mcp.NewToolResultError("Missing required parameter: goal"), nil
	}
	var description *string
	if d, ok := args["description"].(string); ok && d != "" {
		description = &d
	}

	workflow, err := s.workflowSvc.CreateWorkflow(ctx, name, goal, description, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create workflow: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(workflow)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleAddStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	workflowID, ok := args["workflow_id"].(string)
	if !ok || workflowID == "" {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}
	stepIndex, ok := args["step_index"].(float64)
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: step_index"), nil
	}
	stepType, ok := args["step_type"].(string)
	if !ok || stepType == "" {
		return mcp.NewToolResultError("Missing required parameter: step_type"), nil
	}
	name, ok := args["name"].(string)
	if !ok || name == "" {
		return mcp.NewToolResultError("Missing required parameter: name"), nil
	}

	input := services.AddStepInput{
		StepIndex: int(stepIndex),
		StepType:  models.StepType(stepType),
		Name:      name,
	}
	if m, ok := args["model"].(string); ok && m != "" {
		input.Model = &m
	}
	if r, ok := args["requires_approval"].(bool); ok {
		input.RequiresApproval = r
	}

	workflow, err := s.workflowSvc.AddStep(ctx, workflowID, input)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to add step: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(workflow)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleExecuteWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	workflowID, ok := args["workflow_id"].(string)
	if !ok || workflowID == "" {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}

	result, err := s.orchestrator.Execute(ctx, workflowID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to execute: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleApproveStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	workflowID, ok := args["workflow_id"].(string)
	if !ok || workflowID == "" {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}
	stepIndex, ok := args["step_index"].(float64)
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: step_index"), nil
	}
	approved, ok := args["approved"].(bool)
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: approved"), nil
	}
	feedback, _ := args["feedback"].(string)

	result, err := s.orchestrator.ApproveStep(ctx, workflowID, int(stepIndex), approved, feedback)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve approval: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	workflowID, ok := args["workflow_id"].(string)
	if !ok || workflowID == "" {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}

	workflow, err := s.workflowSvc.GetWorkflow(ctx, workflowID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get workflow: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(workflow)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	var status *models.WorkflowStatus
	if raw, ok := args["status"].(string); ok && raw != "" {
		st := models.WorkflowStatus(raw)
		status = &st
	}

	list, _, err := s.workflowSvc.ListWorkflows(ctx, status, 0, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(list)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleCreateEssayWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	goal, ok := args["goal"].(string)
	if !ok || goal == "" {
		return mcp.NewToolResultError("Missing required parameter: goal"), nil
	}

	workflow, err := workflows.CreateEssayWorkflow(ctx, s.workflowSvc, goal, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create essay workflow: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(workflow)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// MountHTTPHandlers wires the MCP SSE endpoints onto a standard mux.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
