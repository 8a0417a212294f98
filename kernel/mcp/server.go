package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/youwol/datamanager/kernel/engine"
	"github.com/youwol/datamanager/kernel/store"
)

const (
	StatusUri       = "datamanager://status"
	DefaultTailSize = 50
)

// DatamanagerMCPServer exposes the status journal and the job logs to MCP clients.
type DatamanagerMCPServer struct {
	server *server.MCPServer
	store  store.JournalStore
	logDir string
}

func NewDatamanagerMCPServer(s store.JournalStore, logDir string) *DatamanagerMCPServer {
	srv := server.NewMCPServer(
		"Youwol Data Manager",
		"v1.0.0",
		server.WithResourceCapabilities(true, true),
		server.WithToolCapabilities(true),
	)

	ds := &DatamanagerMCPServer{
		server: srv,
		store:  s,
		logDir: logDir,
	}

	ds.registerTools()
	ds.registerResources()

	return ds
}

func (ds *DatamanagerMCPServer) ServeStdio() error {
	return server.ServeStdio(ds.server)
}

func (ds *DatamanagerMCPServer) registerTools() {
	ds.server.AddTool(mcp.NewTool("get_status",
		mcp.WithDescription("Current phase and phase history of the Keycloak workflow"),
	), ds.getStatusHandler)

	ds.server.AddTool(mcp.NewTool("list_workflows",
		mcp.WithDescription("Names of the Keycloak workflows this job can run"),
	), ds.listWorkflowsHandler)

	ds.server.AddTool(mcp.NewTool("tail_log",
		mcp.WithDescription("Last lines of a job log file"),
		mcp.WithString("name",
			mcp.Description("Log file name, e.g. script_out.log or kcadm.log"),
			mcp.Required(),
		),
		mcp.WithNumber("lines",
			mcp.Description("Number of lines to return"),
		),
	), ds.tailLogHandler)
}

func (ds *DatamanagerMCPServer) registerResources() {
	resource := mcp.NewResource(StatusUri, "Keycloak Status",
		mcp.WithResourceDescription("Current phase of the Keycloak workflow"),
		mcp.WithMIMEType("application/json"),
	)
	ds.server.AddResource(resource, ds.statusHandler)
}

type statusReport struct {
	Phase       string             `json:"phase"`
	Transitions []store.Transition `json:"transitions"`
}

func (ds *DatamanagerMCPServer) report() (string, error) {
	report := statusReport{}
	if phase, err := ds.store.Phase(); err == nil {
		report.Phase = phase.String()
	}
	transitions, err := ds.store.Transitions()
	if err != nil {
		return "", fmt.Errorf("failed to read transitions: %w", err)
	}
	report.Transitions = transitions
	data, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}

func (ds *DatamanagerMCPServer) getStatusHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := ds.report()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(report), nil
}

func (ds *DatamanagerMCPServer) listWorkflowsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(engine.WorkflowNames())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (ds *DatamanagerMCPServer) tailLogHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name argument is required"), nil
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return mcp.NewToolResultError(fmt.Sprintf("invalid log name '%s'", name)), nil
	}
	count := request.GetInt("lines", DefaultTailSize)
	if count <= 0 {
		return mcp.NewToolResultError("lines must be positive"), nil
	}

	lines, err := tail(filepath.Join(ds.logDir, name), count)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := ""
	for _, line := range lines {
		text += line + "\n"
	}
	return mcp.NewToolResultText(text), nil
}

func (ds *DatamanagerMCPServer) statusHandler(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	report, err := ds.report()
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      StatusUri,
			MIMEType: "application/json",
			Text:     report,
		},
	}, nil
}

func tail(path string, count int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > count {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return lines, nil
}
