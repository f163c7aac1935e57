package tools

import (
	"context"

	"infraops/pkg/monitor"
)

// Analyzer summarizes monitoring data with the upstream language model.
type Analyzer interface {
	Analyze(ctx context.Context, kind, data string) (string, error)
}

// monitorTool is a read-only proxy to the monitoring backend. Failures
// surface immediately; no retry wrapper is involved.
type monitorTool struct {
	name        string
	description string
	run         func(ctx context.Context, args map[string]any) (string, error)
}

func (t *monitorTool) Name() string        { return t.name }
func (t *monitorTool) Description() string { return t.description }

func (t *monitorTool) Exec(ctx context.Context, args map[string]any) (string, error) {
	return t.run(ctx, args)
}

// NewGetLogsTool fetches logs from the monitoring backend.
func NewGetLogsTool(client *monitor.Client) ToolChannel {
	return &monitorTool{
		name:        ToolGetLogs,
		description: "Fetch logs from the monitoring service (args: resource_id)",
		run: func(ctx context.Context, args map[string]any) (string, error) {
			return client.GetLogs(ctx, stringArg(args, "resource_id"))
		},
	}
}

// NewGetMetricsTool fetches metrics from the monitoring backend.
func NewGetMetricsTool(client *monitor.Client) ToolChannel {
	return &monitorTool{
		name:        ToolGetMetrics,
		description: "Fetch metrics from the monitoring service (args: resource_id)",
		run: func(ctx context.Context, args map[string]any) (string, error) {
			return client.GetMetrics(ctx, stringArg(args, "resource_id"))
		},
	}
}

// NewGetTicketsTool lists open tickets.
func NewGetTicketsTool(client *monitor.Client) ToolChannel {
	return &monitorTool{
		name:        ToolGetTickets,
		description: "List open tickets from the ticketing service (no args)",
		run: func(ctx context.Context, _ map[string]any) (string, error) {
			return client.GetTickets(ctx)
		},
	}
}

// NewCreateTicketTool opens a ticket.
func NewCreateTicketTool(client *monitor.Client) ToolChannel {
	return &monitorTool{
		name:        ToolCreateTicket,
		description: "Open a ticket (args: title, description)",
		run: func(ctx context.Context, args map[string]any) (string, error) {
			title := stringArg(args, "title")
			if title == "" {
				return "", Validationf("title is required")
			}
			return client.CreateTicket(ctx, title, stringArg(args, "description"))
		},
	}
}

// NewCheckHealthTool probes the monitoring backend.
func NewCheckHealthTool(client *monitor.Client) ToolChannel {
	return &monitorTool{
		name:        ToolCheckHealth,
		description: "Check monitoring service health (no args)",
		run: func(ctx context.Context, _ map[string]any) (string, error) {
			return client.Health(ctx)
		},
	}
}

// NewAnalyzeLogsTool fetches logs and summarizes them with the LLM.
func NewAnalyzeLogsTool(client *monitor.Client, analyzer Analyzer) ToolChannel {
	return &monitorTool{
		name:        ToolAnalyzeLogs,
		description: "Fetch logs and produce an LLM summary (args: resource_id)",
		run: func(ctx context.Context, args map[string]any) (string, error) {
			data, err := client.GetLogs(ctx, stringArg(args, "resource_id"))
			if err != nil {
				return "", err
			}
			return analyzer.Analyze(ctx, "log data", data)
		},
	}
}

// NewAnalyzeMetricsTool fetches metrics and summarizes them with the LLM.
func NewAnalyzeMetricsTool(client *monitor.Client, analyzer Analyzer) ToolChannel {
	return &monitorTool{
		name:        ToolAnalyzeMetrics,
		description: "Fetch metrics and produce an LLM summary (args: resource_id)",
		run: func(ctx context.Context, args map[string]any) (string, error) {
			data, err := client.GetMetrics(ctx, stringArg(args, "resource_id"))
			if err != nil {
				return "", err
			}
			return analyzer.Analyze(ctx, "resource metrics", data)
		},
	}
}

// RegisterAll wires every tool into the registry. analyzer may be nil, in
// which case the analyze tools are skipped (deterministic-router-only
// deployments have no LLM credential).
func RegisterAll(registry *Registry, invoker InfraInvoker, monitorClient *monitor.Client, analyzer Analyzer) {
	registry.MustRegister(&EchoTool{})
	registry.MustRegister(NewPingTool(invoker))
	registry.MustRegister(NewCreateS3BucketTool(invoker))
	registry.MustRegister(NewDestroyS3BucketTool(invoker))
	registry.MustRegister(NewCreateEC2InstanceTool(invoker))
	registry.MustRegister(NewDestroyEC2InstanceTool(invoker))
	registry.MustRegister(NewCreateLambdaFunctionTool(invoker))
	registry.MustRegister(NewDestroyLambdaFunctionTool(invoker))
	registry.MustRegister(NewBatchCreateTool(invoker))
	registry.MustRegister(NewGetLogsTool(monitorClient))
	registry.MustRegister(NewGetMetricsTool(monitorClient))
	registry.MustRegister(NewGetTicketsTool(monitorClient))
	registry.MustRegister(NewCreateTicketTool(monitorClient))
	registry.MustRegister(NewCheckHealthTool(monitorClient))
	if analyzer != nil {
		registry.MustRegister(NewAnalyzeLogsTool(monitorClient, analyzer))
		registry.MustRegister(NewAnalyzeMetricsTool(monitorClient, analyzer))
	}
}
