// Package router turns free text into structured tool intents. It prefers an
// upstream language model and falls back to a deterministic rule table on any
// failure, so routing itself never errors.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"infraops/pkg/logx"
	"infraops/pkg/tools"
)

// Source records which path produced an intent.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// Router resolves messages against the tool registry.
type Router struct {
	registry  *tools.Registry
	completer Completer
	logger    *logx.Logger
}

// New builds a router. completer may be nil, which forces the deterministic
// path; the caller decides that from config (deterministic flag set, or no
// API credential present).
func New(registry *tools.Registry, completer Completer) *Router {
	return &Router{
		registry:  registry,
		completer: completer,
		logger:    logx.NewLogger("router"),
	}
}

// Route maps a message to an intent. It never returns an error: any failure
// on the model path silently degrades to the rule-table extractor.
func (r *Router) Route(ctx context.Context, message string) (tools.Intent, Source) {
	if r.completer == nil {
		return Extract(message), SourceFallback
	}

	intent, err := r.routeLLM(ctx, message)
	if err != nil {
		r.logger.Info("model routing failed, using deterministic extractor: %v", err)
		return Extract(message), SourceFallback
	}
	return intent, SourceLLM
}

func (r *Router) routeLLM(ctx context.Context, message string) (tools.Intent, error) {
	raw, err := r.completer.Complete(ctx, r.systemPrompt(), message)
	if err != nil {
		return tools.Intent{}, err
	}

	intent, err := parseIntent(raw)
	if err != nil {
		return tools.Intent{}, err
	}

	intent = r.normalize(intent, message)
	if !r.registry.Has(intent.Tool) {
		return tools.Intent{}, fmt.Errorf("model proposed unregistered tool %q", intent.Tool)
	}
	return intent, nil
}

// systemPrompt enumerates the registered tools and the extraction rules the
// model must follow.
func (r *Router) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You translate infrastructure requests into a tool call. Available tools:\n")
	for _, d := range r.registry.List() {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
	}
	b.WriteString(`
Rules:
- Respond with ONLY a JSON object of the form {"tool": "<name>", "args": {...}}. No prose, no markdown.
- Extract counts from phrases like "4 EC2 instances"; a count above 1 means batchCreate.
- Extract a customer name from phrases like "for Acme", "client Acme", "company Acme" into customer_name.
- Extract explicit resource names from "named X" or "called X".
- Resource identifiers look like res_vm_001; put them in resource_id.
- If the request matches no tool, use echo with the original message in args.text.
`)
	return b.String()
}

// parseIntent decodes the model output, tolerating markdown fences and
// surrounding prose by slicing the outermost JSON object.
func parseIntent(raw string) (tools.Intent, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return tools.Intent{}, fmt.Errorf("no JSON object in model output")
	}

	var intent tools.Intent
	if err := json.Unmarshal([]byte(raw[start:end+1]), &intent); err != nil {
		return tools.Intent{}, fmt.Errorf("malformed intent JSON: %w", err)
	}
	if intent.Tool == "" {
		return tools.Intent{}, fmt.Errorf("intent is missing a tool name")
	}
	if intent.Args == nil {
		intent.Args = map[string]any{}
	}
	return intent, nil
}

// normalize repairs a parsed intent against the original message: batch
// phrasing overrides the model's single-resource choice, and missing resource
// identifiers are derived from the customer name.
func (r *Router) normalize(intent tools.Intent, message string) tools.Intent {
	if count, resource := batchCount(message); count > 1 && resource != "" && isCreateish(intent.Tool) {
		args := map[string]any{"resource_type": resource, "count": count}
		if customer := argString(intent.Args, "customer_name"); customer != "" {
			args["customer_name"] = customer
		} else if customer := customerName(message); customer != "" {
			args["customer_name"] = customer
		}
		return tools.Intent{Tool: tools.ToolBatchCreate, Args: args}
	}

	switch intent.Tool {
	case tools.ToolCreateS3Bucket:
		if argString(intent.Args, "bucket_name") == "" {
			intent.Args["bucket_name"] = fallbackName(intent.Args, message, "bucket")
		}
		if argString(intent.Args, "aws_region") == "" {
			intent.Args["aws_region"] = tools.DefaultRegion
		}
	case tools.ToolDestroyS3Bucket:
		if argString(intent.Args, "bucket_name") == "" {
			intent.Args["bucket_name"] = fallbackName(intent.Args, message, "bucket")
		}
	case tools.ToolCreateLambdaFunction:
		if argString(intent.Args, "function_name") == "" {
			intent.Args["function_name"] = fallbackName(intent.Args, message, "lambda")
		}
	}
	return intent
}

// fallbackName prefers an explicit "named X" in the message, then a
// customer-derived name.
func fallbackName(args map[string]any, message, suffix string) string {
	if name := explicitName(message); name != "" {
		return name
	}
	customer := argString(args, "customer_name")
	if customer == "" {
		customer = customerName(message)
	}
	return deriveName(customer, suffix)
}

func isCreateish(tool string) bool {
	switch tool {
	case tools.ToolCreateS3Bucket, tools.ToolCreateEC2Instance,
		tools.ToolCreateLambdaFunction, tools.ToolBatchCreate:
		return true
	}
	return false
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
