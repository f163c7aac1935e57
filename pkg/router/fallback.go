package router

import (
	"regexp"
	"strconv"
	"strings"

	"infraops/pkg/tools"
)

// The deterministic extractor is a total function over free text. Rules are
// an ordered table applied first-match-wins, so the priority of one pattern
// over another is explicit and testable per rule.

var (
	// "named demo-assets", "called billing-api"
	reExplicitName = regexp.MustCompile(`(?i)\b(?:named|called)\s+["']?([A-Za-z0-9][A-Za-z0-9._-]*)`)

	// "for Acme", "client Acme", "company Acme". Resource IDs and filler
	// words after "for" are not customer names.
	reCustomer = regexp.MustCompile(`(?i)\b(?:for|client|company)\s+["']?([A-Za-z][A-Za-z0-9._-]*)`)

	// A standalone integer immediately before a resource keyword. The digits
	// must follow start-of-text or whitespace, so the 2 inside "ec2" can
	// never start a match.
	reBatch = regexp.MustCompile(`(?i)(?:^|\s)(\d+)\s+(?:aws\s+|new\s+)?(s3|buckets?|ec2|instances?|vms?|lambdas?|functions?)`)

	// "res_vm_001" style identifiers emitted by the monitoring service.
	reResourceID = regexp.MustCompile(`\b(res_[A-Za-z0-9_-]+)\b`)

	reCreate  = regexp.MustCompile(`(?i)\b(?:create|make|provision|deploy|add|spin\s+up|launch|set\s+up)\b`)
	reDestroy = regexp.MustCompile(`(?i)\b(?:destroy|delete|remove|terminate|tear\s+down)\b`)

	// "open a ticket", "create a new ticket". The singular ticket\b keeps
	// "list open tickets" out of this rule.
	reOpenTicket = regexp.MustCompile(`(?i)\b(?:create|open|file|raise)\s+(?:(?:a|an|new|support)\s+)*ticket\b`)

	reS3     = regexp.MustCompile(`(?i)\b(?:s3|buckets?)\b`)
	reEC2    = regexp.MustCompile(`(?i)\b(?:ec2|instances?|vms?|servers?)\b`)
	reLambda = regexp.MustCompile(`(?i)\b(?:lambdas?|functions?)\b`)
)

// rule pairs a name (for debugging and per-rule tests) with an extractor
// that either claims the message or passes.
type rule struct {
	name    string
	extract func(msg string) (tools.Intent, bool)
}

var ruleTable = []rule{
	{"batch-create", extractBatch},
	{"create-s3", extractCreateS3},
	{"destroy-s3", extractDestroyS3},
	{"create-ec2", extractCreateEC2},
	{"destroy-ec2", extractDestroyEC2},
	{"create-lambda", extractCreateLambda},
	{"destroy-lambda", extractDestroyLambda},
	{"analyze-logs", extractAnalyzeLogs},
	{"get-logs", extractGetLogs},
	{"analyze-metrics", extractAnalyzeMetrics},
	{"get-metrics", extractGetMetrics},
	{"create-ticket", extractCreateTicket},
	{"get-tickets", extractGetTickets},
	{"health", extractHealth},
	{"ping", extractPing},
}

// Extract maps free text to an intent without consulting the model. It never
// fails: unmatched text becomes an echo intent carrying the original message.
func Extract(msg string) tools.Intent {
	for _, r := range ruleTable {
		if intent, ok := r.extract(msg); ok {
			return intent
		}
	}
	return tools.Intent{Tool: tools.ToolEcho, Args: map[string]any{"text": msg}}
}

func explicitName(msg string) string {
	if m := reExplicitName.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return ""
}

func customerName(msg string) string {
	if m := reCustomer.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return ""
}

func resourceID(msg string) string {
	if m := reResourceID.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return ""
}

// batchCount returns the requested count and canonical resource type, or
// (0, "") when the message carries no batch phrasing.
func batchCount(msg string) (int, string) {
	m := reBatch.FindStringSubmatch(msg)
	if m == nil {
		return 0, ""
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, ""
	}
	return n, canonicalResource(m[2])
}

func canonicalResource(word string) string {
	switch strings.ToLower(strings.TrimSuffix(strings.ToLower(word), "s")) {
	case "s3", "bucket":
		return "s3"
	case "ec2", "instance", "vm", "server":
		return "ec2"
	case "lambda", "function":
		return "lambda"
	}
	return ""
}

// deriveName builds a deterministic resource identifier from the customer
// name and a fixed per-kind suffix.
func deriveName(customer, suffix string) string {
	if customer == "" {
		customer = "demo"
	}
	return strings.ToLower(customer) + "-" + suffix
}

func extractBatch(msg string) (tools.Intent, bool) {
	if !reCreate.MatchString(msg) {
		return tools.Intent{}, false
	}
	count, resource := batchCount(msg)
	if count <= 1 || resource == "" {
		return tools.Intent{}, false
	}
	args := map[string]any{"resource_type": resource, "count": count}
	if customer := customerName(msg); customer != "" {
		args["customer_name"] = customer
	}
	return tools.Intent{Tool: tools.ToolBatchCreate, Args: args}, true
}

func extractCreateS3(msg string) (tools.Intent, bool) {
	if !reCreate.MatchString(msg) || !reS3.MatchString(msg) {
		return tools.Intent{}, false
	}
	name := explicitName(msg)
	if name == "" {
		name = deriveName(customerName(msg), "bucket")
	}
	return tools.Intent{
		Tool: tools.ToolCreateS3Bucket,
		Args: map[string]any{"bucket_name": name, "aws_region": tools.DefaultRegion},
	}, true
}

func extractDestroyS3(msg string) (tools.Intent, bool) {
	if !reDestroy.MatchString(msg) || !reS3.MatchString(msg) {
		return tools.Intent{}, false
	}
	name := explicitName(msg)
	if name == "" {
		name = deriveName(customerName(msg), "bucket")
	}
	return tools.Intent{
		Tool: tools.ToolDestroyS3Bucket,
		Args: map[string]any{"bucket_name": name},
	}, true
}

func extractCreateEC2(msg string) (tools.Intent, bool) {
	if !reCreate.MatchString(msg) || !reEC2.MatchString(msg) {
		return tools.Intent{}, false
	}
	return tools.Intent{Tool: tools.ToolCreateEC2Instance, Args: map[string]any{}}, true
}

func extractDestroyEC2(msg string) (tools.Intent, bool) {
	if !reDestroy.MatchString(msg) || !reEC2.MatchString(msg) {
		return tools.Intent{}, false
	}
	return tools.Intent{Tool: tools.ToolDestroyEC2Instance, Args: map[string]any{}}, true
}

func extractCreateLambda(msg string) (tools.Intent, bool) {
	if !reCreate.MatchString(msg) || !reLambda.MatchString(msg) {
		return tools.Intent{}, false
	}
	name := explicitName(msg)
	if name == "" {
		name = deriveName(customerName(msg), "lambda")
	}
	return tools.Intent{
		Tool: tools.ToolCreateLambdaFunction,
		Args: map[string]any{"function_name": name, "aws_region": tools.DefaultRegion},
	}, true
}

func extractDestroyLambda(msg string) (tools.Intent, bool) {
	if !reDestroy.MatchString(msg) || !reLambda.MatchString(msg) {
		return tools.Intent{}, false
	}
	return tools.Intent{Tool: tools.ToolDestroyLambdaFunction, Args: map[string]any{}}, true
}

func hasWord(msg string, words ...string) bool {
	lower := strings.ToLower(msg)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func monitorArgs(msg string) map[string]any {
	args := map[string]any{}
	if id := resourceID(msg); id != "" {
		args["resource_id"] = id
	}
	return args
}

func extractAnalyzeLogs(msg string) (tools.Intent, bool) {
	if !hasWord(msg, "log") || !hasWord(msg, "analyze", "analyse", "summarize", "summarise", "explain") {
		return tools.Intent{}, false
	}
	return tools.Intent{Tool: tools.ToolAnalyzeLogs, Args: monitorArgs(msg)}, true
}

func extractGetLogs(msg string) (tools.Intent, bool) {
	if !hasWord(msg, "log") {
		return tools.Intent{}, false
	}
	return tools.Intent{Tool: tools.ToolGetLogs, Args: monitorArgs(msg)}, true
}

func extractAnalyzeMetrics(msg string) (tools.Intent, bool) {
	if !hasWord(msg, "metric") || !hasWord(msg, "analyze", "analyse", "summarize", "summarise", "explain") {
		return tools.Intent{}, false
	}
	return tools.Intent{Tool: tools.ToolAnalyzeMetrics, Args: monitorArgs(msg)}, true
}

func extractGetMetrics(msg string) (tools.Intent, bool) {
	if !hasWord(msg, "metric", "cpu", "memory usage") {
		return tools.Intent{}, false
	}
	return tools.Intent{Tool: tools.ToolGetMetrics, Args: monitorArgs(msg)}, true
}

func extractCreateTicket(msg string) (tools.Intent, bool) {
	if !reOpenTicket.MatchString(msg) {
		return tools.Intent{}, false
	}
	return tools.Intent{Tool: tools.ToolCreateTicket, Args: map[string]any{"title": strings.TrimSpace(msg)}}, true
}

func extractGetTickets(msg string) (tools.Intent, bool) {
	if !hasWord(msg, "ticket") {
		return tools.Intent{}, false
	}
	return tools.Intent{Tool: tools.ToolGetTickets, Args: map[string]any{}}, true
}

func extractHealth(msg string) (tools.Intent, bool) {
	if !hasWord(msg, "health", "healthy", "status of monitoring") {
		return tools.Intent{}, false
	}
	return tools.Intent{Tool: tools.ToolCheckHealth, Args: map[string]any{}}, true
}

func extractPing(msg string) (tools.Intent, bool) {
	if !hasWord(msg, "ping") {
		return tools.Intent{}, false
	}
	return tools.Intent{Tool: tools.ToolPing, Args: map[string]any{}}, true
}
