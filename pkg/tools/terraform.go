package tools

import (
	"context"
	"fmt"
	"strings"

	"infraops/pkg/locker"
)

// Tool name constants. Router output and the confirmation gateway reference
// these; keep them in sync with RegisterAll.
const (
	ToolEcho                  = "echo"
	ToolPing                  = "ping"
	ToolCreateS3Bucket        = "createS3Bucket"
	ToolDestroyS3Bucket       = "destroyS3Bucket"
	ToolCreateEC2Instance     = "createEC2Instance"
	ToolDestroyEC2Instance    = "destroyEC2Instance"
	ToolCreateLambdaFunction  = "createLambdaFunction"
	ToolDestroyLambdaFunction = "destroyLambdaFunction"
	ToolBatchCreate           = "batchCreate"
	ToolGetLogs               = "getLogs"
	ToolGetMetrics            = "getMetrics"
	ToolGetTickets            = "getTickets"
	ToolCreateTicket          = "createTicket"
	ToolCheckHealth           = "checkHealth"
	ToolAnalyzeLogs           = "analyzeLogs"
	ToolAnalyzeMetrics        = "analyzeMetrics"
)

// DefaultRegion is applied when a request does not name an AWS region.
const DefaultRegion = "us-east-1"

// InfraInvoker reaches the Terraform engine subprocess through the
// per-domain lock and retry wrapper.
type InfraInvoker interface {
	Invoke(ctx context.Context, domain locker.Domain, tool string, args map[string]any) (string, error)
}

// EchoTool returns the submitted text unchanged. It is the router's total
// fallback target, so it must never fail.
type EchoTool struct{}

func (e *EchoTool) Name() string        { return ToolEcho }
func (e *EchoTool) Description() string { return "Echo the message back without taking any action" }

func (e *EchoTool) Exec(_ context.Context, args map[string]any) (string, error) {
	return stringArg(args, "text"), nil
}

// PingTool probes the Terraform engine subprocess.
type PingTool struct {
	invoker InfraInvoker
}

func NewPingTool(invoker InfraInvoker) *PingTool { return &PingTool{invoker: invoker} }

func (p *PingTool) Name() string        { return ToolPing }
func (p *PingTool) Description() string { return "Check that the Terraform engine is alive" }

func (p *PingTool) Exec(ctx context.Context, _ map[string]any) (string, error) {
	return p.invoker.Invoke(ctx, locker.DomainOther, "ping", map[string]any{})
}

// engineTool is one provisioning operation backed by a named engine tool in
// a fixed resource domain.
type engineTool struct {
	name        string
	description string
	domain      locker.Domain
	engineName  string
	invoker     InfraInvoker
	buildArgs   func(args map[string]any) (map[string]any, error)
}

func (t *engineTool) Name() string        { return t.name }
func (t *engineTool) Description() string { return t.description }

func (t *engineTool) Exec(ctx context.Context, args map[string]any) (string, error) {
	engineArgs, err := t.buildArgs(args)
	if err != nil {
		return "", err
	}
	return t.invoker.Invoke(ctx, t.domain, t.engineName, engineArgs)
}

// NewCreateS3BucketTool provisions an S3 bucket.
func NewCreateS3BucketTool(invoker InfraInvoker) ToolChannel {
	return &engineTool{
		name:        ToolCreateS3Bucket,
		description: "Create an S3 bucket (args: bucket_name, aws_region)",
		domain:      locker.DomainStorage,
		engineName:  "create_s3_bucket",
		invoker:     invoker,
		buildArgs: func(args map[string]any) (map[string]any, error) {
			bucket := stringArg(args, "bucket_name")
			if bucket == "" {
				return nil, Validationf("bucket_name is required")
			}
			region := stringArg(args, "aws_region")
			if region == "" {
				region = DefaultRegion
			}
			return map[string]any{"bucket_name": bucket, "aws_region": region}, nil
		},
	}
}

// NewDestroyS3BucketTool destroys an S3 bucket.
func NewDestroyS3BucketTool(invoker InfraInvoker) ToolChannel {
	return &engineTool{
		name:        ToolDestroyS3Bucket,
		description: "Destroy an S3 bucket (args: bucket_name)",
		domain:      locker.DomainStorage,
		engineName:  "destroy_s3_bucket",
		invoker:     invoker,
		buildArgs: func(args map[string]any) (map[string]any, error) {
			bucket := stringArg(args, "bucket_name")
			if bucket == "" {
				return nil, Validationf("bucket_name is required")
			}
			return map[string]any{"bucket_name": bucket}, nil
		},
	}
}

// NewCreateEC2InstanceTool provisions the EC2 instance set. The compute
// domain manages at most one addressable instance set, so no identifying
// field is taken.
func NewCreateEC2InstanceTool(invoker InfraInvoker) ToolChannel {
	return &engineTool{
		name:        ToolCreateEC2Instance,
		description: "Create an EC2 instance (no args)",
		domain:      locker.DomainCompute,
		engineName:  "create_ec2_instance",
		invoker:     invoker,
		buildArgs: func(map[string]any) (map[string]any, error) {
			return map[string]any{"auto_approve": true}, nil
		},
	}
}

// NewDestroyEC2InstanceTool destroys the EC2 instance set.
func NewDestroyEC2InstanceTool(invoker InfraInvoker) ToolChannel {
	return &engineTool{
		name:        ToolDestroyEC2Instance,
		description: "Destroy the EC2 instance (no args)",
		domain:      locker.DomainCompute,
		engineName:  "destroy_ec2",
		invoker:     invoker,
		buildArgs: func(map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	}
}

// NewCreateLambdaFunctionTool provisions a Lambda function. source_code is
// optional; the engine supplies a default handler body when absent.
func NewCreateLambdaFunctionTool(invoker InfraInvoker) ToolChannel {
	return &engineTool{
		name:        ToolCreateLambdaFunction,
		description: "Create a Lambda function (args: function_name, aws_region, source_code)",
		domain:      locker.DomainFunctions,
		engineName:  "create_lambda_function",
		invoker:     invoker,
		buildArgs: func(args map[string]any) (map[string]any, error) {
			fn := stringArg(args, "function_name")
			if fn == "" {
				return nil, Validationf("function_name is required")
			}
			region := stringArg(args, "aws_region")
			if region == "" {
				region = DefaultRegion
			}
			engineArgs := map[string]any{"function_name": fn, "aws_region": region}
			if src := stringArg(args, "source_code"); src != "" {
				engineArgs["source_code"] = src
			}
			return engineArgs, nil
		},
	}
}

// NewDestroyLambdaFunctionTool destroys the Lambda function.
func NewDestroyLambdaFunctionTool(invoker InfraInvoker) ToolChannel {
	return &engineTool{
		name:        ToolDestroyLambdaFunction,
		description: "Destroy the Lambda function (no args)",
		domain:      locker.DomainFunctions,
		engineName:  "destroy_lambda_function",
		invoker:     invoker,
		buildArgs: func(map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	}
}

// BatchCreateTool expands a batch request into sequential per-resource
// creations through the same domain lock.
type BatchCreateTool struct {
	invoker InfraInvoker
}

func NewBatchCreateTool(invoker InfraInvoker) *BatchCreateTool {
	return &BatchCreateTool{invoker: invoker}
}

func (b *BatchCreateTool) Name() string { return ToolBatchCreate }

func (b *BatchCreateTool) Description() string {
	return "Create multiple resources of one type (args: resource_type, count, customer_name)"
}

func (b *BatchCreateTool) Exec(ctx context.Context, args map[string]any) (string, error) {
	resourceType := normalizeResourceType(stringArg(args, "resource_type"))
	if resourceType == "" {
		return "", Validationf("resource_type must be one of s3, ec2, lambda")
	}

	count := intArg(args, "count")
	if count < 1 {
		return "", Validationf("count must be at least 1")
	}

	customer := stringArg(args, "customer_name")
	if customer == "" {
		customer = "demo"
	}
	customer = strings.ToLower(customer)

	var results []string
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("%s-%s-%d", customer, resourceType, i)
		out, err := b.createOne(ctx, resourceType, name)
		if err != nil {
			return "", fmt.Errorf("batch item %d/%d (%s) failed: %w", i, count, name, err)
		}
		results = append(results, fmt.Sprintf("[%d/%d] %s: %s", i, count, name, firstLine(out)))
	}
	return fmt.Sprintf("Created %d %s resources:\n%s", count, resourceType, strings.Join(results, "\n")), nil
}

func (b *BatchCreateTool) createOne(ctx context.Context, resourceType, name string) (string, error) {
	switch resourceType {
	case "s3":
		return b.invoker.Invoke(ctx, locker.DomainStorage, "create_s3_bucket",
			map[string]any{"bucket_name": name, "aws_region": DefaultRegion})
	case "ec2":
		return b.invoker.Invoke(ctx, locker.DomainCompute, "create_ec2_instance",
			map[string]any{"auto_approve": true})
	case "lambda":
		return b.invoker.Invoke(ctx, locker.DomainFunctions, "create_lambda_function",
			map[string]any{"function_name": name, "aws_region": DefaultRegion})
	}
	return "", Validationf("unsupported resource_type %q", resourceType)
}

// normalizeResourceType maps user-facing synonyms onto canonical kinds.
func normalizeResourceType(t string) string {
	switch strings.ToLower(t) {
	case "s3", "bucket", "buckets":
		return "s3"
	case "ec2", "instance", "instances", "vm", "vms":
		return "ec2"
	case "lambda", "lambdas", "function", "functions":
		return "lambda"
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
