package router

import (
	"testing"

	"infraops/pkg/tools"
)

func TestExtractSimpleCreation(t *testing.T) {
	intent := Extract("create an S3 bucket named demo-assets")
	if intent.Tool != tools.ToolCreateS3Bucket {
		t.Fatalf("expected createS3Bucket, got %s", intent.Tool)
	}
	if intent.Args["bucket_name"] != "demo-assets" {
		t.Errorf("expected bucket_name demo-assets, got %v", intent.Args["bucket_name"])
	}
	if intent.Args["aws_region"] != "us-east-1" {
		t.Errorf("expected default region, got %v", intent.Args["aws_region"])
	}
}

func TestExtractBatch(t *testing.T) {
	intent := Extract("create 4 EC2 instances for Acme")
	if intent.Tool != tools.ToolBatchCreate {
		t.Fatalf("expected batchCreate, got %s", intent.Tool)
	}
	if intent.Args["resource_type"] != "ec2" {
		t.Errorf("expected resource_type ec2, got %v", intent.Args["resource_type"])
	}
	if intent.Args["count"] != 4 {
		t.Errorf("expected count 4, got %v", intent.Args["count"])
	}
	if intent.Args["customer_name"] != "Acme" {
		t.Errorf("expected customer Acme, got %v", intent.Args["customer_name"])
	}
}

func TestExtractBatchIgnoresDigitInsideEC2(t *testing.T) {
	// The 2 in "ec2" must not read as a count of 2 instances.
	intent := Extract("create an ec2 instance")
	if intent.Tool != tools.ToolCreateEC2Instance {
		t.Fatalf("expected createEC2Instance, got %s", intent.Tool)
	}
}

func TestExtractReadOnlyLogs(t *testing.T) {
	intent := Extract("show logs for res_vm_001")
	if intent.Tool != tools.ToolGetLogs {
		t.Fatalf("expected getLogs, got %s", intent.Tool)
	}
	if intent.Args["resource_id"] != "res_vm_001" {
		t.Errorf("expected resource_id res_vm_001, got %v", intent.Args["resource_id"])
	}
}

func TestExtractAnalyzePrecedesGet(t *testing.T) {
	intent := Extract("analyze the logs for res_vm_001")
	if intent.Tool != tools.ToolAnalyzeLogs {
		t.Fatalf("expected analyzeLogs, got %s", intent.Tool)
	}
}

func TestExtractCustomerDerivedName(t *testing.T) {
	intent := Extract("create a bucket for Acme")
	if intent.Tool != tools.ToolCreateS3Bucket {
		t.Fatalf("expected createS3Bucket, got %s", intent.Tool)
	}
	if intent.Args["bucket_name"] != "acme-bucket" {
		t.Errorf("expected derived name acme-bucket, got %v", intent.Args["bucket_name"])
	}
}

func TestExtractExplicitNameBeatsCustomer(t *testing.T) {
	intent := Extract("create a bucket named assets-prod for Acme")
	if intent.Args["bucket_name"] != "assets-prod" {
		t.Errorf("explicit name should win, got %v", intent.Args["bucket_name"])
	}
}

func TestExtractDestroy(t *testing.T) {
	cases := []struct {
		msg  string
		tool string
	}{
		{"destroy the bucket called old-logs", tools.ToolDestroyS3Bucket},
		{"terminate the ec2 instance", tools.ToolDestroyEC2Instance},
		{"delete the lambda function", tools.ToolDestroyLambdaFunction},
	}
	for _, c := range cases {
		if intent := Extract(c.msg); intent.Tool != c.tool {
			t.Errorf("Extract(%q) = %s, want %s", c.msg, intent.Tool, c.tool)
		}
	}
}

func TestExtractMonitoring(t *testing.T) {
	cases := []struct {
		msg  string
		tool string
	}{
		{"what do the cpu metrics look like", tools.ToolGetMetrics},
		{"open a ticket about the checkout outage", tools.ToolCreateTicket},
		{"list open tickets", tools.ToolGetTickets},
		{"is the monitoring service healthy", tools.ToolCheckHealth},
		{"ping the engine", tools.ToolPing},
	}
	for _, c := range cases {
		if intent := Extract(c.msg); intent.Tool != c.tool {
			t.Errorf("Extract(%q) = %s, want %s", c.msg, intent.Tool, c.tool)
		}
	}
}

func TestExtractTotality(t *testing.T) {
	messages := []string{
		"",
		"echo hello",
		"what's the weather like",
		"asdf qwerty",
	}
	for _, msg := range messages {
		intent := Extract(msg)
		if intent.Tool != tools.ToolEcho {
			t.Errorf("Extract(%q) = %s, want echo", msg, intent.Tool)
		}
		if intent.Args["text"] != msg {
			t.Errorf("echo should carry the original text, got %v", intent.Args["text"])
		}
	}
}
