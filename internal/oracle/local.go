package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rahul/consolenano/internal/governance"
	"github.com/rahul/consolenano/internal/plan"
)

var (
	requestRe   = regexp.MustCompile(`USER REQUEST:\s*"([^"]+)"`)
	serviceRe   = regexp.MustCompile(`(?m)^\s*-?\s*Service:\s*([^\n]+)`)
	titleRe     = regexp.MustCompile(`(?m)^\s*-?\s*Page Title:\s*([^\n]+)`)
	buttonRe    = regexp.MustCompile(`^\s*- "([^"]+)"`)
	errTypeRe   = regexp.MustCompile(`Error Type:\s*([^\n]+)`)
	errMsgRe    = regexp.MustCompile(`Error Message:\s*([^\n]+)`)
	completedRe = regexp.MustCompile(`just completed this AWS task:\s*"([^"]+)"`)
	questionRe  = regexp.MustCompile(`Question:\s*"([^"]+)"`)
	pageCtxRe   = regexp.MustCompile(`Page Context:\s*([^\n]+)`)
)

// Local is the deterministic substitute oracle. It answers every prompt kind
// from keyword parsing alone, so the whole assistant runs without a model.
type Local struct {
	policy governance.PolicyEngine
}

func NewLocal() *Local {
	return &Local{policy: governance.NewDefaultPolicyEngine()}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Available(ctx context.Context) bool { return true }

func (l *Local) Prompt(ctx context.Context, system, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch {
	case strings.Contains(prompt, MarkerErrorFix):
		return encode(l.errorFix(prompt))
	case strings.Contains(prompt, MarkerNextTasks):
		return encode(l.nextTasks(prompt))
	case strings.Contains(prompt, MarkerRequest):
		return encode(l.plan(ctx, prompt))
	case strings.Contains(prompt, MarkerQuestion):
		q := prompt
		if m := questionRe.FindStringSubmatch(prompt); m != nil {
			q = m[1]
		}
		return BasicAnswer(q), nil
	}
	return BasicAnswer(prompt), nil
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type pageInfo struct {
	service string
	title   string
	buttons []string
}

func parsePage(prompt string) pageInfo {
	info := pageInfo{service: "AWS Console", title: "Unknown"}
	if m := serviceRe.FindStringSubmatch(prompt); m != nil {
		info.service = strings.TrimSpace(m[1])
	}
	if m := titleRe.FindStringSubmatch(prompt); m != nil {
		info.title = strings.TrimSpace(m[1])
	}

	inButtons := false
	for _, line := range strings.Split(prompt, "\n") {
		switch {
		case strings.HasPrefix(strings.TrimSpace(line), "Buttons ("):
			inButtons = true
		case inButtons && strings.TrimSpace(line) == "":
			inButtons = false
		case inButtons:
			if m := buttonRe.FindStringSubmatch(line); m != nil {
				info.buttons = append(info.buttons, m[1])
			}
		}
	}
	return info
}

var configSections = []string{
	"Configure basic settings and naming",
	"Select platform, region, or instance type",
	"Configure security and access settings",
	"Set up networking and storage options",
	"Configure monitoring and logging",
}

func (l *Local) plan(ctx context.Context, prompt string) plan.TaskPlan {
	request := ""
	if m := requestRe.FindStringSubmatch(prompt); m != nil {
		request = m[1]
	}
	continuation := strings.Contains(prompt, MarkerContinuation)
	if !continuation {
		res, err := l.policy.Evaluate(ctx, governance.Request{Prompt: request})
		if err == nil && res.Effect == governance.EffectClarify {
			return plan.ClarificationPlan()
		}
	}

	page := parsePage(prompt)
	var steps []plan.Step
	add := func(s plan.Step) {
		s.ID = len(steps) + 1
		steps = append(steps, s)
	}

	if !continuation {
		if !strings.Contains(strings.ToLower(page.service), "console") || page.title == "Unknown" {
			add(plan.Step{
				Type:        plan.Navigation,
				Description: "Navigate to AWS Console services",
				Element:     []string{"button", `[data-testid="services-menu"]`, `a[href*="console"]`},
				Details:     "Access the AWS services menu to find the service you need for your task.",
				ButtonName:  "Services",
				ExecutionSteps: []string{
					"Look for 'Services' in the top navigation bar",
					"Click on 'Services' to open the services menu",
					"Search for or browse to find the service you need",
					"Click on the appropriate service",
				},
			})
		}
		add(plan.Step{
			Type:        plan.Navigation,
			Description: "Navigate to the appropriate AWS service for: " + request,
			Element:     []string{"a", "button", `[data-testid="service-link"]`},
			Details:     "Find and click on the AWS service that handles your specific request.",
			ButtonName:  "Service Navigation",
			ExecutionSteps: []string{
				"Identify which AWS service handles your request",
				"Look for the service in the navigation or services menu",
				"Click on the service name or icon",
				"Wait for the service console to load",
			},
		})
	}

	start := []string{`button:contains("Create")`, `button:contains("Launch")`, ".awsui-button-primary"}
	startName := "Create/Launch"
	if b, ok := actionButton(page.buttons, request); ok {
		start = append([]string{fmt.Sprintf("button:contains(%q)", b)}, start...)
		startName = b
	}
	add(plan.Step{
		Type:        plan.Instruction,
		Description: "Start the creation or configuration process",
		Element:     start,
		Details:     "Look for the main action button to begin your task.",
		ButtonName:  startName,
		ExecutionSteps: []string{
			"Look for the primary action button (usually orange or blue)",
			"Common button names: 'Create', 'Launch', 'Add', 'New'",
			"Click the button to start the process",
			"Wait for the configuration form to load",
		},
	})

	for _, section := range configSections {
		add(plan.Step{
			Type:        plan.FormField,
			Description: section,
			Element:     []string{"input", "select", "textarea", ".awsui-form-field"},
			Details:     fmt.Sprintf("Complete the %s section of the configuration form.", strings.ToLower(section)),
			ButtonName:  "Configuration Form",
			ExecutionSteps: []string{
				"Review the form section carefully",
				"Fill in required fields (marked with *)",
				"Choose appropriate options from dropdowns",
				"Follow any validation messages or recommendations",
			},
		})
	}

	add(plan.Step{
		Type:        plan.Instruction,
		Description: "Review your configuration settings",
		Element:     []string{`button:contains("Review")`, `button:contains("Next")`, ".awsui-button"},
		Details:     "Proceed to review all your configuration choices before final creation.",
		ButtonName:  "Review & Launch",
		ExecutionSteps: []string{
			"Click 'Review' or 'Next' to proceed",
			"Carefully review all configuration settings",
			"Make any necessary changes by going back",
			"Ensure all settings match your requirements",
		},
	})
	add(plan.Step{
		Type:        plan.AwaitUserAction,
		Description: "Launch or create your resource",
		Element:     []string{`button:contains("Launch")`, `button:contains("Create")`, ".awsui-button-primary"},
		Details:     "Complete the final step to create your AWS resource.",
		ButtonName:  "Final Launch",
		ExecutionSteps: []string{
			"Review the final summary one more time",
			"Click the final 'Launch' or 'Create' button",
			"Wait for the creation process to complete",
			"Note any important information displayed (like instance IDs, URLs, etc.)",
		},
	})
	add(plan.Step{
		Type:        plan.Verification,
		Description: "Verify your resource was created successfully",
		Element:     []string{"a", ".awsui-link", `[data-testid="resource-link"]`},
		Details:     "Check that your resource is running and accessible.",
		ButtonName:  "Verification",
		ExecutionSteps: []string{
			"Look for confirmation messages or status indicators",
			"Check that the resource appears in the service dashboard",
			"Verify the resource is in 'Running' or 'Available' state",
			"Note any connection details or next steps provided",
		},
	})

	return plan.TaskPlan{
		Steps:           steps,
		ExternalActions: []plan.ExternalAction{},
		NextTasks: []string{
			"Configure security groups and access permissions",
			"Set up monitoring and alerting",
			"Test the resource functionality",
			"Configure backup and disaster recovery",
			"Review cost optimization opportunities",
			"Set up logging and audit trails",
		},
	}
}

// actionButton picks the page button that best starts request: one sharing a
// word with the request, else the first create/launch style button.
func actionButton(buttons []string, request string) (string, bool) {
	words := strings.Fields(strings.ToLower(request))
	verbs := []string{"create", "launch", "add", "new", "deploy"}
	var fallback string
	for _, b := range buttons {
		lower := strings.ToLower(b)
		isAction := false
		for _, v := range verbs {
			if strings.Contains(lower, v) {
				isAction = true
				break
			}
		}
		if !isAction {
			continue
		}
		for _, w := range words {
			if len(w) > 2 && !containsWord(verbs, w) && strings.Contains(lower, w) {
				return b, true
			}
		}
		if fallback == "" {
			fallback = b
		}
	}
	return fallback, fallback != ""
}

func containsWord(list []string, w string) bool {
	for _, v := range list {
		if v == w {
			return true
		}
	}
	return false
}

func (l *Local) errorFix(prompt string) plan.TaskPlan {
	kind, msg := "error", "the reported error"
	if m := errTypeRe.FindStringSubmatch(prompt); m != nil {
		kind = strings.TrimSpace(m[1])
	}
	if m := errMsgRe.FindStringSubmatch(prompt); m != nil {
		msg = strings.TrimSpace(m[1])
	}
	where := parsePage(prompt).service
	if m := pageCtxRe.FindStringSubmatch(prompt); m != nil {
		where = strings.TrimSpace(m[1])
	}

	steps := []plan.Step{
		{
			ID:          1,
			Type:        plan.Verification,
			Description: fmt.Sprintf("Review the %s: %s", kind, msg),
			Element:     []string{`[role="alert"]`, ".awsui-flash", ".error-message"},
			Details:     "Read the full message shown on the page to see which field or setting it refers to.",
			ButtonName:  "Review Error",
		},
		{
			ID:          2,
			Type:        plan.FormField,
			Description: "Correct the highlighted field or setting",
			Element:     []string{`[aria-invalid="true"]`, "input", "select"},
			Details:     fmt.Sprintf("Update the value that caused the problem on the %s page.", where),
			ButtonName:  "Fix Field",
		},
		{
			ID:          3,
			Type:        plan.AwaitUserAction,
			Description: "Retry the action",
			Element:     []string{`button[type="submit"]`, ".awsui-button-primary"},
			Details:     "Submit again and check that the error no longer appears.",
			ButtonName:  "Retry",
		},
	}
	return plan.TaskPlan{
		Steps:           steps,
		ExternalActions: []plan.ExternalAction{},
		NextTasks:       []string{},
	}
}

var serviceFollowUps = map[string][]string{
	"s3": {
		"Configure bucket policy and access permissions",
		"Enable versioning and lifecycle rules",
		"Set up server access logging",
		"Enable default encryption",
		"Configure cross-region replication",
	},
	"ec2": {
		"Configure security group inbound rules",
		"Attach an Elastic IP address",
		"Set up CloudWatch alarms for the instance",
		"Create an AMI backup of the instance",
		"Review instance right-sizing for cost",
	},
	"lambda": {
		"Add a trigger for the function",
		"Configure environment variables",
		"Set up CloudWatch log retention",
		"Review the execution role permissions",
		"Configure function concurrency limits",
	},
	"rds": {
		"Configure automated backups and snapshots",
		"Restrict the database security group",
		"Enable Performance Insights",
		"Set up a read replica",
		"Review storage autoscaling settings",
	},
	"iam": {
		"Enable MFA for the new identity",
		"Review attached policies for least privilege",
		"Set up access key rotation",
		"Add the user to a group",
		"Enable IAM Access Analyzer",
	},
}

func (l *Local) nextTasks(prompt string) []string {
	subject := strings.ToLower(parsePage(prompt).service)
	if m := completedRe.FindStringSubmatch(prompt); m != nil {
		subject += " " + strings.ToLower(m[1])
	}
	for _, key := range []string{"s3", "ec2", "lambda", "rds", "iam"} {
		if strings.Contains(subject, key) {
			return serviceFollowUps[key]
		}
	}
	return plan.GenericNextTasks()
}

// BasicAnswer is the canned answer for a question about a core service.
func BasicAnswer(question string) string {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "s3"):
		return "Amazon S3 (Simple Storage Service) is a scalable object storage service. It's commonly used for backup, archiving, data lakes, and static website hosting. S3 offers different storage classes for different use cases and cost optimization."
	case strings.Contains(q, "ec2"):
		return "Amazon EC2 (Elastic Compute Cloud) provides scalable virtual servers in the cloud. You can choose from various instance types optimized for different workloads like compute, memory, or storage intensive applications."
	case strings.Contains(q, "lambda"):
		return "AWS Lambda is a serverless compute service that runs code without managing servers. You pay only for compute time consumed. It's great for event-driven applications and microservices."
	case strings.Contains(q, "rds"):
		return "Amazon RDS (Relational Database Service) is a managed database service supporting MySQL, PostgreSQL, Oracle, SQL Server, and MariaDB. It handles backups, patching, and scaling automatically."
	case strings.Contains(q, "iam"):
		return "AWS IAM (Identity and Access Management) controls access to AWS services and resources. It uses users, groups, roles, and policies to manage permissions securely."
	}
	return "I can help you with AWS services and tasks. For detailed information, please ask specific questions about AWS services like S3, EC2, Lambda, RDS, or IAM. You can also ask me to help you create or configure these services."
}
