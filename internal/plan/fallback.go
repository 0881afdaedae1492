package plan

import (
	"fmt"
	"net/url"
	"strings"
)

// GuessService scans text for a well-known service name.
func GuessService(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "lambda"):
		return "Lambda"
	case strings.Contains(lower, "s3"):
		return "S3"
	case strings.Contains(lower, "ec2"):
		return "EC2"
	case strings.Contains(lower, "rds"):
		return "RDS"
	}
	return "AWS service"
}

// FallbackPlan is returned when an oracle response could not be parsed at all.
func FallbackPlan(response string) TaskPlan {
	service := GuessService(response)
	return TaskPlan{
		Steps: []Step{
			{
				ID:          1,
				Type:        Instruction,
				Description: fmt.Sprintf("AI response could not be parsed. Navigate to %s service manually.", service),
				Details: fmt.Sprintf("The AI generated an invalid response format. Please navigate to the %s service in the AWS Console "+
					"and try a simpler request like \"help me create\" or \"show me the steps\".", service),
				Element:        []string{},
				ButtonName:     defaultButtonName,
				ExecutionSteps: []string{defaultExecutionStep},
			},
			{
				ID:             2,
				Type:           Instruction,
				Description:    "Try a simpler request",
				Details:        "Break your request into smaller steps, like \"create function\" instead of \"setup lambda with all configurations\".",
				Element:        []string{},
				ButtonName:     defaultButtonName,
				ExecutionSteps: []string{defaultExecutionStep},
			},
		},
		ExternalActions: []ExternalAction{},
		NextTasks: []string{
			fmt.Sprintf("Navigate to %s service", service),
			"Try a simpler request",
			"Ask for help with specific steps",
		},
	}
}

// ClarificationPlan is the fixed single-step plan for requests too vague to plan.
func ClarificationPlan() TaskPlan {
	return TaskPlan{
		Steps: []Step{{
			ID:          1,
			Type:        Instruction,
			Description: "Please specify what you'd like to do in AWS Console",
			Details: "I need more specific information about your AWS task. Try requests like 'create S3 bucket', " +
				"'launch EC2 instance', 'configure Lambda function', or ask questions like 'what is DynamoDB?'",
			Element:    []string{},
			ButtonName: "Clarification Needed",
			ExecutionSteps: []string{
				"Think about which AWS service you want to use (S3, EC2, Lambda, etc.)",
				"Specify the action you want to perform (create, configure, delete, etc.)",
				"Be specific about the resource type (bucket, instance, function, etc.)",
				"Try again with a clearer, more specific request",
			},
		}},
		ExternalActions: []ExternalAction{},
		NextTasks:       []string{},
	}
}

// NavigationToAWSPlan guides the user from a non-console page to the console.
// The first step is phrased after the page the user is currently on.
func NavigationToAWSPlan(userPrompt, currentURL string) TaskPlan {
	first := Step{
		ID:          1,
		Type:        Instruction,
		Description: "Open AWS Console in a new tab",
		Details:     "Press Ctrl+T (Cmd+T on Mac) to open a new tab, then type 'console.aws.amazon.com' in the address bar",
		Element:     []string{},
	}

	switch {
	case strings.Contains(currentURL, "google.com") || strings.Contains(currentURL, "search"):
		first.Description = "Navigate to AWS Console from your current search page"
		first.Element = []string{"input[name='q']", "input[type='search']", "#search"}
		first.Details = "Type 'AWS Console' in the search bar and click the first result, or directly type 'console.aws.amazon.com' in the address bar"
	case strings.Contains(currentURL, "github.com"):
		first.Description = "Open AWS Console in a new tab from GitHub"
	case currentURL == "" || strings.Contains(currentURL, "chrome://") || strings.Contains(currentURL, "about:"):
		first.Description = "Navigate to AWS Console"
		first.Element = []string{"input[type='url']", "#omnibox", ".address-bar"}
		first.Details = "Click on the address bar and type 'console.aws.amazon.com', then press Enter"
	}

	return fixedPlan(userPrompt,
		first,
		Step{
			Type:        AwaitUserAction,
			Description: "Sign in to your AWS account if prompted",
			Details:     "Enter your AWS credentials, use SSO, or select your saved account if already configured",
		},
		Step{
			Type:        Instruction,
			Description: "Once logged in, return to Console Nano and try your request again",
			Details: fmt.Sprintf("Original request: %q. Console Nano will automatically detect you're now on AWS "+
				"and provide the appropriate steps.", userPrompt),
		},
	)
}

// RefreshPlan is used when the active console tab did not answer even after a reload.
func RefreshPlan(userPrompt string) TaskPlan {
	return fixedPlan(userPrompt, Step{
		Type:        Instruction,
		Description: "Page refreshed automatically. If this message persists, please refresh manually",
		Details:     "Press F5 or Ctrl+R (Cmd+R on Mac) to reload the page, then try again",
	})
}

// TabSwitchPlan is used after the engine activated the only console tab.
func TabSwitchPlan(userPrompt string) TaskPlan {
	return fixedPlan(userPrompt, Step{
		Type:        Instruction,
		Description: "Switched to your AWS Console tab. Please try your request again.",
		Details:     "Console Nano has switched to your open AWS tab. You can now proceed with your request.",
	})
}

// TabChoicePlan asks the user to pick one of several console tabs. Each entry
// of choices is already formatted by TabChoice.
func TabChoicePlan(userPrompt string, choices []string) TaskPlan {
	return fixedPlan(userPrompt, Step{
		Type:        Instruction,
		Description: "Multiple AWS tabs detected. Please choose which tab to use:",
		Details: fmt.Sprintf("Found %d AWS tabs: \n%s \n\nPlease click on the tab you want to use, then try your request again.",
			len(choices), strings.Join(choices, "\n")),
	})
}

// fixedPlan numbers the steps, fills defaults and suggests retrying the prompt.
func fixedPlan(userPrompt string, steps ...Step) TaskPlan {
	for i := range steps {
		steps[i].ID = i + 1
		if steps[i].Element == nil {
			steps[i].Element = []string{}
		}
		if steps[i].ButtonName == "" {
			steps[i].ButtonName = defaultButtonName
		}
		if len(steps[i].ExecutionSteps) == 0 {
			steps[i].ExecutionSteps = []string{defaultExecutionStep}
		}
	}
	return TaskPlan{
		Steps:           steps,
		ExternalActions: []ExternalAction{},
		NextTasks:       []string{userPrompt},
	}
}

// TabChoice formats one console tab for TabChoicePlan. The first path
// segment stands in for a missing title.
func TabChoice(n int, title, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Sprintf("%d. %s", n, title)
	}
	if title == "" {
		title = strings.Split(strings.TrimPrefix(u.Path, "/"), "/")[0]
		if title == "" {
			title = "Console"
		}
	}
	return fmt.Sprintf("%d. %s (%s)", n, title, u.Hostname())
}

// GenericNextTasks is the suggestion list used when the oracle could not
// produce contextual follow-ups.
func GenericNextTasks() []string {
	return []string{
		"Configure security groups and access permissions",
		"Set up monitoring and alerting with CloudWatch",
		"Test the resource functionality and connectivity",
		"Configure backup and disaster recovery options",
		"Review and optimize cost settings",
		"Set up logging and audit trails",
	}
}
