package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rahul/consolenano/internal/background"
	"github.com/rahul/consolenano/internal/bridge"
	"github.com/rahul/consolenano/internal/oracle"
	"github.com/rahul/consolenano/internal/page"
	"github.com/rahul/consolenano/internal/plan"
	"github.com/rahul/consolenano/internal/store"
	"github.com/rahul/consolenano/pkg/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is a bus endpoint that remembers what it got and answers from a
// table keyed by message type.
type recorder struct {
	mu      sync.Mutex
	got     []bridge.Message
	replies map[bridge.Type]any
	queued  map[bridge.Type][]any
	delay   time.Duration
}

func newRecorder() *recorder {
	return &recorder{replies: map[bridge.Type]any{}, queued: map[bridge.Type][]any{}}
}

func (r *recorder) HandleMessage(ctx context.Context, msg bridge.Message) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, msg)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if q := r.queued[msg.Type]; len(q) > 0 {
		r.queued[msg.Type] = q[1:]
		return q[0]
	}
	if reply, ok := r.replies[msg.Type]; ok {
		return reply
	}
	return bridge.OK()
}

// enqueue answers the next messages of type t with vs, in order, before
// falling back to the reply table.
func (r *recorder) enqueue(t bridge.Type, vs ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queued[t] = append(r.queued[t], vs...)
}

func (r *recorder) slow(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
}

func (r *recorder) reply(t bridge.Type, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies[t] = v
}

func (r *recorder) ofType(t bridge.Type) []bridge.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bridge.Message
	for _, m := range r.got {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type activeTab struct{ id string }

func (a activeTab) Active(ctx context.Context) (background.Tab, error) {
	if a.id == "" {
		return background.Tab{}, errors.New("no tab")
	}
	return background.Tab{ID: a.id}, nil
}

type recordingDisplay struct {
	mu    sync.Mutex
	views []View
}

func (d *recordingDisplay) Render(v View) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.views = append(d.views, v)
	return nil
}

func (d *recordingDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.views)
}

type harness struct {
	panel   *Panel
	engine  *recorder
	tab     *recorder
	display *recordingDisplay
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bus := bridge.NewBus(nil)
	t.Cleanup(bus.Close)

	h := &harness{engine: newRecorder(), tab: newRecorder(), display: &recordingDisplay{}}
	bus.Register(bridge.Background, h.engine)
	bus.Register(bridge.TabEndpoint("1"), h.tab)
	h.tab.reply(bridge.HighlightMultiple, bridge.HighlightMultipleResponse{Status: bridge.OK(), ElementsFound: true})
	h.tab.reply(bridge.HighlightElement, bridge.HighlightResponse{Status: bridge.OK(), ElementFound: true})

	cfg := config.PanelConfig{ContextPollInterval: time.Hour, ErrorBanner: time.Hour, InfoBanner: time.Hour}
	h.panel = New(bus, activeTab{id: "1"}, h.display, cfg, nil)
	h.panel.HighlightDelays = []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}
	t.Cleanup(h.panel.Stop)
	return h
}

func twoStepPlan() plan.TaskPlan {
	return plan.TaskPlan{
		Steps: []plan.Step{
			{ID: 1, Type: plan.Navigation, Description: "Open S3", Element: []string{"a[href*='s3']", "#s3"}},
			{ID: 2, Type: plan.Verification, Description: "Check the <b>bucket</b> list", Element: []string{"h1"}},
		},
		ExternalActions: []plan.ExternalAction{},
		NextTasks:       []string{"Upload files to S3"},
	}
}

func decode[T any](t *testing.T, msg bridge.Message) T {
	t.Helper()
	var v T
	require.NoError(t, msg.Decode(&v))
	return v
}

func TestQuestionGoesToAnswerPath(t *testing.T) {
	h := newHarness(t)
	h.engine.reply(bridge.AnswerQuestion, background.AnswerResponse{Status: bridge.OK(), Answer: "S3 stores <b>objects</b>."})
	h.engine.reply(bridge.GetQuestionHistory, background.QuestionsResponse{Status: bridge.OK(), Questions: []store.Question{{Question: "what is s3"}}})

	require.NoError(t, h.panel.HandleInput(context.Background(), "what is s3"))

	added := h.engine.ofType(bridge.AddQuestionHistory)
	require.Len(t, added, 1)
	assert.Equal(t, "what is s3", decode[bridge.QuestionRequest](t, added[0]).Question)
	assert.Empty(t, h.engine.ofType(bridge.StartNewTask))

	v := h.panel.View()
	assert.Equal(t, ScreenComplete, v.Screen)
	assert.Equal(t, "what is s3", v.Question)
	assert.Equal(t, "S3 stores objects.", v.Answer)
	assert.Len(t, v.Questions, 1)
}

func TestQuestionFallsBackToBasicAnswer(t *testing.T) {
	h := newHarness(t)
	h.engine.reply(bridge.AnswerQuestion, background.AnswerResponse{Status: bridge.Fail(errors.New("Failed to generate answer"))})

	require.NoError(t, h.panel.HandleInput(context.Background(), "Tell me about lambda?"))
	assert.Equal(t, oracle.BasicAnswer("Tell me about lambda?"), h.panel.View().Answer)
}

func TestStartTaskRendersAndHighlights(t *testing.T) {
	h := newHarness(t)
	p := twoStepPlan()
	h.engine.reply(bridge.StartNewTask, background.NewTaskResponse{
		Status:      bridge.OK(),
		Plan:        &p,
		Context:     &page.Snapshot{Service: "S3"},
		UsingMockAI: true,
	})

	require.NoError(t, h.panel.HandleInput(context.Background(), "create an s3 bucket"))

	req := decode[bridge.PromptRequest](t, h.engine.ofType(bridge.StartNewTask)[0])
	assert.Equal(t, "create an s3 bucket", req.UserPrompt)

	v := h.panel.View()
	assert.Equal(t, ScreenTask, v.Screen)
	assert.Equal(t, "create an s3 bucket", v.Title)
	assert.Equal(t, "S3", v.Service)
	assert.True(t, v.UsingMockAI)
	require.Len(t, v.Steps, 2)
	assert.Equal(t, StepActive, v.Steps[0].Status)
	assert.Equal(t, ActionDone, v.Steps[0].Action)
	assert.Equal(t, StepPending, v.Steps[1].Status)
	assert.Equal(t, "Check the bucket list", v.Steps[1].Description)
	assert.Nil(t, v.Banner)

	assert.Eventually(t, func() bool {
		return len(h.tab.ofType(bridge.HighlightMultiple)) == 3
	}, time.Second, 5*time.Millisecond)
	got := decode[bridge.HighlightMultipleRequest](t, h.tab.ofType(bridge.HighlightMultiple)[0])
	assert.Equal(t, []string{"a[href*='s3']", "#s3"}, got.Selectors)
}

func TestStartTaskFailureShowsBanner(t *testing.T) {
	h := newHarness(t)
	h.engine.reply(bridge.StartNewTask, background.NewTaskResponse{Status: bridge.Fail(errors.New("No active tab found. Please open an AWS Console page."))})

	require.NoError(t, h.panel.StartTask(context.Background(), "create a bucket"))
	v := h.panel.View()
	assert.Equal(t, ScreenWelcome, v.Screen)
	require.NotNil(t, v.Banner)
	assert.Equal(t, BannerError, v.Banner.Kind)
	assert.Equal(t, "No active tab found. Please open an AWS Console page.", v.Banner.Text)
}

func TestRecoveryBanners(t *testing.T) {
	tests := []struct {
		name string
		resp background.NewTaskResponse
		kind BannerKind
		text string
	}{
		{"navigate", background.NewTaskResponse{NeedsNavigation: true}, BannerInfo, msgNavigate},
		{"refresh", background.NewTaskResponse{NeedsRefresh: true}, BannerInfo, msgRefresh},
		{"switch", background.NewTaskResponse{NeedsTabSwitch: true}, BannerSuccess, msgTabSwitched},
		{"choice", background.NewTaskResponse{NeedsTabChoice: true, AWSTabs: []background.Tab{
			{ID: "2", Title: "EC2 Instances", URL: "https://console.aws.amazon.com/ec2/home"},
			{ID: "3", URL: "https://console.aws.amazon.com/s3/buckets"},
		}}, BannerInfo, "Multiple AWS tabs found:\n1. EC2 Instances\n2. s3\n\nPlease click on the tab you want to use, then try your request again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			p := plan.RefreshPlan("create a bucket")
			tt.resp.Status = bridge.OK()
			tt.resp.Plan = &p
			h.engine.reply(bridge.StartNewTask, tt.resp)

			require.NoError(t, h.panel.StartTask(context.Background(), "create a bucket"))
			v := h.panel.View()
			assert.Equal(t, ScreenTask, v.Screen)
			require.NotNil(t, v.Banner)
			assert.Equal(t, tt.kind, v.Banner.Kind)
			assert.Equal(t, tt.text, v.Banner.Text)
		})
	}
}

func TestCompleteStepAdaptsThenFinishes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := twoStepPlan()
	h.engine.reply(bridge.StartNewTask, background.NewTaskResponse{Status: bridge.OK(), Plan: &p})
	require.NoError(t, h.panel.StartTask(ctx, "create an s3 bucket"))

	adapted := twoStepPlan()
	adapted.Steps[1] = plan.Step{ID: 2, Type: plan.FormField, Description: "Enter a bucket name", Element: []string{"#bucket-name"}}
	h.engine.reply(bridge.CompleteStep, background.StepResponse{Status: bridge.OK(), NewStep: 1, PlanAdapted: true, Plan: &adapted})

	require.NoError(t, h.panel.Execute(ctx, "/done"))
	assert.Equal(t, 0, decode[bridge.StepRequest](t, h.engine.ofType(bridge.CompleteStep)[0]).Step)

	v := h.panel.View()
	require.Len(t, v.Steps, 2)
	assert.Equal(t, StepDone, v.Steps[0].Status)
	assert.Equal(t, StepActive, v.Steps[1].Status)
	assert.Equal(t, "Enter a bucket name", v.Steps[1].Description)
	require.NotNil(t, v.Banner)
	assert.Equal(t, msgAdapted, v.Banner.Text)

	assert.Eventually(t, func() bool {
		for _, m := range h.tab.ofType(bridge.HighlightElement) {
			var req bridge.HighlightRequest
			if m.Decode(&req) == nil && len(req.Selector) == 1 && req.Selector[0] == "#bucket-name" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	h.engine.reply(bridge.CompleteStep, background.StepResponse{
		Status:        bridge.OK(),
		TaskComplete:  true,
		NextTasks:     []string{"Upload files to S3", "Enable versioning"},
		CompletedTask: "create an s3 bucket",
	})
	h.engine.reply(bridge.GetCurrentState, background.StateResponse{Status: bridge.OK(), State: &background.State{
		CompletedTasks: []store.CompletedTask{{Prompt: "create an s3 bucket", Summary: "create an s3 bucket", Service: "S3"}},
	}})
	require.NoError(t, h.panel.Execute(ctx, "/done"))
	assert.Equal(t, 1, decode[bridge.StepRequest](t, h.engine.ofType(bridge.CompleteStep)[1]).Step)

	v = h.panel.View()
	assert.Equal(t, ScreenComplete, v.Screen)
	assert.Equal(t, "create an s3 bucket", v.Completed)
	assert.Equal(t, []string{"Upload files to S3", "Enable versioning"}, v.NextTasks)
	require.Len(t, v.Tasks, 1)

	next := plan.RefreshPlan("Enable versioning")
	h.engine.reply(bridge.StartNewTask, background.NewTaskResponse{Status: bridge.OK(), Plan: &next})
	require.NoError(t, h.panel.Execute(ctx, "/next 2"))
	starts := h.engine.ofType(bridge.StartNewTask)
	require.Len(t, starts, 2)
	assert.Equal(t, "Enable versioning", decode[bridge.PromptRequest](t, starts[1]).UserPrompt)
}

func TestCompleteStepError(t *testing.T) {
	h := newHarness(t)
	p := twoStepPlan()
	h.engine.reply(bridge.StartNewTask, background.NewTaskResponse{Status: bridge.OK(), Plan: &p})
	require.NoError(t, h.panel.StartTask(context.Background(), "create an s3 bucket"))

	h.engine.reply(bridge.CompleteStep, background.StepResponse{Status: bridge.Status{}})
	require.NoError(t, h.panel.CompleteStep(context.Background()))
	v := h.panel.View()
	require.NotNil(t, v.Banner)
	assert.Equal(t, msgStepErr, v.Banner.Text)
	assert.Equal(t, StepActive, v.Steps[0].Status)
}

func TestConcurrentCompleteStepAfterFinish(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := twoStepPlan()
	h.engine.reply(bridge.StartNewTask, background.NewTaskResponse{Status: bridge.OK(), Plan: &p})
	require.NoError(t, h.panel.StartTask(ctx, "create an s3 bucket"))

	// the engine keeps the finished task at step 0, so the second confirmation advances it again
	h.engine.enqueue(bridge.CompleteStep,
		background.StepResponse{Status: bridge.OK(), TaskComplete: true, CompletedTask: "create an s3 bucket"},
		background.StepResponse{Status: bridge.OK(), NewStep: 1},
	)
	h.engine.slow(50 * time.Millisecond)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = h.panel.CompleteStep(ctx)
		}()
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Len(t, h.engine.ofType(bridge.CompleteStep), 2)

	v := h.panel.View()
	assert.Equal(t, ScreenComplete, v.Screen)
	assert.Equal(t, "create an s3 bucket", v.Completed)
	assert.Empty(t, v.Steps)

	// the panel is still usable afterwards
	h.engine.slow(0)
	require.NoError(t, h.panel.Execute(ctx, "/home"))
	assert.Equal(t, ScreenWelcome, h.panel.View().Screen)
}

func TestBannerExpires(t *testing.T) {
	h := newHarness(t)
	h.panel.Config.ErrorBanner = 20 * time.Millisecond
	h.panel.Config.InfoBanner = time.Hour

	h.panel.ShowBanner(BannerError, "Bucket name already exists")
	require.NotNil(t, h.panel.View().Banner)
	assert.Eventually(t, func() bool { return h.panel.View().Banner == nil }, time.Second, 5*time.Millisecond)

	h.panel.ShowBanner(BannerInfo, "hello")
	time.Sleep(40 * time.Millisecond)
	require.NotNil(t, h.panel.View().Banner)
	require.NoError(t, h.panel.Execute(context.Background(), "/dismiss"))
	assert.Nil(t, h.panel.View().Banner)
}

func TestContextPollSurfacesFirstError(t *testing.T) {
	h := newHarness(t)
	h.engine.reply(bridge.GetPageContext, page.ContextResponse{Status: bridge.OK(), Context: &page.Snapshot{
		Service: "EC2",
		Errors: []page.ErrorDescriptor{
			{Type: "error", Message: "You are not authorized"},
			{Type: "warning", Message: "Quota almost reached"},
		},
	}})

	h.panel.UpdateContext(context.Background())
	v := h.panel.View()
	assert.Equal(t, "EC2", v.Service)
	require.NotNil(t, v.Banner)
	assert.Equal(t, "You are not authorized", v.Banner.Text)

	renders := h.display.count()
	h.panel.UpdateContext(context.Background())
	assert.Equal(t, renders, h.display.count())
}

func TestErrorFixFromEngine(t *testing.T) {
	h := newHarness(t)
	fix := plan.TaskPlan{Steps: []plan.Step{
		{ID: 1, Type: plan.Instruction, Description: "Review the error"},
		{ID: 2, Type: plan.FormField, Description: "Pick another name", Element: []string{"#bucket-name"}},
	}}
	msg := bridge.NewMessage(bridge.DisplayErrorFix, background.ErrorFixResponse{
		Status:    bridge.OK(),
		FixPlan:   &fix,
		ErrorInfo: &bridge.ErrorEvent{Type: "error", Message: "Bucket name already exists"},
	})
	resp := h.panel.HandleMessage(context.Background(), msg)
	assert.Equal(t, bridge.OK(), resp)

	v := h.panel.View()
	assert.Equal(t, ScreenTask, v.Screen)
	assert.Equal(t, "Fix: Bucket name already exists", v.Title)
	assert.Len(t, v.Steps, 2)

	assert.Equal(t, bridge.Unknown(), h.panel.HandleMessage(context.Background(), bridge.NewMessage("NOPE", nil)))
}

func TestHistoryCommands(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.engine.reply(bridge.GetCurrentState, background.StateResponse{Status: bridge.OK(), State: &background.State{
		CompletedTasks: []store.CompletedTask{{Prompt: "create bucket a"}, {Prompt: "launch instance b"}},
	}})
	h.engine.reply(bridge.GetQuestionHistory, background.QuestionsResponse{Status: bridge.OK(), Questions: []store.Question{{Question: "what is iam"}}})
	require.NoError(t, h.panel.Load(ctx))
	assert.Equal(t, ScreenWelcome, h.panel.View().Screen)
	assert.Len(t, h.panel.View().Tasks, 2)

	require.NoError(t, h.panel.Execute(ctx, "/delete-task 2"))
	del := h.engine.ofType(bridge.DeleteCompletedTask)
	require.Len(t, del, 1)
	assert.Equal(t, 1, decode[bridge.IndexRequest](t, del[0]).Index)

	require.NoError(t, h.panel.Execute(ctx, "/delete-question 1"))
	assert.Equal(t, 0, decode[bridge.IndexRequest](t, h.engine.ofType(bridge.DeleteQuestion)[0]).Index)

	require.NoError(t, h.panel.Execute(ctx, "/clear-tasks"))
	require.NoError(t, h.panel.Execute(ctx, "/clear-questions"))
	assert.Len(t, h.engine.ofType(bridge.ClearTaskHistory), 1)
	assert.Len(t, h.engine.ofType(bridge.ClearQuestionHistory), 1)

	p := plan.RefreshPlan("x")
	h.engine.reply(bridge.StartNewTask, background.NewTaskResponse{Status: bridge.OK(), Plan: &p})
	require.NoError(t, h.panel.Execute(ctx, "/rerun 2"))
	assert.Equal(t, "launch instance b", decode[bridge.PromptRequest](t, h.engine.ofType(bridge.StartNewTask)[0]).UserPrompt)

	h.engine.reply(bridge.AnswerQuestion, background.AnswerResponse{Status: bridge.OK(), Answer: "IAM controls access."})
	require.NoError(t, h.panel.Execute(ctx, "/ask 1"))
	assert.Equal(t, "IAM controls access.", h.panel.View().Answer)
}

func TestCommandErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.panel.Execute(ctx, "/frobnicate"))
	assert.Equal(t, "Unknown command /frobnicate. Try /help.", h.panel.View().Banner.Text)

	require.NoError(t, h.panel.Execute(ctx, "/rerun"))
	assert.Equal(t, "Usage: /rerun N", h.panel.View().Banner.Text)

	require.NoError(t, h.panel.Execute(ctx, "/rerun 0"))
	assert.Equal(t, "Usage: /rerun N", h.panel.View().Banner.Text)

	require.NoError(t, h.panel.Execute(ctx, "/next 4"))
	assert.Equal(t, "/next: there is no entry 4", h.panel.View().Banner.Text)

	require.NoError(t, h.panel.Execute(ctx, "/help"))
	assert.Contains(t, h.panel.View().Banner.Text, "/delete-question N")

	require.NoError(t, h.panel.Execute(ctx, "/done"))
	assert.Empty(t, h.engine.ofType(bridge.CompleteStep))
}

func TestResetAndHome(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := twoStepPlan()
	h.engine.reply(bridge.StartNewTask, background.NewTaskResponse{Status: bridge.OK(), Plan: &p})
	require.NoError(t, h.panel.StartTask(ctx, "create an s3 bucket"))
	h.engine.reply(bridge.CompleteStep, background.StepResponse{Status: bridge.OK(), NewStep: 1})
	require.NoError(t, h.panel.CompleteStep(ctx))
	require.Equal(t, StepActive, h.panel.View().Steps[1].Status)

	require.NoError(t, h.panel.Execute(ctx, "/reset"))
	assert.Len(t, h.engine.ofType(bridge.ResetTask), 1)
	assert.Len(t, h.tab.ofType(bridge.ClearHighlight), 1)
	assert.Equal(t, StepActive, h.panel.View().Steps[0].Status)

	h.panel.ShowBanner(BannerInfo, "something")
	require.NoError(t, h.panel.Execute(ctx, "/home"))
	assert.Len(t, h.engine.ofType(bridge.ClearSession), 1)
	v := h.panel.View()
	assert.Equal(t, ScreenWelcome, v.Screen)
	assert.Nil(t, v.Banner)
	assert.Empty(t, v.Steps)
}

func TestHighlightFailuresAreSilent(t *testing.T) {
	h := newHarness(t)
	h.panel.Tabs = activeTab{}
	p := twoStepPlan()
	h.engine.reply(bridge.StartNewTask, background.NewTaskResponse{Status: bridge.OK(), Plan: &p})
	require.NoError(t, h.panel.StartTask(context.Background(), "create an s3 bucket"))

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, h.tab.ofType(bridge.HighlightMultiple))
	assert.Nil(t, h.panel.View().Banner)
}

func TestStepViews(t *testing.T) {
	p := plan.TaskPlan{Steps: []plan.Step{
		{Type: plan.Navigation},
		{Type: plan.Verification},
		{Type: plan.AwaitUserAction},
	}}
	views := StepViews(&p, 1)
	require.Len(t, views, 3)
	assert.Equal(t, StepDone, views[0].Status)
	assert.Empty(t, views[0].Action)
	assert.Equal(t, StepActive, views[1].Status)
	assert.Equal(t, ActionContinue, views[1].Action)
	assert.Equal(t, StepPending, views[2].Status)

	assert.Equal(t, ActionDone, StepViews(&p, 2)[2].Action)
	assert.Empty(t, StepViews(nil, 0))
}

func TestRenderers(t *testing.T) {
	p := twoStepPlan()
	v := View{
		Screen:  ScreenTask,
		Title:   "create an s3 bucket",
		Steps:   StepViews(&p, 0),
		Service: "S3",
		Banner:  &Banner{Kind: BannerInfo, Text: msgAdapted},
	}

	text := Text(v)
	assert.Contains(t, text, "ℹ "+msgAdapted)
	assert.Contains(t, text, "▶ 1. Open S3")
	assert.Contains(t, text, "→ /done (Done)")
	assert.Contains(t, text, "  2. Check the <b>bucket</b> list")

	var buf bytes.Buffer
	require.NoError(t, NewTerminalDisplay(&buf).Render(v))
	assert.Contains(t, buf.String(), "create an s3 bucket")
	assert.Contains(t, buf.String(), "Open S3")

	done := Text(View{Screen: ScreenComplete, Completed: "create an s3 bucket", NextTasks: []string{"Upload files"}})
	assert.Contains(t, done, `Completed: "create an s3 bucket"`)
	assert.Contains(t, done, "/next 1  Upload files")

	answer := Text(View{Screen: ScreenComplete, Question: "what is s3", Answer: "Object storage."})
	assert.Equal(t, "Question: what is s3\n\nAnswer:\nObject storage.", answer)
}

type failingDisplay struct{}

func (failingDisplay) Render(View) error { return errors.New("offline") }

func TestMultiRendersEverywhere(t *testing.T) {
	a, b := &recordingDisplay{}, &recordingDisplay{}
	err := Multi{a, failingDisplay{}, b}.Render(View{Screen: ScreenWelcome})

	assert.EqualError(t, err, "offline")
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

func TestEndpointMessagesRoundTrip(t *testing.T) {
	// the panel answers advisory pushes with a plain status
	h := newHarness(t)
	resp := h.panel.HandleMessage(context.Background(), bridge.NewMessage(bridge.ElementInteracted, bridge.ElementInteractedEvent{ElementText: "Create bucket"}))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(raw))
}
