package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"sitebuilder/internal/util"
	"sitebuilder/pkg/domain"
	"sitebuilder/pkg/queue"
	"sitebuilder/pkg/store"
)

type scriptedResponse struct {
	text string
	err  error
}

type scriptedGenerator struct {
	mu        sync.Mutex
	responses []scriptedResponse
	calls     []string
}

func (g *scriptedGenerator) script(responses ...scriptedResponse) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses = append(g.responses, responses...)
}

func (g *scriptedGenerator) GenerateText(_ context.Context, systemPrompt, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, systemPrompt)
	if len(g.responses) == 0 {
		return "", errors.New("scripted generator exhausted")
	}
	next := g.responses[0]
	g.responses = g.responses[1:]
	return next.text, next.err
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type captureEnqueuer struct {
	mu   sync.Mutex
	jobs []queue.Job
	fail error
}

func (e *captureEnqueuer) Enqueue(_ context.Context, projectID, userID string) (queue.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return queue.Job{}, e.fail
	}
	job := queue.Job{ID: util.NewID(), ProjectID: projectID, UserID: userID, Status: queue.StatusQueued}
	e.jobs = append(e.jobs, job)
	return job, nil
}

func (e *captureEnqueuer) last(t *testing.T) queue.Job {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.jobs) == 0 {
		t.Fatal("no job enqueued")
	}
	return e.jobs[len(e.jobs)-1]
}

func newTestApp(t *testing.T, startingCredits int64) (*App, *store.MemoryStore, *scriptedGenerator, *captureEnqueuer) {
	t.Helper()
	memStore := store.NewMemoryStore()
	gen := &scriptedGenerator{}
	enq := &captureEnqueuer{}
	a, err := New(Config{
		Store:           memStore,
		Generator:       gen,
		Queue:           enq,
		StartingCredits: startingCredits,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, memStore, gen, enq
}

func mustEnsureUser(t *testing.T, a *App, id string) domain.User {
	t.Helper()
	user, err := a.EnsureUser(id)
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	return user
}

func mustCredits(t *testing.T, a *App, userID string) int64 {
	t.Helper()
	credits, err := a.Credits(userID)
	if err != nil {
		t.Fatalf("credits: %v", err)
	}
	return credits
}

func createReadyProject(t *testing.T, a *App, gen *scriptedGenerator, enq *captureEnqueuer, user domain.User, code string) domain.Project {
	t.Helper()
	ctx := context.Background()
	gen.script(
		scriptedResponse{text: "an enhanced brief"},
		scriptedResponse{text: code},
	)
	project, err := a.CreateProject(ctx, user, "Build me a portfolio site")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if err := a.RunGenerationJob(ctx, enq.last(t)); err != nil {
		t.Fatalf("run generation job: %v", err)
	}
	got, err := a.GetProjectDetail(user, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	return got.Project
}

func TestCreateProjectGeneratesInitialVersion(t *testing.T) {
	a, _, gen, enq := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")
	ctx := context.Background()

	gen.script(
		scriptedResponse{text: "an enhanced brief"},
		scriptedResponse{text: "```html\n<h1>Hi</h1>\n```"},
	)
	project, err := a.CreateProject(ctx, user, "Build me a portfolio site")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if project.Status != domain.StatusGenerating {
		t.Fatalf("expected generating status after create, got %q", project.Status)
	}
	if got := mustCredits(t, a, user.ID); got != 15 {
		t.Fatalf("expected 15 credits after debit, got %d", got)
	}

	if err := a.RunGenerationJob(ctx, enq.last(t)); err != nil {
		t.Fatalf("run generation job: %v", err)
	}

	detail, err := a.GetProjectDetail(user, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if detail.Project.Status != domain.StatusReady {
		t.Fatalf("expected ready status, got %q", detail.Project.Status)
	}
	if detail.Project.CurrentCode != "<h1>Hi</h1>" {
		t.Fatalf("expected fences stripped, got %q", detail.Project.CurrentCode)
	}
	if detail.Project.CurrentVersionID == "" {
		t.Fatal("expected current version pointer")
	}
	if len(detail.Versions) != 1 || detail.Versions[0].Description != "Initial Version" {
		t.Fatalf("unexpected versions: %+v", detail.Versions)
	}
	if len(detail.Messages) != 4 {
		t.Fatalf("expected 4 conversation messages, got %d", len(detail.Messages))
	}
	if detail.Messages[0].Role != domain.RoleUser || detail.Messages[0].Content != "Build me a portfolio site" {
		t.Fatalf("unexpected first message: %+v", detail.Messages[0])
	}
	if !strings.HasPrefix(detail.Messages[1].Content, "I've enhanced your prompt to :") {
		t.Fatalf("unexpected enhanced echo: %q", detail.Messages[1].Content)
	}
	if detail.Messages[3].Content != msgWebsiteCreated {
		t.Fatalf("unexpected success message: %q", detail.Messages[3].Content)
	}
	// Success keeps the debit.
	if got := mustCredits(t, a, user.ID); got != 15 {
		t.Fatalf("expected 15 credits after success, got %d", got)
	}

	user2, err := a.EnsureUser(user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if user2.TotalCreations != 1 {
		t.Fatalf("expected creation counter 1, got %d", user2.TotalCreations)
	}
}

func TestCreateProjectRejectsBlankBrief(t *testing.T) {
	a, _, _, _ := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")

	if _, err := a.CreateProject(context.Background(), user, "   \n\t"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCreateProjectInsufficientCreditsCreatesNothing(t *testing.T) {
	a, _, _, enq := newTestApp(t, 3)
	user := mustEnsureUser(t, a, "user-1")

	if _, err := a.CreateProject(context.Background(), user, "Build a site"); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected insufficient credits, got %v", err)
	}
	if got := mustCredits(t, a, user.ID); got != 3 {
		t.Fatalf("expected untouched balance, got %d", got)
	}
	projects, err := a.ListProjects(user)
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(projects) != 0 {
		t.Fatalf("expected no projects, got %d", len(projects))
	}
	if len(enq.jobs) != 0 {
		t.Fatalf("expected no enqueued jobs, got %d", len(enq.jobs))
	}
}

func TestCreateProjectTruncatesLongName(t *testing.T) {
	a, _, _, _ := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")

	brief := strings.Repeat("a", 80)
	project, err := a.CreateProject(context.Background(), user, brief)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if want := strings.Repeat("a", 47) + "..."; project.Name != want {
		t.Fatalf("unexpected name: %q", project.Name)
	}
	if project.InitialPrompt != brief {
		t.Fatal("expected full brief preserved")
	}
}

func TestCreateProjectEnqueueFailureRefunds(t *testing.T) {
	a, _, _, enq := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")
	enq.fail = errors.New("stream unavailable")

	if _, err := a.CreateProject(context.Background(), user, "Build a site"); err == nil {
		t.Fatal("expected enqueue failure to surface")
	}
	if got := mustCredits(t, a, user.ID); got != 20 {
		t.Fatalf("expected refunded balance, got %d", got)
	}
	projects, err := a.ListProjects(user)
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(projects) != 1 || projects[0].Status != domain.StatusEmpty {
		t.Fatalf("expected project reset to empty, got %+v", projects)
	}
}

func TestGenerationJobEmptyOutputRefunds(t *testing.T) {
	a, _, gen, enq := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")
	ctx := context.Background()

	gen.script(
		scriptedResponse{text: "an enhanced brief"},
		scriptedResponse{text: "   "},
	)
	project, err := a.CreateProject(ctx, user, "Build a site")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if err := a.RunGenerationJob(ctx, enq.last(t)); err != nil {
		t.Fatalf("empty output is a settled outcome, got %v", err)
	}

	if got := mustCredits(t, a, user.ID); got != 20 {
		t.Fatalf("expected refunded balance, got %d", got)
	}
	detail, err := a.GetProjectDetail(user, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if detail.Project.Status != domain.StatusEmpty {
		t.Fatalf("expected empty status, got %q", detail.Project.Status)
	}
	if len(detail.Versions) != 0 {
		t.Fatalf("expected no versions, got %d", len(detail.Versions))
	}
	last := detail.Messages[len(detail.Messages)-1]
	if last.Content != msgGenerationFailed {
		t.Fatalf("expected failure message, got %q", last.Content)
	}
}

func TestGenerationJobSkipsSettledProject(t *testing.T) {
	a, _, gen, enq := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")
	project := createReadyProject(t, a, gen, enq, user, "<h1>v1</h1>")
	ctx := context.Background()

	before := gen.callCount()
	job := queue.Job{ID: "job-x", ProjectID: project.ID, UserID: user.ID}
	if err := a.RunGenerationJob(ctx, job); err != nil {
		t.Fatalf("redelivered job should settle silently, got %v", err)
	}
	if gen.callCount() != before {
		t.Fatal("expected no model calls on redelivered job")
	}
}

func TestGenerationJobForDeletedProjectDropped(t *testing.T) {
	a, _, _, _ := newTestApp(t, 20)

	job := queue.Job{ID: "job-x", ProjectID: "gone", UserID: "user-1"}
	if err := a.RunGenerationJob(context.Background(), job); err != nil {
		t.Fatalf("expected deleted project to drop job, got %v", err)
	}
}

func TestFailGenerationJobRefundsOnce(t *testing.T) {
	a, _, _, enq := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")
	ctx := context.Background()

	project, err := a.CreateProject(ctx, user, "Build a site")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	job := enq.last(t)

	a.FailGenerationJob(ctx, job, errors.New("model unreachable"))
	if got := mustCredits(t, a, user.ID); got != 20 {
		t.Fatalf("expected refund on terminal failure, got %d", got)
	}

	// A second invocation must not refund again: status is no longer generating.
	a.FailGenerationJob(ctx, job, errors.New("model unreachable"))
	if got := mustCredits(t, a, user.ID); got != 20 {
		t.Fatalf("expected single refund, got %d", got)
	}

	detail, err := a.GetProjectDetail(user, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if detail.Project.Status != domain.StatusEmpty {
		t.Fatalf("expected empty status, got %q", detail.Project.Status)
	}
}

func TestRequestRevisionCreatesVersion(t *testing.T) {
	a, _, gen, enq := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")
	project := createReadyProject(t, a, gen, enq, user, "<h1>v1</h1>")

	gen.script(
		scriptedResponse{text: "make the header blue"},
		scriptedResponse{text: "```html\n<h1 class=\"text-blue-500\">v2</h1>\n```"},
	)
	if err := a.RequestRevision(context.Background(), user, project.ID, "blue header please"); err != nil {
		t.Fatalf("request revision: %v", err)
	}

	if got := mustCredits(t, a, user.ID); got != 10 {
		t.Fatalf("expected 10 credits after second debit, got %d", got)
	}
	detail, err := a.GetProjectDetail(user, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if detail.Project.CurrentCode != `<h1 class="text-blue-500">v2</h1>` {
		t.Fatalf("unexpected current code: %q", detail.Project.CurrentCode)
	}
	if detail.Project.Status != domain.StatusReady {
		t.Fatalf("expected ready status, got %q", detail.Project.Status)
	}
	if len(detail.Versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(detail.Versions))
	}
	if detail.Versions[1].Description != "Changes made" {
		t.Fatalf("unexpected description: %q", detail.Versions[1].Description)
	}
	// The first version is untouched by the revision.
	if detail.Versions[0].Code != "<h1>v1</h1>" {
		t.Fatalf("expected immutable first version, got %q", detail.Versions[0].Code)
	}
	last := detail.Messages[len(detail.Messages)-1]
	if last.Content != msgChangesMade {
		t.Fatalf("unexpected final message: %q", last.Content)
	}
}

func TestRequestRevisionRejectsBlankInstruction(t *testing.T) {
	a, _, gen, enq := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")
	project := createReadyProject(t, a, gen, enq, user, "<h1>v1</h1>")

	if err := a.RequestRevision(context.Background(), user, project.ID, "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestRequestRevisionForeignProjectNotFound(t *testing.T) {
	a, _, gen, enq := newTestApp(t, 20)
	owner := mustEnsureUser(t, a, "user-1")
	stranger := mustEnsureUser(t, a, "user-2")
	project := createReadyProject(t, a, gen, enq, owner, "<h1>v1</h1>")

	err := a.RequestRevision(context.Background(), stranger, project.ID, "change it")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected not found for foreign project, got %v", err)
	}
}

func TestRequestRevisionInsufficientCredits(t *testing.T) {
	a, _, gen, enq := newTestApp(t, 5)
	user := mustEnsureUser(t, a, "user-1")
	project := createReadyProject(t, a, gen, enq, user, "<h1>v1</h1>")

	if got := mustCredits(t, a, user.ID); got != 0 {
		t.Fatalf("expected drained balance, got %d", got)
	}
	err := a.RequestRevision(context.Background(), user, project.ID, "change it")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected insufficient credits, got %v", err)
	}
}

func TestRequestRevisionWhileGeneratingRejected(t *testing.T) {
	a, _, _, _ := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")
	ctx := context.Background()

	// Creation leaves the project generating until the worker settles it.
	project, err := a.CreateProject(ctx, user, "Build a site")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	err = a.RequestRevision(ctx, user, project.ID, "change it")
	if !errors.Is(err, ErrGenerationInFlight) {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}
	// The rejected revision debits nothing beyond creation's 5.
	if got := mustCredits(t, a, user.ID); got != 15 {
		t.Fatalf("expected 15 credits, got %d", got)
	}
}

func TestRequestRevisionEmptyGenerationRefunds(t *testing.T) {
	a, _, gen, enq := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")
	project := createReadyProject(t, a, gen, enq, user, "<h1>v1</h1>")

	gen.script(
		scriptedResponse{text: "make the header blue"},
		scriptedResponse{text: ""},
	)
	err := a.RequestRevision(context.Background(), user, project.ID, "blue header")
	if !errors.Is(err, ErrGenerationEmpty) {
		t.Fatalf("expected empty generation error, got %v", err)
	}
	if got := mustCredits(t, a, user.ID); got != 15 {
		t.Fatalf("expected refunded balance, got %d", got)
	}
	detail, err := a.GetProjectDetail(user, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if detail.Project.Status != domain.StatusReady {
		t.Fatalf("expected prior status restored, got %q", detail.Project.Status)
	}
	if len(detail.Versions) != 1 {
		t.Fatalf("expected no new version, got %d", len(detail.Versions))
	}
	if detail.Project.CurrentCode != "<h1>v1</h1>" {
		t.Fatalf("expected current code untouched, got %q", detail.Project.CurrentCode)
	}
}

func TestRequestRevisionGeneratorFaultRefunds(t *testing.T) {
	a, _, gen, enq := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")
	project := createReadyProject(t, a, gen, enq, user, "<h1>v1</h1>")

	gen.script(scriptedResponse{err: errors.New("model unreachable")})
	if err := a.RequestRevision(context.Background(), user, project.ID, "blue header"); err == nil {
		t.Fatal("expected enhance fault to surface")
	}
	if got := mustCredits(t, a, user.ID); got != 15 {
		t.Fatalf("expected refunded balance, got %d", got)
	}
	detail, err := a.GetProjectDetail(user, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if detail.Project.Status != domain.StatusReady {
		t.Fatalf("expected prior status restored, got %q", detail.Project.Status)
	}
}

func TestRollbackRepointsWithoutCharge(t *testing.T) {
	a, _, gen, enq := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")
	project := createReadyProject(t, a, gen, enq, user, "<h1>v1</h1>")

	gen.script(
		scriptedResponse{text: "make it v2"},
		scriptedResponse{text: "<h1>v2</h1>"},
	)
	if err := a.RequestRevision(context.Background(), user, project.ID, "v2 please"); err != nil {
		t.Fatalf("request revision: %v", err)
	}
	detail, err := a.GetProjectDetail(user, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	firstVersion := detail.Versions[0]
	balanceBefore := mustCredits(t, a, user.ID)

	if err := a.Rollback(user, project.ID, firstVersion.ID); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	detail, err = a.GetProjectDetail(user, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if detail.Project.CurrentCode != "<h1>v1</h1>" {
		t.Fatalf("expected rolled back code, got %q", detail.Project.CurrentCode)
	}
	if detail.Project.CurrentVersionID != firstVersion.ID {
		t.Fatalf("expected pointer at first version")
	}
	if got := mustCredits(t, a, user.ID); got != balanceBefore {
		t.Fatalf("rollback must not charge credits: %d != %d", got, balanceBefore)
	}
	// Both versions survive the rollback.
	if len(detail.Versions) != 2 {
		t.Fatalf("expected version history intact, got %d", len(detail.Versions))
	}
	last := detail.Messages[len(detail.Messages)-1]
	if last.Content != msgRolledBack {
		t.Fatalf("expected rollback notice, got %q", last.Content)
	}
}

func TestRollbackRejectsForeignVersion(t *testing.T) {
	a, _, gen, enq := newTestApp(t, 40)
	user := mustEnsureUser(t, a, "user-1")
	projectA := createReadyProject(t, a, gen, enq, user, "<h1>A</h1>")
	projectB := createReadyProject(t, a, gen, enq, user, "<h1>B</h1>")

	detailB, err := a.GetProjectDetail(user, projectB.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	err = a.Rollback(user, projectA.ID, detailB.Versions[0].ID)
	if !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("expected version not found across projects, got %v", err)
	}
}

func TestSaveCodeClearsVersionPointer(t *testing.T) {
	a, _, gen, enq := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")
	project := createReadyProject(t, a, gen, enq, user, "<h1>v1</h1>")

	if err := a.SaveCode(user, project.ID, "<h1>edited by hand</h1>"); err != nil {
		t.Fatalf("save code: %v", err)
	}
	detail, err := a.GetProjectDetail(user, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if detail.Project.CurrentCode != "<h1>edited by hand</h1>" {
		t.Fatalf("unexpected code: %q", detail.Project.CurrentCode)
	}
	if detail.Project.CurrentVersionID != "" {
		t.Fatalf("expected cleared version pointer, got %q", detail.Project.CurrentVersionID)
	}
	// No version is minted for a raw save.
	if len(detail.Versions) != 1 {
		t.Fatalf("expected version history unchanged, got %d", len(detail.Versions))
	}
}

func TestTogglePublishControlsPublicCode(t *testing.T) {
	a, _, gen, enq := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")
	project := createReadyProject(t, a, gen, enq, user, "<h1>v1</h1>")

	if _, err := a.PublishedCode(project.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected unpublished project hidden, got %v", err)
	}

	toggled, err := a.TogglePublish(user, project.ID)
	if err != nil {
		t.Fatalf("toggle publish: %v", err)
	}
	if !toggled.Published {
		t.Fatal("expected published after toggle")
	}
	code, err := a.PublishedCode(project.ID)
	if err != nil {
		t.Fatalf("published code: %v", err)
	}
	if code != "<h1>v1</h1>" {
		t.Fatalf("unexpected published code: %q", code)
	}
	feed, err := a.ListPublished()
	if err != nil {
		t.Fatalf("list published: %v", err)
	}
	if len(feed) != 1 || feed[0].ID != project.ID {
		t.Fatalf("unexpected feed: %+v", feed)
	}

	if _, err := a.TogglePublish(user, project.ID); err != nil {
		t.Fatalf("toggle publish back: %v", err)
	}
	if _, err := a.PublishedCode(project.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected unpublished project hidden again, got %v", err)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	a, memStore, gen, enq := newTestApp(t, 20)
	user := mustEnsureUser(t, a, "user-1")
	project := createReadyProject(t, a, gen, enq, user, "<h1>v1</h1>")

	if err := a.DeleteProject(user, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if _, err := a.GetProjectDetail(user, project.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected project gone, got %v", err)
	}
	messages, err := memStore.ListMessages(project.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected conversation removed, got %d messages", len(messages))
	}
	versions, err := memStore.ListVersions(project.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("expected versions removed, got %d", len(versions))
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"html fence", "```html\n<h1>Hi</h1>\n```", "<h1>Hi</h1>"},
		{"bare fence", "```\n<h1>Hi</h1>\n```", "<h1>Hi</h1>"},
		{"no fence", "<h1>Hi</h1>", "<h1>Hi</h1>"},
		{"uppercase tag", "```HTML\n<h1>Hi</h1>\n```", "<h1>Hi</h1>"},
		{"surrounding whitespace", "  \n```html\n<h1>Hi</h1>\n```\n  ", "<h1>Hi</h1>"},
		{"fences only", "```html\n```", ""},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripCodeFences(tc.in); got != tc.want {
				t.Fatalf("stripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
