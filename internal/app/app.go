package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sitebuilder/internal/util"
	"sitebuilder/pkg/ai"
	"sitebuilder/pkg/domain"
	"sitebuilder/pkg/queue"
	"sitebuilder/pkg/store"
)

const (
	defaultCreditCost      = 5
	defaultStartingCredits = 20
	maxProjectNameLen      = 50
)

// Enqueuer hands generation work to a background queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, projectID, userID string) (queue.Job, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL     string
	Store           store.Store
	Generator       ai.TextGenerator
	Queue           Enqueuer
	LLMProvider     string
	LLMBaseURL      string
	LLMAPIKey       string
	GenerationModel string
	CreditCost      int64
	StartingCredits int64
}

// App is the core application service wiring together storage, the text
// generator, and the generation queue.
type App struct {
	store           store.Store
	generator       ai.TextGenerator
	queue           Enqueuer
	creditCost      int64
	startingCredits int64
}

// ProjectDetail bundles a project with its full conversation trail and
// version history.
type ProjectDetail struct {
	Project  domain.Project   `json:"project"`
	Messages []domain.Message `json:"conversation"`
	Versions []domain.Version `json:"versions"`
}

// New constructs the application with database-backed storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	generator := cfg.Generator
	if generator == nil {
		if cfg.GenerationModel == "" {
			return nil, fmt.Errorf("generation model required")
		}
		provider := strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
		if provider == "" {
			provider = "openai"
		}
		switch provider {
		case "openai":
			var err error
			generator, err = ai.NewOpenAIGenerator(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.GenerationModel)
			if err != nil {
				return nil, err
			}
		case "openai-compat":
			generator = ai.NewOpenAICompatGenerator(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.GenerationModel)
		case "ollama":
			ollama := ai.NewOllamaClient(cfg.LLMBaseURL)
			generator = ai.NewOllamaGenerator(ollama, cfg.GenerationModel)
		default:
			return nil, fmt.Errorf("unknown llm provider: %s", provider)
		}
	}

	if cfg.Queue == nil {
		return nil, fmt.Errorf("generation queue required")
	}

	creditCost := cfg.CreditCost
	if creditCost <= 0 {
		creditCost = defaultCreditCost
	}
	startingCredits := cfg.StartingCredits
	if startingCredits <= 0 {
		startingCredits = defaultStartingCredits
	}

	return &App{
		store:           dataStore,
		generator:       generator,
		queue:           cfg.Queue,
		creditCost:      creditCost,
		startingCredits: startingCredits,
	}, nil
}

// EnsureUser loads the user row, creating it with the starting credit grant
// on first sight of the subject.
func (a *App) EnsureUser(userID string) (domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, ErrInvalidInput
	}
	return a.store.EnsureUser(userID, a.startingCredits)
}

// Credits returns the user's current balance.
func (a *App) Credits(userID string) (int64, error) {
	user, ok, err := a.store.GetUser(userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return user.Credits, nil
}

// CreateProject registers a project from the initial brief, debits the
// generation cost, and enqueues the first build. The generated website
// arrives asynchronously; callers should poll the project.
func (a *App) CreateProject(ctx context.Context, user domain.User, brief string) (domain.Project, error) {
	brief = strings.TrimSpace(brief)
	if brief == "" {
		return domain.Project{}, ErrInvalidInput
	}
	current, ok, err := a.store.GetUser(user.ID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("load user: %w", err)
	}
	if !ok || current.Credits < a.creditCost {
		return domain.Project{}, ErrInsufficientCredits
	}

	now := time.Now().UTC()
	project := domain.Project{
		ID:            util.NewID(),
		OwnerID:       user.ID,
		Name:          projectName(brief),
		InitialPrompt: brief,
		Status:        domain.StatusEmpty,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.store.CreateProject(project); err != nil {
		return domain.Project{}, fmt.Errorf("create project: %w", err)
	}

	debited, err := a.store.DebitCredits(user.ID, a.creditCost)
	if err != nil {
		_ = a.store.DeleteProject(project.ID)
		return domain.Project{}, fmt.Errorf("debit credits: %w", err)
	}
	if !debited {
		_ = a.store.DeleteProject(project.ID)
		return domain.Project{}, ErrInsufficientCredits
	}
	if err := a.store.IncrementCreations(user.ID); err != nil {
		util.LoggerFromContext(ctx).Warn("increment creations failed", "user_id", user.ID, "error", err)
	}
	if err := a.appendMessage(project.ID, domain.RoleUser, brief); err != nil {
		util.LoggerFromContext(ctx).Warn("append brief failed", "project_id", project.ID, "error", err)
	}

	started, err := a.store.BeginGeneration(project.ID, domain.StatusEmpty)
	if err != nil || !started {
		a.refundAndReset(ctx, user.ID, project.ID, domain.StatusEmpty)
		if err == nil {
			err = ErrGenerationInFlight
		}
		return domain.Project{}, err
	}
	if _, err := a.queue.Enqueue(ctx, project.ID, user.ID); err != nil {
		a.refundAndReset(ctx, user.ID, project.ID, domain.StatusEmpty)
		return domain.Project{}, fmt.Errorf("enqueue generation: %w", err)
	}
	project.Status = domain.StatusGenerating
	return project, nil
}

// RunGenerationJob executes the initial build for a queued project. A
// returned error signals the queue to retry; business failures (the model
// produced nothing) settle the project and return nil.
func (a *App) RunGenerationJob(ctx context.Context, job queue.Job) error {
	logger := util.LoggerFromContext(ctx).With("project_id", job.ProjectID, "job_id", job.ID)

	project, ok, err := a.store.GetProject(job.ProjectID)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	if !ok {
		// Deleted while queued; nothing left to build or refund against.
		logger.Info("generation job for deleted project dropped")
		return nil
	}
	// Redelivery after a crash that already committed a version, or after
	// the project settled some other way. The debit is already accounted for.
	if project.Status != domain.StatusGenerating || project.CurrentVersionID != "" {
		logger.Info("generation job skipped", "status", string(project.Status))
		return nil
	}

	enhanced, err := a.generator.GenerateText(ctx, enhanceCreateSystemPrompt, project.InitialPrompt)
	if err != nil {
		return fmt.Errorf("enhance prompt: %w", err)
	}
	if err := a.appendMessage(project.ID, domain.RoleAssistant, fmt.Sprintf("I've enhanced your prompt to : %q", enhanced)); err != nil {
		logger.Warn("append enhanced echo failed", "error", err)
	}
	if err := a.appendMessage(project.ID, domain.RoleAssistant, msgGeneratingWebsite); err != nil {
		logger.Warn("append status message failed", "error", err)
	}

	raw, err := a.generator.GenerateText(ctx, generateCreateSystemPrompt, enhanced)
	if err != nil {
		return fmt.Errorf("generate website: %w", err)
	}
	code := stripCodeFences(raw)
	if code == "" {
		logger.Info("generation returned empty output")
		a.settleEmptyGeneration(ctx, project.OwnerID, project.ID, domain.StatusEmpty)
		return nil
	}

	version := domain.Version{
		ID:          util.NewID(),
		ProjectID:   project.ID,
		Code:        code,
		Description: "Initial Version",
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.CreateVersion(version); err != nil {
		return fmt.Errorf("create version: %w", err)
	}
	if err := a.appendMessage(project.ID, domain.RoleAssistant, msgWebsiteCreated); err != nil {
		logger.Warn("append success message failed", "error", err)
	}
	if ok, err := a.store.SetCurrentVersion(project.ID, version.ID); err != nil {
		return fmt.Errorf("set current version: %w", err)
	} else if !ok {
		return fmt.Errorf("set current version: version %s not found", version.ID)
	}
	logger.Info("website generated", "version_id", version.ID)
	return nil
}

// FailGenerationJob is the terminal-failure callback for the queue. The
// debit is returned only when no version was committed, so a crash between
// commit and ack never refunds work the user received.
func (a *App) FailGenerationJob(ctx context.Context, job queue.Job, cause error) {
	logger := util.LoggerFromContext(ctx).With("project_id", job.ProjectID, "job_id", job.ID)
	logger.Error("generation job failed", "error", cause)

	project, ok, err := a.store.GetProject(job.ProjectID)
	if err != nil {
		logger.Error("load project for refund failed", "error", err)
		return
	}
	if !ok || project.Status != domain.StatusGenerating || project.CurrentVersionID != "" {
		return
	}
	a.settleEmptyGeneration(ctx, project.OwnerID, project.ID, domain.StatusEmpty)
}

// RequestRevision runs the revision pipeline synchronously: enhance the
// instruction, regenerate against the current code, and commit a new version.
func (a *App) RequestRevision(ctx context.Context, user domain.User, projectID, instruction string) error {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return ErrInvalidInput
	}
	project, err := a.ownedProject(user, projectID)
	if err != nil {
		return err
	}
	current, ok, err := a.store.GetUser(user.ID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !ok || current.Credits < a.creditCost {
		return ErrInsufficientCredits
	}

	started, err := a.store.BeginGeneration(project.ID, domain.StatusEmpty, domain.StatusReady)
	if err != nil {
		return fmt.Errorf("begin generation: %w", err)
	}
	if !started {
		return ErrGenerationInFlight
	}
	priorStatus := project.Status

	if err := a.appendMessage(project.ID, domain.RoleUser, instruction); err != nil {
		_ = a.store.SetProjectStatus(project.ID, priorStatus)
		return fmt.Errorf("append instruction: %w", err)
	}
	debited, err := a.store.DebitCredits(user.ID, a.creditCost)
	if err != nil {
		_ = a.store.SetProjectStatus(project.ID, priorStatus)
		return fmt.Errorf("debit credits: %w", err)
	}
	if !debited {
		_ = a.store.SetProjectStatus(project.ID, priorStatus)
		return ErrInsufficientCredits
	}

	enhanced, err := a.generator.GenerateText(ctx, enhanceReviseSystemPrompt, fmt.Sprintf("User's request : %q", instruction))
	if err != nil {
		a.refundAndReset(ctx, user.ID, project.ID, priorStatus)
		return fmt.Errorf("enhance instruction: %w", err)
	}
	logger := util.LoggerFromContext(ctx).With("project_id", project.ID)
	if err := a.appendMessage(project.ID, domain.RoleAssistant, fmt.Sprintf("I've enhanced your prompt to : %s", enhanced)); err != nil {
		logger.Warn("append enhanced echo failed", "error", err)
	}
	if err := a.appendMessage(project.ID, domain.RoleAssistant, msgMakingChanges); err != nil {
		logger.Warn("append status message failed", "error", err)
	}

	revisePrompt := fmt.Sprintf("Here is the current website code : %q The user wants this change : %q", project.CurrentCode, enhanced)
	raw, err := a.generator.GenerateText(ctx, generateReviseSystemPrompt, revisePrompt)
	if err != nil {
		a.refundAndReset(ctx, user.ID, project.ID, priorStatus)
		return fmt.Errorf("generate revision: %w", err)
	}
	code := stripCodeFences(raw)
	if code == "" {
		a.settleEmptyGeneration(ctx, user.ID, project.ID, priorStatus)
		return ErrGenerationEmpty
	}

	version := domain.Version{
		ID:          util.NewID(),
		ProjectID:   project.ID,
		Code:        code,
		Description: "Changes made",
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.CreateVersion(version); err != nil {
		a.refundAndReset(ctx, user.ID, project.ID, priorStatus)
		return fmt.Errorf("create version: %w", err)
	}
	if err := a.appendMessage(project.ID, domain.RoleAssistant, msgChangesMade); err != nil {
		logger.Warn("append success message failed", "error", err)
	}
	if ok, err := a.store.SetCurrentVersion(project.ID, version.ID); err != nil || !ok {
		// Version row exists; the debit stays since the work was delivered.
		if err == nil {
			err = ErrVersionNotFound
		}
		return fmt.Errorf("set current version: %w", err)
	}
	return nil
}

// Rollback repoints the project to an older version without charging credits.
func (a *App) Rollback(user domain.User, projectID, versionID string) error {
	project, err := a.ownedProject(user, projectID)
	if err != nil {
		return err
	}
	if project.Status == domain.StatusGenerating {
		return ErrGenerationInFlight
	}
	version, ok, err := a.store.GetVersion(project.ID, versionID)
	if err != nil {
		return fmt.Errorf("load version: %w", err)
	}
	if !ok {
		return ErrVersionNotFound
	}
	if ok, err := a.store.SetCurrentVersion(project.ID, version.ID); err != nil {
		return fmt.Errorf("set current version: %w", err)
	} else if !ok {
		return ErrVersionNotFound
	}
	if err := a.appendMessage(project.ID, domain.RoleAssistant, msgRolledBack); err != nil {
		return fmt.Errorf("append rollback notice: %w", err)
	}
	return nil
}

// SaveCode overwrites the working copy with manually edited code. No version
// is created and the current-version pointer is cleared.
func (a *App) SaveCode(user domain.User, projectID, code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrInvalidInput
	}
	project, err := a.ownedProject(user, projectID)
	if err != nil {
		return err
	}
	if project.Status == domain.StatusGenerating {
		return ErrGenerationInFlight
	}
	if err := a.store.SaveCurrentCode(project.ID, code); err != nil {
		return fmt.Errorf("save code: %w", err)
	}
	return nil
}

// TogglePublish flips the public visibility of a project.
func (a *App) TogglePublish(user domain.User, projectID string) (domain.Project, error) {
	project, err := a.ownedProject(user, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if err := a.store.SetPublished(project.ID, !project.Published); err != nil {
		return domain.Project{}, fmt.Errorf("set published: %w", err)
	}
	project.Published = !project.Published
	return project, nil
}

// DeleteProject removes a project with its versions and conversation.
func (a *App) DeleteProject(user domain.User, projectID string) error {
	project, err := a.ownedProject(user, projectID)
	if err != nil {
		return err
	}
	if err := a.store.DeleteProject(project.ID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// GetProjectDetail returns a project with its conversation trail and version
// history, ordered oldest first.
func (a *App) GetProjectDetail(user domain.User, projectID string) (ProjectDetail, error) {
	project, err := a.ownedProject(user, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	messages, err := a.store.ListMessages(project.ID)
	if err != nil {
		return ProjectDetail{}, fmt.Errorf("list messages: %w", err)
	}
	versions, err := a.store.ListVersions(project.ID)
	if err != nil {
		return ProjectDetail{}, fmt.Errorf("list versions: %w", err)
	}
	return ProjectDetail{Project: project, Messages: messages, Versions: versions}, nil
}

// ListProjects returns the user's projects, most recently updated first.
func (a *App) ListProjects(user domain.User) ([]domain.Project, error) {
	return a.store.ListProjectsByOwner(user.ID)
}

// ListPublished returns every published project for the public feed.
func (a *App) ListPublished() ([]domain.Project, error) {
	return a.store.ListPublishedProjects()
}

// PublishedCode returns the current code of a published project. Unpublished
// and unknown projects are indistinguishable to callers.
func (a *App) PublishedCode(projectID string) (string, error) {
	project, ok, err := a.store.GetProject(projectID)
	if err != nil {
		return "", fmt.Errorf("load project: %w", err)
	}
	if !ok || !project.Published {
		return "", ErrProjectNotFound
	}
	return project.CurrentCode, nil
}

func (a *App) ownedProject(user domain.User, projectID string) (domain.Project, error) {
	project, ok, err := a.store.GetProject(projectID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("load project: %w", err)
	}
	if !ok || project.OwnerID != user.ID {
		return domain.Project{}, ErrProjectNotFound
	}
	return project, nil
}

func (a *App) appendMessage(projectID string, role, content string) error {
	return a.store.AppendMessage(domain.Message{
		ID:        util.NewID(),
		ProjectID: projectID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}

// settleEmptyGeneration records the failure in the conversation, returns the
// debit, and restores the pre-generation status.
func (a *App) settleEmptyGeneration(ctx context.Context, userID, projectID string, restore domain.ProjectStatus) {
	logger := util.LoggerFromContext(ctx).With("project_id", projectID)
	if err := a.appendMessage(projectID, domain.RoleAssistant, msgGenerationFailed); err != nil {
		logger.Warn("append failure message failed", "error", err)
	}
	a.refundAndReset(ctx, userID, projectID, restore)
}

func (a *App) refundAndReset(ctx context.Context, userID, projectID string, restore domain.ProjectStatus) {
	logger := util.LoggerFromContext(ctx).With("project_id", projectID)
	if err := a.store.RefundCredits(userID, a.creditCost); err != nil {
		logger.Error("refund failed", "user_id", userID, "error", err)
	}
	if err := a.store.SetProjectStatus(projectID, restore); err != nil {
		logger.Error("restore status failed", "error", err)
	}
}

func projectName(brief string) string {
	runes := []rune(brief)
	if len(runes) <= maxProjectNameLen {
		return brief
	}
	return string(runes[:maxProjectNameLen-3]) + "..."
}
