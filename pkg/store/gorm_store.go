package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"sitebuilder/pkg/domain"
)

const migrateLockID int64 = 52415241

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &ProjectModel{}, &VersionModel{}, &MessageModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'version_models'
					AND constraint_name = 'version_models_project_id_fkey'
				) THEN
					ALTER TABLE version_models
					ADD CONSTRAINT version_models_project_id_fkey
					FOREIGN KEY (project_id) REFERENCES project_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'message_models'
					AND constraint_name = 'message_models_project_id_fkey'
				) THEN
					ALTER TABLE message_models
					ADD CONSTRAINT message_models_project_id_fkey
					FOREIGN KEY (project_id) REFERENCES project_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure project foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// EnsureUser creates the balance row on first sight of a verified user ID.
func (s *GormStore) EnsureUser(id string, startingCredits int64) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, fmt.Errorf("user id required")
	}
	now := time.Now().UTC()
	model := UserModel{
		ID:        id,
		Credits:   startingCredits,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Insert-if-absent; an existing row keeps its balance.
	if err := s.db.Where("id = ?", id).FirstOrCreate(&model).Error; err != nil {
		return domain.User{}, err
	}
	return userFromModel(model), nil
}

// GetUser returns a user by ID.
func (s *GormStore) GetUser(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// DebitCredits checks and decrements the balance in a single statement so the
// update is linearizable per user row.
func (s *GormStore) DebitCredits(id string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("debit amount must be positive")
	}
	res := s.db.Model(&UserModel{}).
		Where("id = ? AND credits >= ?", id, amount).
		Updates(map[string]any{
			"credits":    gorm.Expr("credits - ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RefundCredits increments the balance by exactly amount.
func (s *GormStore) RefundCredits(id string, amount int64) error {
	return s.addCredits(id, amount)
}

// GrantCredits increments the balance, e.g. after purchase fulfillment.
func (s *GormStore) GrantCredits(id string, amount int64) error {
	return s.addCredits(id, amount)
}

func (s *GormStore) addCredits(id string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive")
	}
	return s.db.Model(&UserModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"credits":    gorm.Expr("credits + ?", amount),
			"updated_at": time.Now().UTC(),
		}).Error
}

// IncrementCreations bumps the lifetime project creation counter.
func (s *GormStore) IncrementCreations(id string) error {
	return s.db.Model(&UserModel{}).
		Where("id = ?", id).
		Update("total_creations", gorm.Expr("total_creations + 1")).Error
}

// CreateProject inserts a new project record.
func (s *GormStore) CreateProject(p domain.Project) error {
	model := projectToModel(p)
	return s.db.Create(&model).Error
}

// GetProject retrieves a project by ID.
func (s *GormStore) GetProject(id string) (domain.Project, bool, error) {
	var model ProjectModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Project{}, false, nil
		}
		return domain.Project{}, false, err
	}
	return projectFromModel(model), true, nil
}

// ListProjectsByOwner returns the owner's projects, most recently updated first.
func (s *GormStore) ListProjectsByOwner(ownerID string) ([]domain.Project, error) {
	return s.listProjects("updated_at DESC", "owner_id = ?", ownerID)
}

// ListPublishedProjects returns published projects for the community feed.
func (s *GormStore) ListPublishedProjects() ([]domain.Project, error) {
	return s.listProjects("updated_at DESC", "published = ?", true)
}

func (s *GormStore) listProjects(order string, conds ...any) ([]domain.Project, error) {
	var models []ProjectModel
	tx := s.db.Order(order)
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Project, 0, len(models))
	for _, m := range models {
		res = append(res, projectFromModel(m))
	}
	return res, nil
}

// DeleteProject removes a project with its versions and messages.
func (s *GormStore) DeleteProject(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&VersionModel{}, "project_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&MessageModel{}, "project_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&ProjectModel{}, "id = ?", id).Error
	})
}

// SetPublished flips the publication flag.
func (s *GormStore) SetPublished(id string, published bool) error {
	return s.db.Model(&ProjectModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published":  published,
			"updated_at": time.Now().UTC(),
		}).Error
}

// BeginGeneration is the compare-and-swap transition guard into generating.
func (s *GormStore) BeginGeneration(id string, from ...domain.ProjectStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("from states required")
	}
	states := make([]string, 0, len(from))
	for _, st := range from {
		states = append(states, string(st))
	}
	res := s.db.Model(&ProjectModel{}).
		Where("id = ? AND status IN ?", id, states).
		Updates(map[string]any{
			"status":     string(domain.StatusGenerating),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetProjectStatus writes the status unconditionally (failure resets).
func (s *GormStore) SetProjectStatus(id string, status domain.ProjectStatus) error {
	return s.db.Model(&ProjectModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		}).Error
}

// SetCurrentVersion repoints the current version and copies its code into the
// project in one transaction. A version belonging to another project is not
// found.
func (s *GormStore) SetCurrentVersion(projectID, versionID string) (bool, error) {
	found := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var version VersionModel
		if err := tx.First(&version, "id = ? AND project_id = ?", versionID, projectID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		found = true
		return tx.Model(&ProjectModel{}).
			Where("id = ?", projectID).
			Updates(map[string]any{
				"current_code":       version.Code,
				"current_version_id": version.ID,
				"status":             string(domain.StatusReady),
				"updated_at":         time.Now().UTC(),
			}).Error
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// SaveCurrentCode overwrites current code without a version. The version
// pointer is cleared in the same update so it never points at stale content.
func (s *GormStore) SaveCurrentCode(projectID, code string) error {
	return s.db.Model(&ProjectModel{}).
		Where("id = ?", projectID).
		Updates(map[string]any{
			"current_code":       code,
			"current_version_id": nil,
			"status":             string(domain.StatusReady),
			"updated_at":         time.Now().UTC(),
		}).Error
}

// CreateVersion stores an immutable snapshot; IDs are unique so an existing
// version is never overwritten.
func (s *GormStore) CreateVersion(v domain.Version) error {
	model := versionToModel(v)
	return s.db.Create(&model).Error
}

// GetVersion returns a version scoped to its owning project.
func (s *GormStore) GetVersion(projectID, versionID string) (domain.Version, bool, error) {
	var model VersionModel
	if err := s.db.First(&model, "id = ? AND project_id = ?", versionID, projectID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Version{}, false, nil
		}
		return domain.Version{}, false, err
	}
	return versionFromModel(model), true, nil
}

// ListVersions returns a project's versions in creation order.
func (s *GormStore) ListVersions(projectID string) ([]domain.Version, error) {
	var models []VersionModel
	if err := s.db.Where("project_id = ?", projectID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Version, 0, len(models))
	for _, m := range models {
		res = append(res, versionFromModel(m))
	}
	return res, nil
}

// AppendMessage records a conversation message.
func (s *GormStore) AppendMessage(msg domain.Message) error {
	model := messageToModel(msg)
	return s.db.Create(&model).Error
}

// ListMessages returns the full conversation trail in creation order.
func (s *GormStore) ListMessages(projectID string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.Where("project_id = ?", projectID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Message, 0, len(models))
	for _, m := range models {
		res = append(res, messageFromModel(m))
	}
	return res, nil
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:             m.ID,
		Credits:        m.Credits,
		TotalCreations: m.TotalCreations,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func projectToModel(p domain.Project) ProjectModel {
	var versionID *string
	if strings.TrimSpace(p.CurrentVersionID) != "" {
		value := strings.TrimSpace(p.CurrentVersionID)
		versionID = &value
	}
	return ProjectModel{
		ID:               p.ID,
		OwnerID:          p.OwnerID,
		Name:             p.Name,
		InitialPrompt:    p.InitialPrompt,
		CurrentCode:      p.CurrentCode,
		CurrentVersionID: versionID,
		Status:           string(p.Status),
		Published:        p.Published,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func projectFromModel(m ProjectModel) domain.Project {
	versionID := ""
	if m.CurrentVersionID != nil {
		versionID = *m.CurrentVersionID
	}
	status := domain.ProjectStatus(m.Status)
	if status == "" {
		status = domain.StatusEmpty
	}
	return domain.Project{
		ID:               m.ID,
		OwnerID:          m.OwnerID,
		Name:             m.Name,
		InitialPrompt:    m.InitialPrompt,
		CurrentCode:      m.CurrentCode,
		CurrentVersionID: versionID,
		Status:           status,
		Published:        m.Published,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func versionToModel(v domain.Version) VersionModel {
	return VersionModel{
		ID:          v.ID,
		ProjectID:   v.ProjectID,
		Code:        v.Code,
		Description: v.Description,
		CreatedAt:   v.CreatedAt,
	}
}

func versionFromModel(m VersionModel) domain.Version {
	return domain.Version{
		ID:          m.ID,
		ProjectID:   m.ProjectID,
		Code:        m.Code,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:        msg.ID,
		ProjectID: msg.ProjectID,
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
