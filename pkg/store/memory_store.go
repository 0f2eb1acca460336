package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sitebuilder/pkg/domain"
)

// MemoryStore keeps all state in-process. It mirrors GormStore semantics
// (atomic debits, CAS status transitions, project-scoped version lookups)
// for tests and local runs without Postgres.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]domain.User
	projects map[string]domain.Project
	versions map[string][]domain.Version // key: project ID, creation order
	messages map[string][]domain.Message // key: project ID, creation order
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		projects: make(map[string]domain.Project),
		versions: make(map[string][]domain.Version),
		messages: make(map[string][]domain.Message),
	}
}

// EnsureUser creates the balance row on first sight of a user ID.
func (m *MemoryStore) EnsureUser(id string, startingCredits int64) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, fmt.Errorf("user id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	now := time.Now().UTC()
	u := domain.User{
		ID:        id,
		Credits:   startingCredits,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.users[id] = u
	return u, nil
}

// GetUser returns a user by ID.
func (m *MemoryStore) GetUser(id string) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// DebitCredits checks and decrements under one lock.
func (m *MemoryStore) DebitCredits(id string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("debit amount must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.Credits < amount {
		return false, nil
	}
	u.Credits -= amount
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return true, nil
}

// RefundCredits increments the balance by exactly amount.
func (m *MemoryStore) RefundCredits(id string, amount int64) error {
	return m.addCredits(id, amount)
}

// GrantCredits increments the balance.
func (m *MemoryStore) GrantCredits(id string, amount int64) error {
	return m.addCredits(id, amount)
}

func (m *MemoryStore) addCredits(id string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	u.Credits += amount
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return nil
}

// IncrementCreations bumps the lifetime creation counter.
func (m *MemoryStore) IncrementCreations(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	u.TotalCreations++
	m.users[id] = u
	return nil
}

// CreateProject inserts a project.
func (m *MemoryStore) CreateProject(p domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.projects[p.ID]; exists {
		return fmt.Errorf("project already exists: %s", p.ID)
	}
	m.projects[p.ID] = p
	return nil
}

// GetProject retrieves a project by ID.
func (m *MemoryStore) GetProject(id string) (domain.Project, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	return p, ok, nil
}

// ListProjectsByOwner returns the owner's projects, most recently updated first.
func (m *MemoryStore) ListProjectsByOwner(ownerID string) ([]domain.Project, error) {
	return m.listProjects(func(p domain.Project) bool { return p.OwnerID == ownerID })
}

// ListPublishedProjects returns published projects.
func (m *MemoryStore) ListPublishedProjects() ([]domain.Project, error) {
	return m.listProjects(func(p domain.Project) bool { return p.Published })
}

func (m *MemoryStore) listProjects(match func(domain.Project) bool) ([]domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Project, 0)
	for _, p := range m.projects {
		if match(p) {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UpdatedAt.After(res[j].UpdatedAt) })
	return res, nil
}

// DeleteProject removes a project with its versions and messages.
func (m *MemoryStore) DeleteProject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	delete(m.versions, id)
	delete(m.messages, id)
	return nil
}

// SetPublished flips the publication flag.
func (m *MemoryStore) SetPublished(id string, published bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return fmt.Errorf("project not found: %s", id)
	}
	p.Published = published
	p.UpdatedAt = time.Now().UTC()
	m.projects[id] = p
	return nil
}

// BeginGeneration is the compare-and-swap transition guard into generating.
func (m *MemoryStore) BeginGeneration(id string, from ...domain.ProjectStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("from states required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, st := range from {
		if p.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	p.Status = domain.StatusGenerating
	p.UpdatedAt = time.Now().UTC()
	m.projects[id] = p
	return true, nil
}

// SetProjectStatus writes the status unconditionally.
func (m *MemoryStore) SetProjectStatus(id string, status domain.ProjectStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return fmt.Errorf("project not found: %s", id)
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	m.projects[id] = p
	return nil
}

// SetCurrentVersion repoints the current version and copies its code.
func (m *MemoryStore) SetCurrentVersion(projectID, versionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return false, nil
	}
	for _, v := range m.versions[projectID] {
		if v.ID == versionID {
			p.CurrentCode = v.Code
			p.CurrentVersionID = v.ID
			p.Status = domain.StatusReady
			p.UpdatedAt = time.Now().UTC()
			m.projects[projectID] = p
			return true, nil
		}
	}
	return false, nil
}

// SaveCurrentCode overwrites current code and clears the version pointer.
func (m *MemoryStore) SaveCurrentCode(projectID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return fmt.Errorf("project not found: %s", projectID)
	}
	p.CurrentCode = code
	p.CurrentVersionID = ""
	p.Status = domain.StatusReady
	p.UpdatedAt = time.Now().UTC()
	m.projects[projectID] = p
	return nil
}

// CreateVersion stores an immutable snapshot.
func (m *MemoryStore) CreateVersion(v domain.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.versions[v.ProjectID] {
		if existing.ID == v.ID {
			return fmt.Errorf("version already exists: %s", v.ID)
		}
	}
	m.versions[v.ProjectID] = append(m.versions[v.ProjectID], v)
	return nil
}

// GetVersion returns a version scoped to its owning project.
func (m *MemoryStore) GetVersion(projectID, versionID string) (domain.Version, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions[projectID] {
		if v.ID == versionID {
			return v, true, nil
		}
	}
	return domain.Version{}, false, nil
}

// ListVersions returns a project's versions in creation order.
func (m *MemoryStore) ListVersions(projectID string) ([]domain.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Version, len(m.versions[projectID]))
	copy(res, m.versions[projectID])
	return res, nil
}

// AppendMessage records a conversation message.
func (m *MemoryStore) AppendMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ProjectID] = append(m.messages[msg.ProjectID], msg)
	return nil
}

// ListMessages returns the conversation trail in append order.
func (m *MemoryStore) ListMessages(projectID string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Message, len(m.messages[projectID]))
	copy(res, m.messages[projectID])
	return res, nil
}
