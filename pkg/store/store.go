package store

import "sitebuilder/pkg/domain"

// Store defines persistence operations for users, projects, versions, and
// conversation messages.
//
// Credit mutations are single-row atomic updates: DebitCredits checks and
// decrements in one statement so concurrent debits for the same user can
// never both pass an insufficient-balance check. Versions and messages are
// append-only; the only mutation on a version chain is repointing the
// project's current-version reference.
type Store interface {
	// users / credits
	EnsureUser(id string, startingCredits int64) (domain.User, error)
	GetUser(id string) (domain.User, bool, error)
	// DebitCredits atomically decrements the balance. It returns false when
	// the balance is insufficient; that is a normal outcome, not an error.
	DebitCredits(id string, amount int64) (bool, error)
	RefundCredits(id string, amount int64) error
	GrantCredits(id string, amount int64) error
	IncrementCreations(id string) error

	// projects
	CreateProject(domain.Project) error
	GetProject(id string) (domain.Project, bool, error)
	ListProjectsByOwner(ownerID string) ([]domain.Project, error)
	ListPublishedProjects() ([]domain.Project, error)
	DeleteProject(id string) error
	SetPublished(id string, published bool) error
	// BeginGeneration flips status to generating iff the project is currently
	// in one of the given states (compare-and-swap). Returns false when the
	// guard did not match, e.g. another generation is already in flight.
	BeginGeneration(id string, from ...domain.ProjectStatus) (bool, error)
	SetProjectStatus(id string, status domain.ProjectStatus) error
	// SetCurrentVersion repoints the current-version reference and copies the
	// version's code into the project, setting status to ready. Returns false
	// when the version does not belong to the project.
	SetCurrentVersion(projectID, versionID string) (bool, error)
	// SaveCurrentCode overwrites current code without creating a version and
	// clears the current-version reference so the pointer never claims to
	// match content it no longer has.
	SaveCurrentCode(projectID, code string) error

	// versions
	CreateVersion(domain.Version) error
	GetVersion(projectID, versionID string) (domain.Version, bool, error)
	ListVersions(projectID string) ([]domain.Version, error)

	// conversation
	AppendMessage(domain.Message) error
	ListMessages(projectID string) ([]domain.Message, error)
}
