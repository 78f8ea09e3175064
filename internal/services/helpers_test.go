package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/arnold/chore-tracker-api/internal/database"
	"github.com/arnold/chore-tracker-api/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db       *gorm.DB
	accounts *AccountService
	families *FamilyService
	tasks    *TaskService
	root     string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	notifier := NewNotifier(db, nil, nil)
	root := t.TempDir()
	return &testEnv{
		db:       db,
		accounts: NewAccountService(db, nil, WithHashCost(bcrypt.MinCost)),
		families: NewFamilyService(db, notifier),
		tasks:    NewTaskService(db, notifier, NewProofStore(root, 5*1024*1024)),
		root:     root,
	}
}

func (e *testEnv) register(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	user, err := e.accounts.Register(context.Background(), models.RegisterRequest{
		FullName: name,
		Email:    name + "@example.com",
		Password: "secret123",
		Role:     string(role),
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return user
}

// reload reads the user back the way the auth middleware would.
func (e *testEnv) reload(t *testing.T, user *models.User) *models.User {
	t.Helper()
	fresh, err := e.accounts.GetUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return fresh
}

// family creates a family supervised by a new Supervisor and joins the given members.
func (e *testEnv) family(t *testing.T, name string, members ...string) (*models.User, []*models.User, *models.Family) {
	t.Helper()
	ctx := context.Background()
	sup := e.register(t, name+"-sup", models.RoleSupervisor)
	fam, err := e.families.CreateFamily(ctx, sup, models.CreateFamilyRequest{FamilyName: name})
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	var joined []*models.User
	for _, m := range members {
		u := e.register(t, m, models.RoleMember)
		if _, err := e.families.JoinFamily(ctx, u, models.JoinFamilyRequest{InviteCode: fam.InviteCode}); err != nil {
			t.Fatalf("join %s: %v", m, err)
		}
		joined = append(joined, u)
	}
	return sup, joined, fam
}

func (e *testEnv) createTask(t *testing.T, creator *models.User, reward int, assignees ...*models.User) *models.Task {
	t.Helper()
	var ids models.AssigneeList
	for _, a := range assignees {
		ids = append(ids, a.ID)
	}
	task, err := e.tasks.Create(context.Background(), creator, models.CreateTaskRequest{
		Title:       "Dishes",
		RewardValue: &reward,
		DueDate:     time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		AssignTo:    ids,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func intPtr(v int) *int { return &v }
