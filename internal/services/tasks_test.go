package services

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arnold/chore-tracker-api/internal/models"
	"github.com/google/uuid"
)

func TestCheckTransition(t *testing.T) {
	sup := &models.User{ID: uuid.New(), Role: models.RoleSupervisor}
	assignee := &models.User{ID: uuid.New(), Role: models.RoleMember}
	other := &models.User{ID: uuid.New(), Role: models.RoleMember}
	task := &models.Task{
		Status:    models.StatusPending,
		Assignees: []models.TaskAssignee{{UserID: assignee.ID}},
	}

	tests := []struct {
		name    string
		user    *models.User
		next    models.TaskStatus
		wantErr error
	}{
		{"supervisor completes", sup, models.StatusCompleted, nil},
		{"supervisor rejects", sup, models.StatusRejected, nil},
		{"supervisor resets to pending", sup, models.StatusPending, nil},
		{"member completes", assignee, models.StatusCompleted, ErrForbidden},
		{"member rejects", assignee, models.StatusRejected, ErrForbidden},
		{"assignee submits", assignee, models.StatusForApproval, nil},
		{"non-assignee submits", other, models.StatusForApproval, ErrForbidden},
		{"supervisor not assigned submits", sup, models.StatusForApproval, ErrForbidden},
		{"member resets to pending", other, models.StatusPending, nil},
		{"unknown status", sup, models.TaskStatus("Done"), ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTransition(tt.user, task, tt.next)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("CheckTransition() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CheckTransition() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChoreApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sup, members, _ := env.family(t, "Smiths", "kid")
	kid := members[0]

	task := env.createTask(t, sup, 3, kid)
	if task.Status != models.StatusPending {
		t.Fatalf("new task status = %s, want Pending", task.Status)
	}
	if len(task.AssignTo) != 1 || task.AssignTo[0] != kid.ID {
		t.Fatalf("assignTo = %v, want [%s]", task.AssignTo, kid.ID)
	}

	id := task.ID.String()
	got, err := env.tasks.UpdateStatus(ctx, kid, id, string(models.StatusForApproval))
	if err != nil {
		t.Fatalf("submit for approval: %v", err)
	}
	if got.Status != models.StatusForApproval {
		t.Fatalf("status = %s, want For_Approval", got.Status)
	}

	if _, err := env.tasks.UpdateStatus(ctx, kid, id, string(models.StatusCompleted)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("member complete error = %v, want ErrForbidden", err)
	}
	got, err = env.tasks.Get(ctx, kid, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != models.StatusForApproval {
		t.Fatalf("status after forbidden change = %s, want For_Approval", got.Status)
	}

	got, err = env.tasks.UpdateStatus(ctx, sup, id, string(models.StatusCompleted))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != models.StatusCompleted || got.CompletedAt == nil {
		t.Fatalf("status = %s completedAt = %v", got.Status, got.CompletedAt)
	}
	if stars := env.reload(t, kid).StarTotal; stars != 3 {
		t.Errorf("starTotal = %d, want 3", stars)
	}

	history, err := env.accounts.RewardHistory(ctx, kid.ID)
	if err != nil {
		t.Fatalf("RewardHistory() error = %v", err)
	}
	if len(history) != 1 || history[0].StarsEarned != 3 || history[0].TaskID != task.ID {
		t.Errorf("history = %+v", history)
	}
}

func TestStarsCreditedOncePerTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sup, members, _ := env.family(t, "Smiths", "kid1", "kid2")

	task := env.createTask(t, sup, 5, members...)
	id := task.ID.String()

	steps := []models.TaskStatus{
		models.StatusCompleted,
		models.StatusPending,
		models.StatusCompleted,
	}
	for _, st := range steps {
		if _, err := env.tasks.UpdateStatus(ctx, sup, id, string(st)); err != nil {
			t.Fatalf("UpdateStatus(%s) error = %v", st, err)
		}
	}

	for _, m := range members {
		if stars := env.reload(t, m).StarTotal; stars != 5 {
			t.Errorf("%s starTotal = %d, want 5", m.FullName, stars)
		}
	}
}

func TestRejectedTaskEarnsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sup, members, _ := env.family(t, "Smiths", "kid")

	task := env.createTask(t, sup, 4, members[0])
	got, err := env.tasks.UpdateStatus(ctx, sup, task.ID.String(), string(models.StatusRejected))
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != models.StatusRejected || got.CompletedAt != nil {
		t.Errorf("status = %s completedAt = %v", got.Status, got.CompletedAt)
	}
	if stars := env.reload(t, members[0]).StarTotal; stars != 0 {
		t.Errorf("starTotal = %d, want 0", stars)
	}
}

func TestUpdateStatusValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sup, members, _ := env.family(t, "Smiths", "kid")
	task := env.createTask(t, sup, 1, members[0])

	if _, err := env.tasks.UpdateStatus(ctx, sup, task.ID.String(), ""); !errors.Is(err, ErrValidation) {
		t.Errorf("empty status error = %v, want ErrValidation", err)
	}
	if _, err := env.tasks.UpdateStatus(ctx, sup, task.ID.String(), "Finished"); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown status error = %v, want ErrValidation", err)
	}
	if _, err := env.tasks.UpdateStatus(ctx, sup, "not-a-uuid", string(models.StatusCompleted)); !errors.Is(err, ErrNotFound) {
		t.Errorf("bad id error = %v, want ErrNotFound", err)
	}
}

func TestStaleStatusChangeIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sup, members, _ := env.family(t, "Smiths", "kid")
	task := env.createTask(t, sup, 2, members[0])

	stale, err := env.tasks.Get(ctx, sup, task.ID.String())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := env.tasks.UpdateStatus(ctx, sup, task.ID.String(), string(models.StatusRejected)); err != nil {
		t.Fatalf("reject: %v", err)
	}

	err = env.tasks.applyStatus(env.db, stale, models.StatusCompleted, nil)
	if !errors.Is(err, ErrStatusChanged) {
		t.Fatalf("applyStatus() error = %v, want ErrStatusChanged", err)
	}
	if stars := env.reload(t, members[0]).StarTotal; stars != 0 {
		t.Errorf("starTotal = %d, want 0", stars)
	}
}

func TestTasksAreIsolatedByFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sup, members, _ := env.family(t, "Smiths", "kid")
	outsider, others, _ := env.family(t, "Joneses", "other")
	loner := env.register(t, "loner", models.RoleMember)

	task := env.createTask(t, sup, 1, members[0])
	id := task.ID.String()

	for _, u := range []*models.User{outsider, others[0], loner} {
		if _, err := env.tasks.Get(ctx, u, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s Get() error = %v, want ErrNotFound", u.FullName, err)
		}
		if _, err := env.tasks.UpdateStatus(ctx, u, id, string(models.StatusCompleted)); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s UpdateStatus() error = %v, want ErrNotFound", u.FullName, err)
		}
		if err := env.tasks.Delete(ctx, u, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s Delete() error = %v, want ErrNotFound", u.FullName, err)
		}
		list, err := env.tasks.List(ctx, u, "")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(list) != 0 {
			t.Errorf("%s sees %d tasks", u.FullName, len(list))
		}
	}

	if _, err := env.tasks.Create(ctx, sup, models.CreateTaskRequest{
		Title:       "Mow",
		RewardValue: intPtr(1),
		DueDate:     "2030-01-01",
		AssignTo:    models.AssigneeList{others[0].ID},
	}); !errors.Is(err, ErrValidation) {
		t.Errorf("assigning outsider error = %v, want ErrValidation", err)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	sup, members, _ := env.family(t, "Smiths", "kid")
	kid := models.AssigneeList{members[0].ID}

	tests := []struct {
		name string
		req  models.CreateTaskRequest
	}{
		{"missing title", models.CreateTaskRequest{RewardValue: intPtr(1), DueDate: "2030-01-01", AssignTo: kid}},
		{"blank title", models.CreateTaskRequest{Title: "   ", RewardValue: intPtr(1), DueDate: "2030-01-01", AssignTo: kid}},
		{"missing reward", models.CreateTaskRequest{Title: "Dishes", DueDate: "2030-01-01", AssignTo: kid}},
		{"reward too high", models.CreateTaskRequest{Title: "Dishes", RewardValue: intPtr(6), DueDate: "2030-01-01", AssignTo: kid}},
		{"negative reward", models.CreateTaskRequest{Title: "Dishes", RewardValue: intPtr(-1), DueDate: "2030-01-01", AssignTo: kid}},
		{"missing due date", models.CreateTaskRequest{Title: "Dishes", RewardValue: intPtr(1), AssignTo: kid}},
		{"bad due date", models.CreateTaskRequest{Title: "Dishes", RewardValue: intPtr(1), DueDate: "tomorrow", AssignTo: kid}},
		{"bad notification time", models.CreateTaskRequest{Title: "Dishes", RewardValue: intPtr(1), DueDate: "2030-01-01", NotificationTime: "soon", AssignTo: kid}},
		{"no assignees", models.CreateTaskRequest{Title: "Dishes", RewardValue: intPtr(1), DueDate: "2030-01-01"}},
		{"unknown assignee", models.CreateTaskRequest{Title: "Dishes", RewardValue: intPtr(1), DueDate: "2030-01-01", AssignTo: models.AssigneeList{uuid.New()}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.tasks.Create(context.Background(), sup, tt.req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("Create() error = %v, want ErrValidation", err)
			}
		})
	}

	loner := env.register(t, "loner", models.RoleSupervisor)
	_, err := env.tasks.Create(context.Background(), loner, models.CreateTaskRequest{
		Title: "Dishes", RewardValue: intPtr(1), DueDate: "2030-01-01", AssignTo: kid,
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Create() without family error = %v, want ErrValidation", err)
	}
}

func TestCreateTaskAcceptsZeroRewardAndDedupesAssignees(t *testing.T) {
	env := newTestEnv(t)
	sup, members, _ := env.family(t, "Smiths", "kid")

	task, err := env.tasks.Create(context.Background(), members[0], models.CreateTaskRequest{
		Title:       "Feed the cat",
		RewardValue: intPtr(0),
		DueDate:     "2030-01-01T08:00:00",
		AssignTo:    models.AssigneeList{members[0].ID, members[0].ID, sup.ID},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(task.AssignTo) != 2 {
		t.Errorf("assignTo = %v, want 2 unique ids", task.AssignTo)
	}
	if task.CreatedBy != members[0].ID {
		t.Errorf("createdBy = %s, want %s", task.CreatedBy, members[0].ID)
	}
}

func TestListTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sup, members, _ := env.family(t, "Smiths", "kid1", "kid2")

	first := env.createTask(t, sup, 1, members[0])
	env.createTask(t, sup, 2, members[1])
	if _, err := env.tasks.UpdateStatus(ctx, sup, first.ID.String(), string(models.StatusRejected)); err != nil {
		t.Fatalf("reject: %v", err)
	}

	all, err := env.tasks.List(ctx, members[1], "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List() = %d tasks, want 2", len(all))
	}

	rejected, err := env.tasks.List(ctx, sup, string(models.StatusRejected))
	if err != nil {
		t.Fatalf("List(Rejected) error = %v", err)
	}
	if len(rejected) != 1 || rejected[0].ID != first.ID {
		t.Errorf("List(Rejected) = %+v", rejected)
	}

	if _, err := env.tasks.List(ctx, sup, "Nope"); !errors.Is(err, ErrValidation) {
		t.Errorf("List(Nope) error = %v, want ErrValidation", err)
	}

	mine, err := env.tasks.ListMine(ctx, members[0])
	if err != nil {
		t.Fatalf("ListMine() error = %v", err)
	}
	if len(mine) != 1 || mine[0].ID != first.ID {
		t.Errorf("ListMine() = %+v", mine)
	}
}

func TestUpdateTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sup, members, _ := env.family(t, "Smiths", "kid1", "kid2")
	task := env.createTask(t, sup, 1, members[0])
	id := task.ID.String()

	title := "Dishes and pans"
	got, err := env.tasks.Update(ctx, sup, id, models.UpdateTaskRequest{
		Title:       &title,
		RewardValue: intPtr(4),
		AssignTo:    models.AssigneeList{members[1].ID},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Title != title || got.RewardValue != 4 {
		t.Errorf("task = %q/%d", got.Title, got.RewardValue)
	}
	if len(got.AssignTo) != 1 || got.AssignTo[0] != members[1].ID {
		t.Errorf("assignTo = %v, want [%s]", got.AssignTo, members[1].ID)
	}

	completed := string(models.StatusCompleted)
	if _, err := env.tasks.Update(ctx, members[1], id, models.UpdateTaskRequest{Status: &completed}); !errors.Is(err, ErrForbidden) {
		t.Errorf("member completing via update error = %v, want ErrForbidden", err)
	}
	if _, err := env.tasks.Update(ctx, sup, id, models.UpdateTaskRequest{RewardValue: intPtr(9)}); !errors.Is(err, ErrValidation) {
		t.Errorf("reward 9 error = %v, want ErrValidation", err)
	}

	got, err = env.tasks.Update(ctx, sup, id, models.UpdateTaskRequest{Status: &completed})
	if err != nil {
		t.Fatalf("Update(status) error = %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("status = %s, want Completed", got.Status)
	}
	if stars := env.reload(t, members[1]).StarTotal; stars != 4 {
		t.Errorf("starTotal = %d, want 4", stars)
	}
}

func TestDeleteTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sup, members, _ := env.family(t, "Smiths", "kid")
	task := env.createTask(t, sup, 1, members[0])

	if err := env.tasks.Delete(ctx, members[0], task.ID.String()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := env.tasks.Get(ctx, sup, task.ID.String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	var count int64
	env.db.Model(&models.TaskAssignee{}).Where("task_id = ?", task.ID).Count(&count)
	if count != 0 {
		t.Errorf("%d assignee rows left", count)
	}
}

func proofFile(t *testing.T, filename, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="proofImage"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(data)
	w.Close()

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["proofImage"][0]
}

func TestSubmitProof(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sup, members, _ := env.family(t, "Smiths", "kid", "sibling")
	task := env.createTask(t, sup, 2, members[0])

	png := []byte("\x89PNG\r\n\x1a\nfake")
	got, err := env.tasks.SubmitProof(ctx, members[0], ProofSubmission{
		TaskID: task.ID.String(),
		Notes:  "All clean",
		File:   proofFile(t, "dishes.PNG", "image/png", png),
	})
	if err != nil {
		t.Fatalf("SubmitProof() error = %v", err)
	}
	if got.Status != models.StatusForApproval {
		t.Errorf("status = %s, want For_Approval", got.Status)
	}
	if got.ProofNotes == nil || *got.ProofNotes != "All clean" {
		t.Errorf("proofNotes = %v", got.ProofNotes)
	}
	if got.ProofImage == nil || !strings.HasPrefix(*got.ProofImage, "/uploads/proofs/proofImage-") || !strings.HasSuffix(*got.ProofImage, ".png") {
		t.Fatalf("proofImage = %v", got.ProofImage)
	}
	stored, err := os.ReadFile(filepath.Join(env.root, "proofs", filepath.Base(*got.ProofImage)))
	if err != nil {
		t.Fatalf("read stored proof: %v", err)
	}
	if !bytes.Equal(stored, png) {
		t.Errorf("stored proof differs")
	}

	var notified int64
	env.db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", sup.ID, models.NotifyTaskSubmitted).
		Count(&notified)
	if notified != 1 {
		t.Errorf("supervisor notifications = %d, want 1", notified)
	}
}

func TestSubmitProofRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sup, members, _ := env.family(t, "Smiths", "kid", "sibling")
	task := env.createTask(t, sup, 2, members[0])
	id := task.ID.String()

	tests := []struct {
		name    string
		user    *models.User
		sub     ProofSubmission
		wantErr error
	}{
		{"no file", members[0], ProofSubmission{TaskID: id}, ErrValidation},
		{"no task", members[0], ProofSubmission{File: proofFile(t, "a.png", "image/png", []byte("x"))}, ErrValidation},
		{"not an image", members[0], ProofSubmission{TaskID: id, File: proofFile(t, "a.txt", "text/plain", []byte("x"))}, ErrValidation},
		{"image extension with text type", members[0], ProofSubmission{TaskID: id, File: proofFile(t, "a.png", "text/plain", []byte("x"))}, ErrValidation},
		{"not assigned", members[1], ProofSubmission{TaskID: id, File: proofFile(t, "a.png", "image/png", []byte("x"))}, ErrForbidden},
		{"unknown task", members[0], ProofSubmission{TaskID: uuid.NewString(), File: proofFile(t, "a.png", "image/png", []byte("x"))}, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.tasks.SubmitProof(ctx, tt.user, tt.sub)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SubmitProof() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	entries, _ := os.ReadDir(filepath.Join(env.root, "proofs"))
	if len(entries) != 0 {
		t.Errorf("%d files written for rejected submissions", len(entries))
	}
}

func TestProofStoreRejectsLargeFiles(t *testing.T) {
	store := NewProofStore(t.TempDir(), 4)
	_, err := store.Save(proofFile(t, "big.jpg", "image/jpeg", []byte("12345")))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Save() error = %v, want ErrValidation", err)
	}
}

func TestNotificationsReadState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sup, members, _ := env.family(t, "Smiths", "kid")
	env.createTask(t, sup, 1, members[0])
	env.createTask(t, sup, 1, members[0])

	notifier := NewNotifier(env.db, nil, nil)
	list, total, unread, err := notifier.ListNotifications(ctx, members[0].ID, NewPage(1, 20))
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if total != 2 || unread != 2 || len(list) != 2 {
		t.Fatalf("total=%d unread=%d len=%d, want 2/2/2", total, unread, len(list))
	}

	if err := notifier.MarkRead(ctx, members[0].ID, list[0].ID); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if err := notifier.MarkRead(ctx, sup.ID, list[1].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkRead() by other user error = %v, want ErrNotFound", err)
	}
	_, _, unread, _ = notifier.ListNotifications(ctx, members[0].ID, NewPage(1, 20))
	if unread != 1 {
		t.Errorf("unread = %d, want 1", unread)
	}

	if err := notifier.MarkAllRead(ctx, members[0].ID); err != nil {
		t.Fatalf("MarkAllRead() error = %v", err)
	}
	_, _, unread, _ = notifier.ListNotifications(ctx, members[0].ID, NewPage(1, 20))
	if unread != 0 {
		t.Errorf("unread = %d, want 0", unread)
	}
}
