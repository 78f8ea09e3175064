package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/arnold/chore-tracker-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// TaskService implements the task lifecycle. Every query is scoped to the
// caller's family; tasks outside it are reported as not found.
type TaskService struct {
	db       *gorm.DB
	notifier *Notifier
	proofs   *ProofStore
}

func NewTaskService(db *gorm.DB, notifier *Notifier, proofs *ProofStore) *TaskService {
	return &TaskService{db: db, notifier: notifier, proofs: proofs}
}

// ProofSubmission is a multipart proof upload.
type ProofSubmission struct {
	TaskID string
	Notes  string
	File   *multipart.FileHeader
}

// CheckTransition reports whether user may move task into next.
func CheckTransition(user *models.User, task *models.Task, next models.TaskStatus) error {
	switch next {
	case models.StatusCompleted, models.StatusRejected:
		switch user.Role {
		case models.RoleSupervisor:
			return nil
		case models.RoleMember:
			return forbidden("Only supervisors can approve/reject tasks")
		default:
			return forbidden("Unknown role")
		}
	case models.StatusForApproval:
		if !task.IsAssignee(user.ID) {
			return forbidden("You can not complete tasks that are not assigned to you")
		}
		return nil
	case models.StatusPending:
		return nil
	default:
		return validation("Invalid status")
	}
}

func (s *TaskService) List(ctx context.Context, user *models.User, status string) ([]models.Task, error) {
	q := s.db.WithContext(ctx).
		Preload("Assignees").
		Where("family_id = ?", familyScope(user))
	if status != "" {
		st := models.TaskStatus(status)
		if !st.Valid() {
			return nil, validation("Invalid status")
		}
		q = q.Where("status = ?", st)
	}

	tasks := []models.Task{}
	if err := q.Order("due_date ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListMine returns the family tasks the caller is assigned to.
func (s *TaskService) ListMine(ctx context.Context, user *models.User) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.WithContext(ctx).
		Preload("Assignees").
		Joins("JOIN task_assignees ON task_assignees.task_id = tasks.id").
		Where("tasks.family_id = ? AND task_assignees.user_id = ?", familyScope(user), user.ID).
		Order("tasks.due_date ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list my tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) Get(ctx context.Context, user *models.User, id string) (*models.Task, error) {
	return s.find(s.db.WithContext(ctx), user, id)
}

func (s *TaskService) Create(ctx context.Context, user *models.User, req models.CreateTaskRequest) (*models.Task, error) {
	if !user.HasFamily() {
		return nil, validation("You must belong to a family to create tasks")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, validation("Title is required")
	}
	if req.RewardValue == nil {
		return nil, validation("Reward value is required")
	}
	if err := checkReward(*req.RewardValue); err != nil {
		return nil, err
	}
	if req.DueDate == "" {
		return nil, validation("Due date is required")
	}
	dueDate, err := parseTime(req.DueDate)
	if err != nil {
		return nil, validation("Invalid due date")
	}
	var notifyAt *time.Time
	if req.NotificationTime != "" {
		t, err := parseTime(req.NotificationTime)
		if err != nil {
			return nil, validation("Invalid notification time")
		}
		notifyAt = &t
	}

	db := s.db.WithContext(ctx)
	assignees, err := s.checkAssignees(db, *user.FamilyID, req.AssignTo)
	if err != nil {
		return nil, err
	}

	task := models.Task{
		Title:            title,
		Description:      req.Description,
		RewardValue:      *req.RewardValue,
		DueDate:          dueDate,
		NotificationTime: notifyAt,
		FamilyID:         *user.FamilyID,
		CreatedBy:        user.ID,
		Status:           models.StatusPending,
		Assignees:        assigneeRows(assignees),
	}
	if err := db.Create(&task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.notifier.LogActivity(ctx, task.FamilyID, user.ID, models.ActionTaskCreated, &task.ID, map[string]interface{}{
		"title": task.Title,
	})
	s.notifier.Notify(ctx, assignees, user.ID, models.NotifyTaskAssigned,
		"New chore assigned",
		fmt.Sprintf("%s assigned you \"%s\"", user.FullName, task.Title),
		map[string]interface{}{"taskId": task.ID.String()},
	)
	s.notifier.Broadcast(task.FamilyID, user.ID, EventTaskCreated, task)
	return &task, nil
}

// Update applies a partial update. A status in the request goes through the
// same transition rules as UpdateStatus.
func (s *TaskService) Update(ctx context.Context, user *models.User, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	fields := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, validation("Title cannot be empty")
		}
		fields["title"] = title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.RewardValue != nil {
		if err := checkReward(*req.RewardValue); err != nil {
			return nil, err
		}
		fields["reward_value"] = *req.RewardValue
	}
	if req.DueDate != nil {
		t, err := parseTime(*req.DueDate)
		if err != nil {
			return nil, validation("Invalid due date")
		}
		fields["due_date"] = t
	}
	if req.NotificationTime != nil {
		if *req.NotificationTime == "" {
			fields["notification_time"] = nil
		} else {
			t, err := parseTime(*req.NotificationTime)
			if err != nil {
				return nil, validation("Invalid notification time")
			}
			fields["notification_time"] = t
		}
	}
	var next models.TaskStatus
	if req.Status != nil {
		next = models.TaskStatus(*req.Status)
		if !next.Valid() {
			return nil, validation("Invalid status")
		}
	}

	var task *models.Task
	var previous models.TaskStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = s.find(tx, user, id)
		if err != nil {
			return err
		}
		previous = task.Status

		if req.AssignTo != nil {
			assignees, err := s.checkAssignees(tx, task.FamilyID, req.AssignTo)
			if err != nil {
				return err
			}
			if err := tx.Where("task_id = ?", task.ID).Delete(&models.TaskAssignee{}).Error; err != nil {
				return fmt.Errorf("clear assignees: %w", err)
			}
			rows := assigneeRows(assignees)
			for i := range rows {
				rows[i].TaskID = task.ID
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("assign task: %w", err)
			}
			task.Assignees = rows
		}

		if len(fields) > 0 {
			fields["updated_at"] = time.Now()
			if err := tx.Model(&models.Task{}).Where("id = ?", task.ID).Updates(fields).Error; err != nil {
				return fmt.Errorf("update task: %w", err)
			}
			if task, err = s.find(tx, user, id); err != nil {
				return err
			}
		}

		if req.Status != nil && next != task.Status {
			if err := CheckTransition(user, task, next); err != nil {
				return err
			}
			if err := s.applyStatus(tx, task, next, nil); err != nil {
				return err
			}
		}

		task, err = s.find(tx, user, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.LogActivity(ctx, task.FamilyID, user.ID, models.ActionTaskUpdated, &task.ID, map[string]interface{}{
		"title": task.Title,
	})
	if task.Status != previous {
		s.announceStatus(ctx, user, task, previous)
	} else {
		s.notifier.Broadcast(task.FamilyID, user.ID, EventTaskUpdated, task)
	}
	return task, nil
}

// UpdateStatus moves a task to a new status under the role rules of CheckTransition.
func (s *TaskService) UpdateStatus(ctx context.Context, user *models.User, id string, status string) (*models.Task, error) {
	if status == "" {
		return nil, validation("Status is required")
	}
	next := models.TaskStatus(status)
	if !next.Valid() {
		return nil, validation("Invalid status")
	}

	var task *models.Task
	var previous models.TaskStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = s.find(tx, user, id)
		if err != nil {
			return err
		}
		previous = task.Status
		if err := CheckTransition(user, task, next); err != nil {
			return err
		}
		if err := s.applyStatus(tx, task, next, nil); err != nil {
			return err
		}
		task, err = s.find(tx, user, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.announceStatus(ctx, user, task, previous)
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, user *models.User, id string) error {
	var task *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = s.find(tx, user, id)
		if err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.TaskAssignee{}).Error; err != nil {
			return fmt.Errorf("delete assignees: %w", err)
		}
		result := tx.Where("id = ? AND family_id = ?", task.ID, task.FamilyID).Delete(&models.Task{})
		if result.Error != nil {
			return fmt.Errorf("delete task: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return notFound("Task not found")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.LogActivity(ctx, task.FamilyID, user.ID, models.ActionTaskDeleted, &task.ID, map[string]interface{}{
		"title": task.Title,
	})
	s.notifier.Broadcast(task.FamilyID, user.ID, EventTaskDeleted, map[string]interface{}{
		"id": task.ID.String(),
	})
	return nil
}

// SubmitProof stores a proof image and notes on the task and moves it to For_Approval.
// Only assignees may submit.
func (s *TaskService) SubmitProof(ctx context.Context, user *models.User, sub ProofSubmission) (*models.Task, error) {
	if sub.TaskID == "" {
		return nil, validation("Task id is required")
	}
	if sub.File == nil {
		return nil, validation("Please select a photo proof")
	}

	db := s.db.WithContext(ctx)
	task, err := s.find(db, user, sub.TaskID)
	if err != nil {
		return nil, err
	}
	if !task.IsAssignee(user.ID) {
		return nil, forbidden("Only assignees can submit proof for this task")
	}

	imagePath, err := s.proofs.Save(sub.File)
	if err != nil {
		return nil, err
	}

	previous := task.Status
	err = db.Transaction(func(tx *gorm.DB) error {
		extra := map[string]interface{}{
			"proof_image": imagePath,
			"proof_notes": sub.Notes,
		}
		if err := s.applyStatus(tx, task, models.StatusForApproval, extra); err != nil {
			return err
		}
		updated, err := s.find(tx, user, sub.TaskID)
		if err != nil {
			return err
		}
		task = updated
		return nil
	})
	if err != nil {
		s.proofs.Remove(imagePath)
		return nil, err
	}

	s.notifier.LogActivity(ctx, task.FamilyID, user.ID, models.ActionProofSubmit, &task.ID, map[string]interface{}{
		"title": task.Title,
	})
	s.announceStatus(ctx, user, task, previous)
	return task, nil
}

// applyStatus writes next only if the stored status still equals task.Status.
// Entering Completed credits the task's stars to every assignee once.
func (s *TaskService) applyStatus(tx *gorm.DB, task *models.Task, next models.TaskStatus, extra map[string]interface{}) error {
	now := time.Now()
	fields := map[string]interface{}{
		"status":     next,
		"updated_at": now,
	}
	completing := next == models.StatusCompleted && task.Status != models.StatusCompleted
	switch {
	case completing:
		fields["completed_at"] = now
	case next != models.StatusCompleted:
		fields["completed_at"] = nil
	}
	for k, v := range extra {
		fields[k] = v
	}

	result := tx.Model(&models.Task{}).
		Where("id = ? AND family_id = ? AND status = ?", task.ID, task.FamilyID, task.Status).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("update task status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return newError(ErrStatusChanged, "Task status was changed by someone else, please reload")
	}

	if completing {
		return creditStars(tx, task, now)
	}
	return nil
}

func creditStars(tx *gorm.DB, task *models.Task, at time.Time) error {
	for _, a := range task.Assignees {
		var count int64
		err := tx.Model(&models.RewardHistory{}).
			Where("task_id = ? AND user_id = ?", task.ID, a.UserID).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("check reward history: %w", err)
		}
		if count > 0 {
			continue
		}
		entry := models.RewardHistory{
			UserID:      a.UserID,
			TaskID:      task.ID,
			StarsEarned: task.RewardValue,
			Timestamp:   at,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("record reward: %w", err)
		}
		err = tx.Model(&models.User{}).
			Where("id = ?", a.UserID).
			Update("star_total", gorm.Expr("star_total + ?", task.RewardValue)).Error
		if err != nil {
			return fmt.Errorf("credit stars: %w", err)
		}
	}
	return nil
}

func (s *TaskService) announceStatus(ctx context.Context, user *models.User, task *models.Task, previous models.TaskStatus) {
	s.notifier.LogActivity(ctx, task.FamilyID, user.ID, models.ActionTaskStatus, &task.ID, map[string]interface{}{
		"title": task.Title,
		"from":  previous,
		"to":    task.Status,
	})

	meta := map[string]interface{}{"taskId": task.ID.String()}
	switch task.Status {
	case models.StatusForApproval:
		s.notifier.NotifySupervisor(ctx, task.FamilyID, user.ID, models.NotifyTaskSubmitted,
			"Chore ready for review",
			fmt.Sprintf("%s submitted \"%s\" for approval", user.FullName, task.Title),
			meta,
		)
	case models.StatusCompleted:
		s.notifier.Notify(ctx, task.AssignTo, user.ID, models.NotifyTaskApproved,
			"Chore approved!",
			fmt.Sprintf("\"%s\" was approved: +%d stars", task.Title, task.RewardValue),
			meta,
		)
	case models.StatusRejected:
		s.notifier.Notify(ctx, task.AssignTo, user.ID, models.NotifyTaskRejected,
			"Chore rejected",
			fmt.Sprintf("\"%s\" was not approved", task.Title),
			meta,
		)
	case models.StatusPending:
	}

	s.notifier.Broadcast(task.FamilyID, user.ID, EventStatusChanged, task)
}

// find loads a task within the caller's family.
func (s *TaskService) find(db *gorm.DB, user *models.User, id string) (*models.Task, error) {
	taskID, err := uuid.Parse(id)
	if err != nil {
		return nil, notFound("Task not found")
	}
	var task models.Task
	err = db.Preload("Assignees").
		Where("id = ? AND family_id = ?", taskID, familyScope(user)).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Task not found")
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

// checkAssignees dedupes ids and verifies each belongs to the family.
func (s *TaskService) checkAssignees(db *gorm.DB, familyID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, validation("At least one assignee is required")
	}

	var count int64
	err := db.Model(&models.User{}).
		Where("id IN ? AND family_id = ?", unique, familyID).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("check assignees: %w", err)
	}
	if int(count) != len(unique) {
		return nil, validation("Assignees must be members of your family")
	}
	return unique, nil
}

// familyScope returns the id every task query filters on. Users without a
// family get uuid.Nil, which matches no task.
func familyScope(user *models.User) uuid.UUID {
	if !user.HasFamily() {
		return uuid.Nil
	}
	return *user.FamilyID
}

func assigneeRows(ids []uuid.UUID) []models.TaskAssignee {
	rows := make([]models.TaskAssignee, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, models.TaskAssignee{UserID: id})
	}
	return rows
}

func checkReward(v int) error {
	if v < models.MinRewardValue || v > models.MaxRewardValue {
		return validation(fmt.Sprintf("Reward value must be between %d and %d", models.MinRewardValue, models.MaxRewardValue))
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
