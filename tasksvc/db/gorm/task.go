package gorm

import (
	"context"
	"errors"
	"strings"

	"github.com/ichigozero/todokit/tasksvc"
	libgorm "gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type taskRepository struct {
	db *libgorm.DB
}

func NewTaskRepository(db *libgorm.DB) tasksvc.TaskRepository {
	return &taskRepository{db}
}

func (t *taskRepository) Create(ctx context.Context, task tasksvc.Task) (tasksvc.Task, error) {
	task.ID = 0
	task.User = nil
	normalize(&task)

	err := t.db.WithContext(ctx).Transaction(func(tx *libgorm.DB) error {
		return tx.Create(&task).Error
	})
	if err != nil {
		return tasksvc.Task{}, err
	}

	return task, nil
}

func (t *taskRepository) FindAll(ctx context.Context, userID uint64, q tasksvc.ListQuery) ([]tasksvc.Task, error) {
	tasks := []tasksvc.Task{}

	if q.Limit == 0 {
		return tasks, nil
	}

	db := t.db.WithContext(ctx).Where("user_id = ?", userID)
	if q.Title != nil {
		db = db.Where("title_fold LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(*q.Title))+"%")
	}
	if q.IsComplete != nil {
		db = db.Where("is_complete = ?", *q.IsComplete)
	}

	db = db.Order(clause.OrderByColumn{
		Column: clause.Column{Name: q.SortBy.Column()},
		Desc:   q.Desc,
	})
	if q.SortBy != tasksvc.SortByID {
		db = db.Order("id")
	}

	result := db.Offset(q.Skip).Limit(q.Limit).Find(&tasks)

	return tasks, result.Error
}

func (t *taskRepository) Find(ctx context.Context, userID, taskID uint64) (tasksvc.Task, error) {
	return find(t.db.WithContext(ctx), userID, taskID)
}

func (t *taskRepository) Update(ctx context.Context, task tasksvc.Task) (tasksvc.Task, error) {
	task.User = nil
	normalize(&task)

	err := t.db.WithContext(ctx).Transaction(func(tx *libgorm.DB) error {
		if _, err := find(tx, task.UserID, task.ID); err != nil {
			return err
		}

		return tx.Model(&tasksvc.Task{ID: task.ID}).
			Where("user_id = ?", task.UserID).
			Select("title", "title_fold", "description", "is_complete", "date", "priority", "user_id").
			Updates(&task).Error
	})
	if err != nil {
		return tasksvc.Task{}, err
	}

	return task, nil
}

func (t *taskRepository) Delete(ctx context.Context, userID, taskID uint64) error {
	return t.db.WithContext(ctx).Transaction(func(tx *libgorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", taskID, userID).Delete(&tasksvc.Task{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return tasksvc.ErrTaskNotFound
		}
		return nil
	})
}

func find(db *libgorm.DB, userID, taskID uint64) (tasksvc.Task, error) {
	var task tasksvc.Task
	result := db.Where("id = ? AND user_id = ?", taskID, userID).First(&task)
	if errors.Is(result.Error, libgorm.ErrRecordNotFound) {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}

	return task, result.Error
}

// normalize derives the stored forms of task. TitleFold is matched by the
// title filter since sqlite's LOWER only folds ASCII.
func normalize(task *tasksvc.Task) {
	task.TitleFold = strings.ToLower(task.Title)
	if task.Date != nil {
		d := tasksvc.NormalizeDate(*task.Date)
		task.Date = &d
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
