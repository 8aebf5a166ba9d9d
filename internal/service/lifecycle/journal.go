package lifecycle

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"deposit-core/internal/event"
	"deposit-core/internal/model"
)

// Journal 记录每次状态流转, 写失败只打日志, 不影响流程
type Journal interface {
	Record(ctx context.Context, a *model.DepositAttempt, from, to State, detail string) error
	// Complete stores the final attempt row and its outbox event atomically.
	Complete(ctx context.Context, a *model.DepositAttempt, evt *event.DepositLifecycleEvent) error
}

// GormJournal 写 deposit_attempts / attempt_transitions / outbox_messages
type GormJournal struct {
	db    *gorm.DB
	topic string
}

func NewGormJournal(db *gorm.DB, topic string) *GormJournal {
	if topic == "" {
		topic = event.TopicDepositEvents
	}
	return &GormJournal{db: db, topic: topic}
}

func (j *GormJournal) Record(ctx context.Context, a *model.DepositAttempt, from, to State, detail string) error {
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(a).Error; err != nil {
			return err
		}
		return tx.Create(&model.AttemptTransition{
			AttemptID: a.ID,
			FromState: string(from),
			ToState:   string(to),
			Detail:    detail,
		}).Error
	})
}

func (j *GormJournal) Complete(ctx context.Context, a *model.DepositAttempt, evt *event.DepositLifecycleEvent) error {
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(a).Error; err != nil {
			return err
		}
		// 同一个事务写 outbox, 由 RelayService 投递
		return model.CreateOutboxMessage(tx, j.topic, a.StacksAddress, evt)
	})
}

// MemoryJournal keeps everything in process; used when the database is disabled.
type MemoryJournal struct {
	mu          sync.Mutex
	attempts    map[string]model.DepositAttempt
	transitions []model.AttemptTransition
	events      []event.DepositLifecycleEvent
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{attempts: make(map[string]model.DepositAttempt)}
}

func (j *MemoryJournal) Record(ctx context.Context, a *model.DepositAttempt, from, to State, detail string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts[a.ID] = *a
	j.transitions = append(j.transitions, model.AttemptTransition{
		AttemptID: a.ID,
		FromState: string(from),
		ToState:   string(to),
		Detail:    detail,
	})
	return nil
}

func (j *MemoryJournal) Complete(ctx context.Context, a *model.DepositAttempt, evt *event.DepositLifecycleEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts[a.ID] = *a
	if evt != nil {
		j.events = append(j.events, *evt)
	}
	return nil
}

// Attempt returns the stored attempt by id.
func (j *MemoryJournal) Attempt(id string) (model.DepositAttempt, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	a, ok := j.attempts[id]
	return a, ok
}

// Path returns the sequence of states recorded for an attempt.
func (j *MemoryJournal) Path(id string) []State {
	j.mu.Lock()
	defer j.mu.Unlock()
	var path []State
	for _, t := range j.transitions {
		if t.AttemptID != id {
			continue
		}
		if len(path) == 0 {
			path = append(path, State(t.FromState))
		}
		path = append(path, State(t.ToState))
	}
	return path
}

func (j *MemoryJournal) Events() []event.DepositLifecycleEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]event.DepositLifecycleEvent(nil), j.events...)
}
