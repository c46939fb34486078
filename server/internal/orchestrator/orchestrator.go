package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"robot-coach/server/internal/evaluation"
	"robot-coach/server/internal/model"
	"robot-coach/server/internal/phase"
	"robot-coach/server/internal/rules"
	"robot-coach/server/internal/session"
	"robot-coach/server/internal/timeline"

	"github.com/google/uuid"
)

var (
	ErrEmptyTrigger  = errors.New("missing trigger")
	ErrSessionEnded  = errors.New("session already ended")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// defaultListLimit 是会话列表默认返回的条数。
const defaultListLimit = 50

// Notifier 接收每一次状态转移结果，例如推送给 websocket 订阅者。
type Notifier interface {
	Publish(sessionID string, result model.TransitionResult)
}

// Orchestrator 负责处理会话触发的编排逻辑。
//
// 职责与契约：
// - append-first：每次触发先写交互记录，再保存快照，保证可回放与幂等。
// - 单写者：同一个 session 的触发串行处理；存储层的步数校验兜底跨进程并发。
// - 决策集中：规则选择与阶段转移都在这里触发，网关只负责收发。
type Orchestrator struct {
	store      session.Store
	timeline   timeline.Store
	catalog    *rules.Catalog
	machine    phase.Machine
	classifier *evaluation.Classifier
	notifier   Notifier
	logger     *log.Logger
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock 是按 session 串行化的互斥锁，refs 为持有或等待者数量，归零时从表中移除。
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func New(store session.Store, timeline timeline.Store, now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		store:      store,
		timeline:   timeline,
		catalog:    rules.Default(),
		machine:    phase.NewMachine(phase.DefaultMaxSuccessSteps, phase.DefaultMaxEscalations),
		classifier: evaluation.NewClassifier(nil, evaluation.DefaultWeights()),
		logger:     log.Default(),
		now:        now,
		locks:      make(map[string]*sessionLock),
	}
}

func (o *Orchestrator) WithCatalog(c *rules.Catalog) *Orchestrator {
	o.catalog = c
	return o
}

func (o *Orchestrator) WithMachine(m phase.Machine) *Orchestrator {
	o.machine = m
	return o
}

func (o *Orchestrator) WithClassifier(c *evaluation.Classifier) *Orchestrator {
	o.classifier = c
	return o
}

func (o *Orchestrator) WithNotifier(n Notifier) *Orchestrator {
	o.notifier = n
	return o
}

func (o *Orchestrator) WithLogger(l *log.Logger) *Orchestrator {
	o.logger = l
	return o
}

func (o *Orchestrator) Catalog() *rules.Catalog {
	return o.catalog
}

func (o *Orchestrator) lock(sessionID string) func() {
	o.mu.Lock()
	l, ok := o.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		o.locks[sessionID] = l
	}
	l.refs++
	o.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		o.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, sessionID)
		}
		o.mu.Unlock()
	}
}

// CreateSession 创建一个处于问候阶段的新会话。
func (o *Orchestrator) CreateSession(ctx context.Context) (*model.CreateSessionResponse, error) {
	snap := phase.Ground()
	data, err := phase.Encode(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	sess := &session.Session{
		ID:        uuid.NewString(),
		StartedAt: o.now(),
		StepCount: snap.StepCount,
		Snapshot:  data,
	}
	if err := o.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	o.logger.Printf("[Orchestrator] ✅ Session created: %s", sess.ID)
	return &model.CreateSessionResponse{
		SessionID: sess.ID,
		State:     snap.State,
		Greeting:  GreetingText,
	}, nil
}

// HandleTrigger 处理一次触发：选规则、转移阶段、写记录、存快照。
//
// 副作用说明：
// - 先追加交互记录（按 StepNumber 幂等），再以旧步数为期望值保存快照。
// - 进入终态时记录会话结束时间。
// - 保存成功后把转移结果推送给 Notifier。
func (o *Orchestrator) HandleTrigger(ctx context.Context, sessionID, trigger string) (*model.TransitionResult, error) {
	return o.HandleEvent(ctx, sessionID, model.TriggerEvent{Trigger: trigger})
}

// HandleEvent 与 HandleTrigger 相同；事件带 StepCount 时，
// 只有与当前步数一致才处理，否则返回 session.ErrConflict，供客户端做乐观并发。
func (o *Orchestrator) HandleEvent(ctx context.Context, sessionID string, evt model.TriggerEvent) (*model.TransitionResult, error) {
	trigger := strings.TrimSpace(evt.Trigger)
	if trigger == "" {
		return nil, ErrEmptyTrigger
	}

	unlock := o.lock(sessionID)
	defer unlock()

	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if evt.StepCount != nil && *evt.StepCount != sess.StepCount {
		return nil, fmt.Errorf("expected step %d, session is at %d: %w", *evt.StepCount, sess.StepCount, session.ErrConflict)
	}
	prev := phase.Decode(sess.Snapshot)
	// reset 结束的会话不再接收触发；终态会话仍可触发，只累加步数。
	if sess.Ended() && !prev.IsFinal() {
		return nil, ErrSessionEnded
	}

	now := o.now()
	step := Reduce(o.machine, o.catalog, sessionID, prev, trigger, now)

	// append-first：先写事实，再保存快照，避免“说了但没记”。
	seq, err := o.timeline.Append(ctx, sessionID, &step.Record)
	if err != nil {
		return nil, fmt.Errorf("append interaction: %w", err)
	}

	data, err := phase.Encode(step.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	expected := sess.StepCount
	sess.Snapshot = data
	sess.StepCount = step.Snapshot.StepCount
	if step.Snapshot.IsFinal() && sess.EndedAt == nil {
		sess.EndedAt = &now
	}
	if err := o.store.Save(ctx, sess, expected); err != nil {
		if errors.Is(err, session.ErrConflict) {
			// 该步已由别的写者提交，记录归对方所有，不回滚。
			o.logger.Printf("[Orchestrator] ⚠️ Concurrent update on session %s at step %d", sessionID, expected)
		} else {
			// 快照没存上：撤销刚写的记录，重试时同一 StepNumber 可以写入新的转移。
			if rmErr := o.timeline.Remove(context.WithoutCancel(ctx), sessionID, &step.Record); rmErr != nil {
				o.logger.Printf("[Orchestrator] ❌ Failed to roll back interaction %s/%d: %v", sessionID, step.Record.StepNumber, rmErr)
			}
		}
		return nil, fmt.Errorf("save session: %w", err)
	}

	o.logger.Printf("[Orchestrator] 🔁 %s seq=%d %q: %s -> %s (escalations=%d)",
		sessionID, seq, trigger, step.Result.PreviousState, step.Result.NewState, step.Result.TotalEscalations)
	if step.Result.IsFinal && !prev.IsFinal() {
		o.logger.Printf("[Orchestrator] 🏁 Session %s finished: %s", sessionID, step.Result.EndReason)
	}

	o.publish(sessionID, step.Result)
	return &step.Result, nil
}

// ForceEnd 按用户要求直接结束会话，不经过转移表，也不写交互记录。
func (o *Orchestrator) ForceEnd(ctx context.Context, sessionID string) (*model.TransitionResult, error) {
	unlock := o.lock(sessionID)
	defer unlock()

	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	prev := phase.Decode(sess.Snapshot)
	next := o.machine.ForceEnd(prev)

	data, err := phase.Encode(next)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	expected := sess.StepCount
	sess.Snapshot = data
	if sess.EndedAt == nil {
		now := o.now()
		sess.EndedAt = &now
	}
	if err := o.store.Save(ctx, sess, expected); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	res := resultFor(sessionID, prev.State, next)
	res.ResponseText = ClosingText
	o.logger.Printf("[Orchestrator] 🛑 Session %s force-ended in %s", sessionID, prev.State)

	o.publish(sessionID, res)
	return &res, nil
}

// Reset 关闭会话：有交互记录的会话标记结束，空会话直接删除。
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) error {
	unlock := o.lock(sessionID)
	defer unlock()

	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Ended() {
		return nil
	}

	n, err := o.timeline.Count(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("count interactions: %w", err)
	}
	if n == 0 {
		if err := o.store.Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("delete empty session: %w", err)
		}
		// 内存实现没有外键级联，需要显式清理。
		if err := o.timeline.Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("delete interactions: %w", err)
		}
		o.logger.Printf("[Orchestrator] 🗑️ Empty session %s deleted", sessionID)
		return nil
	}

	now := o.now()
	sess.EndedAt = &now
	if err := o.store.Save(ctx, sess, sess.StepCount); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	o.logger.Printf("[Orchestrator] ⏹️ Session %s closed after %d interactions", sessionID, n)
	return nil
}

// Rate 保存用户的 Likert 评价，未填写的项保持为空。
func (o *Orchestrator) Rate(ctx context.Context, sessionID string, r model.Rating) error {
	for _, v := range []*int{r.Supportive, r.Understandable, r.NonIntrusive} {
		if v != nil && (*v < 1 || *v > 5) {
			return ErrInvalidRating
		}
	}

	unlock := o.lock(sessionID)
	defer unlock()

	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	r.EvaluatedAt = o.now()
	sess.Rating = &r
	if err := o.store.Save(ctx, sess, sess.StepCount); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Statistics 返回当前快照的计数器视图。
func (o *Orchestrator) Statistics(ctx context.Context, sessionID string) (*phase.Statistics, error) {
	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	st := phase.Decode(sess.Snapshot).Statistics()
	return &st, nil
}

// Evaluate 基于交互记录生成评估报告。
func (o *Orchestrator) Evaluate(ctx context.Context, sessionID string) (*model.EvaluationReport, error) {
	if _, err := o.store.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	records, err := o.timeline.List(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	report := o.classifier.Evaluate(records)
	return &report, nil
}

// Details 返回会话元数据、全部交互、按触发器分组的计数与评估报告。
func (o *Orchestrator) Details(ctx context.Context, sessionID string) (*model.SessionDetails, error) {
	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	records, err := o.timeline.List(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}

	return &model.SessionDetails{
		Session: model.SessionInfo{
			ID:        sess.ID,
			StartedAt: sess.StartedAt,
			EndedAt:   sess.EndedAt,
			Completed: sess.Ended(),
			State:     phase.Decode(sess.Snapshot).State,
			Rating:    sess.Rating,
		},
		Interactions: records,
		Statistics:   o.countTriggers(records),
		Evaluation:   o.classifier.Evaluate(records),
	}, nil
}

// countTriggers 用规则目录里的分组标签判断触发器的正负。
func (o *Orchestrator) countTriggers(records []model.InteractionRecord) model.TriggerCounters {
	group := map[string]rules.Group{}
	for _, r := range o.catalog.Rules() {
		group[r.Trigger] = r.Group
	}

	c := model.TriggerCounters{StepCount: len(records)}
	seen := map[string]bool{}
	for _, r := range records {
		switch group[r.Trigger] {
		case rules.GroupPositive:
			c.PositiveInteractions++
		case rules.GroupNegative:
			c.NegativeInteractions++
		}
		if r.EscalationTotal > c.TotalEscalations {
			c.TotalEscalations = r.EscalationTotal
		}
		seen[r.Trigger] = true
	}
	c.UniqueTriggers = len(seen)
	if c.StepCount > 0 {
		c.PositiveRatio = float64(c.PositiveInteractions) / float64(c.StepCount)
	}
	return c
}

// ListSessions 返回最近的会话概要，跳过没有交互记录的会话。
func (o *Orchestrator) ListSessions(ctx context.Context, limit int) ([]model.SessionSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	sessions, err := o.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]model.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		records, err := o.timeline.List(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("list interactions of %s: %w", s.ID, err)
		}
		if len(records) == 0 {
			continue
		}

		sum := model.SessionSummary{
			ID:            s.ID,
			StartedAt:     s.StartedAt,
			EndedAt:       s.EndedAt,
			StepCount:     len(records),
			Completed:     s.Ended(),
			HasEvaluation: s.Rating != nil && s.Rating.Supportive != nil,
		}
		seen := map[string]bool{}
		for _, r := range records {
			if r.EscalationTotal > sum.EscalationCount {
				sum.EscalationCount = r.EscalationTotal
			}
			if !seen[r.Trigger] {
				seen[r.Trigger] = true
				sum.TriggersUsed = append(sum.TriggersUsed, r.Trigger)
			}
		}
		sort.Strings(sum.TriggersUsed)

		if cls, ok := o.classifier.Classify(records); ok {
			sum.ScenarioType = cls.Scenario.ID
			sum.ScenarioConfidence = int(math.Round(cls.Confidence))
		}
		out = append(out, sum)
	}
	return out, nil
}

// Scenarios 列出全部参考场景。
func (o *Orchestrator) Scenarios() []model.ScenarioRef {
	scs := o.classifier.Scenarios()
	out := make([]model.ScenarioRef, 0, len(scs))
	for _, sc := range scs {
		out = append(out, sc.Ref())
	}
	return out
}

func (o *Orchestrator) publish(sessionID string, res model.TransitionResult) {
	if o.notifier == nil {
		return
	}
	o.notifier.Publish(sessionID, res)
}
