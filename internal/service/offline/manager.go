package offline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vendorsync/internal/clock"
	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
	"github.com/vladislavdragonenkov/vendorsync/internal/metrics"
)

const (
	defaultGracePeriod    = 5 * time.Second
	defaultSubmitTimeout  = 15 * time.Second
	defaultPersistTimeout = 3 * time.Second
	defaultQueueWarnSize  = 100
)

// Триггеры прохода синхронизации (для логов и отчётов).
const (
	TriggerStartup      = "startup"
	TriggerConnectivity = "connectivity_restored"
	TriggerManual       = "manual"
	TriggerEnqueue      = "enqueue"
	TriggerRetry        = "retry"
	TriggerFollowUp     = "follow_up"
)

// ErrManagerClosed возвращается после Close.
var ErrManagerClosed = errors.New("offline manager is closed")

// Options задаёт параметры менеджера очереди.
type Options struct {
	Logger         *log.Entry
	Scheduler      clock.Scheduler
	Metrics        *metrics.SyncMetrics
	GracePeriod    time.Duration
	SubmitTimeout  time.Duration
	PersistTimeout time.Duration
	SlotKey        string
	IDGenerator    func() string
	QueueWarnSize  int
	SyncOnEnqueue  bool
}

// Option настраивает Manager.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithScheduler задаёт планировщик отложенных задач (виртуальный в тестах).
func WithScheduler(s clock.Scheduler) Option {
	return func(opts *Options) {
		opts.Scheduler = s
	}
}

// WithMetrics задаёт набор prometheus-метрик.
func WithMetrics(m *metrics.SyncMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithGracePeriod задаёт задержку перед удалением synced-заказов из очереди.
func WithGracePeriod(d time.Duration) Option {
	return func(opts *Options) {
		opts.GracePeriod = d
	}
}

// WithSubmitTimeout ограничивает время отправки одного заказа.
func WithSubmitTimeout(d time.Duration) Option {
	return func(opts *Options) {
		opts.SubmitTimeout = d
	}
}

// WithPersistTimeout ограничивает время записи слота.
func WithPersistTimeout(d time.Duration) Option {
	return func(opts *Options) {
		opts.PersistTimeout = d
	}
}

// WithSlotKey переопределяет имя слота очереди.
func WithSlotKey(key string) Option {
	return func(opts *Options) {
		opts.SlotKey = key
	}
}

// WithIDGenerator задаёт генератор идентификаторов заказов.
func WithIDGenerator(gen func() string) Option {
	return func(opts *Options) {
		opts.IDGenerator = gen
	}
}

// WithQueueWarnSize задаёт размер очереди, после которого пишется предупреждение.
func WithQueueWarnSize(n int) Option {
	return func(opts *Options) {
		opts.QueueWarnSize = n
	}
}

// WithSyncOnEnqueue включает попытку отправки сразу после Enqueue, если сеть есть.
func WithSyncOnEnqueue(enabled bool) Option {
	return func(opts *Options) {
		opts.SyncOnEnqueue = enabled
	}
}

// Status — проекция состояния для индикатора в UI.
type Status struct {
	Online       bool
	SyncInFlight bool
	domain.QueueStats
}

// SyncReport описывает результат одного прохода синхронизации.
type SyncReport struct {
	Trigger  string
	Synced   []string
	Failed   []string
	// Skipped — pending-заказы, до которых проход не дошёл из-за отмены ctx.
	Skipped  int
	Duration time.Duration
}

// Attempted возвращает число заказов, для которых была попытка отправки.
func (r SyncReport) Attempted() int {
	return len(r.Synced) + len(r.Failed)
}

type pruneTask struct {
	ids  map[string]struct{}
	task clock.Task
}

// Manager буферизует заказы без сети и досылает их при появлении связи.
// Очередь меняет только сам Manager под mu; отправка идёт вне блокировки.
type Manager struct {
	store     domain.SlotStore
	submitter domain.OrderSubmitter
	conn      domain.ConnectivitySource

	logger         *log.Entry
	sched          clock.Scheduler
	metrics        *metrics.SyncMetrics
	gracePeriod    time.Duration
	submitTimeout  time.Duration
	persistTimeout time.Duration
	slotKey        string
	newID          func() string
	queueWarnSize  int
	syncOnEnqueue  bool

	mu          sync.Mutex
	queue       []domain.OfflineOrder
	online      bool
	started     bool
	closed      bool
	followUp    bool
	pruneTasks  map[*pruneTask]struct{}
	unsubscribe func()

	inFlight atomic.Bool
	wg       sync.WaitGroup
	baseCtx  context.Context
	cancel   context.CancelFunc
}

// NewManager создаёт менеджер очереди. Очередь загружается в Start.
func NewManager(store domain.SlotStore, submitter domain.OrderSubmitter, conn domain.ConnectivitySource, options ...Option) *Manager {
	opts := Options{
		GracePeriod:    defaultGracePeriod,
		SubmitTimeout:  defaultSubmitTimeout,
		PersistTimeout: defaultPersistTimeout,
		SlotKey:        domain.QueueSlotKey,
		QueueWarnSize:  defaultQueueWarnSize,
		SyncOnEnqueue:  true,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "offline-manager")
	}
	if opts.Scheduler == nil {
		opts.Scheduler = clock.NewReal()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewSyncMetrics()
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = uuid.NewString
	}
	if opts.GracePeriod < 0 {
		opts.GracePeriod = 0
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = defaultSubmitTimeout
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}
	if opts.SlotKey == "" {
		opts.SlotKey = domain.QueueSlotKey
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	return &Manager{
		store:          store,
		submitter:      submitter,
		conn:           conn,
		logger:         logger,
		sched:          opts.Scheduler,
		metrics:        opts.Metrics,
		gracePeriod:    opts.GracePeriod,
		submitTimeout:  opts.SubmitTimeout,
		persistTimeout: opts.PersistTimeout,
		slotKey:        opts.SlotKey,
		newID:          opts.IDGenerator,
		queueWarnSize:  opts.QueueWarnSize,
		syncOnEnqueue:  opts.SyncOnEnqueue,
		pruneTasks:     make(map[*pruneTask]struct{}),
		baseCtx:        baseCtx,
		cancel:         cancel,
	}
}

// Start загружает очередь из слота и подписывается на изменения связи.
// Если сеть уже есть и в очереди остались pending-заказы, запускается проход.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.loadLocked(ctx)
	m.online = m.conn.IsOnline()
	online := m.online
	m.scheduleLoadedSyncedLocked()
	m.refreshGaugesLocked()
	m.mu.Unlock()

	m.metrics.RecordConnectivity(online)
	unsubscribe := m.conn.Subscribe(m.OnConnectivityChange)

	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	// Переход мог случиться между IsOnline и Subscribe.
	if current := m.conn.IsOnline(); current != online {
		m.OnConnectivityChange(current)
		return
	}

	m.logger.WithFields(log.Fields{
		"online": online,
		"orders": len(m.Snapshot()),
	}).Info("offline manager started")

	if online && m.hasPending() {
		m.launchPass(TriggerStartup)
	}
}

// Close отменяет отложенные удаления, отписывается от сети и ждёт активный проход.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for entry := range m.pruneTasks {
		entry.task.Stop()
	}
	m.pruneTasks = make(map[*pruneTask]struct{})
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	m.cancel()
	m.wg.Wait()
	m.logger.Info("offline manager stopped")
}

// Enqueue сохраняет новый заказ как pending и перезаписывает слот.
// Ошибка возвращается только для некорректного черновика; сбой записи
// слота логируется, заказ при этом остаётся в памяти.
func (m *Manager) Enqueue(draft domain.OrderDraft) (domain.OfflineOrder, error) {
	if errs := draft.ValidateInvariants(); len(errs) > 0 {
		return domain.OfflineOrder{}, fmt.Errorf("invalid order draft: %w", errors.Join(errs...))
	}

	m.mu.Lock()
	order := domain.NewOfflineOrder(m.newID(), draft, m.sched.Now())
	m.queue = append(m.queue, order)
	size := len(m.queue)
	m.persistLocked()
	m.refreshGaugesLocked()
	online := m.online
	trigger := m.syncOnEnqueue && online && m.started && !m.closed
	if trigger && m.inFlight.Load() {
		// Текущий проход уже зафиксировал свой список; догоним следующим.
		m.followUp = true
		trigger = false
	}
	m.mu.Unlock()

	m.metrics.RecordEnqueued()
	m.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"supplier_id": order.SupplierID,
		"items":       len(order.Items),
		"online":      online,
	}).Info("offline order enqueued")

	if m.queueWarnSize > 0 && size >= m.queueWarnSize {
		m.logger.WithField("queue_size", size).Warn("offline queue is larger than expected")
	}

	if trigger {
		m.launchPass(TriggerEnqueue)
	}

	return order.Clone(), nil
}

// OnConnectivityChange — обработчик сигнала сети. На переходе offline→online
// запускает синхронизацию.
func (m *Manager) OnConnectivityChange(online bool) {
	m.mu.Lock()
	prev := m.online
	m.online = online
	m.mu.Unlock()

	if prev == online {
		return
	}

	m.metrics.RecordConnectivity(online)
	m.logger.WithField("online", online).Info("connectivity changed")

	if online {
		m.onConnectivityRestored()
	}
}

func (m *Manager) onConnectivityRestored() {
	if m.inFlight.Load() {
		m.metrics.RecordPassSkipped()
		m.logger.Debug("sync already in flight, connectivity trigger ignored")
		return
	}
	if !m.hasPending() {
		return
	}
	m.launchPass(TriggerConnectivity)
}

// SyncAll синхронно выполняет проход по pending-заказам в порядке очереди.
func (m *Manager) SyncAll(ctx context.Context) (SyncReport, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return SyncReport{}, ErrManagerClosed
	}
	if !m.online {
		m.mu.Unlock()
		return SyncReport{}, domain.ErrOffline
	}
	if !m.inFlight.CompareAndSwap(false, true) {
		m.mu.Unlock()
		m.metrics.RecordPassSkipped()
		return SyncReport{}, domain.ErrSyncInProgress
	}
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	return m.runPass(ctx, TriggerManual), nil
}

// launchPass асинхронно запускает проход, если другой не выполняется.
func (m *Manager) launchPass(trigger string) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	if !m.inFlight.CompareAndSwap(false, true) {
		m.mu.Unlock()
		m.metrics.RecordPassSkipped()
		return false
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		m.runPass(m.baseCtx, trigger)
	}()
	return true
}

// runPass выполняется только при установленном inFlight и сбрасывает его.
func (m *Manager) runPass(ctx context.Context, trigger string) SyncReport {
	started := time.Now()
	report := SyncReport{Trigger: trigger}
	m.metrics.RecordPassStarted()

	m.mu.Lock()
	m.followUp = false
	ids := m.pendingIDsLocked()
	m.mu.Unlock()

	logger := m.logger.WithField("trigger", trigger)
	logger.WithField("pending", len(ids)).Info("sync pass started")

	for i, id := range ids {
		if ctx.Err() != nil {
			report.Skipped = len(ids) - i
			break
		}

		m.mu.Lock()
		idx := m.indexLocked(id)
		if idx < 0 || m.queue[idx].Status != domain.OrderStatusPending {
			m.mu.Unlock()
			continue
		}
		snapshot := m.queue[idx].Clone()
		m.mu.Unlock()

		submitStarted := time.Now()
		err := m.submit(ctx, snapshot)
		submitDuration := time.Since(submitStarted)

		if err != nil && ctx.Err() != nil {
			// Проход прерван снаружи: заказ остаётся pending до следующего прохода.
			report.Skipped = len(ids) - i
			break
		}

		m.mu.Lock()
		idx = m.indexLocked(id)
		if idx < 0 {
			m.mu.Unlock()
			continue
		}
		now := m.sched.Now()
		if err == nil {
			if markErr := m.queue[idx].MarkSynced(now); markErr == nil {
				report.Synced = append(report.Synced, id)
			}
		} else {
			if markErr := m.queue[idx].MarkFailed(now, err); markErr == nil {
				report.Failed = append(report.Failed, id)
			}
		}
		m.persistLocked()
		m.refreshGaugesLocked()
		m.mu.Unlock()

		if err != nil {
			m.metrics.RecordSubmit(metrics.ResultFailed, submitDuration)
			logger.WithError(err).WithField("order_id", id).Warn("offline order submission failed")
			continue
		}
		m.metrics.RecordSubmit(metrics.ResultSynced, submitDuration)
		logger.WithField("order_id", id).Debug("offline order synced")
	}

	if len(report.Synced) > 0 {
		m.schedulePrune(report.Synced)
	}

	report.Duration = time.Since(started)
	m.metrics.RecordPassFinished(report.Duration)

	m.mu.Lock()
	followUp := m.followUp && m.online && !m.closed
	m.followUp = false
	m.mu.Unlock()

	m.inFlight.Store(false)

	logger.WithFields(log.Fields{
		"synced":      len(report.Synced),
		"failed":      len(report.Failed),
		"skipped":     report.Skipped,
		"duration_ms": report.Duration.Milliseconds(),
	}).Info("sync pass finished")

	if followUp && m.hasPending() {
		m.launchPass(TriggerFollowUp)
	}

	return report
}

// submit отправляет заказ с таймаутом. Зависший приёмник не блокирует проход
// дольше submitTimeout.
func (m *Manager) submit(ctx context.Context, order domain.OfflineOrder) error {
	submitCtx, cancel := context.WithTimeout(ctx, m.submitTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- m.submitter.SubmitOrder(submitCtx, order)
	}()

	select {
	case err := <-result:
		return err
	case <-submitCtx.Done():
		return fmt.Errorf("submit order %s: %w", order.ID, submitCtx.Err())
	}
}

// Retry явно возвращает failed-заказ в pending и, если есть сеть, запускает проход.
func (m *Manager) Retry(id string) (domain.OfflineOrder, error) {
	m.mu.Lock()
	idx := m.indexLocked(id)
	if idx < 0 {
		m.mu.Unlock()
		return domain.OfflineOrder{}, domain.ErrOrderNotFound
	}
	if err := m.queue[idx].Requeue(m.sched.Now()); err != nil {
		m.mu.Unlock()
		return domain.OfflineOrder{}, err
	}
	order := m.queue[idx].Clone()
	m.persistLocked()
	m.refreshGaugesLocked()
	online := m.online
	m.mu.Unlock()

	m.metrics.RecordRetried(1)
	m.logger.WithField("order_id", id).Info("failed order requeued")

	if online {
		m.launchPass(TriggerRetry)
	}
	return order, nil
}

// RetryFailed возвращает в pending все failed-заказы. Возвращает их число.
func (m *Manager) RetryFailed() int {
	m.mu.Lock()
	now := m.sched.Now()
	count := 0
	for i := range m.queue {
		if m.queue[i].Requeue(now) == nil {
			count++
		}
	}
	if count > 0 {
		m.persistLocked()
		m.refreshGaugesLocked()
	}
	online := m.online
	m.mu.Unlock()

	if count == 0 {
		return 0
	}

	m.metrics.RecordRetried(count)
	m.logger.WithField("count", count).Info("failed orders requeued")

	if online {
		m.launchPass(TriggerRetry)
	}
	return count
}

// PurgeFailed удаляет failed-заказы, последний раз обновлённые раньше before.
func (m *Manager) PurgeFailed(before time.Time) int {
	cutoff := before.UnixMilli()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := m.removeLocked(func(o domain.OfflineOrder) bool {
		return o.Status == domain.OrderStatusFailed && o.UpdatedAt < cutoff
	})
	if removed > 0 {
		m.persistLocked()
		m.refreshGaugesLocked()
		m.metrics.RecordPruned(removed)
		m.logger.WithField("count", removed).Info("stale failed orders purged")
	}
	return removed
}

// Snapshot возвращает копию очереди в порядке добавления.
func (m *Manager) Snapshot() []domain.OfflineOrder {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]domain.OfflineOrder, len(m.queue))
	for i, order := range m.queue {
		result[i] = order.Clone()
	}
	return result
}

// Status возвращает состояние сети и счётчики очереди.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{
		Online:       m.online,
		SyncInFlight: m.inFlight.Load(),
		QueueStats:   m.statsLocked(),
	}
}

func (m *Manager) schedulePrune(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedulePruneLocked(ids)
}

func (m *Manager) schedulePruneLocked(ids []string) {
	if m.closed {
		return
	}

	entry := &pruneTask{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		entry.ids[id] = struct{}{}
	}

	if m.gracePeriod == 0 {
		m.pruneLocked(entry)
		return
	}

	m.pruneTasks[entry] = struct{}{}
	entry.task = m.sched.AfterFunc(m.gracePeriod, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.pruneTasks[entry]; !ok {
			return
		}
		delete(m.pruneTasks, entry)
		m.pruneLocked(entry)
	})
}

// pruneLocked удаляет synced-заказы из entry. failed-заказы не трогает.
func (m *Manager) pruneLocked(entry *pruneTask) {
	removed := m.removeLocked(func(o domain.OfflineOrder) bool {
		_, ok := entry.ids[o.ID]
		return ok && o.Status == domain.OrderStatusSynced
	})
	if removed == 0 {
		return
	}
	m.persistLocked()
	m.refreshGaugesLocked()
	m.metrics.RecordPruned(removed)
	m.logger.WithField("count", removed).Debug("synced orders pruned")
}

// scheduleLoadedSyncedLocked планирует удаление synced-заказов, подтверждённых
// до перезапуска процесса.
func (m *Manager) scheduleLoadedSyncedLocked() {
	var ids []string
	for _, order := range m.queue {
		if order.Status == domain.OrderStatusSynced {
			ids = append(ids, order.ID)
		}
	}
	if len(ids) > 0 {
		m.schedulePruneLocked(ids)
	}
}

// loadLocked читает слот очереди. Отсутствующий или повреждённый слот
// даёт пустую очередь: старт не должен падать из-за локального хранилища.
func (m *Manager) loadLocked(ctx context.Context) {
	readCtx, cancel := context.WithTimeout(ctx, m.persistTimeout)
	defer cancel()

	data, err := m.store.ReadSlot(readCtx, m.slotKey)
	if errors.Is(err, domain.ErrSlotNotFound) {
		m.queue = nil
		return
	}
	if err != nil {
		m.logger.WithError(err).WithField("slot", m.slotKey).Warn("failed to read queue slot, starting with empty queue")
		m.queue = nil
		return
	}

	orders, err := domain.DecodeQueue(data)
	if err != nil {
		m.logger.WithError(err).WithField("slot", m.slotKey).Warn("queue slot is corrupt, starting with empty queue")
		m.queue = nil
		// Сохраняем исходные байты рядом, первая же запись перезапишет слот.
		backupKey := m.slotKey + ".corrupt"
		if backupErr := m.store.WriteSlot(readCtx, backupKey, data); backupErr != nil {
			m.logger.WithError(backupErr).WithField("slot", backupKey).Warn("failed to back up corrupt queue slot")
		}
		return
	}

	m.queue = orders
}

// persistLocked перезаписывает слот текущей очередью целиком.
// Ошибка записи не прерывает работу: очередь в памяти остаётся источником истины.
func (m *Manager) persistLocked() {
	data, err := domain.EncodeQueue(m.queue)
	if err != nil {
		m.metrics.RecordPersistFailure()
		m.logger.WithError(err).Error("failed to encode offline queue")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.persistTimeout)
	defer cancel()

	if err := m.store.WriteSlot(ctx, m.slotKey, data); err != nil {
		m.metrics.RecordPersistFailure()
		m.logger.WithError(err).WithField("slot", m.slotKey).Warn("failed to persist offline queue")
	}
}

func (m *Manager) removeLocked(match func(domain.OfflineOrder) bool) int {
	kept := m.queue[:0]
	removed := 0
	for _, order := range m.queue {
		if match(order) {
			removed++
			continue
		}
		kept = append(kept, order)
	}
	for i := len(kept); i < len(m.queue); i++ {
		m.queue[i] = domain.OfflineOrder{}
	}
	m.queue = kept
	return removed
}

func (m *Manager) hasPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pendingIDsLocked()) > 0
}

func (m *Manager) pendingIDsLocked() []string {
	ids := make([]string, 0, len(m.queue))
	for _, order := range m.queue {
		if order.Status == domain.OrderStatusPending {
			ids = append(ids, order.ID)
		}
	}
	return ids
}

func (m *Manager) indexLocked(id string) int {
	for i := range m.queue {
		if m.queue[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) statsLocked() domain.QueueStats {
	var stats domain.QueueStats
	for _, order := range m.queue {
		switch order.Status {
		case domain.OrderStatusPending:
			stats.Pending++
			created := order.CreatedAt()
			if stats.OldestPendingAt.IsZero() || created.Before(stats.OldestPendingAt) {
				stats.OldestPendingAt = created
			}
		case domain.OrderStatusSynced:
			stats.Synced++
		case domain.OrderStatusFailed:
			stats.Failed++
		}
	}
	return stats
}

func (m *Manager) refreshGaugesLocked() {
	stats := m.statsLocked()
	m.metrics.SetQueueSizes(stats.Pending, stats.Synced, stats.Failed)
}
