package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/port"
)

// NotificationService queues notifications for the worker pool. Services
// never block on delivery: a full queue drops the notification with a
// warning, as does a closed one.
type NotificationService struct {
	store  port.Store
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex // guards sends against Close
	queue  chan domain.Notification
	closed bool
}

func NewNotificationService(store port.Store, queueSize int, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		store:  store,
		queue:  make(chan domain.Notification, queueSize),
		logger: logger,
		now:    time.Now,
	}
}

// Notify enqueues a message for one recipient.
func (s *NotificationService) Notify(ctx context.Context, recipientID, locationID string, kind domain.NotificationKind, msg string) {
	if recipientID == "" {
		return
	}
	n := domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		LocationID:  locationID,
		Kind:        kind,
		Message:     msg,
		CreatedAt:   s.now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("notification_dropped", slog.String("kind", string(kind)), slog.String("reason", "queue closed"))
		return
	}
	select {
	case s.queue <- n:
	case <-ctx.Done():
		s.logger.Warn("notification_dropped", slog.String("kind", string(kind)), slog.Any("err", ctx.Err()))
	default:
		s.logger.Warn("notification_queue_full", slog.String("kind", string(kind)), slog.String("recipient_id", recipientID))
	}
}

// NotifyLocation notifies the active managers at a location and the
// location's cluster head.
func (s *NotificationService) NotifyLocation(ctx context.Context, locationID string, kind domain.NotificationKind, msg string) {
	managers, err := s.store.ListEmployees(ctx, port.EmployeeFilter{LocationID: locationID, Role: domain.RoleManager, ActiveOnly: true})
	if err != nil {
		s.logger.Warn("notification_recipients_failed", slog.String("location_id", locationID), slog.Any("err", err))
		return
	}
	seen := map[string]bool{}
	for _, m := range managers {
		seen[m.ID] = true
		s.Notify(ctx, m.ID, locationID, kind, msg)
	}
	loc, err := s.store.GetLocation(ctx, locationID)
	if err != nil || loc == nil {
		return
	}
	if loc.ClusterHeadID != "" && !seen[loc.ClusterHeadID] {
		s.Notify(ctx, loc.ClusterHeadID, locationID, kind, msg)
	}
}

func (s *NotificationService) Queue() <-chan domain.Notification {
	return s.queue
}

// Close stops accepting notifications and closes the queue. It is safe to
// call more than once.
func (s *NotificationService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
}

// Deliver persists a queued notification. Called by the workers.
func (s *NotificationService) Deliver(ctx context.Context, n domain.Notification) error {
	return s.store.CreateNotification(ctx, n)
}

func (s *NotificationService) List(ctx context.Context, p domain.Principal, unreadOnly bool) ([]domain.Notification, error) {
	if p.Anonymous {
		return nil, ErrForbidden
	}
	out, err := s.store.ListNotifications(ctx, port.NotificationFilter{RecipientID: p.EmployeeID, UnreadOnly: unreadOnly})
	if err != nil {
		return nil, storeErr(err, "notification")
	}
	return out, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, p domain.Principal, id string) error {
	if p.Anonymous {
		return ErrForbidden
	}
	return storeErr(s.store.MarkNotificationRead(ctx, id, p.EmployeeID), "notification")
}
