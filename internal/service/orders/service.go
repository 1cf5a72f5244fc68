// Package orders реализует сценарии работы с заказами поверх хранилища и удалённого каталога.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
)

const tracerName = "github.com/vladislavdragonenkov/ordersvc/internal/service/orders"

// LineRequest — запрошенная позиция заказа.
type LineRequest struct {
	ProductID string
	Quantity  int32
}

// Service оркестрирует создание, чтение и смену статуса заказов.
type Service struct {
	repo    domain.OrderRepository
	catalog domain.ProductCatalog
	metrics *metrics.OrderMetrics
	logger  *log.Entry
	tracer  trace.Tracer

	now   func() time.Time
	newID func() string
}

// NewService конструирует сервис с зависимостями. metrics может быть nil.
func NewService(repo domain.OrderRepository, catalog domain.ProductCatalog, m *metrics.OrderMetrics, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders-service")
	}
	return &Service{
		repo:    repo,
		catalog: catalog,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// Create проверяет товары в каталоге, считает итоги и атомарно сохраняет заказ.
// Любая неудача возвращается как *domain.CreateOrderError.
func (s *Service) Create(ctx context.Context, items []LineRequest) (order domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "orders.Create", trace.WithAttributes(attribute.Int("order.items", len(items))))
	started := time.Now()
	defer func() {
		s.metrics.ObserveOperation("create", time.Since(started))
		s.metrics.RecordOrderCreated(err == nil)
		if err != nil {
			s.logCreateFailure(err)
		}
		endSpan(span, err)
	}()

	if len(items) == 0 {
		return domain.Order{}, &domain.CreateOrderError{Kind: domain.CreateFailureInvalidInput, Err: domain.ErrItemsRequired}
	}

	// Дубликаты не схлопываются: каталог допускает повторяющиеся идентификаторы.
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.catalog.Validate(ctx, ids)
	if err != nil {
		return domain.Order{}, &domain.CreateOrderError{Kind: domain.CreateFailureRemoteUnavailable, Err: err}
	}
	index := domain.ProductIndex(products)

	now := s.now()
	orderID := s.newID()
	lines := make([]domain.OrderLine, 0, len(items))
	for _, item := range items {
		product, ok := index[item.ProductID]
		if !ok {
			return domain.Order{}, &domain.CreateOrderError{
				Kind:      domain.CreateFailureUnknownProduct,
				ProductID: item.ProductID,
				Err:       &domain.UnknownProductError{ProductID: item.ProductID},
			}
		}
		lines = append(lines, domain.OrderLine{
			ID:        s.newID(),
			OrderID:   orderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     domain.SnapshotPrice(product.Price),
			CreatedAt: now,
		})
	}

	amount, totalItems := domain.Totals(lines)
	count, err := domain.ItemsCount(totalItems)
	if err != nil {
		return domain.Order{}, &domain.CreateOrderError{Kind: domain.CreateFailureInvalidInput, Err: err}
	}
	stored, err := s.repo.InsertAggregate(ctx, domain.Order{
		ID:          orderID,
		TotalAmount: amount,
		TotalItems:  count,
		Status:      domain.OrderStatusPending,
		Paid:        false,
		Lines:       lines,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return domain.Order{}, &domain.CreateOrderError{Kind: domain.CreateFailurePersist, Err: err}
	}

	// Имена берём из того же ответа каталога, повторного запроса нет.
	annotateNames(stored.Lines, index)

	s.logger.WithFields(log.Fields{
		"order_id":     stored.ID,
		"total_items":  stored.TotalItems,
		"total_amount": stored.TotalAmount.String(),
	}).Info("order created")

	return stored, nil
}

// FindOne возвращает заказ с позициями, дополненными актуальными именами товаров.
// Цены позиций не пересчитываются.
func (s *Service) FindOne(ctx context.Context, id string) (order domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "orders.FindOne", trace.WithAttributes(attribute.String("order.id", id)))
	started := time.Now()
	defer func() {
		s.metrics.ObserveOperation("find_one", time.Since(started))
		endSpan(span, err)
	}()

	return s.findOne(ctx, id)
}

func (s *Service) findOne(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.FetchWithLines(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrOrderNotFound)
		}
		return domain.Order{}, fmt.Errorf("fetch order %s: %w", id, err)
	}

	products, err := s.catalog.Validate(ctx, domain.DistinctProductIDs(order.Lines))
	if err != nil {
		s.logger.WithError(err).WithField("order_id", id).Warn("failed to enrich order from catalog")
		return domain.Order{}, fmt.Errorf("enrich order %s: %w", id, err)
	}

	index := domain.ProductIndex(products)
	for _, line := range order.Lines {
		if _, ok := index[line.ProductID]; !ok {
			s.logger.WithFields(log.Fields{
				"order_id":   id,
				"product_id": line.ProductID,
			}).Warn("order references product missing from catalog")
			return domain.Order{}, fmt.Errorf("enrich order %s: %w", id, &domain.UnknownProductError{ProductID: line.ProductID})
		}
	}
	annotateNames(order.Lines, index)

	return order, nil
}

// ChangeStatus меняет статус заказа. Переходы не ограничены; совпадающий статус не записывается.
func (s *Service) ChangeStatus(ctx context.Context, id string, status domain.OrderStatus) (order domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "orders.ChangeStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	))
	started := time.Now()
	defer func() {
		s.metrics.ObserveOperation("change_status", time.Since(started))
		endSpan(span, err)
	}()

	if !status.Valid() {
		return domain.Order{}, &domain.InvalidStatusError{Value: string(status)}
	}

	current, err := s.findOne(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if current.Status == status {
		return current, nil
	}

	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrOrderNotFound)
		}
		return domain.Order{}, fmt.Errorf("update order %s status: %w", id, err)
	}

	names := make(map[string]string, len(current.Lines))
	for _, line := range current.Lines {
		names[line.ID] = line.Name
	}
	for i := range updated.Lines {
		updated.Lines[i].Name = names[updated.Lines[i].ID]
	}

	s.metrics.RecordStatusChange(string(status))
	s.logger.WithFields(log.Fields{
		"order_id": id,
		"from":     current.Status,
		"to":       status,
	}).Info("order status changed")

	return updated, nil
}

// FindAll возвращает страницу заказов без позиций и без обращения к каталогу.
func (s *Service) FindAll(ctx context.Context, req domain.PageRequest) (page domain.OrderPage, err error) {
	ctx, span := s.tracer.Start(ctx, "orders.FindAll")
	started := time.Now()
	defer func() {
		s.metrics.ObserveOperation("find_all", time.Since(started))
		endSpan(span, err)
	}()

	req, err = req.Normalize()
	if err != nil {
		return domain.OrderPage{}, err
	}

	filter := domain.OrderFilter{Status: req.Status}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return domain.OrderPage{}, fmt.Errorf("count orders: %w", err)
	}

	data := []domain.Order{}
	if req.Skip() < total {
		data, err = s.repo.ListPage(ctx, req.Skip(), req.Limit, filter)
		if err != nil {
			return domain.OrderPage{}, fmt.Errorf("list orders: %w", err)
		}
	}

	return domain.OrderPage{
		Data: data,
		Meta: domain.PageMeta{
			Total:    total,
			Page:     req.Page,
			LastPage: domain.LastPage(total, req.Limit),
		},
	}, nil
}

func (s *Service) logCreateFailure(err error) {
	entry := s.logger.WithError(err)
	var createErr *domain.CreateOrderError
	if errors.As(err, &createErr) {
		entry = entry.WithField("kind", createErr.Kind)
		if createErr.ProductID != "" {
			entry = entry.WithField("product_id", createErr.ProductID)
		}
	}
	entry.Error("failed to create order")
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

func annotateNames(lines []domain.OrderLine, index map[string]domain.Product) {
	for i := range lines {
		lines[i].Name = index[lines[i].ProductID].Name
	}
}
