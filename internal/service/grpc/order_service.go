package grpcsvc

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ordersv1 "github.com/vladislavdragonenkov/ordersvc/api/orders/v1"
	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/orders"
)

// CreateFailedMessage — единственное сообщение, которое клиент видит при неудачном создании заказа.
const CreateFailedMessage = "Check logs"

// Orders — сценарии заказов, которые публикует gRPC-слой.
type Orders interface {
	Create(ctx context.Context, items []orders.LineRequest) (domain.Order, error)
	FindOne(ctx context.Context, id string) (domain.Order, error)
	ChangeStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error)
	FindAll(ctx context.Context, req domain.PageRequest) (domain.OrderPage, error)
}

// OrderService реализует gRPC API поверх сервиса заказов.
type OrderService struct {
	ordersv1.UnimplementedOrdersServiceServer

	orders Orders
	logger *log.Entry
}

// NewOrderService конструирует сервис с зависимостями.
func NewOrderService(svc Orders, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &OrderService{orders: svc, logger: logger}
}

// CreateOrder проверяет форму запроса и создаёт заказ.
func (s *OrderService) CreateOrder(ctx context.Context, req *ordersv1.CreateOrderRequest) (*ordersv1.Order, error) {
	items, err := lineRequests(req)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.Create(ctx, items)
	if err != nil {
		// Подробности уже залогированы сервисом.
		return nil, status.Error(codes.InvalidArgument, CreateFailedMessage)
	}
	return toAPIOrder(order), nil
}

// FindAllOrders возвращает страницу заказов без позиций.
func (s *OrderService) FindAllOrders(ctx context.Context, req *ordersv1.FindAllOrdersRequest) (*ordersv1.OrderPage, error) {
	if req == nil {
		req = &ordersv1.FindAllOrdersRequest{}
	}

	pageReq := domain.PageRequest{Page: int(req.Page), Limit: int(req.Limit)}
	if strings.TrimSpace(req.Status) != "" {
		st, err := domain.ParseOrderStatus(req.Status)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		pageReq.Status = st
	}

	page, err := s.orders.FindAll(ctx, pageReq)
	if err != nil {
		return nil, s.toStatus(err, "find all orders")
	}

	resp := &ordersv1.OrderPage{
		Data: make([]ordersv1.Order, 0, len(page.Data)),
		Meta: ordersv1.PageMeta{
			Total:    int32(page.Meta.Total),    //nolint:gosec // количество заказов на странице ограничено limit.
			Page:     int32(page.Meta.Page),     //nolint:gosec // page приходит из int32.
			LastPage: int32(page.Meta.LastPage), //nolint:gosec // lastPage <= total.
		},
	}
	for _, order := range page.Data {
		resp.Data = append(resp.Data, *toAPIOrder(order))
	}
	return resp, nil
}

// FindOneOrder возвращает заказ с позициями и именами товаров.
func (s *OrderService) FindOneOrder(ctx context.Context, req *ordersv1.FindOneOrderRequest) (*ordersv1.Order, error) {
	if req == nil || strings.TrimSpace(req.ID) == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	order, err := s.orders.FindOne(ctx, req.ID)
	if err != nil {
		return nil, s.toStatus(err, req.ID)
	}
	return toAPIOrder(order), nil
}

// ChangeOrderStatus меняет статус заказа.
func (s *OrderService) ChangeOrderStatus(ctx context.Context, req *ordersv1.ChangeOrderStatusRequest) (*ordersv1.Order, error) {
	if req == nil || strings.TrimSpace(req.ID) == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	st, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	order, err := s.orders.ChangeStatus(ctx, req.ID, st)
	if err != nil {
		return nil, s.toStatus(err, req.ID)
	}
	return toAPIOrder(order), nil
}

// toStatus переводит доменную ошибку в gRPC-статус. subject содержит идентификатор заказа или имя операции.
func (s *OrderService) toStatus(err error, subject string) error {
	switch {
	case domain.IsNotFound(err):
		return status.Errorf(codes.NotFound, "Order with id %s not found", subject)
	case errors.Is(err, domain.ErrInvalidStatus), errors.Is(err, domain.ErrInvalidPagination):
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.IsCatalogFailure(err):
		s.logger.WithError(err).WithField("subject", subject).Warn("product catalog failure")
		return status.Error(codes.Unavailable, "product catalog is unavailable")
	case errors.Is(err, domain.ErrUnknownProduct):
		s.logger.WithError(err).WithField("subject", subject).Warn("order references unknown product")
		return status.Error(codes.FailedPrecondition, "order references a product that is no longer available")
	default:
		s.logger.WithError(err).WithField("subject", subject).Error("order request failed")
		return status.Error(codes.Internal, "internal error")
	}
}

func lineRequests(req *ordersv1.CreateOrderRequest) ([]orders.LineRequest, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, status.Error(codes.InvalidArgument, "items must contain at least one item")
	}

	items := make([]orders.LineRequest, 0, len(req.Items))
	for idx, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return nil, status.Errorf(codes.InvalidArgument, "items[%d].productId is required", idx)
		}
		if item.Quantity <= 0 {
			return nil, status.Errorf(codes.InvalidArgument, "items[%d].quantity must be > 0", idx)
		}
		items = append(items, orders.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return items, nil
}

func toAPIOrder(order domain.Order) *ordersv1.Order {
	out := &ordersv1.Order{
		ID:          order.ID,
		TotalAmount: order.TotalAmount,
		TotalItems:  order.TotalItems,
		Status:      string(order.Status),
		Paid:        order.Paid,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	if len(order.Lines) > 0 {
		out.Lines = make([]ordersv1.OrderLine, 0, len(order.Lines))
		for _, line := range order.Lines {
			out.Lines = append(out.Lines, ordersv1.OrderLine{
				ID:        line.ID,
				OrderID:   line.OrderID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     line.Price,
				Name:      line.Name,
			})
		}
	}
	return out
}

var _ ordersv1.OrdersServiceServer = (*OrderService)(nil)
