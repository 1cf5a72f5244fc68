// Package httpapi публикует команды сервиса заказов поверх HTTP/JSON.
// Обработчики вызывают gRPC-реализацию напрямую, поэтому проверки запросов и
// перевод ошибок у обоих транспортов общие.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ordersv1 "github.com/vladislavdragonenkov/ordersvc/api/orders/v1"
)

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Handler обслуживает HTTP-запросы к заказам.
type Handler struct {
	orders ordersv1.OrdersServiceServer
	logger *log.Entry
}

// NewHandler создаёт обработчик поверх реализации сервиса заказов.
func NewHandler(orders ordersv1.OrdersServiceServer, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{orders: orders, logger: logger}
}

// Routes монтирует маршруты заказов в переданный роутер.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/v1/orders", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/", h.CreateOrder)
		r.Get("/", h.FindAllOrders)
		r.Get("/{id}", h.FindOneOrder)
		r.Patch("/{id}", h.ChangeOrderStatus)
	})
}

// CreateOrder — POST /v1/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req ordersv1.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), &req)
	if err != nil {
		h.writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// FindAllOrders — GET /v1/orders?page=&limit=&status=.
func (h *Handler) FindAllOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := queryInt32(query.Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "page must be a number")
		return
	}
	limit, err := queryInt32(query.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a number")
		return
	}

	result, err := h.orders.FindAllOrders(r.Context(), &ordersv1.FindAllOrdersRequest{
		Page:   page,
		Limit:  limit,
		Status: query.Get("status"),
	})
	if err != nil {
		h.writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// FindOneOrder — GET /v1/orders/{id}.
func (h *Handler) FindOneOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.FindOneOrder(r.Context(), &ordersv1.FindOneOrderRequest{ID: chi.URLParam(r, "id")})
	if err != nil {
		h.writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// ChangeOrderStatus — PATCH /v1/orders/{id} с телом {"status": "..."}.
func (h *Handler) ChangeOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	order, err := h.orders.ChangeOrderStatus(r.Context(), &ordersv1.ChangeOrderStatusRequest{
		ID:     chi.URLParam(r, "id"),
		Status: body.Status,
	})
	if err != nil {
		h.writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) writeStatusError(w http.ResponseWriter, err error) {
	st, ok := status.FromError(err)
	if !ok {
		h.logger.WithError(err).Error("unexpected non-status error")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeError(w, HTTPStatusFromCode(st.Code()), st.Message())
}

// HTTPStatusFromCode переводит gRPC-код в HTTP-статус.
func HTTPStatusFromCode(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func queryInt32(raw string) (int32, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Status: code, Message: msg})
}
