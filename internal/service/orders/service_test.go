package orders_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersvc/internal/catalog"
	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/orders"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/memory"
)

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "test")
}

// countingRepo считает записи в хранилище.
type countingRepo struct {
	domain.OrderRepository

	mu            sync.Mutex
	inserts       int
	statusUpdates int
	insertErr     error
}

func (r *countingRepo) InsertAggregate(ctx context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	r.inserts++
	err := r.insertErr
	r.mu.Unlock()
	if err != nil {
		return domain.Order{}, err
	}
	return r.OrderRepository.InsertAggregate(ctx, order)
}

func (r *countingRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	r.mu.Lock()
	r.statusUpdates++
	r.mu.Unlock()
	return r.OrderRepository.UpdateStatus(ctx, id, status)
}

type fixture struct {
	svc     *orders.Service
	repo    *countingRepo
	catalog *catalog.Static
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	repo := &countingRepo{OrderRepository: memory.NewOrderRepository()}
	static := catalog.NewStatic(
		domain.Product{ID: "p1", Name: "A", Price: decimal.NewFromInt(10)},
		domain.Product{ID: "p2", Name: "B", Price: decimal.NewFromInt(5)},
		domain.Product{ID: "p3", Name: "C", Price: decimal.RequireFromString("0.99")},
	)
	m := metrics.NewOrderMetricsWithRegisterer(prometheus.NewRegistry())
	return fixture{
		svc:     orders.NewService(repo, static, m, loggerForTests()),
		repo:    repo,
		catalog: static,
	}
}

func TestCreate_ComputesTotalsFromCatalogPrices(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create(context.Background(), []orders.LineRequest{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	})
	require.NoError(t, err)

	require.NotEmpty(t, order.ID)
	require.True(t, decimal.NewFromInt(25).Equal(order.TotalAmount), "total amount %s", order.TotalAmount)
	require.Equal(t, int32(3), order.TotalItems)
	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.False(t, order.Paid)
	require.Len(t, order.Lines, 2)
	require.Equal(t, "A", order.Lines[0].Name)
	require.Equal(t, "B", order.Lines[1].Name)
	require.True(t, decimal.NewFromInt(10).Equal(order.Lines[0].Price))
	require.Equal(t, order.ID, order.Lines[0].OrderID)
	require.Equal(t, 1, f.catalog.Calls(), "names must come from the same catalog reply")
}

func TestCreate_TotalsMatchLineFormulas(t *testing.T) {
	f := newFixture(t)

	requests := [][]orders.LineRequest{
		{{ProductID: "p3", Quantity: 7}},
		{{ProductID: "p1", Quantity: 1}, {ProductID: "p3", Quantity: 3}, {ProductID: "p2", Quantity: 4}},
		{{ProductID: "p2", Quantity: 100}},
	}
	for i, items := range requests {
		t.Run(fmt.Sprintf("case-%d", i), func(t *testing.T) {
			order, err := f.svc.Create(context.Background(), items)
			require.NoError(t, err)

			amount, count := domain.Totals(order.Lines)
			require.True(t, amount.Equal(order.TotalAmount))
			require.EqualValues(t, count, order.TotalItems)
			require.Empty(t, order.ValidateInvariants())
		})
	}
}

func TestCreate_DuplicateProductsStaySeparateLines(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create(context.Background(), []orders.LineRequest{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p1", Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, order.Lines, 2)
	require.Equal(t, int32(3), order.TotalItems)
	require.True(t, decimal.NewFromInt(30).Equal(order.TotalAmount))
}

func TestCreate_UnknownProductPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, []orders.LineRequest{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "missing", Quantity: 1},
	})
	require.Error(t, err)

	var createErr *domain.CreateOrderError
	require.ErrorAs(t, err, &createErr)
	require.Equal(t, domain.CreateFailureUnknownProduct, createErr.Kind)
	require.Equal(t, "missing", createErr.ProductID)
	require.ErrorIs(t, err, domain.ErrUnknownProduct)

	require.Zero(t, f.repo.inserts)
	total, err := f.repo.Count(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestCreate_CatalogFailureIsRemoteUnavailable(t *testing.T) {
	f := newFixture(t)
	f.catalog.FailNext(fmt.Errorf("%w: broker down", domain.ErrCatalogUnavailable))

	_, err := f.svc.Create(context.Background(), []orders.LineRequest{{ProductID: "p1", Quantity: 1}})

	var createErr *domain.CreateOrderError
	require.ErrorAs(t, err, &createErr)
	require.Equal(t, domain.CreateFailureRemoteUnavailable, createErr.Kind)
	require.ErrorIs(t, err, domain.ErrCatalogUnavailable)
	require.Zero(t, f.repo.inserts)
}

func TestCreate_CatalogTimeoutDoesNotBlock(t *testing.T) {
	repo := memory.NewOrderRepository()
	client := catalog.NewKafkaClient(blockingRequester{}, "", 20*time.Millisecond, loggerForTests())
	svc := orders.NewService(repo, client, nil, loggerForTests())

	done := make(chan error, 1)
	go func() {
		_, err := svc.Create(context.Background(), []orders.LineRequest{{ProductID: "p1", Quantity: 1}})
		done <- err
	}()

	select {
	case err := <-done:
		var createErr *domain.CreateOrderError
		require.ErrorAs(t, err, &createErr)
		require.Equal(t, domain.CreateFailureRemoteUnavailable, createErr.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("create must give up once the catalog timeout expires")
	}
}

func TestCreate_PersistFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.insertErr = errors.New("connection reset")

	_, err := f.svc.Create(context.Background(), []orders.LineRequest{{ProductID: "p1", Quantity: 1}})

	var createErr *domain.CreateOrderError
	require.ErrorAs(t, err, &createErr)
	require.Equal(t, domain.CreateFailurePersist, createErr.Kind)
}

func TestCreate_EmptyItems(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), nil)

	var createErr *domain.CreateOrderError
	require.ErrorAs(t, err, &createErr)
	require.Equal(t, domain.CreateFailureInvalidInput, createErr.Kind)
	require.Zero(t, f.catalog.Calls())
}

func TestCreate_TotalItemsOverflowPersistsNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), []orders.LineRequest{
		{ProductID: "p1", Quantity: math.MaxInt32},
		{ProductID: "p2", Quantity: 2},
	})

	var createErr *domain.CreateOrderError
	require.ErrorAs(t, err, &createErr)
	require.Equal(t, domain.CreateFailureInvalidInput, createErr.Kind)
	require.ErrorIs(t, err, domain.ErrItemsCountOverflow)
	require.Zero(t, f.repo.inserts)
}

func TestCreate_PriceSnapshotUsesStorageScale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.catalog.Put(domain.Product{ID: "p4", Name: "D", Price: decimal.RequireFromString("0.333")})

	created, err := f.svc.Create(ctx, []orders.LineRequest{{ProductID: "p4", Quantity: 3}})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("0.33").Equal(created.Lines[0].Price), "line price %s", created.Lines[0].Price)
	require.True(t, decimal.RequireFromString("0.99").Equal(created.TotalAmount), "total %s", created.TotalAmount)

	got, err := f.svc.FindOne(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, created.TotalAmount.Equal(got.TotalAmount))
	require.True(t, created.Lines[0].Price.Equal(got.Lines[0].Price))
	require.Empty(t, got.ValidateInvariants())
}

func TestFindOne_KeepsPriceSnapshotAndRefreshesNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, []orders.LineRequest{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)

	require.True(t, f.catalog.SetPrice("p1", decimal.NewFromInt(99)))
	f.catalog.Put(domain.Product{ID: "p1", Name: "A v2", Price: decimal.NewFromInt(99)})

	got, err := f.svc.FindOne(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	require.True(t, decimal.NewFromInt(10).Equal(got.Lines[0].Price), "price must stay the creation snapshot")
	require.True(t, decimal.NewFromInt(20).Equal(got.TotalAmount))
	require.Equal(t, "A v2", got.Lines[0].Name)
}

func TestFindOne_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.FindOne(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
	require.Contains(t, err.Error(), "nope")
	require.Zero(t, f.catalog.Calls())
}

func TestFindOne_DiscontinuedProductFailsRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, []orders.LineRequest{{ProductID: "p2", Quantity: 1}})
	require.NoError(t, err)
	f.catalog.Remove("p2")

	_, err = f.svc.FindOne(ctx, created.ID)
	require.ErrorIs(t, err, domain.ErrUnknownProduct)
}

func TestFindOne_CatalogFailurePropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, []orders.LineRequest{{ProductID: "p2", Quantity: 1}})
	require.NoError(t, err)
	f.catalog.FailNext(fmt.Errorf("%w: timeout", domain.ErrCatalogUnavailable))

	_, err = f.svc.FindOne(ctx, created.ID)
	require.True(t, domain.IsCatalogFailure(err))
}

func TestChangeStatus_IdempotentForSameStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, []orders.LineRequest{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)

	before, err := f.svc.FindOne(ctx, created.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := f.svc.ChangeStatus(ctx, created.ID, domain.OrderStatusPending)
		require.NoError(t, err)
		require.Equal(t, before, got)
	}
	require.Zero(t, f.repo.statusUpdates)
}

func TestChangeStatus_AppliesAnyTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, []orders.LineRequest{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)

	delivered, err := f.svc.ChangeStatus(ctx, created.ID, domain.OrderStatusDelivered)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusDelivered, delivered.Status)
	require.Equal(t, "A", delivered.Lines[0].Name)

	// Набор статусов плоский: возврат в PENDING разрешён.
	pending, err := f.svc.ChangeStatus(ctx, created.ID, domain.OrderStatusPending)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, pending.Status)
	require.Equal(t, 2, f.repo.statusUpdates)

	stored, err := f.repo.FetchWithLines(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, stored.Status)
}

func TestChangeStatus_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ChangeStatus(ctx, "nope", domain.OrderStatusCancelled)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = f.svc.ChangeStatus(ctx, "nope", domain.OrderStatus("SHIPPED"))
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestFindAll_Pagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := f.svc.Create(ctx, []orders.LineRequest{{ProductID: "p1", Quantity: 1}})
		require.NoError(t, err)
	}
	callsBefore := f.catalog.Calls()

	seen := map[string]bool{}
	for page, want := range map[int]int{1: 10, 2: 10, 3: 5} {
		result, err := f.svc.FindAll(ctx, domain.PageRequest{Page: page, Limit: 10})
		require.NoError(t, err)
		require.Len(t, result.Data, want, "page %d", page)
		require.Equal(t, 25, result.Meta.Total)
		require.Equal(t, page, result.Meta.Page)
		require.Equal(t, 3, result.Meta.LastPage)
		for _, order := range result.Data {
			require.Nil(t, order.Lines)
			require.False(t, seen[order.ID], "order %s returned twice", order.ID)
			seen[order.ID] = true
		}
	}
	require.Len(t, seen, 25)
	require.Equal(t, callsBefore, f.catalog.Calls(), "list view must not call the catalog")
}

func TestFindAll_EmptyFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, []orders.LineRequest{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)

	result, err := f.svc.FindAll(ctx, domain.PageRequest{Page: 1, Limit: 10, Status: domain.OrderStatusDelivered})
	require.NoError(t, err)
	require.Empty(t, result.Data)
	require.NotNil(t, result.Data)
	require.Zero(t, result.Meta.Total)
	require.Zero(t, result.Meta.LastPage)
}

func TestFindAll_InvalidRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.FindAll(context.Background(), domain.PageRequest{Page: -1, Limit: 10})
	require.ErrorIs(t, err, domain.ErrInvalidPagination)

	_, err = f.svc.FindAll(context.Background(), domain.PageRequest{Status: "LOST"})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestCreate_ConcurrentRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, []orders.LineRequest{{ProductID: "p2", Quantity: 2}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	total, err := f.repo.Count(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	require.Equal(t, 20, total)
}

type blockingRequester struct{}

func (blockingRequester) Request(ctx context.Context, _, _ string, _ []byte) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingRequester) Ready() bool { return true }
