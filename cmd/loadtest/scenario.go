package main

import (
	"context"
	"errors"
	"sync"
	"time"

	ordersv1 "github.com/vladislavdragonenkov/ordersvc/api/orders/v1"
)

// run хранит состояние одного сценария между шагами.
type run struct {
	index   int
	orderID string
}

// step выполняет один вызов сервиса в рамках сценария.
type step struct {
	name string
	do   func(ctx context.Context, client ordersv1.OrdersServiceClient, r *run) error
}

// errEmptyOrderID означает, что CreateOrder ответил без идентификатора заказа.
var errEmptyOrderID = errors.New("create returned an empty order id")

// planFor собирает шаги сценария для режима.
func planFor(cfg config) []step {
	plan := []step{createStep(cfg)}
	if cfg.mode == modeCreate {
		return plan
	}
	plan = append(plan, step{name: "FindOneOrder", do: func(ctx context.Context, client ordersv1.OrdersServiceClient, r *run) error {
		_, err := client.FindOneOrder(ctx, &ordersv1.FindOneOrderRequest{ID: r.orderID})
		return err
	}})
	if cfg.mode == modeCreateRead {
		return plan
	}
	return append(plan, step{name: "ChangeOrderStatus", do: func(ctx context.Context, client ordersv1.OrdersServiceClient, r *run) error {
		_, err := client.ChangeOrderStatus(ctx, &ordersv1.ChangeOrderStatusRequest{
			ID:     r.orderID,
			Status: targetStatus(r.index, cfg.cancelRate),
		})
		return err
	}})
}

func createStep(cfg config) step {
	items := make([]ordersv1.LineItem, 0, len(cfg.productIDs))
	for _, id := range cfg.productIDs {
		items = append(items, ordersv1.LineItem{ProductID: id, Quantity: int32(cfg.quantity)})
	}
	return step{name: "CreateOrder", do: func(ctx context.Context, client ordersv1.OrdersServiceClient, r *run) error {
		order, err := client.CreateOrder(ctx, &ordersv1.CreateOrderRequest{Items: items})
		if err != nil {
			return err
		}
		if order.ID == "" {
			return errEmptyOrderID
		}
		r.orderID = order.ID
		return nil
	}}
}

// targetStatus раскладывает сценарии по финальным статусам: первые cancelRate из каждой сотни отменяются.
func targetStatus(index, cancelRate int) string {
	if index%100 < cancelRate {
		return "CANCELLED"
	}
	return "DELIVERED"
}

// execute прогоняет один сценарий и пишет замеры каждого шага и сценария целиком.
func execute(client ordersv1.OrdersServiceClient, plan []step, timeout time.Duration, index int, rec *recorder) error {
	started := time.Now()
	r := &run{index: index}

	var failure error
	for _, s := range plan {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		callStarted := time.Now()
		err := s.do(ctx, client, r)
		cancel()

		rec.observe(s.name, time.Since(callStarted), err)
		if err != nil {
			failure = err
			break
		}
	}

	rec.observe(scenarioKey, time.Since(started), failure)
	return failure
}

// drive раздаёт номера сценариев воркерам до исчерпания total или истечения duration.
func drive(clients []ordersv1.OrdersServiceClient, cfg config) summary {
	started := time.Now()
	rec := newRecorder()
	plan := planFor(cfg)

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func(client ordersv1.OrdersServiceClient) {
			defer wg.Done()
			for i := range indexes {
				_ = execute(client, plan, cfg.timeout, i, rec)
			}
		}(clients[w%len(clients)])
	}

	feed(indexes, cfg)
	wg.Wait()
	return rec.summarize(started, time.Since(started))
}

func feed(indexes chan<- int, cfg config) {
	defer close(indexes)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for i := 0; cfg.limit() < 0 || i < cfg.limit(); i++ {
		select {
		case <-deadline:
			return
		case indexes <- i:
		}
	}
}
