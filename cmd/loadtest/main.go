// Команда loadtest нагружает OrdersService по gRPC и печатает сводку задержек.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	ordersv1 "github.com/vladislavdragonenkov/ordersvc/api/orders/v1"
)

type loadMode string

const (
	modeCreate           loadMode = "create"
	modeCreateRead       loadMode = "create-read"
	modeCreateReadStatus loadMode = "create-read-status"
)

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	cancelRate  int
	productIDs  []string
	quantity    int
	output      string
}

// limit возвращает число сценариев или -1, если прогон ограничен только временем.
func (c config) limit() int {
	if c.duration > 0 && !c.totalSet {
		return -1
	}
	return c.total
}

func (c config) target() string {
	switch {
	case c.duration <= 0:
		return fmt.Sprintf("count:%d", c.total)
	case c.totalSet:
		return fmt.Sprintf("duration:%s,max:%d", c.duration, c.total)
	default:
		return fmt.Sprintf("duration:%s", c.duration)
	}
}

func parseConfig(args []string) (config, error) {
	cfg := config{}
	var mode, products string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC address of OrdersService")
	fs.IntVar(&cfg.total, "total", 400, "scenarios to run; with -duration acts as an upper bound")
	fs.DurationVar(&cfg.duration, "duration", 0, "run for this long instead of a fixed count")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "parallel workers")
	fs.IntVar(&cfg.connections, "connections", 20, "gRPC connections shared by workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-call timeout")
	fs.StringVar(&mode, "mode", string(modeCreate), "create | create-read | create-read-status")
	fs.IntVar(&cfg.cancelRate, "cancel-rate", 0, "percent of create-read-status scenarios that end CANCELLED")
	fs.StringVar(&products, "products", "p1", "comma-separated product ids for every order")
	fs.IntVar(&cfg.quantity, "quantity", 1, "quantity of every order line")
	fs.StringVar(&cfg.output, "output", "", "optional JSON report path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) { cfg.totalSet = cfg.totalSet || f.Name == "total" })

	switch m := loadMode(strings.TrimSpace(mode)); m {
	case modeCreate, modeCreateRead, modeCreateReadStatus:
		cfg.mode = m
	default:
		return cfg, fmt.Errorf("unsupported mode: %s", mode)
	}
	for _, id := range strings.Split(products, ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.productIDs = append(cfg.productIDs, id)
		}
	}

	return cfg, cfg.validate()
}

func (c config) validate() error {
	var errs []error
	if c.duration < 0 {
		errs = append(errs, errors.New("duration must be >= 0"))
	}
	if c.limit() == 0 || c.total < 0 {
		errs = append(errs, errors.New("total must be > 0"))
	}
	if c.concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be > 0"))
	}
	if c.connections <= 0 {
		errs = append(errs, errors.New("connections must be > 0"))
	}
	if c.timeout <= 0 {
		errs = append(errs, errors.New("timeout must be > 0"))
	}
	if c.cancelRate < 0 || c.cancelRate > 100 {
		errs = append(errs, errors.New("cancel-rate must be within 0..100"))
	}
	if len(c.productIDs) == 0 {
		errs = append(errs, errors.New("products are required"))
	}
	if c.quantity <= 0 || c.quantity > math.MaxInt32 {
		errs = append(errs, errors.New("quantity must be a positive int32"))
	}
	return errors.Join(errs...)
}

func main() {
	logger := log.WithField("component", "loadtest")

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		logger.WithError(err).Fatal("invalid flags")
	}

	clients := make([]ordersv1.OrdersServiceClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, err := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			logger.WithError(err).Fatal("failed to create grpc client")
		}
		defer conn.Close()
		clients = append(clients, ordersv1.NewOrdersServiceClient(conn))
	}

	result := drive(clients, cfg)
	printSummary(os.Stdout, result, cfg)

	if cfg.output != "" {
		if err := saveSummary(cfg.output, result); err != nil {
			logger.WithError(err).Error("failed to write report")
			os.Exit(1)
		}
	}
	if result.Scenarios.Failed > 0 {
		os.Exit(1)
	}
}
