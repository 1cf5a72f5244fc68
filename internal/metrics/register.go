package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// register добавляет коллектор в реестр. Если коллектор с тем же описанием уже есть,
// возвращается существующий, поэтому конструкторы метрик можно вызывать повторно.
// Конфликт типов или описаний считается ошибкой программы.
func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	err := registerer.Register(collector)
	if err == nil {
		return collector
	}

	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		panic(fmt.Sprintf("register collector: %v", err))
	}
	existing, ok := already.ExistingCollector.(T)
	if !ok {
		panic(fmt.Sprintf("collector already registered with type %T", already.ExistingCollector))
	}
	return existing
}
