// Package version хранит сведения о сборке, которые подставляются через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/ordersvc/internal/version.version=v1.2.0"
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GetVersion возвращает версию сборки. Она попадает в ответ /healthz и в ресурс телеметрии.
func GetVersion() string { return version }

// String описывает сборку целиком для стартового лога.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
