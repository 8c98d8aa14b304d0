// Package di contains dependency injection tokens for the execution context.
package di

import (
	"github.com/fd1az/depth-compare/business/execution/app"
	"github.com/fd1az/depth-compare/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Comparator = di.NewToken[*app.Comparator]("execution.Comparator")
)

// Private dependency tokens - internal to execution module
var (
	Simulator  = di.NewToken[*app.Simulator]("execution:simulator")
	Reporters  = di.NewToken[[]app.Reporter]("execution:reporters")
	AuditStore = di.NewToken[app.AuditStore]("execution:auditStore")
)

// GetComparator resolves the comparator.
func GetComparator(c di.ServiceRegistry) *app.Comparator {
	return di.GetToken(c, Comparator)
}

// GetSimulator resolves the execution simulator.
func GetSimulator(c di.ServiceRegistry) *app.Simulator {
	return di.GetToken(c, Simulator)
}

// GetReporters resolves the configured reporters.
func GetReporters(c di.ServiceRegistry) []app.Reporter {
	return di.GetToken(c, Reporters)
}

// GetAuditStore resolves the audit store, nil when auditing is disabled.
func GetAuditStore(c di.ServiceRegistry) app.AuditStore {
	return di.GetToken(c, AuditStore)
}
