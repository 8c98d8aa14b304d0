// Package di contains dependency injection tokens for the fees context.
package di

import (
	"github.com/fd1az/depth-compare/business/fees/app"
	"github.com/fd1az/depth-compare/business/fees/infra/schedules"
	"github.com/fd1az/depth-compare/internal/di"
)

// Public service tokens - exposed to other modules
var (
	FeeService = di.NewToken[*app.FeeService]("fees.FeeService")
)

// Private dependency tokens - internal to fees module
var (
	ScheduleStore = di.NewToken[*schedules.Store]("fees:scheduleStore")
)

// GetFeeService resolves the fee service.
func GetFeeService(c di.ServiceRegistry) *app.FeeService {
	return di.GetToken(c, FeeService)
}

// GetScheduleStore resolves the loaded schedules.
func GetScheduleStore(c di.ServiceRegistry) *schedules.Store {
	return di.GetToken(c, ScheduleStore)
}
