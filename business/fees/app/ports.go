package app

import "github.com/fd1az/depth-compare/business/fees/domain"

// ScheduleStore serves loaded, immutable schedules by exchange id.
type ScheduleStore interface {
	Schedule(exchange string) (*domain.Schedule, error)
}
