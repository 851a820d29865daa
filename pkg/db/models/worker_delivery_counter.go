package models

import "time"

// CounterBucketTotal is the lifetime bucket; month buckets use YYYY-MM.
const CounterBucketTotal = "total"

// WorkerDeliveryCounter aggregates completed deliveries per worker and bucket.
type WorkerDeliveryCounter struct {
	WorkerID  string    `gorm:"column:worker_id;primaryKey"`
	Bucket    string    `gorm:"column:bucket;primaryKey"`
	Count     int64     `gorm:"column:count;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (WorkerDeliveryCounter) TableName() string {
	return "worker_delivery_counters"
}
