package queue

import (
	"fmt"

	"github.com/google/uuid"
)

func JobKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func PendingKey(queueName string) string {
	return fmt.Sprintf("queue:%s:pending", queueName)
}

func ActiveKey(queueName string) string {
	return fmt.Sprintf("queue:%s:active", queueName)
}

func LockKey(jobID uuid.UUID) string {
	return fmt.Sprintf("lock:job:%s", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
