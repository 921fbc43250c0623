package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeUsageLogPrune = "usage:logs:prune"
)

type PruneUsageLogsPayload struct {
	RetentionDays int `json:"retention_days"`
}

func NewPruneUsageLogsTask(retentionDays int, opts ...asynq.Option) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(PruneUsageLogsPayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}

	uniqueOpt := asynq.Unique(24 * time.Hour)
	allOpts := append(opts, uniqueOpt)

	return asynq.NewTask(TypeUsageLogPrune, payloadBytes, allOpts...), nil
}
