package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pochinki/pochinki/internal/domain"
)

const StatusOperational = "operational"

type APIStatus struct {
	Status string
	Usage  domain.CallUsage
	// Zero when nothing has been ingested yet
	LastUpdated time.Time
}

type GetAPIStatus func(ctx context.Context) (APIStatus, error)

type usageReader interface {
	Usage(ctx context.Context) (domain.CallUsage, error)
}

type lastUpdatedReader interface {
	LastUpdated(ctx context.Context) (time.Time, bool, error)
}

func BuildGetAPIStatus(callLog usageReader, stats lastUpdatedReader) GetAPIStatus {
	return func(ctx context.Context) (APIStatus, error) {
		usage, err := callLog.Usage(ctx)
		if err != nil {
			return APIStatus{}, fmt.Errorf("failed to get call usage: %w", err)
		}

		lastUpdated, _, err := stats.LastUpdated(ctx)
		if err != nil {
			return APIStatus{}, fmt.Errorf("failed to get last update: %w", err)
		}

		return APIStatus{
			Status:      StatusOperational,
			Usage:       usage,
			LastUpdated: lastUpdated,
		}, nil
	}
}
