package portal

import (
	"context"

	"MeterWatch/internal/model"
)

// Fetcher retrieves a balance reading for one customer number.
type Fetcher interface {
	FetchReading(ctx context.Context, custNo string) model.BalanceReading
	Name() string
}
