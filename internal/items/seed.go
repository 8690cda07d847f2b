package items

import (
	"fmt"
	"time"

	"deskops/internal/bulk"
)

// SeedDemo fills the book with a small demo ladder per item type so a fresh
// server has something to operate on. Production deployments load real data
// instead.
func SeedDemo(service *Service) {
	symbols := []string{"TASC", "BBOB", "BMNS", "IBSD", "HASH"}
	now := time.Now()

	for i, symbol := range symbols {
		service.Put(Item{
			ID:        fmt.Sprintf("pos-%03d", i+1),
			Type:      bulk.ItemTypePosition,
			Symbol:    symbol,
			Status:    StatusOpen,
			Enabled:   true,
			Quantity:  float64(100 * (i + 1)),
			Price:     1.25 + float64(i)*0.4,
			CreatedAt: now.Add(-time.Duration(i) * time.Hour),
		})
		service.Put(Item{
			ID:        fmt.Sprintf("trd-%03d", i+1),
			Type:      bulk.ItemTypeTrade,
			Symbol:    symbol,
			Status:    "filled",
			Enabled:   true,
			Quantity:  float64(50 * (i + 1)),
			Price:     1.10 + float64(i)*0.3,
			CreatedAt: now.Add(-time.Duration(i*2) * time.Hour),
		})
		service.Put(Item{
			ID:        fmt.Sprintf("alr-%03d", i+1),
			Type:      bulk.ItemTypeAlert,
			Symbol:    symbol,
			Status:    "active",
			Enabled:   i%2 == 0,
			Notes:     fmt.Sprintf("price cross %0.2f", 1.5+float64(i)*0.25),
			CreatedAt: now.Add(-time.Duration(i*3) * time.Hour),
		})
		service.Put(Item{
			ID:        fmt.Sprintf("ord-%03d", i+1),
			Type:      bulk.ItemTypeOrder,
			Symbol:    symbol,
			Status:    StatusOpen,
			Enabled:   true,
			Quantity:  float64(25 * (i + 1)),
			Price:     1.30 + float64(i)*0.35,
			CreatedAt: now.Add(-time.Duration(i*4) * time.Hour),
		})
	}
}
