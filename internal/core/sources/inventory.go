package sources

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/bookings/internal/core"
)

func init() {
	registerInventory()
}

// Inventory columns as they appear in inventory.csv.
const (
	colTitle          = "title"
	colDescription    = "description"
	colRemainingCount = "remaining_count"
	colExpirationDate = "expiration_date"
)

var inventoryFields = []core.FieldSpec{
	{Name: colTitle, Type: core.FieldText},
	{Name: colDescription, Type: core.FieldText},
	{Name: colRemainingCount, Type: core.FieldCount},
	{Name: colExpirationDate, Type: core.FieldDate, Required: true},
}

func registerInventory() {
	core.Register(core.SourceDefinition{
		Key:         core.SourceInventory,
		FileName:    "inventory.csv",
		FormField:   "inventory",
		Order:       2,
		FieldSpecs:  inventoryFields,
		BuildRecord: buildInventoryItem,
		Insert: func(ctx context.Context, store core.ImportStore, record any) error {
			item, ok := record.(core.InventoryItem)
			if !ok {
				return fmt.Errorf("inventory: unexpected record type %T", record)
			}
			return store.InsertInventoryItem(ctx, &item)
		},
	})
}

func buildInventoryItem(row []string, idx core.HeaderIndex) (any, error) {
	v, err := core.ParseRow(row, idx, inventoryFields)
	if err != nil {
		return nil, err
	}
	return core.InventoryItem{
		Title:          v.Text(colTitle),
		Description:    v.Text(colDescription),
		RemainingCount: v.Count(colRemainingCount),
		ExpirationDate: v.Date(colExpirationDate),
	}, nil
}
