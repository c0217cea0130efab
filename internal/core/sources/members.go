package sources

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/bookings/internal/core"
)

func init() {
	registerMembers()
}

// Member columns as they appear in member.csv.
const (
	colName         = "name"
	colSurname      = "surname"
	colBookingCount = "booking_count"
	colDateJoined   = "date_joined"
)

var memberFields = []core.FieldSpec{
	{Name: colName, Type: core.FieldText},
	{Name: colSurname, Type: core.FieldText},
	{Name: colBookingCount, Type: core.FieldCount},
	{Name: colDateJoined, Type: core.FieldDate, Required: true},
}

func registerMembers() {
	core.Register(core.SourceDefinition{
		Key:         core.SourceMembers,
		FileName:    "member.csv",
		FormField:   "member",
		Order:       1,
		FieldSpecs:  memberFields,
		BuildRecord: buildMember,
		Insert: func(ctx context.Context, store core.ImportStore, record any) error {
			m, ok := record.(core.Member)
			if !ok {
				return fmt.Errorf("members: unexpected record type %T", record)
			}
			return store.InsertMember(ctx, &m)
		},
	})
}

func buildMember(row []string, idx core.HeaderIndex) (any, error) {
	v, err := core.ParseRow(row, idx, memberFields)
	if err != nil {
		return nil, err
	}
	return core.Member{
		Name:         v.Text(colName),
		Surname:      v.Text(colSurname),
		BookingCount: v.Count(colBookingCount),
		DateJoined:   v.Date(colDateJoined),
	}, nil
}
