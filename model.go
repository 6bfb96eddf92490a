package relmap

import "time"

// Model a basic Go struct which includes the fields ID, CreatedAt, UpdatedAt
// It may be embedded into your model or you may build your own model without it
//
//	type User struct {
//	  relmap.Model
//	}
type Model struct {
	ID        uint `relmap:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
