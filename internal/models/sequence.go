package models

// Sequence is a named monotonically increasing counter.
type Sequence struct {
	Name  string `gorm:"primaryKey;column:name;type:varchar(32)"`
	Value int64  `gorm:"column:value;not null"`
}

// All returns every table the service migrates.
func All() []interface{} {
	return []interface{}{
		&Sequence{},
		&Rider{},
		&Order{},
		&Delivery{},
		&LocationSession{},
		&RiderLocation{},
	}
}
