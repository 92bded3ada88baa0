package store

import "time"

// DefaultSeed is the catalogue written when a fresh data file is created with
// seeding enabled.
func DefaultSeed() []Record {
	at := func(v string) time.Time {
		t, _ := time.Parse(time.RFC3339, v)
		return t
	}
	return []Record{
		{ID: "SLT001", Name: "Fiber Broadband 100Mbps", Category: "Internet Services", Quantity: 500, CreatedAt: at("2024-01-15T10:00:00Z")},
		{ID: "SLT002", Name: "PeoTV Entertainment Package", Category: "Digital TV", Quantity: 300, CreatedAt: at("2024-01-15T10:00:00Z")},
		{ID: "SLT003", Name: "SLT Mobitel 4G SIM Card", Category: "Mobile Services", Quantity: 1000, CreatedAt: at("2024-01-15T10:00:00Z")},
		{ID: "SLT004", Name: "Fiber Broadband 200Mbps", Category: "Internet Services", Quantity: 250, CreatedAt: at("2024-01-16T09:00:00Z")},
		{ID: "SLT005", Name: "Business Internet Package", Category: "Internet Services", Quantity: 150, CreatedAt: at("2024-01-16T09:00:00Z")},
		{ID: "SLT006", Name: "International Roaming Plan", Category: "Mobile Services", Quantity: 800, CreatedAt: at("2024-01-17T11:00:00Z")},
	}
}
