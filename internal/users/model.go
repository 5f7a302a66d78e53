package users

import "time"

// User is an uploader, identified by email.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stats counts all users and those created within the recent window.
type Stats struct {
	TotalUsers  int `json:"totalUsers"`
	RecentUsers int `json:"recentUsers"`
}
