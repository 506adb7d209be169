package models

import "time"

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Password  string    `json:"-"`
	Salt      string    `json:"-"`
	Avatar    *int64    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Discoverer is the public projection of a user attached to places.
type Discoverer struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar *int64 `json:"avatar"`
}

type Upload struct {
	ID        int64     `json:"id"`
	FetchCode string    `json:"fetch_code"`
	OwnerID   int64     `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SignUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Avatar   *int64 `json:"avatar"`
}

type SignInRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SignInResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar *int64 `json:"avatar"`
	Token  string `json:"token"`
}
