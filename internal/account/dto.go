// AngelaMos | 2026
// dto.go

package account

import (
	"time"
)

type UpdateProfileRequest struct {
	About     *string  `json:"about,omitempty"     validate:"omitempty,max=5000"`
	HomePage  *string  `json:"home_page,omitempty" validate:"omitempty,url,max=200"`
	Signature *string  `json:"signature,omitempty" validate:"omitempty,max=256"`
	GeoLat    *float64 `json:"geo_lat,omitempty"   validate:"omitempty,gte=-90,lte=90"`
	GeoLon    *float64 `json:"geo_lon,omitempty"   validate:"omitempty,gte=-180,lte=180"`
	ClearGeo  bool     `json:"clear_geo,omitempty"`
}

type ChangeUsernameRequest struct {
	Username string `json:"username" validate:"required,username"`
}

type ChangeEmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type AccountResponse struct {
	ID                int64     `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email,omitempty"`
	Role              string    `json:"role"`
	IsActive          bool      `json:"is_active"`
	IsAnonymized      bool      `json:"is_anonymized"`
	About             string    `json:"about"`
	HomePage          string    `json:"home_page"`
	Signature         string    `json:"signature"`
	GeoLat            *float64  `json:"geo_lat,omitempty"`
	GeoLon            *float64  `json:"geo_lon,omitempty"`
	NumSounds         int       `json:"num_sounds"`
	NumPosts          int       `json:"num_posts"`
	NumSoundDownloads int       `json:"num_sound_downloads"`
	NumPackDownloads  int       `json:"num_pack_downloads"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type OldUsernameResponse struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type ListAccountsParams struct {
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	Search     string `json:"search"`
	Role       string `json:"role"`
	Anonymized *bool  `json:"anonymized"`
}

func (p *ListAccountsParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListAccountsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToAccountResponse(a *Account) AccountResponse {
	return AccountResponse{
		ID:                a.ID,
		Username:          a.Username,
		Email:             a.Email,
		Role:              a.Role,
		IsActive:          a.IsActive,
		IsAnonymized:      a.IsAnonymized,
		About:             a.About,
		HomePage:          a.HomePage,
		Signature:         a.Signature,
		GeoLat:            a.GeoLat,
		GeoLon:            a.GeoLon,
		NumSounds:         a.NumSounds,
		NumPosts:          a.NumPosts,
		NumSoundDownloads: a.NumSoundDownloads,
		NumPackDownloads:  a.NumPackDownloads,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func ToAccountResponseList(accounts []Account) []AccountResponse {
	responses := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, ToAccountResponse(&accounts[i]))
	}
	return responses
}

func ToOldUsernameResponseList(names []OldUsername) []OldUsernameResponse {
	responses := make([]OldUsernameResponse, 0, len(names))
	for _, n := range names {
		responses = append(responses, OldUsernameResponse{
			Username:  n.Username,
			CreatedAt: n.CreatedAt,
		})
	}
	return responses
}
