package model

import (
	"strings"

	"github.com/blnkfinance/artify/model"
)

type CreateGeneration struct {
	SourceImage string `json:"source_image"`
	Style       string `json:"style"`
	UserID      string `json:"user_id"`
}

type UpsertUser struct {
	ExternalID    string `json:"external_id"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url"`
	WalletAddress string `json:"wallet_address"`
	MiniAppAdded  *bool  `json:"mini_app_added"`
}

type ClaimDailyCredit struct {
	UserID string `json:"user_id"`
}

type SaveGalleryImage struct {
	SourceURL string  `json:"source_url"`
	Style     string  `json:"style"`
	CreatorID *string `json:"creator_id"`
	Featured  bool    `json:"featured"`
	Paid      bool    `json:"paid"`
}

type SetFeaturedImage struct {
	ImageID string `json:"image_id"`
}

type GenerationAccepted struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Style     string `json:"style"`
}

type DailyCreditResponse struct {
	Awarded bool   `json:"awarded"`
	Message string `json:"message"`
	Balance int64  `json:"balance"`
}

func (u *UpsertUser) ToUser() *model.User {
	return &model.User{
		ExternalID:    strings.TrimSpace(u.ExternalID),
		Username:      u.Username,
		DisplayName:   u.DisplayName,
		AvatarURL:     u.AvatarURL,
		WalletAddress: u.WalletAddress,
		MiniAppAdded:  u.MiniAppAdded,
	}
}

func (g *SaveGalleryImage) ToGalleryImage() *model.GalleryImage {
	return &model.GalleryImage{
		SourceURL: strings.TrimSpace(g.SourceURL),
		Style:     g.Style,
		CreatorID: g.CreatorID,
		Featured:  g.Featured,
		Paid:      g.Paid,
	}
}
