// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package feed defines the reel record model and the backend collaborator
// client the playback engine consumes.
package feed

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Owner references the user who posted a reel.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// ProductRef is a product tagged on a reel.
type ProductRef struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Price        float64  `json:"price"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	ComparePrice *float64 `json:"comparePrice,omitempty"`
}

// ReelRecord is the immutable, server-provided description of one reel.
// Viewer-relative booleans reflect the state at load time; live interaction
// state is owned by the social manager.
type ReelRecord struct {
	ID           string       `json:"id"`
	MediaURL     string       `json:"mediaUrl"`
	ThumbnailURL string       `json:"thumbnailUrl,omitempty"`
	Caption      string       `json:"caption"`
	Views        int64        `json:"views"`
	Likes        int64        `json:"likes"`
	Shares       int64        `json:"shares"`
	Comments     int64        `json:"comments"`
	Owner        Owner        `json:"owner"`
	Products     []ProductRef `json:"products,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`

	LikedByViewer  bool `json:"likedByViewer"`
	FollowingOwner bool `json:"followingOwner"`
}

// Validate checks the fields the playback engine depends on.
func (r *ReelRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("reel record missing id")
	}
	if strings.TrimSpace(r.MediaURL) == "" {
		return fmt.Errorf("reel %s missing media url", r.ID)
	}
	return nil
}

// Normalize canonicalizes user-entered text to NFC so captions compare and
// render consistently regardless of how the uploader's keyboard composed them.
func (r *ReelRecord) Normalize() {
	r.Caption = norm.NFC.String(strings.TrimSpace(r.Caption))
	r.Owner.DisplayName = norm.NFC.String(strings.TrimSpace(r.Owner.DisplayName))
	for i := range r.Products {
		r.Products[i].Name = norm.NFC.String(strings.TrimSpace(r.Products[i].Name))
	}
}
