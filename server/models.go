package main

import "time"

// Standard API response structure
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Define models
type Device struct {
	ID           uint   `gorm:"primarykey"`
	DeviceID     string `gorm:"uniqueIndex;not null"`
	DeviceName   string `gorm:"not null"`
	DeviceToken  string `gorm:"unique"`
	CurrentPhoto string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DeviceSetting carries the full rendering configuration a device asks
// for. The combination of these fields keys the render cache.
type DeviceSetting struct {
	ID                uint    `gorm:"primarykey"`
	DeviceID          string  `gorm:"not null"`
	ImgUpdateInterval int     `gorm:"not null;default:600"`
	Height            int     `gorm:"not null;default:480"`
	Width             int     `gorm:"not null;default:800"`
	Rotation          int     `gorm:"not null;default:0"`
	Palette           string  `gorm:"not null;default:'spectra6'"`
	Algorithm         string  `gorm:"not null;default:'native'"`
	DitherStrength    float32 `gorm:"not null;default:1.0"`
	ResizeMethod      string  `gorm:"not null;default:'fill'"`
	Metric            string  `gorm:"not null;default:'lab'"`
	Enhance           bool    `gorm:"not null;default:true"`
	ChromaGain        float32 `gorm:"not null;default:1.4"`
	LuminanceGain     float32 `gorm:"not null;default:1.1"`
	ExtendedPalette   bool    `gorm:"not null;default:true"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Device            Device `gorm:"foreignKey:DeviceID;references:DeviceID"`
}

type DeviceTelemetry struct {
	ID           uint      `gorm:"primarykey"`
	DeviceID     string    `gorm:"not null"`
	BatteryLevel int       `gorm:"not null;default:100"`
	LastSeen     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	Device       Device    `gorm:"foreignKey:DeviceID;references:DeviceID"`
}

// Photo is an entry of the source photo library on disk.
type Photo struct {
	ID             uint   `gorm:"primarykey"`
	Path           string `gorm:"uniqueIndex;not null"`
	UUID           string `gorm:"uniqueIndex;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	RenderedImages []RenderedImage `gorm:"foreignKey:PhotoUUID;references:UUID"`
}

// RenderedImage caches one pipeline output for one photo under one
// configuration. Every config field participates in cache lookup.
type RenderedImage struct {
	ID              uint    `gorm:"primarykey"`
	UUID            string  `gorm:"not null"`
	PhotoUUID       string  `gorm:"not null"` // Foreign key to Photo
	Palette         string  `gorm:"not null"`
	Algorithm       string  `gorm:"not null"`
	DitherStrength  float32 `gorm:"not null;default:1.0"`
	Height          int     `gorm:"not null;default:480"`
	Width           int     `gorm:"not null;default:800"`
	Rotation        int     `gorm:"not null;default:0"`
	ResizeMethod    string  `gorm:"not null;default:'fill'"`
	Metric          string  `gorm:"not null;default:'lab'"`
	Enhance         bool    `gorm:"not null;default:true"`
	ChromaGain      float32 `gorm:"not null;default:1.4"`
	LuminanceGain   float32 `gorm:"not null;default:1.1"`
	ExtendedPalette bool    `gorm:"not null;default:true"`
	Path            string  `gorm:"uniqueIndex;not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RotationEntry is one slot of the shuffled display order.
type RotationEntry struct {
	ID   uint   `gorm:"primarykey"`
	UUID string `gorm:"uniqueIndex;not null"`
}
