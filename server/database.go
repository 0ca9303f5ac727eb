package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func dbInit() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// Auto migrate schemas
	err = db.AutoMigrate(&Device{}, &DeviceSetting{}, &DeviceTelemetry{}, &Photo{}, &RenderedImage{}, &RotationEntry{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	// Drop cache records whose file vanished from the cache dir.
	var rendered []RenderedImage
	if err := db.Find(&rendered).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch rendered images: %w", err)
	}
	for _, r := range rendered {
		if _, err := os.Stat(r.Path); err == nil {
			continue
		}
		if err := db.Delete(&r).Error; err != nil {
			log.Printf("failed to delete rendered image %s from database: %v\n", r.Path, err)
			continue
		}
		log.Printf("Deleted rendered image: %s with UUID: %s (file no longer exists)\n", r.Path, r.UUID)
	}

	return db, nil
}

func dbClose(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database: %w", err)
	}

	err = sqlDB.Close()
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// refreshPhotos reconciles the photo table with the image directory.
func refreshPhotos(db *gorm.DB) error {
	photoPaths, err := generateFileList(imageDir, photoExtensions)
	if err != nil {
		return fmt.Errorf("failed to generate file list: %w", err)
	}

	// Create a map for quick lookup of paths
	photoPathMap := make(map[string]bool)
	for _, path := range photoPaths {
		photoPathMap[path] = true
	}

	// Find and remove entries in DB that no longer exist in the file system
	var photos []Photo
	if err := db.Find(&photos).Error; err != nil {
		return fmt.Errorf("failed to fetch existing photos: %w", err)
	}

	for _, photo := range photos {
		if !photoPathMap[photo.Path] {
			// File doesn't exist anymore, delete from database
			if err := db.Delete(&photo).Error; err != nil {
				log.Printf("failed to delete non-existent photo %s from database: %v\n", photo.Path, err)
				continue
			}
			// Also clean up any rendered versions, files included
			var stale []RenderedImage
			if err := db.Where("photo_uuid = ?", photo.UUID).Find(&stale).Error; err != nil {
				log.Printf("failed to list rendered images for %s: %v\n", photo.UUID, err)
			}
			for _, r := range stale {
				if err := removeRendered(db, r.UUID); err != nil {
					log.Printf("failed to remove rendered image %s: %v\n", r.UUID, err)
				}
			}
			log.Printf("Deleted photo: %s with UUID: %s (file no longer exists)\n", photo.Path, photo.UUID)
		}
	}

	// Add new photos
	for _, path := range photoPaths {
		// Check if photo already exists
		var count int64
		db.Model(&Photo{}).Where("path = ?", path).Count(&count)
		if count > 0 {
			continue // Skip if exists
		}

		photo := Photo{
			Path: path,
			UUID: generateUUID(),
		}

		result := db.Create(&photo)
		if result.Error != nil {
			log.Printf("failed to insert photo %s into database: %v\n", path, result.Error)
			continue
		}
		log.Printf("Inserted photo: %s with UUID: %s\n", path, photo.UUID)
	}
	return nil
}

func addRendered(db *gorm.DB, photo Photo, s DeviceSetting) (RenderedImage, error) {
	if db == nil {
		return RenderedImage{}, fmt.Errorf("database connection is nil")
	}

	uuid := generateUUID()
	path := fmt.Sprintf("%s/rendered_%s.png", cacheDir, uuid)

	if err := writeDisplayStatus("updating", photo.Path, ""); err != nil {
		log.Printf("Warning: failed to update display status: %v", err)
	}
	img, err := renderPhoto(photo.Path, s)
	if err != nil {
		_ = writeDisplayStatus("error", photo.Path, err.Error())
		return RenderedImage{}, fmt.Errorf("failed to render photo %s: %w", photo.Path, err)
	}
	if err := saveImage(path, img); err != nil {
		_ = writeDisplayStatus("error", photo.Path, err.Error())
		return RenderedImage{}, fmt.Errorf("failed to save rendered image to file: %w", err)
	}
	if err := writeDisplayStatus("ready", photo.Path, ""); err != nil {
		log.Printf("Warning: failed to update display status: %v", err)
	}

	rendered := RenderedImage{
		UUID:            uuid,
		PhotoUUID:       photo.UUID,
		Palette:         s.Palette,
		Algorithm:       s.Algorithm,
		DitherStrength:  s.DitherStrength,
		Height:          s.Height,
		Width:           s.Width,
		Rotation:        s.Rotation,
		ResizeMethod:    s.ResizeMethod,
		Metric:          s.Metric,
		Enhance:         s.Enhance,
		ChromaGain:      s.ChromaGain,
		LuminanceGain:   s.LuminanceGain,
		ExtendedPalette: s.ExtendedPalette,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
		Path:            path,
	}

	result := db.Create(&rendered)
	if result.Error != nil {
		return RenderedImage{}, fmt.Errorf("failed to insert rendered image into database: %w", result.Error)
	}

	log.Printf("Inserted rendered image with UUID: %s\n", rendered.UUID)
	return rendered, nil
}

func renderCacheQuery(photo Photo, s DeviceSetting) *RenderedImage {
	return &RenderedImage{
		PhotoUUID:       photo.UUID,
		Palette:         s.Palette,
		Algorithm:       s.Algorithm,
		DitherStrength:  s.DitherStrength,
		Width:           s.Width,
		Height:          s.Height,
		Rotation:        s.Rotation,
		ResizeMethod:    s.ResizeMethod,
		Metric:          s.Metric,
		Enhance:         s.Enhance,
		ChromaGain:      s.ChromaGain,
		LuminanceGain:   s.LuminanceGain,
		ExtendedPalette: s.ExtendedPalette,
	}
}

// getRendered returns the cached render for (photo, settings), creating
// it on a cache miss.
func getRendered(db *gorm.DB, photo Photo, s DeviceSetting) (RenderedImage, error) {
	if db == nil {
		return RenderedImage{}, fmt.Errorf("database connection is nil")
	}

	var rendered RenderedImage
	result := db.Where(renderCacheQuery(photo, s)).First(&rendered)

	// If not found, create it
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			rendered, err := addRendered(db, photo, s)
			if err != nil {
				return RenderedImage{}, fmt.Errorf("failed to create rendered image: %w", err)
			}
			return rendered, nil
		}

		return RenderedImage{}, fmt.Errorf("failed to query rendered image: %w", result.Error)
	}
	return rendered, nil
}

func removeRendered(db *gorm.DB, uuid string) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	var rendered RenderedImage
	if err := db.Where(&RenderedImage{UUID: uuid}).First(&rendered).Error; err != nil {
		return fmt.Errorf("failed to find rendered image: %w", err)
	}

	if err := db.Delete(&rendered).Error; err != nil {
		return fmt.Errorf("failed to delete rendered image from database: %w", err)
	}

	// Delete the image file from cache
	if err := os.Remove(rendered.Path); err != nil {
		log.Printf("Warning: Failed to delete cached file %s: %v", rendered.Path, err)
		// Continue anyway as the database record is deleted
	}

	log.Printf("Deleted rendered image with UUID: %s\n", uuid)
	return nil
}

func createRotationList(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Clear existing rotation order
	db.Exec("DELETE FROM rotation_entries")

	// Get all photo UUIDs
	var photos []Photo
	if err := db.Model(&Photo{}).Select("uuid").Find(&photos).Error; err != nil {
		return fmt.Errorf("failed to fetch photo UUIDs: %w", err)
	}

	rand.Shuffle(len(photos), func(i, j int) {
		photos[i], photos[j] = photos[j], photos[i]
	})

	for _, photo := range photos {
		db.Create(&RotationEntry{UUID: photo.UUID})
	}

	log.Println("Rotation order created and populated with shuffled photo UUIDs.")
	return nil
}

// updateRotationList reconciles the shuffled display order with the
// photo table: stale entries go, new photos slot in at a random
// position.
func updateRotationList(db *gorm.DB) error {
	var entries []RotationEntry
	if err := db.Find(&entries).Error; err != nil {
		return fmt.Errorf("failed to fetch rotation entries: %w", err)
	}
	if len(entries) == 0 {
		return createRotationList(db)
	}
	for _, entry := range entries {
		var count int64
		db.Model(&Photo{}).Where("uuid = ?", entry.UUID).Count(&count)
		if count == 0 {
			// Photo does not exist, delete from rotation order
			if err := db.Delete(&RotationEntry{}, entry.ID).Error; err != nil {
				return fmt.Errorf("failed to delete rotation entry %s: %w", entry.UUID, err)
			}
			log.Printf("Deleted rotation entry with UUID: %s\n", entry.UUID)
		}
	}

	var photos []Photo
	if err := db.Model(&Photo{}).Select("uuid").Find(&photos).Error; err != nil {
		return fmt.Errorf("failed to fetch photo UUIDs: %w", err)
	}

	var entryCount int64
	if err := db.Model(&RotationEntry{}).Count(&entryCount).Error; err != nil {
		return fmt.Errorf("failed to count rotation entries: %w", err)
	}

	// For each photo that isn't in the rotation, insert it at a random position
	for _, photo := range photos {
		var count int64
		db.Model(&RotationEntry{}).Where("uuid = ?", photo.UUID).Count(&count)
		if count == 0 {
			position := 0
			if entryCount > 0 {
				position = rand.Intn(int(entryCount))
			}

			// Shift all entries at or after the random position, starting from the highest ID
			// This prevents UNIQUE constraint violations
			var maxID uint
			if entryCount > 0 {
				if err := db.Model(&RotationEntry{}).Select("MAX(id)").Scan(&maxID).Error; err != nil {
					return fmt.Errorf("failed to get max ID: %w", err)
				}

				for i := maxID; i >= uint(position+1); i-- {
					if err := db.Exec("UPDATE rotation_entries SET id = ? WHERE id = ?", i+1, i).Error; err != nil {
						return fmt.Errorf("failed to shift rotation entry with ID %d: %w", i, err)
					}
				}
			}

			entry := RotationEntry{ID: uint(position + 1), UUID: photo.UUID}
			if err := db.Create(&entry).Error; err != nil {
				return fmt.Errorf("failed to insert rotation entry %s at position %d: %w", photo.UUID, position, err)
			}

			log.Printf("Inserted rotation entry with UUID: %s at position %d\n", photo.UUID, position)
			entryCount++ // Update the count for next iteration
		}
	}
	log.Println("Rotation order updated.")
	return nil
}

// getNextPhoto advances the device through the shuffled order,
// wrapping around at the end.
func getNextPhoto(db *gorm.DB, device Device) (Photo, error) {
	var next Photo

	if device.CurrentPhoto == "" {
		// First time, start at the head of the rotation
		var first RotationEntry
		if err := db.Order("id ASC").First(&first).Error; err != nil {
			return next, fmt.Errorf("no photos available")
		}

		if err := db.Where(&Photo{UUID: first.UUID}).First(&next).Error; err != nil {
			return next, fmt.Errorf("failed to find photo with UUID: %s", first.UUID)
		}
		return next, nil
	}

	// Find current position and get next
	var current RotationEntry
	result := db.Where(&RotationEntry{UUID: device.CurrentPhoto}).First(&current)

	if result.Error != nil {
		// Current photo not in rotation, start from beginning
		if err := db.Order("id ASC").First(&current).Error; err != nil {
			return next, fmt.Errorf("no photos available")
		}
	} else {
		var following RotationEntry
		result := db.Where("id > ?", current.ID).Order("id ASC").First(&following)

		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				// Wrap around to the first entry
				if err := db.Order("id ASC").First(&following).Error; err != nil {
					return next, fmt.Errorf("no photos available")
				}
				current = following
			} else {
				return next, fmt.Errorf("database error: %w", result.Error)
			}
		} else {
			current = following
		}
	}

	if err := db.Where(Photo{UUID: current.UUID}).First(&next).Error; err != nil {
		return next, fmt.Errorf("failed to find photo with UUID: %s", current.UUID)
	}

	return next, nil
}
