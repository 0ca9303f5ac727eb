package main

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/HighDoping/SpectraFrame/panel"
	"github.com/HighDoping/SpectraFrame/render"
)

// Helper functions for standardized responses
func successResponse(data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   message,
	}
}

type jwtCustomClaims struct {
	DeviceID    string `json:"device_id"`
	DeviceToken string `json:"device_token"`
	DeviceName  string `json:"device_name"`
	jwt.RegisteredClaims
}

func issueToken(device Device) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtCustomClaims{
		DeviceID:    device.DeviceID,
		DeviceToken: device.DeviceToken,
		DeviceName:  device.DeviceName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "spectraframe",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)), // Token valid for 24 hours
		},
	})
	tokenString, err := token.SignedString(jwtMasterKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func handleRegisterRequest(c *gin.Context, db *gorm.DB) error {
	// Register a pre-provisioned device, returns a JWT session token
	var requestData map[string]interface{}
	if err := c.BindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid JSON"))
		return err
	}
	deviceID, ok := requestData["device_id"].(string)
	if !ok || deviceID == "" {
		c.JSON(http.StatusBadRequest, errorResponse("device_id is required"))
		return fmt.Errorf("device_id is required")
	}
	deviceToken, ok := requestData["device_token"].(string)
	if !ok || deviceToken == "" {
		c.JSON(http.StatusBadRequest, errorResponse("device_token is required"))
		return fmt.Errorf("device_token is required")
	}

	// Check if device exists and the token matches
	var existingDevice Device
	result := db.Where(&Device{DeviceID: deviceID, DeviceToken: deviceToken}).First(&existingDevice)
	if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		log.Printf("Error checking existing device: %v", result.Error)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return result.Error
	}
	if result.RowsAffected > 0 {
		// Device exists, check if has settings, if not create default settings
		var settings DeviceSetting
		result = db.Where(&DeviceSetting{DeviceID: deviceID}).First(&settings)
		if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
			log.Printf("Error checking device settings: %v", result.Error)
			c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Create default settings
			settings = DeviceSetting{
				DeviceID: deviceID,
				Device:   existingDevice,
			}
			result = db.Create(&settings)
			if result.Error != nil {
				log.Printf("Error creating default settings: %v", result.Error)
				c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
				return result.Error
			}
			log.Printf("Created default settings for device: %s", deviceID)
		}

		tokenString, err := issueToken(existingDevice)
		if err != nil {
			log.Printf("Error signing token: %v", err)
			c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
			return err
		}

		c.JSON(http.StatusOK, successResponse(map[string]interface{}{
			"message": "Device registered",
			"token":   tokenString,
		}))
		log.Printf("Device registered: %s (%s)", existingDevice.DeviceID, existingDevice.DeviceName)
		return nil
	}
	// Device does not exist, deny registration
	c.JSON(http.StatusUnauthorized, errorResponse("Unauthorized device registration"))
	log.Printf("Unauthorized device registration attempt: %s", deviceID)
	return fmt.Errorf("unauthorized device registration")
}

func checkAdminKey(c *gin.Context) bool {
	// Check if the request has a valid admin key
	tokenString := c.GetHeader("Authorization")
	if len(tokenString) <= len("Bearer ") {
		return false
	}
	tokenString = tokenString[len("Bearer "):] // Remove "Bearer " prefix
	return tokenString == adminKey
}

func updateLastSeen(device Device, db *gorm.DB) error {
	// Update the last seen timestamp for the device
	var telemetry DeviceTelemetry
	result := db.Where(&DeviceTelemetry{DeviceID: device.DeviceID}).First(&telemetry)
	if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		log.Printf("Error fetching telemetry for device %s: %v", device.DeviceID, result.Error)
		return result.Error
	}
	telemetry.DeviceID = device.DeviceID
	telemetry.LastSeen = time.Now()
	if err := db.Save(&telemetry).Error; err != nil {
		log.Printf("Error updating last seen for device %s: %v", device.DeviceID, err)
		return err
	}
	return nil
}

func getBearerToken(c *gin.Context) (string, error) {
	// Extract the Bearer token from the Authorization header
	tokenString := c.GetHeader("Authorization")
	if tokenString == "" {
		return "", fmt.Errorf("authorization header missing")
	}
	if len(tokenString) < 7 || tokenString[:7] != "Bearer " {
		return "", fmt.Errorf("invalid authorization header format")
	}
	return tokenString[7:], nil
}

func getJWTClaims(c *gin.Context) (*jwtCustomClaims, error) {
	tokenString, err := getBearerToken(c)
	if err != nil {
		return nil, err
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtMasterKey, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %v", err)
	}
	claims, ok := token.Claims.(*jwtCustomClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func authDevice(c *gin.Context, db *gorm.DB) (Device, error) {
	// Check if the request has a valid session token, returns device details
	claims, err := getJWTClaims(c)
	if err != nil {
		log.Printf("Error getting JWT claims: %v", err)
		return Device{}, err
	}

	// Fetch device details from the database
	var device Device
	result := db.Where(&Device{DeviceID: claims.DeviceID, DeviceToken: claims.DeviceToken}).First(&device)
	if result.Error != nil {
		log.Printf("Error fetching device: %v", result.Error)
		return Device{}, result.Error
	}
	if device.DeviceID == "" {
		return Device{}, fmt.Errorf("device not found")
	}
	// Update last seen timestamp for the device
	if err := updateLastSeen(device, db); err != nil {
		return Device{}, err
	}
	return device, nil
}

func handleAdminDeviceRegisterRequest(c *gin.Context, db *gorm.DB) {
	// Check if the request has a valid admin key
	if !checkAdminKey(c) {
		c.JSON(http.StatusUnauthorized, errorResponse("Unauthorized access"))
		return // Unauthorized access
	}
	var requestData map[string]interface{}
	if err := c.BindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid JSON"))
		return
	}
	deviceID, _ := requestData["device_id"].(string)
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, errorResponse("device_id is required"))
		return
	}
	deviceName, _ := requestData["device_name"].(string)
	if deviceName == "" {
		deviceName = deviceID
	}
	deviceToken, _ := requestData["device_token"].(string)
	if deviceToken == "" {
		deviceToken = generateUUID()
	}

	// Check if the device_id already exists in the database
	var existingDevice Device
	result := db.Where("device_id = ?", deviceID).First(&existingDevice)
	if result.Error == nil {
		// Device already exists
		c.JSON(http.StatusConflict, errorResponse("Device with this device_id already exists, name: "+existingDevice.DeviceName))
		return
	} else if result.Error != gorm.ErrRecordNotFound {
		// Some other database error occurred
		log.Printf("Error checking existing device: %v", result.Error)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}

	// Insert the device into the database
	device := Device{
		DeviceID:    deviceID,
		DeviceName:  deviceName,
		DeviceToken: deviceToken,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	result = db.Create(&device)
	if result.Error != nil {
		log.Printf("Error inserting device: %v", result.Error)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	c.JSON(http.StatusOK, successResponse(map[string]interface{}{
		"message":      "Device registered successfully",
		"device_id":    device.DeviceID,
		"device_name":  device.DeviceName,
		"device_token": device.DeviceToken,
	}))
	log.Printf("Device registered: %s (%s)", device.DeviceID, device.DeviceName)
}

// handleAdminUploadRequest accepts a multipart photo upload, stores it
// in the photo library and slots it into the rotation.
func handleAdminUploadRequest(c *gin.Context, db *gorm.DB) {
	if !checkAdminKey(c) {
		c.JSON(http.StatusUnauthorized, errorResponse("Unauthorized access"))
		return
	}
	file, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("photo file is required"))
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	allowed := false
	for _, e := range photoExtensions {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		c.JSON(http.StatusBadRequest, errorResponse("unsupported image format: "+ext))
		return
	}

	photo := Photo{
		UUID: generateUUID(),
	}
	photo.Path = filepath.Join(imageDir, photo.UUID+ext)
	if err := c.SaveUploadedFile(file, photo.Path); err != nil {
		log.Printf("Error saving uploaded photo: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	if err := db.Create(&photo).Error; err != nil {
		log.Printf("Error inserting photo: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	if err := updateRotationList(db); err != nil {
		log.Printf("Error updating rotation order: %v", err)
	}

	c.JSON(http.StatusOK, successResponse(map[string]interface{}{
		"message":    "Photo uploaded",
		"photo_uuid": photo.UUID,
	}))
	log.Printf("Uploaded photo: %s (%s)", file.Filename, photo.UUID)
}

// deliverImage renders (or fetches from cache) the device's next
// photo, encodes the panel buffer, and responds with asset paths.
func deliverImage(c *gin.Context, db *gorm.DB, device Device, settings DeviceSetting) {
	nextPhoto, err := getNextPhoto(db, device)
	if err != nil {
		log.Printf("Error finding next photo: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}

	rendered, err := getRendered(db, nextPhoto, settings)
	if err != nil {
		log.Printf("Error getting rendered image: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}

	renderedImg, err := loadImage(rendered.Path)
	if err != nil {
		log.Printf("Error loading rendered image: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}

	core, _, ok := render.Preset(settings.Palette)
	if !ok {
		log.Printf("Unknown palette in settings: %s", settings.Palette)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	pal, err := render.NewPalette(core, nil)
	if err != nil {
		log.Printf("Error building palette: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	buf, err := panel.EncodeImage(renderedImg, pal)
	if err != nil {
		log.Printf("Error encoding panel buffer: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}
	bufPath := fmt.Sprintf("%s/%s.bin", cacheDir, rendered.UUID)
	if err := saveBytesToFile(bufPath, buf); err != nil {
		log.Printf("Error saving panel buffer: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}

	// Update device's current photo
	device.CurrentPhoto = nextPhoto.UUID
	device.UpdatedAt = time.Now()
	db.Save(&device)

	c.JSON(http.StatusOK, successResponse(map[string]interface{}{
		"message":    "Image updated",
		"photo_uuid": nextPhoto.UUID,
		"image":      strings.Replace(rendered.Path, cacheDir, "assets", 1),
		"buffer":     strings.Replace(bufPath, cacheDir, "assets", 1),
	}))
}

func handleDeviceRequest(c *gin.Context, db *gorm.DB) {
	device, err := authDevice(c, db)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse("Unauthorized device"))
		return
	}
	//get json body
	var requestData map[string]interface{}
	if err := c.BindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid JSON"))
		return
	}
	if requestData["action"] == "refresh_token" {
		tokenString, err := issueToken(device)
		if err != nil {
			log.Printf("Error refreshing token: %v", err)
			c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
			return
		}
		c.JSON(http.StatusOK, successResponse(map[string]interface{}{
			"message": "Token refreshed",
			"token":   tokenString,
		}))
		return
	}
	if requestData["action"] == "get_settings" {
		// Get device settings
		var settings DeviceSetting
		result := db.Where(&DeviceSetting{DeviceID: device.DeviceID}).First(&settings)
		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				c.JSON(http.StatusNotFound, errorResponse("Settings not found"))
			} else {
				log.Printf("Error fetching settings: %v", result.Error)
				c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
			}
			return
		}
		c.JSON(http.StatusOK, successResponse(map[string]interface{}{
			"settings": settings,
		}))
		return
	}
	if requestData["action"] == "update_settings" {
		// Update device settings
		var settings DeviceSetting
		result := db.Where(&DeviceSetting{DeviceID: device.DeviceID}).First(&settings)
		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				// Create new settings if not found
				settings = DeviceSetting{
					DeviceID:  device.DeviceID,
					CreatedAt: time.Now(),
				}
			} else {
				log.Printf("Error fetching settings: %v", result.Error)
				c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
				return
			}
		}
		// Update settings with request data; JSON numbers arrive as float64
		if imgUpdateInterval, ok := requestData["img_update_interval"].(float64); ok {
			settings.ImgUpdateInterval = int(imgUpdateInterval)
		}
		if height, ok := requestData["height"].(float64); ok {
			settings.Height = int(height)
		}
		if width, ok := requestData["width"].(float64); ok {
			settings.Width = int(width)
		}
		if rotation, ok := requestData["rotation"].(float64); ok {
			settings.Rotation = int(rotation)
		}
		if palette, ok := requestData["palette"].(string); ok {
			settings.Palette = palette
		}
		if algorithm, ok := requestData["algorithm"].(string); ok {
			settings.Algorithm = algorithm
		}
		if ditherStrength, ok := requestData["dither_strength"].(float64); ok {
			settings.DitherStrength = float32(ditherStrength)
		}
		if resizeMethod, ok := requestData["resize_method"].(string); ok {
			settings.ResizeMethod = resizeMethod
		}
		if metric, ok := requestData["metric"].(string); ok {
			settings.Metric = metric
		}
		if enhance, ok := requestData["enhance"].(bool); ok {
			settings.Enhance = enhance
		}
		if chromaGain, ok := requestData["chroma_gain"].(float64); ok {
			settings.ChromaGain = float32(chromaGain)
		}
		if luminanceGain, ok := requestData["luminance_gain"].(float64); ok {
			settings.LuminanceGain = float32(luminanceGain)
		}
		if extendedPalette, ok := requestData["extended_palette"].(bool); ok {
			settings.ExtendedPalette = extendedPalette
		}

		// Save updated settings to database
		settings.UpdatedAt = time.Now()
		result = db.Save(&settings)
		if result.Error != nil {
			log.Printf("Error saving settings: %v", result.Error)
			c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
			return
		}

		c.JSON(http.StatusOK, successResponse(map[string]interface{}{
			"message":  "Settings updated successfully",
			"settings": settings,
		}))
		return
	}
	if requestData["action"] == "update_telemetry" {
		// Update device telemetry
		var telemetry DeviceTelemetry
		result := db.Where(&DeviceTelemetry{DeviceID: device.DeviceID}).First(&telemetry)
		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				// Create new telemetry if not found
				telemetry = DeviceTelemetry{
					DeviceID: device.DeviceID,
					LastSeen: time.Now(),
				}
			} else {
				log.Printf("Error fetching telemetry: %v", result.Error)
				c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
				return
			}
		}
		// Update telemetry with request data
		if batteryLevel, ok := requestData["battery_level"].(float64); ok {
			telemetry.BatteryLevel = int(batteryLevel)
		}
		telemetry.LastSeen = time.Now()

		// Save updated telemetry to database
		result = db.Save(&telemetry)
		if result.Error != nil {
			log.Printf("Error saving telemetry: %v", result.Error)
			c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
			return
		}

		c.JSON(http.StatusOK, successResponse(map[string]interface{}{
			"message":   "Telemetry updated successfully",
			"telemetry": telemetry,
		}))
		return
	}
	if requestData["action"] == "get_status" {
		status, err := readDisplayStatus()
		if err != nil {
			c.JSON(http.StatusNotFound, errorResponse("Display status not available"))
			return
		}
		c.JSON(http.StatusOK, successResponse(map[string]interface{}{
			"status": status,
		}))
		return
	}
	if requestData["action"] == "get_image" {
		// Get current image for the device, honoring the update interval
		var settings DeviceSetting
		result := db.Where(&DeviceSetting{DeviceID: device.DeviceID}).First(&settings)
		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				c.JSON(http.StatusNotFound, errorResponse("Settings not found"))
			} else {
				log.Printf("Error fetching settings: %v", result.Error)
				c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
			}
			return
		}
		if device.UpdatedAt.Add(time.Duration(settings.ImgUpdateInterval)*time.Second).After(time.Now()) && device.CurrentPhoto != "" {
			// Not due yet
			c.JSON(http.StatusOK, successResponse(map[string]interface{}{
				"message": "No image update needed",
			}))
			return
		}
		deliverImage(c, db, device, settings)
		return
	}
	if requestData["action"] == "update_image" {
		// Force update image without time check
		var settings DeviceSetting
		result := db.Where(&DeviceSetting{DeviceID: device.DeviceID}).First(&settings)
		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				c.JSON(http.StatusNotFound, errorResponse("Settings not found"))
			} else {
				log.Printf("Error fetching settings: %v", result.Error)
				c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
			}
			return
		}
		deliverImage(c, db, device, settings)
		return
	}

	// If no valid action was specified
	c.JSON(http.StatusBadRequest, errorResponse("Invalid or missing action"))
}
