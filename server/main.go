package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

var jwtMasterKey []byte
var adminKey string
var imageDir string
var imageDirRefresh int
var cacheDir string
var dbPath string

func init() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file:", err)
	}
	masterKey := os.Getenv("JWT_MASTER_KEY")
	if masterKey == "" {
		log.Println("Warning: JWT_MASTER_KEY not set in .env, using default (not secure for production)")
		masterKey = "default_master_key"
	}
	jwtMasterKey = []byte(masterKey)
	// Get admin key from environment
	adminKey = os.Getenv("ADMIN_KEY")
	if adminKey == "" {
		log.Println("Warning: ADMIN_KEY not set in .env, using default (not secure for production)")
		adminKey = "default_admin_token"
	}
	imageDir = os.Getenv("IMAGE_DIR")
	if imageDir == "" {
		log.Println("Warning: IMAGE_DIR not set in .env, using default")
		imageDir = "./images"
	}
	log.Println("Using image directory:", imageDir)
	imageDirRefresh, err = strconv.Atoi(os.Getenv("IMAGE_DIR_REFRESH"))
	if err != nil {
		log.Println("Warning: IMAGE_DIR_REFRESH not set in .env, using default")
		imageDirRefresh = 86400
	}
	cacheDir = os.Getenv("CACHE_DIR")
	if cacheDir == "" {
		log.Println("Warning: CACHE_DIR not set in .env, using default")
		cacheDir, _ = os.UserCacheDir()
	}
	dbPath = os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(cacheDir, "spectraframe.db")
	}
}

func startAPIServer(db *gorm.DB) {
	router := gin.Default()

	// Use closures to pass the db connection to handlers
	// Serve static files with authentication
	router.GET("/assets/*filepath", func(c *gin.Context) {
		// Check authentication first
		device, err := authDevice(c, db)
		if err != nil {
			c.JSON(http.StatusUnauthorized, errorResponse("Unauthorized access to assets"))
			return
		}

		// If authenticated, serve the requested file
		path := c.Param("filepath")
		c.File(cacheDir + path)

		log.Printf("Device %s (%s) accessed asset: %s", device.DeviceID, device.DeviceName, path)
	})

	router.POST("/register", func(c *gin.Context) {
		handleRegisterRequest(c, db)
	})

	router.POST("/dev", func(c *gin.Context) {
		handleDeviceRequest(c, db)
	})

	router.POST("/admin/device_register", func(c *gin.Context) {
		// Admin endpoint, can be used for management tasks
		handleAdminDeviceRegisterRequest(c, db)
	})

	router.POST("/admin/upload", func(c *gin.Context) {
		handleAdminUploadRequest(c, db)
	})

	log.Println("Starting API server on port 8080...")
	certFile := os.Getenv("TLS_CERT")
	keyFile := os.Getenv("TLS_KEY")
	if certFile != "" && keyFile != "" {
		log.Fatal(router.RunTLS(":8080", certFile, keyFile))
	}
	log.Fatal(router.Run(":8080"))
}

// startRefreshTicker rescans the photo directory periodically so
// photos dropped in out-of-band still enter the rotation.
func startRefreshTicker(db *gorm.DB) {
	ticker := time.NewTicker(time.Duration(imageDirRefresh) * time.Second)
	go func() {
		for range ticker.C {
			if err := refreshPhotos(db); err != nil {
				log.Printf("Error refreshing photo library: %v", err)
				continue
			}
			if err := updateRotationList(db); err != nil {
				log.Printf("Error updating rotation order: %v", err)
			}
		}
	}()
}

func main() {
	db, err := dbInit()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbClose(db)

	if err := refreshPhotos(db); err != nil {
		log.Fatalf("Failed to refresh photo library: %v", err)
	}

	if err := updateRotationList(db); err != nil {
		log.Fatalf("Failed to update rotation order: %v", err)
	}

	startRefreshTicker(db)

	// Start API server
	startAPIServer(db)
}
