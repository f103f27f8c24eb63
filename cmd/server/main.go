package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/AnjaniMalhotra/auto-restock-agent/internal/handlers"
	"github.com/AnjaniMalhotra/auto-restock-agent/internal/payman"
	"github.com/AnjaniMalhotra/auto-restock-agent/internal/storage"
	"github.com/AnjaniMalhotra/auto-restock-agent/internal/storage/csvfile"
	"github.com/AnjaniMalhotra/auto-restock-agent/internal/storage/gormstore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found")
	}

	// --- Ledger backend ---
	// CSV file on local disk by default; MySQL for installs that want the
	// history in a real database.
	var store storage.LedgerStore
	var err error

	switch backend := os.Getenv("LEDGER_BACKEND"); backend {
	case "", "csv":
		path := os.Getenv("LEDGER_FILE")
		if path == "" {
			path = "restock_log.csv"
		}
		store, err = csvfile.Open(path)
		if err != nil {
			log.Fatal("❌ Failed to open ledger file: ", err)
		}
		log.Println("✅ Ledger file ready: " + path)
	case "mysql":
		dsn := os.Getenv("DB_DSN")
		if dsn == "" {
			log.Fatal("❌ Error: LEDGER_BACKEND=mysql but DB_DSN not set in .env")
		}
		store, err = gormstore.Connect(dsn)
		if err != nil {
			log.Fatal("❌ Failed to connect ledger database: ", err)
		}
		log.Println("✅ Successfully connected to MySQL ledger!")
	default:
		log.Fatalf("❌ Unknown LEDGER_BACKEND %q (want csv or mysql)", backend)
	}

	// --- Payman client ---
	clientID := os.Getenv("PAYMAN_CLIENT_ID")
	clientSecret := os.Getenv("PAYMAN_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		log.Fatal("❌ Error: PAYMAN_CLIENT_ID / PAYMAN_CLIENT_SECRET not set in .env")
	}
	payments := payman.New(payman.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		BaseURL:      os.Getenv("PAYMAN_BASE_URL"),
	})

	// --- Pacing between external payment calls ---
	// The remote agent dislikes being hammered; the original app slept a
	// fixed 2s between calls, here the interval comes from the environment.
	interval := 2 * time.Second
	if v := os.Getenv("PAYMENT_CALL_INTERVAL"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("❌ Bad PAYMENT_CALL_INTERVAL %q: %v", v, err)
		}
		interval = parsed
	}

	// --- Wallets ---
	wallets := []string{"TSD Wallet 3", "Inventory", "TSD Wallet"}
	if v := os.Getenv("WALLETS"); v != "" {
		wallets = nil
		for _, w := range strings.Split(v, ",") {
			if w = strings.TrimSpace(w); w != "" {
				wallets = append(wallets, w)
			}
		}
	}

	h := &handlers.Handler{
		Store:    store,
		Payments: payments,
		Limiter:  rate.NewLimiter(rate.Every(interval), 1),
		Wallets:  wallets,
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "online"}) })

	api := r.Group("/api")
	{
		api.GET("/wallets", h.GetWallets)
		api.POST("/inventory/upload", h.UploadInventory)
		api.POST("/restock/pay", h.TriggerPayments)
		api.GET("/history", h.GetHistory)
	}

	// Serve the single-page UI. Any unknown path falls back to index.html
	// so a refresh in the browser still works.
	r.StaticFile("/app.js", "./web/app.js")
	r.NoRoute(func(c *gin.Context) {
		c.File("./web/index.html")
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("🚀 Auto Restock Agent starting on :" + port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
