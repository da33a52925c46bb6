package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"askdb-backend/internal/db"
	"askdb-backend/internal/llm"
	"askdb-backend/internal/session"
	"askdb-backend/internal/ws"
)

type Config struct {
	Port          string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	UploadDir     string
	Limits        db.Limits
}

type App struct {
	Config    *Config
	Router    *gin.Engine
	Store     *session.Store
	Sources   *SourceRegistry
	Hub       *ws.Hub
	Generator llm.SQLGenerator
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := loadConfig()
	app := &App{
		Config:  config,
		Store:   session.NewStore(),
		Sources: NewSourceRegistry(),
		Hub:     ws.NewHub(),
	}
	defer app.Sources.CloseAll()

	if config.OpenAIAPIKey != "" {
		app.Generator = llm.NewOpenAIGenerator(config.OpenAIAPIKey, config.OpenAIBaseURL, config.OpenAIModel)
	} else {
		log.Println("OPENAI_API_KEY not set, /api/ask is disabled")
	}

	go app.Hub.Run()
	app.InitRouter()

	addr := ":" + config.Port
	log.Printf("HTTP server starting on port %s", config.Port)
	if err := app.Router.Run(addr); err != nil {
		log.Fatalf("Failed to start HTTP server: %v", err)
	}
}

func loadConfig() *Config {
	limits := db.DefaultLimits()
	if v := getEnvInt("QUERY_MAX_ROWS", 0); v > 0 {
		limits.MaxRows = v
	}
	if v := getEnvInt("QUERY_TIMEOUT_MS", 0); v > 0 {
		limits.Timeout = time.Duration(v) * time.Millisecond
	}
	if v := getEnvInt("QUERY_MAX_BYTES", 0); v > 0 {
		limits.MaxBytes = v
	}

	return &Config{
		Port:          getEnv("PORT", "8080"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		UploadDir:     getEnv("UPLOAD_DIR", os.TempDir()),
		Limits:        limits,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("ignoring non-numeric %s=%q", key, value)
	}
	return defaultValue
}

func (app *App) InitRouter() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	app.Router = gin.New()
	app.Router.Use(gin.Logger())
	app.Router.Use(gin.Recovery())

	// CORS configuration
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	app.Router.Use(cors.New(config))

	app.Router.GET("/api/health", app.healthHandler)
	app.Router.GET("/ws", app.Hub.HandleWS)

	api := app.Router.Group("/api")
	{
		api.GET("/sources", app.listSourcesHandler)
		api.POST("/sources", app.connectSourceHandler)
		api.POST("/sources/upload", app.uploadSourceHandler)
		api.GET("/sources/:id/schema", app.sourceSchemaHandler)

		api.POST("/ask", app.askHandler)
		api.GET("/suggestions", app.suggestionsHandler)
		api.GET("/stats", app.statsHandler)

		api.GET("/sessions", app.listSessionsHandler)
		api.POST("/sessions", app.createSessionHandler)
		api.GET("/sessions/:id", app.getSessionHandler)
		api.PUT("/sessions/:id", app.renameSessionHandler)
		api.DELETE("/sessions/:id", app.deleteSessionHandler)
		api.POST("/sessions/:id/activate", app.activateSessionHandler)
		api.GET("/sessions/:id/export", app.exportSessionHandler)
		api.POST("/sessions/import", app.importSessionHandler)
		api.GET("/sessions/:id/turns/:turn/result.csv", app.turnResultCSVHandler)
	}
}

func (app *App) healthHandler(c *gin.Context) {
	c.JSON(200, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}
