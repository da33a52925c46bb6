package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"askdb-backend/internal/db"
	"askdb-backend/internal/ingest"
	"askdb-backend/internal/ws"
)

// SourceInfo is the listing view of a registered data source
type SourceInfo struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Type      db.SourceType `json:"type"`
	Tables    int           `json:"tables,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

type registeredSource struct {
	info     SourceInfo
	source   *db.Source
	snapshot *db.SchemaSnapshot
}

// SourceRegistry tracks every connected data source along with a cached
// schema snapshot. Snapshots are taken once on connect; the schema of an
// analytical source does not shift under a conversation.
type SourceRegistry struct {
	mu      sync.Mutex
	sources map[string]*registeredSource
	order   []string
}

func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{sources: make(map[string]*registeredSource)}
}

// Add opens the source read-only, snapshots its schema and registers it
func (r *SourceRegistry) Add(ctx context.Context, name string, config db.ConnectionConfig) (SourceInfo, error) {
	source, err := db.Open(config)
	if err != nil {
		return SourceInfo{}, err
	}
	snapshot, err := source.Snapshot(ctx)
	if err != nil {
		source.Close()
		return SourceInfo{}, err
	}

	reg := &registeredSource{
		info: SourceInfo{
			ID:        uuid.New().String(),
			Name:      name,
			Type:      config.SourceType,
			Tables:    len(snapshot.Tables),
			CreatedAt: time.Now(),
		},
		source:   source,
		snapshot: snapshot,
	}

	r.mu.Lock()
	r.sources[reg.info.ID] = reg
	r.order = append(r.order, reg.info.ID)
	r.mu.Unlock()

	return reg.info, nil
}

// Get returns the open handle and cached snapshot for a source
func (r *SourceRegistry) Get(id string) (*db.Source, *db.SchemaSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.sources[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", db.ErrSourceUnavailable, id)
	}
	return reg.source, reg.snapshot, nil
}

// List returns sources in registration order
func (r *SourceRegistry) List() []SourceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SourceInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sources[id].info)
	}
	return out
}

// CloseAll closes every open handle
func (r *SourceRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.sources {
		reg.source.Close()
	}
}

type ConnectSourceRequest struct {
	Name             string `json:"name"`
	Type             string `json:"type" binding:"required"`
	FilePath         string `json:"file_path"`
	ConnectionString string `json:"connection_string"`
}

func (app *App) listSourcesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": app.Sources.List()})
}

func (app *App) connectSourceHandler(c *gin.Context) {
	var req ConnectSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	config := db.ConnectionConfig{
		SourceType:       db.SourceType(req.Type),
		FilePath:         req.FilePath,
		ConnectionString: req.ConnectionString,
	}
	switch config.SourceType {
	case db.SourceTypeSQLite:
		if config.FilePath == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file_path is required for sqlite sources"})
			return
		}
	case db.SourceTypePostgreSQL, db.SourceTypeMySQL:
		if config.ConnectionString == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "connection_string is required"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported source type: %s", req.Type)})
		return
	}

	name := req.Name
	if name == "" {
		name = string(config.SourceType)
	}

	info, err := app.Sources.Add(c.Request.Context(), name, config)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"source": info})
}

func (app *App) uploadSourceHandler(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file form field is required"})
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	var result *ingest.Result
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		result, err = ingest.MaterializeCSV(ctx, app.Config.UploadDir, header.Filename, file)
	case ".xlsx", ".xls":
		result, err = ingest.MaterializeExcel(ctx, app.Config.UploadDir, header.Filename, file)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .csv and .xlsx uploads are supported"})
		return
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	info, err := app.Sources.Add(ctx, header.Filename, db.ConnectionConfig{
		SourceType: db.SourceTypeSQLite,
		FilePath:   result.Path,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	app.Hub.Broadcast(ws.EventSourceChanged, gin.H{"source_id": info.ID, "tables": result.Tables})
	c.JSON(http.StatusCreated, gin.H{"source": info, "tables": result.Tables})
}

func (app *App) sourceSchemaHandler(c *gin.Context) {
	_, snapshot, err := app.Sources.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tables": snapshot.Tables,
		"stats":  snapshot.Stats(),
	})
}
