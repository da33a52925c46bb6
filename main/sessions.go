package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"askdb-backend/internal/session"
)

type CreateSessionRequest struct {
	Name     string `json:"name"`
	SourceID string `json:"source_id" binding:"required"`
}

type RenameSessionRequest struct {
	Name string `json:"name" binding:"required"`
}

func (app *App) listSessionsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions":  app.Store.List(),
		"active_id": app.Store.ActiveID(),
	})
}

func (app *App) createSessionHandler(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_id is required"})
		return
	}

	if _, _, err := app.Sources.Get(req.SourceID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	sess := app.Store.Create(req.Name, req.SourceID)
	c.JSON(http.StatusCreated, gin.H{"session": sess})
}

func (app *App) getSessionHandler(c *gin.Context) {
	sess, err := app.Store.Get(c.Param("id"))
	if err != nil {
		c.JSON(sessionErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

func (app *App) renameSessionHandler(c *gin.Context) {
	var req RenameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if err := app.Store.Rename(c.Param("id"), req.Name); err != nil {
		c.JSON(sessionErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"renamed": true})
}

func (app *App) deleteSessionHandler(c *gin.Context) {
	if err := app.Store.Delete(c.Param("id")); err != nil {
		c.JSON(sessionErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "active_id": app.Store.ActiveID()})
}

func (app *App) activateSessionHandler(c *gin.Context) {
	if err := app.Store.Switch(c.Param("id")); err != nil {
		c.JSON(sessionErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active_id": app.Store.ActiveID()})
}

func (app *App) exportSessionHandler(c *gin.Context) {
	id := c.Param("id")
	if _, err := app.Store.Get(id); err != nil {
		c.JSON(sessionErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=session-%s.jsonl", id))
	if err := app.Store.ExportSession(c.Writer, id); err != nil {
		// headers are out; all we can do is log
		c.Error(err)
	}
}

func (app *App) importSessionHandler(c *gin.Context) {
	imported, err := app.Store.ImportSession(c.Request.Body)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, session.ErrSessionExists) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": imported})
}

func (app *App) turnResultCSVHandler(c *gin.Context) {
	sess, err := app.Store.Get(c.Param("id"))
	if err != nil {
		c.JSON(sessionErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	index, err := strconv.Atoi(c.Param("turn"))
	if err != nil || index < 0 || index >= len(sess.Turns) {
		c.JSON(http.StatusNotFound, gin.H{"error": "turn not found"})
		return
	}
	turn := sess.Turns[index]
	if turn.Result == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "turn has no result to export"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=result-%s-%d.csv", sess.ID, index))
	if err := session.WriteResultCSV(c.Writer, turn.Result); err != nil {
		c.Error(err)
	}
}

func sessionErrorStatus(err error) int {
	if errors.Is(err, session.ErrSessionNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
