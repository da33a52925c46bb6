package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"askdb-backend/internal/db"
	"askdb-backend/internal/llm"
	"askdb-backend/internal/session"
	"askdb-backend/internal/sqlcheck"
	"askdb-backend/internal/ws"
)

type AskRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Question  string `json:"question" binding:"required"`
}

// AskResponse mirrors the turn that was appended to the session. Exactly
// one of result, exec_error and rejection is set.
type AskResponse struct {
	SessionID string                   `json:"session_id"`
	Turn      session.Turn             `json:"turn"`
	Columns   []string                 `json:"columns,omitempty"`
	Rows      []map[string]interface{} `json:"rows,omitempty"`
}

// askHandler runs the full question pipeline: generate SQL for the
// session's data source, validate it against the schema, execute under
// limits and record the outcome. Every outcome, including rejections and
// failures, becomes a turn in the session history.
func (app *App) askHandler(c *gin.Context) {
	if app.Generator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no SQL generator configured"})
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and question are required"})
		return
	}

	sess, err := app.Store.Get(req.SessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	// Sessions stay bound to the source they were created with
	source, snapshot, err := app.Sources.Get(sess.SourceID)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	generated, err := app.Generator.GenerateSQL(ctx, req.Question, snapshot.PromptContext())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	// Generated SQL is untrusted until the validator accepts it
	validated, rejection := sqlcheck.Validate(generated.SQL, snapshot)
	if rejection != nil {
		turn := session.NewRejectedTurn(req.Question, generated.SQL,
			string(rejection.Reason), rejection.Detail)
		app.appendAndRespond(c, req.SessionID, turn)
		return
	}

	result, execErr := source.Execute(ctx, validated, app.Config.Limits)
	if execErr != nil {
		turn := session.NewFailedTurn(req.Question, validated.SQL(), generated.Explanation,
			string(validated.Rule()), validated.Tables(), string(execErr.Kind), execErr.Message)
		app.appendAndRespond(c, req.SessionID, turn)
		return
	}

	turn := session.NewAnsweredTurn(req.Question, validated.SQL(), generated.Explanation,
		string(validated.Rule()), validated.Tables(), resultRecord(result))
	app.appendAndRespond(c, req.SessionID, turn)
}

func (app *App) appendAndRespond(c *gin.Context, sessionID string, turn session.Turn) {
	if err := app.Store.AppendTurn(sessionID, turn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	app.Hub.Broadcast(ws.EventTurnAppended, gin.H{
		"session_id": sessionID,
		"turn_id":    turn.ID,
		"succeeded":  turn.Succeeded(),
	})

	resp := AskResponse{SessionID: sessionID, Turn: turn}
	if turn.Result != nil {
		resp.Columns = turn.Result.Columns
		resp.Rows = namedRows(turn.Result)
	}
	c.JSON(http.StatusOK, resp)
}

// resultRecord converts an executed result set into the session's storage
// representation
func resultRecord(result *db.ResultSet) *session.ResultRecord {
	record := &session.ResultRecord{
		Columns:   result.ColumnNames(),
		Rows:      make([][]interface{}, len(result.Rows)),
		RowCount:  result.RowCount,
		Truncated: result.Truncated,
		ElapsedMs: result.Elapsed.Milliseconds(),
	}
	for i, row := range result.Rows {
		cells := make([]interface{}, len(row.Values))
		for j, v := range row.Values {
			cells[j] = v.Export()
		}
		record.Rows[i] = cells
	}
	return record
}

// namedRows renders stored rows as column-keyed objects for API clients
func namedRows(result *session.ResultRecord) []map[string]interface{} {
	rows := make([]map[string]interface{}, len(result.Rows))
	for i, cells := range result.Rows {
		row := make(map[string]interface{}, len(result.Columns))
		for j, col := range result.Columns {
			if j < len(cells) {
				row[col] = cells[j]
			}
		}
		rows[i] = row
	}
	return rows
}

func (app *App) suggestionsHandler(c *gin.Context) {
	sourceID := c.Query("source_id")
	if sourceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_id query parameter is required"})
		return
	}
	_, snapshot, err := app.Sources.Get(sourceID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if app.Generator == nil {
		c.JSON(http.StatusOK, gin.H{"suggestions": llm.DefaultSuggestions()})
		return
	}
	suggestions, err := app.Generator.Suggestions(c.Request.Context(), snapshot.PromptContext())
	if err != nil || len(suggestions) == 0 {
		suggestions = llm.DefaultSuggestions()
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

func (app *App) statsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, app.Store.Stats())
}
