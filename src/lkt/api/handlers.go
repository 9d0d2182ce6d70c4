package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
	"github.com/bitswalk/lkt/src/lkt/db"
)

func respondError(c *gin.Context, err error) {
	status := lkterrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("Request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, lkterrors.NewResponse(err))
}

// getPaginationParams extracts limit and offset from query parameters.
// Out of range values fall back to the defaults.
func getPaginationParams(c *gin.Context) (int, int) {
	limit := DefaultPaginationLimit
	offset := 0

	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= MaxPaginationLimit {
			limit = parsed
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, versionInfo.Map())
}

func (a *API) handleListRuns(c *gin.Context) {
	limit, offset := getPaginationParams(c)

	runs, err := a.runs.List(limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}

	c.JSON(http.StatusOK, RunListResponse{
		Count:  len(runs),
		Limit:  limit,
		Offset: offset,
		Runs:   runs,
	})
}

// lookupRun loads the run named by the :id parameter or responds with an
// error and returns nil
func (a *API) lookupRun(c *gin.Context) *db.Run {
	id := c.Param("id")
	run, err := a.runs.GetByID(id)
	if err != nil {
		respondError(c, err)
		return nil
	}
	if run == nil {
		respondError(c, lkterrors.ErrRunNotFound.WithMessagef("run %s not found", id))
		return nil
	}
	return run
}

func (a *API) handleGetRun(c *gin.Context) {
	run := a.lookupRun(c)
	if run == nil {
		return
	}
	c.JSON(http.StatusOK, run)
}

func (a *API) handleListResults(c *gin.Context) {
	run := a.lookupRun(c)
	if run == nil {
		return
	}

	results, err := a.runs.Results(run.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if results == nil {
		results = []db.Result{}
	}

	c.JSON(http.StatusOK, ResultListResponse{
		RunID:   run.ID,
		Count:   len(results),
		Results: results,
	})
}

// archivedRun is lookupRun for the log endpoints, which also need an
// archive holding the run's logs
func (a *API) archivedRun(c *gin.Context) *db.Run {
	if a.archive == nil {
		respondError(c, lkterrors.ErrStorageUnavailable.WithMessage("log archive is not configured"))
		return nil
	}
	run := a.lookupRun(c)
	if run == nil {
		return nil
	}
	if run.ArchivePrefix == "" {
		respondError(c, lkterrors.ErrObjectNotFound.WithMessagef("run %s has no archived logs", run.ID))
		return nil
	}
	return run
}

func (a *API) handleListLogs(c *gin.Context) {
	run := a.archivedRun(c)
	if run == nil {
		return
	}

	names, err := a.archive.Names(c.Request.Context(), run.ArchivePrefix)
	if err != nil {
		respondError(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, LogListResponse{RunID: run.ID, Logs: names})
}

func (a *API) handleGetLog(c *gin.Context) {
	run := a.archivedRun(c)
	if run == nil {
		return
	}

	name := c.Param("name")
	rc, err := a.archive.Open(c.Request.Context(), run.ArchivePrefix, name)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil && log != nil {
		log.Warn("Failed to stream log", "run", run.ID, "name", name, "error", err)
	}
}
