package handlers

import (
	"net/http"

	"confique/notify"

	"github.com/gin-gonic/gin"
)

// CleanupNotifications purges notifications past the retention window. The
// route is guarded by middleware.CronSecret.
func (a *API) CleanupNotifications(c *gin.Context) {
	ctx, cancel := a.reqCtx(c)
	defer cancel()

	n, cutoff, err := notify.Purge(ctx, a.notes, a.cfg.NotificationRetention, a.now())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("[Cron] notifications purged")
	c.JSON(http.StatusOK, gin.H{"deleted": n, "cutoff": cutoff})
}
